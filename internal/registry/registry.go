// Package registry manages trained model versions: durable storage through
// an artifact store, and the single active model served to the scoring path.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trafficguard/botscore/internal/artifact"
	"github.com/trafficguard/botscore/internal/models"
	"github.com/trafficguard/botscore/internal/trainer"
)

var (
	ErrVersionNotFound = errors.New("model version not found")
	ErrNoVersions      = errors.New("no model versions stored")
)

const (
	modelKeyPrefix    = "model_v"
	metadataKeyPrefix = "metadata_v"
)

// Active is the immutable snapshot of the currently served model. Readers
// get it through ActiveSnapshot and must not mutate it.
type Active struct {
	Model        *trainer.Model
	Version      int
	FeatureOrder []string
	Metrics      models.Metrics
	LoadedAt     time.Time
}

type Registry struct {
	store  artifact.Store
	logger *slog.Logger

	// saveMu serializes Save so concurrent trainings cannot mint the same
	// version id.
	saveMu sync.Mutex

	active atomic.Pointer[Active]
}

func New(store artifact.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: store, logger: logger}
}

// ActiveSnapshot returns the served model, or nil when none is active and
// the caller should fall back to the rule model.
func (r *Registry) ActiveSnapshot() *Active {
	return r.active.Load()
}

// Save persists a trained model under the next version id. The artifact is
// written before the metadata so a listed version always has its model
// bytes. Save never changes the active model.
func (r *Registry) Save(ctx context.Context, model *trainer.Model, metrics models.Metrics) (int, error) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	versions, err := r.storedVersions(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing stored versions: %w", err)
	}

	version := 1
	if len(versions) > 0 {
		version = versions[len(versions)-1] + 1
	}

	blob, err := model.Marshal()
	if err != nil {
		return 0, fmt.Errorf("serializing model v%d: %w", version, err)
	}
	if err := r.store.Put(ctx, modelKey(version), blob); err != nil {
		return 0, fmt.Errorf("storing model v%d: %w", version, err)
	}

	meta := models.VersionMeta{
		Version:      version,
		CreatedAt:    time.Now().UTC(),
		FeatureCount: len(model.FeatureOrder),
		Metrics:      metrics,
	}
	metaBlob, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("serializing metadata v%d: %w", version, err)
	}
	if err := r.store.Put(ctx, metadataKey(version), metaBlob); err != nil {
		return 0, fmt.Errorf("storing metadata v%d: %w", version, err)
	}

	r.logger.Info("model version saved", "version", version, "f1", metrics.F1, "roc_auc", metrics.ROCAUC)
	return version, nil
}

// Load activates a stored version. On any failure the active model is left
// untouched.
func (r *Registry) Load(ctx context.Context, version int) error {
	meta, err := r.loadMeta(ctx, version)
	if err != nil {
		return err
	}

	blob, err := r.store.Get(ctx, modelKey(version))
	if err != nil {
		return fmt.Errorf("loading model v%d: %w", version, err)
	}
	model, err := trainer.Unmarshal(blob)
	if err != nil {
		return fmt.Errorf("parsing model v%d: %w", version, err)
	}

	r.active.Store(&Active{
		Model:        model,
		Version:      version,
		FeatureOrder: model.FeatureOrder,
		Metrics:      meta.Metrics,
		LoadedAt:     time.Now().UTC(),
	})

	r.logger.Info("model version activated", "version", version)
	return nil
}

// LoadLatest activates the highest stored version. ErrNoVersions means the
// caller should serve the rule model.
func (r *Registry) LoadLatest(ctx context.Context) error {
	versions, err := r.storedVersions(ctx)
	if err != nil {
		return fmt.Errorf("listing stored versions: %w", err)
	}
	if len(versions) == 0 {
		return ErrNoVersions
	}
	return r.Load(ctx, versions[len(versions)-1])
}

// ListVersions returns stored version metadata, newest first.
func (r *Registry) ListVersions(ctx context.Context) ([]models.VersionMeta, error) {
	versions, err := r.storedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing stored versions: %w", err)
	}

	metas := make([]models.VersionMeta, 0, len(versions))
	for i := len(versions) - 1; i >= 0; i-- {
		meta, err := r.loadMeta(ctx, versions[i])
		if err != nil {
			r.logger.Warn("skipping unreadable version metadata", "version", versions[i], "error", err)
			continue
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

// Prune deletes the oldest versions beyond keep. The active version is
// never deleted, even when it falls outside the keep window.
func (r *Registry) Prune(ctx context.Context, keep int) error {
	versions, err := r.storedVersions(ctx)
	if err != nil {
		return fmt.Errorf("listing stored versions: %w", err)
	}
	if len(versions) <= keep {
		return nil
	}

	activeVersion := 0
	if active := r.active.Load(); active != nil {
		activeVersion = active.Version
	}

	var doomed []string
	for _, version := range versions[:len(versions)-keep] {
		if version == activeVersion {
			continue
		}
		doomed = append(doomed, modelKey(version), metadataKey(version))
	}
	if len(doomed) == 0 {
		return nil
	}

	if err := r.store.Delete(ctx, doomed...); err != nil {
		return fmt.Errorf("pruning old versions: %w", err)
	}
	r.logger.Info("pruned old model versions", "deleted", len(doomed)/2, "kept", keep)
	return nil
}

func (r *Registry) loadMeta(ctx context.Context, version int) (models.VersionMeta, error) {
	blob, err := r.store.Get(ctx, metadataKey(version))
	if err != nil {
		return models.VersionMeta{}, fmt.Errorf("version %d: %w", version, ErrVersionNotFound)
	}
	var meta models.VersionMeta
	if err := json.Unmarshal(blob, &meta); err != nil {
		return models.VersionMeta{}, fmt.Errorf("parsing metadata v%d: %w", version, err)
	}
	return meta, nil
}

// storedVersions returns stored version ids in ascending order.
func (r *Registry) storedVersions(ctx context.Context) ([]int, error) {
	keys, err := r.store.List(ctx, metadataKeyPrefix)
	if err != nil {
		return nil, err
	}

	versions := make([]int, 0, len(keys))
	for _, key := range keys {
		version, err := strconv.Atoi(strings.TrimPrefix(key, metadataKeyPrefix))
		if err != nil {
			continue
		}
		versions = append(versions, version)
	}
	sort.Ints(versions)
	return versions, nil
}

func modelKey(version int) string {
	return fmt.Sprintf("%s%d", modelKeyPrefix, version)
}

func metadataKey(version int) string {
	return fmt.Sprintf("%s%d", metadataKeyPrefix, version)
}
