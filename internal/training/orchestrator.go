// Package training runs the model retraining lifecycle: gather recent
// samples, fit a candidate, store it, and promote it when it beats the
// active model. At most one run executes at a time system-wide.
package training

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trafficguard/botscore/internal/models"
	"github.com/trafficguard/botscore/internal/registry"
	"github.com/trafficguard/botscore/internal/trainer"
)

// promotionMargin is the relative improvement in F1 or ROC-AUC a candidate
// needs over the active model to be promoted.
const promotionMargin = 1.02

// SampleSource provides the training dataset.
type SampleSource interface {
	CountSamplesSince(ctx context.Context, window time.Duration) (int, error)
	LoadSamplesSince(ctx context.Context, window time.Duration, limit int) ([]models.TrainingSample, error)
}

// Counter is the pending-sample queue depth tracker.
type Counter interface {
	ResetPendingSamples(ctx context.Context)
}

type Config struct {
	MinSamples   int
	BatchSize    int
	Window       time.Duration
	KeepVersions int
}

type Orchestrator struct {
	samples      SampleSource
	counter      Counter
	trainer      *trainer.Trainer
	registry     *registry.Registry
	featureNames []string
	cfg          Config
	logger       *slog.Logger

	// running is the single-flight guard. Set with CompareAndSwap on
	// trigger, cleared on every run exit path.
	running atomic.Bool

	triggers chan struct{}
	stop     chan struct{}
	wg       sync.WaitGroup
}

func New(
	samples SampleSource,
	counter Counter,
	tr *trainer.Trainer,
	reg *registry.Registry,
	featureNames []string,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		samples:      samples,
		counter:      counter,
		trainer:      tr,
		registry:     reg,
		featureNames: featureNames,
		cfg:          cfg,
		logger:       logger,
		triggers:     make(chan struct{}, 1),
		stop:         make(chan struct{}),
	}
}

// Start launches the background runner consuming triggers.
func (o *Orchestrator) Start(ctx context.Context) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for {
			select {
			case <-o.triggers:
				o.runOnce(ctx)
			case <-o.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop shuts the runner down. An in-flight run finishes first.
func (o *Orchestrator) Stop() {
	close(o.stop)
	o.wg.Wait()
}

// TriggerAsync requests one training run. A trigger while a run is in
// flight is dropped: there is no backlog of pending runs.
func (o *Orchestrator) TriggerAsync() {
	if !o.running.CompareAndSwap(false, true) {
		o.logger.Info("training already running, trigger ignored")
		return
	}

	select {
	case o.triggers <- struct{}{}:
	default:
		// The runner has an unconsumed trigger; give the slot back.
		o.running.Store(false)
	}
}

// Running reports whether a training run is in flight.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// runOnce executes one training run. The running flag was claimed by the
// trigger and is cleared here on every exit path, panics included.
func (o *Orchestrator) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("training run panicked", "panic", fmt.Sprint(r))
		}
		o.running.Store(false)
	}()

	started := time.Now()

	count, err := o.samples.CountSamplesSince(ctx, o.cfg.Window)
	if err != nil {
		o.logger.Error("counting training samples", "error", err)
		return
	}
	if count < o.cfg.MinSamples {
		o.logger.Info("not enough samples for training",
			"available", count,
			"required", o.cfg.MinSamples,
		)
		return
	}

	rows, err := o.samples.LoadSamplesSince(ctx, o.cfg.Window, o.cfg.BatchSize)
	if err != nil {
		o.logger.Error("loading training samples", "error", err)
		return
	}

	x, y := o.parseSamples(rows)
	if len(x) == 0 {
		o.logger.Info("no parseable training samples, skipping run")
		return
	}

	x, y = trainer.Balance(x, y)

	model, metrics, err := o.trainer.Train(x, y, o.featureNames, true)
	if err != nil {
		o.logger.Error("training failed", "error", err)
		return
	}

	recorded := models.Metrics{
		Accuracy:        metrics.Accuracy,
		Precision:       metrics.Precision,
		Recall:          metrics.Recall,
		F1:              metrics.F1,
		ROCAUC:          metrics.ROCAUC,
		TrainingSamples: metrics.TrainingSamples,
	}

	// The candidate is stored whether or not it gets promoted.
	version, err := o.registry.Save(ctx, model, recorded)
	if err != nil {
		o.logger.Error("saving trained model", "error", err)
		return
	}

	if !o.shouldPromote(recorded) {
		o.logger.Info("candidate not promoted",
			"version", version,
			"f1", recorded.F1,
			"roc_auc", recorded.ROCAUC,
		)
		o.finishRun(ctx, started)
		return
	}

	if err := o.registry.Load(ctx, version); err != nil {
		o.logger.Error("activating promoted model", "version", version, "error", err)
		return
	}
	if err := o.registry.Prune(ctx, o.cfg.KeepVersions); err != nil {
		o.logger.Warn("pruning old model versions", "error", err)
	}

	o.logger.Info("model promoted",
		"version", version,
		"f1", recorded.F1,
		"roc_auc", recorded.ROCAUC,
	)
	o.finishRun(ctx, started)
}

func (o *Orchestrator) finishRun(ctx context.Context, started time.Time) {
	if o.counter != nil {
		o.counter.ResetPendingSamples(ctx)
	}
	o.logger.Info("training run finished", "duration", time.Since(started))
}

// shouldPromote applies the promotion gate: promote when nothing is active,
// or when either F1 or ROC-AUC improves on the active model by more than 2%
// relative.
func (o *Orchestrator) shouldPromote(candidate models.Metrics) bool {
	active := o.registry.ActiveSnapshot()
	if active == nil {
		return true
	}
	return candidate.F1 > active.Metrics.F1*promotionMargin ||
		candidate.ROCAUC > active.Metrics.ROCAUC*promotionMargin
}

// parseSamples decodes stored feature maps into ordered vectors. Samples
// that fail to decode are skipped, not fatal.
func (o *Orchestrator) parseSamples(rows []models.TrainingSample) ([][]float64, []int) {
	var x [][]float64
	var y []int

	for _, row := range rows {
		var featureMap map[string]float64
		if err := json.Unmarshal(row.Features, &featureMap); err != nil || len(featureMap) == 0 {
			continue
		}

		vector := make([]float64, len(o.featureNames))
		for i, name := range o.featureNames {
			vector[i] = featureMap[name]
		}
		x = append(x, vector)

		if row.Label == models.LabelBot {
			y = append(y, 1)
		} else {
			y = append(y, 0)
		}
	}
	return x, y
}
