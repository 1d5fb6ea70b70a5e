// Package predictor runs the scoring pipeline: blacklist shortcut, feature
// extraction, classification, cache write, and blacklist promotion. A
// prediction never fails; every internal failure degrades to a neutral
// decision.
package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/trafficguard/botscore/internal/blacklist"
	"github.com/trafficguard/botscore/internal/features"
	"github.com/trafficguard/botscore/internal/models"
	"github.com/trafficguard/botscore/internal/registry"
	"github.com/trafficguard/botscore/internal/rulemodel"
)

// promotionConfidence is the floor above which bot decisions are pushed to
// the blacklist.
const promotionConfidence = 0.7

// Blacklist is the narrow view of the blacklist client used by scoring.
type Blacklist interface {
	IsBlacklisted(ctx context.Context, ip string) bool
	Add(ctx context.Context, entry blacklist.Entry, expiresAfterHours int)
}

// DecisionCache receives advisory copies of decisions.
type DecisionCache interface {
	PutPrediction(ctx context.Context, fingerprint string, entry models.CacheEntry)
	IncrPendingSamples(ctx context.Context)
}

// SampleStore receives labeled samples for later training.
type SampleStore interface {
	AppendSample(ctx context.Context, sample *models.TrainingSample) error
}

type Service struct {
	extractor *features.Extractor
	ruleModel *rulemodel.Model
	registry  *registry.Registry
	blacklist Blacklist
	cache     DecisionCache
	samples   SampleStore
	logger    *slog.Logger
}

func New(
	extractor *features.Extractor,
	reg *registry.Registry,
	bl Blacklist,
	cache DecisionCache,
	samples SampleStore,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		extractor: extractor,
		ruleModel: rulemodel.New(extractor.Names()),
		registry:  reg,
		blacklist: bl,
		cache:     cache,
		samples:   samples,
		logger:    logger,
	}
}

// Predict scores one visitor signal. It never returns an error: blacklist
// and cache problems fail open, and any scoring failure yields the neutral
// decision.
func (s *Service) Predict(ctx context.Context, sig *models.VisitorSignal, targeting *models.CampaignTargeting) models.Decision {
	sig.NormalizeHeaders()

	if s.blacklist != nil && s.blacklist.IsBlacklisted(ctx, sig.IP) {
		return models.Decision{
			IsBot:        true,
			Confidence:   1.0,
			Features:     map[string]float64{},
			ModelVersion: "blacklist",
			Reason:       "IP found in blacklist",
			Blacklisted:  true,
		}
	}

	return s.score(ctx, sig, targeting)
}

func (s *Service) score(ctx context.Context, sig *models.VisitorSignal, targeting *models.CampaignTargeting) (decision models.Decision) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scoring failure",
				"fingerprint", sig.Fingerprint,
				"panic", fmt.Sprint(r),
			)
			decision = neutralDecision()
		}
	}()

	vector := s.extractor.Extract(sig, targeting)
	version, pBot := s.classify(vector)

	isBot := pBot > 0.5
	featureMap := s.extractor.Vector(vector)

	decision = models.Decision{
		IsBot:        isBot,
		Confidence:   pBot,
		Features:     featureMap,
		ModelVersion: version,
		Reason:       reasonFor(isBot, featureMap),
	}

	if s.cache != nil {
		s.cache.PutPrediction(ctx, sig.Fingerprint, models.CacheEntry{
			IsBot:        isBot,
			Confidence:   pBot,
			ModelVersion: version,
			Timestamp:    time.Now().UTC(),
		})
	}

	if isBot && pBot > promotionConfidence && s.blacklist != nil {
		// Off the response path; the client carries its own timeout.
		go s.promoteToBlacklist(sig.IP, pBot, featureMap)
	}

	s.logger.Info("prediction made",
		"fingerprint", sig.Fingerprint,
		"is_bot", isBot,
		"confidence", pBot,
		"model_version", version,
	)

	return decision
}

// classify runs the active trained model when one is loaded, else the rule
// model. Returns the serving version tag and the bot probability.
func (s *Service) classify(vector []float64) (string, float64) {
	if s.registry != nil {
		if active := s.registry.ActiveSnapshot(); active != nil {
			_, pBot := active.Model.PredictProba(vector)
			return fmt.Sprintf("v%d", active.Version), pBot
		}
	}
	_, pBot := s.ruleModel.PredictProba(vector)
	return "rule-based", pBot
}

func (s *Service) promoteToBlacklist(ip string, confidence float64, featureMap map[string]float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var hours int
	switch {
	case confidence >= 0.95:
		hours = 72
	case confidence >= 0.85:
		hours = 48
	default:
		hours = 24
	}

	s.blacklist.Add(ctx, blacklist.Entry{
		IP:              ip,
		Reason:          blacklistReason(featureMap),
		DetectionType:   "bot",
		ConfidenceScore: confidence,
	}, hours)
}

// SubmitSample records a labeled observation for future training. Both the
// store write and the counter bump are best-effort.
func (s *Service) SubmitSample(ctx context.Context, sig *models.VisitorSignal, label models.Label, confidence float64, ts time.Time) {
	sig.NormalizeHeaders()

	vector := s.extractor.Extract(sig, nil)
	featureJSON, err := json.Marshal(s.extractor.Vector(vector))
	if err != nil {
		s.logger.Warn("encoding sample features", "fingerprint", sig.Fingerprint, "error", err)
		return
	}

	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	if s.samples != nil {
		err := s.samples.AppendSample(ctx, &models.TrainingSample{
			Fingerprint: sig.Fingerprint,
			Features:    featureJSON,
			Label:       label,
			Confidence:  confidence,
			CreatedAt:   ts,
		})
		if err != nil {
			s.logger.Warn("storing training sample", "fingerprint", sig.Fingerprint, "error", err)
			return
		}
	}

	if s.cache != nil {
		s.cache.IncrPendingSamples(ctx)
	}
}

func neutralDecision() models.Decision {
	return models.Decision{
		IsBot:        false,
		Confidence:   0.5,
		Features:     map[string]float64{},
		ModelVersion: "error",
	}
}

// reasonFor explains a decision from its feature mapping. The scan order is
// the blacklist-reason priority so served reasons and blacklist entries
// agree.
func reasonFor(isBot bool, f map[string]float64) string {
	if !isBot {
		return "no significant bot indicators"
	}
	return blacklistReason(f)
}

// blacklistReason picks the highest-priority matched heuristic.
func blacklistReason(f map[string]float64) string {
	switch {
	case f["is_automation_framework"] > 0.5:
		return "Automation tool detected"
	case f["headless_risk_score"] >= 0.6:
		return "Headless browser detected"
	case f["webdriver_properties"] > 0.5:
		return "WebDriver automation detected"
	case f["ua_bot_keyword"] > 0.5 || f["ua_crawler_keyword"] > 0.5:
		return "Bot or crawler user agent"
	case f["header_anomaly_score"] >= 0.4 || f["header_count"] < 5:
		return "Sparse or anomalous request headers"
	default:
		return "ML detection"
	}
}
