package predictor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/trafficguard/botscore/internal/blacklist"
	"github.com/trafficguard/botscore/internal/features"
	"github.com/trafficguard/botscore/internal/models"
)

type fakeBlacklist struct {
	mu          sync.Mutex
	blacklisted bool
	checks      int
	added       []blacklist.Entry
	addedHours  []int
}

func (f *fakeBlacklist) IsBlacklisted(_ context.Context, _ string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.blacklisted
}

func (f *fakeBlacklist) Add(_ context.Context, entry blacklist.Entry, hours int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, entry)
	f.addedHours = append(f.addedHours, hours)
}

func (f *fakeBlacklist) additions() ([]blacklist.Entry, []int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]blacklist.Entry{}, f.added...), append([]int{}, f.addedHours...)
}

type fakeCache struct {
	mu         sync.Mutex
	puts       map[string]models.CacheEntry
	increments int
	panics     bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{puts: make(map[string]models.CacheEntry)}
}

func (f *fakeCache) PutPrediction(_ context.Context, fingerprint string, entry models.CacheEntry) {
	if f.panics {
		panic("cache backend exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts[fingerprint] = entry
}

func (f *fakeCache) IncrPendingSamples(_ context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.increments++
}

type fakeSampleStore struct {
	mu      sync.Mutex
	samples []*models.TrainingSample
}

func (f *fakeSampleStore) AppendSample(_ context.Context, sample *models.TrainingSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, sample)
	return nil
}

func newTestService(bl Blacklist, cache DecisionCache, samples SampleStore) *Service {
	return New(features.NewExtractor(), nil, bl, cache, samples, nil)
}

func pythonRequestsSignal() *models.VisitorSignal {
	return &models.VisitorSignal{
		IP:          "34.201.10.5",
		UserAgent:   "python-requests/2.28.1",
		Headers:     map[string]string{"host": "example.com", "accept": "*/*"},
		Fingerprint: "fp-script",
	}
}

func chromeSignal() *models.VisitorSignal {
	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.130 Safari/537.36"
	return &models.VisitorSignal{
		IP:        "203.0.113.10",
		UserAgent: ua,
		Referer:   "https://www.google.com/",
		Headers: map[string]string{
			"Host":            "example.com",
			"User-Agent":      ua,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Accept-Encoding": "gzip, deflate, br",
			"Connection":      "keep-alive",
			"Sec-Fetch-Dest":  "document",
		},
		Fingerprint: "fp-human",
		Geo:         &models.GeoInfo{Country: "US", City: "Chicago"},
		Device:      &models.DeviceInfo{Type: models.DeviceDesktop},
		Browser:     &models.BrowserInfo{Name: "Chrome", Version: "120.0.6099.130"},
		OS:          &models.OSInfo{Name: "Windows"},
	}
}

func TestPredictBlacklistShortcut(t *testing.T) {
	bl := &fakeBlacklist{blacklisted: true}
	cache := newFakeCache()
	svc := newTestService(bl, cache, nil)

	decision := svc.Predict(context.Background(), pythonRequestsSignal(), nil)

	if !decision.IsBot || decision.Confidence != 1.0 {
		t.Errorf("decision = %+v, want isBot with confidence 1.0", decision)
	}
	if decision.ModelVersion != "blacklist" {
		t.Errorf("model version = %q, want blacklist", decision.ModelVersion)
	}
	if decision.Reason != "IP found in blacklist" {
		t.Errorf("reason = %q", decision.Reason)
	}
	if !decision.Blacklisted {
		t.Error("Blacklisted flag not set")
	}
	if len(cache.puts) != 0 {
		t.Error("cache written on blacklist shortcut")
	}
}

func TestPredictFailsOpenOnBlacklistError(t *testing.T) {
	// The real client already converts errors to false; verify scoring
	// proceeds normally when the check reports not-blacklisted.
	bl := &fakeBlacklist{blacklisted: false}
	svc := newTestService(bl, newFakeCache(), nil)

	decision := svc.Predict(context.Background(), chromeSignal(), nil)

	if bl.checks != 1 {
		t.Errorf("blacklist checks = %d, want 1", bl.checks)
	}
	if decision.ModelVersion != "rule-based" {
		t.Errorf("model version = %q, want rule-based", decision.ModelVersion)
	}
	if decision.Blacklisted {
		t.Error("Blacklisted flag set on fail-open path")
	}
}

func TestPredictScriptedClientIsBot(t *testing.T) {
	svc := newTestService(&fakeBlacklist{}, newFakeCache(), nil)

	decision := svc.Predict(context.Background(), pythonRequestsSignal(), nil)

	if !decision.IsBot {
		t.Fatalf("python-requests decision = %+v, want bot", decision)
	}
	if decision.Confidence <= 0.6 {
		t.Errorf("confidence = %v, want > 0.6", decision.Confidence)
	}
	if len(decision.Features) != len(features.NewExtractor().Names()) {
		t.Errorf("feature map has %d entries", len(decision.Features))
	}
}

func TestPredictModernBrowserIsHuman(t *testing.T) {
	svc := newTestService(&fakeBlacklist{}, newFakeCache(), nil)

	decision := svc.Predict(context.Background(), chromeSignal(), nil)

	if decision.IsBot {
		t.Fatalf("desktop chrome decision = %+v, want human", decision)
	}
	if decision.Confidence >= 0.4 {
		t.Errorf("confidence = %v, want < 0.4", decision.Confidence)
	}
	if decision.Reason != "no significant bot indicators" {
		t.Errorf("reason = %q", decision.Reason)
	}
}

func TestPredictWritesCache(t *testing.T) {
	cache := newFakeCache()
	svc := newTestService(&fakeBlacklist{}, cache, nil)

	svc.Predict(context.Background(), chromeSignal(), nil)

	entry, ok := cache.puts["fp-human"]
	if !ok {
		t.Fatal("no cache entry written")
	}
	if entry.IsBot {
		t.Errorf("cached entry = %+v, want human", entry)
	}
	if entry.ModelVersion != "rule-based" {
		t.Errorf("cached model version = %q", entry.ModelVersion)
	}
}

func TestPredictRecoversToNeutralDecision(t *testing.T) {
	cache := newFakeCache()
	cache.panics = true
	svc := newTestService(&fakeBlacklist{}, cache, nil)

	decision := svc.Predict(context.Background(), chromeSignal(), nil)

	if decision.IsBot || decision.Confidence != 0.5 {
		t.Errorf("decision = %+v, want neutral", decision)
	}
	if decision.ModelVersion != "error" {
		t.Errorf("model version = %q, want error", decision.ModelVersion)
	}
	if decision.Features == nil {
		t.Error("neutral decision has nil feature map")
	}
}

func TestPredictPromotesHighConfidenceBots(t *testing.T) {
	bl := &fakeBlacklist{}
	svc := newTestService(bl, newFakeCache(), nil)

	decision := svc.Predict(context.Background(), pythonRequestsSignal(), nil)
	if !decision.IsBot {
		t.Fatalf("decision = %+v, want bot", decision)
	}

	if decision.Confidence > promotionConfidence {
		added, _ := waitForAdditions(bl, 1)
		if len(added) != 1 {
			t.Fatalf("blacklist additions = %d, want 1", len(added))
		}
		if added[0].IP != "34.201.10.5" {
			t.Errorf("added IP = %q", added[0].IP)
		}
		if added[0].Reason == "" {
			t.Error("empty blacklist reason")
		}
	}
}

func TestBlacklistDurationTiers(t *testing.T) {
	tests := []struct {
		confidence float64
		wantHours  int
	}{
		{0.99, 72},
		{0.95, 72},
		{0.90, 48},
		{0.85, 48},
		{0.75, 24},
	}

	for _, tt := range tests {
		bl := &fakeBlacklist{}
		svc := newTestService(bl, nil, nil)
		svc.promoteToBlacklist("198.51.100.7", tt.confidence, map[string]float64{})

		_, hours := bl.additions()
		if len(hours) != 1 || hours[0] != tt.wantHours {
			t.Errorf("confidence %v: hours = %v, want %d", tt.confidence, hours, tt.wantHours)
		}
	}
}

func TestBlacklistReasonPriority(t *testing.T) {
	tests := []struct {
		name     string
		features map[string]float64
		want     string
	}{
		{
			"automation outranks everything",
			map[string]float64{
				"is_automation_framework": 1, "headless_risk_score": 1,
				"webdriver_properties": 1, "ua_bot_keyword": 1,
			},
			"Automation tool detected",
		},
		{
			"headless outranks webdriver",
			map[string]float64{"headless_risk_score": 0.7, "webdriver_properties": 1},
			"Headless browser detected",
		},
		{
			"webdriver outranks ua keyword",
			map[string]float64{"webdriver_properties": 1, "ua_crawler_keyword": 1},
			"WebDriver automation detected",
		},
		{
			"crawler keyword",
			map[string]float64{"ua_crawler_keyword": 1, "header_count": 12},
			"Bot or crawler user agent",
		},
		{
			"sparse headers",
			map[string]float64{"header_count": 2},
			"Sparse or anomalous request headers",
		},
		{
			"fallback",
			map[string]float64{"header_count": 12},
			"ML detection",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := blacklistReason(tt.features); got != tt.want {
				t.Errorf("blacklistReason = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubmitSample(t *testing.T) {
	store := &fakeSampleStore{}
	cache := newFakeCache()
	svc := newTestService(&fakeBlacklist{}, cache, store)

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc.SubmitSample(context.Background(), pythonRequestsSignal(), models.LabelBot, 0.9, ts)

	if len(store.samples) != 1 {
		t.Fatalf("stored samples = %d, want 1", len(store.samples))
	}
	sample := store.samples[0]
	if sample.Label != models.LabelBot || sample.Confidence != 0.9 {
		t.Errorf("sample = %+v", sample)
	}
	if !sample.CreatedAt.Equal(ts) {
		t.Errorf("sample timestamp = %v, want %v", sample.CreatedAt, ts)
	}
	if len(sample.Features) == 0 {
		t.Error("sample has empty feature payload")
	}
	if cache.increments != 1 {
		t.Errorf("pending counter increments = %d, want 1", cache.increments)
	}
}

func waitForAdditions(bl *fakeBlacklist, want int) ([]blacklist.Entry, []int) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		added, hours := bl.additions()
		if len(added) >= want {
			return added, hours
		}
		time.Sleep(5 * time.Millisecond)
	}
	return bl.additions()
}
