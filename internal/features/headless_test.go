package features

import (
	"strings"
	"testing"

	"github.com/trafficguard/botscore/internal/models"
)

func TestDetectHeadlessThreshold(t *testing.T) {
	tests := []struct {
		name     string
		signal   *models.VisitorSignal
		headless bool
	}{
		{
			name: "headless chrome UA with sparse headers",
			signal: &models.VisitorSignal{
				UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) HeadlessChrome/118.0.0.0 Safari/537.36",
				Headers:   map[string]string{},
			},
			// headless keyword x2 (HeadlessChrome + Headless match) pushes
			// risk well past 60 alone
			headless: true,
		},
		{
			name:     "empty signal",
			signal:   &models.VisitorSignal{Headers: map[string]string{}},
			headless: false,
		},
		{
			name: "regular desktop chrome",
			signal: &models.VisitorSignal{
				UserAgent: chromeUA,
				Headers: map[string]string{
					"accept":          "text/html",
					"accept-language": "en-US,en;q=0.9",
					"accept-encoding": "gzip, deflate, br",
					"sec-fetch-dest":  "document",
					"user-agent":      chromeUA,
				},
			},
			headless: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DetectHeadless(tt.signal, nil)
			if result.IsHeadless != tt.headless {
				t.Errorf("IsHeadless = %v (risk %d, detections %v), want %v",
					result.IsHeadless, result.RiskScore, result.Detections, tt.headless)
			}
			if result.RiskScore >= 60 != result.IsHeadless {
				t.Errorf("IsHeadless inconsistent with risk %d", result.RiskScore)
			}
		})
	}
}

func TestDetectHeadlessConfidenceCapped(t *testing.T) {
	sig := &models.VisitorSignal{
		UserAgent: "headless automation webdriver",
		Headers:   map[string]string{},
	}
	result := DetectHeadless(sig, func(string) bool { return true })

	if result.Confidence > 1.0 {
		t.Errorf("Confidence = %v, want <= 1.0", result.Confidence)
	}
	if !result.IsHeadless {
		t.Errorf("expected headless for stacked indicators, risk %d", result.RiskScore)
	}
}

func TestDetectHeadlessFrameworkFirstMatch(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want Framework
	}{
		{
			"headless chrome wins over later groups",
			"Mozilla/5.0 (Windows NT 10.0) HeadlessChrome/118.0.0.0",
			FrameworkChromeHeadless,
		},
		{
			"phantomjs",
			"Mozilla/5.0 (Windows NT 10.0) PhantomJS/2.1.1",
			FrameworkPhantomJS,
		},
		{
			"automation chrome version maps to puppeteer",
			"Mozilla/5.0 (Windows NT 10.0) Chrome/91.0.4472.124 Safari/537.36",
			FrameworkPuppeteer,
		},
		{
			"plain chrome stays unknown",
			chromeUA,
			FrameworkUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DetectHeadless(&models.VisitorSignal{UserAgent: tt.ua, Headers: map[string]string{}}, nil)
			if result.Framework != tt.want {
				t.Errorf("Framework = %v, want %v", result.Framework, tt.want)
			}
		})
	}
}

func TestDetectHeadlessFingerprintSignals(t *testing.T) {
	sig := &models.VisitorSignal{
		UserAgent: chromeUA,
		Headers: map[string]string{
			"accept":          "text/html",
			"accept-language": "en-US,en;q=0.9",
			"accept-encoding": "gzip",
			"sec-fetch-mode":  "navigate",
		},
		Advanced: &models.AdvancedFingerprint{
			Canvas: &models.CanvasFingerprint{
				Hash: "da39a3ee5e6b4b0d3255bfef95601890afd80709",
			},
			WebGL: &models.WebGLFingerprint{
				Vendor:   "Google Inc.",
				Renderer: "SwiftShader",
			},
			Environment: &models.EnvironmentFingerprint{
				Plugins:   []string{},
				Languages: []string{"en-US"},
				Timezone:  "UTC",
			},
		},
	}

	result := DetectHeadless(sig, nil)
	if !result.IsHeadless {
		t.Errorf("expected headless, risk %d detections %v", result.RiskScore, result.Detections)
	}

	wantDetections := []string{
		"known headless canvas signature",
		"software-rendered WebGL detected",
		"no browser plugins detected",
		"UTC timezone detected",
	}
	for _, want := range wantDetections {
		found := false
		for _, d := range result.Detections {
			if strings.Contains(d, want) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing detection %q in %v", want, result.Detections)
		}
	}
}

func TestDetectHeadlessHostingIP(t *testing.T) {
	sig := &models.VisitorSignal{IP: "34.1.2.3", UserAgent: chromeUA, Headers: map[string]string{
		"accept": "text/html", "accept-language": "en-GB", "accept-encoding": "gzip", "sec-fetch-site": "none",
	}}

	without := DetectHeadless(sig, nil)
	with := DetectHeadless(sig, func(string) bool { return true })

	if with.RiskScore != without.RiskScore+20 {
		t.Errorf("hosting IP risk delta = %d, want 20", with.RiskScore-without.RiskScore)
	}
}
