package features

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/trafficguard/botscore/internal/models"
)

// Framework is the automation framework identified by headless detection.
type Framework string

const (
	FrameworkPuppeteer      Framework = "puppeteer"
	FrameworkSelenium       Framework = "selenium"
	FrameworkPlaywright     Framework = "playwright"
	FrameworkPhantomJS      Framework = "phantomjs"
	FrameworkChromeHeadless Framework = "chrome_headless"
	FrameworkUnknown        Framework = "unknown"
)

// headlessThreshold is the risk score at or above which a signal is
// classified as headless.
const headlessThreshold = 60

// HeadlessResult is the outcome of one headless detection pass.
type HeadlessResult struct {
	IsHeadless bool
	Confidence float64
	Framework  Framework
	Detections []string
	RiskScore  int
}

var (
	headlessKeywords = []string{
		"HeadlessChrome", "PhantomJS", "SlimerJS", "HtmlUnit",
		"Headless", "headless", "automation", "webdriver",
	}

	// Chrome builds pinned by popular automation framework releases.
	automationChromeVersions = map[string]bool{
		"88.0.4324.150": true,
		"91.0.4472.124": true,
		"92.0.4515.107": true,
	}

	chromeVersionPattern = regexp.MustCompile(`Chrome/(\d+\.\d+\.\d+\.\d+)`)
	placeholderVersion   = regexp.MustCompile(`^\d+\.0\.0\.0$`)

	modernChromeHeaders = []string{
		"x-chrome-connected", "x-devtools-emulate-network-conditions-client-id",
		"sec-ch-ua-mobile", "sec-fetch-dest", "sec-fetch-mode", "sec-fetch-site",
	}

	knownHeadlessCanvasHashes = map[string]bool{
		"da39a3ee5e6b4b0d3255bfef95601890afd80709": true, // empty canvas
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4": true,
	}

	headlessWebGLVendors = []string{
		"Brian Paul", "Mesa Project", "VMware, Inc.", "SwiftShader",
	}
)

// DetectHeadless scores a visitor signal for headless-browser and
// automation-framework indicators. Risk accumulates additively across
// independent signal groups evaluated in a fixed order; framework
// identification is best-effort and keeps the first match.
func DetectHeadless(sig *models.VisitorSignal, isHostingIP func(string) bool) HeadlessResult {
	d := &headlessDetection{framework: FrameworkUnknown}

	d.analyzeUserAgent(sig.UserAgent)
	d.analyzeHeaders(sig.Headers)
	if sig.Advanced != nil {
		d.analyzeFingerprint(sig.Advanced)
	}
	d.analyzeEnvironment(sig.Browser, sig.OS)
	d.analyzeBehavior(sig, isHostingIP)

	confidence := float64(d.risk) / 100.0
	if confidence > 1.0 {
		confidence = 1.0
	}

	return HeadlessResult{
		IsHeadless: d.risk >= headlessThreshold,
		Confidence: confidence,
		Framework:  d.framework,
		Detections: d.detections,
		RiskScore:  d.risk,
	}
}

type headlessDetection struct {
	risk       int
	detections []string
	framework  Framework
}

func (d *headlessDetection) flag(score int, detection string) {
	d.risk += score
	d.detections = append(d.detections, detection)
}

func (d *headlessDetection) identify(framework Framework) {
	if d.framework == FrameworkUnknown {
		d.framework = framework
	}
}

func (d *headlessDetection) analyzeUserAgent(ua string) {
	if ua == "" {
		d.flag(20, "empty user agent")
		return
	}

	for _, keyword := range headlessKeywords {
		if strings.Contains(ua, keyword) {
			d.flag(30, "headless keyword detected: "+keyword)

			switch {
			case strings.Contains(ua, "HeadlessChrome") || strings.Contains(ua, "Headless"):
				d.identify(FrameworkChromeHeadless)
			case strings.Contains(ua, "PhantomJS"):
				d.identify(FrameworkPhantomJS)
			}
		}
	}

	if strings.Contains(ua, "Chrome") && d.framework == FrameworkUnknown {
		if m := chromeVersionPattern.FindStringSubmatch(ua); m != nil {
			if automationChromeVersions[m[1]] {
				d.flag(25, "automation Chrome version: "+m[1])
				d.identify(FrameworkPuppeteer)
			}
		}
	}

	hasPlatform := false
	for _, platform := range []string{"Windows", "Macintosh", "Linux", "X11"} {
		if strings.Contains(ua, platform) {
			hasPlatform = true
			break
		}
	}
	if !hasPlatform {
		d.flag(15, "missing platform information in user agent")
	}

	if strings.Count(ua, "(") != strings.Count(ua, ")") {
		d.flag(10, "malformed user agent structure")
	}

	switch {
	case len(ua) < 50:
		d.flag(10, "unusually short user agent")
	case len(ua) > 500:
		d.flag(5, "unusually long user agent")
	}
}

func (d *headlessDetection) analyzeHeaders(headers map[string]string) {
	var missing []string
	for _, h := range []string{"accept", "accept-language", "accept-encoding"} {
		if _, ok := headers[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		d.flag(len(missing)*10, "missing headers: "+strings.Join(missing, ", "))
	}

	if lang := headers["accept-language"]; lang == "en-US" || lang == "*" {
		d.flag(10, "suspicious accept-language header")
	}

	modernCount := 0
	for _, h := range modernChromeHeaders {
		if _, ok := headers[h]; ok {
			modernCount++
		}
	}
	if modernCount > 8 {
		d.flag(15, "too many automation-related headers")
	} else if modernCount == 0 && strings.Contains(strings.ToLower(headers["user-agent"]), "chrome") {
		d.flag(10, "missing modern Chrome headers")
	}

	if conn, ok := headers["connection"]; ok {
		conn = strings.ToLower(conn)
		if conn != "keep-alive" && conn != "close" {
			d.flag(5, "unusual connection header: "+conn)
		}
	}
}

func (d *headlessDetection) analyzeFingerprint(adv *models.AdvancedFingerprint) {
	if canvas := adv.Canvas; canvas != nil {
		if knownHeadlessCanvasHashes[canvas.Hash] {
			d.flag(25, "known headless canvas signature")
		}
		if canvas.Text != "" && canvas.Text == canvas.Geometry {
			d.flag(15, "canvas text rendering anomaly")
		}
	}

	if webgl := adv.WebGL; webgl != nil {
		for _, vendor := range headlessWebGLVendors {
			if strings.Contains(webgl.Vendor, vendor) {
				d.flag(20, "suspicious WebGL vendor: "+vendor)
			}
		}
		if strings.Contains(webgl.Renderer, "SwiftShader") ||
			strings.Contains(webgl.Renderer, "Mesa OffScreen") {
			d.flag(20, "software-rendered WebGL detected")
		}
	}

	if screen := adv.Screen; screen != nil {
		if screen.PixelRatio == 1.0 {
			d.flag(5, "default pixel ratio detected")
		}
	}

	if device := adv.Device; device != nil {
		if device.HardwareConcurrency > 16 || device.HardwareConcurrency == 1 {
			d.flag(10, fmt.Sprintf("unusual hardware concurrency: %d", device.HardwareConcurrency))
		}
		if device.DeviceMemory == 0 {
			d.flag(5, "device memory API not available")
		}
	}

	if env := adv.Environment; env != nil {
		switch count := len(env.Plugins); {
		case count == 0:
			d.flag(15, "no browser plugins detected")
		case count < 3:
			d.flag(10, "unusually few plugins")
		}

		if len(env.Languages) == 1 && env.Languages[0] == "en-US" {
			d.flag(10, "only default language detected")
		}

		if env.Timezone == "UTC" {
			d.flag(10, "UTC timezone detected")
		}
	}
}

func (d *headlessDetection) analyzeEnvironment(browser *models.BrowserInfo, os *models.OSInfo) {
	if browser == nil {
		return
	}
	if placeholderVersion.MatchString(browser.Version) {
		d.flag(15, "suspicious browser version pattern")
	}
}

func (d *headlessDetection) analyzeBehavior(sig *models.VisitorSignal, isHostingIP func(string) bool) {
	if isHostingIP != nil && isHostingIP(sig.IP) {
		d.flag(20, "request from hosting provider IP")
	}
}
