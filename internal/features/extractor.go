package features

import (
	"math"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/yl2chen/cidranger"

	"github.com/trafficguard/botscore/internal/models"
)

// notInstrumented is the documented default for feature slots whose
// telemetry source does not exist yet (session, TLS, interaction data).
// The slots keep their position so trained models always see the same
// vector length and order.
const notInstrumented = 0.5

var (
	botKeywords     = []string{"bot", "crawl", "spider"}
	crawlerKeywords = []string{"googlebot", "bingbot", "yandex"}

	suspiciousUAPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)python|curl|wget|go-http`),
		regexp.MustCompile(`(?i)headless|phantom|selenium`),
		regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`),
		regexp.MustCompile(`compatible;\s*$`),
	}

	proxyHeaders = []string{"x-forwarded-for", "x-real-ip", "via", "forwarded"}

	highRiskCountries   = []string{"CN", "RU", "IN", "BR", "ID", "NG", "PK"}
	mediumRiskCountries = []string{"TR", "VN", "PH", "BD", "EG", "IR"}

	browserMarketShare = map[string]float64{
		"chrome":  0.65,
		"safari":  0.19,
		"edge":    0.04,
		"firefox": 0.03,
		"opera":   0.02,
	}

	osMarketShare = map[string]float64{
		"windows": 0.70,
		"mac os":  0.17,
		"linux":   0.02,
		"android": 0.41,
		"ios":     0.17,
	}

	majorCityPopulations = map[string]float64{
		"new york":    8_000_000,
		"los angeles": 4_000_000,
		"chicago":     2_700_000,
		"houston":     2_300_000,
		"london":      9_000_000,
		"paris":       2_200_000,
		"tokyo":       14_000_000,
	}

	// Well-known cloud provider blocks (AWS, GCP). A stand-in for a full
	// IP intelligence feed, matched with a radix tree rather than string
	// prefixes so adding real feed data is a config change.
	datacenterCIDRs = []string{
		"13.0.0.0/8",
		"18.0.0.0/8",
		"34.0.0.0/8",
		"35.0.0.0/8",
		"52.0.0.0/8",
		"54.0.0.0/8",
	}
)

// Extractor converts a visitor signal into the fixed-order feature vector
// consumed by classifiers. Extraction is pure and total: malformed or
// missing inputs resolve to documented defaults, never errors.
type Extractor struct {
	datacenter cidranger.Ranger
	now        func() time.Time
}

func NewExtractor() *Extractor {
	ranger := cidranger.NewPCTrieRanger()
	for _, cidr := range datacenterCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		_ = ranger.Insert(cidranger.NewBasicRangerEntry(*network))
	}

	return &Extractor{
		datacenter: ranger,
		now:        time.Now,
	}
}

// Names returns the canonical feature order shared with trained models.
func (e *Extractor) Names() []string {
	return featureNames
}

func (e *Extractor) Count() int {
	return len(featureNames)
}

// Extract builds the feature vector for one signal. Only the time-of-day
// and day-of-week slots vary between calls with identical inputs.
func (e *Extractor) Extract(sig *models.VisitorSignal, targeting *models.CampaignTargeting) []float64 {
	features := make([]float64, 0, len(featureNames))

	features = append(features, e.userAgentFeatures(sig)...)
	features = append(features, e.headerFeatures(sig)...)
	features = append(features, e.geoFeatures(sig, targeting)...)
	features = append(features, e.deviceFeatures(sig, targeting)...)
	features = append(features, e.behavioralFeatures()...)
	features = append(features, e.networkFeatures(sig)...)
	features = append(features, e.headlessFeatures(sig)...)
	features = append(features, e.advancedFingerprintFeatures(sig)...)
	features = append(features, e.behavioralPatternFeatures(sig)...)
	features = append(features, e.evasionFeatures(sig)...)
	features = append(features, e.mlMetaFeatures(sig)...)

	return features
}

// Vector returns the feature-name→value mapping for a vector produced by
// Extract, used for decision explainability.
func (e *Extractor) Vector(values []float64) map[string]float64 {
	m := make(map[string]float64, len(featureNames))
	for i, name := range featureNames {
		if i < len(values) {
			m[name] = values[i]
		}
	}
	return m
}

func (e *Extractor) userAgentFeatures(sig *models.VisitorSignal) []float64 {
	ua := strings.ToLower(sig.UserAgent)

	return []float64{
		float64(len(ua)),
		boolFeature(containsAny(ua, botKeywords)),
		boolFeature(containsAny(ua, crawlerKeywords)),
		boolFeature(sig.Browser == nil || sig.Browser.Name == ""),
		boolFeature(isOutdatedBrowser(sig.Browser)),
		boolFeature(hasSuspiciousUAPattern(ua)),
	}
}

func (e *Extractor) headerFeatures(sig *models.VisitorSignal) []float64 {
	headers := sig.Headers

	hasProxy := false
	for _, h := range proxyHeaders {
		if _, ok := headers[h]; ok {
			hasProxy = true
			break
		}
	}

	return []float64{
		float64(len(headers)),
		boolFeature(hasHeader(headers, "accept-language")),
		boolFeature(hasHeader(headers, "accept-encoding")),
		boolFeature(sig.Referer != ""),
		boolFeature(headers["dnt"] == "1"),
		boolFeature(hasProxy),
		headerAnomalyScore(headers),
	}
}

func (e *Extractor) geoFeatures(sig *models.VisitorSignal, targeting *models.CampaignTargeting) []float64 {
	var country, city string
	if sig.Geo != nil {
		country = sig.Geo.Country
		city = sig.Geo.City
	}

	countryAllowed := true
	if country != "" {
		countryAllowed = targeting.TargetsCountry(country)
	}

	return []float64{
		boolFeature(e.isDatacenterIP(sig.IP)),
		boolFeature(sig.Geo == nil),
		countryRiskScore(country, countryAllowed),
		math.Log1p(estimateCityPopulation(city)),
		0.0, // timezone mismatch needs a timezone database; not instrumented
	}
}

func (e *Extractor) deviceFeatures(sig *models.VisitorSignal, targeting *models.CampaignTargeting) []float64 {
	deviceType := "desktop"
	if sig.Device != nil && sig.Device.Type != "" {
		deviceType = strings.ToLower(string(sig.Device.Type))
	}

	// A device type the campaign does not target gets half suspicion:
	// targeting only dampens, never amplifies.
	suspicionModifier := 1.0
	if !targeting.TargetsDevice(deviceType) {
		suspicionModifier = 0.5
	}

	var browserName, osName string
	if sig.Browser != nil {
		browserName = sig.Browser.Name
	}
	if sig.OS != nil {
		osName = sig.OS.Name
	}

	return []float64{
		boolFeature(deviceType == "mobile"),
		boolFeature(deviceType == "tablet"),
		boolFeature(deviceType == "desktop"),
		boolFeature(deviceType != "mobile" && deviceType != "tablet" && deviceType != "desktop"),
		marketShare(browserMarketShare, browserName),
		marketShare(osMarketShare, osName),
		boolFeature(deviceBrowserMismatch(sig)) * suspicionModifier,
	}
}

func (e *Extractor) behavioralFeatures() []float64 {
	now := e.now().UTC()

	// Monday-based weekday, matching the stored training data.
	weekday := (int(now.Weekday()) + 6) % 7

	return []float64{
		float64(now.Hour()) / 24.0,
		float64(weekday) / 7.0,
		0.0, // session duration: no session telemetry yet
		0.0, // page views per minute: no session telemetry yet
		0.0, // click pattern score: no session telemetry yet
	}
}

func (e *Extractor) networkFeatures(sig *models.VisitorSignal) []float64 {
	asnScore := 0.2
	if e.isDatacenterIP(sig.IP) {
		asnScore = 0.8
	}

	return []float64{
		notInstrumented, // IP reputation: no reputation feed wired
		asnScore,
		notInstrumented, // connection type
		notInstrumented, // TLS fingerprint commonality
		notInstrumented, // TCP fingerprint match
	}
}

func (e *Extractor) headlessFeatures(sig *models.VisitorSignal) []float64 {
	det := DetectHeadless(sig, e.isDatacenterIP)

	return []float64{
		det.Confidence,
		math.Min(float64(det.RiskScore)/100.0, 1.0),
		boolFeature(det.Framework != FrameworkUnknown),
		float64(len(det.Detections)),
		boolFeature(det.Framework == FrameworkPuppeteer),
		boolFeature(det.Framework == FrameworkSelenium),
		boolFeature(det.Framework == FrameworkPhantomJS),
		boolFeature(det.Framework == FrameworkPlaywright),
	}
}

func (e *Extractor) advancedFingerprintFeatures(sig *models.VisitorSignal) []float64 {
	adv := sig.Advanced
	if adv == nil {
		adv = &models.AdvancedFingerprint{}
	}

	features := make([]float64, 0, 33)

	canvas := adv.Canvas
	features = append(features,
		boolFeature(canvas != nil),
		canvasConsistency(canvas),
		canvasEntropy(canvas),
		canvasNoisePattern(canvas),
		canvasTextRendering(canvas),
	)

	webgl := adv.WebGL
	extCount := 0.0
	if webgl != nil {
		extCount = float64(len(webgl.Extensions)) / 50.0
	}
	features = append(features,
		boolFeature(webgl != nil),
		webglVendorSuspicious(webgl),
		webglRendererSuspicious(webgl),
		extCount,
		webglParameterEntropy(webgl),
		webglConsistency(webgl),
	)

	audio := adv.Audio
	features = append(features,
		boolFeature(audio != nil),
		audioEntropy(audio),
		audioConsistency(audio),
		compressorDynamics(audio),
		oscillatorSignature(audio),
	)

	screen := adv.Screen
	device := adv.Device
	features = append(features,
		commonResolution(screen),
		standardPixelRatio(screen),
		normalOrientation(screen),
		normalHardwareConcurrency(device),
		boolFeature(device != nil && device.DeviceMemory > 0),
		boolFeature(device != nil && device.HasConnectionInfo),
	)

	env := adv.Environment
	features = append(features,
		normalPluginCount(env),
		normalLanguageCount(env),
		timezoneConsistency(env),
		platformConsistency(env),
		boolFeature(env != nil && env.CookieEnabled),
		boolFeature(env != nil && env.DoNotTrack),
	)

	perf := adv.Performance
	features = append(features,
		normalRenderingTime(perf),
		canvasRenderSpeed(perf),
		webglRenderSpeed(perf),
		audioProcessingSpeed(perf),
		executionTimingConsistency(perf),
	)

	return features
}

func (e *Extractor) behavioralPatternFeatures(sig *models.VisitorSignal) []float64 {
	headers := sig.Headers
	features := make([]float64, 0, 26)

	// Request patterns need session telemetry.
	features = append(features,
		notInstrumented, notInstrumented, notInstrumented,
		notInstrumented, notInstrumented,
	)

	features = append(features,
		headerOrderScore(headers),
		headerCasingScore(headers),
		headerCompleteness(headers),
		realisticAcceptHeader(headers),
		normalEncodingPreferences(headers),
	)

	features = append(features,
		ipGeoConsistency(sig.IP, sig.Geo),
		residentialASN(sig.IP),
		proxyIndicatorScore(headers),
		0.0, // Tor exit list not wired
		0.1, // VPN detection not wired; low default assumption
		boolFeature(e.isDatacenterIP(sig.IP)),
	)

	// TLS/TCP fingerprints need wire-level capture.
	features = append(features,
		notInstrumented, notInstrumented, notInstrumented,
		notInstrumented, notInstrumented,
	)

	features = append(features,
		requestTimeHuman(e.now().UTC()),
		timezoneHeaderMatch(headers, sig.Geo),
		notInstrumented, // clock skew
		notInstrumented, // response timing
		notInstrumented, // think time
	)

	return features
}

func (e *Extractor) evasionFeatures(sig *models.VisitorSignal) []float64 {
	adv := sig.Advanced
	features := make([]float64, 0, 25)

	features = append(features,
		fingerprintStability(adv),
		fingerprintUniqueness(adv),
		spoofingIndicators(adv),
		inconsistentProperties(adv),
		0.1, // property override detection; low default assumption
	)

	// Mouse/keyboard, JS execution and resource loading patterns need
	// client interaction telemetry.
	for i := 0; i < 15; i++ {
		features = append(features, notInstrumented)
	}

	features = append(features,
		webdriverProperties(sig),
		0.0, // automation globals: no client JS probe yet
		0.0, // debug properties: no client JS probe yet
		notInstrumented,
		performanceTimingScore(adv),
	)

	return features
}

func (e *Extractor) mlMetaFeatures(sig *models.VisitorSignal) []float64 {
	features := make([]float64, 0, 23)

	// Content analysis placeholders.
	for i := 0; i < 5; i++ {
		features = append(features, notInstrumented)
	}

	features = append(features,
		notInstrumented,
		notInstrumented,
		referrerChainLogical(sig.Referer),
		notInstrumented,
		notInstrumented,
	)

	// Advanced evasion and ensemble placeholders.
	for i := 0; i < 10; i++ {
		features = append(features, notInstrumented)
	}

	features = append(features,
		0.3, // browser extension fingerprint
		0.7, // font fingerprint entropy
		0.4, // CSS feature detection
	)

	return features
}

func (e *Extractor) isDatacenterIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	contains, err := e.datacenter.Contains(parsed)
	return err == nil && contains
}

func boolFeature(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasHeader(headers map[string]string, name string) bool {
	_, ok := headers[name]
	return ok
}

func isOutdatedBrowser(browser *models.BrowserInfo) bool {
	if browser == nil || browser.Name == "" || browser.Version == "" {
		return false
	}

	major := 0
	for _, r := range browser.Version {
		if r < '0' || r > '9' {
			break
		}
		major = major*10 + int(r-'0')
	}
	if major == 0 {
		return false
	}

	switch strings.ToLower(browser.Name) {
	case "chrome":
		return major < 90
	case "firefox":
		return major < 85
	case "safari":
		return major < 14
	}
	return false
}

func hasSuspiciousUAPattern(ua string) bool {
	for _, pattern := range suspiciousUAPatterns {
		if pattern.MatchString(ua) {
			return true
		}
	}
	// "java" but not "javascript"; RE2 has no lookahead.
	if strings.Contains(ua, "java") && !strings.Contains(ua, "javascript") {
		return true
	}
	return false
}

func headerAnomalyScore(headers map[string]string) float64 {
	score := 0.0

	for _, h := range []string{"accept", "accept-language", "accept-encoding"} {
		if !hasHeader(headers, h) {
			score += 0.2
		}
	}

	if headers["accept"] == "*/*" {
		score += 0.1
	}
	if headers["accept-language"] == "*" {
		score += 0.2
	}

	switch count := len(headers); {
	case count < 5:
		score += 0.2
	case count > 20:
		score += 0.1
	}

	return math.Min(score, 1.0)
}

func countryRiskScore(country string, allowed bool) float64 {
	if country == "" {
		return 0.5
	}

	base := 0.2
	for _, c := range highRiskCountries {
		if c == country {
			base = 0.8
		}
	}
	for _, c := range mediumRiskCountries {
		if c == country {
			base = 0.6
		}
	}

	if allowed && base > 0.5 {
		// Campaign explicitly targets this country; cut the risk by 30%.
		base = base * 0.7
	} else if !allowed {
		// Outside a non-empty target list, traffic is suspicious regardless
		// of the base score.
		base = math.Max(base, 0.7)
	}

	return base
}

func estimateCityPopulation(city string) float64 {
	cityLower := strings.ToLower(city)
	for name, population := range majorCityPopulations {
		if strings.Contains(cityLower, name) {
			return population
		}
	}
	return 50_000
}

func marketShare(table map[string]float64, name string) float64 {
	if name == "" {
		return 0.0
	}
	if share, ok := table[strings.ToLower(name)]; ok {
		return share
	}
	return 0.01
}

func deviceBrowserMismatch(sig *models.VisitorSignal) bool {
	var deviceType, browserName, osName string
	if sig.Device != nil {
		deviceType = strings.ToLower(string(sig.Device.Type))
	}
	if sig.Browser != nil {
		browserName = strings.ToLower(sig.Browser.Name)
	}
	if sig.OS != nil {
		osName = strings.ToLower(sig.OS.Name)
	}

	// iOS ships Safari; Chrome is the only other mainstream option.
	if osName == "ios" && browserName != "safari" && browserName != "chrome" {
		return true
	}

	if deviceType == "mobile" && (osName == "windows" || osName == "mac os" || osName == "linux") {
		return true
	}

	return false
}

func webdriverProperties(sig *models.VisitorSignal) float64 {
	if strings.Contains(strings.ToLower(sig.UserAgent), "webdriver") {
		return 1.0
	}
	for header := range sig.Headers {
		if strings.HasPrefix(header, "webdriver") {
			return 1.0
		}
	}
	return 0.0
}

func referrerChainLogical(referer string) float64 {
	if referer == "" {
		return 0.5
	}
	if strings.HasPrefix(referer, "http") {
		return 1.0
	}
	return 0.3
}
