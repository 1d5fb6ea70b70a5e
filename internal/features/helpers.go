package features

import (
	"math"
	"strings"
	"time"

	"github.com/trafficguard/botscore/internal/models"
)

var (
	suspiciousWebGLVendors   = []string{"brian paul", "mesa project", "vmware", "swiftshader"}
	suspiciousWebGLRenderers = []string{"swiftshader", "mesa offscreen", "llvmpipe", "software"}

	commonResolutions = map[string]bool{
		"1920x1080": true,
		"1366x768":  true,
		"1440x900":  true,
		"1536x864":  true,
		"1280x720":  true,
		"1600x900":  true,
		"2560x1440": true,
		"3840x2160": true,
	}

	standardPixelRatios = []float64{1.0, 1.25, 1.5, 2.0, 2.25, 3.0}
)

func canvasConsistency(canvas *models.CanvasFingerprint) float64 {
	if canvas == nil {
		return 0.0
	}
	if canvas.Hash == "" || canvas.Hash == "no-canvas" {
		return 0.0
	}
	if len(canvas.Hash) < 10 || canvas.Geometry == canvas.Text {
		return 0.2
	}
	return 1.0
}

func canvasEntropy(canvas *models.CanvasFingerprint) float64 {
	if canvas == nil || canvas.Hash == "" || canvas.Hash == "no-canvas" {
		return 0.0
	}
	unique := uniqueRunes(canvas.Hash)
	maxEntropy := len(canvas.Hash)
	if maxEntropy > 16 {
		maxEntropy = 16
	}
	if maxEntropy == 0 {
		return 0.0
	}
	return float64(unique) / float64(maxEntropy)
}

func canvasNoisePattern(canvas *models.CanvasFingerprint) float64 {
	if canvas == nil {
		return 0.0
	}
	if canvas.Hash != "" && uniqueRunes(canvas.Hash) < 4 {
		return 1.0
	}
	if canvas.Geometry != "" && canvas.Geometry == canvas.Text {
		return 1.0
	}
	return 0.0
}

func canvasTextRendering(canvas *models.CanvasFingerprint) float64 {
	if canvas == nil || canvas.Text == "" {
		return 0.0
	}
	if len(canvas.Text) < 10 {
		return 0.2
	}
	return 1.0
}

func webglVendorSuspicious(webgl *models.WebGLFingerprint) float64 {
	if webgl == nil {
		return 0.0
	}
	vendor := strings.ToLower(webgl.Vendor)
	for _, s := range suspiciousWebGLVendors {
		if strings.Contains(vendor, s) {
			return 1.0
		}
	}
	return 0.0
}

func webglRendererSuspicious(webgl *models.WebGLFingerprint) float64 {
	if webgl == nil {
		return 0.0
	}
	renderer := strings.ToLower(webgl.Renderer)
	for _, s := range suspiciousWebGLRenderers {
		if strings.Contains(renderer, s) {
			return 1.0
		}
	}
	return 0.0
}

func webglParameterEntropy(webgl *models.WebGLFingerprint) float64 {
	if webgl == nil || len(webgl.Parameters) == 0 {
		return 0.0
	}
	seen := make(map[string]bool, len(webgl.Parameters))
	for _, v := range webgl.Parameters {
		seen[v] = true
	}
	return float64(len(seen)) / float64(len(webgl.Parameters))
}

func webglConsistency(webgl *models.WebGLFingerprint) float64 {
	if webgl == nil {
		return 0.0
	}
	vendor := strings.ToLower(webgl.Vendor)
	renderer := strings.ToLower(webgl.Renderer)
	for _, brand := range []string{"nvidia", "amd", "intel"} {
		if strings.Contains(vendor, brand) && !strings.Contains(renderer, brand) {
			return 0.2
		}
	}
	return 1.0
}

func audioEntropy(audio *models.AudioFingerprint) float64 {
	if audio == nil {
		return 0.0
	}
	all := audio.ContextHash + audio.CompressorHash + audio.OscillatorHash
	if all == "" {
		return 0.0
	}
	return math.Min(float64(uniqueRunes(all))/16.0, 1.0)
}

func audioConsistency(audio *models.AudioFingerprint) float64 {
	if audio == nil {
		return 0.0
	}
	if audio.SampleRate < 8000 || audio.SampleRate > 192000 {
		return 0.2
	}
	if audio.MaxChannelCount < 1 || audio.MaxChannelCount > 32 {
		return 0.2
	}
	return 1.0
}

func compressorDynamics(audio *models.AudioFingerprint) float64 {
	if audio == nil || audio.CompressorHash == "" {
		return 0.0
	}
	if len(audio.CompressorHash) < 8 {
		return 0.2
	}
	return 1.0
}

func oscillatorSignature(audio *models.AudioFingerprint) float64 {
	if audio == nil || audio.OscillatorHash == "" {
		return 0.0
	}
	if len(audio.OscillatorHash) < 8 {
		return 0.2
	}
	return 1.0
}

func commonResolution(screen *models.ScreenFingerprint) float64 {
	if screen == nil {
		return 0.5
	}
	if commonResolutions[screen.Resolution] {
		return 1.0
	}
	return 0.3
}

func standardPixelRatio(screen *models.ScreenFingerprint) float64 {
	if screen == nil {
		return 0.5
	}
	for _, r := range standardPixelRatios {
		if screen.PixelRatio == r {
			return 1.0
		}
	}
	return 0.3
}

func normalOrientation(screen *models.ScreenFingerprint) float64 {
	if screen == nil {
		return 0.5
	}
	if screen.Orientation == "landscape-primary" || screen.Orientation == "portrait-primary" {
		return 1.0
	}
	return 0.3
}

func normalHardwareConcurrency(device *models.DeviceFingerprint) float64 {
	if device == nil {
		return 0.5
	}
	if device.HardwareConcurrency >= 1 && device.HardwareConcurrency <= 32 {
		return 1.0
	}
	return 0.3
}

func normalPluginCount(env *models.EnvironmentFingerprint) float64 {
	if env == nil {
		return 0.5
	}
	if len(env.Plugins) <= 20 {
		return 1.0
	}
	return 0.3
}

func normalLanguageCount(env *models.EnvironmentFingerprint) float64 {
	if env == nil {
		return 0.5
	}
	count := len(env.Languages)
	if count >= 1 && count <= 10 {
		return 1.0
	}
	return 0.3
}

func timezoneConsistency(env *models.EnvironmentFingerprint) float64 {
	if env == nil {
		return 0.5
	}
	if env.Timezone == "UTC" && env.TimezoneOffset != 0 {
		return 0.2
	}
	return 1.0
}

func platformConsistency(env *models.EnvironmentFingerprint) float64 {
	if env == nil {
		return 0.5
	}
	platform := strings.ToLower(env.Platform)
	if strings.Contains(platform, "win") && anyLangContains(env.Languages, "zh") {
		return 1.0
	}
	if strings.Contains(platform, "mac") && anyLangContains(env.Languages, "en") {
		return 1.0
	}
	return 0.8
}

func normalRenderingTime(perf *models.PerformanceFingerprint) float64 {
	if perf == nil {
		return 0.5
	}
	switch {
	case perf.RenderingTime >= 10 && perf.RenderingTime <= 500:
		return 1.0
	case perf.RenderingTime < 1:
		return 0.1
	default:
		return 0.5
	}
}

func canvasRenderSpeed(perf *models.PerformanceFingerprint) float64 {
	if perf == nil {
		return 0.5
	}
	switch {
	case perf.CanvasRenderTime >= 5 && perf.CanvasRenderTime <= 200:
		return 1.0
	case perf.CanvasRenderTime < 1:
		return 0.2
	default:
		return 0.6
	}
}

func webglRenderSpeed(perf *models.PerformanceFingerprint) float64 {
	if perf == nil {
		return 0.5
	}
	switch {
	case perf.WebGLRenderTime >= 2 && perf.WebGLRenderTime <= 100:
		return 1.0
	case perf.WebGLRenderTime < 1:
		return 0.2
	default:
		return 0.6
	}
}

func audioProcessingSpeed(perf *models.PerformanceFingerprint) float64 {
	if perf == nil {
		return 0.5
	}
	switch {
	case perf.AudioProcessingTime >= 1 && perf.AudioProcessingTime <= 50:
		return 1.0
	case perf.AudioProcessingTime < 0.5:
		return 0.2
	default:
		return 0.6
	}
}

func executionTimingConsistency(perf *models.PerformanceFingerprint) float64 {
	if perf == nil {
		return 0.5
	}
	if perf.CanvasRenderTime > 0 && perf.WebGLRenderTime > 0 {
		ratio := perf.CanvasRenderTime / perf.WebGLRenderTime
		if ratio >= 0.1 && ratio <= 10 {
			return 1.0
		}
		return 0.3
	}
	return 0.7
}

func headerOrderScore(headers map[string]string) float64 {
	// Map iteration loses wire order, so only presence of the headers a
	// browser sends first is scored.
	if len(headers) < 3 {
		return 0.5
	}
	found := 0
	for _, h := range []string{"host", "user-agent", "accept"} {
		if _, ok := headers[h]; ok {
			found++
		}
	}
	return float64(found) / 3.0
}

func headerCasingScore(headers map[string]string) float64 {
	if len(headers) == 0 {
		return 0.5
	}
	proper := 0
	for header := range headers {
		if header == strings.ToLower(header) || header == canonicalCasing(header) {
			proper++
		}
	}
	return float64(proper) / float64(len(headers))
}

func canonicalCasing(header string) string {
	parts := strings.Split(header, "-")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
	}
	return strings.Join(parts, "-")
}

func headerCompleteness(headers map[string]string) float64 {
	if len(headers) == 0 {
		return 0.0
	}
	required := []string{"user-agent", "accept", "host"}
	common := []string{"accept-language", "accept-encoding", "connection"}

	requiredScore := countPresent(headers, required) / float64(len(required))
	commonScore := countPresent(headers, common) / float64(len(common))

	return requiredScore*0.7 + commonScore*0.3
}

func realisticAcceptHeader(headers map[string]string) float64 {
	if len(headers) == 0 {
		return 0.5
	}
	accept := headers["accept"]
	switch {
	case accept == "":
		return 0.0
	case accept == "*/*":
		return 0.2
	case strings.Contains(accept, "text/html") && strings.Contains(accept, "application/xhtml+xml"):
		return 1.0
	case len(accept) < 10:
		return 0.3
	default:
		return 0.7
	}
}

func normalEncodingPreferences(headers map[string]string) float64 {
	if len(headers) == 0 {
		return 0.5
	}
	encoding := headers["accept-encoding"]
	if encoding == "" {
		return 0.3
	}
	found := 0
	for _, enc := range []string{"gzip", "deflate", "br"} {
		if strings.Contains(encoding, enc) {
			found++
		}
	}
	return float64(found) / 3.0
}

func ipGeoConsistency(ip string, geo *models.GeoInfo) float64 {
	if ip == "" || geo == nil {
		return 0.5
	}
	// Needs an independent geolocation lookup to verify; assume mostly
	// consistent until one is wired.
	return 0.8
}

func residentialASN(ip string) float64 {
	if ip == "" {
		return 0.5
	}
	return 0.7
}

func proxyIndicatorScore(headers map[string]string) float64 {
	if len(headers) == 0 {
		return 0.0
	}
	indicators := []string{
		"x-forwarded-for", "x-real-ip", "x-proxy-connection",
		"via", "forwarded", "x-forwarded-host",
	}
	count := countPresent(headers, indicators)
	return math.Min(count/2.0, 1.0)
}

func requestTimeHuman(now time.Time) float64 {
	if hour := now.Hour(); hour >= 6 && hour <= 23 {
		return 1.0
	}
	return 0.3
}

func timezoneHeaderMatch(headers map[string]string, geo *models.GeoInfo) float64 {
	if len(headers) == 0 || geo == nil {
		return 0.5
	}
	return 0.8
}

func fingerprintStability(adv *models.AdvancedFingerprint) float64 {
	if adv == nil {
		return 0.5
	}
	// Needs cross-request history to measure drift.
	return 0.8
}

func fingerprintUniqueness(adv *models.AdvancedFingerprint) float64 {
	if adv == nil {
		return 0.0
	}
	components := 0
	if adv.Canvas != nil {
		components++
	}
	if adv.WebGL != nil {
		components++
	}
	if adv.Audio != nil {
		components++
	}
	if adv.Screen != nil {
		components++
	}
	if adv.Device != nil {
		components++
	}
	if adv.Environment != nil {
		components++
	}
	return math.Min(float64(components)/6.0, 1.0)
}

func spoofingIndicators(adv *models.AdvancedFingerprint) float64 {
	if adv == nil {
		return 0.0
	}
	score := 0.0

	if adv.Canvas != nil && adv.Canvas.Hash == adv.Canvas.Geometry {
		score += 0.3
	}
	if adv.WebGL != nil && adv.WebGL.Vendor == "Google Inc." &&
		strings.Contains(adv.WebGL.Renderer, "SwiftShader") {
		score += 0.3
	}
	if adv.Environment != nil && len(adv.Environment.Plugins) == 0 && adv.Environment.CookieEnabled {
		score += 0.2
	}

	return math.Min(score, 1.0)
}

func inconsistentProperties(adv *models.AdvancedFingerprint) float64 {
	if adv == nil {
		return 0.0
	}
	score := 0.0

	if adv.Screen != nil && adv.Device != nil &&
		adv.Screen.Resolution == "1920x1080" && adv.Device.MaxTouchPoints > 0 {
		// Desktop resolution on a touch device.
		score += 0.2
	}

	if adv.Environment != nil {
		platform := strings.ToLower(adv.Environment.Platform)
		if strings.Contains(platform, "win") && !anyLangContains(adv.Environment.Languages, "en") {
			score += 0.1
		}
	}

	return math.Min(score, 1.0)
}

func performanceTimingScore(adv *models.AdvancedFingerprint) float64 {
	if adv == nil || adv.Performance == nil {
		return 0.5
	}
	t := adv.Performance.RenderingTime
	switch {
	case t < 1:
		return 1.0 // sub-millisecond render, almost certainly automated
	case t >= 10 && t <= 100:
		return 0.0
	default:
		return 0.5
	}
}

func uniqueRunes(s string) int {
	seen := make(map[rune]bool, len(s))
	for _, r := range s {
		seen[r] = true
	}
	return len(seen)
}

func anyLangContains(languages []string, sub string) bool {
	for _, lang := range languages {
		if strings.Contains(lang, sub) {
			return true
		}
	}
	return false
}

func countPresent(headers map[string]string, names []string) float64 {
	count := 0.0
	for _, name := range names {
		if _, ok := headers[name]; ok {
			count++
		}
	}
	return count
}
