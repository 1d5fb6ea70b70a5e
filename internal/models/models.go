package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
)

type Label string

const (
	LabelBot   Label = "bot"
	LabelHuman Label = "human"
)

// GeoInfo is the caller-supplied geolocation of the visitor IP.
type GeoInfo struct {
	Country  string `json:"country,omitempty"`
	City     string `json:"city,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

type DeviceInfo struct {
	Type DeviceType `json:"type,omitempty"`
}

type BrowserInfo struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

type OSInfo struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// CanvasFingerprint holds client-side canvas rendering probes.
type CanvasFingerprint struct {
	Hash     string `json:"hash,omitempty"`
	Geometry string `json:"geometry,omitempty"`
	Text     string `json:"text,omitempty"`
}

type WebGLFingerprint struct {
	Vendor     string            `json:"vendor,omitempty"`
	Renderer   string            `json:"renderer,omitempty"`
	Extensions []string          `json:"extensions,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

type AudioFingerprint struct {
	ContextHash     string  `json:"contextHash,omitempty"`
	CompressorHash  string  `json:"compressorHash,omitempty"`
	OscillatorHash  string  `json:"oscillatorHash,omitempty"`
	SampleRate      float64 `json:"sampleRate,omitempty"`
	MaxChannelCount int     `json:"maxChannelCount,omitempty"`
}

type ScreenFingerprint struct {
	Resolution  string  `json:"resolution,omitempty"`
	PixelRatio  float64 `json:"pixelRatio,omitempty"`
	Orientation string  `json:"orientation,omitempty"`
}

type DeviceFingerprint struct {
	HardwareConcurrency int  `json:"hardwareConcurrency,omitempty"`
	DeviceMemory        int  `json:"deviceMemory,omitempty"`
	MaxTouchPoints      int  `json:"maxTouchPoints,omitempty"`
	HasConnectionInfo   bool `json:"hasConnectionInfo,omitempty"`
}

type EnvironmentFingerprint struct {
	Plugins        []string `json:"plugins,omitempty"`
	Languages      []string `json:"languages,omitempty"`
	Timezone       string   `json:"timezone,omitempty"`
	TimezoneOffset int      `json:"timezoneOffset,omitempty"`
	Platform       string   `json:"platform,omitempty"`
	CookieEnabled  bool     `json:"cookieEnabled,omitempty"`
	DoNotTrack     bool     `json:"doNotTrack,omitempty"`
}

// PerformanceFingerprint holds client-side timing probes in milliseconds.
type PerformanceFingerprint struct {
	RenderingTime       float64 `json:"renderingTime,omitempty"`
	CanvasRenderTime    float64 `json:"canvasRenderTime,omitempty"`
	WebGLRenderTime     float64 `json:"webglRenderTime,omitempty"`
	AudioProcessingTime float64 `json:"audioProcessingTime,omitempty"`
}

// AdvancedFingerprint aggregates the optional client-side probe payload.
// Any sub-record may be nil; feature extraction resolves absence to
// documented neutral defaults.
type AdvancedFingerprint struct {
	Canvas      *CanvasFingerprint      `json:"canvas,omitempty"`
	WebGL       *WebGLFingerprint       `json:"webgl,omitempty"`
	Audio       *AudioFingerprint       `json:"audio,omitempty"`
	Screen      *ScreenFingerprint      `json:"screen,omitempty"`
	Device      *DeviceFingerprint      `json:"device,omitempty"`
	Environment *EnvironmentFingerprint `json:"environment,omitempty"`
	Performance *PerformanceFingerprint `json:"performance,omitempty"`
}

// VisitorSignal is the raw per-request input to scoring. Immutable once
// received; headers are normalized to lower-case keys at the boundary.
type VisitorSignal struct {
	IP          string               `json:"ip"`
	UserAgent   string               `json:"userAgent"`
	Referer     string               `json:"referer,omitempty"`
	Headers     map[string]string    `json:"headers"`
	Fingerprint string               `json:"fingerprintHash"`
	Geo         *GeoInfo             `json:"geo,omitempty"`
	Device      *DeviceInfo          `json:"device,omitempty"`
	Browser     *BrowserInfo         `json:"browser,omitempty"`
	OS          *OSInfo              `json:"os,omitempty"`
	Advanced    *AdvancedFingerprint `json:"advancedFingerprint,omitempty"`
}

// NormalizeHeaders lower-cases header keys in place of the original map.
// Called once when the signal enters the system.
func (s *VisitorSignal) NormalizeHeaders() {
	if len(s.Headers) == 0 {
		return
	}
	normalized := make(map[string]string, len(s.Headers))
	for k, v := range s.Headers {
		normalized[strings.ToLower(k)] = v
	}
	s.Headers = normalized
}

// CampaignTargeting dampens feature weights for traffic the campaign
// actually wants; it is never persisted with the signal.
type CampaignTargeting struct {
	Countries []string `json:"countries,omitempty"`
	Devices   []string `json:"devices,omitempty"`
}

func (t *CampaignTargeting) TargetsCountry(country string) bool {
	if t == nil || len(t.Countries) == 0 {
		return true
	}
	for _, c := range t.Countries {
		if c == country {
			return true
		}
	}
	return false
}

func (t *CampaignTargeting) TargetsDevice(device string) bool {
	if t == nil || len(t.Devices) == 0 {
		return true
	}
	for _, d := range t.Devices {
		if strings.EqualFold(d, device) {
			return true
		}
	}
	return false
}

// Decision is the outcome of one scoring call. Built once, never mutated.
type Decision struct {
	IsBot        bool               `json:"isBot"`
	Confidence   float64            `json:"confidence"`
	Features     map[string]float64 `json:"features"`
	ModelVersion string             `json:"modelVersion"`
	Reason       string             `json:"reason"`
	Blacklisted  bool               `json:"blacklisted"`
}

// Metrics are the held-out evaluation results recorded with each trained
// model version.
type Metrics struct {
	Accuracy        float64 `json:"accuracy"`
	Precision       float64 `json:"precision"`
	Recall          float64 `json:"recall"`
	F1              float64 `json:"f1_score"`
	ROCAUC          float64 `json:"roc_auc"`
	TrainingSamples int     `json:"training_samples"`
}

// VersionMeta is the durable metadata of a stored model version.
type VersionMeta struct {
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	FeatureCount int       `json:"feature_count"`
	Metrics      Metrics   `json:"metrics"`
}

// TrainingSample is one labeled observation in the sample store.
type TrainingSample struct {
	ID          uuid.UUID `db:"id"`
	Fingerprint string    `db:"visitor_fingerprint"`
	Features    []byte    `db:"features"`
	Label       Label     `db:"label"`
	Confidence  float64   `db:"confidence"`
	CreatedAt   time.Time `db:"created_at"`
}

// CacheEntry is the advisory cached copy of a recent decision.
type CacheEntry struct {
	IsBot        bool      `json:"is_bot"`
	Confidence   float64   `json:"confidence"`
	ModelVersion string    `json:"model_version"`
	Timestamp    time.Time `json:"timestamp"`
}
