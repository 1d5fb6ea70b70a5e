// Package rulemodel is the heuristic fallback classifier used whenever no
// trained model is active. Scoring is a declarative indicator table: each
// indicator contributes points within its category, category sums are
// clipped to [0,1], weighted, and summed into the final bot score.
package rulemodel

import "math"

type Category string

const (
	CategoryUserAgent Category = "user_agent"
	CategoryHeaders   Category = "headers"
	CategoryGeo       Category = "geo"
	CategoryDevice    Category = "device"
	CategoryNetwork   Category = "network"
)

// categoryWeights sum to 1.0. The values are load-bearing: they define the
// fallback scoring behavior and are covered by tests.
var categoryWeights = map[Category]float64{
	CategoryUserAgent: 0.30,
	CategoryHeaders:   0.25,
	CategoryGeo:       0.20,
	CategoryDevice:    0.15,
	CategoryNetwork:   0.10,
}

// Indicator is one scored heuristic. Activation returns how strongly the
// indicator fires in [0,1]; the contribution is Points × activation.
type Indicator struct {
	Name       string
	Category   Category
	Points     float64
	Activation func(v View) float64
}

func threshold(name string, fallback float64) func(View) float64 {
	return func(v View) float64 {
		if v.Get(name, fallback) > 0.5 {
			return 1.0
		}
		return 0.0
	}
}

func inverted(name string, fallback float64) func(View) float64 {
	return func(v View) float64 {
		if v.Get(name, fallback) < 0.5 {
			return 1.0
		}
		return 0.0
	}
}

func proportional(name string, fallback float64) func(View) float64 {
	return func(v View) float64 {
		return v.Get(name, fallback)
	}
}

var indicators = []Indicator{
	// User agent
	{"bot keyword", CategoryUserAgent, 0.8, threshold("ua_bot_keyword", 0)},
	{"crawler keyword", CategoryUserAgent, 0.9, threshold("ua_crawler_keyword", 0)},
	{"suspicious pattern", CategoryUserAgent, 0.7, threshold("ua_suspicious_pattern", 0)},
	{"missing browser", CategoryUserAgent, 0.5, threshold("ua_missing_browser", 0)},
	{"outdated browser", CategoryUserAgent, 0.6, threshold("ua_outdated_browser", 0)},
	{"very short user agent", CategoryUserAgent, 0.6, func(v View) float64 {
		if v.Get("ua_length", 100) < 20 {
			return 1.0
		}
		return 0.0
	}},
	{"very long user agent", CategoryUserAgent, 0.4, func(v View) float64 {
		if v.Get("ua_length", 100) > 500 {
			return 1.0
		}
		return 0.0
	}},

	// Headers
	{"header anomalies", CategoryHeaders, 1.2, proportional("header_anomaly_score", 0)},
	{"missing accept-language", CategoryHeaders, 0.4, inverted("has_accept_language", 0)},
	{"missing accept-encoding", CategoryHeaders, 0.3, inverted("has_accept_encoding", 0)},
	{"missing referer", CategoryHeaders, 0.2, inverted("has_referer", 0)},
	{"proxy headers present", CategoryHeaders, 0.5, threshold("has_proxy_headers", 0)},
	{"too few headers", CategoryHeaders, 0.4, func(v View) float64 {
		if v.Get("header_count", 10) < 5 {
			return 1.0
		}
		return 0.0
	}},
	{"too many headers", CategoryHeaders, 0.2, func(v View) float64 {
		if v.Get("header_count", 10) > 25 {
			return 1.0
		}
		return 0.0
	}},

	// Geo / IP
	{"datacenter IP", CategoryGeo, 0.8, threshold("is_datacenter_ip", 0)},
	{"country risk", CategoryGeo, 0.8, proportional("country_risk_score", 0.2)},
	{"missing geo data", CategoryGeo, 0.3, threshold("geo_missing", 0)},

	// Device / browser
	{"device browser mismatch", CategoryDevice, 0.6, threshold("device_browser_mismatch", 0)},
	{"unknown device", CategoryDevice, 0.4, threshold("is_unknown_device", 0)},
	{"very uncommon browser", CategoryDevice, 0.5, func(v View) float64 {
		if v.Get("browser_market_share", 0.5) < 0.01 {
			return 1.0
		}
		return 0.0
	}},

	// Network
	{"ASN type", CategoryNetwork, 0.5, proportional("asn_type_score", 0.2)},
	{"bad IP reputation", CategoryNetwork, 0.6, func(v View) float64 {
		if v.Get("ip_reputation_score", 0.5) > 0.7 {
			return 1.0
		}
		return 0.0
	}},
}

// View is a name-addressed read of one feature vector.
type View struct {
	names  []string
	values []float64
	index  map[string]int
}

func (v View) Get(name string, fallback float64) float64 {
	i, ok := v.index[name]
	if !ok || i >= len(v.values) {
		return fallback
	}
	return v.values[i]
}

// Model scores feature vectors with the indicator table. It is stateless
// and safe for concurrent use.
type Model struct {
	index map[string]int
	names []string
}

// New builds a rule model bound to a feature order. The names are the
// extractor's canonical order so vectors can be addressed by name.
func New(names []string) *Model {
	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
	}
	return &Model{index: index, names: names}
}

// Score returns the bot probability in [0,1] for one feature vector.
func (m *Model) Score(features []float64) float64 {
	view := View{names: m.names, values: features, index: m.index}

	sums := make(map[Category]float64, len(categoryWeights))
	for _, ind := range indicators {
		sums[ind.Category] += ind.Points * ind.Activation(view)
	}

	score := 0.0
	for category, sum := range sums {
		score += math.Min(sum, 1.0) * categoryWeights[category]
	}

	return math.Max(0.0, math.Min(1.0, score))
}

// PredictProba returns (pHuman, pBot) for one feature vector.
func (m *Model) PredictProba(features []float64) (float64, float64) {
	bot := m.Score(features)
	return 1.0 - bot, bot
}

// Indicators exposes the scoring table for audit and tests.
func Indicators() []Indicator {
	return indicators
}

// Weights exposes the category weight table for audit and tests.
func Weights() map[Category]float64 {
	w := make(map[Category]float64, len(categoryWeights))
	for k, v := range categoryWeights {
		w[k] = v
	}
	return w
}
