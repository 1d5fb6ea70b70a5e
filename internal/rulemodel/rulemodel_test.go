package rulemodel

import (
	"math"
	"testing"
)

var testNames = []string{
	"ua_length", "ua_bot_keyword", "ua_crawler_keyword", "ua_missing_browser",
	"ua_outdated_browser", "ua_suspicious_pattern",
	"header_count", "has_accept_language", "has_accept_encoding", "has_referer",
	"has_proxy_headers", "header_anomaly_score",
	"is_datacenter_ip", "geo_missing", "country_risk_score",
	"is_unknown_device", "browser_market_share", "device_browser_mismatch",
	"asn_type_score", "ip_reputation_score",
}

func vectorFrom(values map[string]float64) []float64 {
	v := make([]float64, len(testNames))
	for i, name := range testNames {
		v[i] = values[name]
	}
	return v
}

func TestWeightsSumToOne(t *testing.T) {
	total := 0.0
	for _, w := range Weights() {
		total += w
	}
	if math.Abs(total-1.0) > 1e-9 {
		t.Errorf("category weights sum to %v, want 1.0", total)
	}
}

func TestScoreRange(t *testing.T) {
	m := New(testNames)

	vectors := map[string][]float64{
		"zeros": make([]float64, len(testNames)),
		"ones": func() []float64 {
			v := make([]float64, len(testNames))
			for i := range v {
				v[i] = 1.0
			}
			return v
		}(),
		"extreme": func() []float64 {
			v := make([]float64, len(testNames))
			for i := range v {
				v[i] = 1e6
			}
			return v
		}(),
		"short": {1.0},
	}

	for name, v := range vectors {
		score := m.Score(v)
		if score < 0.0 || score > 1.0 {
			t.Errorf("%s: Score = %v, want within [0,1]", name, score)
		}
	}
}

func TestScoreHotBotVector(t *testing.T) {
	m := New(testNames)

	// Every bot indicator firing, every human indicator absent.
	v := vectorFrom(map[string]float64{
		"ua_length":               10,
		"ua_bot_keyword":          1,
		"ua_crawler_keyword":      1,
		"ua_missing_browser":      1,
		"ua_outdated_browser":     1,
		"ua_suspicious_pattern":   1,
		"header_count":            1,
		"has_accept_language":     0,
		"has_accept_encoding":     0,
		"has_referer":             0,
		"has_proxy_headers":       1,
		"header_anomaly_score":    1,
		"is_datacenter_ip":        1,
		"geo_missing":             1,
		"country_risk_score":      0.8,
		"is_unknown_device":       1,
		"device_browser_mismatch": 1,
		"browser_market_share":    0.001,
		"asn_type_score":          0.8,
		"ip_reputation_score":     0.9,
	})

	score := m.Score(v)
	if score < 0.9 {
		t.Errorf("hot bot vector Score = %v, want >= 0.9", score)
	}
}

func TestScoreCleanHumanVector(t *testing.T) {
	m := New(testNames)

	v := vectorFrom(map[string]float64{
		"ua_length":            120,
		"header_count":         12,
		"has_accept_language":  1,
		"has_accept_encoding":  1,
		"has_referer":          1,
		"country_risk_score":   0.2,
		"browser_market_share": 0.65,
		"asn_type_score":       0.2,
		"ip_reputation_score":  0.5,
	})

	score := m.Score(v)
	if score >= 0.5 {
		t.Errorf("clean human vector Score = %v, want < 0.5", score)
	}
}

func TestIndicatorTable(t *testing.T) {
	counts := make(map[Category]int)
	for _, ind := range Indicators() {
		if ind.Name == "" || ind.Activation == nil || ind.Points <= 0 {
			t.Errorf("malformed indicator %+v", ind)
		}
		if _, ok := Weights()[ind.Category]; !ok {
			t.Errorf("indicator %q has unweighted category %q", ind.Name, ind.Category)
		}
		counts[ind.Category]++
	}
	for category := range Weights() {
		if counts[category] == 0 {
			t.Errorf("category %q has no indicators", category)
		}
	}
}

func TestIndividualIndicators(t *testing.T) {
	m := New(testNames)

	tests := []struct {
		name     string
		features map[string]float64
		category Category
		want     float64
	}{
		{
			"crawler keyword alone",
			map[string]float64{"ua_crawler_keyword": 1, "ua_length": 100, "header_count": 10,
				"has_accept_language": 1, "has_accept_encoding": 1, "has_referer": 1,
				"browser_market_share": 0.65},
			CategoryUserAgent,
			0.9 * 0.30,
		},
		{
			"datacenter IP alone",
			map[string]float64{"is_datacenter_ip": 1, "ua_length": 100, "header_count": 10,
				"has_accept_language": 1, "has_accept_encoding": 1, "has_referer": 1,
				"browser_market_share": 0.65},
			CategoryGeo,
			0.8 * 0.20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Subtract the score of the same vector with the indicator off.
			base := tt.features
			on := m.Score(vectorFrom(base))

			off := make(map[string]float64, len(base))
			for k, v := range base {
				off[k] = v
			}
			switch tt.category {
			case CategoryUserAgent:
				off["ua_crawler_keyword"] = 0
			case CategoryGeo:
				off["is_datacenter_ip"] = 0
			}
			delta := on - m.Score(vectorFrom(off))

			if math.Abs(delta-tt.want) > 1e-9 {
				t.Errorf("indicator contribution = %v, want %v", delta, tt.want)
			}
		})
	}
}
