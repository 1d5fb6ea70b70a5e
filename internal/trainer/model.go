package trainer

import (
	"encoding/json"
	"fmt"
	"math"
)

// Model is a regularized logistic classifier over standardized feature
// vectors. The zero value is unusable; build one with Train or Unmarshal.
type Model struct {
	FeatureOrder []string  `json:"feature_order"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
}

// PredictProba returns (pHuman, pBot) for one feature vector. Vectors
// shorter than the feature order are zero-padded; longer ones are
// truncated, so a model never rejects input from a newer extractor.
func (m *Model) PredictProba(x []float64) (float64, float64) {
	z := m.Bias
	for i, w := range m.Weights {
		var v float64
		if i < len(x) {
			v = x[i]
		}
		z += w * m.standardize(i, v)
	}
	pBot := sigmoid(z)
	return 1.0 - pBot, pBot
}

func (m *Model) standardize(i int, v float64) float64 {
	if i >= len(m.Mean) || i >= len(m.Scale) {
		return v
	}
	scale := m.Scale[i]
	if scale == 0 {
		scale = 1
	}
	return (v - m.Mean[i]) / scale
}

// Marshal serializes the model for artifact storage.
func (m *Model) Marshal() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding model: %w", err)
	}
	return data, nil
}

// Unmarshal restores a model from its artifact bytes.
func Unmarshal(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}
	if len(m.Weights) != len(m.FeatureOrder) {
		return nil, fmt.Errorf("model weight count %d does not match feature order %d",
			len(m.Weights), len(m.FeatureOrder))
	}
	return &m, nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
