package trainer

import (
	"math"
	"math/rand"
	"testing"
)

// separableDataset builds a dataset where the first feature alone separates
// the classes.
func separableDataset(n int) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(7))
	x := make([][]float64, n)
	y := make([]int, n)
	for i := range x {
		label := i % 2
		base := 0.1
		if label == 1 {
			base = 0.9
		}
		x[i] = []float64{
			base + rng.Float64()*0.05,
			rng.Float64(),
			rng.Float64(),
		}
		y[i] = label
	}
	return x, y
}

func TestTrainSeparableData(t *testing.T) {
	x, y := separableDataset(400)

	model, metrics, err := New(nil).Train(x, y, []string{"f0", "f1", "f2"}, false)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	if metrics.Accuracy < 0.9 {
		t.Errorf("accuracy = %v, want >= 0.9 on separable data", metrics.Accuracy)
	}
	if metrics.ROCAUC < 0.95 {
		t.Errorf("roc_auc = %v, want >= 0.95 on separable data", metrics.ROCAUC)
	}
	if metrics.TrainingSamples != 320 {
		t.Errorf("training samples = %d, want 320 (80%% of 400)", metrics.TrainingSamples)
	}

	_, pBot := model.PredictProba([]float64{0.95, 0.5, 0.5})
	_, pHumanSide := model.PredictProba([]float64{0.05, 0.5, 0.5})
	if pBot <= pHumanSide {
		t.Errorf("bot-side probability %v not above human-side %v", pBot, pHumanSide)
	}
}

func TestTrainEmptyDataset(t *testing.T) {
	if _, _, err := New(nil).Train(nil, nil, nil, false); err == nil {
		t.Fatal("Train on empty dataset: want error")
	}
}

func TestBalance(t *testing.T) {
	tests := []struct {
		name     string
		bots     int
		humans   int
		wantBots int
		wantHum  int
	}{
		{"already balanced", 100, 100, 100, 100},
		{"at the cap", 100, 300, 100, 300},
		{"humans downsampled", 100, 1000, 100, 300},
		{"bots downsampled", 800, 100, 300, 100},
		{"single class untouched", 0, 500, 0, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var x [][]float64
			var y []int
			for i := 0; i < tt.bots; i++ {
				x = append(x, []float64{1})
				y = append(y, 1)
			}
			for i := 0; i < tt.humans; i++ {
				x = append(x, []float64{0})
				y = append(y, 0)
			}

			bx, by := Balance(x, y)

			gotBots, gotHum := 0, 0
			for _, label := range by {
				if label == 1 {
					gotBots++
				} else {
					gotHum++
				}
			}
			if gotBots != tt.wantBots || gotHum != tt.wantHum {
				t.Errorf("Balance = %d bots / %d humans, want %d / %d",
					gotBots, gotHum, tt.wantBots, tt.wantHum)
			}
			if len(bx) != len(by) {
				t.Errorf("Balance returned %d rows, %d labels", len(bx), len(by))
			}
		})
	}
}

func TestROCAUC(t *testing.T) {
	tests := []struct {
		name   string
		probs  []float64
		labels []int
		want   float64
	}{
		{"perfect ranking", []float64{0.9, 0.8, 0.2, 0.1}, []int{1, 1, 0, 0}, 1.0},
		{"inverted ranking", []float64{0.1, 0.2, 0.8, 0.9}, []int{1, 1, 0, 0}, 0.0},
		{"all ties", []float64{0.5, 0.5, 0.5, 0.5}, []int{1, 1, 0, 0}, 0.5},
		{"single class", []float64{0.9, 0.8}, []int{1, 1}, 0.5},
		{"empty", nil, nil, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rocAUC(tt.probs, tt.labels); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("rocAUC = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestModelMarshalRoundTrip(t *testing.T) {
	x, y := separableDataset(200)
	model, _, err := New(nil).Train(x, y, []string{"f0", "f1", "f2"}, false)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	data, err := model.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	restored, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	probe := []float64{0.7, 0.3, 0.3}
	_, want := model.PredictProba(probe)
	_, got := restored.PredictProba(probe)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("restored model probability = %v, want %v", got, want)
	}
	if len(restored.FeatureOrder) != 3 {
		t.Errorf("restored feature order = %v, want 3 entries", restored.FeatureOrder)
	}
}

func TestUnmarshalRejectsMismatchedModel(t *testing.T) {
	if _, err := Unmarshal([]byte(`{"feature_order":["a","b"],"weights":[0.1]}`)); err == nil {
		t.Fatal("Unmarshal with mismatched weights: want error")
	}
	if _, err := Unmarshal([]byte(`not json`)); err == nil {
		t.Fatal("Unmarshal of malformed bytes: want error")
	}
}

func TestStratifiedSplitPreservesClassRatio(t *testing.T) {
	x, y := separableDataset(1000)
	rng := rand.New(rand.NewSource(randomSeed))

	trainX, trainY, testX, testY := stratifiedSplit(x, y, 0.2, rng)

	if len(trainX) != 800 || len(testX) != 200 {
		t.Fatalf("split = %d/%d, want 800/200", len(trainX), len(testX))
	}
	if got := labelMean(trainY); math.Abs(got-0.5) > 0.01 {
		t.Errorf("train bot ratio = %v, want ~0.5", got)
	}
	if got := labelMean(testY); math.Abs(got-0.5) > 0.01 {
		t.Errorf("test bot ratio = %v, want ~0.5", got)
	}
}
