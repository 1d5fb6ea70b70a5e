// Package trainer fits bot-detection models from labeled feature vectors.
// The training pipeline mirrors the lifecycle the service has always used:
// stratified split, optional cross-validated hyperparameter search on large
// datasets, a final fit with early stopping, and held-out metrics.
package trainer

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
)

const (
	testFraction       = 0.2
	randomSeed         = 42
	searchTrials       = 50
	searchFolds        = 3
	defaultEpochs      = 200
	earlyStopPatience  = 50
	defaultLearnRate   = 0.1
	defaultRegStrength = 1.0
)

var ErrNoSamples = errors.New("trainer: no training samples")

type params struct {
	learnRate   float64
	regStrength float64
	epochs      int
}

func defaultParams() params {
	return params{
		learnRate:   defaultLearnRate,
		regStrength: defaultRegStrength,
		epochs:      defaultEpochs,
	}
}

// Metrics are held-out evaluation results for a fitted model.
type Metrics struct {
	Accuracy        float64
	Precision       float64
	Recall          float64
	F1              float64
	ROCAUC          float64
	TrainingSamples int
}

type Trainer struct {
	logger *slog.Logger

	// OptimizeMinRows gates hyperparameter search: datasets with fewer
	// training rows skip it and use defaults.
	OptimizeMinRows int
}

func New(logger *slog.Logger) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trainer{
		logger:          logger,
		OptimizeMinRows: 1000,
	}
}

// Train fits a model on the labeled dataset. Labels are 1 for bot, 0 for
// human. The returned metrics come from the held-out split only.
func (t *Trainer) Train(x [][]float64, y []int, featureNames []string, optimize bool) (*Model, Metrics, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, Metrics{}, ErrNoSamples
	}

	rng := rand.New(rand.NewSource(randomSeed))

	trainX, trainY, testX, testY := stratifiedSplit(x, y, testFraction, rng)
	if len(trainX) == 0 || len(testX) == 0 {
		return nil, Metrics{}, fmt.Errorf("trainer: dataset too small to split (%d rows)", len(x))
	}

	t.logger.Info("training data prepared",
		"train_samples", len(trainX),
		"test_samples", len(testX),
		"bot_ratio", labelMean(trainY),
	)

	p := defaultParams()
	if optimize && len(trainX) > t.OptimizeMinRows {
		p = t.searchHyperparams(trainX, trainY, rng)
	}

	model := fit(trainX, trainY, testX, testY, featureNames, p)

	metrics := evaluate(model, testX, testY)
	metrics.TrainingSamples = len(trainX)

	t.logger.Info("model trained",
		"accuracy", metrics.Accuracy,
		"f1", metrics.F1,
		"roc_auc", metrics.ROCAUC,
	)

	return model, metrics, nil
}

// Balance downsamples the majority class so the ratio never exceeds 3:1.
// All minority samples are kept; sampling is without replacement.
func Balance(x [][]float64, y []int) ([][]float64, []int) {
	var botIdx, humanIdx []int
	for i, label := range y {
		if label == 1 {
			botIdx = append(botIdx, i)
		} else {
			humanIdx = append(humanIdx, i)
		}
	}

	majority, minority := humanIdx, botIdx
	if len(botIdx) > len(humanIdx) {
		majority, minority = botIdx, humanIdx
	}

	if len(minority) == 0 || len(majority) <= 3*len(minority) {
		return x, y
	}

	rng := rand.New(rand.NewSource(randomSeed))
	rng.Shuffle(len(majority), func(i, j int) {
		majority[i], majority[j] = majority[j], majority[i]
	})
	majority = majority[:3*len(minority)]

	keep := append(append([]int{}, minority...), majority...)
	rng.Shuffle(len(keep), func(i, j int) {
		keep[i], keep[j] = keep[j], keep[i]
	})

	outX := make([][]float64, len(keep))
	outY := make([]int, len(keep))
	for i, idx := range keep {
		outX[i] = x[idx]
		outY[i] = y[idx]
	}
	return outX, outY
}

// searchHyperparams runs a bounded random search maximizing cross-validated
// ROC-AUC on the training split.
func (t *Trainer) searchHyperparams(x [][]float64, y []int, rng *rand.Rand) params {
	learnRates := []float64{0.01, 0.03, 0.1, 0.3}
	regStrengths := []float64{0.1, 0.5, 1.0, 2.0}

	best := defaultParams()
	bestScore := math.Inf(-1)

	for trial := 0; trial < searchTrials; trial++ {
		candidate := params{
			learnRate:   learnRates[rng.Intn(len(learnRates))],
			regStrength: regStrengths[rng.Intn(len(regStrengths))],
			epochs:      defaultEpochs,
		}

		score := crossValidate(x, y, candidate, rng)
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}

	t.logger.Info("hyperparameter search complete",
		"best_score", bestScore,
		"learn_rate", best.learnRate,
		"reg_strength", best.regStrength,
	)
	return best
}

func crossValidate(x [][]float64, y []int, p params, rng *rand.Rand) float64 {
	n := len(x)
	order := rng.Perm(n)

	total := 0.0
	for fold := 0; fold < searchFolds; fold++ {
		var trainX, valX [][]float64
		var trainY, valY []int
		for i, idx := range order {
			if i%searchFolds == fold {
				valX = append(valX, x[idx])
				valY = append(valY, y[idx])
			} else {
				trainX = append(trainX, x[idx])
				trainY = append(trainY, y[idx])
			}
		}
		if len(trainX) == 0 || len(valX) == 0 {
			continue
		}

		model := fit(trainX, trainY, valX, valY, nil, p)
		total += rocAUC(scores(model, valX), valY)
	}
	return total / searchFolds
}

// fit trains a logistic model with gradient descent, L2 regularization, and
// early stopping against the validation split.
func fit(trainX [][]float64, trainY []int, valX [][]float64, valY []int, featureNames []string, p params) *Model {
	dims := len(trainX[0])
	mean, scale := standardization(trainX, dims)

	model := &Model{
		FeatureOrder: featureNames,
		Weights:      make([]float64, dims),
		Mean:         mean,
		Scale:        scale,
	}

	std := make([][]float64, len(trainX))
	for i, row := range trainX {
		std[i] = make([]float64, dims)
		for j := 0; j < dims && j < len(row); j++ {
			std[i][j] = model.standardize(j, row[j])
		}
	}

	n := float64(len(trainX))
	bestLoss := math.Inf(1)
	bestWeights := make([]float64, dims)
	bestBias := 0.0
	sinceImprovement := 0

	for epoch := 0; epoch < p.epochs; epoch++ {
		gradW := make([]float64, dims)
		gradB := 0.0

		for i, row := range std {
			z := model.Bias
			for j, w := range model.Weights {
				z += w * row[j]
			}
			err := sigmoid(z) - float64(trainY[i])
			for j := range gradW {
				gradW[j] += err * row[j]
			}
			gradB += err
		}

		for j := range model.Weights {
			grad := gradW[j]/n + p.regStrength*model.Weights[j]/n
			model.Weights[j] -= p.learnRate * grad
		}
		model.Bias -= p.learnRate * gradB / n

		loss := validationLoss(model, valX, valY)
		if loss < bestLoss-1e-9 {
			bestLoss = loss
			copy(bestWeights, model.Weights)
			bestBias = model.Bias
			sinceImprovement = 0
		} else {
			sinceImprovement++
			if sinceImprovement >= earlyStopPatience {
				break
			}
		}
	}

	copy(model.Weights, bestWeights)
	model.Bias = bestBias
	return model
}

func validationLoss(m *Model, valX [][]float64, valY []int) float64 {
	if len(valX) == 0 {
		return 0
	}
	const eps = 1e-12
	total := 0.0
	for i, row := range valX {
		_, pBot := m.PredictProba(row)
		if valY[i] == 1 {
			total += -math.Log(pBot + eps)
		} else {
			total += -math.Log(1 - pBot + eps)
		}
	}
	return total / float64(len(valX))
}

func standardization(x [][]float64, dims int) (mean, scale []float64) {
	mean = make([]float64, dims)
	scale = make([]float64, dims)
	n := float64(len(x))

	for _, row := range x {
		for j := 0; j < dims && j < len(row); j++ {
			mean[j] += row[j]
		}
	}
	for j := range mean {
		mean[j] /= n
	}

	for _, row := range x {
		for j := 0; j < dims && j < len(row); j++ {
			d := row[j] - mean[j]
			scale[j] += d * d
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
	return mean, scale
}

func stratifiedSplit(x [][]float64, y []int, testFrac float64, rng *rand.Rand) (trainX [][]float64, trainY []int, testX [][]float64, testY []int) {
	var botIdx, humanIdx []int
	for i, label := range y {
		if label == 1 {
			botIdx = append(botIdx, i)
		} else {
			humanIdx = append(humanIdx, i)
		}
	}

	split := func(idx []int) {
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		testCount := int(math.Round(float64(len(idx)) * testFrac))
		for i, id := range idx {
			if i < testCount {
				testX = append(testX, x[id])
				testY = append(testY, y[id])
			} else {
				trainX = append(trainX, x[id])
				trainY = append(trainY, y[id])
			}
		}
	}

	split(botIdx)
	split(humanIdx)
	return trainX, trainY, testX, testY
}

func evaluate(m *Model, testX [][]float64, testY []int) Metrics {
	var tp, fp, tn, fn float64
	probs := make([]float64, len(testX))

	for i, row := range testX {
		_, pBot := m.PredictProba(row)
		probs[i] = pBot
		predicted := pBot > 0.5

		switch {
		case predicted && testY[i] == 1:
			tp++
		case predicted && testY[i] == 0:
			fp++
		case !predicted && testY[i] == 0:
			tn++
		default:
			fn++
		}
	}

	metrics := Metrics{
		Accuracy: (tp + tn) / float64(len(testX)),
		ROCAUC:   rocAUC(probs, testY),
	}
	if tp+fp > 0 {
		metrics.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		metrics.Recall = tp / (tp + fn)
	}
	if metrics.Precision+metrics.Recall > 0 {
		metrics.F1 = 2 * metrics.Precision * metrics.Recall / (metrics.Precision + metrics.Recall)
	}
	return metrics
}

func scores(m *Model, x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		_, out[i] = m.PredictProba(row)
	}
	return out
}

// rocAUC computes the area under the ROC curve via the rank statistic.
// A single-class test set has no curve; 0.5 is reported by convention.
func rocAUC(probs []float64, labels []int) float64 {
	var pos, neg int
	for _, l := range labels {
		if l == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}

	// Count concordant pairs, half credit for ties.
	concordant := 0.0
	for i, pi := range probs {
		if labels[i] != 1 {
			continue
		}
		for j, pj := range probs {
			if labels[j] != 0 {
				continue
			}
			switch {
			case pi > pj:
				concordant += 1.0
			case pi == pj:
				concordant += 0.5
			}
		}
	}
	return concordant / float64(pos*neg)
}

func labelMean(y []int) float64 {
	if len(y) == 0 {
		return 0
	}
	sum := 0
	for _, v := range y {
		sum += v
	}
	return float64(sum) / float64(len(y))
}
