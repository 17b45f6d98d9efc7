package sentiment

import (
	"errors"
	"fmt"
	"math"

	"github.com/seenimoa/marketbrief/pkg/models"
)

// DefaultAlpha is the Laplace smoothing parameter.
const DefaultAlpha = 1.0

// NaiveBayes is a multinomial naive Bayes model over TF-IDF features.
// Classes are kept in models.SentimentLabels order so that equal scores
// resolve to the earliest label.
type NaiveBayes struct {
	classes  []models.SentimentLabel
	logPrior []float64
	logProb  [][]float64
}

// FitNaiveBayes estimates class priors and per-class feature log
// probabilities, log((N_ci + alpha) / (N_c + alpha*features)).
func FitNaiveBayes(x [][]float64, y []models.SentimentLabel, alpha float64) (*NaiveBayes, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("sentiment: %d samples for %d labels", len(x), len(y))
	}
	if alpha <= 0 {
		return nil, errors.New("sentiment: alpha must be positive")
	}
	features := len(x[0])

	counts := make(map[models.SentimentLabel]int)
	sums := make(map[models.SentimentLabel][]float64)
	for i, row := range x {
		if len(row) != features {
			return nil, fmt.Errorf("sentiment: sample %d has %d features, want %d", i, len(row), features)
		}
		label := y[i]
		counts[label]++
		acc, ok := sums[label]
		if !ok {
			acc = make([]float64, features)
			sums[label] = acc
		}
		for j, f := range row {
			acc[j] += f
		}
	}

	nb := &NaiveBayes{}
	for _, label := range models.SentimentLabels {
		c := counts[label]
		if c == 0 {
			continue
		}
		var total float64
		for _, f := range sums[label] {
			total += f
		}
		denom := total + alpha*float64(features)
		lp := make([]float64, features)
		for j, f := range sums[label] {
			lp[j] = math.Log((f + alpha) / denom)
		}
		nb.classes = append(nb.classes, label)
		nb.logPrior = append(nb.logPrior, math.Log(float64(c)/float64(len(y))))
		nb.logProb = append(nb.logProb, lp)
	}
	return nb, nil
}

// Classes returns the labels the model was trained on.
func (nb *NaiveBayes) Classes() []models.SentimentLabel {
	out := make([]models.SentimentLabel, len(nb.classes))
	copy(out, nb.classes)
	return out
}

// JointLogLikelihood returns log P(c) + x·log P(t|c) for every class.
func (nb *NaiveBayes) JointLogLikelihood(x []float64) []float64 {
	out := make([]float64, len(nb.classes))
	for k := range nb.classes {
		s := nb.logPrior[k]
		for j, f := range x {
			if f != 0 {
				s += f * nb.logProb[k][j]
			}
		}
		out[k] = s
	}
	return out
}

// Predict returns the class with the highest joint log likelihood.
func (nb *NaiveBayes) Predict(x []float64) models.SentimentLabel {
	jll := nb.JointLogLikelihood(x)
	best := 0
	for k := 1; k < len(jll); k++ {
		if jll[k] > jll[best] {
			best = k
		}
	}
	return nb.classes[best]
}

// PredictProba returns posterior probabilities per class.
func (nb *NaiveBayes) PredictProba(x []float64) map[models.SentimentLabel]float64 {
	jll := nb.JointLogLikelihood(x)
	top := math.Inf(-1)
	for _, v := range jll {
		if v > top {
			top = v
		}
	}
	var sum float64
	exp := make([]float64, len(jll))
	for k, v := range jll {
		exp[k] = math.Exp(v - top)
		sum += exp[k]
	}
	out := make(map[models.SentimentLabel]float64, len(jll))
	for k, label := range nb.classes {
		out[label] = exp[k] / sum
	}
	return out
}
