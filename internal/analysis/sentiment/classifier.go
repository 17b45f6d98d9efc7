package sentiment

import (
	"errors"
	"fmt"
	"sync"

	"github.com/seenimoa/marketbrief/pkg/models"
)

var (
	// ErrDegenerateCorpus is returned when a corpus lacks a class or yields
	// no vocabulary.
	ErrDegenerateCorpus = errors.New("sentiment: degenerate training corpus")
	// ErrNotTrained is returned by Validate for a classifier that was not
	// built by Train.
	ErrNotTrained = errors.New("sentiment: classifier not trained")
	// ErrInvalidLabel is returned for a corpus example with an unknown label.
	ErrInvalidLabel = errors.New("sentiment: invalid label")
)

// Classifier labels Spanish headlines. A trained Classifier is immutable and
// safe for concurrent use.
type Classifier struct {
	vec *Vectorizer
	nb  *NaiveBayes
}

// Train fits the vectorizer and the naive Bayes model on corpus.
func Train(corpus Corpus) (*Classifier, error) {
	docs := make([]string, 0, len(corpus.Examples))
	labels := make([]models.SentimentLabel, 0, len(corpus.Examples))
	for i, ex := range corpus.Examples {
		if !ex.Label.Valid() {
			return nil, fmt.Errorf("%w %q at example %d", ErrInvalidLabel, ex.Label, i)
		}
		docs = append(docs, Normalize(ex.Text))
		labels = append(labels, ex.Label)
	}

	counts := corpus.Counts()
	for _, label := range models.SentimentLabels {
		if counts[label] == 0 {
			return nil, fmt.Errorf("%w: no %s examples", ErrDegenerateCorpus, label)
		}
	}

	vec, err := FitVectorizer(docs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegenerateCorpus, err)
	}

	x := make([][]float64, len(docs))
	for i, doc := range docs {
		x[i] = vec.Transform(doc)
	}
	nb, err := FitNaiveBayes(x, labels, DefaultAlpha)
	if err != nil {
		return nil, fmt.Errorf("fit naive bayes: %w", err)
	}
	return &Classifier{vec: vec, nb: nb}, nil
}

var defaultClassifier = sync.OnceValues(func() (*Classifier, error) {
	corpus, err := DefaultCorpus()
	if err != nil {
		return nil, err
	}
	return Train(corpus)
})

// Default returns the process-wide classifier trained on the bundled corpus.
// Training happens once; every caller shares the same instance.
func Default() (*Classifier, error) {
	return defaultClassifier()
}

// Validate returns ErrNotTrained unless c was produced by Train.
func (c *Classifier) Validate() error {
	if c == nil || c.vec == nil || c.nb == nil {
		return ErrNotTrained
	}
	return nil
}

// Vocabulary returns the fitted terms.
func (c *Classifier) Vocabulary() []string {
	if c.Validate() != nil {
		return nil
	}
	return c.vec.Terms()
}

// ClassifyHeadline labels one headline. A headline sharing no term with the
// vocabulary is neutral; scoring its all-zero vector would only compare the
// class priors and return the first class, negative.
func (c *Classifier) ClassifyHeadline(text string) models.SentimentLabel {
	if c.Validate() != nil {
		return models.SentimentNeutral
	}
	x := c.vec.Transform(Normalize(text))
	if isZero(x) {
		return models.SentimentNeutral
	}
	return c.nb.Predict(x)
}

// Probabilities returns the posterior per label for a headline, or nil when
// the headline has no known terms.
func (c *Classifier) Probabilities(text string) map[models.SentimentLabel]float64 {
	if c.Validate() != nil {
		return nil
	}
	x := c.vec.Transform(Normalize(text))
	if isZero(x) {
		return nil
	}
	return c.nb.PredictProba(x)
}

// ClassifyHeadlines labels headlines in order.
func (c *Classifier) ClassifyHeadlines(headlines []string) []models.SentimentLabel {
	out := make([]models.SentimentLabel, len(headlines))
	for i, h := range headlines {
		out[i] = c.ClassifyHeadline(h)
	}
	return out
}

// Classify labels and aggregates the headlines of every ticker.
func (c *Classifier) Classify(headlines map[string][]string) models.SentimentByTicker {
	out := make(models.SentimentByTicker, len(headlines))
	for ticker, hs := range headlines {
		out[ticker] = Aggregate(c.ClassifyHeadlines(hs))
	}
	return out
}

// Aggregate counts labels and picks the overall label: the strict maximum
// count wins, ties go to the label listed first in models.SentimentLabels.
// No labels yields neutral with zero counts.
func Aggregate(labels []models.SentimentLabel) models.SentimentResult {
	res := models.SentimentResult{
		Labels:  make([]models.SentimentLabel, len(labels)),
		Overall: models.SentimentNeutral,
	}
	copy(res.Labels, labels)
	if len(labels) == 0 {
		return res
	}

	counts := make(map[models.SentimentLabel]int, len(models.SentimentLabels))
	for _, l := range labels {
		counts[l]++
	}
	res.Positive = counts[models.SentimentPositive]
	res.Negative = counts[models.SentimentNegative]
	res.Neutral = counts[models.SentimentNeutral]

	best := -1
	for _, l := range models.SentimentLabels {
		if counts[l] > best {
			best = counts[l]
			res.Overall = l
		}
	}
	return res
}
