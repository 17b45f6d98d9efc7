package sentiment

import (
	"errors"
	"math"
	"sort"
	"strings"
)

// ErrEmptyVocabulary is returned when the fitted documents contain no terms.
var ErrEmptyVocabulary = errors.New("sentiment: empty vocabulary")

// Vectorizer maps normalized documents onto TF-IDF vectors over a vocabulary
// fixed at fit time. It is read-only after FitVectorizer returns.
type Vectorizer struct {
	index map[string]int
	terms []string
	idf   []float64
}

// FitVectorizer builds the vocabulary and smoothed inverse document
// frequencies, idf(t) = ln((1+n)/(1+df(t))) + 1, from normalized documents.
func FitVectorizer(docs []string) (*Vectorizer, error) {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, tok := range strings.Fields(doc) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	if len(df) == 0 {
		return nil, ErrEmptyVocabulary
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	n := float64(len(docs))
	v := &Vectorizer{
		index: make(map[string]int, len(terms)),
		terms: terms,
		idf:   make([]float64, len(terms)),
	}
	for i, t := range terms {
		v.index[t] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}
	return v, nil
}

// Len returns the vocabulary size.
func (v *Vectorizer) Len() int { return len(v.terms) }

// Terms returns a copy of the vocabulary in column order.
func (v *Vectorizer) Terms() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// IDF returns the inverse document frequency of term, or false if the term
// is not in the vocabulary.
func (v *Vectorizer) IDF(term string) (float64, bool) {
	i, ok := v.index[term]
	if !ok {
		return 0, false
	}
	return v.idf[i], true
}

// Transform returns the L2-normalized TF-IDF vector of a normalized document.
// Unknown terms are ignored; a document with no known terms yields the zero
// vector.
func (v *Vectorizer) Transform(doc string) []float64 {
	x := make([]float64, len(v.terms))
	for _, tok := range strings.Fields(doc) {
		if i, ok := v.index[tok]; ok {
			x[i]++
		}
	}

	var norm float64
	for i := range x {
		x[i] *= v.idf[i]
		norm += x[i] * x[i]
	}
	if norm == 0 {
		return x
	}
	norm = math.Sqrt(norm)
	for i := range x {
		x[i] /= norm
	}
	return x
}

func isZero(x []float64) bool {
	for _, f := range x {
		if f != 0 {
			return false
		}
	}
	return true
}
