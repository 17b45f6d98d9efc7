package sentiment

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/seenimoa/marketbrief/pkg/models"
)

//go:embed corpus.yaml
var bundledCorpus []byte

// Example is one labeled training headline.
type Example struct {
	Label models.SentimentLabel `yaml:"label"`
	Text  string                `yaml:"text"`
}

// Corpus is a labeled training set.
type Corpus struct {
	Examples []Example `yaml:"examples"`
}

// ParseCorpus decodes a YAML corpus.
func ParseCorpus(data []byte) (Corpus, error) {
	var c Corpus
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Corpus{}, fmt.Errorf("parse corpus: %w", err)
	}
	return c, nil
}

// LoadCorpusFile reads a YAML corpus from disk.
func LoadCorpusFile(path string) (Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Corpus{}, fmt.Errorf("read corpus: %w", err)
	}
	return ParseCorpus(data)
}

// DefaultCorpus returns the bundled training corpus.
func DefaultCorpus() (Corpus, error) {
	return ParseCorpus(bundledCorpus)
}

// Counts returns the number of examples per label.
func (c Corpus) Counts() map[models.SentimentLabel]int {
	out := make(map[models.SentimentLabel]int)
	for _, ex := range c.Examples {
		out[ex.Label]++
	}
	return out
}
