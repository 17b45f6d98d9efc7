package report

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/seenimoa/marketbrief/pkg/models"
)

// RenderJSON writes the record as indented JSON.
func RenderJSON(w io.Writer, rec *models.AnalysisRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

// RenderYAML writes the record as YAML with the same keys and field order
// as the JSON rendering.
func RenderYAML(w io.Writer, rec *models.AnalysisRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("report: marshal record: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("report: convert record: %w", err)
	}
	blockStyle(&doc)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	return enc.Close()
}

// blockStyle drops the flow and quoting styles JSON input leaves on every
// node; the encoder re-quotes strings that would otherwise change type.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
