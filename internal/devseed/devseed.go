// Package devseed loads seed documents for the sandbox and mock stores.
package devseed

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DocumentSeedEntry is a single document in a seed file.
type DocumentSeedEntry struct {
	Key       string `json:"key"        yaml:"key"`
	HTML      string `json:"html"       yaml:"html"`
	UpdatedAt string `json:"updated_at" yaml:"updated_at"`
	UpdatedBy string `json:"updated_by" yaml:"updated_by"`
}

// LoadDocumentSeed reads a JSON or YAML list of documents. YAML is a superset
// of the JSON used by existing seed files, so one decoder serves both.
func LoadDocumentSeed(path string) ([]DocumentSeedEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devseed: read %s: %w", path, err)
	}
	return ParseDocumentSeed(data)
}

// ParseDocumentSeed decodes seed entries from memory.
func ParseDocumentSeed(data []byte) ([]DocumentSeedEntry, error) {
	var entries []DocumentSeedEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("devseed: decode documents: %w", err)
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Key) == "" {
			return nil, fmt.Errorf("devseed: entry %d missing key", i)
		}
	}
	return entries, nil
}
