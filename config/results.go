package config

import (
	"fmt"
)

// ResultsConfig defines settings for run result storage.
type ResultsConfig struct {
	// Backend selects the result store type: "jsonl" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the result store.
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *ResultsConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "runs.log"
	}
}

// Validate checks mandatory fields.
func (c ResultsConfig) Validate() error {
	if c.Backend != "jsonl" && c.Backend != "sqlite" {
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}
