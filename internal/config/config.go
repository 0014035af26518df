package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Criterion is one rated dimension of a chip, scored 1-5.
type Criterion struct {
	Key         string `yaml:"key" json:"key"`
	DisplayName string `yaml:"display_name" json:"displayName"`
	Emoji       string `yaml:"emoji" json:"emoji"`
}

// Config holds the tasting customization loaded once at startup. It is
// immutable for the lifetime of the process.
type Config struct {
	Title        string      `yaml:"title" json:"title"`
	Criteria     []Criterion `yaml:"criteria" json:"criteria"`
	DefaultChips []string    `yaml:"default_chips" json:"defaultChips"`
}

// Default returns the built-in tasting setup used when no customization
// file is present.
func Default() *Config {
	return &Config{
		Title: "Chips Tasting Night",
		Criteria: []Criterion{
			{Key: "taste", DisplayName: "Taste", Emoji: "👅"},
			{Key: "appearance", DisplayName: "Looks", Emoji: "👀"},
			{Key: "mouthfeel", DisplayName: "Mouthfeel", Emoji: "🤤"},
		},
		DefaultChips: []string{"Classic Paprika", "Salt & Vinegar", "Sour Cream & Onion"},
	}
}

// Load reads the customization file at path. A missing file is not an
// error; the built-in defaults are returned. Sections absent from the file
// keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if overlay.Title != "" {
		cfg.Title = overlay.Title
	}
	if len(overlay.Criteria) > 0 {
		cfg.Criteria = overlay.Criteria
	}
	if len(overlay.DefaultChips) > 0 {
		cfg.DefaultChips = overlay.DefaultChips
	}

	return cfg, nil
}

// CriterionKeys returns the keys of the configured criteria in order.
func (c *Config) CriterionKeys() []string {
	keys := make([]string, len(c.Criteria))
	for i, crit := range c.Criteria {
		keys[i] = crit.Key
	}
	return keys
}
