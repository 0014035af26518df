package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("MissingFileUsesDefaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("FullOverlay", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tasting.yaml")
		doc := `
title: Office Crisps Cup
criteria:
  - key: crunch
    display_name: Crunch
    emoji: "🦷"
default_chips:
  - Cheese & Onion
`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "Office Crisps Cup", cfg.Title)
		assert.Equal(t, []Criterion{{Key: "crunch", DisplayName: "Crunch", Emoji: "🦷"}}, cfg.Criteria)
		assert.Equal(t, []string{"Cheese & Onion"}, cfg.DefaultChips)
	})

	t.Run("PartialOverlayKeepsDefaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tasting.yaml")
		require.NoError(t, os.WriteFile(path, []byte("title: Snack Showdown\n"), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "Snack Showdown", cfg.Title)
		assert.Equal(t, Default().Criteria, cfg.Criteria)
		assert.Equal(t, Default().DefaultChips, cfg.DefaultChips)
	})

	t.Run("MalformedYAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tasting.yaml")
		require.NoError(t, os.WriteFile(path, []byte("title: [unclosed"), 0o644))

		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestCriterionKeys(t *testing.T) {
	assert.Equal(t, []string{"taste", "appearance", "mouthfeel"}, Default().CriterionKeys())
}
