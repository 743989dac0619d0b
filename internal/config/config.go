package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Pinned marimo version the URL patch rules were written against. Bump this
// deliberately after a clean `site-composer check-upgrade` run.
const PinnedMarimoVersion = "0.19.11"

// DefaultFontsCSSURL requests the three font families the notebook theme uses.
const DefaultFontsCSSURL = "https://fonts.googleapis.com/css2?" +
	"family=Fira+Mono:wght@400;500;700&" +
	"family=Lora&" +
	"family=PT+Sans:wght@400;700&" +
	"display=swap"

// LoggingConfig controls console log output.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// SiteConfig is the top-level site.yaml structure. Every field has a default,
// so a missing config file yields a working build.
type SiteConfig struct {
	NotebooksDir     string        `yaml:"notebooksDir" json:"notebooksDir"`
	OutputDir        string        `yaml:"outputDir" json:"outputDir"`
	Mode             string        `yaml:"mode" json:"mode"`
	MarimoVersion    string        `yaml:"marimoVersion" json:"marimoVersion"`
	PyodideVersion   string        `yaml:"pyodideVersion" json:"pyodideVersion"`
	RequirementsFile string        `yaml:"requirementsFile" json:"requirementsFile"`
	FontsCSSURL      string        `yaml:"fontsCssUrl" json:"fontsCssUrl"`
	Logging          LoggingConfig `yaml:"logging" json:"logging"`
}

// Default returns a SiteConfig with all defaults applied.
func Default() *SiteConfig {
	return &SiteConfig{
		NotebooksDir:     "notebooks",
		OutputDir:        "_site",
		Mode:             "run",
		MarimoVersion:    PinnedMarimoVersion,
		RequirementsFile: "requirements-wasm-extras.in",
		FontsCSSURL:      DefaultFontsCSSURL,
		Logging:          LoggingConfig{Level: "info"},
	}
}

// applyDefaults fills zero-valued fields in place.
func (c *SiteConfig) applyDefaults() {
	def := Default()
	if c.NotebooksDir == "" {
		c.NotebooksDir = def.NotebooksDir
	}
	if c.OutputDir == "" {
		c.OutputDir = def.OutputDir
	}
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if c.MarimoVersion == "" {
		c.MarimoVersion = def.MarimoVersion
	}
	if c.RequirementsFile == "" {
		c.RequirementsFile = def.RequirementsFile
	}
	if c.FontsCSSURL == "" {
		c.FontsCSSURL = def.FontsCSSURL
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}

// Load reads and validates a site.yaml. An empty path returns the defaults.
func Load(path string) (*SiteConfig, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := ValidateYAML(data); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	cfg := &SiteConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.applyDefaults()

	if cfg.Mode != "run" && cfg.Mode != "edit" {
		return nil, fmt.Errorf("config %s: invalid mode %q (expected run|edit)", path, cfg.Mode)
	}
	return cfg, nil
}
