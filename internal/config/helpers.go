package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigHelpers provides convenient access to the site configuration
type ConfigHelpers struct {
	config *SiteConfig
}

// NewConfigHelpers creates a new config helpers instance
func NewConfigHelpers(config *SiteConfig) *ConfigHelpers {
	return &ConfigHelpers{config: config}
}

// NotebooksDir returns the absolute path to the notebooks directory
func (c *ConfigHelpers) NotebooksDir() (string, error) {
	return filepath.Abs(c.config.NotebooksDir)
}

// OutputDir returns the absolute path to the site output directory
func (c *ConfigHelpers) OutputDir() (string, error) {
	return filepath.Abs(c.config.OutputDir)
}

// LogLevel returns the configured log level
func (c *ConfigHelpers) LogLevel() string {
	return c.config.Logging.Level
}

// IsDebugMode returns true if debug logging is enabled
func (c *ConfigHelpers) IsDebugMode() bool {
	return c.config.Logging.Level == "debug"
}

// GetConfig returns the underlying site config (for advanced usage)
func (c *ConfigHelpers) GetConfig() *SiteConfig {
	return c.config
}

// CreateOutputDir ensures the output directory exists
func (c *ConfigHelpers) CreateOutputDir() error {
	outputDir, err := c.OutputDir()
	if err != nil {
		return fmt.Errorf("resolving output directory: %w", err)
	}
	return createDirIfNotExists(outputDir)
}

// CleanOutputDir removes and recreates the output directory so a build never
// inherits stale exports.
func (c *ConfigHelpers) CleanOutputDir() error {
	outputDir, err := c.OutputDir()
	if err != nil {
		return fmt.Errorf("resolving output directory: %w", err)
	}
	if err := os.RemoveAll(outputDir); err != nil {
		return fmt.Errorf("cleaning output directory: %w", err)
	}
	return os.MkdirAll(outputDir, 0755)
}

// Helper function to create directories
func createDirIfNotExists(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
