package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "site.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.NotebooksDir != "notebooks" || cfg.OutputDir != "_site" || cfg.Mode != "run" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.MarimoVersion != PinnedMarimoVersion {
		t.Errorf("expected pinned marimo version, got %s", cfg.MarimoVersion)
	}
}

func TestLoadAppliesDefaultsToPartialConfig(t *testing.T) {
	path := writeConfig(t, "outputDir: public\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OutputDir != "public" {
		t.Errorf("expected configured output dir, got %s", cfg.OutputDir)
	}
	if cfg.NotebooksDir != "notebooks" {
		t.Errorf("expected default notebooks dir, got %s", cfg.NotebooksDir)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level, got %s", cfg.Logging.Level)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
notebooksDir: nb
outputDir: out
mode: edit
marimoVersion: 0.19.11
requirementsFile: extras.in
logging:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Mode != "edit" || cfg.RequirementsFile != "extras.in" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if !NewConfigHelpers(cfg).IsDebugMode() {
		t.Error("expected debug mode")
	}
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, "outputDirectory: public\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected schema error for unknown key")
	}
}

func TestLoadRejectsBadMode(t *testing.T) {
	path := writeConfig(t, "mode: preview\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid mode")
	}
	if !strings.Contains(err.Error(), "schema validation") {
		t.Errorf("expected schema validation error, got: %v", err)
	}
}

func TestLoadRejectsBadVersion(t *testing.T) {
	path := writeConfig(t, "marimoVersion: latest\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for non-numeric version")
	}
}

func TestValidateYAMLEmptyDocument(t *testing.T) {
	if err := ValidateYAML(nil); err != nil {
		t.Errorf("empty config should validate, got: %v", err)
	}
}

func TestHelpersResolveAbsolutePaths(t *testing.T) {
	helpers := NewConfigHelpers(Default())
	out, err := helpers.OutputDir()
	if err != nil {
		t.Fatalf("OutputDir failed: %v", err)
	}
	if !filepath.IsAbs(out) {
		t.Errorf("expected absolute path, got %s", out)
	}
}
