package archive

import (
	"archive/tar"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// writeTarGz builds a small .tar.gz fixture with the given name->content map.
func writeTarGz(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating fixture: %v", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for name, content := range entries {
		hdr := &tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("writing tar header: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("writing tar body: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("closing gzip: %v", err)
	}
}

func TestExtractTarGz(t *testing.T) {
	dir := t.TempDir()
	fixture := filepath.Join(dir, "pyodide-0.26.0.tar.gz")
	writeTarGz(t, fixture, map[string]string{
		"pyodide/pyodide.js":        "// runtime loader",
		"pyodide/pyodide-lock.json": "{}",
	})

	dest := filepath.Join(dir, "out")
	if err := ExtractTar(fixture, dest); err != nil {
		t.Fatalf("ExtractTar failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dest, "pyodide", "pyodide.js"))
	if err != nil {
		t.Fatalf("expected extracted file: %v", err)
	}
	if string(data) != "// runtime loader" {
		t.Errorf("unexpected content: %q", data)
	}
}

func TestExtractTarRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	fixture := filepath.Join(dir, "evil.tar.gz")
	writeTarGz(t, fixture, map[string]string{
		"../escape.txt": "outside",
	})

	if err := ExtractTar(fixture, filepath.Join(dir, "out")); err == nil {
		t.Fatal("expected traversal entry to be rejected")
	}
}

func TestExtractTarUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	fixture := filepath.Join(dir, "bundle.rar")
	if err := os.WriteFile(fixture, []byte("not an archive"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	if err := ExtractTar(fixture, filepath.Join(dir, "out")); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
