package wheels

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

// writeWheel builds a minimal .whl fixture with the given dist-info entries.
func writeWheel(t *testing.T, name string, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating wheel fixture: %v", err)
	}
	zw := zip.NewWriter(f)
	for entry, content := range entries {
		w, err := zw.Create(entry)
		if err != nil {
			t.Fatalf("adding zip entry: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("writing zip entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("closing file: %v", err)
	}
	return path
}

const markdownMetadata = `Metadata-Version: 2.1
Name: Markdown
Version: 3.6
Requires-Dist: importlib-metadata>=4.4; python_version < "3.10"
Requires-Dist: mdx-gh-links>=0.2; extra == "docs"

Python implementation of John Gruber's Markdown.
Requires-Dist: should-not-be-parsed
`

func TestReadWheelMetadata(t *testing.T) {
	wheel := writeWheel(t, "Markdown-3.6-py3-none-any.whl", map[string]string{
		"markdown/__init__.py":                 "",
		"Markdown-3.6.dist-info/METADATA":      markdownMetadata,
		"Markdown-3.6.dist-info/top_level.txt": "markdown\n",
	})

	meta, err := ReadWheelMetadata(wheel)
	if err != nil {
		t.Fatalf("ReadWheelMetadata failed: %v", err)
	}
	if meta.Name != "Markdown" || meta.Version != "3.6" {
		t.Errorf("unexpected name/version: %s %s", meta.Name, meta.Version)
	}
	if len(meta.RequiresDist) != 2 {
		t.Errorf("description must not leak into Requires-Dist: %v", meta.RequiresDist)
	}
	if len(meta.Imports) != 1 || meta.Imports[0] != "markdown" {
		t.Errorf("unexpected imports: %v", meta.Imports)
	}
}

func TestReadWheelMetadataGuessesImports(t *testing.T) {
	wheel := writeWheel(t, "mdurl-0.1.2-py3-none-any.whl", map[string]string{
		"mdurl/__init__.py":              "",
		"mdurl/_url.py":                  "",
		"mdurl-0.1.2.dist-info/METADATA": "Name: mdurl\nVersion: 0.1.2\n",
	})

	meta, err := ReadWheelMetadata(wheel)
	if err != nil {
		t.Fatalf("ReadWheelMetadata failed: %v", err)
	}
	if len(meta.Imports) != 1 || meta.Imports[0] != "mdurl" {
		t.Errorf("expected guessed import mdurl, got %v", meta.Imports)
	}
}

func TestReadWheelMetadataMissingMetadata(t *testing.T) {
	wheel := writeWheel(t, "broken-1.0-py3-none-any.whl", map[string]string{
		"broken/__init__.py": "",
	})
	if _, err := ReadWheelMetadata(wheel); err == nil {
		t.Fatal("expected error for wheel without METADATA")
	}
}

func TestIsPureWheel(t *testing.T) {
	tests := map[string]bool{
		"Markdown-3.6-py3-none-any.whl":             true,
		"six-1.16.0-py2.py3-none-any.whl":           true,
		"numpy-1.26.4-cp312-cp312-linux_x86_64.whl": false,
		"pyyaml-6.0-cp312-abi3-emscripten.whl":      false,
	}
	for name, want := range tests {
		if got := IsPureWheel(name); got != want {
			t.Errorf("IsPureWheel(%q) = %v, want %v", name, got, want)
		}
	}
}
