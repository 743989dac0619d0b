package export

import (
	"os"
	"path/filepath"
	"testing"
)

// writeStubTool writes a shell script that mimics the export tool by creating
// an index.html in the -o target directory.
func writeStubTool(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "marimo-stub")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("writing stub tool: %v", err)
	}
	return path
}

func writeNotebooks(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("import marimo\n"), 0644); err != nil {
			t.Fatalf("writing notebook: %v", err)
		}
	}
	return dir
}

const okStub = `#!/bin/sh
# args: export html-wasm NB -o OUT --mode MODE --force
out=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "-o" ]; then out="$arg"; fi
  prev="$arg"
done
mkdir -p "$out"
echo "<html></html>" > "$out/index.html"
`

func TestExportAllSingleNotebookAtRoot(t *testing.T) {
	nbDir := writeNotebooks(t, "analysis.py")
	outDir := t.TempDir()

	e := NewExporter("run")
	e.Tool = writeStubTool(t, okStub)

	notebooks, err := e.ExportAll(nbDir, outDir)
	if err != nil {
		t.Fatalf("ExportAll failed: %v", err)
	}
	if len(notebooks) != 1 {
		t.Fatalf("expected 1 notebook, got %d", len(notebooks))
	}
	if _, err := os.Stat(filepath.Join(outDir, "index.html")); err != nil {
		t.Errorf("single notebook should export to site root: %v", err)
	}
}

func TestExportAllMultiNotebookSubdirs(t *testing.T) {
	nbDir := writeNotebooks(t, "beta.py", "alpha.py")
	outDir := t.TempDir()

	e := NewExporter("run")
	e.Tool = writeStubTool(t, okStub)

	notebooks, err := e.ExportAll(nbDir, outDir)
	if err != nil {
		t.Fatalf("ExportAll failed: %v", err)
	}
	if len(notebooks) != 2 {
		t.Fatalf("expected 2 notebooks, got %d", len(notebooks))
	}
	// Sorted order: alpha before beta.
	if filepath.Base(notebooks[0]) != "alpha.py" {
		t.Errorf("expected sorted notebooks, got %v", notebooks)
	}
	for _, name := range []string{"alpha", "beta"} {
		if _, err := os.Stat(filepath.Join(outDir, name, "index.html")); err != nil {
			t.Errorf("expected %s/index.html: %v", name, err)
		}
	}
}

func TestExportAllFailsOnToolError(t *testing.T) {
	nbDir := writeNotebooks(t, "broken.py")

	e := NewExporter("run")
	e.Tool = writeStubTool(t, "#!/bin/sh\nexit 7\n")

	if _, err := e.ExportAll(nbDir, t.TempDir()); err == nil {
		t.Fatal("expected error when export tool fails")
	}
}

func TestListNotebooksEmptyDir(t *testing.T) {
	if _, err := ListNotebooks(t.TempDir()); err == nil {
		t.Fatal("expected error for directory without notebooks")
	}
}
