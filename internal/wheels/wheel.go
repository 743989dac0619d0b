package wheels

import (
	"archive/zip"
	"fmt"
	"io"
	"sort"
	"strings"
)

// WheelMetadata is the subset of a wheel's dist-info needed to register it in
// the Pyodide lock file and walk its dependencies.
type WheelMetadata struct {
	Name         string
	Version      string
	RequiresDist []string
	Imports      []string // top-level importable names
}

// IsPureWheel reports whether the wheel file name declares a pure-Python
// build. Only pure wheels can run under Pyodide; native wheels need an
// emscripten build shipped by the distribution itself.
func IsPureWheel(filename string) bool {
	return strings.HasSuffix(filename, "-py3-none-any.whl") ||
		strings.HasSuffix(filename, "-py2.py3-none-any.whl")
}

// ReadWheelMetadata extracts METADATA and top_level.txt from a .whl archive.
func ReadWheelMetadata(path string) (*WheelMetadata, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening wheel %s: %w", path, err)
	}
	defer zr.Close()

	meta := &WheelMetadata{}

	metadataText, err := readZipEntry(&zr.Reader, ".dist-info/METADATA")
	if err != nil {
		return nil, fmt.Errorf("wheel %s: %w", path, err)
	}
	for _, line := range strings.Split(metadataText, "\n") {
		switch {
		case strings.HasPrefix(line, "Name:"):
			meta.Name = strings.TrimSpace(line[len("Name:"):])
		case strings.HasPrefix(line, "Version:"):
			meta.Version = strings.TrimSpace(line[len("Version:"):])
		case strings.HasPrefix(line, "Requires-Dist:"):
			meta.RequiresDist = append(meta.RequiresDist,
				strings.TrimSpace(line[len("Requires-Dist:"):]))
		case line == "":
			// Body separator: everything after is the long description.
			goto done
		}
	}
done:

	if topLevel, err := readZipEntry(&zr.Reader, ".dist-info/top_level.txt"); err == nil {
		for _, l := range strings.Split(topLevel, "\n") {
			if l = strings.TrimSpace(l); l != "" {
				meta.Imports = append(meta.Imports, l)
			}
		}
	}
	if len(meta.Imports) == 0 {
		meta.Imports = guessImports(&zr.Reader, meta.Name)
	}
	return meta, nil
}

func readZipEntry(zr *zip.Reader, suffix string) (string, error) {
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, suffix) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("opening %s: %w", f.Name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", f.Name, err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("no entry matching %s", suffix)
}

// guessImports derives importable names from first-level directories when the
// wheel ships no top_level.txt.
func guessImports(zr *zip.Reader, name string) []string {
	seen := map[string]bool{}
	for _, f := range zr.File {
		idx := strings.Index(f.Name, "/")
		if idx <= 0 {
			continue
		}
		top := f.Name[:idx]
		if strings.HasSuffix(top, ".dist-info") || strings.HasSuffix(top, ".data") {
			continue
		}
		seen[top] = true
	}

	imports := make([]string, 0, len(seen))
	for top := range seen {
		imports = append(imports, top)
	}
	sort.Strings(imports)

	if len(imports) == 0 && name != "" {
		imports = []string{strings.ReplaceAll(strings.ToLower(name), "-", "_")}
	}
	return imports
}
