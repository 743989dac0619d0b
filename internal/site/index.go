package site

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>marimo Notebooks</title>
    <style>
        body { font-family: system-ui, sans-serif; max-width: 600px; margin: 2rem auto; padding: 0 1rem; }
        a { color: #2563eb; }
        li { margin: 0.5rem 0; }
    </style>
</head>
<body>
    <h1>marimo Notebooks</h1>
    <ul>
{{- range . }}
        <li><a href="{{ . }}/index.html">{{ . }}</a></li>
{{- end }}
    </ul>
    <p><em>Fully offline &mdash; all assets served locally.</em></p>
</body>
</html>
`))

// writeIndexPage creates a landing page linking every notebook. With a single
// notebook the export itself is the root index.html, so nothing is written.
func writeIndexPage(outputDir string, notebooks []string) error {
	if len(notebooks) <= 1 {
		return nil
	}

	names := make([]string, len(notebooks))
	for i, nb := range notebooks {
		names[i] = strings.TrimSuffix(filepath.Base(nb), ".py")
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, names); err != nil {
		return fmt.Errorf("rendering index page: %w", err)
	}
	path := filepath.Join(outputDir, "index.html")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing index page: %w", err)
	}
	return nil
}
