package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DownloadReport accumulates the URLs fetched during a build. The written
// manifest documents every external input of an otherwise offline site.
type DownloadReport struct {
	mu    sync.Mutex
	items []string
}

// Downloads is the report for the current process.
var Downloads = &DownloadReport{}

// Add records one fetched URL.
func (r *DownloadReport) Add(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, url)
}

// Items returns the recorded URLs in fetch order.
func (r *DownloadReport) Items() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.items...)
}

// Reset clears the report.
func (r *DownloadReport) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

// WriteFile writes the manifest as download-manifest.txt under dir, one URL
// per line. An empty report writes nothing.
func (r *DownloadReport) WriteFile(dir string) error {
	items := r.Items()
	if len(items) == 0 {
		return nil
	}
	path := filepath.Join(dir, "download-manifest.txt")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating manifest: %w", err)
	}
	defer f.Close()
	for _, item := range items {
		if _, err := fmt.Fprintln(f, item); err != nil {
			return fmt.Errorf("writing manifest: %w", err)
		}
	}
	return nil
}
