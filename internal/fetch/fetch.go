package fetch

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/airgap-notebooks/site-composer/internal/utils/logger"
	"github.com/airgap-notebooks/site-composer/internal/utils/network"
)

// WOFF2UserAgent triggers woff2 responses from Google Fonts. Without a
// browser user agent the CSS endpoint serves legacy ttf-only rules.
const WOFF2UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Client downloads remote assets into the site tree. Downloads are strictly
// sequential; total work is a handful of files, not a workload where
// parallelism would matter.
type Client struct {
	http *http.Client
}

// New returns a Client backed by the shared TLS-restricted HTTP client.
func New() *Client {
	return &Client{http: network.NewSecureHTTPClient()}
}

func (c *Client) get(url, userAgent string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetching %s: bad status: %s", url, resp.Status)
	}
	return resp, nil
}

// Download fetches url into dest. If dest already exists the download is
// skipped, so re-running a build never re-fetches assets already on disk.
func (c *Client) Download(url, dest, userAgent string) error {
	log := logger.Logger()

	if _, err := os.Stat(dest); err == nil {
		log.Debugf("already exists: %s", dest)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", dest, err)
	}

	log.Infof("downloading %s -> %s", url, dest)
	resp, err := c.get(url, userAgent)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Write to a temp file first so an interrupted download never leaves a
	// truncated file that a later cache-skip would trust.
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", dest, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("renaming %s into place: %w", dest, err)
	}
	logger.Downloads.Add(url)
	return nil
}

// DownloadText fetches url and returns the body as a string.
func (c *Client) DownloadText(url, userAgent string) (string, error) {
	resp, err := c.get(url, userAgent)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", url, err)
	}
	return string(data), nil
}

// DownloadAll fetches each URL into destDir under its base name, showing a
// single progress bar tracking files completed vs total.
func (c *Client) DownloadAll(urls []string, destDir, userAgent string) error {
	bar := progressbar.NewOptions(len(urls),
		progressbar.OptionFullWidth(),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetDescription("downloading"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)

	for _, url := range urls {
		name := path.Base(url)
		bar.Describe(fmt.Sprintf("downloading %s", name))
		if err := c.Download(url, filepath.Join(destDir, name), userAgent); err != nil {
			return err
		}
		if err := bar.Add(1); err != nil {
			return err
		}
	}
	return bar.Finish()
}
