package fonts

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/airgap-notebooks/site-composer/internal/fetch"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestEnsureGoogleFonts(t *testing.T) {
	var requests []string
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Path+"|"+r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/css2":
			_, _ = w.Write([]byte(`@font-face{font-family:"Fira Mono";` +
				`src:url(` + srv.URL + `/s/firamono/v14/abc.woff2) format("woff2")}`))
		case "/s/firamono/v14/abc.woff2":
			_, _ = w.Write([]byte("woff2-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	// The font-host pattern is fixed to gstatic in production; point it at
	// the test server the same way the package-resolution tests do.
	prev := gstaticURLPattern
	gstaticURLPattern = regexp.MustCompile(`url\((` + regexp.QuoteMeta(srv.URL) + `/[^)]+)\)`)
	t.Cleanup(func() { gstaticURLPattern = prev })

	siteDir := t.TempDir()
	if err := EnsureGoogleFonts(fetch.New(), siteDir, srv.URL+"/css2"); err != nil {
		t.Fatalf("EnsureGoogleFonts failed: %v", err)
	}

	font, err := os.ReadFile(filepath.Join(siteDir, "fonts", "abc.woff2"))
	if err != nil || string(font) != "woff2-bytes" {
		t.Errorf("font file not downloaded: %v", err)
	}
	css, err := os.ReadFile(filepath.Join(siteDir, "fonts", "fonts.css"))
	if err != nil {
		t.Fatalf("fonts.css not written: %v", err)
	}
	if !strings.Contains(string(css), "url(./abc.woff2)") {
		t.Errorf("CSS must reference the local font: %s", css)
	}
	if strings.Contains(string(css), srv.URL) {
		t.Errorf("absolute font URL survived in CSS: %s", css)
	}
	for _, req := range requests {
		if !strings.Contains(req, "|Mozilla/5.0") {
			t.Errorf("request without woff2 user agent: %s", req)
		}
	}
}

func TestEnsureKaTeX(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/npm/katex@0.16.10/dist/katex.min.css":
			_, _ = w.Write([]byte(`@font-face{src:url(fonts/KaTeX_Main-Regular.woff2) format("woff2")}`))
		case "/npm/katex@0.16.10/dist/fonts/KaTeX_Main-Regular.woff2":
			_, _ = w.Write([]byte("katex-font"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	prev := katexCDNBase
	katexCDNBase = srv.URL + "/npm"
	t.Cleanup(func() { katexCDNBase = prev })

	siteDir := t.TempDir()
	writeFile(t, filepath.Join(siteDir, "nb1", "index.html"),
		`<link href="https://cdn.jsdelivr.net/npm/katex@0.16.10/dist/katex.min.css">`)

	if err := EnsureKaTeX(fetch.New(), siteDir); err != nil {
		t.Fatalf("EnsureKaTeX failed: %v", err)
	}

	font := filepath.Join(siteDir, "vendor", "katex", "fonts", "KaTeX_Main-Regular.woff2")
	if _, err := os.Stat(font); err != nil {
		t.Errorf("KaTeX font not downloaded: %v", err)
	}
	css, err := os.ReadFile(filepath.Join(siteDir, "vendor", "katex", "katex.min.css"))
	if err != nil {
		t.Fatalf("katex.min.css not written: %v", err)
	}
	if !strings.Contains(string(css), "url(fonts/KaTeX_Main-Regular.woff2)") {
		t.Errorf("CSS must reference vendored fonts: %s", css)
	}
}

func TestEnsureGoogleFontsSkipsWhenBundled(t *testing.T) {
	siteDir := t.TempDir()
	for _, name := range []string{"FiraMono-Regular.ttf", "Lora-Italic.ttf", "PTSans-Bold.ttf"} {
		writeFile(t, filepath.Join(siteDir, "nb1", "assets", name), "font")
	}

	// The dead CSS URL proves no network request happens.
	if err := EnsureGoogleFonts(fetch.New(), siteDir, "http://127.0.0.1:1/css2"); err != nil {
		t.Fatalf("bundled fonts must skip the download: %v", err)
	}
	if _, err := os.Stat(filepath.Join(siteDir, "fonts")); !os.IsNotExist(err) {
		t.Error("fonts/ must not be created when fonts are bundled")
	}
}

func TestEnsureGoogleFontsToleratesCSSFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	// Export bundles fonts under a different naming; the CSS 404 is logged
	// and the build continues.
	if err := EnsureGoogleFonts(fetch.New(), t.TempDir(), srv.URL+"/css2"); err != nil {
		t.Fatalf("CSS fetch failure must not be fatal: %v", err)
	}
}

func TestEnsureKaTeXSkipsWhenBundled(t *testing.T) {
	siteDir := t.TempDir()
	writeFile(t, filepath.Join(siteDir, "nb1", "assets", "KaTeX_Main-Regular.woff2"), "font")
	writeFile(t, filepath.Join(siteDir, "nb1", "index.html"),
		`<link href="https://cdn.jsdelivr.net/npm/katex@0.16.10/dist/katex.min.css">`)

	if err := EnsureKaTeX(fetch.New(), siteDir); err != nil {
		t.Fatalf("bundled KaTeX must skip the download: %v", err)
	}
	if _, err := os.Stat(filepath.Join(siteDir, "vendor")); !os.IsNotExist(err) {
		t.Error("vendor/ must not be created when KaTeX is bundled")
	}
}

func TestEnsureKaTeXSkipsWithoutReference(t *testing.T) {
	siteDir := t.TempDir()
	writeFile(t, filepath.Join(siteDir, "index.html"), "<html></html>")

	if err := EnsureKaTeX(fetch.New(), siteDir); err != nil {
		t.Fatalf("exports without KaTeX must be skipped: %v", err)
	}
}

func TestDetectKaTeXVersion(t *testing.T) {
	siteDir := t.TempDir()
	writeFile(t, filepath.Join(siteDir, "assets", "math-Aa1.js"),
		`import("https://cdn.jsdelivr.net/npm/katex@0.16.10/dist/katex.mjs")`)

	if got := detectKaTeXVersion(siteDir); got != "0.16.10" {
		t.Errorf("detectKaTeXVersion = %q, want 0.16.10", got)
	}
}

func TestHasBundledFontsRequiresAllFamilies(t *testing.T) {
	siteDir := t.TempDir()
	writeFile(t, filepath.Join(siteDir, "assets", "FiraMono-Regular.ttf"), "font")
	writeFile(t, filepath.Join(siteDir, "assets", "Lora-Regular.ttf"), "font")

	if hasBundledFonts(siteDir) {
		t.Error("two of three families must not count as bundled")
	}

	writeFile(t, filepath.Join(siteDir, "assets", "PTSans-Regular.ttf"), "font")
	if !hasBundledFonts(siteDir) {
		t.Error("all three families present must count as bundled")
	}
}
