package patch

import (
	"fmt"
	"regexp"
)

// Rule is one entry of the URL pattern table: a literal substring or a
// regular expression, with the relative-path replacement that keeps the site
// working without network access. Rules are applied in table order and no
// rule may reintroduce a match for an earlier one.
type Rule struct {
	Name        string
	Literal     string         // exact substring, used when non-empty
	Pattern     *regexp.Regexp // used when Literal is empty
	Replacement string
}

// Apply returns text with every occurrence of the rule's pattern replaced.
func (r Rule) Apply(text string) string {
	if r.Literal != "" {
		return replaceAllLiteral(text, r.Literal, r.Replacement)
	}
	return r.Pattern.ReplaceAllString(text, r.Replacement)
}

// Matches reports whether the rule's pattern still occurs in text.
func (r Rule) Matches(text string) bool {
	if r.Literal != "" {
		return containsLiteral(text, r.Literal)
	}
	return r.Pattern.MatchString(text)
}

// LayoutPaths holds the relative prefixes for a given site layout. Path depth
// depends on where the exported files sit:
//
//	multi-notebook:  <site>/<name>/assets/worker.js -> ../../pyodide
//	single notebook: <site>/assets/worker.js        -> ../pyodide
//
// Worker/JS files live in assets/, the runtime at the site root. HTML files
// reference fonts and KaTeX relative to their own directory.
type LayoutPaths struct {
	PyodideFromAssets string
	FontsFromNotebook string
	KaTeXFromNotebook string
}

// PathsForLayout returns the relative prefixes for single- or multi-notebook
// sites.
func PathsForLayout(single bool) LayoutPaths {
	if single {
		return LayoutPaths{
			PyodideFromAssets: "../pyodide",
			FontsFromNotebook: "./fonts",
			KaTeXFromNotebook: "./vendor/katex",
		}
	}
	return LayoutPaths{
		PyodideFromAssets: "../../pyodide",
		FontsFromNotebook: "../fonts",
		KaTeXFromNotebook: "../vendor/katex",
	}
}

// CDNRules builds the pattern table rewriting every known absolute CDN URL in
// the export to a relative local path. The table handles both literal URLs
// and JavaScript template literals (backticks with ${...} substitutions).
func CDNRules(pyodideVersion string, paths LayoutPaths) []Rule {
	return []Rule{
		// Pyodide lockFileURL template literal -> local pyodide-lock.json.
		// Matches: lockFileURL:`https://wasm.marimo.app/pyodide-lock.json?v=${e.version}...`
		{
			Name:        "pyodide-lockfile-url",
			Pattern:     regexp.MustCompile("lockFileURL:\\s*`https://wasm\\.marimo\\.app/pyodide-lock\\.json[^`]*`"),
			Replacement: "lockFileURL:`" + paths.PyodideFromAssets + "/pyodide-lock.json`",
		},
		// Pyodide indexURL template literal -> local pyodide/.
		{
			Name:        "pyodide-index-url",
			Pattern:     regexp.MustCompile("indexURL:\\s*`https://cdn\\.jsdelivr\\.net/pyodide/[^`]*`"),
			Replacement: "indexURL:`" + paths.PyodideFromAssets + "/`",
		},
		// setCdnUrl call -> local pyodide/.
		{
			Name:        "pyodide-set-cdn-url",
			Pattern:     regexp.MustCompile("\\.setCdnUrl\\(`https://cdn\\.jsdelivr\\.net/pyodide/[^`]*`\\)"),
			Replacement: ".setCdnUrl(`" + paths.PyodideFromAssets + "/`)",
		},
		// Pyodide CDN literal URLs for the detected version.
		{
			Name:        "pyodide-cdn-versioned-slash",
			Literal:     fmt.Sprintf("https://cdn.jsdelivr.net/pyodide/v%s/full/", pyodideVersion),
			Replacement: paths.PyodideFromAssets + "/",
		},
		{
			Name:        "pyodide-cdn-versioned",
			Literal:     fmt.Sprintf("https://cdn.jsdelivr.net/pyodide/v%s/full", pyodideVersion),
			Replacement: paths.PyodideFromAssets,
		},
		// Pyodide CDN generic pattern for any other version.
		{
			Name:        "pyodide-cdn-any-version",
			Pattern:     regexp.MustCompile(`https://cdn\.jsdelivr\.net/pyodide/v[0-9.]+/full/`),
			Replacement: paths.PyodideFromAssets + "/",
		},
		// Google Fonts CSS -> local fonts/fonts.css.
		{
			Name:        "google-fonts-css",
			Pattern:     regexp.MustCompile(`https://fonts\.googleapis\.com/css2\?family=Fira\+Mono[^"'>\s]*`),
			Replacement: paths.FontsFromNotebook + "/fonts.css",
		},
		// Google Fonts preconnect hints.
		{
			Name:        "google-fonts-preconnect",
			Literal:     "https://fonts.googleapis.com",
			Replacement: "",
		},
		{
			Name:        "gstatic-preconnect",
			Literal:     "https://fonts.gstatic.com",
			Replacement: "",
		},
		// KaTeX CDN -> local vendor/katex/.
		{
			Name:        "katex-cdn",
			Pattern:     regexp.MustCompile(`https://cdn\.jsdelivr\.net/npm/katex@[0-9.]+/dist/`),
			Replacement: paths.KaTeXFromNotebook + "/",
		},
		// Share-link baseUrl default -> the current deployment instead of
		// marimo.app, so generated share links point at this site.
		{
			Name:        "share-base-url",
			Pattern:     regexp.MustCompile(`(baseUrl:\w+=)"https://marimo\.app"`),
			Replacement: `${1}window.location.href.replace(/#.*/,"")`,
		},
	}
}
