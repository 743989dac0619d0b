package patch

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/airgap-notebooks/site-composer/internal/utils/logger"
)

var (
	publishHiddenPattern = regexp.MustCompile(`(label:"Publish HTML to web",hidden:)[^,]+`)
	jotaiImportPattern   = regexp.MustCompile(`import\{([^}]+)\}from"\./(?:jotai|useEvent)-[^"]+\.js"`)
	modeAtomPattern      = regexp.MustCompile(`const (\w+)=\w+\(\{mode:`)
	exportPattern        = regexp.MustCompile(`export\{`)
	promiseAllPattern    = regexp.MustCompile(`(\w+)=Promise\.all`)
	valueAtomPattern     = regexp.MustCompile(`valueAtom:(\w+)`)
	shareFnPattern       = regexp.MustCompile(`(function \w+\(\w+\)\{let\{code:(\w+),baseUrl:\w+=[^}]+\}=\w+,\w+=new URL\(\w+\);)(return )`)
	lzAliasPattern       = regexp.MustCompile(`\(0,(\w+)\.compressToEncodedURIComponent\)`)
	layoutThrowPattern   = regexp.MustCompile(`if\(!(\w+)\)\{throw new Error\("Notebook still loading`)
	assignedFnPattern    = regexp.MustCompile(`(\w+)=function\(\)\{`)
	declaredFnPattern    = regexp.MustCompile(`function (\w+)\(\)\{`)
	marimoCodeEndPattern = regexp.MustCompile(`</marimo-code>`)
)

const loadingErrorAnchor = `throw new Error("Notebook still loading. Please wait and try again.")}`

// hashHandlerScript is injected after </marimo-code> in each notebook page.
// When a #code/ share hash is present, the bundled <marimo-code> element is
// removed so the hash takes precedence in the frontend's file-store chain.
// The inline script must come after the element: non-module scripts run
// synchronously during parsing and only see nodes parsed before them.
const hashHandlerScript = `
<script data-marimo-share="true">
    (function(){
      var h=window.location.hash;
      if(h&&h.indexOf("#code/")===0){
        var el=document.querySelector("marimo-code");
        if(el)el.remove();
      }
      window.addEventListener("unhandledrejection",function(ev){
        if(ev.reason&&/Notebook still loading/.test(ev.reason.message)){
          ev.preventDefault();
          alert(ev.reason.message);
        }
      });
    })();
    </script>`

// findJotaiStore locates the state-store variable in a minified chunk. The
// store is imported from a jotai/useEvent module and is the only such import
// used with .get().
func findJotaiStore(text string) string {
	for _, m := range jotaiImportPattern.FindAllStringSubmatch(text, -1) {
		for _, part := range strings.Split(m[1], ",") {
			fields := strings.Split(strings.TrimSpace(part), " as ")
			ident := strings.TrimSpace(fields[len(fields)-1])
			if ident == "" {
				continue
			}
			used := regexp.MustCompile(`\b` + regexp.QuoteMeta(ident) + `\.get\(`)
			if used.MatchString(text) {
				return ident
			}
		}
	}
	return ""
}

// insertBeforeExport inserts snippet just before the chunk's export{ clause.
func insertBeforeExport(text, snippet string) (string, bool) {
	loc := exportPattern.FindStringIndex(text)
	if loc == nil {
		return text, false
	}
	return text[:loc[0]] + snippet + text[loc[0]:], true
}

// HidePublishButton forces the "Publish HTML to web" menu item's hidden flag
// to true. That action uploads notebook HTML to an external service, which an
// air-gapped deployment must never do.
func HidePublishButton(siteDir string, errs *ErrorList) {
	candidates, err := globTree(siteDir, "useNotebookActions-*.js")
	if err != nil {
		errs.Addf("publish-button", "scanning %s: %v", siteDir, err)
		return
	}

	patched := 0
	for _, path := range candidates {
		ok, err := rewriteFile(path, func(text string) (string, bool) {
			updated := publishHiddenPattern.ReplaceAllString(text, "${1}!0")
			return updated, updated != text
		})
		if err != nil {
			errs.Addf("publish-button", "%v", err)
			continue
		}
		if ok {
			patched++
		} else {
			errs.Addf("publish-button", "publish-button pattern did not match in %s", path)
		}
	}

	if patched == 0 {
		// Chunk naming may have changed; search every script.
		all, err := globTree(siteDir, "*.js")
		if err != nil {
			errs.Addf("publish-button", "scanning %s: %v", siteDir, err)
			return
		}
		for _, path := range all {
			ok, err := rewriteFile(path, func(text string) (string, bool) {
				if !strings.Contains(text, "Publish HTML to web") {
					return text, false
				}
				updated := publishHiddenPattern.ReplaceAllString(text, "${1}!0")
				return updated, updated != text
			})
			if err == nil && ok {
				patched++
			}
		}
	}

	if patched == 0 {
		errs.Addf("publish-button", "no files contained the publish-button pattern")
		return
	}
	logger.Logger().Infof("Hid publish button in %d file(s)", patched)
}

// SyncModeURL patches mode-*.js chunks so toggling between edit and present
// view writes ?view-as=present into the URL via history.replaceState. The
// share function reads window.location.href, so generated links carry the
// mode along.
func SyncModeURL(siteDir string, errs *ErrorList) {
	paths, err := globTree(siteDir, "mode-*.js")
	if err != nil {
		errs.Addf("mode-url-sync", "scanning %s: %v", siteDir, err)
		return
	}

	patched := 0
	for _, path := range paths {
		ok, err := rewriteFile(path, func(text string) (string, bool) {
			store := findJotaiStore(text)
			if store == "" {
				errs.Addf("mode-url-sync", "could not find state store in %s", path)
				return text, false
			}
			atomMatch := modeAtomPattern.FindStringSubmatch(text)
			if atomMatch == nil {
				errs.Addf("mode-url-sync", "could not find mode atom in %s", path)
				return text, false
			}
			modeAtom := atomMatch[1]

			subscription := fmt.Sprintf(
				`%[1]s.sub(%[2]s,()=>{var _m=%[1]s.get(%[2]s).mode;`+
					`var _u=new URL(window.location.href);`+
					`if(_m==="present")_u.searchParams.set("view-as","present");`+
					`else _u.searchParams.delete("view-as");`+
					`if(_u.href!==window.location.href)history.replaceState(null,"",_u.href)});`,
				store, modeAtom)

			updated, ok := insertBeforeExport(text, subscription)
			if !ok {
				errs.Addf("mode-url-sync", "could not find export{ in %s", path)
				return text, false
			}
			return updated, true
		})
		if err != nil {
			errs.Addf("mode-url-sync", "%v", err)
			continue
		}
		if ok {
			patched++
		}
	}

	if patched == 0 {
		errs.Addf("mode-url-sync", "no mode-*.js files were patched")
		return
	}
	logger.Logger().Infof("Patched mode URL sync in %d file(s)", patched)
}

// SyncLayoutURL patches layout-*.js chunks in two places: the default layout
// is read from ?layout= on load, and layout changes are written back to the
// URL so shared links open in the same layout.
func SyncLayoutURL(siteDir string, errs *ErrorList) {
	paths, err := globTree(siteDir, "layout-*.js")
	if err != nil {
		errs.Addf("layout-url-sync", "scanning %s: %v", siteDir, err)
		return
	}

	patched := 0
	for _, path := range paths {
		ok, err := rewriteFile(path, func(text string) (string, bool) {
			const defaultLayout = `selectedLayout:"vertical"`
			if !strings.Contains(text, defaultLayout) {
				errs.Addf("layout-url-sync", "could not find %s in %s", defaultLayout, path)
				return text, false
			}
			text = strings.ReplaceAll(text, defaultLayout,
				`selectedLayout:(new URL(window.location.href).searchParams.get("layout")||"vertical")`)

			store := findJotaiStore(text)
			if store == "" {
				errs.Addf("layout-url-sync", "could not find state store in %s", path)
				return text, false
			}
			promiseMatch := promiseAllPattern.FindStringSubmatch(text)
			if promiseMatch == nil {
				errs.Addf("layout-url-sync", "could not find Promise.all in %s", path)
				return text, false
			}
			atomMatch := valueAtomPattern.FindStringSubmatch(text)
			if atomMatch == nil {
				errs.Addf("layout-url-sync", "could not find valueAtom in %s", path)
				return text, false
			}

			subscription := fmt.Sprintf(
				`%[3]s.then(()=>{%[1]s.sub(%[2]s,()=>{`+
					`var _l=%[1]s.get(%[2]s).selectedLayout;`+
					`var _u=new URL(window.location.href);`+
					`if(_l&&_l!=="vertical")_u.searchParams.set("layout",_l);`+
					`else _u.searchParams.delete("layout");`+
					`if(_u.href!==window.location.href)history.replaceState(null,"",_u.href)})});`,
				store, atomMatch[1], promiseMatch[1])

			updated, ok := insertBeforeExport(text, subscription)
			if !ok {
				errs.Addf("layout-url-sync", "could not find export{ in %s", path)
				return text, false
			}
			return updated, true
		})
		if err != nil {
			errs.Addf("layout-url-sync", "%v", err)
			continue
		}
		if ok {
			patched++
		}
	}

	if patched == 0 {
		errs.Addf("layout-url-sync", "no layout-*.js files were patched")
		return
	}
	logger.Logger().Infof("Patched layout URL sync in %d file(s)", patched)
}

// PatchShareLinks makes the "Create WebAssembly link" action work in a
// self-hosted export. The share function gets fallbacks for reading the
// notebook code (URL hash, then the <marimo-code> element, then a hard
// error), and each notebook page gets an inline handler so incoming #code/
// links override the bundled code.
func PatchShareLinks(siteDir string, single bool, errs *ErrorList) {
	patched := 0

	shareFiles, err := globTree(siteDir, "share-*.js")
	if err != nil {
		errs.Addf("share-links", "scanning %s: %v", siteDir, err)
		return
	}
	for _, path := range shareFiles {
		ok, err := rewriteFile(path, func(text string) (string, bool) {
			match := shareFnPattern.FindStringSubmatchIndex(text)
			if match == nil {
				errs.Addf("share-links", "could not find share function pattern in %s", path)
				return text, false
			}
			codeVar := text[match[4]:match[5]]
			returnStart := match[6]

			// Alias of the compression module, needed to decompress the
			// hash fallback with the same import.
			lzAlias := ""
			if m := lzAliasPattern.FindStringSubmatch(text[match[1]:]); m != nil {
				lzAlias = m[1]
			}

			var fallback strings.Builder
			if lzAlias != "" {
				fmt.Fprintf(&fallback,
					`if(!%[1]s){var _h=window.location.hash;`+
						`if(_h&&_h.indexOf("#code/")===0)`+
						`%[1]s=(0,%[2]s.decompressFromEncodedURIComponent)(_h.slice(6))}`,
					codeVar, lzAlias)
			}
			fmt.Fprintf(&fallback,
				`if(!%[1]s){var _el=document.querySelector("marimo-code");`+
					`if(_el)%[1]s=decodeURIComponent(_el.textContent||"").trim()}`,
				codeVar)
			fmt.Fprintf(&fallback,
				`if(!%s){throw new Error("Notebook still loading. Please wait and try again.")}`,
				codeVar)

			return text[:returnStart] + fallback.String() + text[returnStart:], true
		})
		if err != nil {
			errs.Addf("share-links", "%v", err)
			continue
		}
		if ok {
			patched++
		}
	}

	for _, path := range notebookPages(siteDir, single) {
		ok, err := rewriteFile(path, func(text string) (string, bool) {
			if strings.Contains(text, "data-marimo-share") {
				return text, false
			}
			loc := marimoCodeEndPattern.FindStringIndex(text)
			if loc == nil {
				errs.Addf("share-links", "could not find </marimo-code> in %s", path)
				return text, false
			}
			return text[:loc[1]] + hashHandlerScript + text[loc[1]:], true
		})
		if err != nil {
			errs.Addf("share-links", "%v", err)
			continue
		}
		if ok {
			patched++
		}
	}

	if patched == 0 {
		errs.Addf("share-links", "no files were patched for share-link support")
		return
	}
	logger.Logger().Infof("Patched share-link support in %d file(s)", patched)
}

// EmbedShareLayout serializes grid/slides cell positions into generated share
// links. The layout chunk's serializer is exposed as a global, and the share
// function injects it as a layout_file data URI on marimo.App(...). Must run
// after PatchShareLinks, whose error throw is the insertion anchor.
func EmbedShareLayout(siteDir string, errs *ErrorList) {
	layoutFiles, err := globTree(siteDir, "layout-*.js")
	if err != nil {
		errs.Addf("layout-embed", "scanning %s: %v", siteDir, err)
		return
	}
	for _, path := range layoutFiles {
		_, err := rewriteFile(path, func(text string) (string, bool) {
			serIdx := strings.Index(text, ".serializeLayout(")
			if serIdx == -1 {
				errs.Addf("layout-embed", "could not find .serializeLayout( in %s", path)
				return text, false
			}

			// The enclosing function is the last one declared before the
			// serializeLayout call, either assigned or declared form.
			head := text[:serIdx]
			fns := assignedFnPattern.FindAllStringSubmatch(head, -1)
			if fns == nil {
				fns = declaredFnPattern.FindAllStringSubmatch(head, -1)
			}
			if fns == nil {
				errs.Addf("layout-embed", "could not find enclosing function for serializeLayout in %s", path)
				return text, false
			}
			fnName := fns[len(fns)-1][1]

			// The function variable is assigned inside the module's async
			// initialization, so the global wraps the call lazily.
			snippet := fmt.Sprintf(
				`window.__marimoGetSerializedLayout=function(){return %s()};`, fnName)
			updated, ok := insertBeforeExport(text, snippet)
			if !ok {
				errs.Addf("layout-embed", "could not find export{ in %s", path)
				return text, false
			}
			return updated, true
		})
		if err != nil {
			errs.Addf("layout-embed", "%v", err)
		}
	}

	shareFiles, err := globTree(siteDir, "share-*.js")
	if err != nil {
		errs.Addf("layout-embed", "scanning %s: %v", siteDir, err)
		return
	}
	for _, path := range shareFiles {
		_, err := rewriteFile(path, func(text string) (string, bool) {
			varMatch := layoutThrowPattern.FindStringSubmatch(text)
			if varMatch == nil {
				errs.Addf("layout-embed", "could not find error-throw pattern in %s", path)
				return text, false
			}
			codeVar := varMatch[1]

			anchorIdx := strings.Index(text, loadingErrorAnchor)
			if anchorIdx == -1 {
				errs.Addf("layout-embed", "could not find error anchor in %s", path)
				return text, false
			}
			insertPos := anchorIdx + len(loadingErrorAnchor)

			injection := strings.ReplaceAll(
				`var _gsl=window.__marimoGetSerializedLayout;`+
					`if(_gsl){var _ld=_gsl();if(_ld){`+
					`var _lj=JSON.stringify(_ld);`+
					`var _lb=btoa(_lj);`+
					`var _luri="data:application/json;base64,"+_lb;`+
					`if(CODE.indexOf("layout_file=")!==-1)`+
					`CODE=CODE.replace(/layout_file=["'][^"']*["']/,`+
					`'layout_file="'+_luri+'"');`+
					`else if(CODE.indexOf("marimo.App(")!==-1)`+
					`CODE=CODE.replace("marimo.App(",`+
					`'marimo.App(layout_file="'+_luri+'\",');`+
					`}}`,
				"CODE", codeVar)

			return text[:insertPos] + injection + text[insertPos:], true
		})
		if err != nil {
			errs.Addf("layout-embed", "%v", err)
		}
	}
}

// notebookPages returns the index.html of each exported notebook: the site
// root for a single-notebook layout, each subdirectory otherwise.
func notebookPages(siteDir string, single bool) []string {
	if single {
		return []string{filepath.Join(siteDir, "index.html")}
	}
	pages, err := globTree(siteDir, "index.html")
	if err != nil {
		return nil
	}
	root := filepath.Join(siteDir, "index.html")
	var out []string
	for _, p := range pages {
		if p != root {
			out = append(out, p)
		}
	}
	return out
}

// rewriteFile reads path, applies fn, and writes the result back when fn
// changed it. Missing files are not an error so callers can probe optional
// chunks.
func rewriteFile(path string, fn func(string) (string, bool)) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	updated, changed := fn(string(data))
	if !changed {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, nil
}
