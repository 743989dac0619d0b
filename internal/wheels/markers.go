package wheels

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// markerEnv approximates the PEP 508 marker environment of the Pyodide
// runtime the wheels will execute in (emscripten/wasm32, CPython 3.12).
var markerEnv = map[string]string{
	"os_name":                "posix",
	"sys_platform":           "emscripten",
	"platform_system":        "Emscripten",
	"platform_machine":       "wasm32",
	"platform_release":       "",
	"implementation_name":    "cpython",
	"implementation_version": "3.12.1",
	"python_version":         "3.12",
	"python_full_version":    "3.12.1",
	"extra":                  "",
}

// MarkerMatches evaluates a PEP 508 environment marker against the Pyodide
// environment. The grammar handled here covers the conjunctions and version
// comparisons that appear in real wheel metadata; anything unrecognized is
// treated as matching, the same lenient stance micropip takes.
func MarkerMatches(marker string) bool {
	marker = strings.TrimSpace(marker)
	if marker == "" {
		return true
	}
	for _, clause := range splitTopLevel(marker, " or ") {
		if andClauseMatches(clause) {
			return true
		}
	}
	return false
}

func andClauseMatches(clause string) bool {
	for _, term := range splitTopLevel(clause, " and ") {
		if !termMatches(term) {
			return false
		}
	}
	return true
}

// splitTopLevel splits on sep outside parentheses, stripping one level of
// enclosing parens from each piece.
func splitTopLevel(s, sep string) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i+len(sep) <= len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 && s[i:i+len(sep)] == sep {
			parts = append(parts, s[last:i])
			last = i + len(sep)
			i += len(sep) - 1
		}
	}
	parts = append(parts, s[last:])
	for i, p := range parts {
		parts[i] = stripOuterParens(strings.TrimSpace(p))
	}
	return parts
}

// stripOuterParens removes one level of enclosing parens, but only when the
// leading ( closes at the final character. "(a) and (b)" must stay intact.
func stripOuterParens(s string) string {
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return s
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return s
			}
		}
	}
	return strings.TrimSpace(s[1 : len(s)-1])
}

// reducible reports whether splitTopLevel would actually break s down.
func reducible(s, sep string) bool {
	parts := splitTopLevel(s, sep)
	return len(parts) > 1 || parts[0] != s
}

var comparisonOps = []string{"===", "==", "!=", ">=", "<=", ">", "<", " not in ", " in "}

func termMatches(term string) bool {
	// Nested boolean expressions reappear after paren stripping. Recurse only
	// when splitting makes progress; an unbalanced marker that cannot be
	// reduced gets the lenient default instead of looping.
	if strings.Contains(term, " or ") || strings.Contains(term, " and ") {
		if reducible(term, " or ") || reducible(term, " and ") {
			return MarkerMatches(term)
		}
		return true
	}

	for _, op := range comparisonOps {
		idx := strings.Index(term, op)
		if idx < 0 {
			continue
		}
		left := resolveOperand(term[:idx])
		right := resolveOperand(term[idx+len(op):])
		return compare(left, strings.TrimSpace(op), right)
	}
	// Not a comparison we understand.
	return true
}

func resolveOperand(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') {
		return s[1 : len(s)-1]
	}
	if v, ok := markerEnv[s]; ok {
		return v
	}
	return s
}

func compare(left, op, right string) bool {
	// Version-shaped operands compare as versions, not strings, so that
	// "3.10" sorts after "3.9".
	lv, lerr := semver.NewVersion(left)
	rv, rerr := semver.NewVersion(right)
	if lerr == nil && rerr == nil {
		switch op {
		case "==", "===":
			return lv.Equal(rv)
		case "!=":
			return !lv.Equal(rv)
		case ">=":
			return !lv.LessThan(rv)
		case "<=":
			return !lv.GreaterThan(rv)
		case ">":
			return lv.GreaterThan(rv)
		case "<":
			return lv.LessThan(rv)
		}
	}

	switch op {
	case "==", "===":
		return left == right
	case "!=":
		return left != right
	case ">=":
		return left >= right
	case "<=":
		return left <= right
	case ">":
		return left > right
	case "<":
		return left < right
	case "in":
		return strings.Contains(right, left)
	case "not in":
		return !strings.Contains(right, left)
	}
	return true
}

// FilterRequiresDist reduces a wheel's Requires-Dist entries to the
// dependencies actually needed inside Pyodide: extras-only entries and
// non-matching environment markers are dropped, and unparsable entries are
// skipped rather than failing the whole resolution.
func FilterRequiresDist(requiresDist []string) []Requirement {
	var result []Requirement
	for _, depStr := range requiresDist {
		req, err := ParseRequirement(depStr)
		if err != nil {
			continue
		}
		if req.GitURL != "" || len(req.Extras) > 0 {
			continue
		}
		if !MarkerMatches(req.Marker) {
			continue
		}
		result = append(result, req)
	}
	return result
}
