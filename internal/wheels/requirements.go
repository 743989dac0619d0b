package wheels

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Requirement is one parsed line of a requirements-*.in file, or one
// Requires-Dist entry from wheel metadata.
type Requirement struct {
	Raw    string
	Name   string
	Extras []string
	Spec   string // raw PEP 440 specifier text, "" when unconstrained
	Marker string // raw environment marker, "" when absent
	GitURL string // non-empty for git+https://... requirements

	Constraint *semver.Constraints // nil when unconstrained
}

var requirementPattern = regexp.MustCompile(
	`^\s*([A-Za-z0-9][A-Za-z0-9._-]*)\s*(\[([^\]]*)\])?\s*(\(([^)]*)\)|[^;]*)?$`)

// ParseRequirement parses strings like "Markdown", "narwhals>=2.0,<3",
// "requests[socks]; python_version >= '3.8'" or "git+https://host/repo".
func ParseRequirement(s string) (Requirement, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Requirement{}, fmt.Errorf("empty requirement")
	}
	if strings.HasPrefix(raw, "git+") {
		return Requirement{Raw: raw, GitURL: raw}, nil
	}

	spec := raw
	marker := ""
	if idx := strings.Index(raw, ";"); idx >= 0 {
		spec = strings.TrimSpace(raw[:idx])
		marker = strings.TrimSpace(raw[idx+1:])
	}

	m := requirementPattern.FindStringSubmatch(spec)
	if m == nil {
		return Requirement{}, fmt.Errorf("could not parse requirement %q", s)
	}

	req := Requirement{Raw: raw, Name: m[1], Marker: marker}
	if m[3] != "" {
		for _, extra := range strings.Split(m[3], ",") {
			if e := strings.TrimSpace(extra); e != "" {
				req.Extras = append(req.Extras, e)
			}
		}
	}

	specText := strings.TrimSpace(m[4])
	if strings.HasPrefix(specText, "(") {
		specText = strings.TrimSpace(m[5])
	}
	if specText != "" {
		req.Spec = specText
		c, err := semver.NewConstraint(translateSpecifier(specText))
		if err != nil {
			return Requirement{}, fmt.Errorf("requirement %q: bad specifier %q: %w", s, specText, err)
		}
		req.Constraint = c
	}
	return req, nil
}

// translateSpecifier rewrites PEP 440 operators into the constraint syntax
// semver understands. "~=X.Y.Z" becomes "~X.Y.Z" (same meaning), while the
// two-component form "~=X.Y" pins only the major version and must expand to
// an explicit range: semver's ~X.Y would stop at X.Y+1 instead of X+1. "=="
// with a trailing .* wildcard becomes a plain wildcard match.
func translateSpecifier(spec string) string {
	parts := strings.Split(spec, ",")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		switch {
		case strings.HasPrefix(p, "~="):
			v := strings.TrimSpace(p[2:])
			if segs := strings.Split(v, "."); len(segs) == 2 {
				if major, err := strconv.Atoi(segs[0]); err == nil {
					p = fmt.Sprintf(">=%s, <%d", v, major+1)
					break
				}
			}
			p = "~" + v
		case strings.HasPrefix(p, "=="):
			v := strings.TrimSpace(p[2:])
			if strings.HasSuffix(v, ".*") {
				p = strings.TrimSuffix(v, ".*")
			} else {
				p = "=" + v
			}
		}
		parts[i] = p
	}
	return strings.Join(parts, ",")
}

// ParseRequirementsFile reads a requirements.in-style file, stripping comments
// and blank lines. Unparsable lines fail the build rather than being skipped,
// since a silently dropped requirement surfaces as a broken notebook later.
func ParseRequirementsFile(path string) ([]Requirement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var reqs []Requirement
	for lineNo, raw := range strings.Split(string(data), "\n") {
		line := raw
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		req, err := ParseRequirement(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo+1, err)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}
