package wheels

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/airgap-notebooks/site-composer/internal/fetch"
)

// pypiJSONBase is a var so tests can point resolution at a local server.
var pypiJSONBase = "https://pypi.org/pypi"

// releaseFile is one downloadable artifact of a PyPI release.
type releaseFile struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// projectMetadata is the PyPI JSON API response for a project.
type projectMetadata struct {
	Info struct {
		Version string `json:"version"`
	} `json:"info"`
	Releases map[string][]releaseFile `json:"releases"`
}

func fetchProject(c *fetch.Client, name string) (*projectMetadata, error) {
	body, err := c.DownloadText(fmt.Sprintf("%s/%s/json", pypiJSONBase, name), "")
	if err != nil {
		return nil, fmt.Errorf("fetching PyPI metadata for %s: %w", name, err)
	}
	meta := &projectMetadata{}
	if err := json.Unmarshal([]byte(body), meta); err != nil {
		return nil, fmt.Errorf("parsing PyPI metadata for %s: %w", name, err)
	}
	return meta, nil
}

func pureWheelOf(files []releaseFile) *releaseFile {
	for i := range files {
		if IsPureWheel(files[i].Filename) {
			return &files[i]
		}
	}
	return nil
}

// selectVersion picks the newest stable release with a pure-Python wheel that
// satisfies the constraint. The latest release is tried first since it is the
// common case; otherwise all releases are scanned.
func selectVersion(meta *projectMetadata, c *semver.Constraints) (string, *releaseFile, error) {
	satisfies := func(raw string) (*semver.Version, bool) {
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, false // PEP 440 oddities (post/dev releases) are skipped
		}
		if v.Prerelease() != "" {
			return nil, false
		}
		if c != nil && !c.Check(v) {
			return nil, false
		}
		return v, true
	}

	latest := meta.Info.Version
	if _, ok := satisfies(latest); ok {
		if wheel := pureWheelOf(meta.Releases[latest]); wheel != nil {
			return latest, wheel, nil
		}
		// Latest matches but has no pure wheel; fall through to scan.
	}

	type candidate struct {
		version *semver.Version
		raw     string
		wheel   *releaseFile
	}
	var candidates []candidate
	for raw, files := range meta.Releases {
		v, ok := satisfies(raw)
		if !ok {
			continue
		}
		if wheel := pureWheelOf(files); wheel != nil {
			candidates = append(candidates, candidate{v, raw, wheel})
		}
	}
	if len(candidates) == 0 {
		return "", nil, fmt.Errorf("no pure-Python wheel available")
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].version.GreaterThan(candidates[j].version)
	})
	return candidates[0].raw, candidates[0].wheel, nil
}
