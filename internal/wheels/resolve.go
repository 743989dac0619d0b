package wheels

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/airgap-notebooks/site-composer/internal/fetch"
	"github.com/airgap-notebooks/site-composer/internal/pyodide"
	"github.com/airgap-notebooks/site-composer/internal/utils/logger"
	"github.com/airgap-notebooks/site-composer/internal/utils/shell"
)

// Resolver downloads PyPI wheels (and their transitive pure-Python
// dependencies) into the site's pyodide/ directory and registers each one in
// pyodide-lock.json so micropip installs them without network access.
type Resolver struct {
	Client  *fetch.Client
	SiteDir string
	Env     []string // env assignments for pip when building git wheels

	lock    *pyodide.Lock
	visited map[string]string // normalized name -> resolved version
}

// NewResolver loads the site's lock file and returns a Resolver.
func NewResolver(client *fetch.Client, siteDir string) (*Resolver, error) {
	lock, err := pyodide.LoadLock(siteDir)
	if err != nil {
		return nil, fmt.Errorf("wheel resolution needs the Pyodide lock file: %w", err)
	}
	return &Resolver{
		Client:  client,
		SiteDir: siteDir,
		lock:    lock,
		visited: map[string]string{},
	}, nil
}

func (r *Resolver) pyodideDir() string {
	return filepath.Join(r.SiteDir, "pyodide")
}

// ResolveAll processes the top-level requirements in order.
func (r *Resolver) ResolveAll(reqs []Requirement) error {
	for _, req := range reqs {
		if req.GitURL != "" {
			if err := r.resolveGit(req.GitURL); err != nil {
				return err
			}
			continue
		}
		if err := r.resolve(req.Name, req.Constraint); err != nil {
			return err
		}
	}
	return nil
}

// Resolve downloads a single named package with an optional constraint.
func (r *Resolver) Resolve(name string, constraint *semver.Constraints) error {
	return r.resolve(name, constraint)
}

func (r *Resolver) resolve(name string, constraint *semver.Constraints) error {
	log := logger.Logger()
	key := pyodide.NormalizeName(name)

	if _, done := r.visited[key]; done {
		return nil
	}

	if r.lock.Satisfies(name, constraint) {
		version, _ := r.lock.Version(name)
		log.Infof("%s %s already in Pyodide bundle", name, version)
		r.visited[key] = version
		return nil
	}

	meta, err := fetchProject(r.Client, name)
	if err != nil {
		return err
	}
	version, wheel, err := selectVersion(meta, constraint)
	if err != nil {
		return fmt.Errorf("resolving %s%s: %w", name, specSuffix(constraint), err)
	}
	r.visited[key] = version

	dest := filepath.Join(r.pyodideDir(), wheel.Filename)
	if _, err := os.Stat(dest); err == nil {
		log.Infof("%s %s already downloaded", name, version)
	} else {
		r.removeStaleWheels(name, key)
		log.Infof("downloading %s %s", name, version)
		if err := r.Client.Download(wheel.URL, dest, ""); err != nil {
			return err
		}
	}

	wheelMeta, err := ReadWheelMetadata(dest)
	if err != nil {
		return err
	}
	return r.registerAndRecurse(dest, name, version, wheelMeta)
}

// resolveGit builds a wheel from a git URL via pip, then treats it like any
// downloaded wheel.
func (r *Resolver) resolveGit(gitURL string) error {
	log := logger.Logger()
	log.Infof("building wheel from %s", gitURL)

	tmpDir, err := os.MkdirTemp("", "site-composer-wheel-")
	if err != nil {
		return fmt.Errorf("creating wheel build dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	cmd := fmt.Sprintf("pip wheel --no-deps --wheel-dir %s %s", tmpDir, gitURL)
	if _, err := shell.ExecCmdWithStream(cmd, r.Env); err != nil {
		return fmt.Errorf("building wheel from %s: %w", gitURL, err)
	}

	built, err := filepath.Glob(filepath.Join(tmpDir, "*.whl"))
	if err != nil || len(built) == 0 {
		return fmt.Errorf("no wheel produced for %s", gitURL)
	}
	wheelPath := built[0]
	if !IsPureWheel(filepath.Base(wheelPath)) {
		return fmt.Errorf("%s built a non-pure wheel %s; Pyodide cannot load it",
			gitURL, filepath.Base(wheelPath))
	}

	meta, err := ReadWheelMetadata(wheelPath)
	if err != nil {
		return err
	}

	dest := filepath.Join(r.pyodideDir(), filepath.Base(wheelPath))
	data, err := os.ReadFile(wheelPath)
	if err != nil {
		return fmt.Errorf("reading built wheel: %w", err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return fmt.Errorf("copying wheel into site: %w", err)
	}

	r.visited[pyodide.NormalizeName(meta.Name)] = meta.Version
	return r.registerAndRecurse(dest, meta.Name, meta.Version, meta)
}

func (r *Resolver) registerAndRecurse(wheelPath, name, version string, meta *WheelMetadata) error {
	if err := r.lock.Register(wheelPath, name, version, meta.Imports); err != nil {
		return err
	}

	log := logger.Logger()
	for _, dep := range FilterRequiresDist(meta.RequiresDist) {
		key := pyodide.NormalizeName(dep.Name)
		if _, done := r.visited[key]; done {
			continue
		}
		if r.lock.Satisfies(dep.Name, dep.Constraint) {
			r.visited[key] = "bundled"
			continue
		}
		log.Infof("  transitive dep: %s%s", dep.Name, dep.Spec)
		if err := r.resolve(dep.Name, dep.Constraint); err != nil {
			return err
		}
	}
	return nil
}

// removeStaleWheels drops older downloads of the same package so the site
// never ships two versions.
func (r *Resolver) removeStaleWheels(name, key string) {
	underscored := strings.ReplaceAll(strings.ToLower(name), "-", "_")
	for _, prefix := range []string{underscored, key} {
		matches, _ := filepath.Glob(filepath.Join(r.pyodideDir(), prefix+"-*.whl"))
		for _, stale := range matches {
			_ = os.Remove(stale)
		}
	}
}

func specSuffix(c *semver.Constraints) string {
	if c == nil {
		return ""
	}
	return " (" + c.String() + ")"
}
