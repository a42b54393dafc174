// Package project implements project context discovery (C3): walking
// ancestors of a start directory for the nearest AGENTS.md/APPS.md,
// falling back to a user-global APPS.md.
package project

import (
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/stakpak/agent-core/pkg/models"
)

// MaxAncestorDepth bounds the ancestor walk (spec.md §4.2, §9).
const MaxAncestorDepth = 5

var agentsNames = []string{"AGENTS.md", "agents.md"}
var appsNames = []string{"APPS.md", "apps.md"}

// Discoverer finds AGENTS.md/APPS.md context files using an injected
// filesystem, so tests can run against an in-memory afero.Fs.
type Discoverer struct {
	fs      afero.Fs
	homeDir string
}

func NewDiscoverer(fs afero.Fs, homeDir string) *Discoverer {
	return &Discoverer{fs: fs, homeDir: homeDir}
}

// Discover walks start and up to MaxAncestorDepth ancestors looking for
// the nearest AGENTS.md (Critical) and APPS.md (High); APPS.md falls back
// to $HOME/.stakpak/APPS.md when no ancestor has one. Discovered files are
// ordered AGENTS.md before APPS.md, per spec.md §3.
func (d *Discoverer) Discover(start string) *models.ProjectContext {
	pc := &models.ProjectContext{}

	if agents := d.findNearest(start, agentsNames, models.PriorityCritical); agents != nil {
		pc.Files = append(pc.Files, agents)
	}

	apps := d.findNearest(start, appsNames, models.PriorityHigh)
	if apps == nil {
		apps = d.fallbackApps()
	}
	if apps != nil {
		pc.Files = append(pc.Files, apps)
	}

	return pc
}

// findNearest returns the file found in the directory closest to start,
// trying each candidate name at each level before moving to the parent.
// The ancestor walk always terminates: pop() returns false at the
// filesystem root, and depth is additionally capped at MaxAncestorDepth.
func (d *Discoverer) findNearest(start string, names []string, priority models.Priority) *models.ContextFile {
	dir := start

	for depth := 0; depth <= MaxAncestorDepth; depth++ {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if content, ok := d.readFile(candidate); ok {
				return models.NewContextFile(name, d.canonicalize(candidate), content, priority)
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// filesystem root: pop() returns false.
			break
		}
		dir = parent
	}

	return nil
}

func (d *Discoverer) fallbackApps() *models.ContextFile {
	if d.homeDir == "" {
		return nil
	}
	candidate := filepath.Join(d.homeDir, ".stakpak", "APPS.md")
	content, ok := d.readFile(candidate)
	if !ok {
		return nil
	}
	return models.NewContextFile("APPS.md", d.canonicalize(candidate), content, models.PriorityHigh)
}

func (d *Discoverer) readFile(path string) (string, bool) {
	info, err := d.fs.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	data, err := afero.ReadFile(d.fs, path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// canonicalize returns the absolute, symlink-resolved path when possible,
// else the original path unchanged (spec.md §4.2). Symlink resolution only
// applies to the real OS filesystem; an in-memory afero.Fs (used in tests)
// has no symlinks to resolve.
func (d *Discoverer) canonicalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if _, ok := d.fs.(*afero.OsFs); ok {
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			return resolved
		}
	}
	return abs
}
