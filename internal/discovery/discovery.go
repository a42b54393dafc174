// Package discovery implements the five environment probes (C1): git
// repositories, project/IaC/CI markers, listening ports, cron/scheduled
// tasks, and cloud accounts. Each probe is blocking filesystem/process
// work; probes are fanned out over a bounded worker pool and their
// markdown sections are joined in deterministic, probe-name-sorted order.
package discovery

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// probe is a named, independently failing discovery unit. A probe never
// returns an error to the caller: transient I/O failures degrade to an
// empty (or placeholder) section instead (spec.md §7 kind 2).
type probe struct {
	name string
	run  func(ctx context.Context, cwd string) string
}

func probes() []probe {
	return []probe{
		{name: "cloud-accounts", run: probeCloudAccounts},
		{name: "cron", run: probeCron},
		{name: "git-repos", run: probeGitRepos},
		{name: "ports", run: probePorts},
		{name: "project-markers", run: probeProjectMarkers},
	}
}

// RunAll drives all probes concurrently via a bounded errgroup, then joins
// non-empty sections sorted by probe name for a stable, deterministic
// result across runs given the same inputs (spec.md §4.1, §5).
func RunAll(ctx context.Context, cwd string) string {
	all := probes()
	results := make([]string, len(all))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(5)

	for i, p := range all {
		i, p := i, p
		g.Go(func() error {
			results[i] = p.run(gctx, cwd)
			return nil
		})
	}
	_ = g.Wait() // probes never return errors; failures degrade to empty sections

	type named struct {
		name, section string
	}
	sections := make([]named, 0, len(all))
	for i, p := range all {
		if results[i] != "" {
			sections = append(sections, named{p.name, results[i]})
		}
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].name < sections[j].name })

	out := ""
	for i, s := range sections {
		if i > 0 {
			out += "\n\n"
		}
		out += s.section
	}
	return out
}
