package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const markerWalkMaxDepth = 5

var iacMarkerFiles = map[string]string{
	"main.tf":          "Terraform",
	"Dockerfile":       "Docker",
	"docker-compose.yml": "Docker Compose",
	".github/workflows": "GitHub Actions",
}

// probeProjectMarkers scans cwd (depth 5) for language, IaC, and CI
// markers, plus a monorepo indicator.
func probeProjectMarkers(ctx context.Context, cwd string) string {
	var langs []string
	seenLang := make(map[string]bool)

	var iacTools []string
	seenIac := make(map[string]bool)

	sawTerraformGlob := false

	walkDir(cwd, 0, markerWalkMaxDepth, func(dir string) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		if filepath.Base(dir) == "workflows" && filepath.Base(filepath.Dir(dir)) == ".github" {
			if tool := iacMarkerFiles[".github/workflows"]; !seenIac[tool] {
				seenIac[tool] = true
				iacTools = append(iacTools, tool)
			}
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() {
				continue
			}
			for _, m := range languageMarkers {
				if name == m.file && !seenLang[m.lang] {
					seenLang[m.lang] = true
					langs = append(langs, m.lang)
				}
			}
			if strings.HasSuffix(name, ".tf") {
				sawTerraformGlob = true
			}
			if tool, ok := iacMarkerFiles[name]; ok && !seenIac[tool] {
				seenIac[tool] = true
				iacTools = append(iacTools, tool)
			}
		}
	})
	if sawTerraformGlob && !seenIac["Terraform"] {
		iacTools = append(iacTools, "Terraform")
	}

	monorepo := isMonorepo(cwd)

	if len(langs) == 0 && len(iacTools) == 0 && !monorepo {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Project Markers\n")
	for _, l := range langs {
		fmt.Fprintf(&b, "- Language: %s\n", l)
	}
	for _, t := range iacTools {
		fmt.Fprintf(&b, "- IaC/CI: %s\n", t)
	}
	if monorepo {
		b.WriteString("- Monorepo workspace detected\n")
	}
	return b.String()
}

func isMonorepo(cwd string) bool {
	for _, marker := range []string{"lerna.json", "pnpm-workspace.yaml", "turbo.json", "nx.json"} {
		if _, err := os.Stat(filepath.Join(cwd, marker)); err == nil {
			return true
		}
	}
	if data, err := os.ReadFile(filepath.Join(cwd, "package.json")); err == nil {
		if strings.Contains(string(data), `"workspaces"`) {
			return true
		}
	}
	if data, err := os.ReadFile(filepath.Join(cwd, "Cargo.toml")); err == nil {
		if strings.Contains(string(data), "[workspace]") {
			return true
		}
	}
	return false
}
