package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// cloudMarker names a cloud provider's credential file and its
// user-facing label, following the volume-mount profile in spec.md §6.
var cloudMarkers = []struct {
	path  string
	label string
}{
	{filepath.Join(".aws", "credentials"), "AWS"},
	{filepath.Join(".config", "gcloud", "credentials.db"), "Google Cloud"},
	{filepath.Join(".config", "doctl", "config.yaml"), "DigitalOcean"},
	{filepath.Join(".azure", "azureProfile.json"), "Azure"},
	{filepath.Join(".kube", "config"), "Kubernetes"},
}

// probeCloudAccounts reports which cloud credential files are present
// under $HOME, without reading or exposing their contents.
func probeCloudAccounts(ctx context.Context, cwd string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	var found []string
	for _, m := range cloudMarkers {
		if _, err := os.Stat(filepath.Join(home, m.path)); err == nil {
			found = append(found, m.label)
		}
	}
	if len(found) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Cloud Accounts\n")
	for _, label := range found {
		fmt.Fprintf(&b, "- %s credentials present\n", label)
	}
	return b.String()
}
