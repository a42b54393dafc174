package transport

import (
	"fmt"
	"io"
	"strings"
)

// PrintBanner advertises the server's mTLS identity on startup, per
// spec.md §6: sandbox mode brackets the CA in BEGIN/END markers,
// self-signed mode prints a copy-to-client prompt, plaintext prints
// nothing.
func PrintBanner(w io.Writer, id *Identity) {
	switch id.Mode {
	case ModePlaintext:
		return
	case ModeSandbox:
		fmt.Fprintf(w, "🔐 mTLS enabled - %s\n", id.Mode)
		fmt.Fprintln(w, "---BEGIN STAKPAK SERVER CA---")
		fmt.Fprint(w, strings.TrimRight(string(id.CAPEM), "\n")+"\n")
		fmt.Fprintln(w, "---END STAKPAK SERVER CA---")
	case ModeSelfSigned:
		fmt.Fprintf(w, "🔐 mTLS enabled - %s\n", id.Mode)
		fmt.Fprintln(w, "📜 CA Certificate (copy this to your client):")
		fmt.Fprint(w, string(id.CAPEM))
	}
}

// ServerURL formats the advertised MCP endpoint for the selected mode.
func ServerURL(id *Identity, addr string, path string) string {
	scheme := "http"
	if id.Mode != ModePlaintext {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s", scheme, addr, path)
}
