package discovery

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// probePorts reports listening TCP ports by reading /proc/net/tcp and
// /proc/net/tcp6 on Linux. On other platforms (or if unreadable) it
// degrades to an empty section, per spec.md §7 kind 2.
func probePorts(ctx context.Context, cwd string) string {
	ports := make(map[int]bool)
	for _, path := range []string{"/proc/net/tcp", "/proc/net/tcp6"} {
		readListeningPorts(path, ports)
	}
	if len(ports) == 0 {
		return ""
	}

	sorted := make([]int, 0, len(ports))
	for p := range ports {
		sorted = append(sorted, p)
	}
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j] < sorted[i] {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}

	var b strings.Builder
	b.WriteString("## Listening Ports\n")
	for _, p := range sorted {
		fmt.Fprintf(&b, "- %d\n", p)
	}
	return b.String()
}

// tcpListenState is the /proc/net/tcp "st" field value for LISTEN.
const tcpListenState = "0A"

func readListeningPorts(path string, into map[int]bool) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue // header line
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		localAddr := fields[1]
		state := fields[3]
		if state != tcpListenState {
			continue
		}
		parts := strings.Split(localAddr, ":")
		if len(parts) != 2 {
			continue
		}
		port, err := strconv.ParseInt(parts[1], 16, 32)
		if err != nil {
			continue
		}
		into[int(port)] = true
	}
}
