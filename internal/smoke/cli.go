package smoke

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadUsernames parses usernames from r, one per line. Blank lines and
// lines starting with # are skipped.
func ReadUsernames(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read usernames: %w", err)
	}
	return out, nil
}

// SplitUsernames parses a comma separated list.
func SplitUsernames(list string) []string {
	var out []string
	for _, s := range strings.Split(list, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ShowHelp prints usage information for the smoke tool.
func ShowHelp() {
	os.Stdout.WriteString(`tastebud smoke
==============

Generates embeddings for a set of users on a running tastebud instance,
fetches their matches and checks every list for ordering, range and
self-match violations.

Usage:
  smoke [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -users string
        Comma separated usernames
  -users-file string
        File with one username per line
  -seed int
        Ghosts to seed first; 0 skips seeding
  -force
        Replace existing ghosts when seeding
  -limit int
        Matches requested per user (default 20)
  -workers int
        Concurrent requests (default CPU cores)
  -admin-key string
        Admin key for the seed route (default $TASTEBUD_ADMIN_KEY)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Write the JSON report here
  -verbose
        Log every user
  -help
        Show this help message
`)
}
