// Package seedlist reads newline-delimited seed URL files.
//
// Lines starting with "#" and blank lines are ignored. Duplicate URLs are
// dropped and the first occurrence keeps its position.
package seedlist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Parse reads one URL per line from r.
func Parse(r io.Reader) ([]string, error) {
	var urls []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return Merge(urls), nil
}

// Load reads and merges the given files in order.
func Load(paths ...string) ([]string, error) {
	lists := make([][]string, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open seed file: %w", err)
		}
		urls, err := Parse(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read seed file %s: %w", p, err)
		}
		lists = append(lists, urls)
	}
	return Merge(lists...), nil
}

// Merge concatenates lists and removes duplicates, keeping first occurrences.
func Merge(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range lists {
		for _, u := range l {
			u = strings.TrimSpace(u)
			if u == "" {
				continue
			}
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}
