// Package hosts parses a UNIX hosts(5)-style file into IP-to-names tuples
// for merging into the zone authority.
package hosts

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"
)

// Entry is one parsed (IP, names) tuple. Duplicate IPs across entries are
// permitted; the reconciler accumulates all of them.
type Entry struct {
	IP    netip.Addr
	Names []string
}

// Warnf is called for a line that could not be parsed. It is never fatal;
// the offending line is simply skipped. The default is a no-op so callers
// that don't care about diagnostics don't have to supply one.
type Warnf func(format string, args ...any)

// ParseFile reads path and returns its entries in file order. A missing
// path is not an error here; callers that require the file to exist should
// check os.Stat themselves (the reconciler treats an unconfigured hosts
// file as "no entries", not a failure).
func ParseFile(path string, warn Warnf) ([]Entry, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open hosts file %q: %w", path, err)
	}
	defer f.Close()
	return Parse(f, warn), nil
}

// Parse reads a hosts(5)-format stream and returns its entries in order.
// Unparseable lines are skipped with a warning, never fatal.
func Parse(r io.Reader, warn Warnf) []Entry {
	if warn == nil {
		warn = func(string, ...any) {}
	}
	var entries []Entry
	sc := bufio.NewScanner(r)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			warn("hosts file line %d: no names for address %q, skipping", lineNo, fields[0])
			continue
		}
		addr, err := netip.ParseAddr(fields[0])
		if err != nil {
			warn("hosts file line %d: invalid address %q: %v, skipping", lineNo, fields[0], err)
			continue
		}
		entries = append(entries, Entry{IP: addr, Names: append([]string(nil), fields[1:]...)})
	}
	return entries
}
