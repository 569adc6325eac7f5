package hosts

import (
	"net/netip"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	const input = `
# a comment line
10.1.2.3   laptop laptop.local
10.1.2.4   desktop   # trailing comment
invalid-ip  broken
10.1.2.5
`
	var warnings []string
	entries := Parse(strings.NewReader(input), func(format string, args ...any) {
		warnings = append(warnings, format)
	})

	want := []Entry{
		{IP: netip.MustParseAddr("10.1.2.3"), Names: []string{"laptop", "laptop.local"}},
		{IP: netip.MustParseAddr("10.1.2.4"), Names: []string{"desktop"}},
	}

	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(entries), len(want), entries)
	}
	for i := range want {
		if entries[i].IP != want[i].IP {
			t.Errorf("entry %d IP = %v, want %v", i, entries[i].IP, want[i].IP)
		}
		if strings.Join(entries[i].Names, ",") != strings.Join(want[i].Names, ",") {
			t.Errorf("entry %d Names = %v, want %v", i, entries[i].Names, want[i].Names)
		}
	}
	if len(warnings) != 2 {
		t.Errorf("got %d warnings, want 2 (invalid IP, no names): %v", len(warnings), warnings)
	}
}

func TestParseFile_MissingFileIsNotError(t *testing.T) {
	entries, err := ParseFile("/nonexistent/path/to/hosts", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entries != nil {
		t.Errorf("expected no entries, got %v", entries)
	}
}

func TestParseFile_EmptyPathIsNoOp(t *testing.T) {
	entries, err := ParseFile("", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entries != nil {
		t.Errorf("expected no entries, got %v", entries)
	}
}
