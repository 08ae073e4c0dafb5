package buildinfo

import "testing"

func TestShortAndString(t *testing.T) {
	defer func(v, c, d string) { Version, Commit, Date = v, c, d }(Version, Commit, Date)

	Version, Commit, Date = "dev", "unknown", "unknown"
	if got := Short(); got != "dev" {
		t.Fatalf("Short() = %q, want dev", got)
	}

	Commit = "abc123"
	if got := Short(); got != "abc123" {
		t.Fatalf("Short() = %q, want abc123", got)
	}

	Version, Date = "v1.2.0", "2026-10-18"
	if got := Short(); got != "v1.2.0" {
		t.Fatalf("Short() = %q, want v1.2.0", got)
	}
	if got := String(); got != "v1.2.0 abc123 2026-10-18" {
		t.Fatalf("String() = %q", got)
	}
}
