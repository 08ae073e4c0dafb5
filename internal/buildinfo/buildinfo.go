// Package buildinfo carries release identifiers stamped in with
//
//	-ldflags "-X kestrel/internal/buildinfo.Version=v1.2.0 -X kestrel/internal/buildinfo.Commit=abc123"
package buildinfo

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns a compact build identifier for window titles and banners.
func Short() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if Commit != "" && Commit != "unknown" {
		return Commit
	}
	return "dev"
}

// String returns every known field.
func String() string {
	s := Version
	if Commit != "unknown" && Commit != "" {
		s += " " + Commit
	}
	if Date != "unknown" && Date != "" {
		s += " " + Date
	}
	return s
}
