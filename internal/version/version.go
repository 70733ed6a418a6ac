package version

// Build information set by ldflags
var (
	Version = "0.5.0" // Set by goreleaser: -X github.com/pl-luk/depthcharge-tools/internal/version.Version={{.Version}}
	Commit  = ""      // Set by goreleaser: -X github.com/pl-luk/depthcharge-tools/internal/version.Commit={{.Commit}}
	Date    = ""      // Set by goreleaser: -X github.com/pl-luk/depthcharge-tools/internal/version.Date={{.Date}}
)
