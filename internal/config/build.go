package config

import "fmt"

// Set with -ldflags at release time:
//
//	go build -ldflags "-X postscheduler/internal/config.version=1.2.3 \
//	    -X postscheduler/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X postscheduler/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/schedule-posts
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo reports the linker-injected build metadata. Load stores it on
// CommonConfig.Build.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}

// String renders the metadata for cold-start logs.
func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (%s, built %s)", b.Version, b.Commit, b.BuildTime)
}
