// Package version holds the build version and the strategy API version.
package version

// Version is stamped at build time:
//
//	go build -ldflags "-X github.com/rxtech-lab/argo-fleet/internal/version.Version=v1.2.3" ./cmd/fleet
var Version = "main"

// StrategyAPIVersion is the version of the strategy interface. Strategies
// declaring an incompatible API version are rejected at registration.
const StrategyAPIVersion = "v1.2.0"

func GetVersion() string {
	return Version
}
