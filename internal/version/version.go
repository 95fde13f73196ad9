// Package version holds build information stamped in with ldflags:
//
//	go build -ldflags "-X github.com/rickgao/streamcommerce-dash/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/streamcommerce-dash/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/streamcommerce-dash/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/dash
package version

// Product is the client name sent in User-Agent headers.
const Product = "streamcommerce-dash"

var (
	// Version is the release version, "dev" for local builds.
	Version = "dev"

	// Commit is the short git hash.
	Commit = "unknown"

	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// String returns "<version> (<commit>) built <time>".
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

// UserAgent identifies this client to the analytics server.
func UserAgent() string {
	return Product + "/" + Version
}
