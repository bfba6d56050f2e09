// Package version holds build metadata injected via ldflags.
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// UserAgent is sent by outbound HTTP clients (model server, reference image fetches).
func UserAgent() string {
	return "pictura/" + Version + " (" + Commit + ")"
}
