package version

import "fmt"

// Set with -ldflags "-X wiki-relay/pkg/version.Version=..." at build time.
var (
	Version = "dev"
	Commit  = "none"
	Built   = "unknown"
)

type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Built   string `json:"built"`
}

func Info() BuildInfo {
	return BuildInfo{Version: Version, Commit: Commit, Built: Built}
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("relay version %s, commit %s, built %s", b.Version, b.Commit, b.Built)
}

// UserAgent is sent to the upstream event stream.
func UserAgent() string {
	return "wiki-relay/" + Version
}
