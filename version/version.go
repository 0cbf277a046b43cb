// Package version reports what hireflow binary is running.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/teranos/hireflow/version.Version=v1.2.0 ...".
// When CommitHash is left at "dev" the VCS stamp from the Go toolchain is used.
var (
	Version    = "dev"
	CommitHash = "dev"
	BuildTime  = "unknown"
)

// Info is served by /health and `hireflow version --json`
type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	Modified   bool   `json:"modified,omitempty"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

func Get() Info {
	info := Info{
		Version:    Version,
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
	if CommitHash == "dev" {
		stampFromBuildInfo(&info)
	}
	return info
}

func stampFromBuildInfo(info *Info) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.CommitHash = s.Value
		case "vcs.time":
			info.BuildTime = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
}

func (i Info) String() string {
	s := fmt.Sprintf("hireflow %s (commit %s, built %s)", i.Version, i.CommitHash, i.BuildTime)
	if i.Modified {
		s += " +dirty"
	}
	return s
}

// Short is the abbreviated commit
func (i Info) Short() string {
	if len(i.CommitHash) > 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}

// UserAgent identifies hireflow on outbound webhook calls
func (i Info) UserAgent() string {
	return "hireflow/" + i.Version + " (" + i.Short() + ")"
}
