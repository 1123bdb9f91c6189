// Package version holds build metadata set at link time.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/macropower/rulelimits/pkg/version.Version=...".
var (
	Version   string
	Branch    string
	BuildUser string
	BuildDate string
)

const shortRevision = 7

// Info is the build metadata of the running binary.
type Info struct {
	Version   string `json:"version"`
	Revision  string `json:"revision"`
	Branch    string `json:"branch,omitempty"`
	BuildUser string `json:"buildUser,omitempty"`
	BuildDate string `json:"buildDate,omitempty"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get returns the build metadata.
func Get() Info {
	rev := revision()

	v := Version
	if v == "" {
		v = rev
	}

	return Info{
		Version:   v,
		Revision:  rev,
		Branch:    Branch,
		BuildUser: BuildUser,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("%s (revision: %s, %s, %s)", i.Version, i.Revision, i.GoVersion, i.Platform)
}

// GetVersion returns the release version, or the VCS revision for
// development builds.
func GetVersion() string {
	return Get().Version
}

// revision reads the short VCS revision embedded by the go tool, marking
// builds from a modified tree as dirty.
func revision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}

	rev, ok := settings["vcs.revision"]
	if !ok || rev == "" {
		return "unknown"
	}

	rev = rev[:min(len(rev), shortRevision)]
	if settings["vcs.modified"] == "true" {
		rev += "-dirty"
	}

	return rev
}
