package version

import "fmt"

// Injected at build time via -ldflags "-X .../pkg/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info represents version information for a binary
type Info struct {
	Component string `json:"component,omitempty"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

// GetInfo returns version information for component.
func GetInfo(component string) Info {
	return Info{
		Component: component,
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
	}
}

// GetShortCommit returns the short git commit hash (first 7 characters)
func GetShortCommit() string {
	if len(GitCommit) >= 7 {
		return GitCommit[:7]
	}
	return GitCommit
}

func (i Info) String() string {
	name := i.Component
	if name == "" {
		name = "punyfunny"
	}
	return fmt.Sprintf("%s %s (commit %s, built %s)", name, i.Version, GetShortCommit(), i.BuildDate)
}
