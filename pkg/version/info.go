// Package version reports build metadata for the docgate binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const (
	Unknown            = "unknown"
	DevelopmentVersion = "dev"
)

// Set with -ldflags "-X github.com/nimburion/docgate/pkg/version.AppVersion=v1.2.3".
var (
	AppVersion = DevelopmentVersion
	GitCommit  = Unknown
	BuildTime  = Unknown
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Info is what `docgate version` prints.
type Info struct {
	Service   string `json:"service" yaml:"service"`
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"build_time" yaml:"build_time"`
	Modified  bool   `json:"modified,omitempty" yaml:"modified,omitempty"`
	GoVersion string `json:"go_version" yaml:"go_version"`
}

// Current merges ldflags values with what the toolchain recorded in the
// binary. Ldflags win; build info fills whatever they left unset.
func Current(service string) Info {
	info := Info{
		Service:   orDefault(service, Unknown),
		Version:   orDefault(AppVersion, DevelopmentVersion),
		Commit:    orDefault(GitCommit, Unknown),
		BuildTime: orDefault(BuildTime, Unknown),
		GoVersion: runtime.Version(),
	}
	if bi, ok := readBuildInfo(); ok && bi != nil {
		info.fill(bi)
	}
	return info
}

func (i *Info) fill(bi *debug.BuildInfo) {
	if v := bi.Main.Version; i.Version == DevelopmentVersion && v != "" && v != "(devel)" {
		i.Version = v
	}
	if bi.GoVersion != "" {
		i.GoVersion = bi.GoVersion
	}

	settings := make(map[string]string, len(bi.Settings))
	for _, s := range bi.Settings {
		settings[s.Key] = s.Value
	}
	if rev, ok := settings["vcs.revision"]; ok && i.Commit == Unknown {
		i.Commit = rev
	}
	if at, ok := settings["vcs.time"]; ok && i.BuildTime == Unknown {
		i.BuildTime = at
	}
	i.Modified = settings["vcs.modified"] == "true"
}

// String is the one-line form used in logs.
func (i Info) String() string {
	commit := i.Commit
	if i.Modified {
		commit += "+dirty"
	}
	return fmt.Sprintf("%s %s (%s, built %s, %s)", i.Service, i.Version, commit, i.BuildTime, i.GoVersion)
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}
