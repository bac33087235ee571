package main

import (
	"runtime/debug"
	"strings"
)

// version is set with -ldflags "-X main.version=v1.2.3" for releases.
var version = "dev"

var readBuildInfo = debug.ReadBuildInfo

// currentVersion prefers the linked version, then the module version, then
// "dev" with the VCS revision when the binary was built from a checkout.
func currentVersion() string {
	if v := strings.TrimSpace(version); v != "" && v != "dev" {
		return v
	}
	buildInfo, ok := readBuildInfo()
	if !ok || buildInfo == nil {
		return "dev"
	}
	if mv := strings.TrimSpace(buildInfo.Main.Version); mv != "" && mv != "(devel)" {
		return mv
	}
	revision, dirty := "", false
	for _, s := range buildInfo.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if revision == "" {
		return "dev"
	}
	if dirty {
		revision += "-dirty"
	}
	return "dev (" + revision + ")"
}
