// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Build metadata, overridden with -ldflags -X at release time.
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"
)

// StateFormat numbers the persisted layout: region prefixes, key
// encodings and value schemas. Bump it whenever any of them changes.
// Snapshots carry it and are refused by a build with another format.
const StateFormat = 1

// Short returns the release version alone, e.g. "0.1.0-dev".
func Short() string { return Version }

// Info returns the version with its commit and build time:
// "0.1.0-dev (1a2b3c4-dirty, 2026-10-01T12:00:00Z)".
func Info() string {
	revision := commit()
	if GitDirty == "true" {
		revision += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s)", Version, revision, BuildTime)
}

// Full returns Info followed by toolchain, platform and state format
// lines, for the version command.
func Full() string {
	lines := []string{
		Info(),
		"  Go: " + runtime.Version(),
		"  Platform: " + runtime.GOOS + "/" + runtime.GOARCH,
		fmt.Sprintf("  State format: %d", StateFormat),
	}
	return strings.Join(lines, "\n")
}

// commit prefers the ldflags value and otherwise reads the VCS
// revision the go tool stamps into module builds.
func commit() string {
	if GitCommit != "unknown" {
		return GitCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
				return setting.Value[:7]
			}
		}
	}
	return GitCommit
}
