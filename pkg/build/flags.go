// SPDX-License-Identifier: MIT
//
// Package build exposes the metadata stamped into the binary at link time:
//
//	go build -ldflags "-X pitchscope/pkg/build.buildVersion=0.2.0 \
//	    -X pitchscope/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	    -X pitchscope/pkg/build.buildTime=$(date -u +%FT%TZ)"
//
// Development builds carry no ldflags and report a "dev" version.
package build

import (
	"errors"
	"fmt"
)

const (
	defaultName        = "pitchscope"
	defaultDescription = "Real-time spectrogram and pitch visualizer"
	devVersion         = "dev"
	unknown            = "unknown"
)

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Version     string
	Commit      string
	Time        string
}

// String renders the info the way --version prints it.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Populated by -ldflags.
var (
	buildName    string
	buildVersion string
	buildCommit  string
	buildTime    string
)

var info = Info{
	Name:        defaultName,
	Description: defaultDescription,
	Version:     devVersion,
	Commit:      unknown,
	Time:        unknown,
}

// Initialize copies the ldflags into the package Info. A release build must
// set version, commit and time together; a build that sets only some of them
// is rejected so a half-stamped binary never ships.
func Initialize() error {
	if buildName != "" {
		info.Name = buildName
	}

	set := 0
	for _, v := range []string{buildVersion, buildCommit, buildTime} {
		if v != "" {
			set++
		}
	}
	switch set {
	case 0:
		return nil
	case 3:
		info.Version = buildVersion
		info.Commit = buildCommit
		info.Time = buildTime
		return nil
	}

	if buildVersion == "" {
		return errors.New("build: version is required when commit or time is set")
	}
	if buildCommit == "" {
		return errors.New("build: commit is required when version or time is set")
	}
	return errors.New("build: time is required when version or commit is set")
}

// Get returns the current build information.
func Get() Info {
	return info
}
