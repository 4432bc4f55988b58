package app

import (
	"github.com/kart-io/version"
)

// GetVersion returns the git version the binary was built from.
func GetVersion() string {
	return version.Get().GitVersion
}

// BuildFields returns build metadata as logger key/value pairs.
func BuildFields() []interface{} {
	info := version.Get()
	return []interface{}{
		"version", info.GitVersion,
		"git_commit", info.GitCommit,
		"build_date", info.BuildDate,
		"go_version", info.GoVersion,
		"platform", info.Platform,
	}
}
