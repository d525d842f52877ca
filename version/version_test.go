package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withVars(t *testing.T, v, commit, built string) {
	t.Helper()
	ov, oc, ob := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = v, commit, built
	t.Cleanup(func() { Version, GitCommit, BuildTime = ov, oc, ob })
}

func TestFromBuildInfo_NoBuildInfo(t *testing.T) {
	withVars(t, "v1.0.0", "abc1234", "2026-01-15T10:30:00Z")

	info := fromBuildInfo(nil, false)
	assert.Equal(t, Info{Version: "v1.0.0", GitCommit: "abc1234", BuildTime: "2026-01-15T10:30:00Z"}, info)
	assert.Equal(t, "v1.0.0-abc1234", info.String())
}

func TestFromBuildInfo_FillsFromVCS(t *testing.T) {
	withVars(t, "dev", "", "")

	info := fromBuildInfo(&debug.BuildInfo{
		GoVersion: "go1.26.0",
		Main:      debug.Module{Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-02-01T00:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}, true)

	assert.Equal(t, "v0.3.1", info.Version)
	assert.Equal(t, "0123456", info.GitCommit)
	assert.Equal(t, "2026-02-01T00:00:00Z", info.BuildTime)
	assert.Equal(t, "go1.26.0", info.GoVersion)
	assert.True(t, info.Dirty)
	assert.Equal(t, "v0.3.1-0123456-dirty", info.String())
}

func TestFromBuildInfo_LdflagsWin(t *testing.T) {
	withVars(t, "v2.0.0", "feedbee", "")

	info := fromBuildInfo(&debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "0000000000"}},
	}, true)
	assert.Equal(t, "v2.0.0", info.Version)
	assert.Equal(t, "feedbee", info.GitCommit)
}

func TestShort(t *testing.T) {
	assert.NotEmpty(t, Short())
}
