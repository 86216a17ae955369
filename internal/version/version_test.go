package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetUsesLdflags(t *testing.T) {
	oldVersion, oldCommit, oldTime := Version, GitCommit, BuildTime
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldVersion, oldCommit, oldTime })

	Version = "v1.2.3"
	GitCommit = "0123456789abcdef"
	BuildTime = "2026-01-02T03:04:05Z"

	info := Get()
	assert.Equal(t, "v1.2.3", info.Version)
	assert.Equal(t, "0123456789abcdef", info.GitCommit)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), info.BuildTime)
	assert.True(t, info.IsRelease())
	assert.Contains(t, info.Short(), "v1.2.3 (0123456)")
	assert.Contains(t, info.Detailed(), "Commit: 0123456789abcdef")
	assert.Contains(t, info.Detailed(), "Built: 2026-01-02T03:04:05Z")
}

func TestShort(t *testing.T) {
	testCases := []struct {
		name     string
		info     Info
		expected string
	}{
		{"release", Info{Version: "v1.0.0", GitCommit: "abcdef123456"}, "v1.0.0 (abcdef1)"},
		{"dev already carries commit", Info{Version: "dev-abcdef1", GitCommit: "abcdef123456"}, "dev-abcdef1"},
		{"unknown commit", Info{Version: "dev", GitCommit: "unknown"}, "dev"},
		{"dirty", Info{Version: "v1.0.0", GitCommit: "unknown", Dirty: true}, "v1.0.0 (dirty)"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.info.Short())
		})
	}
}

func TestParseTime(t *testing.T) {
	assert.True(t, parseTime("unknown").IsZero())
	assert.True(t, parseTime("").IsZero())
	assert.True(t, parseTime("yesterday").IsZero())
	assert.Equal(t, 2025, parseTime("2025-06-01 10:00:00").Year())
}

func TestIsRelease(t *testing.T) {
	assert.False(t, Info{Version: "dev"}.IsRelease())
	assert.False(t, Info{Version: "dev-abc1234"}.IsRelease())
	assert.True(t, Info{Version: "v0.1.0"}.IsRelease())
}
