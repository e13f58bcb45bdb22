package version

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseBuildTime(t *testing.T) {
	tests := map[string]time.Time{
		"":                     {},
		"unknown":              {},
		"garbage":              {},
		"2024-05-01T10:00:00Z": time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		"2024-05-01 10:00:00":  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	for in, want := range tests {
		assert.True(t, want.Equal(parseBuildTime(in)), in)
	}
}

func TestLinkerVariablesWin(t *testing.T) {
	oldVersion, oldCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = oldVersion, oldCommit })

	Version = "v1.2.3"
	GitCommit = "0123456789abcdef"

	assert.Equal(t, "v1.2.3", GetVersion())
	assert.Equal(t, "v1.2.3 (0123456)", GetShortVersion())

	detailed := GetDetailedVersion()
	assert.True(t, strings.HasPrefix(detailed, "Version: v1.2.3\nCommit: 0123456789abcdef"))
	assert.Contains(t, detailed, "Go: ")

	info := GetBuildInfo()
	assert.Equal(t, "v1.2.3", info.Version)
	assert.NotEmpty(t, info.Platform)
}
