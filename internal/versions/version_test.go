package versions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersionInfo(t *testing.T) {
	t.Parallel()

	info := GetVersionInfo()

	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}

func TestGetVersionInfoWithValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		version     string
		commit      string
		buildDate   string
		wantVersion string
	}{
		{
			name:        "release build",
			version:     "1.2.3",
			commit:      "abcdef1234567890",
			buildDate:   "2026-01-15T10:00:00Z",
			wantVersion: "1.2.3",
		},
		{
			name:        "dev build uses commit",
			version:     "dev",
			commit:      "abcdef1234567890",
			buildDate:   unknownStr,
			wantVersion: "build-abcdef12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			info := getVersionInfoWithValues(tt.version, tt.commit, tt.buildDate)
			assert.Equal(t, tt.wantVersion, info.Version)
		})
	}
}
