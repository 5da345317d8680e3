package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfigPath(t *testing.T) {
	home, dir := setupTestHome(t)

	tests := []struct {
		path string
		ok   bool
	}{
		{filepath.Join(dir, "config.yaml"), true},
		{filepath.Join(dir, "profiles", "work.yaml"), true},
		{"/etc/bookmarkd/config.yaml", true},
		{"/etc/bookmarkd/site/config.yaml", true},
		{"/etc/bookmarkd../etc/passwd", false},
		{dir + "/../../../../etc/passwd", false},
		{filepath.Join(home, ".config", "bookmarkd-evil", "config.yaml"), false},
		{"/etc/passwd", false},
		{"/tmp/config.yaml", false},
		{"/var/lib/bookmarkd/config.yaml", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := validateConfigPath(tt.path)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateConfigPath_Symlink(t *testing.T) {
	_, dir := setupTestHome(t)

	outside := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(outside, []byte("{}"), 0o600))
	link := filepath.Join(dir, "linked.yaml")
	require.NoError(t, os.Symlink(outside, link))

	assert.Error(t, validateConfigPath(link))
}

func TestReadConfigFile_Missing(t *testing.T) {
	_, dir := setupTestHome(t)

	content, err := readConfigFile(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Nil(t, content)
}
