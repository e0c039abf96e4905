package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCustomManifest_EmptyPathReturnsNil(t *testing.T) {
	m, err := loadCustomManifest("")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestLoadCustomManifest_ParsesURLsAndDeps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	body := `{
		"name": "mylib",
		"version": "1.0.0",
		"urls": [["mylib/__init__.py", "github:me/mylib/__init__.py"]],
		"deps": [["otherlib", "v2"]]
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	m, err := loadCustomManifest(path)

	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "mylib", m.Name)
	require.Len(t, m.URLs, 1)
	assert.Equal(t, "mylib/__init__.py", m.URLs[0].TargetPath)
	require.Len(t, m.Deps, 1)
	assert.Equal(t, "otherlib", m.Deps[0].Source)
	assert.Equal(t, "v2", m.Deps[0].Version)
}
