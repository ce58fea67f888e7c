package state

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/src/one.png", []byte("1"), 0644))
	require.NoError(t, afero.WriteFile(fsys, "/src/two.png", []byte("2"), 0644))
	require.NoError(t, afero.WriteFile(fsys, "/src/nested/three.png", []byte("3"), 0644))

	files, err := Scan(fsys, "/src")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/src/one.png", "/src/two.png"}, files)
}

func TestScanMissingDirectory(t *testing.T) {
	_, err := Scan(afero.NewMemMapFs(), "/missing")
	assert.Error(t, err)
}

func TestIsRegular(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/src/file", nil, 0644))
	require.NoError(t, fsys.MkdirAll("/src/dir", 0755))

	assert.True(t, IsRegular(fsys, "/src/file", nil))
	assert.False(t, IsRegular(fsys, "/src/dir", nil))
	assert.False(t, IsRegular(fsys, "/src/gone", nil))
}
