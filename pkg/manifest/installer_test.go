package manifest

import (
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pl-luk/depthcharge-tools/pkg/errors"
)

func testMappings() []Mapping {
	return []Mapping{
		{
			Artifact: "mkdepthcharge",
			Dest:     "/usr/local/bin/mkdepthcharge",
			Mode:     0755,
		},
		{
			Artifact: "config",
			Dest:     "/usr/local/etc/depthcharge-tools/config",
			Mode:     0644,
			Dirs: []string{
				"/usr/local/etc/depthcharge-tools",
				"/usr/local/var/lib/depthcharge-tools",
			},
		},
	}
}

func stageArtifacts(t *testing.T, fsys afero.Fs, mappings []Mapping) {
	t.Helper()
	for _, m := range mappings {
		require.NoError(t, afero.WriteFile(fsys, "out/"+m.Artifact, []byte(m.Artifact+" content\n"), 0644))
	}
}

func TestInstall_CopiesArtifactsWithModes(t *testing.T) {
	fsys := afero.NewMemMapFs()
	mappings := testMappings()
	stageArtifacts(t, fsys, mappings)

	inst := NewInstaller(fsys, "out")
	require.NoError(t, inst.Install("", mappings))

	data, err := afero.ReadFile(fsys, "/usr/local/bin/mkdepthcharge")
	require.NoError(t, err)
	assert.Equal(t, "mkdepthcharge content\n", string(data))

	info, err := fsys.Stat("/usr/local/bin/mkdepthcharge")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	exists, err := afero.DirExists(fsys, "/usr/local/var/lib/depthcharge-tools")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestInstall_DestdirRoot(t *testing.T) {
	fsys := afero.NewMemMapFs()
	mappings := testMappings()
	stageArtifacts(t, fsys, mappings)

	inst := NewInstaller(fsys, "out")
	require.NoError(t, inst.Install("/stage", mappings))

	exists, err := afero.Exists(fsys, "/stage/usr/local/bin/mkdepthcharge")
	require.NoError(t, err)
	assert.True(t, exists)

	// Nothing lands outside the root.
	exists, err = afero.Exists(fsys, "/usr/local/bin/mkdepthcharge")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestInstall_Idempotent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	mappings := testMappings()
	stageArtifacts(t, fsys, mappings)

	inst := NewInstaller(fsys, "out")
	require.NoError(t, inst.Install("", mappings))

	// Overwrite with changed artifact content.
	require.NoError(t, afero.WriteFile(fsys, "out/config", []byte("new content\n"), 0644))
	require.NoError(t, inst.Install("", mappings))

	data, err := afero.ReadFile(fsys, "/usr/local/etc/depthcharge-tools/config")
	require.NoError(t, err)
	assert.Equal(t, "new content\n", string(data))
}

func TestInstall_MissingArtifactFailsBeforeDirectoryCreation(t *testing.T) {
	fsys := afero.NewMemMapFs()
	mappings := testMappings()
	// Stage only the first artifact; the second is missing.
	require.NoError(t, afero.WriteFile(fsys, "out/mkdepthcharge", []byte("x"), 0644))

	inst := NewInstaller(fsys, "out")
	err := inst.Install("", mappings)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrMissingSource))

	// The preflight aborted before any directory or file appeared.
	exists, _ := afero.DirExists(fsys, "/usr/local/etc/depthcharge-tools")
	assert.False(t, exists)
	exists, _ = afero.Exists(fsys, "/usr/local/bin/mkdepthcharge")
	assert.False(t, exists)
}

func TestUninstall_RestoresPreInstallState(t *testing.T) {
	fsys := afero.NewMemMapFs()
	mappings := testMappings()
	stageArtifacts(t, fsys, mappings)

	inst := NewInstaller(fsys, "out")
	require.NoError(t, inst.Install("", mappings))
	require.NoError(t, inst.Uninstall("", mappings))

	for _, m := range mappings {
		exists, err := afero.Exists(fsys, m.Dest)
		require.NoError(t, err)
		assert.False(t, exists, m.Dest)
	}
	exists, _ := afero.DirExists(fsys, "/usr/local/etc/depthcharge-tools")
	assert.False(t, exists)
}

func TestUninstall_TwiceIsNoOp(t *testing.T) {
	fsys := afero.NewMemMapFs()
	mappings := testMappings()
	stageArtifacts(t, fsys, mappings)

	inst := NewInstaller(fsys, "out")
	require.NoError(t, inst.Install("", mappings))
	require.NoError(t, inst.Uninstall("", mappings))
	require.NoError(t, inst.Uninstall("", mappings))
}

func TestUninstall_KeepsNonEmptySharedDirectories(t *testing.T) {
	fsys := afero.NewMemMapFs()
	mappings := testMappings()
	stageArtifacts(t, fsys, mappings)

	inst := NewInstaller(fsys, "out")
	require.NoError(t, inst.Install("", mappings))

	// A foreign file shares one of the declared directories.
	foreign := "/usr/local/etc/depthcharge-tools/keep-me"
	require.NoError(t, afero.WriteFile(fsys, foreign, []byte("other"), 0644))

	require.NoError(t, inst.Uninstall("", mappings))

	exists, err := afero.Exists(fsys, foreign)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, _ = afero.DirExists(fsys, "/usr/local/etc/depthcharge-tools")
	assert.True(t, exists)
}

func TestOwnedDirs_DeepestFirst(t *testing.T) {
	mappings := []Mapping{
		{Dirs: []string{"/a", "/a/b/c", "/a/b"}},
		{Dirs: []string{"/a/b"}},
	}
	dirs := ownedDirs("", mappings)
	assert.Equal(t, []string{"/a/b/c", "/a/b", "/a"}, dirs)
}
