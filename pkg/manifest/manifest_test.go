package manifest

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pl-luk/depthcharge-tools/pkg/config"
)

func defaultValues(t *testing.T, overrides map[string]string) *config.Values {
	t.Helper()
	v, err := config.Resolve(config.Options{Overrides: overrides})
	require.NoError(t, err)
	return v
}

func TestLoad_EmbeddedManifest(t *testing.T) {
	m, err := Load()
	require.NoError(t, err)

	require.NotEmpty(t, m.Templates)
	require.NotEmpty(t, m.Fragments)
	require.NotEmpty(t, m.Docs)

	// The standalone variant must reference a declared template.
	entry, ok := m.Template(m.Standalone.Template)
	require.True(t, ok)
	assert.Equal(t, m.Standalone.Template, entry.Name)

	for _, f := range m.Fragments {
		assert.NotEmpty(t, f.Name)
		assert.NotEmpty(t, f.Source)
	}
}

func TestInstallMappings_ExpandsDestinations(t *testing.T) {
	m, err := Load()
	require.NoError(t, err)

	mappings, err := m.InstallMappings(defaultValues(t, nil), false)
	require.NoError(t, err)

	byArtifact := make(map[string]Mapping)
	for _, mp := range mappings {
		byArtifact[mp.Artifact] = mp
	}

	mk, ok := byArtifact["mkdepthcharge"]
	require.True(t, ok)
	assert.Equal(t, "/usr/local/bin/mkdepthcharge", mk.Dest)
	assert.Equal(t, os.FileMode(0755), mk.Mode)

	ctl, ok := byArtifact["depthchargectl"]
	require.True(t, ok)
	assert.Equal(t, "/usr/local/sbin/depthchargectl", ctl.Dest)
	assert.Contains(t, ctl.Dirs, "/usr/local/etc/depthcharge-tools")

	man, ok := byArtifact["mkdepthcharge.1"]
	require.True(t, ok)
	assert.Equal(t, "/usr/local/share/man/man1/mkdepthcharge.1", man.Dest)
	assert.Equal(t, os.FileMode(0644), man.Mode)

	db, ok := byArtifact["db"]
	require.True(t, ok)
	assert.Equal(t, "/usr/local/share/depthcharge-tools/db", db.Dest)

	lib, ok := byArtifact["common.sh"]
	require.True(t, ok)
	assert.Equal(t, "/usr/local/lib/depthcharge-tools/common.sh", lib.Dest)
	assert.Contains(t, lib.Dirs, "/usr/local/lib/depthcharge-tools")
}

func TestInstallMappings_PrefixOverrideFlowsThrough(t *testing.T) {
	m, err := Load()
	require.NoError(t, err)

	mappings, err := m.InstallMappings(defaultValues(t, map[string]string{"PREFIX": "/usr"}), false)
	require.NoError(t, err)

	for _, mp := range mappings {
		assert.NotContains(t, mp.Dest, "/usr/local")
	}
}

func TestInstallMappings_StandaloneOnly(t *testing.T) {
	m, err := Load()
	require.NoError(t, err)

	mappings, err := m.InstallMappings(defaultValues(t, nil), true)
	require.NoError(t, err)

	require.Len(t, mappings, 1)
	assert.Equal(t, "mkdepthcharge"+StandaloneSuffix, mappings[0].Artifact)
	assert.Equal(t, "/usr/local/bin/mkdepthcharge", mappings[0].Dest)
	assert.Equal(t, os.FileMode(0755), mappings[0].Mode)
}

func TestInstallMappings_SystemdGate(t *testing.T) {
	m, err := Load()
	require.NoError(t, err)

	withUnit, err := m.InstallMappings(defaultValues(t, nil), false)
	require.NoError(t, err)
	without, err := m.InstallMappings(defaultValues(t, map[string]string{"ENABLE_SYSTEMD": "no"}), false)
	require.NoError(t, err)

	assert.Len(t, without, len(withUnit)-1)
	for _, mp := range without {
		assert.NotContains(t, mp.Dest, "systemd")
	}
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("0755")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), mode)

	mode, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), mode)

	_, err = ParseMode("rwxr-xr-x")
	assert.Error(t, err)
}
