package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pl-luk/depthcharge-tools/pkg/errors"
)

func TestNewRootCmd_HasAllTargets(t *testing.T) {
	root := NewRootCmd()

	names := make(map[string]bool)
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}

	for _, want := range []string{"build", "install", "install-standalone", "uninstall", "clean", "version"} {
		assert.True(t, names[want], want)
	}
}

func TestParseOverrides(t *testing.T) {
	overrides, err := parseOverrides([]string{"PREFIX=/usr", "DEFAULT_CMDLINE=quiet splash"})
	require.NoError(t, err)
	assert.Equal(t, "/usr", overrides["PREFIX"])
	assert.Equal(t, "quiet splash", overrides["DEFAULT_CMDLINE"])
}

func TestParseOverrides_EmptyValueAllowed(t *testing.T) {
	overrides, err := parseOverrides([]string{"DEFAULT_DTB_NAME="})
	require.NoError(t, err)
	assert.Equal(t, "", overrides["DEFAULT_DTB_NAME"])
}

func TestParseOverrides_Invalid(t *testing.T) {
	for _, bad := range []string{"PREFIX", "=value"} {
		_, err := parseOverrides([]string{bad})
		require.Error(t, err, bad)
		assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
	}
}

func TestParseOverrides_NilForNone(t *testing.T) {
	overrides, err := parseOverrides(nil)
	require.NoError(t, err)
	assert.Nil(t, overrides)
}
