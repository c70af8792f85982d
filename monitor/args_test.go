package monitor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseArgsDefaults(t *testing.T) {
	a, err := ParseArgs(nil)
	require.NoError(t, err)
	require.Equal(t, ".", a.WorkDir)
	require.False(t, a.Version)
}

func TestParseArgsWorkDir(t *testing.T) {
	a, err := ParseArgs([]string{"-w", "/tmp/afd"})
	require.NoError(t, err)
	require.Equal(t, "/tmp/afd", a.WorkDir)
}

func TestParseArgsVersion(t *testing.T) {
	a, err := ParseArgs([]string{"--version"})
	require.NoError(t, err)
	require.True(t, a.Version)
}

func TestParseArgsMissingWorkDirValue(t *testing.T) {
	_, err := ParseArgs([]string{"-w"})
	require.Error(t, err)
}

func TestParseArgsUnknownFlag(t *testing.T) {
	_, err := ParseArgs([]string{"-z"})
	require.Error(t, err)
}
