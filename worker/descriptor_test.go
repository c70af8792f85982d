package worker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDescriptor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.toml")
	doc := `
Host = "ftp.example.org"
Port = 21
Scheme = "ftp"
User = "afduser"
Secret = "s3cret"
Direction = "send"
LocalDir = "/spool/out"
TargetDir = "/incoming"
Mode = "binary"
BlockSize = 4096
SizeCheck = true
DotPrefix = true
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	d, err := LoadDescriptor(path)
	require.NoError(t, err)
	require.Equal(t, "ftp.example.org", d.Host)
	require.Equal(t, 21, d.Port)
	require.Equal(t, SchemeFTP, d.Scheme)
	require.Equal(t, "send", d.Direction)
	require.True(t, d.SizeCheck)
	require.True(t, d.DotPrefix)
}

func TestLoadDescriptorMissingFile(t *testing.T) {
	_, err := LoadDescriptor(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
