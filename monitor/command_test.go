package monitor

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCommandWithoutPosition(t *testing.T) {
	for _, op := range []Opcode{OpShutdown, OpIsAlive} {
		buf := EncodeCommand(Command{Op: op})
		require.Len(t, buf, 1)
		cmd, err := DecodeCommand(bytes.NewReader(buf))
		require.NoError(t, err)
		require.Equal(t, op, cmd.Op)
		require.Equal(t, -1, cmd.Pos)
	}
}

func TestEncodeDecodeCommandWithPosition(t *testing.T) {
	for _, op := range []Opcode{OpGotLogCapabilities, OpDisableMon, OpEnableMon} {
		buf := EncodeCommand(Command{Op: op, Pos: 7})
		require.Len(t, buf, 5)
		cmd, err := DecodeCommand(bytes.NewReader(buf))
		require.NoError(t, err)
		require.Equal(t, op, cmd.Op)
		require.Equal(t, 7, cmd.Pos)
	}
}

func TestDecodeCommandShortRead(t *testing.T) {
	_, err := DecodeCommand(bytes.NewReader(nil))
	require.Error(t, err)

	_, err = DecodeCommand(bytes.NewReader([]byte{byte(OpDisableMon), 1, 2}))
	require.Error(t, err)
}

func TestOpcodeString(t *testing.T) {
	require.Equal(t, "Shutdown", OpShutdown.String())
	require.Equal(t, "DisableMon", OpDisableMon.String())
	require.Contains(t, Opcode(99).String(), "99")
}
