package monitor

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Opcode identifies one MON_CMD_FIFO command (spec.md §4.9).
type Opcode byte

const (
	OpShutdown Opcode = iota
	OpIsAlive
	OpGotLogCapabilities
	OpDisableMon
	OpEnableMon
)

func (o Opcode) String() string {
	switch o {
	case OpShutdown:
		return "Shutdown"
	case OpIsAlive:
		return "IsAlive"
	case OpGotLogCapabilities:
		return "GotLogCapabilities"
	case OpDisableMon:
		return "DisableMon"
	case OpEnableMon:
		return "EnableMon"
	default:
		return fmt.Sprintf("Opcode(%d)", byte(o))
	}
}

// Command is one decoded MON_CMD_FIFO message: an opcode plus, for the
// peer-targeted commands, the peer's index into Config.Peers.
type Command struct {
	Op  Opcode
	Pos int
}

// opsWithPos are the opcodes that carry a trailing 4-byte little-endian
// peer position.
var opsWithPos = map[Opcode]bool{
	OpGotLogCapabilities: true,
	OpDisableMon:         true,
	OpEnableMon:          true,
}

// DecodeCommand reads one command from r: a single opcode byte, followed
// by a 4-byte little-endian position for the peer-targeted opcodes.
func DecodeCommand(r io.Reader) (Command, error) {
	var opByte [1]byte
	if _, err := io.ReadFull(r, opByte[:]); err != nil {
		return Command{}, err
	}
	op := Opcode(opByte[0])
	cmd := Command{Op: op, Pos: -1}
	if opsWithPos[op] {
		var posBytes [4]byte
		if _, err := io.ReadFull(r, posBytes[:]); err != nil {
			return Command{}, fmt.Errorf("monitor: decode %s position: %w", op, err)
		}
		cmd.Pos = int(int32(binary.LittleEndian.Uint32(posBytes[:])))
	}
	return cmd, nil
}

// EncodeCommand is DecodeCommand's inverse, used by whatever sends on
// MON_CMD_FIFO (a CLI tool, tests) to build a well-formed message.
func EncodeCommand(cmd Command) []byte {
	if !opsWithPos[cmd.Op] {
		return []byte{byte(cmd.Op)}
	}
	buf := make([]byte, 5)
	buf[0] = byte(cmd.Op)
	binary.LittleEndian.PutUint32(buf[1:], uint32(int32(cmd.Pos)))
	return buf
}
