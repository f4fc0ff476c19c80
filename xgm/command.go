package xgm

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/user-none/xgmtool/stream"
)

// XGM music opcodes. Batched commands carry count-1 in the low nibble.
const (
	CmdFrame   = 0x00
	CmdPSG     = 0x10
	CmdYMPort0 = 0x20
	CmdYMPort1 = 0x30
	CmdYMKey   = 0x40
	CmdPCM     = 0x50
	CmdLoop    = 0x7E
	CmdEnd     = 0x7F

	// MaxBatch is the largest number of writes one batched command holds.
	MaxBatch = 16
)

// Command is one encoded XGM music command.
type Command struct {
	Data []byte
}

// Type returns the opcode with the count nibble cleared.
func (c *Command) Type() int {
	op := int(c.Data[0])
	if op == CmdLoop || op == CmdEnd {
		return op
	}
	return op & 0xF0
}

// Count returns the number of writes in a batched command.
func (c *Command) Count() int { return int(c.Data[0]&0x0F) + 1 }

// Size is the encoded byte size.
func (c *Command) Size() int { return len(c.Data) }

func (c *Command) IsFrame() bool { return c.Data[0] == CmdFrame }
func (c *Command) IsLoop() bool  { return c.Data[0] == CmdLoop }
func (c *Command) IsEnd() bool   { return c.Data[0] == CmdEnd }
func (c *Command) IsPCM() bool   { return c.Type() == CmdPCM }

// PCMChannel returns the channel of a PCM command.
func (c *Command) PCMChannel() int { return int(c.Data[0] & 0x03) }

// PCMPriority returns the priority of a PCM command.
func (c *Command) PCMPriority() int { return int(c.Data[0]>>2) & 0x03 }

// PCMID returns the sample index of a PCM command, 0 meaning stop.
func (c *Command) PCMID() int { return int(c.Data[1]) }

// LoopOffset returns the music offset a loop command jumps to.
func (c *Command) LoopOffset() int {
	v, _ := stream.Uint24LE(c.Data, 1)
	return int(v)
}

// Payload returns the bytes following the opcode of a batched command:
// PSG bytes, register/value pairs or key values.
func (c *Command) Payload() []byte { return c.Data[1:] }

func (c *Command) String() string {
	return fmt.Sprintf("%02X [% X]", c.Data[0], c.Data[1:])
}

func batch(op int, payload []byte) *Command {
	data := make([]byte, 1+len(payload))
	data[0] = byte(op)
	copy(data[1:], payload)
	return &Command{Data: data}
}

// NewFrame returns the end of frame command.
func NewFrame() *Command { return &Command{Data: []byte{CmdFrame}} }

// NewEnd returns the end of music command.
func NewEnd() *Command { return &Command{Data: []byte{CmdEnd}} }

// NewLoop returns a jump to a music offset.
func NewLoop(offset int) *Command {
	return &Command{Data: stream.AppendUint24LE([]byte{CmdLoop}, uint32(offset))}
}

// NewPCM plays sample id (0 stops) on a channel at a priority.
func NewPCM(id, channel, priority int) *Command {
	return &Command{Data: []byte{byte(CmdPCM | (priority&3)<<2 | channel&3), byte(id)}}
}

// NewPSG batches 1 to 16 PSG bytes.
func NewPSG(vals []byte) *Command {
	return batch(CmdPSG|(len(vals)-1), vals)
}

// NewYM batches 1 to 16 register/value pairs for one port.
func NewYM(port int, pairs []byte) *Command {
	op := CmdYMPort0
	if port == 1 {
		op = CmdYMPort1
	}
	return batch(op|(len(pairs)/2-1), pairs)
}

// NewYMKey batches 1 to 16 key register values.
func NewYMKey(vals []byte) *Command {
	return batch(CmdYMKey|(len(vals)-1), vals)
}

// commandSize returns the encoded size of the command at data[0].
func commandSize(data []byte) (int, error) {
	op := int(data[0])
	n := op&0x0F + 1
	switch {
	case op == CmdFrame:
		return 1, nil
	case op == CmdLoop:
		return 4, nil
	case op == CmdEnd:
		return 1, nil
	case op&0xF0 == CmdPSG, op&0xF0 == CmdYMKey:
		return 1 + n, nil
	case op&0xF0 == CmdYMPort0, op&0xF0 == CmdYMPort1:
		return 1 + 2*n, nil
	case op&0xF0 == CmdPCM:
		return 2, nil
	}
	return 0, errors.Errorf("xgm: unknown command 0x%02X", op)
}

// DecodeCommand reads the command at off.
func DecodeCommand(data []byte, off int) (*Command, error) {
	if _, err := stream.Uint8(data, off); err != nil {
		return nil, err
	}
	size, err := commandSize(data[off:])
	if err != nil {
		return nil, errors.Wrapf(err, "offset 0x%X", off)
	}
	raw, err := stream.Bytes(data, off, size)
	if err != nil {
		return nil, errors.Wrapf(err, "xgm: truncated command 0x%02X", data[off])
	}
	return &Command{Data: append([]byte(nil), raw...)}, nil
}
