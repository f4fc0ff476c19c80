package xgc

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/user-none/xgmtool/stream"
)

// XGC music opcodes. Batched commands carry count-1 in their low bits.
const (
	CmdFrameSkip = 0x00
	CmdPSGTone   = 0x10
	CmdPSGEnv    = 0x18
	CmdYMPort0   = 0x20
	CmdYMPort1   = 0x30
	CmdYMKey     = 0x40
	CmdPCM       = 0x50
	CmdLoop      = 0x7E
	CmdEnd       = 0x7F

	maxPSGBatch = 8
	maxYMBatch  = 8
	maxKeyBatch = 6
)

// ErrTruncated is returned when the music data ends inside a segment.
var ErrTruncated = errors.New("xgc: truncated music data")

// Command is one encoded XGC music command.
type Command struct {
	Data []byte
}

// Type returns the opcode with the count bits cleared.
func (c *Command) Type() int {
	op := int(c.Data[0])
	switch {
	case op == CmdLoop, op == CmdEnd, op == CmdFrameSkip:
		return op
	case op&0xF0 == 0x10:
		return op & 0xF8
	}
	return op & 0xF0
}

// Count returns the number of writes in a batched command.
func (c *Command) Count() int {
	if c.Type() == CmdPSGTone || c.Type() == CmdPSGEnv {
		return int(c.Data[0]&0x07) + 1
	}
	return int(c.Data[0]&0x0F) + 1
}

// Size is the encoded byte size.
func (c *Command) Size() int { return len(c.Data) }

// Payload returns the bytes after the opcode.
func (c *Command) Payload() []byte { return c.Data[1:] }

func (c *Command) IsPCM() bool      { return c.Type() == CmdPCM }
func (c *Command) IsTerminal() bool { return c.Type() == CmdLoop || c.Type() == CmdEnd }

// LoopOffset returns the music offset of the segment a loop jumps to.
func (c *Command) LoopOffset() int {
	v, _ := stream.Uint24LE(c.Data, 1)
	return int(v)
}

func (c *Command) String() string {
	return fmt.Sprintf("%02X [% X]", c.Data[0], c.Data[1:])
}

func batch(op int, payload []byte) *Command {
	data := make([]byte, 1+len(payload))
	data[0] = byte(op)
	copy(data[1:], payload)
	return &Command{Data: data}
}

// NewPSGTone batches 1 to 8 PSG tone and data bytes.
func NewPSGTone(vals []byte) *Command { return batch(CmdPSGTone|(len(vals)-1), vals) }

// NewPSGEnv batches 1 to 8 PSG attenuation bytes.
func NewPSGEnv(vals []byte) *Command { return batch(CmdPSGEnv|(len(vals)-1), vals) }

// NewYM batches 1 to 8 register/value pairs for one port.
func NewYM(port int, pairs []byte) *Command {
	op := CmdYMPort0
	if port == 1 {
		op = CmdYMPort1
	}
	return batch(op|(len(pairs)/2-1), pairs)
}

// NewYMKey batches 1 to 6 key register values.
func NewYMKey(vals []byte) *Command { return batch(CmdYMKey|(len(vals)-1), vals) }

// NewPCM plays a sample (0 stops). op keeps the priority and channel bits.
func NewPCM(op, id byte) *Command { return &Command{Data: []byte{op, id}} }

// NewLoop jumps to the segment at a music offset.
func NewLoop(offset int) *Command {
	return &Command{Data: stream.AppendUint24LE([]byte{CmdLoop}, uint32(offset))}
}

// NewEnd ends the music.
func NewEnd() *Command { return &Command{Data: []byte{CmdEnd}} }

func commandSize(data []byte) (int, error) {
	op := int(data[0])
	switch {
	case op == CmdFrameSkip, op == CmdEnd:
		return 1, nil
	case op == CmdLoop:
		return 4, nil
	case op&0xF0 == 0x10:
		return 1 + op&0x07 + 1, nil
	case op&0xF0 == CmdYMPort0, op&0xF0 == CmdYMPort1:
		return 1 + 2*(op&0x0F+1), nil
	case op&0xF0 == CmdYMKey:
		return 1 + op&0x0F + 1, nil
	case op&0xF0 == CmdPCM:
		return 2, nil
	}
	return 0, errors.Errorf("xgc: unknown command 0x%02X", op)
}

// DecodeCommand reads the command at off.
func DecodeCommand(data []byte, off int) (*Command, error) {
	if _, err := stream.Uint8(data, off); err != nil {
		return nil, ErrTruncated
	}
	size, err := commandSize(data[off:])
	if err != nil {
		return nil, errors.Wrapf(err, "offset 0x%X", off)
	}
	raw, err := stream.Bytes(data, off, size)
	if err != nil {
		return nil, errors.Wrapf(ErrTruncated, "command 0x%02X at 0x%X", data[off], off)
	}
	return &Command{Data: append([]byte(nil), raw...)}, nil
}
