package vgm

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
	"github.com/user-none/xgmtool/chip"
	"github.com/user-none/xgmtool/stream"
)

// VGM opcodes used by the pipeline.
const (
	OpPSG            = 0x50
	OpYM2612Port0    = 0x52
	OpYM2612Port1    = 0x53
	OpWait           = 0x61
	OpWaitNTSC       = 0x62
	OpWaitPAL        = 0x63
	OpEnd            = 0x66
	OpDataBlock      = 0x67
	OpWaitShort      = 0x70 // 0x7N: wait N+1 samples
	OpPCMPlay        = 0x80 // 0x8N: YM2612 DAC write from data bank, wait N
	OpStreamSetup    = 0x90
	OpStreamData     = 0x91
	OpStreamFreq     = 0x92
	OpStreamStartLng = 0x93
	OpStreamStop     = 0x94
	OpStreamStart    = 0x95
	OpSeek           = 0xE0

	// Stream markers never appear in a file; they sit above the byte range.
	OpLoopStart = 0x100
	OpLoopEnd   = 0x101
)

// Fixed-frame wait values at the 44100 Hz reference clock.
const (
	WaitNTSCFrame = 0x2DF
	WaitPALFrame  = 0x372
)

// ErrUnknownCommand is returned for an opcode with no size rule.
var ErrUnknownCommand = errors.New("vgm: unknown command")

// Command is one decoded VGM opcode. Data holds the full encoding,
// opcode byte included; markers have no data.
type Command struct {
	Op     int
	Data   []byte
	Offset int // byte offset in the source file, -1 if synthesized
	Time   int // elapsed samples when the command executes
}

// commandSize returns the encoded size of the command starting at data[0].
func commandSize(data []byte) (int, error) {
	op := data[0]
	switch {
	case op >= 0x30 && op <= 0x3F:
		return 2, nil
	case op >= 0x40 && op <= 0x4E:
		return 3, nil
	case op == 0x4F || op == OpPSG:
		return 2, nil
	case op >= 0x51 && op <= 0x5F:
		return 3, nil
	case op == OpWait:
		return 3, nil
	case op == OpWaitNTSC || op == OpWaitPAL || op == OpEnd:
		return 1, nil
	case op == 0x64:
		return 4, nil
	case op == OpDataBlock:
		n, err := stream.Uint32LE(data, 3)
		if err != nil {
			return 0, errors.Wrap(err, "data block header")
		}
		return 7 + int(n&0x7FFFFFFF), nil
	case op == 0x68:
		return 12, nil
	case op >= 0x70 && op <= 0x8F:
		return 1, nil
	case op == OpStreamSetup || op == OpStreamData || op == OpStreamStart:
		return 5, nil
	case op == OpStreamFreq:
		return 6, nil
	case op == OpStreamStartLng:
		return 11, nil
	case op == OpStreamStop:
		return 2, nil
	case op >= 0xA0 && op <= 0xBF:
		return 3, nil
	case op >= 0xC0 && op <= 0xDF:
		return 4, nil
	case op >= 0xE0:
		return 5, nil
	}
	return 0, errors.Wrapf(ErrUnknownCommand, "opcode 0x%02X", op)
}

// Decode reads the command at off.
func Decode(data []byte, off int) (*Command, error) {
	if _, err := stream.Uint8(data, off); err != nil {
		return nil, err
	}
	size, err := commandSize(data[off:])
	if err != nil {
		return nil, errors.Wrapf(err, "offset 0x%X", off)
	}
	raw, err := stream.Bytes(data, off, size)
	if err != nil {
		return nil, errors.Wrapf(err, "truncated command 0x%02X", data[off])
	}
	buf := make([]byte, size)
	copy(buf, raw)
	return &Command{Op: int(buf[0]), Data: buf, Offset: off}, nil
}

// Encode returns the bytes written to a VGM file. Markers encode to nothing.
func (c *Command) Encode() []byte {
	if c.IsMarker() {
		return nil
	}
	return c.Data
}

// Size is the encoded byte size.
func (c *Command) Size() int {
	return len(c.Encode())
}

// Wait returns the number of 44100 Hz samples the command advances time by.
func (c *Command) Wait() int {
	switch {
	case c.Op == OpWait:
		return int(binary.LittleEndian.Uint16(c.Data[1:]))
	case c.Op == OpWaitNTSC:
		return WaitNTSCFrame
	case c.Op == OpWaitPAL:
		return WaitPALFrame
	case c.Op >= 0x70 && c.Op <= 0x7F:
		return c.Op&0x0F + 1
	case c.Op >= 0x80 && c.Op <= 0x8F:
		return c.Op & 0x0F
	}
	return 0
}

func (c *Command) String() string {
	switch c.Op {
	case OpLoopStart:
		return "LOOP_START"
	case OpLoopEnd:
		return "LOOP_END"
	}
	return fmt.Sprintf("%02X [% X]", c.Op, c.Data[1:])
}

// Kind predicates.

func (c *Command) IsMarker() bool    { return c.Op > 0xFF }
func (c *Command) IsLoopStart() bool { return c.Op == OpLoopStart }
func (c *Command) IsLoopEnd() bool   { return c.Op == OpLoopEnd }
func (c *Command) IsEnd() bool       { return c.Op == OpEnd }
func (c *Command) IsDataBlock() bool { return c.Op == OpDataBlock }
func (c *Command) IsSeek() bool      { return c.Op == OpSeek }
func (c *Command) IsPCMPlay() bool   { return c.Op >= 0x80 && c.Op <= 0x8F }
func (c *Command) IsPSG() bool       { return c.Op == OpPSG }
func (c *Command) IsYM() bool        { return c.Op == OpYM2612Port0 || c.Op == OpYM2612Port1 }

// IsWait reports whether the command is a pure wait.
func (c *Command) IsWait() bool {
	return c.Op == OpWait || c.Op == OpWaitNTSC || c.Op == OpWaitPAL || (c.Op >= 0x70 && c.Op <= 0x7F)
}

// IsFrameWait reports whether the command is one of the fixed-frame waits.
func (c *Command) IsFrameWait() bool {
	return c.Op == OpWaitNTSC || c.Op == OpWaitPAL
}

// IsStream reports whether the command is a DAC stream control command.
func (c *Command) IsStream() bool {
	return c.Op >= OpStreamSetup && c.Op <= OpStreamStart
}

// IsPCMTrigger reports whether the command starts or stops a stream.
func (c *Command) IsPCMTrigger() bool {
	return c.Op == OpStreamStart || c.Op == OpStreamStartLng || c.Op == OpStreamStop
}

// IsYMKey reports whether the command writes the FM key register.
func (c *Command) IsYMKey() bool {
	return c.Op == OpYM2612Port0 && c.Data[1] == chip.YMRegKey
}

// IsYMDAC reports whether the command writes the FM DAC data register.
func (c *Command) IsYMDAC() bool {
	return c.Op == OpYM2612Port0 && c.Data[1] == chip.YMRegDACData
}

// Field accessors. Callers check the kind first.

// YMPort returns 0 or 1 for FM writes.
func (c *Command) YMPort() int { return c.Op - OpYM2612Port0 }

// YMReg returns the FM register of an FM write.
func (c *Command) YMReg() uint8 { return c.Data[1] }

// YMValue returns the FM value of an FM write.
func (c *Command) YMValue() uint8 { return c.Data[2] }

// PSGValue returns the byte of a PSG write.
func (c *Command) PSGValue() uint8 { return c.Data[1] }

// DataBlockType returns the bank id of a data block.
func (c *Command) DataBlockType() uint8 { return c.Data[2] }

// DataBlockData returns the payload of a data block.
func (c *Command) DataBlockData() []byte { return c.Data[7:] }

// SeekOffset returns the bank address of a seek.
func (c *Command) SeekOffset() int { return int(binary.LittleEndian.Uint32(c.Data[1:])) }

// StreamID returns the stream id of a stream command.
func (c *Command) StreamID() int { return int(c.Data[1]) }

// StreamBank returns the data bank id of a stream data command.
func (c *Command) StreamBank() uint8 { return c.Data[2] }

// StreamFrequency returns the rate of a stream frequency command.
func (c *Command) StreamFrequency() int { return int(binary.LittleEndian.Uint32(c.Data[2:])) }

// StreamOffset returns the data start offset of a long stream start.
func (c *Command) StreamOffset() int { return int(binary.LittleEndian.Uint32(c.Data[2:])) }

// StreamLength returns the length of a long stream start.
func (c *Command) StreamLength() int { return int(binary.LittleEndian.Uint32(c.Data[7:])) }

// StreamBlock returns the block id of a fast stream start.
func (c *Command) StreamBlock() int { return int(binary.LittleEndian.Uint16(c.Data[2:])) }

// Constructors.

func newCommand(data ...byte) *Command {
	return &Command{Op: int(data[0]), Data: data, Offset: -1}
}

// NewMarker returns a loop start or loop end marker.
func NewMarker(op int) *Command {
	return &Command{Op: op, Offset: -1}
}

// NewEnd returns the end of stream command.
func NewEnd() *Command { return newCommand(OpEnd) }

// NewWait returns the shortest single command waiting n samples
// (1 <= n <= 0xFFFF).
func NewWait(n int) *Command {
	switch {
	case n == WaitNTSCFrame:
		return newCommand(OpWaitNTSC)
	case n == WaitPALFrame:
		return newCommand(OpWaitPAL)
	case n >= 1 && n <= 16:
		return newCommand(byte(OpWaitShort + n - 1))
	}
	return newCommand(OpWait, byte(n), byte(n>>8))
}

// NewWaits returns commands waiting n samples in total.
func NewWaits(n int) []*Command {
	var out []*Command
	for n > 0 {
		w := n
		if w > 0xFFFF {
			w = 0xFFFF
		}
		out = append(out, NewWait(w))
		n -= w
	}
	return out
}

// NewFrameWait returns the fixed-frame wait of the region.
func NewFrameWait(r chip.Region) *Command {
	if r == chip.RegionPAL {
		return newCommand(OpWaitPAL)
	}
	return newCommand(OpWaitNTSC)
}

// NewPSG returns a PSG write.
func NewPSG(b uint8) *Command { return newCommand(OpPSG, b) }

// NewYM returns an FM register write.
func NewYM(port int, reg, val uint8) *Command {
	return newCommand(byte(OpYM2612Port0+port&1), reg, val)
}

// NewPCMPlay returns a DAC write from the data bank followed by a wait of
// n samples (0 <= n <= 15).
func NewPCMPlay(n int) *Command { return newCommand(byte(OpPCMPlay + n&0x0F)) }

// NewSeek returns a data bank seek.
func NewSeek(offset int) *Command {
	c := newCommand(OpSeek, 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(c.Data[1:], uint32(offset))
	return c
}

// NewDataBlock returns a data block of the given bank id.
func NewDataBlock(id uint8, payload []byte) *Command {
	data := make([]byte, 7+len(payload))
	data[0] = OpDataBlock
	data[1] = OpEnd
	data[2] = id
	binary.LittleEndian.PutUint32(data[3:], uint32(len(payload)))
	copy(data[7:], payload)
	return newCommand(data...)
}

// NewStreamSetup routes a stream to the FM DAC register.
func NewStreamSetup(id int) *Command {
	return newCommand(OpStreamSetup, byte(id), 0x02, 0x00, chip.YMRegDACData)
}

// NewStreamData binds a stream to a data bank.
func NewStreamData(id int, bank uint8) *Command {
	return newCommand(OpStreamData, byte(id), bank, 0x01, 0x00)
}

// NewStreamFrequency sets the stream playback rate.
func NewStreamFrequency(id, rate int) *Command {
	c := newCommand(OpStreamFreq, byte(id), 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(c.Data[2:], uint32(rate))
	return c
}

// NewStreamStartLong plays length bytes from offset.
func NewStreamStartLong(id, offset, length int) *Command {
	c := newCommand(OpStreamStartLng, byte(id), 0, 0, 0, 0, 0x01, 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(c.Data[2:], uint32(offset))
	binary.LittleEndian.PutUint32(c.Data[7:], uint32(length))
	return c
}

// NewStreamStart plays a whole data block.
func NewStreamStart(id, block int) *Command {
	return newCommand(OpStreamStart, byte(id), byte(block), byte(block>>8), 0x00)
}

// NewStreamStop stops a stream.
func NewStreamStop(id int) *Command {
	return newCommand(OpStreamStop, byte(id))
}
