// Package xgm builds, encodes and decodes XGM files: a sample table of
// 14 kHz signed PCM followed by frame-batched FM, PSG and PCM commands.
package xgm

import (
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"
	"github.com/user-none/xgmtool/chip"
	"github.com/user-none/xgmtool/config"
	"github.com/user-none/xgmtool/stream"
)

// File layout.
const (
	magic     = "XGM "
	tableSize = MaxSamples * 4

	// Version is the format version written after the sample table.
	Version = 1

	infoPAL = 0x01
	infoXD3 = 0x02

	emptyAddr = 0xFFFF
	emptySize = 0x0001
)

var (
	// ErrBadMagic is returned when the input is not an XGM file.
	ErrBadMagic = errors.New("xgm: bad magic")
	// ErrTooManySamples is returned when a 64th sample is needed.
	ErrTooManySamples = errors.New("xgm: too many samples")
)

// XGM is a decoded or converted XGM file.
type XGM struct {
	Region   chip.Region
	Samples  []*Sample
	Commands []*Command
	Tag      *XD3

	opts config.Options
}

// New returns an empty XGM.
func New(opts config.Options) *XGM {
	return &XGM{Region: opts.Region, opts: opts}
}

// Options returns the options the XGM was built with.
func (x *XGM) Options() config.Options { return x.opts }

// IsXGM reports whether data starts with the XGM magic.
func IsXGM(data []byte) bool {
	return len(data) >= 4 && string(data[:4]) == magic
}

// Sample returns the table entry with the given index or nil.
func (x *XGM) Sample(index int) *Sample {
	for _, s := range x.Samples {
		if s.Index == index {
			return s
		}
	}
	return nil
}

// Info returns the info byte.
func (x *XGM) Info(withTag bool) uint8 {
	var info uint8
	if x.Region == chip.RegionPAL {
		info |= infoPAL
	}
	if withTag && x.Tag != nil {
		info |= infoXD3
	}
	return info
}

// FrameCount returns the number of frame commands.
func (x *XGM) FrameCount() int {
	n := 0
	for _, c := range x.Commands {
		if c.IsFrame() {
			n++
		}
	}
	return n
}

// LoopIndex returns the index of the command the loop jumps to, or -1.
func (x *XGM) LoopIndex() int {
	var loop *Command
	for _, c := range x.Commands {
		if c.IsLoop() {
			loop = c
			break
		}
	}
	if loop == nil {
		return -1
	}
	off := 0
	for i, c := range x.Commands {
		if off == loop.LoopOffset() {
			return i
		}
		off += c.Size()
	}
	return -1
}

// Music returns the encoded command stream.
func (x *XGM) Music() []byte {
	var out []byte
	for _, c := range x.Commands {
		out = append(out, c.Data...)
	}
	return out
}

// EncodeSamples returns the sample table followed by the SLEN field, and
// the sample data it indexes.
func EncodeSamples(samples []*Sample) (table, data []byte, err error) {
	table = make([]byte, tableSize+2)
	for i := 0; i < MaxSamples; i++ {
		binary.LittleEndian.PutUint16(table[i*4:], emptyAddr)
		binary.LittleEndian.PutUint16(table[i*4+2:], emptySize)
	}

	sorted := append([]*Sample(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	for _, s := range sorted {
		if s.Index < 1 || s.Index > MaxSamples {
			return nil, nil, errors.Wrapf(ErrTooManySamples, "sample index %d", s.Index)
		}
		if len(s.Data)%SampleAlign != 0 {
			return nil, nil, errors.Errorf("xgm: sample %d not aligned (%d bytes)", s.Index, len(s.Data))
		}
		e := (s.Index - 1) * 4
		binary.LittleEndian.PutUint16(table[e:], uint16(len(data)/SampleAlign))
		binary.LittleEndian.PutUint16(table[e+2:], uint16(len(s.Data)/SampleAlign))
		data = append(data, s.Data...)
	}
	if len(data)/SampleAlign > 0xFFFF {
		return nil, nil, errors.Errorf("xgm: sample data too large (%d bytes)", len(data))
	}
	binary.LittleEndian.PutUint16(table[tableSize:], uint16(len(data)/SampleAlign))
	return table, data, nil
}

// DecodeSamples reads a sample table (with SLEN) and returns the samples and
// the size of the sample data block.
func DecodeSamples(table, data []byte) ([]*Sample, int, error) {
	slen, err := stream.Uint16LE(table, tableSize)
	if err != nil {
		return nil, 0, errors.Wrap(err, "xgm: sample table")
	}
	size := int(slen) * SampleAlign
	if size > len(data) {
		return nil, 0, errors.Errorf("xgm: sample data truncated (%d of %d bytes)", len(data), size)
	}
	var out []*Sample
	for i := 0; i < MaxSamples; i++ {
		addr := binary.LittleEndian.Uint16(table[i*4:])
		n := binary.LittleEndian.Uint16(table[i*4+2:])
		if addr == emptyAddr && n == emptySize {
			continue
		}
		start, end := int(addr)*SampleAlign, (int(addr)+int(n))*SampleAlign
		if end > size {
			return nil, 0, errors.Errorf("xgm: sample %d exceeds sample data", i+1)
		}
		out = append(out, &Sample{Index: i + 1, Data: append([]byte(nil), data[start:end]...)})
	}
	return out, size, nil
}

// DecodeMusic reads commands up to the end command or the end of data.
func DecodeMusic(music []byte) ([]*Command, error) {
	var cmds []*Command
	for off := 0; off < len(music); {
		c, err := DecodeCommand(music, off)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, c)
		off += c.Size()
		if c.IsEnd() {
			break
		}
	}
	return cmds, nil
}

// Encode writes the XGM file.
func (x *XGM) Encode() ([]byte, error) {
	table, samples, err := EncodeSamples(x.Samples)
	if err != nil {
		return nil, err
	}
	out := append([]byte(magic), table...)
	out = append(out, Version, x.Info(true))
	out = append(out, samples...)

	music := x.Music()
	out = binary.LittleEndian.AppendUint32(out, uint32(len(music)))
	out = append(out, music...)

	if x.Tag != nil {
		tag, err := x.Tag.Encode()
		if err != nil {
			return nil, err
		}
		out = append(out, tag...)
	}
	x.opts.Log().Debug("XGM encoded",
		"bytes", len(out),
		"samples", len(x.Samples),
		"music", len(music))
	return out, nil
}

// Decode parses an XGM file.
func Decode(data []byte, opts config.Options) (*XGM, error) {
	if !IsXGM(data) {
		return nil, ErrBadMagic
	}
	header, err := stream.Bytes(data, len(magic), tableSize+4)
	if err != nil {
		return nil, errors.Wrap(err, "xgm: header")
	}
	info := header[tableSize+3]
	body := data[len(magic)+tableSize+4:]

	samples, size, err := DecodeSamples(header[:tableSize+2], body)
	if err != nil {
		return nil, err
	}
	mlen, err := stream.Uint32LE(body, size)
	if err != nil {
		return nil, errors.Wrap(err, "xgm: music length")
	}
	music, err := stream.Bytes(body, size+4, int(mlen))
	if err != nil {
		return nil, errors.Wrap(err, "xgm: music data")
	}
	cmds, err := DecodeMusic(music)
	if err != nil {
		return nil, err
	}

	detected := chip.RegionNTSC
	if info&infoPAL != 0 {
		detected = chip.RegionPAL
	}
	opts.Region = opts.ResolveRegion(detected)
	x := &XGM{Region: opts.Region, Samples: samples, Commands: cmds, opts: opts}

	if info&infoXD3 != 0 {
		tag, err := DecodeXD3(body[size+4+int(mlen):])
		if err != nil {
			opts.Log().Warn("ignoring XD3 tag", "err", err)
		} else {
			x.Tag = tag
		}
	}
	opts.Log().Info("XGM decoded",
		"samples", len(samples),
		"frames", x.FrameCount(),
		"region", chip.RegionName(x.Region))
	return x, nil
}
