// Package xgc compiles XGM music into the headerless XGC layout played by
// the Mega Drive sound driver: the XGM sample table and sample data
// followed by size-prefixed frame segments.
package xgc

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/user-none/xgmtool/chip"
	"github.com/user-none/xgmtool/config"
	"github.com/user-none/xgmtool/stream"
	"github.com/user-none/xgmtool/xgm"
)

// File layout.
const (
	offVersion    = 0xFE
	offInfo       = 0xFF
	offSampleData = 0x100

	infoPAL = 0x01

	// segmentLimit bounds a segment including its size byte and the
	// frame-skip byte that closes a split.
	segmentLimit = 250
)

// XGC is a compiled music file. Frames hold the commands played on each
// tick, already reordered and PCM-shifted.
type XGC struct {
	Region    chip.Region
	Samples   []*xgm.Sample
	Frames    [][]*Command
	LoopFrame int // -1 without loop

	opts config.Options
}

// FrameCount returns the number of ticks.
func (x *XGC) FrameCount() int { return len(x.Frames) }

// Music encodes the frames into segments. The loop and end commands close
// the last frame.
func (x *XGC) Music() []byte {
	log := x.opts.Log()
	var out []byte
	frameOff := make([]int, len(x.Frames))
	for i, f := range x.Frames {
		frameOff[i] = len(out)
		var term []*Command
		if i == len(x.Frames)-1 {
			if x.LoopFrame >= 0 && x.LoopFrame < len(x.Frames) {
				term = append(term, NewLoop(frameOff[x.LoopFrame]))
			}
			term = append(term, NewEnd())
		}
		segs := segments(append(append([]*Command(nil), f...), term...))
		if len(segs) > 1 {
			log.Warn("frame split across segments", "frame", i, "segments", len(segs))
		}
		for _, s := range segs {
			out = append(out, s...)
		}
	}
	if len(x.Frames) == 0 {
		out = append(out, segments([]*Command{NewEnd()})[0]...)
	}
	return out
}

// segments packs commands into size-prefixed segments. Every segment but
// the last ends with a frame skip.
func segments(cmds []*Command) [][]byte {
	var out [][]byte
	seg := []byte{0}
	for _, c := range cmds {
		if len(seg)+c.Size()+1 >= segmentLimit {
			seg = append(seg, CmdFrameSkip)
			seg[0] = byte(len(seg))
			out = append(out, seg)
			seg = []byte{0}
		}
		seg = append(seg, c.Data...)
	}
	seg[0] = byte(len(seg))
	return append(out, seg)
}

// Encode writes the XGC file.
func (x *XGC) Encode() ([]byte, error) {
	table, samples, err := xgm.EncodeSamples(x.Samples)
	if err != nil {
		return nil, err
	}
	var info uint8
	if x.Region == chip.RegionPAL {
		info |= infoPAL
	}
	out := append(table, xgm.Version, info)
	out = append(out, samples...)

	music := x.Music()
	out = binary.LittleEndian.AppendUint32(out, uint32(len(music)))
	out = append(out, music...)

	x.opts.Log().Debug("XGC encoded",
		"bytes", len(out),
		"samples", len(x.Samples),
		"music", len(music))
	return out, nil
}

// Decode parses an XGC file.
func Decode(data []byte, opts config.Options) (*XGC, error) {
	if len(data) < offSampleData {
		return nil, errors.Wrapf(ErrTruncated, "header (%d bytes)", len(data))
	}
	samples, size, err := xgm.DecodeSamples(data[:offVersion], data[offSampleData:])
	if err != nil {
		return nil, err
	}
	musicOff := offSampleData + size
	mlen, err := stream.Uint32LE(data, musicOff)
	if err != nil {
		return nil, errors.Wrap(ErrTruncated, "music length")
	}
	music, err := stream.Bytes(data, musicOff+4, int(mlen))
	if err != nil {
		return nil, errors.Wrap(ErrTruncated, "music data")
	}
	frames, loop, err := decodeMusic(music)
	if err != nil {
		return nil, err
	}

	detected := chip.RegionNTSC
	if data[offInfo]&infoPAL != 0 {
		detected = chip.RegionPAL
	}
	opts.Region = opts.ResolveRegion(detected)
	x := &XGC{Region: opts.Region, Samples: samples, Frames: frames, LoopFrame: loop, opts: opts}
	opts.Log().Info("XGC decoded",
		"samples", len(samples),
		"frames", len(frames),
		"region", chip.RegionName(x.Region))
	return x, nil
}

// decodeMusic splits the segments back into frames and resolves the loop
// target to a frame index.
func decodeMusic(music []byte) ([][]*Command, int, error) {
	var frames [][]*Command
	var cur []*Command
	starts := make(map[int]int)
	loopOff := -1
	newFrame := true

	for off := 0; off < len(music); {
		if newFrame {
			starts[off] = len(frames)
			newFrame = false
		}
		size := int(music[off])
		if size == 0 {
			return nil, 0, errors.Errorf("xgc: empty segment at 0x%X", off)
		}
		end := off + size
		if end > len(music) {
			return nil, 0, errors.Wrapf(ErrTruncated, "segment at 0x%X", off)
		}
		skip, done := false, false
		for p := off + 1; p < end; {
			c, err := DecodeCommand(music[:end], p)
			if err != nil {
				return nil, 0, err
			}
			p += c.Size()
			switch c.Type() {
			case CmdFrameSkip:
				skip = true
			case CmdLoop:
				loopOff = c.LoopOffset()
				done = true
			case CmdEnd:
				done = true
			default:
				cur = append(cur, c)
			}
		}
		off = end
		if skip && !done {
			continue
		}
		frames = append(frames, cur)
		cur = nil
		newFrame = true
		if done {
			break
		}
	}

	loop := -1
	if loopOff >= 0 {
		f, ok := starts[loopOff]
		if !ok {
			return nil, 0, errors.Errorf("xgc: loop offset 0x%X is not a frame start", loopOff)
		}
		loop = f
	}
	return frames, loop, nil
}
