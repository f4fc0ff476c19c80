package vgm

import (
	"github.com/pkg/errors"
	"github.com/user-none/xgmtool/chip"
	"github.com/user-none/xgmtool/stream"
)

const (
	writeVersion    = 0x160
	writeHeaderSize = 0x100

	offSNFeedback = 0x28
	offSNShift    = 0x2A

	snFeedbackSega = 0x0009
	snShiftSega    = 16
)

// Encode writes the VGM file: header, commands, end command and GD3 tag.
func (v *VGM) Encode() ([]byte, error) {
	timing := v.opts.Timing()
	out := make([]byte, writeHeaderSize, writeHeaderSize+v.Commands.Len()*3)
	copy(out, "Vgm ")
	stream.PutUint32LE(out, offVersion, writeVersion)
	stream.PutUint32LE(out, offSNClock, uint32(timing.SN76489ClockHz))
	stream.PutUint32LE(out, offYMClock, uint32(timing.YM2612ClockHz))
	stream.PutUint32LE(out, offRate, uint32(timing.FPS))
	stream.PutUint16LE(out, offSNFeedback, snFeedbackSega)
	out[offSNShift] = snShiftSega
	stream.PutUint32LE(out, offDataOffset, writeHeaderSize-offDataOffset)

	total := 0
	loopOff, loopAt, loopEnd := 0, 0, -1
	for e := v.Commands.Front(); e != nil; e = e.Next() {
		c := e.Value
		if c.IsLoopStart() && loopOff == 0 {
			loopOff = len(out)
			loopAt = total
		}
		if c.IsLoopEnd() && loopOff != 0 && loopEnd < 0 {
			loopEnd = total
		}
		if c.IsEnd() {
			break
		}
		out = append(out, c.Encode()...)
		total += c.Wait()
	}
	out = append(out, OpEnd)

	stream.PutUint32LE(out, offTotalSamples, uint32(total))
	if loopOff != 0 {
		if loopEnd < 0 {
			loopEnd = total
		}
		stream.PutUint32LE(out, offLoopOffset, uint32(loopOff-offLoopOffset))
		stream.PutUint32LE(out, offLoopSamples, uint32(loopEnd-loopAt))
	}

	if v.Tag != nil {
		tag, err := v.Tag.Encode()
		if err != nil {
			return nil, errors.Wrap(err, "vgm: GD3 tag")
		}
		stream.PutUint32LE(out, offGD3, uint32(len(out)-offGD3))
		out = append(out, tag...)
	}
	stream.PutUint32LE(out, offEOF, uint32(len(out)-offEOF))

	v.opts.Log().Debug("VGM encoded",
		"bytes", len(out),
		"samples", total,
		"region", chip.RegionName(v.Region))
	return out, nil
}
