package xgc

import (
	"github.com/user-none/xgmtool/chip"
	"github.com/user-none/xgmtool/xgm"
)

// Write targets inside a frame.
const (
	kindPSGTone = iota
	kindPSGEnv
	kindYMPort0
	kindYMPort1
	kindYMKey
)

type write struct {
	kind int
	data []byte
}

// frameWrites is one XGM frame broken into single writes.
type frameWrites struct {
	psg []write
	fm  []write
	pcm []*xgm.Command
}

func (f *frameWrites) empty() bool {
	return len(f.psg) == 0 && len(f.fm) == 0 && len(f.pcm) == 0
}

// Compile turns XGM music into XGC frames. Each frame plays its PSG writes
// first, then FM writes, then PCM triggers. PCM triggers move earlier by the
// driver latency of the region; triggers at the start of the loop are also
// replayed at the end so the loop wrap keeps them in time.
func Compile(x *xgm.XGM) *XGC {
	opts := x.Options()
	frames, loop := splitFrames(x)
	pcm := shiftPCM(frames, loop, chip.GetTimingForRegion(x.Region).PCMLatency)

	out := &XGC{
		Region:    x.Region,
		Samples:   x.Samples,
		Frames:    make([][]*Command, len(frames)),
		LoopFrame: loop,
		opts:      opts,
	}
	for i, f := range frames {
		out.Frames[i] = buildFrame(f, pcm[i])
	}
	opts.Log().Info("XGC compiled",
		"frames", len(frames),
		"samples", len(x.Samples),
		"loopFrame", loop)
	return out
}

// splitFrames breaks the XGM commands into per-frame writes and returns the
// frame index of the loop target, or -1.
func splitFrames(x *xgm.XGM) ([]*frameWrites, int) {
	loopIdx := x.LoopIndex()
	loop := -1
	var frames []*frameWrites
	cur := &frameWrites{}
	for i, c := range x.Commands {
		if i == loopIdx {
			loop = len(frames)
		}
		p := c.Payload()
		switch c.Type() {
		case xgm.CmdFrame:
			frames = append(frames, cur)
			cur = &frameWrites{}
		case xgm.CmdPSG:
			for _, b := range p {
				kind := kindPSGTone
				if chip.IsPSGEnv(b) {
					kind = kindPSGEnv
				}
				cur.psg = append(cur.psg, write{kind, []byte{b}})
			}
		case xgm.CmdYMPort0, xgm.CmdYMPort1:
			kind := kindYMPort0
			if c.Type() == xgm.CmdYMPort1 {
				kind = kindYMPort1
			}
			for j := 0; j+1 < len(p); j += 2 {
				cur.fm = append(cur.fm, write{kind, p[j : j+2]})
			}
		case xgm.CmdYMKey:
			for j := range p {
				cur.fm = append(cur.fm, write{kindYMKey, p[j : j+1]})
			}
		case xgm.CmdPCM:
			cur.pcm = append(cur.pcm, c)
		}
	}
	if !cur.empty() {
		frames = append(frames, cur)
	}
	if loop >= len(frames) {
		loop = -1
	}
	return frames, loop
}

// shiftPCM returns the PCM triggers of each frame after latency
// compensation.
func shiftPCM(frames []*frameWrites, loop, latency int) [][]*xgm.Command {
	out := make([][]*xgm.Command, len(frames))
	for f, fr := range frames {
		for _, c := range fr.pcm {
			at := max(f-latency, 0)
			out[at] = append(out[at], c)
			if loop < 0 || f < loop || f >= loop+latency {
				continue
			}
			dup := len(frames) - latency + (f - loop)
			if dup >= 0 && dup < len(frames) && dup != at {
				out[dup] = append(out[dup], c)
			}
		}
	}
	return out
}

// buildFrame batches the writes of one frame.
func buildFrame(f *frameWrites, pcm []*xgm.Command) []*Command {
	var out []*Command
	out = appendBatches(out, f.psg)
	out = appendBatches(out, f.fm)
	for _, c := range pcm {
		out = append(out, NewPCM(c.Data[0], c.Data[1]))
	}
	return out
}

// appendBatches groups runs of writes to the same target.
func appendBatches(out []*Command, writes []write) []*Command {
	for i := 0; i < len(writes); {
		kind := writes[i].kind
		limit := batchLimit(kind)
		var payload []byte
		n := 0
		for i < len(writes) && writes[i].kind == kind && n < limit {
			payload = append(payload, writes[i].data...)
			n++
			i++
		}
		out = append(out, newBatch(kind, payload))
	}
	return out
}

func batchLimit(kind int) int {
	switch kind {
	case kindPSGTone, kindPSGEnv:
		return maxPSGBatch
	case kindYMKey:
		return maxKeyBatch
	}
	return maxYMBatch
}

func newBatch(kind int, payload []byte) *Command {
	switch kind {
	case kindPSGTone:
		return NewPSGTone(payload)
	case kindPSGEnv:
		return NewPSGEnv(payload)
	case kindYMPort0:
		return NewYM(0, payload)
	case kindYMPort1:
		return NewYM(1, payload)
	}
	return NewYMKey(payload)
}

// ToXGM rebuilds XGM music from the compiled frames. PCM triggers stay
// where the latency shift put them.
func (x *XGC) ToXGM() *xgm.XGM {
	opts := x.opts
	opts.Region = x.Region
	out := xgm.New(opts)
	out.Region = x.Region
	out.Samples = x.Samples

	loopIdx := -1
	for i, f := range x.Frames {
		if i == x.LoopFrame {
			loopIdx = len(out.Commands)
		}
		var kind int
		var buf []byte
		flush := func() {
			if len(buf) == 0 {
				return
			}
			switch kind {
			case xgm.CmdPSG:
				out.Commands = append(out.Commands, xgm.NewPSG(buf))
			case xgm.CmdYMPort0:
				out.Commands = append(out.Commands, xgm.NewYM(0, buf))
			case xgm.CmdYMPort1:
				out.Commands = append(out.Commands, xgm.NewYM(1, buf))
			case xgm.CmdYMKey:
				out.Commands = append(out.Commands, xgm.NewYMKey(buf))
			}
			buf = nil
		}
		for _, c := range f {
			var k, unit int
			switch c.Type() {
			case CmdPSGTone, CmdPSGEnv:
				k, unit = xgm.CmdPSG, 1
			case CmdYMPort0:
				k, unit = xgm.CmdYMPort0, 2
			case CmdYMPort1:
				k, unit = xgm.CmdYMPort1, 2
			case CmdYMKey:
				k, unit = xgm.CmdYMKey, 1
			case CmdPCM:
				flush()
				out.Commands = append(out.Commands, &xgm.Command{Data: append([]byte(nil), c.Data...)})
				continue
			default:
				continue
			}
			for _, b := range c.Payload() {
				if k != kind || len(buf)/unit == xgm.MaxBatch && len(buf)%unit == 0 {
					flush()
					kind = k
				}
				buf = append(buf, b)
			}
		}
		flush()
		out.Commands = append(out.Commands, xgm.NewFrame())
	}
	if loopIdx >= 0 {
		off := 0
		for _, c := range out.Commands[:loopIdx] {
			off += c.Size()
		}
		out.Commands = append(out.Commands, xgm.NewLoop(off))
	}
	out.Commands = append(out.Commands, xgm.NewEnd())
	return out
}
