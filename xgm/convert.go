package xgm

import (
	"github.com/pkg/errors"
	"github.com/user-none/xgmtool/chip"
	"github.com/user-none/xgmtool/resample"
	"github.com/user-none/xgmtool/vgm"
)

// builder batches a cleaned VGM stream into XGM commands.
type builder struct {
	x       *XGM
	v       *vgm.VGM
	rs      *resample.Resampler
	streams *vgm.StreamState
	index   map[*vgm.Sample]int

	kind      int // opcode of the open batch, -1 if none
	buf       []byte
	loopIndex int
}

// FromVGM converts a VGM whose stream went through vgm.Prepare. Runs of
// same-target writes become batched commands in their original order. A
// looping song ends at its loop end marker.
func FromVGM(v *vgm.VGM, rs *resample.Resampler) (*XGM, error) {
	opts := v.Options()
	b := &builder{
		x:         New(opts),
		v:         v,
		rs:        rs,
		streams:   vgm.NewStreamState(),
		index:     make(map[*vgm.Sample]int),
		kind:      -1,
		loopIndex: -1,
	}
	b.x.Region = v.Region

	for e := v.Commands.Front(); e != nil; e = e.Next() {
		c := e.Value
		switch {
		case c.IsLoopStart():
			b.flush()
			b.loopIndex = len(b.x.Commands)
		case c.IsPSG():
			b.add(CmdPSG, c.PSGValue())
		case c.IsYMKey():
			b.add(CmdYMKey, c.YMValue())
		case c.IsYM():
			op := CmdYMPort0
			if c.YMPort() == 1 {
				op = CmdYMPort1
			}
			b.add(op, c.YMReg(), c.YMValue())
		case c.IsFrameWait():
			b.flush()
			b.emit(NewFrame())
		case c.IsPCMTrigger():
			b.flush()
			if err := b.pcm(c); err != nil {
				return nil, err
			}
		case c.IsStream():
			b.streams.Update(c)
		}
		if c.IsEnd() {
			break
		}
		if c.IsLoopEnd() && b.loopIndex >= 0 {
			// Playback jumps back here; nothing after it is heard.
			break
		}
	}
	b.flush()

	frames := b.x.FrameCount()
	if b.loopIndex >= 0 {
		off := 0
		for _, c := range b.x.Commands[:b.loopIndex] {
			off += c.Size()
		}
		b.emit(NewLoop(off))
	}
	b.emit(NewEnd())

	if tag := XD3FromGD3(v.Tag); tag != nil {
		tag.Duration = frames
		if b.loopIndex >= 0 {
			loopFrames := 0
			for _, c := range b.x.Commands[b.loopIndex:] {
				if c.IsFrame() {
					loopFrames++
				}
			}
			tag.LoopDuration = loopFrames
		}
		b.x.Tag = tag
	}

	opts.Log().Info("XGM built",
		"samples", len(b.x.Samples),
		"frames", frames,
		"commands", len(b.x.Commands),
		"loop", b.loopIndex >= 0)
	return b.x, nil
}

func (b *builder) emit(c *Command) {
	b.x.Commands = append(b.x.Commands, c)
}

// add appends a write to the open batch, closing it first when the target
// changes or the batch is full.
func (b *builder) add(kind int, payload ...byte) {
	if kind != b.kind || b.count() == MaxBatch {
		b.flush()
		b.kind = kind
	}
	b.buf = append(b.buf, payload...)
}

func (b *builder) count() int {
	if b.kind == CmdYMPort0 || b.kind == CmdYMPort1 {
		return len(b.buf) / 2
	}
	return len(b.buf)
}

func (b *builder) flush() {
	if len(b.buf) == 0 {
		b.kind = -1
		return
	}
	switch b.kind {
	case CmdPSG:
		b.emit(NewPSG(b.buf))
	case CmdYMPort0:
		b.emit(NewYM(0, b.buf))
	case CmdYMPort1:
		b.emit(NewYM(1, b.buf))
	case CmdYMKey:
		b.emit(NewYMKey(b.buf))
	}
	b.buf = nil
	b.kind = -1
}

// pcm converts a stream start or stop.
func (b *builder) pcm(c *vgm.Command) error {
	ch := c.StreamID() & 3
	prio := (c.StreamID() >> 2) & 3
	if c.Op == vgm.OpStreamStop {
		b.emit(NewPCM(0, ch, prio))
		return nil
	}

	bank, s := b.v.ResolveSample(b.streams, c)
	if s == nil {
		b.x.opts.Log().Warn("PCM start matches no sample, playing silence",
			"stream", c.StreamID(),
			"time", c.Time)
		b.emit(NewPCM(0, ch, prio))
		return nil
	}
	idx, ok := b.index[s]
	if !ok {
		if len(b.x.Samples) >= MaxSamples {
			return errors.Wrapf(ErrTooManySamples, "bank 0x%02X offset 0x%X", bank.ID, s.Offset)
		}
		rate := s.Rate
		if rate <= 0 {
			rate = b.streams.Rate(c.StreamID())
		}
		if rate <= 0 {
			rate = SampleRate
		}
		idx = len(b.x.Samples) + 1
		xs, err := NewSample(idx, bank.SampleData(s), rate, b.rs)
		if err != nil {
			return errors.Wrapf(err, "sample %d", idx)
		}
		b.x.Samples = append(b.x.Samples, xs)
		b.index[s] = idx
		b.x.opts.Log().Debug("XGM sample",
			"index", idx,
			"bank", bank.ID,
			"offset", s.Offset,
			"length", s.Length,
			"rate", rate)
	}
	b.emit(NewPCM(idx, ch, prio))
	return nil
}

// ToVGM rebuilds a VGM stream: one data block per sample, streams 0-3
// bound to it at 14 kHz and one frame wait per frame.
func (x *XGM) ToVGM() *vgm.VGM {
	opts := x.opts
	opts.Region = x.Region
	v := vgm.New(opts)
	v.Region = x.Region
	list := v.Commands

	blocks := make(map[int]int)
	for i, s := range sortedSamples(x.Samples) {
		list.PushBack(vgm.NewDataBlock(0, s.Unsigned()))
		blocks[s.Index] = i
	}
	for ch := 0; ch < 4; ch++ {
		list.PushBack(vgm.NewStreamSetup(ch))
		list.PushBack(vgm.NewStreamData(ch, 0))
		list.PushBack(vgm.NewStreamFrequency(ch, SampleRate))
	}

	loop := x.LoopIndex()
	frame := chip.GetTimingForRegion(x.Region).SamplesPerFrame
	t := 0
	for i, c := range x.Commands {
		if i == loop {
			list.PushBack(vgm.NewMarker(vgm.OpLoopStart))
		}
		var out []*vgm.Command
		switch c.Type() {
		case CmdFrame:
			out = append(out, vgm.NewFrameWait(x.Region))
		case CmdPSG:
			for _, p := range c.Payload() {
				out = append(out, vgm.NewPSG(p))
			}
		case CmdYMPort0, CmdYMPort1:
			port := 0
			if c.Type() == CmdYMPort1 {
				port = 1
			}
			p := c.Payload()
			for j := 0; j+1 < len(p); j += 2 {
				out = append(out, vgm.NewYM(port, p[j], p[j+1]))
			}
		case CmdYMKey:
			for _, p := range c.Payload() {
				out = append(out, vgm.NewYM(0, chip.YMRegKey, p))
			}
		case CmdPCM:
			if blk, ok := blocks[c.PCMID()]; ok && c.PCMID() != 0 {
				out = append(out, vgm.NewStreamStart(c.PCMChannel(), blk))
			} else {
				out = append(out, vgm.NewStreamStop(c.PCMChannel()))
			}
		}
		for _, vc := range out {
			vc.Time = t
			list.PushBack(vc)
		}
		if c.IsFrame() {
			t += frame
		}
		if c.IsEnd() {
			break
		}
	}
	end := vgm.NewEnd()
	end.Time = t
	list.PushBack(end)

	if x.Tag != nil {
		v.Tag = x.Tag.GD3()
	}
	return v
}

func sortedSamples(samples []*Sample) []*Sample {
	out := make([]*Sample, 0, len(samples))
	for i := 1; i <= MaxSamples; i++ {
		for _, s := range samples {
			if s.Index == i {
				out = append(out, s)
			}
		}
	}
	return out
}
