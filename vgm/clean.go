package vgm

import (
	"sort"

	"github.com/user-none/xgmtool/chip"
	"github.com/user-none/xgmtool/stream"
)

// frameTolerance is the share of a frame, in percent, an accumulated wait
// may fall short of and still count as a whole frame.
const frameTolerance = 15

// ConvertWaits replaces every wait with fixed-frame waits of the region.
// DAC plays and seeks left over after extraction are dropped; their waits
// still count.
func (v *VGM) ConvertWaits() {
	frame := v.opts.Timing().SamplesPerFrame
	threshold := frame - frame*frameTolerance/100
	list := v.Commands
	acc := 0
	dropped := 0

	for e := list.Front(); e != nil; {
		next := e.Next()
		c := e.Value
		w := c.Wait()
		leftover := c.IsPCMPlay() || c.IsSeek()
		if w == 0 && !leftover {
			e = next
			continue
		}
		if leftover {
			dropped++
		}
		acc += w
		for acc >= threshold {
			fw := NewFrameWait(v.Region)
			fw.Time = c.Time
			list.InsertBefore(fw, e)
			acc -= frame
		}
		list.Remove(e)
		e = next
	}
	v.opts.Log().Debug("waits converted to frames",
		"frames", v.FrameCount(),
		"dropped", dropped,
		"remainder", acc)
}

// frameCleaner carries chip state across frames.
type frameCleaner struct {
	v       *VGM
	out     *stream.List[*Command]
	fm      *chip.YM2612State
	psg     *chip.PSGState
	delayed map[int]*Command // key-offs moved to the next frame, by channel

	droppedDAC   int
	droppedOther int
}

// CleanCommands rewrites the stream into frames of passthrough commands,
// FM writes, PSG writes and one frame wait, keeping only the register
// writes that change chip state. ConvertWaits must run first.
func (v *VGM) CleanCommands() {
	fc := &frameCleaner{
		v:       v,
		out:     stream.New[*Command](),
		fm:      chip.NewYM2612State(),
		psg:     chip.NewPSGState(),
		delayed: make(map[int]*Command),
	}

	var run []*Command
	for e := v.Commands.Front(); e != nil; e = e.Next() {
		c := e.Value
		if c.IsFrameWait() || c.IsEnd() {
			fc.frame(run, c)
			run = run[:0]
			continue
		}
		run = append(run, c)
	}
	if len(run) > 0 {
		fc.frame(run, nil)
	}

	v.Commands = fc.out
	v.opts.Log().Debug("commands cleaned",
		"commands", fc.out.Len(),
		"dacWritesDropped", fc.droppedDAC,
		"otherDropped", fc.droppedOther)
}

// frame emits one cleaned frame terminated by term.
func (fc *frameCleaner) frame(cmds []*Command, term *Command) {
	log := fc.v.opts.Log()
	frameLen := fc.v.opts.Timing().SamplesPerFrame

	var pass, fmOut, keys []*Command
	base := fc.fm.Clone()
	cur := fc.fm.Clone()
	psg := fc.psg.Clone()
	trigger := -1 // index in pass of this frame's PCM trigger

	flush := func() {
		for _, w := range base.Delta(cur) {
			fmOut = append(fmOut, NewYM(int(w.Port), w.Reg, w.Value))
		}
		fmOut = append(fmOut, keys...)
		keys = keys[:0]
		base = cur.Clone()
	}
	setKey := func(c *Command) {
		cur.Set(0, chip.YMRegKey, c.YMValue())
		keys = append(keys, c)
	}

	// Key-offs carried over from the previous frame open this one.
	chans := make([]int, 0, len(fc.delayed))
	for ch := range fc.delayed {
		chans = append(chans, ch)
	}
	sort.Ints(chans)
	for _, ch := range chans {
		setKey(fc.delayed[ch])
	}
	fc.delayed = make(map[int]*Command)

	// No frame follows the end command, so nothing may be delayed past it.
	delayOff := fc.v.opts.DelayKeyOff && term != nil && !term.IsEnd()
	keyOnAt := make(map[int]int)
	for _, c := range cmds {
		switch {
		case c.IsMarker(), c.IsDataBlock():
			pass = append(pass, c)

		case c.IsPCMTrigger():
			if trigger < 0 {
				trigger = len(pass)
				pass = append(pass, c)
				break
			}
			prev := pass[trigger]
			if prev.Op == OpStreamStop && c.Op != OpStreamStop {
				log.Debug("PCM stop superseded by start in the same frame", "time", c.Time)
				pass[trigger] = c
				break
			}
			log.Warn("extra PCM trigger in frame dropped", "time", c.Time, "cmd", c.String())

		case c.IsStream():
			pass = append(pass, c)

		case c.IsPSG():
			psg.Write(c.PSGValue())

		case c.IsYMKey():
			ch, ok := chip.YMKeyChannel(c.YMValue())
			if !ok {
				fc.droppedOther++
				break
			}
			if chip.YMKeyOn(c.YMValue()) {
				keyOnAt[ch] = c.Time
			} else if delayOff {
				if on, seen := keyOnAt[ch]; seen && c.Time-on > frameLen/4 {
					if _, dup := fc.delayed[ch]; dup {
						log.Warn("key-off already delayed for channel, kept in place", "channel", ch, "time", c.Time)
					} else {
						fc.delayed[ch] = c
						delete(keyOnAt, ch)
						break
					}
				}
			}
			setKey(c)

		case c.IsYMDAC():
			fc.droppedDAC++

		case c.IsYM():
			if len(keys) > 0 {
				flush()
			}
			cur.Set(c.YMPort(), c.YMReg(), c.YMValue())

		default:
			fc.droppedOther++
			log.Debug("command dropped", "cmd", c.String())
		}
	}
	flush()

	for _, c := range pass {
		fc.out.PushBack(c)
	}
	for _, c := range fmOut {
		fc.out.PushBack(c)
	}
	for _, b := range fc.psg.Delta(psg) {
		fc.out.PushBack(NewPSG(b))
	}
	if term != nil {
		fc.out.PushBack(term)
	}

	fc.fm = cur
	fc.psg = psg
}

// Prepare runs the full rewrite applied before packing: sample extraction
// with stream conversion, unused sample cleanup, frame waits and the frame
// cleaner.
func (v *VGM) Prepare() error {
	if err := v.ExtractSamples(true); err != nil {
		return err
	}
	v.CleanSamples()
	v.ConvertWaits()
	v.CleanCommands()
	return nil
}
