// Package vgm parses VGM command logs for the YM2612 + SN76489 pair,
// extracts the PCM samples hidden in their DAC writes and rewrites the
// command stream into one batch of register deltas per frame.
package vgm

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/user-none/xgmtool/chip"
	"github.com/user-none/xgmtool/config"
	"github.com/user-none/xgmtool/stream"
)

// Header layout.
const (
	headerMinSize   = 0x40
	offEOF          = 0x04
	offVersion      = 0x08
	offSNClock      = 0x0C
	offGD3          = 0x14
	offTotalSamples = 0x18
	offLoopOffset   = 0x1C
	offLoopSamples  = 0x20
	offRate         = 0x24
	offYMClock      = 0x2C
	offDataOffset   = 0x34

	// PCM data blocks and seeks exist from 1.50 on.
	minPCMVersion = 0x150
)

// ErrBadMagic is returned when the input is not a VGM file.
var ErrBadMagic = errors.New("vgm: bad magic")

// VGM is a parsed command log.
type VGM struct {
	Version      uint32
	Rate         uint32 // header refresh rate, 0 when absent
	Region       chip.Region
	TotalSamples int // declared in the header
	LoopOffset   int // absolute byte offset of the loop start, 0 if none
	LoopSamples  int // declared loop length

	Banks    []*SampleBank
	Commands *stream.List[*Command]
	Tag      *GD3

	opts config.Options
}

// New returns an empty VGM for the given options, used when building a
// VGM from another container.
func New(opts config.Options) *VGM {
	return &VGM{
		Version:  0x160,
		Region:   opts.Region,
		Rate:     uint32(opts.Timing().FPS),
		Commands: stream.New[*Command](),
		opts:     opts,
	}
}

// IsVGM reports whether data starts with the VGM magic.
func IsVGM(data []byte) bool {
	return len(data) >= 4 && strings.EqualFold(string(data[:4]), "Vgm ")
}

// Parse decodes a VGM file and builds its command stream with loop and end
// markers in place.
func Parse(data []byte, opts config.Options) (*VGM, error) {
	log := opts.Log()

	if len(data) < headerMinSize {
		return nil, errors.Wrapf(ErrBadMagic, "file too short (%d bytes)", len(data))
	}
	if !IsVGM(data) {
		return nil, errors.Wrapf(ErrBadMagic, "found %q", data[:4])
	}

	u32 := func(off int) uint32 {
		v, _ := stream.Uint32LE(data, off)
		return v
	}

	v := &VGM{
		Version:      u32(offVersion),
		TotalSamples: int(u32(offTotalSamples)),
		LoopSamples:  int(u32(offLoopSamples)),
		opts:         opts,
	}
	if v.Version >= 0x101 {
		v.Rate = u32(offRate)
	}
	v.Region = opts.ResolveRegion(chip.RegionFromRate(v.Rate))
	v.opts.Region = v.Region

	end := len(data)
	if eof := int(u32(offEOF)); eof != 0 && eof+offEOF < end {
		end = eof + offEOF
	}
	if rel := int(u32(offLoopOffset)); rel != 0 {
		v.LoopOffset = rel + offLoopOffset
	}
	start := headerMinSize
	if v.Version >= minPCMVersion {
		if rel := int(u32(offDataOffset)); rel != 0 {
			start = rel + offDataOffset
		}
	}
	if rel := int(u32(offGD3)); rel != 0 {
		gd3Off := rel + offGD3
		if gd3Off < len(data) {
			tag, err := ParseGD3(data[gd3Off:])
			if err != nil {
				log.Warn("ignoring GD3 tag", "offset", gd3Off, "err", err)
			} else {
				v.Tag = tag
			}
			if gd3Off > start && gd3Off < end {
				end = gd3Off
			}
		}
	}
	if start >= end {
		return nil, errors.Errorf("vgm: data offset 0x%X beyond end 0x%X", start, end)
	}

	log.Info("parsing VGM",
		"version", v.versionString(),
		"region", chip.RegionName(v.Region),
		"samples", v.TotalSamples,
		"loop", v.LoopOffset != 0)

	cmds, err := v.parseCommands(data, start, end)
	if err != nil {
		return nil, err
	}
	v.Commands = cmds
	return v, nil
}

func (v *VGM) versionString() string {
	return string([]byte{
		'0' + byte(v.Version>>8&0x0F),
		'.',
		'0' + byte(v.Version>>4&0x0F),
		'0' + byte(v.Version&0x0F),
	})
}

// parseCommands walks [start, end) and inserts the loop markers.
func (v *VGM) parseCommands(data []byte, start, end int) (*stream.List[*Command], error) {
	list := stream.New[*Command]()

	loopStarted := false
	loopEnded := v.LoopOffset == 0 || v.LoopSamples == 0
	loopElapsed := 0
	time := 0

	off := start
	for off < end {
		if v.LoopOffset != 0 && !loopStarted && off >= v.LoopOffset {
			m := NewMarker(OpLoopStart)
			m.Time = time
			list.PushBack(m)
			loopStarted = true
		}

		c, err := Decode(data, off)
		if err != nil {
			return nil, err
		}
		if c.IsEnd() {
			break
		}
		c.Time = time
		e := list.PushBack(c)
		off += len(c.Data)

		w := c.Wait()
		time += w
		if !loopStarted || loopEnded || w == 0 {
			continue
		}
		loopElapsed += w
		if loopElapsed < v.LoopSamples {
			continue
		}
		loopEnded = true
		over := loopElapsed - v.LoopSamples
		m := NewMarker(OpLoopEnd)
		if over > 0 && c.IsWait() {
			// Split the wait so the marker lands on the declared length.
			list.Remove(e)
			t := c.Time
			for _, wc := range NewWaits(w - over) {
				wc.Time = t
				t += wc.Wait()
				list.PushBack(wc)
			}
			m.Time = t
			list.PushBack(m)
			for _, wc := range NewWaits(over) {
				wc.Time = t
				t += wc.Wait()
				list.PushBack(wc)
			}
			continue
		}
		m.Time = time
		list.PushBack(m)
	}

	if v.LoopOffset != 0 && !loopStarted {
		v.opts.Log().Warn("loop offset outside command data, loop ignored", "offset", v.LoopOffset)
		v.LoopOffset = 0
	}
	if loopStarted && !loopEnded {
		m := NewMarker(OpLoopEnd)
		m.Time = time
		list.PushBack(m)
	}
	endCmd := NewEnd()
	endCmd.Time = time
	list.PushBack(endCmd)
	return list, nil
}

// Options returns the options the VGM was built with.
func (v *VGM) Options() config.Options { return v.opts }

// Bank returns the sample bank with the given id or nil.
func (v *VGM) Bank(id uint8) *SampleBank {
	for _, b := range v.Banks {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// SampleCount returns the number of confirmed samples over every bank.
func (v *VGM) SampleCount() int {
	n := 0
	for _, b := range v.Banks {
		for _, s := range b.Samples {
			if s.Confirmed() {
				n++
			}
		}
	}
	return n
}

// Duration sums every wait in the stream.
func (v *VGM) Duration() int {
	total := 0
	for e := v.Commands.Front(); e != nil; e = e.Next() {
		total += e.Value.Wait()
	}
	return total
}

// LoopStart returns the sample position of the loop start marker, or -1.
func (v *VGM) LoopStart() int {
	t := 0
	for e := v.Commands.Front(); e != nil; e = e.Next() {
		if e.Value.IsLoopStart() {
			return t
		}
		t += e.Value.Wait()
	}
	return -1
}

// FrameCount returns the number of fixed-frame waits.
func (v *VGM) FrameCount() int {
	n := 0
	for e := v.Commands.Front(); e != nil; e = e.Next() {
		if e.Value.IsFrameWait() {
			n++
		}
	}
	return n
}
