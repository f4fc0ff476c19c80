package chip

import "github.com/user-none/go-chip-sn76489"

// PSG register classes.
const (
	PSGTone = 0 // 10-bit tone divider (3-bit noise control on channel 3)
	PSGEnv  = 1 // 4-bit attenuation
)

// PSGNoiseChannel is the channel whose tone class holds the noise control.
const PSGNoiseChannel = 3

// IsPSGEnv reports whether a PSG byte is an attenuation latch.
func IsPSGEnv(b uint8) bool {
	return b&0x90 == 0x90
}

// IsPSGLatch reports whether a PSG byte carries the latch bit.
func IsPSGLatch(b uint8) bool {
	return b&0x80 != 0
}

// PSGState mirrors the SN76489 registers. Raw bytes are decoded by a
// Sega-variant sn76489 core so latch/data handling matches the hardware.
type PSGState struct {
	decoder *sn76489.SN76489

	regs    [4][2]uint16
	written [4][2]bool

	latchCh    int
	latchClass int
}

func newPSGDecoder() *sn76489.SN76489 {
	return sn76489.New(NTSCTiming.SN76489ClockHz, VGMSampleRate, 1, sn76489.Sega)
}

// NewPSGState returns a mirror at power-on values with nothing written.
func NewPSGState() *PSGState {
	s := &PSGState{decoder: newPSGDecoder()}
	for ch := 0; ch < 4; ch++ {
		s.regs[ch][PSGTone] = s.read(ch, PSGTone)
		s.regs[ch][PSGEnv] = s.read(ch, PSGEnv)
	}
	return s
}

func (s *PSGState) read(ch, class int) uint16 {
	if class == PSGEnv {
		return uint16(s.decoder.GetVolume(ch))
	}
	if ch == PSGNoiseChannel {
		return uint16(s.decoder.GetNoiseReg())
	}
	return s.decoder.GetToneReg(ch)
}

// Clone returns an independent copy. The decoder is rebuilt by replaying
// the mirrored registers and then the current latch.
func (s *PSGState) Clone() *PSGState {
	c := &PSGState{
		decoder:    newPSGDecoder(),
		regs:       s.regs,
		written:    s.written,
		latchCh:    s.latchCh,
		latchClass: s.latchClass,
	}
	for ch := 0; ch < 4; ch++ {
		for class := 0; class < 2; class++ {
			for _, b := range psgBytes(ch, class, s.regs[ch][class]) {
				c.decoder.Write(b)
			}
		}
	}
	// Re-latching rewrites the low bits with their current value.
	c.decoder.Write(psgBytes(s.latchCh, s.latchClass, s.regs[s.latchCh][s.latchClass])[0])
	return c
}

// Get returns a register value.
func (s *PSGState) Get(ch, class int) uint16 {
	return s.regs[ch&3][class&1]
}

// IsWritten reports whether a register was ever written.
func (s *PSGState) IsWritten(ch, class int) bool {
	return s.written[ch&3][class&1]
}

// Write feeds one raw PSG byte and reports the register it landed in and
// whether the register value changed.
func (s *PSGState) Write(b uint8) (ch, class int, changed bool) {
	if IsPSGLatch(b) {
		s.latchCh = int(b>>5) & 0x03
		s.latchClass = int(b>>4) & 0x01
	}
	ch, class = s.latchCh, s.latchClass
	s.decoder.Write(b)
	val := s.read(ch, class)
	changed = !s.written[ch][class] || s.regs[ch][class] != val
	s.regs[ch][class] = val
	s.written[ch][class] = true
	return ch, class, changed
}

// Set writes a whole register value and reports whether it changed.
func (s *PSGState) Set(ch, class int, val uint16) bool {
	changed := false
	for _, b := range psgBytes(ch&3, class&1, val) {
		if _, _, c := s.Write(b); c {
			changed = true
		}
	}
	return changed
}

// IsDifferent reports whether other holds a written value this state does
// not have.
func (s *PSGState) IsDifferent(other *PSGState, ch, class int) bool {
	if !other.written[ch][class] {
		return false
	}
	return !s.written[ch][class] || s.regs[ch][class] != other.regs[ch][class]
}

// Delta returns the PSG bytes that bring s to other, channel by channel,
// tone before attenuation.
func (s *PSGState) Delta(other *PSGState) []uint8 {
	var out []uint8
	for ch := 0; ch < 4; ch++ {
		for class := PSGTone; class <= PSGEnv; class++ {
			if s.IsDifferent(other, ch, class) {
				out = append(out, psgBytes(ch, class, other.regs[ch][class])...)
			}
		}
	}
	return out
}

// psgBytes encodes a full register value as latch (and data) bytes.
func psgBytes(ch, class int, val uint16) []uint8 {
	latch := uint8(0x80) | uint8(ch)<<5 | uint8(class)<<4
	switch {
	case class == PSGEnv:
		return []uint8{latch | uint8(val&0x0F)}
	case ch == PSGNoiseChannel:
		return []uint8{latch | uint8(val&0x07)}
	default:
		return []uint8{latch | uint8(val&0x0F), uint8(val>>4) & 0x3F}
	}
}
