// Package chip mirrors the register files of the Mega Drive sound chips
// (YM2612 FM and SN76489 PSG) and computes the writes needed to move one
// register snapshot to another.
package chip

// YM2612 register map constants.
const (
	YMRegLFO      = 0x22
	YMRegTimerAHi = 0x24
	YMRegTimerALo = 0x25
	YMRegTimerCtl = 0x27
	YMRegKey      = 0x28
	YMRegDACData  = 0x2A
	YMRegDACCtl   = 0x2B
)

// Write is a single register write produced by a delta. For the PSG only
// Value is meaningful (the raw byte sent to the chip).
type Write struct {
	Port  uint8
	Reg   uint8
	Value uint8
}

// dualRegister is a register pair that must always be written together,
// high register first (the low write latches the pair).
type dualRegister struct {
	hi, lo   uint8
	portMask uint8 // bit0 = port 0, bit1 = port 1
}

// Frequency MSB/LSB for channels, channel 3 special mode frequencies (Part I
// only) and the split Timer A period.
var dualRegisters = [7]dualRegister{
	{0xA4, 0xA0, 0x3},
	{0xA5, 0xA1, 0x3},
	{0xA6, 0xA2, 0x3},
	{0xAC, 0xA8, 0x1},
	{0xAD, 0xA9, 0x1},
	{0xAE, 0xAA, 0x1},
	{YMRegTimerAHi, YMRegTimerALo, 0x1},
}

var (
	ymIgnored [2][256]bool
	ymDual    [2][256]bool
)

func init() {
	for port := 0; port < 2; port++ {
		for r := 0; r < 256; r++ {
			reg := uint8(r)
			switch {
			case reg < 0x20:
				ymIgnored[port][r] = true
			case reg < 0x30:
				// Global registers only exist in Part I; Part II mirrors are
				// duplicated timer/envelope bits and the key slot.
				if port == 1 {
					ymIgnored[port][r] = true
				}
			case reg > 0xB6:
				ymIgnored[port][r] = true
			case reg&0x03 == 0x03:
				// No channel 4 slot in either part.
				ymIgnored[port][r] = true
			case port == 1 && reg >= 0xA8 && reg <= 0xAF:
				ymIgnored[port][r] = true
			}
		}
		for _, d := range dualRegisters {
			if d.portMask&(1<<uint(port)) != 0 {
				ymDual[port][d.hi] = true
				ymDual[port][d.lo] = true
			}
		}
	}
	for _, reg := range []uint8{0x20, 0x21, 0x23, 0x29, YMRegDACData, 0x2C, 0x2D, 0x2E, 0x2F} {
		ymIgnored[0][reg] = true
	}
}

// IsYMIgnored reports whether a register never takes part in delta output.
func IsYMIgnored(port int, reg uint8) bool {
	return ymIgnored[port&1][reg]
}

// IsYMKey reports whether the write targets the key on/off register.
func IsYMKey(port int, reg uint8) bool {
	return port == 0 && reg == YMRegKey
}

// YMKeyChannel decodes the channel index (0-5) of a key register value.
// ok is false for the two invalid channel codes.
func YMKeyChannel(val uint8) (ch int, ok bool) {
	low := int(val & 0x03)
	if low == 3 {
		return 0, false
	}
	if val&0x04 != 0 {
		low += 3
	}
	return low, true
}

// YMKeyOn reports whether a key register value turns at least one operator on.
func YMKeyOn(val uint8) bool {
	return val&0xF0 != 0
}

// YM2612State is a full register mirror of both YM2612 parts.
type YM2612State struct {
	regs    [2][256]uint8
	written [2][256]bool

	// Key register state per channel code (val & 7): operator slot mask.
	keys       [8]uint8
	keyWritten [8]bool
}

// NewYM2612State returns a mirror with nothing written.
func NewYM2612State() *YM2612State {
	return &YM2612State{}
}

// Clone returns an independent copy.
func (s *YM2612State) Clone() *YM2612State {
	c := *s
	return &c
}

// Get returns the last value written to a register.
func (s *YM2612State) Get(port int, reg uint8) uint8 {
	return s.regs[port&1][reg]
}

// IsWritten reports whether the register was ever written.
func (s *YM2612State) IsWritten(port int, reg uint8) bool {
	return s.written[port&1][reg]
}

// Set stores a register write and reports whether it changed the chip.
// For the key register only the slot mask of the addressed channel is
// compared.
func (s *YM2612State) Set(port int, reg, val uint8) bool {
	port &= 1
	if IsYMKey(port, reg) {
		code := val & 0x07
		slots := val >> 4
		changed := !s.keyWritten[code] || s.keys[code] != slots
		s.keys[code] = slots
		s.keyWritten[code] = true
		s.regs[port][reg] = val
		s.written[port][reg] = true
		return changed
	}
	changed := !s.written[port][reg] || s.regs[port][reg] != val
	s.regs[port][reg] = val
	s.written[port][reg] = true
	return changed
}

// IsDifferent reports whether other holds a written value this state does
// not have. The key register is never compared.
func (s *YM2612State) IsDifferent(other *YM2612State, port int, reg uint8) bool {
	port &= 1
	if IsYMKey(port, reg) || !other.written[port][reg] {
		return false
	}
	return !s.written[port][reg] || s.regs[port][reg] != other.regs[port][reg]
}

// Delta returns the writes that bring s to other, dual registers first then
// single registers in ascending order. Ignored registers and the key
// register are never emitted.
func (s *YM2612State) Delta(other *YM2612State) []Write {
	var out []Write
	for port := 0; port < 2; port++ {
		for _, d := range dualRegisters {
			if d.portMask&(1<<uint(port)) == 0 {
				continue
			}
			if s.IsDifferent(other, port, d.hi) || s.IsDifferent(other, port, d.lo) {
				out = append(out,
					Write{Port: uint8(port), Reg: d.hi, Value: other.regs[port][d.hi]},
					Write{Port: uint8(port), Reg: d.lo, Value: other.regs[port][d.lo]},
				)
			}
		}
	}
	for port := 0; port < 2; port++ {
		for r := 0; r < 256; r++ {
			reg := uint8(r)
			if ymIgnored[port][r] || ymDual[port][r] || IsYMKey(port, reg) {
				continue
			}
			if s.IsDifferent(other, port, reg) {
				out = append(out, Write{Port: uint8(port), Reg: reg, Value: other.regs[port][r]})
			}
		}
	}
	return out
}

// Apply replays writes onto the state.
func (s *YM2612State) Apply(writes []Write) {
	for _, w := range writes {
		s.Set(int(w.Port), w.Reg, w.Value)
	}
}
