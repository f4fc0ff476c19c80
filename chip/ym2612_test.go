package chip

import "testing"

// --- Set / IsDifferent ---

func TestYM2612_SetReportsChange(t *testing.T) {
	s := NewYM2612State()

	if !s.Set(0, 0xB0, 0x32) {
		t.Error("first write should report a change")
	}
	if s.Set(0, 0xB0, 0x32) {
		t.Error("rewriting the same value should not report a change")
	}
	if !s.Set(0, 0xB0, 0x33) {
		t.Error("new value should report a change")
	}
	if got := s.Get(0, 0xB0); got != 0x33 {
		t.Errorf("Get = 0x%02X, want 0x33", got)
	}
}

func TestYM2612_PortsAreIndependent(t *testing.T) {
	s := NewYM2612State()
	s.Set(0, 0x40, 0x10)
	if s.IsWritten(1, 0x40) {
		t.Error("port 0 write marked port 1 register as written")
	}
	if !s.Set(1, 0x40, 0x10) {
		t.Error("first port 1 write should report a change")
	}
}

func TestYM2612_KeyComparesSlotNibbleOnly(t *testing.T) {
	s := NewYM2612State()

	if !s.Set(0, YMRegKey, 0xF0) {
		t.Error("first key-on ch0 should report change")
	}
	if s.Set(0, YMRegKey, 0xF0) {
		t.Error("same key state ch0 should not report change")
	}
	// A write on another channel does not disturb ch0 state.
	if !s.Set(0, YMRegKey, 0xF1) {
		t.Error("first key-on ch1 should report change")
	}
	if s.Set(0, YMRegKey, 0xF0) {
		t.Error("ch0 is still keyed on, expected no change")
	}
	if !s.Set(0, YMRegKey, 0x00) {
		t.Error("key-off ch0 should report change")
	}
}

func TestYM2612_KeyChannelDecode(t *testing.T) {
	tests := []struct {
		val uint8
		ch  int
		ok  bool
	}{
		{0xF0, 0, true},
		{0x01, 1, true},
		{0x02, 2, true},
		{0x03, 0, false},
		{0x04, 3, true},
		{0x16, 5, true},
		{0x07, 0, false},
	}
	for _, tc := range tests {
		ch, ok := YMKeyChannel(tc.val)
		if ok != tc.ok || (ok && ch != tc.ch) {
			t.Errorf("YMKeyChannel(0x%02X) = %d,%v want %d,%v", tc.val, ch, ok, tc.ch, tc.ok)
		}
	}
	if YMKeyOn(0x02) || !YMKeyOn(0x12) {
		t.Error("YMKeyOn mismatch")
	}
}

func TestYM2612_IgnoredRegisters(t *testing.T) {
	ignored := []struct {
		port int
		reg  uint8
	}{
		{0, 0x00}, {0, 0x1F}, {0, 0x20}, {0, 0x21}, {0, 0x23}, {0, 0x29},
		{0, YMRegDACData}, {0, 0x2F}, {1, 0x22}, {1, 0x28}, {1, 0x2B},
		{0, 0x33}, {0, 0xA3}, {1, 0xB7}, {0, 0xB7}, {1, 0xA8}, {1, 0xAE},
	}
	for _, tc := range ignored {
		if !IsYMIgnored(tc.port, tc.reg) {
			t.Errorf("port %d reg 0x%02X should be ignored", tc.port, tc.reg)
		}
	}
	kept := []struct {
		port int
		reg  uint8
	}{
		{0, YMRegLFO}, {0, YMRegTimerAHi}, {0, YMRegTimerCtl}, {0, YMRegDACCtl},
		{0, 0x30}, {1, 0x30}, {0, 0xA8}, {1, 0xB6}, {0, 0x9E},
	}
	for _, tc := range kept {
		if IsYMIgnored(tc.port, tc.reg) {
			t.Errorf("port %d reg 0x%02X should not be ignored", tc.port, tc.reg)
		}
	}
}

// --- Delta ---

func TestYM2612_DeltaEmitsDualPairsFirst(t *testing.T) {
	from := NewYM2612State()
	to := from.Clone()
	to.Set(0, 0x30, 0x71)
	to.Set(0, 0xA0, 0x69) // only the low half changes

	d := from.Delta(to)
	if len(d) != 3 {
		t.Fatalf("delta len = %d, want 3: %+v", len(d), d)
	}
	if d[0].Reg != 0xA4 || d[1].Reg != 0xA0 || d[1].Value != 0x69 {
		t.Errorf("dual pair not emitted high-then-low first: %+v", d)
	}
	if d[2].Reg != 0x30 || d[2].Value != 0x71 {
		t.Errorf("single register not emitted after pairs: %+v", d[2])
	}
}

func TestYM2612_DeltaPort1HasNoChannel3Pairs(t *testing.T) {
	from := NewYM2612State()
	to := from.Clone()
	to.Set(1, 0xA8, 0x10)
	if d := from.Delta(to); len(d) != 0 {
		t.Errorf("port 1 0xA8 is ignored, got delta %+v", d)
	}
}

func TestYM2612_DeltaSkipsKeyAndIgnored(t *testing.T) {
	from := NewYM2612State()
	to := from.Clone()
	to.Set(0, YMRegKey, 0xF0)
	to.Set(0, YMRegDACData, 0x80)
	to.Set(1, 0x27, 0x40)
	if d := from.Delta(to); len(d) != 0 {
		t.Errorf("expected empty delta, got %+v", d)
	}
}

func TestYM2612_DeltaUnchangedIsEmpty(t *testing.T) {
	s := NewYM2612State()
	s.Set(0, 0xB4, 0xC0)
	s.Set(1, 0x50, 0x1F)
	if d := s.Delta(s.Clone()); len(d) != 0 {
		t.Errorf("delta against identical clone = %+v", d)
	}
}

func TestYM2612_CloneIsNotAliased(t *testing.T) {
	s := NewYM2612State()
	s.Set(0, 0x40, 0x01)
	c := s.Clone()
	c.Set(0, 0x40, 0x02)
	if s.Get(0, 0x40) != 0x01 {
		t.Error("clone write leaked into original")
	}
}

// Applying delta(S1, S2) to S1 must make every non-ignorable register equal.
func TestYM2612_DeltaApplyReachesTarget(t *testing.T) {
	s1 := NewYM2612State()
	s2 := NewYM2612State()
	// Deterministic pseudo-random register files.
	seed := uint32(0x1234567)
	next := func() uint8 {
		seed = seed*1664525 + 1013904223
		return uint8(seed >> 24)
	}
	for port := 0; port < 2; port++ {
		for r := 0x20; r < 0xB8; r++ {
			if next()&1 == 0 {
				s1.Set(port, uint8(r), next())
			}
			if next()&3 != 0 {
				s2.Set(port, uint8(r), next())
			}
		}
	}

	applied := s1.Clone()
	applied.Apply(s1.Delta(s2))

	for port := 0; port < 2; port++ {
		for r := 0; r < 256; r++ {
			reg := uint8(r)
			if IsYMIgnored(port, reg) || IsYMKey(port, reg) || !s2.IsWritten(port, reg) {
				continue
			}
			if applied.Get(port, reg) != s2.Get(port, reg) {
				t.Errorf("port %d reg 0x%02X: got 0x%02X, want 0x%02X",
					port, reg, applied.Get(port, reg), s2.Get(port, reg))
			}
		}
	}
	if d := applied.Delta(s2); len(d) != 0 {
		t.Errorf("second delta should be empty, got %d writes", len(d))
	}
}
