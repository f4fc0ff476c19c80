package chip

import "testing"

func TestPSG_PowerOnSilent(t *testing.T) {
	s := NewPSGState()
	for ch := 0; ch < 4; ch++ {
		if got := s.Get(ch, PSGEnv); got != 0x0F {
			t.Errorf("ch%d attenuation = 0x%02X, want 0x0F", ch, got)
		}
		if s.IsWritten(ch, PSGEnv) {
			t.Errorf("ch%d should not be marked written", ch)
		}
	}
}

func TestPSG_VolumeWrite(t *testing.T) {
	s := NewPSGState()
	// Latch channel 1, volume = 3: 1 01 1 0011 = 0xB3
	ch, class, changed := s.Write(0xB3)
	if ch != 1 || class != PSGEnv || !changed {
		t.Errorf("Write(0xB3) = %d,%d,%v", ch, class, changed)
	}
	if got := s.Get(1, PSGEnv); got != 3 {
		t.Errorf("ch1 attenuation = %d, want 3", got)
	}
	if _, _, changed := s.Write(0xB3); changed {
		t.Error("same attenuation should not report change")
	}
}

func TestPSG_ToneLatchAndData(t *testing.T) {
	s := NewPSGState()
	s.Write(0x80 | 0x0E) // ch0 tone low = 0xE
	ch, class, _ := s.Write(0x0F)
	if ch != 0 || class != PSGTone {
		t.Errorf("data byte landed in ch%d class %d", ch, class)
	}
	if got := s.Get(0, PSGTone); got != 0xFE {
		t.Errorf("ch0 tone = 0x%03X, want 0x0FE", got)
	}
}

func TestPSG_NoiseControl(t *testing.T) {
	s := NewPSGState()
	s.Write(0xE5)
	if got := s.Get(PSGNoiseChannel, PSGTone); got != 0x05 {
		t.Errorf("noise = 0x%02X, want 0x05", got)
	}
}

func TestPSG_SetEncodesFullValue(t *testing.T) {
	s := NewPSGState()
	if !s.Set(2, PSGTone, 0x3A5) {
		t.Error("Set should report change")
	}
	if got := s.Get(2, PSGTone); got != 0x3A5 {
		t.Errorf("ch2 tone = 0x%03X, want 0x3A5", got)
	}
	if s.Set(2, PSGTone, 0x3A5) {
		t.Error("same value should not report change")
	}
}

func TestPSG_EnvelopeClassification(t *testing.T) {
	for _, b := range []uint8{0x90, 0x9F, 0xB0, 0xDF, 0xFF} {
		if !IsPSGEnv(b) {
			t.Errorf("0x%02X should be an attenuation latch", b)
		}
	}
	for _, b := range []uint8{0x80, 0xA5, 0xE3, 0x3F, 0x10} {
		if IsPSGEnv(b) {
			t.Errorf("0x%02X should not be an attenuation latch", b)
		}
	}
}

func TestPSG_CloneKeepsLatch(t *testing.T) {
	s := NewPSGState()
	s.Write(0xC0 | 0x03) // latch ch2 tone
	c := s.Clone()
	// Data byte goes to the latched register in the clone as well.
	c.Write(0x12)
	if got := c.Get(2, PSGTone); got != 0x123 {
		t.Errorf("clone ch2 tone = 0x%03X, want 0x123", got)
	}
	if got := s.Get(2, PSGTone); got != 0x003 {
		t.Errorf("original ch2 tone changed to 0x%03X", got)
	}
}

func TestPSG_DeltaApplyReachesTarget(t *testing.T) {
	s1 := NewPSGState()
	s1.Set(0, PSGTone, 0x100)
	s1.Set(1, PSGEnv, 0x02)

	s2 := s1.Clone()
	s2.Set(0, PSGTone, 0x2FF)
	s2.Set(2, PSGEnv, 0x07)
	s2.Set(PSGNoiseChannel, PSGTone, 0x04)
	s2.Set(PSGNoiseChannel, PSGEnv, 0x00)

	applied := s1.Clone()
	for _, b := range s1.Delta(s2) {
		applied.Write(b)
	}
	for ch := 0; ch < 4; ch++ {
		for class := PSGTone; class <= PSGEnv; class++ {
			if !s2.IsWritten(ch, class) {
				continue
			}
			if applied.Get(ch, class) != s2.Get(ch, class) {
				t.Errorf("ch%d class %d: got 0x%03X, want 0x%03X",
					ch, class, applied.Get(ch, class), s2.Get(ch, class))
			}
		}
	}
	if d := applied.Delta(s2); len(d) != 0 {
		t.Errorf("second delta should be empty, got % X", d)
	}
}
