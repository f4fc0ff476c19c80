package vgm

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/user-none/xgmtool/chip"
	"github.com/user-none/xgmtool/config"
)

func testOptions() config.Options {
	return config.Options{
		Region:            chip.RegionNTSC,
		IgnoreShortSample: true,
		RateFix:           true,
		DelayKeyOff:       true,
	}
}

// buildVGM wraps body in a 1.60 header. loopRel is the body offset of the
// loop start, or -1.
func buildVGM(body []byte, loopRel, loopSamples int) []byte {
	data := make([]byte, 0x80, 0x80+len(body)+1)
	copy(data, "Vgm ")
	binary.LittleEndian.PutUint32(data[offVersion:], 0x160)
	binary.LittleEndian.PutUint32(data[offRate:], 60)
	binary.LittleEndian.PutUint32(data[offDataOffset:], 0x80-offDataOffset)
	if loopRel >= 0 {
		binary.LittleEndian.PutUint32(data[offLoopOffset:], uint32(0x80+loopRel-offLoopOffset))
		binary.LittleEndian.PutUint32(data[offLoopSamples:], uint32(loopSamples))
	}
	data = append(data, body...)
	data = append(data, OpEnd)
	binary.LittleEndian.PutUint32(data[offEOF:], uint32(len(data)-offEOF))
	return data
}

func wait16(n int) []byte {
	return []byte{OpWait, byte(n), byte(n >> 8)}
}

func ops(v *VGM) []int {
	var out []int
	for _, c := range v.Commands.Values() {
		out = append(out, c.Op)
	}
	return out
}

func equalOps(t *testing.T, got, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("ops = %02X, want %02X", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("ops = %02X, want %02X", got, want)
		}
	}
}

func TestParse_BadMagic(t *testing.T) {
	data := buildVGM(nil, -1, 0)
	copy(data, "XGM ")
	_, err := Parse(data, testOptions())
	if errors.Cause(err) != ErrBadMagic {
		t.Errorf("err = %v, want ErrBadMagic", err)
	}
}

func TestParse_MagicCaseInsensitive(t *testing.T) {
	data := buildVGM([]byte{OpWaitNTSC}, -1, 0)
	copy(data, "VGM ")
	if _, err := Parse(data, testOptions()); err != nil {
		t.Fatalf("Parse: %v", err)
	}
}

func TestParse_DurationAndFrames(t *testing.T) {
	var body []byte
	for i := 0; i < 60; i++ {
		body = append(body, OpWaitNTSC)
	}
	v, err := Parse(buildVGM(body, -1, 0), testOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := v.Duration(); got != 60*WaitNTSCFrame {
		t.Errorf("Duration = %d, want %d", got, 60*WaitNTSCFrame)
	}
	v.ConvertWaits()
	if got := v.FrameCount(); got != 60 {
		t.Errorf("FrameCount = %d, want 60", got)
	}
	if v.Commands.Back().Value.Op != OpEnd {
		t.Error("stream should end with the end command")
	}
}

func TestParse_RegionFromRate(t *testing.T) {
	data := buildVGM([]byte{OpWaitPAL}, -1, 0)
	binary.LittleEndian.PutUint32(data[offRate:], 50)
	v, err := Parse(data, testOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v.Region != chip.RegionPAL {
		t.Error("50 Hz header should select PAL")
	}

	opts := testOptions()
	opts.ForceRegion = true
	v, err = Parse(data, opts)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v.Region != chip.RegionNTSC {
		t.Error("forced NTSC should override the header")
	}
}

func TestParse_LoopMarkers(t *testing.T) {
	// YM write, wait 100, [loop] YM write, wait 100 with a 50 sample loop.
	body := []byte{OpYM2612Port0, 0x30, 0x01}
	body = append(body, wait16(100)...)
	loopRel := len(body)
	body = append(body, OpYM2612Port0, 0x30, 0x02)
	body = append(body, wait16(100)...)

	v, err := Parse(buildVGM(body, loopRel, 50), testOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	equalOps(t, ops(v), []int{
		OpYM2612Port0, OpWait,
		OpLoopStart,
		OpYM2612Port0, OpWait, OpLoopEnd, OpWait,
		OpEnd,
	})
	if got := v.LoopStart(); got != 100 {
		t.Errorf("LoopStart = %d, want 100", got)
	}
	if got := v.Duration(); got != 200 {
		t.Errorf("Duration = %d, want 200", got)
	}
}

func TestEncode_LoopSamplesFromLoopEnd(t *testing.T) {
	// Three frames, the loop covers the first two.
	body := []byte{OpWaitNTSC, OpWaitNTSC, OpWaitNTSC}
	v, err := Parse(buildVGM(body, 0, 2*WaitNTSCFrame), testOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	equalOps(t, ops(v), []int{
		OpLoopStart, OpWaitNTSC, OpWaitNTSC, OpLoopEnd, OpWaitNTSC, OpEnd,
	})
	out, err := v.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got := binary.LittleEndian.Uint32(out[offLoopSamples:]); got != 2*WaitNTSCFrame {
		t.Errorf("loop samples = %d, want %d", got, 2*WaitNTSCFrame)
	}
	if got := binary.LittleEndian.Uint32(out[offTotalSamples:]); got != 3*WaitNTSCFrame {
		t.Errorf("total samples = %d, want %d", got, 3*WaitNTSCFrame)
	}
}

func TestParse_Truncated(t *testing.T) {
	data := buildVGM([]byte{OpYM2612Port0, 0x30}, -1, 0)
	// Drop the end command so the FM write runs off the file.
	data = data[:len(data)-1]
	binary.LittleEndian.PutUint32(data[offEOF:], uint32(len(data)-offEOF))
	if _, err := Parse(data, testOptions()); err == nil {
		t.Error("truncated command should fail")
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	body := []byte{OpPSG, 0x9F, OpYM2612Port0, 0x28, 0xF0}
	body = append(body, wait16(300)...)
	loopRel := len(body)
	body = append(body, OpYM2612Port1, 0x40, 0x7F, OpWaitNTSC, 0x75)

	v, err := Parse(buildVGM(body, loopRel, WaitNTSCFrame+6), testOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	v.Tag = &GD3{TrackName: "Stage 1", GameName: "Test", Author: "Sound Team"}
	out, err := v.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := Parse(out, testOptions())
	if err != nil {
		t.Fatalf("Parse encoded: %v", err)
	}
	equalOps(t, ops(back), ops(v))
	if back.Duration() != v.Duration() {
		t.Errorf("Duration = %d, want %d", back.Duration(), v.Duration())
	}
	if back.LoopStart() != v.LoopStart() {
		t.Errorf("LoopStart = %d, want %d", back.LoopStart(), v.LoopStart())
	}
	if back.Tag == nil || back.Tag.TrackName != "Stage 1" || back.Tag.Author != "Sound Team" {
		t.Errorf("GD3 tag lost: %+v", back.Tag)
	}
	if got := binary.LittleEndian.Uint32(out[offTotalSamples:]); int(got) != v.Duration() {
		t.Errorf("header total = %d, want %d", got, v.Duration())
	}
}

func TestGD3_RoundTripUnicode(t *testing.T) {
	g := &GD3{TrackName: "Green Hill", TrackNameJP: "グリーンヒル", Notes: "é"}
	b, err := g.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := ParseGD3(b)
	if err != nil {
		t.Fatalf("ParseGD3: %v", err)
	}
	if *back != *g {
		t.Errorf("got %+v, want %+v", back, g)
	}
}

// pcmData returns a sine clip that passes the noise filters.
func pcmData(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(128 + 60*math.Sin(float64(i)*0.3))
	}
	return out
}

// pcmRun returns n DAC plays at rate Hz, each carrying its own wait.
func pcmRun(n, rate int) []byte {
	step := 44100 / float64(rate)
	out := make([]byte, 0, n)
	prev := 0
	for i := 1; i <= n; i++ {
		at := int(float64(i) * step)
		out = append(out, byte(OpPCMPlay+at-prev))
		prev = at
	}
	return out
}

func seek(off int) []byte {
	b := []byte{OpSeek, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(b[1:], uint32(off))
	return b
}

func dataBlock(payload []byte) []byte {
	return NewDataBlock(0, payload).Data
}

func TestExtractSamples_TwoRuns(t *testing.T) {
	// The seek lands on the end of the first run, which would continue it;
	// the gap before the next play still splits the runs.
	body := dataBlock(pcmData(400))
	body = append(body, seek(0)...)
	body = append(body, pcmRun(200, 8000)...)
	body = append(body, wait16(500)...)
	body = append(body, seek(200)...)
	body = append(body, pcmRun(150, 8000)...)

	v, err := Parse(buildVGM(body, -1, 0), testOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := v.ExtractSamples(false); err != nil {
		t.Fatalf("ExtractSamples: %v", err)
	}
	if len(v.Banks) != 1 {
		t.Fatalf("banks = %d, want 1", len(v.Banks))
	}
	samples := v.Banks[0].Samples
	if len(samples) != 2 {
		t.Fatalf("samples = %d, want 2", len(samples))
	}
	for i, want := range []struct{ off, length int }{{0, 200}, {200, 150}} {
		s := samples[i]
		if s.Offset != want.off || s.Length != want.length {
			t.Errorf("sample %d = off %d len %d, want off %d len %d", i, s.Offset, s.Length, want.off, want.length)
		}
		if math.Abs(float64(s.Rate-8000)) > 80 {
			t.Errorf("sample %d rate = %d, want ~8000", i, s.Rate)
		}
	}
}

func TestExtractSamples_GapSplitsRuns(t *testing.T) {
	// No seek between the runs: only the silence gap ends the first one and
	// the second starts where the first stopped reading.
	body := dataBlock(pcmData(400))
	body = append(body, seek(0)...)
	body = append(body, pcmRun(200, 8000)...)
	body = append(body, wait16(500)...)
	body = append(body, pcmRun(150, 8000)...)

	v, err := Parse(buildVGM(body, -1, 0), testOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := v.ExtractSamples(false); err != nil {
		t.Fatalf("ExtractSamples: %v", err)
	}
	samples := v.Banks[0].Samples
	if len(samples) != 2 {
		t.Fatalf("samples = %d, want 2", len(samples))
	}
	for i, want := range []struct{ off, length int }{{0, 200}, {200, 150}} {
		s := samples[i]
		if s.Offset != want.off || s.Length != want.length {
			t.Errorf("sample %d = off %d len %d, want off %d len %d", i, s.Offset, s.Length, want.off, want.length)
		}
		if math.Abs(float64(s.Rate-8000)) > 80 {
			t.Errorf("sample %d rate = %d, want ~8000", i, s.Rate)
		}
	}
}

func TestExtractSamples_ConvertRewritesStream(t *testing.T) {
	body := dataBlock(pcmData(400))
	body = append(body, seek(0)...)
	body = append(body, pcmRun(200, 8000)...)
	body = append(body, wait16(500)...)

	v, err := Parse(buildVGM(body, -1, 0), testOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	before := v.Duration()
	if err := v.ExtractSamples(true); err != nil {
		t.Fatalf("ExtractSamples: %v", err)
	}
	if got := v.Duration(); got != before {
		t.Errorf("Duration = %d, want %d", got, before)
	}

	var start *Command
	for _, c := range v.Commands.Values() {
		if c.IsPCMPlay() || c.IsSeek() {
			t.Fatalf("leftover %s after conversion", c)
		}
		if c.Op == OpStreamStartLng {
			start = c
		}
	}
	if start == nil {
		t.Fatal("no stream start emitted")
	}
	if start.StreamOffset() != 0 || start.StreamLength() != 200 {
		t.Errorf("start = off %d len %d", start.StreamOffset(), start.StreamLength())
	}
	if v.Commands.Front().Value.Op != OpDataBlock {
		t.Error("data block should stay first")
	}
	got := ops(v)[1:4]
	equalOps(t, got, []int{OpStreamSetup, OpStreamData, OpStreamFreq})
}

func TestExtractSamples_NoiseDiscarded(t *testing.T) {
	body := dataBlock(make([]byte, 400)) // flat
	body = append(body, seek(0)...)
	body = append(body, pcmRun(200, 8000)...)

	v, err := Parse(buildVGM(body, -1, 0), testOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := v.ExtractSamples(false); err != nil {
		t.Fatalf("ExtractSamples: %v", err)
	}
	if got := v.SampleCount(); got != 0 {
		t.Errorf("confirmed samples = %d, want 0", got)
	}

	opts := testOptions()
	opts.IgnoreShortSample = false
	v, _ = Parse(buildVGM(body, -1, 0), opts)
	if err := v.ExtractSamples(false); err != nil {
		t.Fatalf("ExtractSamples: %v", err)
	}
	if got := v.SampleCount(); got != 1 {
		t.Errorf("confirmed samples with filter off = %d, want 1", got)
	}
}

func TestExtractSamples_TooMany(t *testing.T) {
	const spacing = 300
	body := dataBlock(pcmData(64 * spacing))
	for i := 0; i < 64; i++ {
		body = append(body, seek(i*spacing)...)
		body = append(body, pcmRun(100, 8000)...)
		body = append(body, wait16(1000)...)
	}

	v, err := Parse(buildVGM(body, -1, 0), testOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	err = v.ExtractSamples(false)
	if errors.Cause(err) != ErrTooManySamples {
		t.Fatalf("err = %v, want ErrTooManySamples", err)
	}
	if got := v.SampleCount(); got != MaxSamples {
		t.Errorf("confirmed samples = %d, want %d", got, MaxSamples)
	}
}

func TestExtractSamples_OldVersionSkipped(t *testing.T) {
	body := []byte{OpWaitNTSC}
	data := buildVGM(body, -1, 0)
	binary.LittleEndian.PutUint32(data[offVersion:], 0x110)
	binary.LittleEndian.PutUint32(data[offDataOffset:], 0)
	// Pre-1.50 commands start at 0x40; pad with frame waits.
	for i := 0x40; i < 0x80; i++ {
		data[i] = OpWaitNTSC
	}
	v, err := Parse(data, testOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := v.ExtractSamples(true); err != nil {
		t.Fatalf("ExtractSamples: %v", err)
	}
	if len(v.Banks) != 0 {
		t.Error("old version should not build banks")
	}
}

func TestCleanSamples_DropsUnused(t *testing.T) {
	body := dataBlock(pcmData(400))
	body = append(body, dataBlock(pcmData(300))...)
	body = append(body, seek(0)...)
	body = append(body, pcmRun(200, 8000)...)

	v, err := Parse(buildVGM(body, -1, 0), testOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := v.ExtractSamples(true); err != nil {
		t.Fatalf("ExtractSamples: %v", err)
	}
	if got := len(v.Banks[0].Samples); got != 2 {
		t.Fatalf("samples before cleanup = %d, want 2", got)
	}
	v.CleanSamples()
	samples := v.Banks[0].Samples
	if len(samples) != 1 || samples[0].Offset != 0 {
		t.Errorf("samples after cleanup = %+v", samples)
	}
}
