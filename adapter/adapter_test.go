package adapter

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
	"github.com/user-none/xgmtool/chip"
	"github.com/user-none/xgmtool/config"
	"github.com/user-none/xgmtool/vgm"
	"github.com/user-none/xgmtool/xgc"
	"github.com/user-none/xgmtool/xgm"
)

func testEnv() Env {
	return Env{Options: config.Options{
		Region:            chip.RegionNTSC,
		IgnoreShortSample: true,
		RateFix:           true,
		DelayKeyOff:       true,
	}}
}

// songVGM returns a 1.60 VGM with a few FM and PSG writes over four frames.
func songVGM() []byte {
	body := []byte{
		vgm.OpYM2612Port0, 0x30, 0x71,
		vgm.OpPSG, 0x9F,
		vgm.OpWaitNTSC,
		vgm.OpYM2612Port0, chip.YMRegKey, 0xF0,
		vgm.OpWaitNTSC,
		vgm.OpPSG, 0x90,
		vgm.OpWaitNTSC,
		vgm.OpYM2612Port1, 0x40, 0x10,
		vgm.OpWaitNTSC,
		vgm.OpEnd,
	}
	data := make([]byte, 0x40, 0x40+len(body))
	copy(data, "Vgm ")
	binary.LittleEndian.PutUint32(data[0x08:], 0x160)
	binary.LittleEndian.PutUint32(data[0x24:], 60)
	binary.LittleEndian.PutUint32(data[0x34:], 0x40-0x34)
	data = append(data, body...)
	binary.LittleEndian.PutUint32(data[0x04:], uint32(len(data)-4))
	return data
}

func TestKindFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Kind
	}{
		{"song.vgm", KindVGM},
		{"dir/Song.VGZ", KindVGM},
		{"song.xgm", KindXGM},
		{"song.xgc", KindXGC},
		{"rom/song.bin", KindXGC},
		{"song.wav", KindUnknown},
		{"song", KindUnknown},
	}
	for _, tt := range tests {
		if got := KindFromPath(tt.path); got != tt.want {
			t.Errorf("KindFromPath(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestLookup_Unsupported(t *testing.T) {
	f := &Factory{}
	for _, pair := range [][2]Kind{
		{KindXGM, KindXGM},
		{KindXGC, KindXGC},
		{KindUnknown, KindVGM},
		{KindVGM, KindUnknown},
	} {
		if _, err := f.Lookup(pair[0], pair[1]); errors.Cause(err) != ErrUnsupported {
			t.Errorf("%s to %s: err = %v, want ErrUnsupported", pair[0], pair[1], err)
		}
	}
}

// convert looks up and runs one conversion.
func convert(t *testing.T, in, out Kind, data []byte) []byte {
	t.Helper()
	conv, err := (&Factory{}).Lookup(in, out)
	if err != nil {
		t.Fatalf("Lookup %s to %s: %v", in, out, err)
	}
	result, err := conv(data, testEnv())
	if err != nil {
		t.Fatalf("%s to %s: %v", in, out, err)
	}
	return result
}

func TestLookup_Pipelines(t *testing.T) {
	opts := testEnv().Options
	src := songVGM()

	xgmData := convert(t, KindVGM, KindXGM, src)
	x, err := xgm.Decode(xgmData, opts)
	if err != nil {
		t.Fatalf("xgm.Decode: %v", err)
	}
	if got := x.FrameCount(); got != 4 {
		t.Errorf("XGM frames = %d, want 4", got)
	}

	xgcData := convert(t, KindVGM, KindXGC, src)
	c, err := xgc.Decode(xgcData, opts)
	if err != nil {
		t.Fatalf("xgc.Decode: %v", err)
	}
	if got := c.FrameCount(); got != 4 {
		t.Errorf("XGC frames = %d, want 4", got)
	}

	if got := convert(t, KindXGM, KindXGC, xgmData); !bytes.Equal(got, xgcData) {
		t.Error("XGM to XGC differs from VGM to XGC")
	}

	for _, in := range []struct {
		kind Kind
		data []byte
	}{{KindVGM, src}, {KindXGM, xgmData}, {KindXGC, xgcData}} {
		out := convert(t, in.kind, KindVGM, in.data)
		v, err := vgm.Parse(out, opts)
		if err != nil {
			t.Fatalf("%s to VGM: Parse: %v", in.kind, err)
		}
		if got := v.FrameCount(); got != 4 {
			t.Errorf("%s to VGM: frames = %d, want 4", in.kind, got)
		}
	}

	if back := convert(t, KindXGC, KindXGM, xgcData); !xgm.IsXGM(back) {
		t.Errorf("XGC to XGM: magic = %q", back[:4])
	}
}

func TestLookup_BadMagic(t *testing.T) {
	conv, err := (&Factory{}).Lookup(KindXGM, KindXGC)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if _, err := conv(songVGM(), testEnv()); errors.Cause(err) != xgm.ErrBadMagic {
		t.Errorf("err = %v, want ErrBadMagic", err)
	}
}

func TestDecompress(t *testing.T) {
	src := songVGM()

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	if _, err := zw.Write(src); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	var xzBuf bytes.Buffer
	xw, err := xz.NewWriter(&xzBuf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := xw.Write(src); err != nil {
		t.Fatal(err)
	}
	if err := xw.Close(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"plain", src},
		{"gzip", gz.Bytes()},
		{"xz", xzBuf.Bytes()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decompress(tt.data)
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			if !bytes.Equal(got, src) {
				t.Errorf("got %d bytes, want the %d source bytes", len(got), len(src))
			}
		})
	}

	if _, err := Decompress([]byte{0x1F, 0x8B, 0x00}); err == nil {
		t.Error("broken gzip header should fail")
	}
}
