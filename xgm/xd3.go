package xgm

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/user-none/xgmtool/stream"
	"github.com/user-none/xgmtool/vgm"
	"golang.org/x/text/encoding/charmap"
)

// XD3 is the XGM metadata block. Strings are single-byte Latin-1.
type XD3 struct {
	Track            string
	Game             string
	Author           string
	Date             string
	ConversionAuthor string
	Notes            string

	Duration     int // frames
	LoopDuration int // frames, 0 without loop
}

func (x *XD3) strings() []*string {
	return []*string{&x.Track, &x.Game, &x.Author, &x.Date, &x.ConversionAuthor, &x.Notes}
}

// XD3FromGD3 carries the GD3 fields that have an XD3 counterpart.
func XD3FromGD3(g *vgm.GD3) *XD3 {
	if g == nil {
		return nil
	}
	return &XD3{
		Track:            g.TrackName,
		Game:             g.GameName,
		Author:           g.Author,
		Date:             g.Date,
		ConversionAuthor: g.Ripper,
		Notes:            g.Notes,
	}
}

// GD3 returns the VGM tag equivalent.
func (x *XD3) GD3() *vgm.GD3 {
	return &vgm.GD3{
		TrackName:  x.Track,
		GameName:   x.Game,
		SystemName: "Sega Mega Drive",
		Author:     x.Author,
		Date:       x.Date,
		Ripper:     x.ConversionAuthor,
		Notes:      x.Notes,
	}
}

// Encode returns the block: u32 size, the strings and the two durations.
func (x *XD3) Encode() ([]byte, error) {
	enc := charmap.ISO8859_1.NewEncoder()
	var body []byte
	for _, s := range x.strings() {
		b, err := enc.String(*s)
		if err != nil {
			// Characters outside Latin-1 are replaced rather than failing
			// the whole conversion.
			b = latin1Fallback(*s)
		}
		body = append(body, b...)
		body = append(body, 0)
	}
	body = binary.LittleEndian.AppendUint32(body, uint32(x.Duration))
	body = binary.LittleEndian.AppendUint32(body, uint32(x.LoopDuration))

	out := binary.LittleEndian.AppendUint32(nil, uint32(len(body)))
	return append(out, body...), nil
}

func latin1Fallback(s string) string {
	var b []byte
	for _, r := range s {
		if r > 0xFF {
			r = '?'
		}
		b = append(b, byte(r))
	}
	return string(b)
}

// DecodeXD3 reads a block starting at data[0].
func DecodeXD3(data []byte) (*XD3, error) {
	size, err := stream.Uint32LE(data, 0)
	if err != nil {
		return nil, errors.Wrap(err, "xd3: size")
	}
	body, err := stream.Bytes(data, 4, int(size))
	if err != nil {
		return nil, errors.Wrap(err, "xd3: body")
	}
	dec := charmap.ISO8859_1.NewDecoder()
	x := &XD3{}
	pos := 0
	for _, s := range x.strings() {
		end := bytes.IndexByte(body[pos:], 0)
		if end < 0 {
			return nil, errors.New("xd3: unterminated string")
		}
		v, err := dec.Bytes(body[pos : pos+end])
		if err != nil {
			return nil, errors.Wrap(err, "xd3: decode string")
		}
		*s = string(v)
		pos += end + 1
	}
	dur, err := stream.Uint32LE(body, pos)
	if err != nil {
		return nil, errors.Wrap(err, "xd3: duration")
	}
	loop, err := stream.Uint32LE(body, pos+4)
	if err != nil {
		return nil, errors.Wrap(err, "xd3: loop duration")
	}
	x.Duration = int(dur)
	x.LoopDuration = int(loop)
	return x, nil
}
