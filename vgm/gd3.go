package vgm

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/user-none/xgmtool/stream"
	"golang.org/x/text/encoding/unicode"
)

const (
	gd3Magic   = "Gd3 "
	gd3Version = 0x100
	gd3Fields  = 11
)

// GD3 is the VGM metadata tag. Every field is stored as UTF-16LE in the
// file.
type GD3 struct {
	TrackName    string
	TrackNameJP  string
	GameName     string
	GameNameJP   string
	SystemName   string
	SystemNameJP string
	Author       string
	AuthorJP     string
	Date         string
	Ripper       string
	Notes        string
}

func (g *GD3) fields() []*string {
	return []*string{
		&g.TrackName, &g.TrackNameJP,
		&g.GameName, &g.GameNameJP,
		&g.SystemName, &g.SystemNameJP,
		&g.Author, &g.AuthorJP,
		&g.Date, &g.Ripper, &g.Notes,
	}
}

var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// ParseGD3 decodes a GD3 block starting at data[0].
func ParseGD3(data []byte) (*GD3, error) {
	if len(data) < 12 || string(data[:4]) != gd3Magic {
		return nil, errors.New("gd3: bad magic")
	}
	size, err := stream.Uint32LE(data, 8)
	if err != nil {
		return nil, err
	}
	body, err := stream.Bytes(data, 12, int(size))
	if err != nil {
		// Some rippers write a short length; take what is there.
		body = data[12:]
	}

	g := &GD3{}
	dec := utf16LE.NewDecoder()
	pos := 0
	for _, f := range g.fields() {
		end := pos
		for end+1 < len(body) && (body[end] != 0 || body[end+1] != 0) {
			end += 2
		}
		if pos < len(body) {
			s, err := dec.Bytes(body[pos:min(end, len(body))])
			if err != nil {
				return nil, errors.Wrap(err, "gd3: decode string")
			}
			*f = string(s)
		}
		pos = end + 2
	}
	return g, nil
}

// Encode returns the GD3 block bytes.
func (g *GD3) Encode() ([]byte, error) {
	enc := utf16LE.NewEncoder()
	var body []byte
	for _, f := range g.fields() {
		b, err := enc.Bytes([]byte(*f))
		if err != nil {
			return nil, errors.Wrap(err, "gd3: encode string")
		}
		body = append(body, b...)
		body = append(body, 0, 0)
	}
	out := make([]byte, 12, 12+len(body))
	copy(out, gd3Magic)
	binary.LittleEndian.PutUint32(out[4:], gd3Version)
	binary.LittleEndian.PutUint32(out[8:], uint32(len(body)))
	return append(out, body...), nil
}
