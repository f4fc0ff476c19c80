package adapter

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

var xzMagic = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}

// Decompress unwraps gzip (.vgz) or xz compressed input. Anything else is
// returned unchanged.
func Decompress(data []byte) ([]byte, error) {
	switch {
	case len(data) >= 2 && data[0] == 0x1F && data[1] == 0x8B:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "gzip header")
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		return out, errors.Wrap(err, "gzip data")
	case bytes.HasPrefix(data, xzMagic):
		zr, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "xz header")
		}
		out, err := io.ReadAll(zr)
		return out, errors.Wrap(err, "xz data")
	}
	return data, nil
}
