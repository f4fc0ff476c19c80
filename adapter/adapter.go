// Package adapter maps file containers to the conversion pipelines between
// them.
package adapter

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/user-none/xgmtool/config"
	"github.com/user-none/xgmtool/resample"
	"github.com/user-none/xgmtool/vgm"
	"github.com/user-none/xgmtool/xgc"
	"github.com/user-none/xgmtool/xgm"
)

// Kind is a music container.
type Kind int

const (
	KindUnknown Kind = iota
	KindVGM
	KindXGM
	KindXGC
)

func (k Kind) String() string {
	switch k {
	case KindVGM:
		return "VGM"
	case KindXGM:
		return "XGM"
	case KindXGC:
		return "XGC"
	}
	return "unknown"
}

// ErrUnsupported is returned for an (input, output) pair with no pipeline.
var ErrUnsupported = errors.New("unsupported conversion")

// Format describes one container and the extensions mapped to it.
type Format struct {
	Kind       Kind
	Name       string
	Extensions []string
}

// Formats lists the known containers.
var Formats = []Format{
	{Kind: KindVGM, Name: "Video Game Music", Extensions: []string{".vgm", ".vgz"}},
	{Kind: KindXGM, Name: "eXtended Genesis Music", Extensions: []string{".xgm"}},
	{Kind: KindXGC, Name: "compiled XGM", Extensions: []string{".xgc", ".bin"}},
}

// KindFromPath returns the container selected by a file extension.
func KindFromPath(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range Formats {
		for _, e := range f.Extensions {
			if e == ext {
				return f.Kind
			}
		}
	}
	return KindUnknown
}

// Env carries what a conversion needs besides the input bytes.
type Env struct {
	Options   config.Options
	Resampler *resample.Resampler
}

// Conversion turns input bytes of one container into another.
type Conversion func(data []byte, env Env) ([]byte, error)

// Factory resolves conversions.
type Factory struct{}

// Lookup returns the pipeline converting in to out.
func (f *Factory) Lookup(in, out Kind) (Conversion, error) {
	switch in {
	case KindVGM:
		switch out {
		case KindVGM:
			return vgmToVGM, nil
		case KindXGM:
			return vgmToXGM, nil
		case KindXGC:
			return vgmToXGC, nil
		}
	case KindXGM:
		switch out {
		case KindVGM:
			return xgmToVGM, nil
		case KindXGC:
			return xgmToXGC, nil
		}
	case KindXGC:
		switch out {
		case KindVGM:
			return xgcToVGM, nil
		case KindXGM:
			return xgcToXGM, nil
		}
	}
	return nil, errors.Wrapf(ErrUnsupported, "%s to %s", in, out)
}

func prepareVGM(data []byte, env Env) (*vgm.VGM, error) {
	v, err := vgm.Parse(data, env.Options)
	if err != nil {
		return nil, err
	}
	if err := v.Prepare(); err != nil {
		return nil, err
	}
	return v, nil
}

func buildXGM(data []byte, env Env) (*xgm.XGM, error) {
	v, err := prepareVGM(data, env)
	if err != nil {
		return nil, err
	}
	return xgm.FromVGM(v, env.Resampler)
}

func vgmToVGM(data []byte, env Env) ([]byte, error) {
	v, err := prepareVGM(data, env)
	if err != nil {
		return nil, err
	}
	return v.Encode()
}

func vgmToXGM(data []byte, env Env) ([]byte, error) {
	x, err := buildXGM(data, env)
	if err != nil {
		return nil, err
	}
	return x.Encode()
}

func vgmToXGC(data []byte, env Env) ([]byte, error) {
	x, err := buildXGM(data, env)
	if err != nil {
		return nil, err
	}
	return xgc.Compile(x).Encode()
}

func xgmToVGM(data []byte, env Env) ([]byte, error) {
	x, err := xgm.Decode(data, env.Options)
	if err != nil {
		return nil, err
	}
	return x.ToVGM().Encode()
}

func xgmToXGC(data []byte, env Env) ([]byte, error) {
	x, err := xgm.Decode(data, env.Options)
	if err != nil {
		return nil, err
	}
	return xgc.Compile(x).Encode()
}

func xgcToXGM(data []byte, env Env) ([]byte, error) {
	c, err := xgc.Decode(data, env.Options)
	if err != nil {
		return nil, err
	}
	return c.ToXGM().Encode()
}

func xgcToVGM(data []byte, env Env) ([]byte, error) {
	c, err := xgc.Decode(data, env.Options)
	if err != nil {
		return nil, err
	}
	return c.ToXGM().ToVGM().Encode()
}
