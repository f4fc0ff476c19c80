// Package resample converts unsigned 8-bit PCM clips between rates. Clips
// are staged through a scratch WAV file so the converted audio can be
// inspected when a conversion sounds wrong.
package resample

import (
	"log/slog"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const (
	scratchPattern = "xgmtool-*.wav"
	bitDepth       = 16
	wavFormatPCM   = 1
)

// Resampler owns one scratch file, removed by Close.
type Resampler struct {
	fs   afero.Fs
	path string
	log  *slog.Logger
}

// New creates the scratch file in dir (the system temporary directory when
// dir is empty).
func New(fs afero.Fs, dir string, log *slog.Logger) (*Resampler, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	f, err := afero.TempFile(fs, dir, scratchPattern)
	if err != nil {
		return nil, errors.Wrap(err, "resample: create scratch file")
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return nil, errors.Wrap(err, "resample: close scratch file")
	}
	return &Resampler{fs: fs, path: path, log: log}, nil
}

// Path returns the scratch file location.
func (r *Resampler) Path() string { return r.path }

// Resample converts unsigned 8-bit PCM from one rate to another with linear
// interpolation.
func (r *Resampler) Resample(data []byte, from, to int) ([]byte, error) {
	if from <= 0 || to <= 0 {
		return nil, errors.Errorf("resample: invalid rates %d -> %d", from, to)
	}
	if len(data) == 0 {
		return nil, nil
	}
	if err := r.stage(data, from); err != nil {
		return nil, err
	}
	buf, err := r.load()
	if err != nil {
		return nil, err
	}
	out := interpolate(buf.Data, buf.Format.SampleRate, to)
	r.log.Debug("resampled clip", "from", from, "to", to, "in", len(data), "out", len(out))
	return out, nil
}

// stage writes the clip to the scratch file as 16-bit mono WAV.
func (r *Resampler) stage(data []byte, rate int) error {
	f, err := r.fs.OpenFile(r.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "resample: open scratch file")
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, bitDepth, 1, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           make([]int, len(data)),
		SourceBitDepth: bitDepth,
	}
	for i, b := range data {
		buf.Data[i] = (int(b) - 0x80) << 8
	}
	if err := enc.Write(buf); err != nil {
		return errors.Wrap(err, "resample: write scratch WAV")
	}
	return errors.Wrap(enc.Close(), "resample: finish scratch WAV")
}

// load reads the scratch file back.
func (r *Resampler) load() (*audio.IntBuffer, error) {
	f, err := r.fs.Open(r.path)
	if err != nil {
		return nil, errors.Wrap(err, "resample: open scratch file")
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, errors.New("resample: scratch file is not a valid WAV")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "resample: read scratch WAV")
	}
	return buf, nil
}

// interpolate resamples 16-bit values and converts them back to unsigned
// 8-bit.
func interpolate(in []int, from, to int) []byte {
	n := int((int64(len(in))*int64(to) + int64(from)/2) / int64(from))
	if n < 1 {
		n = 1
	}
	out := make([]byte, n)
	step := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= len(in)-1 {
			out[i] = toU8(in[len(in)-1])
			continue
		}
		frac := pos - float64(j)
		v := float64(in[j]) + (float64(in[j+1])-float64(in[j]))*frac
		out[i] = toU8(int(v))
	}
	return out
}

func toU8(v int) byte {
	v = (v >> 8) + 0x80
	switch {
	case v < 0:
		return 0
	case v > 0xFF:
		return 0xFF
	}
	return byte(v)
}

// Close removes the scratch file.
func (r *Resampler) Close() error {
	if err := r.fs.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "resample: remove scratch file")
	}
	return nil
}
