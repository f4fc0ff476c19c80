package xgm

import (
	"github.com/user-none/xgmtool/resample"
)

// Sample rate and alignment of XGM PCM data.
const (
	SampleRate  = 14000
	SampleAlign = 256

	// MaxSamples is the number of slots in the sample table.
	MaxSamples = 63
)

// Sample is one entry of the sample table. Data is signed 8-bit PCM at
// SampleRate, padded to SampleAlign.
type Sample struct {
	Index int // 1-63
	Data  []byte
}

// NewSample converts unsigned 8-bit PCM at rate into table form.
func NewSample(index int, pcm []byte, rate int, rs *resample.Resampler) (*Sample, error) {
	if rate != SampleRate && len(pcm) > 0 {
		var err error
		pcm, err = rs.Resample(pcm, rate, SampleRate)
		if err != nil {
			return nil, err
		}
	}
	return &Sample{Index: index, Data: signedPadded(pcm)}, nil
}

func signedPadded(pcm []byte) []byte {
	n := (len(pcm) + SampleAlign - 1) / SampleAlign * SampleAlign
	out := make([]byte, n)
	for i, b := range pcm {
		out[i] = b - 0x80
	}
	return out
}

// Unsigned returns the sample as unsigned 8-bit PCM.
func (s *Sample) Unsigned() []byte {
	out := make([]byte, len(s.Data))
	for i, b := range s.Data {
		out[i] = b + 0x80
	}
	return out
}
