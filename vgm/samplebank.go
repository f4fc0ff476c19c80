package vgm

import (
	"github.com/pkg/errors"
)

// defaultMarginRate is the rate assumed when sizing the match margin of a
// sample whose rate is still unknown.
const defaultMarginRate = 4000

// Sample is a PCM clip inside a bank. Rate 0 means the rate is not
// confirmed yet.
type Sample struct {
	ID     int
	Offset int
	Length int
	Rate   int
}

// End returns the bank address just past the sample.
func (s *Sample) End() int { return s.Offset + s.Length }

// Confirmed reports whether the rate is known.
func (s *Sample) Confirmed() bool { return s.Rate > 0 }

// block is one data block appended to a bank.
type block struct {
	offset, length int
}

// SampleBank is the concatenation of every data block sharing one id.
type SampleBank struct {
	ID      uint8
	Data    []byte
	Samples []*Sample

	blocks []block
	nextID int
}

// NewSampleBank builds a bank from its first data block. The whole block
// becomes one unconfirmed sample.
func NewSampleBank(c *Command) (*SampleBank, error) {
	if !c.IsDataBlock() {
		return nil, errors.Errorf("vgm: command %s is not a data block", c)
	}
	b := &SampleBank{ID: c.DataBlockType()}
	b.appendBlock(c.DataBlockData())
	return b, nil
}

// AddBlock appends another data block with the same id and registers a
// sample for the appended region.
func (b *SampleBank) AddBlock(c *Command) error {
	if !c.IsDataBlock() {
		return errors.Errorf("vgm: command %s is not a data block", c)
	}
	if c.DataBlockType() != b.ID {
		return errors.Errorf("vgm: data block id 0x%02X does not match bank 0x%02X", c.DataBlockType(), b.ID)
	}
	b.appendBlock(c.DataBlockData())
	return nil
}

func (b *SampleBank) appendBlock(payload []byte) {
	off := len(b.Data)
	// Grow into a fresh buffer; nothing keeps slices of the old one.
	data := make([]byte, off+len(payload))
	copy(data, b.Data)
	copy(data[off:], payload)
	b.Data = data
	b.blocks = append(b.blocks, block{offset: off, length: len(payload)})
	b.newSample(off, len(payload), 0)
}

func (b *SampleBank) newSample(offset, length, rate int) *Sample {
	s := &Sample{ID: b.nextID, Offset: offset, Length: length, Rate: rate}
	b.nextID++
	b.Samples = append(b.Samples, s)
	return s
}

// Blocks returns the number of data blocks in the bank.
func (b *SampleBank) Blocks() int { return len(b.blocks) }

// Block returns the bank range of a data block.
func (b *SampleBank) Block(id int) (offset, length int, ok bool) {
	if id < 0 || id >= len(b.blocks) {
		return 0, 0, false
	}
	return b.blocks[id].offset, b.blocks[id].length, true
}

// margin returns the match tolerance around a sample start: one frame of
// data at the sample rate.
func margin(rate int) int {
	if rate <= 0 {
		rate = defaultMarginRate
	}
	return rate / 60
}

// FindSample returns the sample starting within the match margin of
// offset, or nil.
func (b *SampleBank) FindSample(offset int) *Sample {
	var best *Sample
	bestDist := 0
	for _, s := range b.Samples {
		dist := s.Offset - offset
		if dist < 0 {
			dist = -dist
		}
		if dist > margin(s.Rate) {
			continue
		}
		if best == nil || dist < bestDist {
			best, bestDist = s, dist
		}
	}
	return best
}

// WouldAdd reports whether AddSample(offset, ...) would create a new
// sample rather than refine an existing one.
func (b *SampleBank) WouldAdd(offset int) bool {
	return b.FindSample(offset) == nil
}

// AddSample registers a detected clip. Unmatched offsets create a sample;
// a matched unconfirmed sample takes the rate and length; a matched
// confirmed sample only grows.
func (b *SampleBank) AddSample(offset, length, rate int) *Sample {
	s := b.FindSample(offset)
	switch {
	case s == nil:
		return b.newSample(offset, length, rate)
	case !s.Confirmed():
		s.Rate = rate
		s.Length = length
	case length > s.Length:
		s.Length = length
	}
	return s
}

// RemoveSample drops a sample from the bank.
func (b *SampleBank) RemoveSample(s *Sample) {
	for i, cur := range b.Samples {
		if cur == s {
			b.Samples = append(b.Samples[:i], b.Samples[i+1:]...)
			return
		}
	}
}

// SampleData returns the bytes of a sample clamped to the bank.
func (b *SampleBank) SampleData(s *Sample) []byte {
	start := s.Offset
	if start < 0 {
		start = 0
	}
	if start > len(b.Data) {
		start = len(b.Data)
	}
	end := s.End()
	if end > len(b.Data) {
		end = len(b.Data)
	}
	if end < start {
		end = start
	}
	return b.Data[start:end]
}
