package vgm

import (
	"math"

	"github.com/pkg/errors"
	"github.com/user-none/xgmtool/stream"
)

// Extraction tuning.
const (
	// MaxSamples is the number of sample slots in an XGM table.
	MaxSamples = 63

	gapThreshold    = 400 // samples of silence that end a PCM run
	seekMargin      = 64  // bytes a seek may miss the run end and still continue it
	minSampleLength = 100
	minDynamicRange = 16
	minMeanDelta    = 1.0
	rateFixSnap     = 2.0 // wait deviation from the running mean that gets snapped
	rateFixWeight   = 8   // EMA weight denominator
	streamID        = 0   // stream used for extracted samples
)

// ErrTooManySamples is returned when extraction needs a 64th sample.
var ErrTooManySamples = errors.New("vgm: too many samples")

// run is a candidate PCM clip being followed through the stream.
type run struct {
	bank   *SampleBank
	start  int // bank address of the first play
	length int

	wait        int // samples since the run started
	endPlayWait int // wait at the most recent play
	meanDelta   float64

	plays []*stream.Element[*Command]
	seeks []*stream.Element[*Command]
}

func (r *run) addPlay(e *stream.Element[*Command], rateFix bool) {
	r.wait += e.Value.Wait()
	delta := r.wait - r.endPlayWait
	switch r.length {
	case 0:
		// Lead-in before the first play says nothing about the rate.
	case 1:
		r.meanDelta = float64(delta)
	default:
		if rateFix && math.Abs(float64(delta)-r.meanDelta) > rateFixSnap {
			snapped := int(math.Round(r.meanDelta))
			r.wait += snapped - delta
			delta = snapped
		}
		r.meanDelta += (float64(delta) - r.meanDelta) / rateFixWeight
	}
	r.length++
	r.endPlayWait = r.wait
	r.plays = append(r.plays, e)
}

func (r *run) gap() int { return r.wait - r.endPlayWait }

func (r *run) rate() int {
	if r.endPlayWait <= 0 {
		return 0
	}
	return int(math.Round(44100 * float64(r.length) / float64(r.endPlayWait)))
}

// extractor holds the state of the second extraction pass.
type extractor struct {
	v       *VGM
	convert bool

	setupDone  bool
	streamBank int // bank bound to the stream, -1 if none
	streamRate int
}

// ExtractSamples finds the PCM clips played through the DAC write commands
// and registers them in the sample banks. With convert set, the plays and
// seeks of each clip are replaced by stream commands.
func (v *VGM) ExtractSamples(convert bool) error {
	log := v.opts.Log()
	if v.Version < minPCMVersion {
		log.Warn("VGM older than 1.50, PCM retrieval skipped", "version", v.versionString())
		return nil
	}

	// Pass 1: banks.
	for e := v.Commands.Front(); e != nil; e = e.Next() {
		c := e.Value
		if !c.IsDataBlock() {
			continue
		}
		if b := v.Bank(c.DataBlockType()); b != nil {
			if err := b.AddBlock(c); err != nil {
				return err
			}
			continue
		}
		b, err := NewSampleBank(c)
		if err != nil {
			return err
		}
		v.Banks = append(v.Banks, b)
	}
	if len(v.Banks) == 0 {
		return nil
	}

	// Pass 2: clips.
	x := &extractor{v: v, convert: convert, streamBank: -1}
	var bank *SampleBank
	var cur *run
	var pendingSeek *stream.Element[*Command]
	addr := 0

	for e := v.Commands.Front(); e != nil; {
		next := e.Next()
		c := e.Value
		switch {
		case c.IsDataBlock():
			bank = v.Bank(c.DataBlockType())

		case c.IsSeek():
			target := c.SeekOffset()
			if cur != nil && abs(target-(cur.start+cur.length)) <= seekMargin {
				cur.seeks = append(cur.seeks, e)
				addr = target
				break
			}
			if err := x.finish(cur); err != nil {
				return err
			}
			cur = nil
			addr = target
			pendingSeek = e

		case c.IsPCMPlay():
			if bank == nil {
				break
			}
			if cur != nil && cur.gap() > gapThreshold {
				if err := x.finish(cur); err != nil {
					return err
				}
				cur = nil
			}
			if cur == nil {
				cur = &run{bank: bank, start: addr}
				if pendingSeek != nil {
					cur.seeks = append(cur.seeks, pendingSeek)
					pendingSeek = nil
				}
			}
			cur.addPlay(e, v.opts.RateFix)
			addr++

		default:
			if cur != nil {
				cur.wait += c.Wait()
			}
		}
		e = next
	}
	if err := x.finish(cur); err != nil {
		return err
	}

	log.Info("samples extracted", "count", v.SampleCount(), "banks", len(v.Banks))
	return nil
}

// finish validates a run and registers it as a sample.
func (x *extractor) finish(r *run) error {
	if r == nil || r.length == 0 {
		return nil
	}
	v := x.v
	log := v.opts.Log()

	data := r.bank.SampleData(&Sample{Offset: r.start, Length: r.length})
	if v.opts.IgnoreShortSample && isNoise(data) {
		log.Debug("PCM run discarded as noise", "bank", r.bank.ID, "offset", r.start, "length", r.length)
		return nil
	}
	rate := r.rate()
	if rate <= 0 {
		log.Debug("PCM run without timing discarded", "bank", r.bank.ID, "offset", r.start)
		return nil
	}

	if found := r.bank.FindSample(r.start); found == nil || !found.Confirmed() {
		if v.SampleCount() >= MaxSamples {
			return errors.Wrapf(ErrTooManySamples, "bank 0x%02X offset 0x%X", r.bank.ID, r.start)
		}
	}
	s := r.bank.AddSample(r.start, r.length, rate)
	log.Debug("PCM run",
		"bank", r.bank.ID,
		"offset", r.start,
		"length", r.length,
		"rate", rate,
		"sample", s.ID)

	if x.convert {
		x.rewrite(r, s, rate)
	}
	return nil
}

// rewrite swaps the plays and seeks of a run for stream commands.
func (x *extractor) rewrite(r *run, s *Sample, rate int) {
	list := x.v.Commands
	first := r.plays[0]
	if len(r.seeks) > 0 {
		first = r.seeks[0]
	}
	t := first.Value.Time

	var head []*Command
	if !x.setupDone {
		head = append(head, NewStreamSetup(streamID))
		x.setupDone = true
	}
	if x.streamBank != int(r.bank.ID) {
		head = append(head, NewStreamData(streamID, r.bank.ID))
		x.streamBank = int(r.bank.ID)
	}
	if x.streamRate != rate {
		head = append(head, NewStreamFrequency(streamID, rate))
		x.streamRate = rate
	}
	head = append(head, NewStreamStartLong(streamID, r.start, r.length))
	for _, c := range head {
		c.Time = t
		list.InsertBefore(c, first)
	}

	last := r.plays[len(r.plays)-1]
	if r.length < s.Length {
		stop := NewStreamStop(streamID)
		stop.Time = last.Value.Time + last.Value.Wait()
		list.InsertAfter(stop, last)
	}

	for _, e := range r.seeks {
		list.Remove(e)
	}
	for _, e := range r.plays {
		c := e.Value
		for _, w := range NewWaits(c.Wait()) {
			w.Time = c.Time
			list.InsertBefore(w, e)
		}
		list.Remove(e)
	}
}

// isNoise reports whether a clip is too short or too flat to be a sample.
func isNoise(data []byte) bool {
	if len(data) < minSampleLength {
		return true
	}
	lo, hi := data[0], data[0]
	var deltas float64
	for i, b := range data {
		lo = min(lo, b)
		hi = max(hi, b)
		if i > 0 {
			deltas += math.Abs(float64(b) - float64(data[i-1]))
		}
	}
	if int(hi)-int(lo) < minDynamicRange {
		return true
	}
	return deltas/float64(len(data)-1) < minMeanDelta
}

// CleanSamples drops the samples no stream command refers to.
func (v *VGM) CleanSamples() {
	used := make(map[*Sample]bool)
	streams := NewStreamState()
	for e := v.Commands.Front(); e != nil; e = e.Next() {
		c := e.Value
		streams.Update(c)
		if c.Op != OpStreamStart && c.Op != OpStreamStartLng {
			continue
		}
		if _, s := v.ResolveSample(streams, c); s != nil {
			used[s] = true
		}
	}

	removed := 0
	for _, b := range v.Banks {
		for _, s := range append([]*Sample(nil), b.Samples...) {
			if !used[s] {
				b.RemoveSample(s)
				removed++
			}
		}
	}
	v.opts.Log().Debug("unused samples removed", "count", removed)
}

// StreamState follows the bank and rate bound to each DAC stream.
type StreamState struct {
	banks map[int]uint8
	rates map[int]int
}

// NewStreamState returns an empty stream tracker.
func NewStreamState() *StreamState {
	return &StreamState{banks: make(map[int]uint8), rates: make(map[int]int)}
}

// Update records the effect of c.
func (s *StreamState) Update(c *Command) {
	switch c.Op {
	case OpStreamData:
		s.banks[c.StreamID()] = c.StreamBank()
	case OpStreamFreq:
		s.rates[c.StreamID()] = c.StreamFrequency()
	}
}

// Bank returns the bank bound to a stream.
func (s *StreamState) Bank(id int) (uint8, bool) {
	b, ok := s.banks[id]
	return b, ok
}

// Rate returns the last rate set on a stream, 0 if none.
func (s *StreamState) Rate(id int) int { return s.rates[id] }

// ResolveSample returns the sample a stream start plays. A long start on an
// address with no registered sample registers one covering the played range.
func (v *VGM) ResolveSample(streams *StreamState, c *Command) (*SampleBank, *Sample) {
	id, ok := streams.Bank(c.StreamID())
	if !ok {
		return nil, nil
	}
	bank := v.Bank(id)
	if bank == nil {
		return nil, nil
	}
	switch c.Op {
	case OpStreamStart:
		off, _, ok := bank.Block(c.StreamBlock())
		if !ok {
			return bank, nil
		}
		return bank, bank.FindSample(off)
	case OpStreamStartLng:
		off := c.StreamOffset()
		if s := bank.FindSample(off); s != nil {
			return bank, s
		}
		if off >= len(bank.Data) || c.StreamLength() == 0 {
			return bank, nil
		}
		return bank, bank.AddSample(off, c.StreamLength(), streams.Rate(c.StreamID()))
	}
	return bank, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
