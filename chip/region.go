package chip

import emucore "github.com/user-none/eblitui/api"

// Region is an alias for emucore.Region so NTSC/PAL selection matches the
// rest of the Mega Drive tooling.
type Region = emucore.Region

const (
	RegionNTSC = emucore.RegionNTSC
	RegionPAL  = emucore.RegionPAL
)

// VGMSampleRate is the reference clock every VGM wait is expressed in.
const VGMSampleRate = 44100

// RegionTiming holds the playback constants for a display region.
type RegionTiming struct {
	FPS             int // Frames per second
	SamplesPerFrame int // VGM samples per frame (44100 / FPS)
	PCMLatency      int // Driver PCM buffering latency in frames
	YM2612ClockHz   int // FM clock written to VGM headers
	SN76489ClockHz  int // PSG clock written to VGM headers
}

// NTSC timing: 60 Hz, 735 samples per frame, 3 frames of PCM latency
var NTSCTiming = RegionTiming{
	FPS:             60,
	SamplesPerFrame: 0x2DF,
	PCMLatency:      3,
	YM2612ClockHz:   7670453,
	SN76489ClockHz:  3579545,
}

// PAL timing: 50 Hz, 882 samples per frame, 2 frames of PCM latency
var PALTiming = RegionTiming{
	FPS:             50,
	SamplesPerFrame: 0x372,
	PCMLatency:      2,
	YM2612ClockHz:   7600489,
	SN76489ClockHz:  3546893,
}

// GetTimingForRegion returns the appropriate timing constants
func GetTimingForRegion(r Region) RegionTiming {
	if r == RegionPAL {
		return PALTiming
	}
	return NTSCTiming
}

// RegionFromRate maps a VGM header refresh rate to a region. Anything
// other than 50 Hz is treated as NTSC.
func RegionFromRate(rate uint32) Region {
	if rate == 50 {
		return RegionPAL
	}
	return RegionNTSC
}

// RegionName returns "NTSC" or "PAL".
func RegionName(r Region) string {
	if r == RegionPAL {
		return "PAL"
	}
	return "NTSC"
}

// DefaultRegion returns the default region (NTSC).
func DefaultRegion() Region {
	return RegionNTSC
}
