// Package config holds the conversion options threaded through every
// pipeline stage.
package config

import (
	"io"
	"log/slog"
	"os"

	"github.com/user-none/xgmtool/chip"
)

// Verbosity selects how much the tool reports.
type Verbosity int

const (
	Silent Verbosity = iota
	Normal
	Verbose
)

// levelSilent sits above every level the tool logs at.
const levelSilent = slog.Level(16)

// Options configures a conversion run.
type Options struct {
	Logger *slog.Logger

	// Region is the timing system. ForceRegion makes it override what the
	// input declares.
	Region      chip.Region
	ForceRegion bool

	// Sample extraction heuristics.
	IgnoreShortSample bool // discard short or flat PCM runs as noise
	RateFix           bool // smooth wait jitter when measuring PCM rates

	// DelayKeyOff moves a same-frame key-off into the next frame.
	DelayKeyOff bool

	// ScratchDir holds the resampler scratch file. Empty means the system
	// temporary directory.
	ScratchDir string
}

// Default returns options with every heuristic enabled and normal logging.
func Default() Options {
	return Options{
		Logger:            NewLogger(os.Stderr, Normal),
		Region:            chip.DefaultRegion(),
		IgnoreShortSample: true,
		RateFix:           true,
		DelayKeyOff:       true,
	}
}

// NewLogger returns a text logger at the level matching v.
func NewLogger(w io.Writer, v Verbosity) *slog.Logger {
	level := slog.LevelInfo
	switch v {
	case Silent:
		level = levelSilent
	case Verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Log returns the configured logger, or a discarding one.
func (o *Options) Log() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

// Timing returns the constants of the selected region.
func (o *Options) Timing() chip.RegionTiming {
	return chip.GetTimingForRegion(o.Region)
}

// ResolveRegion returns the forced region if set, otherwise detected.
func (o *Options) ResolveRegion(detected chip.Region) chip.Region {
	if o.ForceRegion {
		return o.Region
	}
	return detected
}
