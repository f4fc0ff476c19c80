package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/user-none/xgmtool/chip"
	"github.com/user-none/xgmtool/cli"
	"github.com/user-none/xgmtool/config"
)

const usage = `usage: xgmtool <input> <output> [options]

Converts between VGM (.vgm, .vgz), XGM (.xgm) and compiled XGM (.xgc, .bin).

options:
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("xgmtool", flag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprint(flags.Output(), usage)
		flags.PrintDefaults()
	}
	silent := flags.Bool("s", false, "silent, only errors are reported")
	verbose := flags.Bool("v", false, "verbose, report every conversion step")
	ntsc := flags.Bool("n", false, "force NTSC timing")
	pal := flags.Bool("p", false, "force PAL timing")
	keepShort := flags.Bool("di", false, "keep short or flat PCM samples")
	noRateFix := flags.Bool("dr", false, "disable PCM rate correction")
	noDelay := flags.Bool("dd", false, "disable delayed key-off")

	if len(args) < 2 {
		flags.Usage()
		return cli.ExitInput
	}
	if err := flags.Parse(args[2:]); err != nil {
		return cli.ExitInput
	}

	opts := config.Default()
	verbosity := config.Normal
	switch {
	case *silent:
		verbosity = config.Silent
	case *verbose:
		verbosity = config.Verbose
	}
	opts.Logger = config.NewLogger(os.Stderr, verbosity)
	switch {
	case *ntsc:
		opts.Region, opts.ForceRegion = chip.RegionNTSC, true
	case *pal:
		opts.Region, opts.ForceRegion = chip.RegionPAL, true
	}
	opts.IgnoreShortSample = !*keepShort
	opts.RateFix = !*noRateFix
	opts.DelayKeyOff = !*noDelay

	if err := cli.NewRunner(afero.NewOsFs(), opts).Run(args[0], args[1]); err != nil {
		opts.Logger.Error("conversion failed", "error", err)
		if verbosity == config.Silent {
			fmt.Fprintf(os.Stderr, "xgmtool: %v\n", err)
		}
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}
