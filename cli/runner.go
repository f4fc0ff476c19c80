// Package cli runs one conversion from an input file to an output file.
package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/user-none/xgmtool/adapter"
	"github.com/user-none/xgmtool/config"
	"github.com/user-none/xgmtool/resample"
)

// Process exit codes.
const (
	ExitOK = iota
	ExitInput
	ExitOutput
	ExitUnsupported
	ExitConversion
)

// Error is a failed run together with the exit code it maps to.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

// Cause returns the wrapped error.
func (e *Error) Cause() error { return e.Err }

func (e *Error) Unwrap() error { return e.Err }

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ExitConversion
}

func fail(code int, err error) error {
	return &Error{Code: code, Err: err}
}

// Runner converts files on a file system.
type Runner struct {
	fs      afero.Fs
	opts    config.Options
	factory *adapter.Factory
}

// NewRunner creates a Runner working on fs.
func NewRunner(fs afero.Fs, opts config.Options) *Runner {
	return &Runner{fs: fs, opts: opts, factory: &adapter.Factory{}}
}

// Run converts in to out. The container kinds come from the file
// extensions.
func (r *Runner) Run(in, out string) (err error) {
	log := r.opts.Log()

	inKind, outKind := adapter.KindFromPath(in), adapter.KindFromPath(out)
	conv, err := r.factory.Lookup(inKind, outKind)
	if err != nil {
		return fail(ExitUnsupported, errors.Wrapf(err, "%s -> %s", in, out))
	}

	data, err := afero.ReadFile(r.fs, in)
	if err != nil {
		return fail(ExitInput, errors.Wrap(err, "reading input"))
	}
	data, err = adapter.Decompress(data)
	if err != nil {
		return fail(ExitInput, errors.Wrapf(err, "decompressing %s", in))
	}

	rs, err := resample.New(r.fs, r.opts.ScratchDir, log)
	if err != nil {
		return fail(ExitOutput, err)
	}
	defer func() {
		if cerr := rs.Close(); cerr != nil && err == nil {
			err = fail(ExitOutput, cerr)
		}
	}()

	log.Info("converting", "from", inKind, "to", outKind, "input", in, "output", out)
	result, err := conv(data, adapter.Env{Options: r.opts, Resampler: rs})
	if err != nil {
		return fail(ExitConversion, err)
	}

	if err := afero.WriteFile(r.fs, out, result, 0644); err != nil {
		return fail(ExitOutput, errors.Wrap(err, "writing output"))
	}
	log.Info("done", "bytes", len(result))
	return nil
}
