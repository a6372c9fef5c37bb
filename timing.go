package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
)

// stdout is where console output of the timing and run log helpers goes.
var stdout io.Writer = os.Stdout

// Tic starts timing a code region. When timer is false it does nothing and
// returns false. Otherwise it waits for pending device work so earlier
// kernels are not billed to the region.
func Tic(timer bool) (time.Time, bool) {
	if !timer {
		return time.Time{}, false
	}
	SynchronizeDevice()
	return time.Now(), true
}

// Toc ends a region started by Tic and reports its duration in milliseconds
// as "<name padded to 30> EP: <ms> ms". The line goes to log without console
// echo when log is non-nil, otherwise to stdout. When timer is false nothing
// is measured or printed and Toc returns false.
func Toc(start time.Time, name string, timer bool, log io.Writer) (float64, bool) {
	if !timer {
		return 0, false
	}
	SynchronizeDevice()
	elapsed := float64(time.Since(start).Nanoseconds()) / 1e6
	line := fmt.Sprintf("%-30s EP: %.2f ms", name, elapsed)

	if log != nil {
		if err := PrintLog(line, log, WithoutDisplay()); err != nil {
			logWarningf("toc %s: %v", name, err)
		}
	} else {
		fmt.Fprintln(stdout, line)
	}
	return elapsed, true
}

type printOptions struct {
	sameLine bool
	display  bool
}

// PrintOption configures PrintLog.
type PrintOption func(*printOptions)

// WithSameLine omits the trailing newline so the next write continues the
// line, e.g. for in-place progress.
func WithSameLine() PrintOption {
	return func(o *printOptions) { o.sameLine = true }
}

// WithoutDisplay writes only to the log, not the console.
func WithoutDisplay() PrintOption {
	return func(o *printOptions) { o.display = false }
}

type flusher interface {
	Flush() error
}

// PrintLog writes s to the console and to log. After writing, log is flushed
// if it buffers (implements Flush() error).
func PrintLog(s string, log io.Writer, opts ...PrintOption) error {
	o := printOptions{display: true}
	for _, fn := range opts {
		fn(&o)
	}

	end := "\n"
	if o.sameLine {
		end = ""
	}

	if o.display {
		fmt.Fprint(stdout, s+end)
	}

	if _, err := io.WriteString(log, s+end); err != nil {
		return errors.Wrap(err, "write run log")
	}
	if f, ok := log.(flusher); ok {
		if err := f.Flush(); err != nil {
			return errors.Wrap(err, "flush run log")
		}
	}
	return nil
}
