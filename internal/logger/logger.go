// Package logger provides a configured zerolog logger.
package logger

import (
	"io"
	"os"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	zpkgerrors "github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configures an optional rotating log file written alongside stdout.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
}

// New returns a new zerolog.Logger configured for the application.
// Call sites should use .Stack() on error events to include stacks.
func New(serviceName string) zerolog.Logger {
	return NewWithWriter(serviceName, os.Stdout)
}

// NewWithFile is New plus a lumberjack-rotated file sink when opts.Path is set.
// The returned closer flushes and closes the file; it is a no-op without a file.
func NewWithFile(serviceName string, opts FileOptions) (zerolog.Logger, io.Closer) {
	if opts.Path == "" {
		return New(serviceName), nopCloser{}
	}
	lj := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		Compress:   true,
	}
	return NewWithWriter(serviceName, io.MultiWriter(os.Stdout, lj)), lj
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewWithWriter builds the service logger on top of w.
func NewWithWriter(serviceName string, w io.Writer) zerolog.Logger {
	configureErrorMarshaling()

	return zerolog.New(w).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}

// configureErrorMarshaling makes zerolog work with github.com/pkg/errors:
// stacks are marshaled when present and attached to std errors when .Stack() is used.
func configureErrorMarshaling() {
	type stackTracer interface{ StackTrace() pkgerrors.StackTrace }

	zerolog.ErrorStackMarshaler = func(err error) interface{} {
		if _, ok := err.(stackTracer); !ok {
			err = pkgerrors.WithStack(err)
		}
		return zpkgerrors.MarshalStack(err)
	}
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		if _, ok := err.(stackTracer); ok {
			return err
		}
		return pkgerrors.WithStack(err)
	}
}
