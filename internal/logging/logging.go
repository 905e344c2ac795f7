// Package logging routes the standard logger to stdout and, when a log file
// is configured, to a size-rotated file as well.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options mirrors the APP_LOG_* settings.
type Options struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup points the standard logger at stdout plus the rotating file. The
// returned closer flushes and releases the file; it is a no-op without one.
func Setup(opts Options) io.Closer {
	log.SetFlags(log.LstdFlags | log.LUTC)
	if opts.File == "" {
		log.SetOutput(os.Stdout)
		return nopCloser{}
	}

	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, file))
	log.Printf("[INFO] logging to %s (max %dMB, %d backups, %d days)", opts.File, opts.MaxSizeMB, opts.MaxBackups, opts.MaxAgeDays)
	return file
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
