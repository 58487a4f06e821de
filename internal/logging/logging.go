// Package logging wires up logrus: a prefixed formatter for terminals,
// with lumberjack handling rotation when logging to a file.
package logging

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures Setup.
type Options struct {
	Level      string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
}

// Setup configures the package-wide logrus logger and returns it. Every
// package's `var log = logrus.WithFields(...)` picks up this
// configuration since logrus.StandardLogger() is shared.
func Setup(opts Options) *logrus.Logger {
	logger := logrus.StandardLogger()

	logger.Formatter = &prefixed.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	}

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Level = level

	var out io.Writer = colorable.NewColorableStdout()
	if opts.FilePath != "" {
		out = &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    maxOr(opts.MaxSizeMB, 100),
			MaxBackups: maxOr(opts.MaxBackups, 3),
		}
	}
	logger.Out = out

	return logger
}

// SetupStderr is a convenience for CLI tools that want plain,
// non-rotated stderr logging (e.g. one-off subcommands).
func SetupStderr(level string) *logrus.Logger {
	logger := logrus.StandardLogger()
	logger.Out = os.Stderr
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logger.Level = lvl
	}
	return logger
}

func maxOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
