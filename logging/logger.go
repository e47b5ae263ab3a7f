package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Output formats accepted by Config.Format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds the logger settings
type Config struct {
	// Level is a logrus level name: trace, debug, info, warn, error.
	Level string

	// Format is either "text" or "json". Empty means text.
	Format string

	// CommandLog is an optional file receiving only marked entries.
	CommandLog string
}

// Setup builds a logger from cfg. The returned close function releases the
// command log file, if one was opened.
func Setup(cfg Config, out io.Writer) (*logrus.Logger, func() error, error) {
	logger := logrus.New()
	if out != nil {
		logger.SetOutput(out)
	}

	level := logrus.InfoLevel
	if cfg.Level != "" {
		lvl, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = lvl
	}
	logger.SetLevel(level)

	formatter, err := newFormatter(cfg.Format)
	if err != nil {
		return nil, nil, err
	}
	logger.SetFormatter(formatter)

	closeFn := func() error { return nil }
	if cfg.CommandLog != "" {
		f, err := os.OpenFile(cfg.CommandLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open command log: %w", err)
		}
		logger.AddHook(NewWriterHook(f, &logrus.TextFormatter{DisableColors: true, FullTimestamp: true}))
		closeFn = f.Close
	}

	return logger, closeFn, nil
}

func newFormatter(format string) (logrus.Formatter, error) {
	switch strings.ToLower(format) {
	case "", FormatText:
		return &logrus.TextFormatter{FullTimestamp: true}, nil
	case FormatJSON:
		return &logrus.JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
