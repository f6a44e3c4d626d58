package logger

import (
	"os"
	"strings"

	"github.com/nexconsult/vies-api/internal/logstream"
	"github.com/sirupsen/logrus"
)

// New creates a new logger instance
func New(level, format string) *logrus.Logger {
	logger := logrus.New()

	// Set log level
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set output
	logger.SetOutput(os.Stdout)

	// Set formatter
	switch format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	return logger
}

// StreamHook tees formatted log lines into a logstream buffer so the API
// can expose them live.
type StreamHook struct {
	stream *logstream.Stream
	levels []logrus.Level
}

// NewStreamHook creates a hook mirroring info and above into stream.
func NewStreamHook(stream *logstream.Stream) *StreamHook {
	return &StreamHook{
		stream: stream,
		levels: []logrus.Level{
			logrus.ErrorLevel,
			logrus.WarnLevel,
			logrus.InfoLevel,
		},
	}
}

// Levels implements logrus.Hook.
func (h *StreamHook) Levels() []logrus.Level {
	return h.levels
}

// Fire implements logrus.Hook.
func (h *StreamHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}
	h.stream.Append(strings.TrimRight(line, "\n"))
	return nil
}
