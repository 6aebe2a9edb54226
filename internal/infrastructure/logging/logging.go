package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

type Config struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	// Attrs are attached to every record, e.g. run_id and network.
	Attrs []slog.Attr
}

// Init installs the default slog logger and routes the std log package into
// it. The returned writer is nil unless a log file was configured.
func Init(cfg Config) (*RotatingWriter, error) {
	return initWithStdout(cfg, os.Stdout)
}

func initWithStdout(cfg Config, stdout io.Writer) (*RotatingWriter, error) {
	level := parseLevel(cfg.Level)
	writers := []io.Writer{stdout}

	var rotating *RotatingWriter
	if strings.TrimSpace(cfg.File) != "" {
		writer, err := NewRotatingWriter(cfg.File, cfg.MaxSizeMB, cfg.MaxBackups)
		if err != nil {
			return nil, err
		}
		rotating = writer
		writers = append(writers, writer)
	}

	var handler slog.Handler = slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: level})
	if len(cfg.Attrs) > 0 {
		handler = handler.WithAttrs(cfg.Attrs)
	}
	slog.SetDefault(slog.New(handler))

	stdLogger := slog.NewLogLogger(handler, level)
	log.SetFlags(0)
	log.SetOutput(stdLogger.Writer())

	return rotating, nil
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
