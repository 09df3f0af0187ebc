package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

func New(env, level string) (*slog.Logger, error) {
	return NewWithWriter(env, level, os.Stdout)
}

// NewWithWriter: JSON-лог в w. Уровень по умолчанию info, в dev debug;
// непустой level (debug, info, warn, error) важнее env.
func NewWithWriter(env, level string, w io.Writer) (*slog.Logger, error) {
	lvl := slog.LevelInfo
	if env == "dev" {
		lvl = slog.LevelDebug
	}
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(h).With("service", "panel-bom", "env", env), nil
}
