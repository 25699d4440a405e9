package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config Options for configuring the process-wide logger.
//
// Level - optional log level ("debug", "info", etc.). Falls back to PIX2PIX_LOG_LEVEL
// Output - optional writer (defaults to os.Stderr)
// Service - optional service name attached to every entry
//
type Config struct {
	Level   string
	Output  io.Writer
	Service string
}

var (
	mu   sync.Mutex
	once sync.Once
	base zerolog.Logger
)

// Configure initialises the base logger exactly once. Later calls are ignored.
func Configure(cfg Config) {
	once.Do(func() {
		setup(cfg)
	})
}

// Reconfigure replaces the base logger unconditionally. The runner calls it once the
// experiment config (and its log_level) is known.
func Reconfigure(cfg Config) {
	once.Do(func() {})
	setup(cfg)
}

func setup(cfg Config) {
	level := ParseLevel(cfg.Level)
	if cfg.Level == "" {
		level = ParseLevel(os.Getenv("PIX2PIX_LOG_LEVEL"))
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	writer := cfg.Output
	if writer == nil {
		writer = os.Stderr
	}
	service := cfg.Service
	if service == "" {
		service = "pix2pix"
	}

	mu.Lock()
	base = zerolog.New(writer).With().
		Timestamp().
		Str("service", service).
		Logger()
	mu.Unlock()
}

// ParseLevel Converts "debug", "info", "warn", "error" into zerolog level. Unknown values give info.
func ParseLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// Base Returns the configured base logger.
func Base() zerolog.Logger {
	Configure(Config{})
	mu.Lock()
	defer mu.Unlock()
	return base
}

// WithComponent Returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	l := Base()
	return l.With().Str("component", component).Logger()
}

// Derive attaches arbitrary fields to a child logger using the provided builder function.
func Derive(build func(*zerolog.Context)) zerolog.Logger {
	l := Base()
	ctx := l.With()
	if build != nil {
		build(&ctx)
	}
	return ctx.Logger()
}
