// Package logging configures zerolog for the store and hands out
// component-scoped loggers.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	root = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Setup initializes the global logger. Format "console" enables the
// human-readable writer; anything else emits JSON. Unknown levels fall
// back to info.
func Setup(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	mu.Lock()
	root = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	mu.Unlock()
}

// Logger returns the root logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// WithComponent returns a logger tagged with a component name, e.g.
// "registry" or "scatter". Components keep log lines greppable without
// per-call-site prefixes.
func WithComponent(component string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.With().Str("component", component).Logger()
}
