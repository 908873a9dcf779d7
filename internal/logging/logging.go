// Package logging configures the global zerolog logger.
package logging

import (
	"bytes"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

var (
	mu  sync.Mutex
	out io.Writer = os.Stderr
)

// Setup points the global logger at w with a human-readable console format,
// colored only when w is a terminal. An unknown level falls back to info.
func Setup(w io.Writer, level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	mu.Lock()
	out = w
	mu.Unlock()
	log.Logger = newLogger(w, !isTerminal(w))
	return lvl
}

// Hold sends log output to a buffer until release is called, then writes what
// was buffered. Used while a full-screen UI owns the terminal.
func Hold() (release func()) {
	mu.Lock()
	w := out
	mu.Unlock()
	noColor := !isTerminal(w)
	var buf bytes.Buffer
	log.Logger = newLogger(zerolog.SyncWriter(&buf), noColor)
	return func() {
		log.Logger = newLogger(w, noColor)
		_, _ = w.Write(buf.Bytes())
	}
}

// Component returns a child of the global logger tagged with name.
func Component(name string) *zerolog.Logger {
	l := log.With().Str("component", name).Logger()
	return &l
}

func newLogger(w io.Writer, noColor bool) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: noColor}
	return zerolog.New(console).With().Timestamp().Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
