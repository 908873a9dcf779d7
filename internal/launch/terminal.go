package launch

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Terminal opens interactive clients in a new terminal window and starts the
// rest (rdp clients) directly. It is the runner for launches that do not own a
// terminal: the HTTP API and --detach.
type Terminal struct {
	// Emulator is the terminal program outside macOS and Windows.
	// It must accept "-e PROGRAM ARGS...". Empty means x-terminal-emulator.
	Emulator string
	// GOOS overrides runtime.GOOS when set.
	GOOS string
	// ScriptDir holds the short-lived macOS launch scripts. Empty means os.TempDir().
	ScriptDir string
}

func (t Terminal) Run(ctx context.Context, c Command) error {
	if !c.Interactive {
		return Detached{}.Run(ctx, c)
	}
	wrapped, err := t.Wrap(c)
	if err != nil {
		return err
	}
	return Detached{}.Run(ctx, wrapped)
}

// Wrap returns the command that opens c in a new window.
func (t Terminal) Wrap(c Command) (Command, error) {
	goos := t.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	switch goos {
	case "windows":
		// The empty argument is quoted as "" and taken by start as the window title.
		args := append([]string{"/C", "start", "", c.Name}, c.Args...)
		return Command{Name: "cmd", Args: args, Env: c.Env}, nil
	case "darwin":
		return t.wrapDarwin(c)
	}
	emulator := t.Emulator
	if emulator == "" {
		emulator = "x-terminal-emulator"
	}
	args := append([]string{"-e", c.Name}, c.Args...)
	return Command{Name: emulator, Args: args, Env: c.Env}, nil
}

// wrapDarwin asks Terminal.app to run a one-shot script. Terminal.app starts
// its own login shell, so the environment travels inside the script, which
// is mode 0700 and removes itself before running the client.
func (t Terminal) wrapDarwin(c Command) (Command, error) {
	var b strings.Builder
	b.WriteString("#!/bin/sh\nrm -f -- \"$0\"\n")
	for _, kv := range c.Env {
		k, v, _ := strings.Cut(kv, "=")
		fmt.Fprintf(&b, "export %s=%s\n", k, shellQuote(v))
	}
	b.WriteString("exec")
	for _, a := range append([]string{c.Name}, c.Args...) {
		b.WriteString(" " + shellQuote(a))
	}
	b.WriteString("\n")

	f, err := os.CreateTemp(t.ScriptDir, "conman-*.command")
	if err != nil {
		return Command{}, fmt.Errorf("%w osascript: %w", ErrSpawn, err)
	}
	path := f.Name()
	_, werr := f.WriteString(b.String())
	cerr := f.Close()
	if err := firstErr(werr, cerr, os.Chmod(path, 0700)); err != nil {
		os.Remove(path)
		return Command{}, fmt.Errorf("%w osascript: %w", ErrSpawn, err)
	}

	script := "/bin/sh " + shellQuote(path)
	return Command{Name: "osascript", Args: []string{
		"-e", `tell application "Terminal"`,
		"-e", "activate",
		"-e", "do script " + appleString(script),
		"-e", "end tell",
	}}, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func appleString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
