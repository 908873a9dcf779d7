package launch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ErrSpawn wraps failures to start the external program.
var ErrSpawn = errors.New("failed to start")

// Runner starts a planned command.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// build wires the launcher's own stdio into the child.
func build(ctx context.Context, c Command) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// Detached starts the program on the launcher's stdio and returns without
// waiting. The exit status is ignored; only a failure to start is reported.
type Detached struct{}

func (Detached) Run(_ context.Context, c Command) error {
	// The child must outlive the request that started it.
	cmd := build(context.Background(), c)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w %s: %w", ErrSpawn, c.Name, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// Attached runs the program on the launcher's terminal and waits for it.
// A non-zero exit is returned as *exec.ExitError.
type Attached struct{}

func (Attached) Run(ctx context.Context, c Command) error {
	cmd := build(ctx, c)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w %s: %w", ErrSpawn, c.Name, err)
	}
	return cmd.Wait()
}
