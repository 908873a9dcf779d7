package launch

import (
	"context"
	"runtime"

	"conman/internal/logging"
	"conman/internal/models"
)

// Dispatcher connects to a stored connection by spawning its client.
type Dispatcher struct {
	Secrets Decrypter
	Runner  Runner
	// GOOS overrides runtime.GOOS when set.
	GOOS string
}

// NewDispatcher returns a dispatcher for the current platform.
func NewDispatcher(secrets Decrypter, runner Runner) *Dispatcher {
	return &Dispatcher{Secrets: secrets, Runner: runner}
}

func (d *Dispatcher) goos() string {
	if d.GOOS != "" {
		return d.GOOS
	}
	return runtime.GOOS
}

// Plan returns the command Dispatch would run.
func (d *Dispatcher) Plan(conn models.Connection) (Command, error) {
	return Plan(conn, d.goos(), d.Secrets)
}

// Dispatch plans and runs conn. Any error is returned once; nothing is retried.
func (d *Dispatcher) Dispatch(ctx context.Context, conn models.Connection) error {
	cmd, err := d.Plan(conn)
	if err != nil {
		return err
	}
	logger := logging.Component("launch")
	logger.Info().
		Str("name", conn.Name).
		Str("type", string(conn.Kind())).
		Str("command", cmd.Redacted()).
		Bool("shell", cmd.Shell).
		Msg("launching")
	logger.Debug().Str("name", conn.Name).Str("command", cmd.String()).Msg("full command")
	return d.Runner.Run(ctx, cmd)
}

// WithRunner returns a copy of d that uses r.
func (d *Dispatcher) WithRunner(r Runner) *Dispatcher {
	cp := *d
	cp.Runner = r
	return &cp
}
