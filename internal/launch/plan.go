// Package launch picks the external client for a connection and starts it.
//
// Every built-in client is started with an argument vector. Custom commands are
// the one exception: the stored string is handed to the platform shell as is,
// so whoever can write the connections file can run anything as this user.
package launch

import (
	"errors"
	"fmt"
	"strings"

	"conman/internal/models"
)

var (
	// ErrUnsupportedPlatform is returned when the plan needs a helper the platform lacks.
	ErrUnsupportedPlatform = errors.New("not supported on this platform")
	// ErrEmptyCommand is returned for a custom connection without a command.
	ErrEmptyCommand = errors.New("custom command is empty")
)

// Decrypter opens stored password tokens. *secret.Box satisfies it.
type Decrypter interface {
	Decrypt(token string) string
}

// Command is one process invocation.
type Command struct {
	Name string
	Args []string
	// Env is appended to the launcher's environment.
	Env []string
	// Shell marks a custom command run through sh -c or cmd /C.
	Shell bool
	// Interactive clients read and write a terminal (ssh, custom commands).
	Interactive bool
}

// String renders the command line. Environment values and rdp passwords are left out.
func (c Command) String() string {
	parts := []string{c.Name}
	for _, a := range c.Args {
		if strings.HasPrefix(a, "/p:") {
			a = "/p:***"
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Redacted is String with the custom command text replaced, for logs.
func (c Command) Redacted() string {
	if !c.Shell || len(c.Args) == 0 {
		return c.String()
	}
	cp := c
	cp.Args = append(append([]string{}, c.Args[:len(c.Args)-1]...), "<custom command>")
	return cp.String()
}

// Plan decides what to run for conn on goos (runtime.GOOS values).
func Plan(conn models.Connection, goos string, d Decrypter) (Command, error) {
	switch t := conn.Target.(type) {
	case models.SSH:
		return planSSH(t, goos, d)
	case models.RDP:
		return planRDP(t, goos, d), nil
	case models.Custom:
		return planCustom(t, goos)
	}
	return Command{}, fmt.Errorf("%w: %s: type required", models.ErrInvalidConnection, conn.Name)
}

func planSSH(t models.SSH, goos string, d Decrypter) (Command, error) {
	switch {
	case t.PrivateKey != "":
		return Command{Name: "ssh", Args: []string{"-i", t.PrivateKey, t.Address}, Interactive: true}, nil
	case t.Password != "":
		if goos == "windows" {
			return Command{}, fmt.Errorf("sshpass: %w", ErrUnsupportedPlatform)
		}
		// sshpass -e reads SSHPASS so the password stays out of the process list.
		return Command{
			Name:        "sshpass",
			Args:        []string{"-e", "ssh", t.Address},
			Env:         []string{"SSHPASS=" + d.Decrypt(t.Password)},
			Interactive: true,
		}, nil
	}
	return Command{Name: "ssh", Args: []string{t.Address}, Interactive: true}, nil
}

func planRDP(t models.RDP, goos string, d Decrypter) Command {
	if goos == "windows" {
		return Command{Name: "mstsc", Args: []string{"/v:" + t.Address}}
	}
	args := []string{"/v:" + t.Address}
	if t.Username != "" {
		args = append(args, "/u:"+t.Username)
	}
	if t.Password != "" {
		args = append(args, "/p:"+d.Decrypt(t.Password))
	}
	return Command{Name: "xfreerdp", Args: args}
}

func planCustom(t models.Custom, goos string) (Command, error) {
	if strings.TrimSpace(t.Command) == "" {
		return Command{}, ErrEmptyCommand
	}
	if goos == "windows" {
		return Command{Name: "cmd", Args: []string{"/C", t.Command}, Shell: true, Interactive: true}, nil
	}
	return Command{Name: "sh", Args: []string{"-c", t.Command}, Shell: true, Interactive: true}, nil
}
