package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/samber/do"
	"github.com/samber/lo"
	"github.com/spf13/pflag"

	"conman/internal/launch"
	"conman/internal/logging"
	"conman/internal/manager"
	"conman/internal/models"
	"conman/internal/server"
	"conman/internal/ssh"
	"conman/internal/store"
	"conman/internal/tui"
)

func newFlags(name string, a *app) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// parse returns done=true when the command should stop quietly (e.g. --help).
func parse(fs *pflag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

func oneName(fs *pflag.FlagSet, usage string) (string, error) {
	if fs.NArg() != 1 || strings.TrimSpace(fs.Arg(0)) == "" {
		return "", fmt.Errorf("usage: conman %s", usage)
	}
	return fs.Arg(0), nil
}

func (a *app) manager() (*manager.Manager, error) {
	return do.Invoke[*manager.Manager](a.injector)
}

func runList(a *app, args []string) error {
	fs := newFlags("list", a)
	asJSON := fs.Bool("json", false, "print JSON without password tokens")
	if done, err := parse(fs, args); done || err != nil {
		return err
	}
	m, err := a.manager()
	if err != nil {
		return err
	}
	records := m.List()
	if *asJSON {
		type row struct {
			Name    string `json:"name"`
			Type    string `json:"type"`
			Address string `json:"address,omitempty"`
		}
		rows := make([]row, 0, len(records))
		for _, c := range records {
			rows = append(rows, row{Name: c.Name, Type: string(c.Kind()), Address: c.Address()})
		}
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	if len(records) == 0 {
		fmt.Fprintln(a.stdout, "no connections; add one with `conman add`")
		return nil
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, c := range records {
		target := c.Address()
		if t, ok := c.Target.(models.Custom); ok {
			target = t.Command
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Name, c.Kind(), target)
	}
	return tw.Flush()
}

func runShow(a *app, args []string) error {
	fs := newFlags("show", a)
	reveal := fs.Bool("reveal", false, "print the decrypted password")
	if done, err := parse(fs, args); done || err != nil {
		return err
	}
	name, err := oneName(fs, "show NAME [--reveal]")
	if err != nil {
		return err
	}
	m, err := a.manager()
	if err != nil {
		return err
	}
	c, err := m.Get(name)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "name\t%s\n", c.Name)
	fmt.Fprintf(tw, "type\t%s\n", c.Kind())
	switch t := c.Target.(type) {
	case models.SSH:
		fmt.Fprintf(tw, "address\t%s\n", t.Address)
		if t.PrivateKey != "" {
			fmt.Fprintf(tw, "private_key\t%s\n", t.PrivateKey)
		}
	case models.RDP:
		fmt.Fprintf(tw, "address\t%s\n", t.Address)
		if t.Username != "" {
			fmt.Fprintf(tw, "username\t%s\n", t.Username)
		}
	case models.Custom:
		fmt.Fprintf(tw, "command\t%s\n", t.Command)
	}
	if c.PasswordToken() != "" {
		pw := "(stored)"
		if *reveal {
			pw, _ = m.Reveal(c.Name)
		}
		fmt.Fprintf(tw, "password\t%s\n", pw)
	}
	if cmd, err := m.Plan(c.Name); err == nil {
		fmt.Fprintf(tw, "launches\t%s\n", cmd)
	}
	return tw.Flush()
}

// fieldFlags are the per-type fields shared by add and edit.
type fieldFlags struct {
	name, kind, address, key, username, command string
	askPassword, clearPassword                  bool
}

func (f *fieldFlags) register(fs *pflag.FlagSet, withType bool) {
	fs.StringVar(&f.name, "name", "", "display name")
	if withType {
		kinds := lo.Map(models.Kinds, func(k models.Kind, _ int) string { return string(k) })
		fs.StringVarP(&f.kind, "type", "t", "", "one of: "+strings.Join(kinds, ", "))
	}
	fs.StringVarP(&f.address, "address", "a", "", "ssh user@host or rdp host")
	fs.StringVarP(&f.key, "key", "i", "", "ssh private key path")
	fs.StringVarP(&f.username, "username", "u", "", "rdp user name")
	fs.StringVarP(&f.command, "command", "c", "", "custom shell command")
	fs.BoolVarP(&f.askPassword, "ask-password", "p", false, "prompt for a password (read from stdin when not a terminal)")
	fs.BoolVar(&f.clearPassword, "clear-password", false, "remove the stored password")
}

func (a *app) passwordInput(f *fieldFlags) (*string, error) {
	switch {
	case f.clearPassword:
		empty := ""
		return &empty, nil
	case f.askPassword:
		pw, err := readPassword(a.stdin, a.stderr, "Password: ")
		if err != nil {
			return nil, err
		}
		return &pw, nil
	}
	return nil, nil
}

func runAdd(a *app, args []string) error {
	fs := newFlags("add", a)
	var f fieldFlags
	f.register(fs, true)
	if done, err := parse(fs, args); done || err != nil {
		return err
	}
	if f.name == "" && fs.NArg() == 1 {
		f.name = fs.Arg(0)
	}
	kind, err := models.ParseKind(f.kind)
	if err != nil {
		return err
	}
	pw, err := a.passwordInput(&f)
	if err != nil {
		return err
	}
	m, err := a.manager()
	if err != nil {
		return err
	}
	c, err := m.Add(manager.Input{
		Name:       f.name,
		Type:       kind,
		Address:    f.address,
		PrivateKey: f.key,
		Password:   pw,
		Username:   f.username,
		Command:    f.command,
	})
	if err != nil {
		return err
	}
	warnKey(a, c)
	fmt.Fprintf(a.stdout, "added %s\n", c.Label())
	return nil
}

func runEdit(a *app, args []string) error {
	fs := newFlags("edit", a)
	var f fieldFlags
	f.register(fs, false)
	if done, err := parse(fs, args); done || err != nil {
		return err
	}
	name, err := oneName(fs, "edit NAME [fields]")
	if err != nil {
		return err
	}
	m, err := a.manager()
	if err != nil {
		return err
	}
	old, err := m.Get(name)
	if err != nil {
		return err
	}
	in := manager.Input{Name: old.Name}
	switch t := old.Target.(type) {
	case models.SSH:
		in.Address, in.PrivateKey = t.Address, t.PrivateKey
	case models.RDP:
		in.Address, in.Username = t.Address, t.Username
	case models.Custom:
		in.Command = t.Command
	}
	overlay := map[string]*string{
		"name": &in.Name, "address": &in.Address, "key": &in.PrivateKey,
		"username": &in.Username, "command": &in.Command,
	}
	values := map[string]string{
		"name": f.name, "address": f.address, "key": f.key,
		"username": f.username, "command": f.command,
	}
	for flag, dst := range overlay {
		if fs.Changed(flag) {
			*dst = values[flag]
		}
	}
	if in.Password, err = a.passwordInput(&f); err != nil {
		return err
	}
	// Switching an ssh connection to password auth drops the key.
	if _, isSSH := old.Target.(models.SSH); isSSH && in.Password != nil && *in.Password != "" && !fs.Changed("key") {
		in.PrivateKey = ""
	}
	c, err := m.Edit(name, in)
	if err != nil {
		return err
	}
	warnKey(a, c)
	fmt.Fprintf(a.stdout, "updated %s\n", c.Label())
	return nil
}

func runRemove(a *app, args []string) error {
	fs := newFlags("rm", a)
	if done, err := parse(fs, args); done || err != nil {
		return err
	}
	name, err := oneName(fs, "rm NAME")
	if err != nil {
		return err
	}
	m, err := a.manager()
	if err != nil {
		return err
	}
	if err := m.Remove(name); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "removed %s\n", name)
	return nil
}

func runConnect(a *app, args []string) error {
	fs := newFlags("connect", a)
	detach := fs.Bool("detach", false, "open the client in a new terminal window and return")
	dryRun := fs.Bool("dry-run", false, "print the command instead of running it")
	if done, err := parse(fs, args); done || err != nil {
		return err
	}
	name, err := oneName(fs, "connect NAME [--detach] [--dry-run]")
	if err != nil {
		return err
	}
	m, err := a.manager()
	if err != nil {
		return err
	}
	if *dryRun {
		cmd, err := m.Plan(name)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, cmd)
		return nil
	}
	return a.connect(m, name, *detach)
}

func (a *app) connect(m *manager.Manager, name string, detach bool) error {
	d := do.MustInvoke[*launch.Dispatcher](a.injector)
	if !detach {
		d = d.WithRunner(launch.Attached{})
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()
	return m.ConnectWith(ctx, name, d)
}

func runPick(a *app, args []string) error {
	fs := newFlags("pick", a)
	detach := fs.Bool("detach", false, "open the client in a new terminal window and return")
	if done, err := parse(fs, args); done || err != nil {
		return err
	}
	m, err := a.manager()
	if err != nil {
		return err
	}
	release := logging.Hold()
	name, err := tui.Run(m)
	release()
	if err != nil {
		return err
	}
	if name == "" {
		return nil
	}
	return a.connect(m, name, *detach)
}

func runExport(a *app, args []string) error {
	fs := newFlags("export", a)
	out := fs.StringP("out", "o", "", "write to FILE instead of stdout")
	if done, err := parse(fs, args); done || err != nil {
		return err
	}
	m, err := a.manager()
	if err != nil {
		return err
	}
	if *out == "" {
		return m.Export(a.stdout)
	}
	f, err := os.OpenFile(*out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if err := m.Export(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runImport(a *app, args []string) error {
	fs := newFlags("import", a)
	replace := fs.Bool("replace", false, "replace every stored connection")
	if done, err := parse(fs, args); done || err != nil {
		return err
	}
	path, err := oneName(fs, "import FILE [--replace]")
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	records, err := store.Decode(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	m, err := a.manager()
	if err != nil {
		return err
	}
	count, err := m.Import(records, *replace)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "imported %d, %d stored\n", len(records), count)
	return nil
}

func runServe(a *app, args []string) error {
	fs := newFlags("serve", a)
	addr := fs.String("addr", a.cfg.HTTPAddr, "listen address")
	if done, err := parse(fs, args); done || err != nil {
		return err
	}
	srv, err := do.Invoke[*server.Server](a.injector)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	fmt.Fprintf(a.stdout, "conman API: http://%s\n", *addr)
	return srv.ListenAndServe(ctx, *addr)
}

func runCheckKey(a *app, args []string) error {
	fs := newFlags("check-key", a)
	if done, err := parse(fs, args); done || err != nil {
		return err
	}
	path, err := oneName(fs, "check-key PATH")
	if err != nil {
		return err
	}
	info, err := ssh.InspectPrivateKey(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s\n", info.Path)
	if info.Type != "" {
		fmt.Fprintf(a.stdout, "  type:        %s\n", info.Type)
		fmt.Fprintf(a.stdout, "  fingerprint: %s\n", info.Fingerprint)
	}
	fmt.Fprintf(a.stdout, "  encrypted:   %t\n", info.Encrypted)
	for _, w := range info.Warnings {
		fmt.Fprintf(a.stdout, "  warning:     %s\n", w)
	}
	return nil
}

// warnKey logs problems with an ssh key path without rejecting the connection.
func warnKey(a *app, c models.Connection) {
	t, ok := c.Target.(models.SSH)
	if !ok || t.PrivateKey == "" {
		return
	}
	logger := logging.Component("cli")
	info, err := ssh.InspectPrivateKey(t.PrivateKey)
	if err != nil {
		logger.Warn().Err(err).Msg("ssh key not usable yet")
		return
	}
	for _, w := range info.Warnings {
		logger.Warn().Str("key", info.Path).Msg(w)
	}
}
