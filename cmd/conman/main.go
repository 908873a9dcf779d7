// conman stores named SSH, RDP and custom-command connections and launches
// the matching client for one of them.
//
//	conman add --type ssh --name web --address root@web --key ~/.ssh/id_ed25519
//	conman connect web
//	conman pick
//	conman serve
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/samber/do"
	"github.com/spf13/pflag"

	"conman/internal/config"
	"conman/internal/logging"
	"conman/internal/setup"
)

// app carries what every command needs.
type app struct {
	injector *do.Injector
	cfg      *config.Config
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
}

type command struct {
	name    string
	usage   string
	summary string
	run     func(a *app, args []string) error
}

var commands = []command{
	{"list", "list [--json]", "show connections in display order", runList},
	{"show", "show NAME [--reveal]", "print one connection", runShow},
	{"add", "add --type ssh|rdp|custom --name NAME [fields]", "create a connection", runAdd},
	{"edit", "edit NAME [fields]", "change a connection; unset flags keep their value", runEdit},
	{"rm", "rm NAME", "remove a connection", runRemove},
	{"connect", "connect NAME [--detach] [--dry-run]", "launch the client for a connection", runConnect},
	{"pick", "pick [--detach]", "choose a connection in a terminal picker and connect", runPick},
	{"export", "export [--out FILE]", "write all connections as JSON", runExport},
	{"import", "import FILE [--replace]", "merge (or replace) connections from a JSON file", runImport},
	{"serve", "serve [--addr ADDR]", "run the local HTTP API", runServe},
	{"check-key", "check-key PATH", "inspect an ssh private key file", runCheckKey},
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) && coder.ExitCode() > 0 {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var configPath, dataFile, keyFile, logLevel string
	flagSet := pflag.NewFlagSet("conman", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&configPath, "config", "", "YAML settings file (default: <config dir>/conman/config.yaml)")
	flagSet.StringVar(&dataFile, "data", "", "connections file")
	flagSet.StringVar(&keyFile, "key", "", "secret key file")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	flagSet.BoolP("help", "h", false, "show help")
	flagSet.Usage = func() { printHelp(stderr, flagSet) }

	if err := flagSet.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help || flagSet.NArg() == 0 {
		printHelp(stdout, flagSet)
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dataFile != "" {
		cfg.DataFile = dataFile
	}
	if keyFile != "" {
		cfg.KeyFile = keyFile
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logging.Setup(stderr, cfg.LogLevel)

	name, args := flagSet.Arg(0), flagSet.Args()[1:]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		injector := do.New()
		setup.SetupServices(injector, cfg)
		defer func() {
			if err := injector.Shutdown(); err != nil {
				log.Debug().Err(err).Msg("shutdown")
			}
		}()
		return c.run(&app{injector: injector, cfg: cfg, stdin: stdin, stdout: stdout, stderr: stderr}, args)
	}
	printHelp(stderr, flagSet)
	return fmt.Errorf("unknown command %q", name)
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintln(w, "Usage: conman [global flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-48s %s\n", c.usage, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global flags:")
	fmt.Fprint(w, flagSet.FlagUsages())
}
