package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/dig"

	"gmailsorter/internal/config"
	"gmailsorter/internal/di"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// app holds what every subcommand shares once flags are parsed.
type app struct {
	root       *cobra.Command
	configFile string
	cfg        *config.Config
	container  *dig.Container
}

func newApp() *app {
	a := &app{}
	a.root = newRootCmd(a)
	return a
}

// execute runs the command line and releases whatever it built, on the
// error path too.
func (a *app) execute(ctx context.Context) error {
	defer a.teardown()
	return a.root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:               "gmailsorter",
		Short:             "Move inbox mail into Gmail labels by sender",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Path to a config.yaml (default: search the config dir and .)")
	flags.String("config-dir", "", "Directory holding client_secret.json, the token cache and the database")
	flags.String("db", "", "Path to the SQLite database (default: <config-dir>/gmailsorter.db)")
	flags.Bool("dry-run", false, "Report what would be moved without touching the mailbox")
	flags.String("log-level", "", "Logging level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: console or json")

	root.AddCommand(
		newCleanCmd(a),
		newRulesCmd(a),
		newLabelsCmd(a),
		newHistoryCmd(a),
		newTUICmd(a),
	)
	return root
}

// flagKeys binds persistent flags to configuration keys.
var flagKeys = map[string]string{
	"config_dir":     "config-dir",
	"db_path":        "db",
	"run.dry_run":    "dry-run",
	"logging.level":  "log-level",
	"logging.format": "log-format",
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	bindings := make([]config.FlagBinding, 0, len(flagKeys))
	for key, name := range flagKeys {
		bindings = append(bindings, config.FlagBinding{Key: key, Flag: cmd.Flags().Lookup(name)})
	}
	cfg, err := config.New(a.configFile, bindings...)
	if err != nil {
		return err
	}
	v := cfg.GetViper()
	a.cfg = cfg

	// Some commands adjust configuration before anything is built.
	if cmd.Annotations[annotationLogToFile] == "true" && v.GetString("logging.file") == "" {
		if err := os.MkdirAll(cfg.ConfigDir(), 0o700); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		v.Set("logging.file", cfg.LogFile())
	}

	a.container, err = di.BuildContainer(di.Params{
		Context: cmd.Context(),
		Config:  cfg,
		Prompt:  cmd.ErrOrStderr(),
		Input:   cmd.InOrStdin(),
	})
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}
	return nil
}

func (a *app) teardown() {
	if a.container == nil {
		return
	}
	if err := di.Close(a.container); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
}

// invoke runs fn with its arguments resolved from the container.
func (a *app) invoke(fn interface{}) error {
	return a.container.Invoke(fn)
}

const annotationLogToFile = "log-to-file"
