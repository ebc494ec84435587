// Package cli implements rosterctl, the operator command line. It runs the
// same core.Service as the server against the configured store, so loads
// and exports work without the HTTP API.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/roster/internal/config"
	"github.com/JonMunkholm/roster/internal/core"
	"github.com/JonMunkholm/roster/internal/logging"
	"github.com/JonMunkholm/roster/internal/store"
)

// Env is what a command runs against.
type Env struct {
	Config  *config.Config
	Service *core.Service
	Close   func()
}

// Opener builds the Env for one command invocation.
type Opener func(ctx context.Context) (*Env, error)

// DefaultOpener loads .env and the environment, then opens the configured
// store. Logs go to stderr so exports on stdout stay clean.
func DefaultOpener(ctx context.Context) (*Env, error) {
	_ = godotenv.Load()

	cfg, err := config.LoadWith(cliEnv)
	if err != nil {
		return nil, err
	}
	logging.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	backend, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	opts, err := core.OptionsFromConfig(cfg)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Env{
		Config:  cfg,
		Service: core.NewService(backend.Directory, backend.AccessLog, opts),
		Close:   backend.Close,
	}, nil
}

// cliEnv reads the process environment. The CLI serves no HTTP, so the
// admin API key requirement does not apply to it.
func cliEnv(key string) (string, bool) {
	if key == "REQUIRE_API_KEY" {
		return "false", true
	}
	return os.LookupEnv(key)
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	errColor  = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.FgHiBlack)
)

// NewRootCommand assembles the command tree over open.
func NewRootCommand(open Opener) *cobra.Command {
	var noColor bool

	root := &cobra.Command{
		Use:   "rosterctl",
		Short: "Operate the gate roster: load, look up, export",
		Long: `rosterctl loads person rosters into the directory, checks a key the
way a gate would, and exports the directory and the access log.

Configuration comes from the same environment variables as the server
(DB_DRIVER, DATABASE_URL, SQLITE_PATH, AUDIT_TIMEZONE, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable coloured output")

	root.AddCommand(
		newIngestCommand(open),
		newLookupCommand(open),
		newLogsCommand(open),
		newDirectoryCommand(open),
	)
	return root
}

// withEnv opens the Env, runs fn and closes it.
func withEnv(cmd *cobra.Command, open Opener, fn func(*Env) error) error {
	env, err := open(cmd.Context())
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	if env.Close != nil {
		defer env.Close()
	}
	return fn(env)
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	root := NewRootCommand(DefaultOpener)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		printError(root, err)
		return 1
	}
	return 0
}

func printError(cmd *cobra.Command, err error) {
	w := cmd.ErrOrStderr()
	if core.IsUserFacing(err) {
		msg := core.MapError(err)
		errColor.Fprintf(w, "error: %s (%s)\n", msg.Message, msg.Code)
		fmt.Fprintf(w, "  %s\n", msg.Action)
		dimColor.Fprintf(w, "  %v\n", err)
		return
	}
	errColor.Fprintf(w, "error: %v\n", err)
}
