// Command cmdsnap reviews command snapshots: it lists, shows, accepts and
// rejects pending .snap.new files, runs go test to produce them, and serves
// the same operations over MCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/deixis/cmdsnap"
	"github.com/deixis/cmdsnap/internal/config"
	"github.com/deixis/cmdsnap/internal/review"
	"github.com/deixis/cmdsnap/internal/runner"
	"github.com/deixis/cmdsnap/internal/snapshot"
)

func main() {
	os.Exit(run())
}

// run executes the CLI and returns the process exit code.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			return exit.code
		}
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("error:"), err)
		return 1
	}
	return 0
}

// exitError signals a non-zero exit code without printing anything more.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// app holds what every subcommand needs once flags are parsed.
type app struct {
	logLevel string
	logger   *log.Logger
	cfg      *config.Config
	engine   *review.Engine
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "cmdsnap",
		Short: "Review command snapshots",
		Long: TitleStyle.Render("cmdsnap") + SubtitleStyle.Render(" - snapshot testing for command-line programs") + `

Snapshot assertions in tests write pending .snap.new files when the output
of a command changes. Use these commands to review them.

` + SubtitleStyle.Render("Examples:") + `
  cmdsnap test              Run go test and list pending snapshots
  cmdsnap pending           List pending snapshots
  cmdsnap show <snapshot>   Show the diff of a pending snapshot
  cmdsnap accept            Accept every pending snapshot`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (default from .cmdsnap, else info)")

	root.AddCommand(
		newPendingCmd(a),
		newShowCmd(a),
		newAcceptCmd(a),
		newRejectCmd(a),
		newTestCmd(a),
		newMCPCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), cmdsnap.Version)
			},
		},
	)
	return root
}

// init loads configuration from the working directory and builds the
// logger and review engine.
func (a *app) init() error {
	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}
	loaded, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = loaded.Config

	level := a.logLevel
	if level == "" {
		level = a.cfg.LogLevel()
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	a.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "cmdsnap", Level: lvl})

	a.engine = &review.Engine{
		Config:    a.cfg,
		Runner:    &runner.Runner{Logger: a.logger},
		Store:     snapshot.NewDiskStore(),
		Logger:    a.logger,
		Workspace: workspace,
		RepoRoot:  loaded.RepoRoot,
	}
	return nil
}
