package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/deixis/cmdsnap/internal/review"
)

func newPendingCmd(a *app) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List pending snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pending, err := a.engine.Pending()
			if err != nil {
				return err
			}
			printPending(cmd.OutOrStdout(), pending)
			if check && len(pending) > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "exit with status 1 when anything is pending")
	return cmd
}

func printPending(w io.Writer, pending []review.Pending) {
	if len(pending) == 0 {
		fmt.Fprintln(w, "no pending snapshots")
		return
	}
	for _, p := range pending {
		status := "changed"
		if p.IsNew() {
			status = NewStyle.Render("new")
		}
		fmt.Fprintf(w, "%s (%s)\n", p.Target, status)
	}
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <snapshot>...",
		Short: "Show pending snapshots as diffs against their baselines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			for i, path := range args {
				p, err := a.engine.Show(path)
				if err != nil {
					return err
				}
				if i > 0 {
					fmt.Fprintln(w)
				}
				printShow(w, a.engine, p)
			}
			return nil
		},
	}
}

func printShow(w io.Writer, e *review.Engine, p *review.Pending) {
	fmt.Fprintln(w, TitleStyle.Render("Snapshot: "+p.Target))
	if expr := p.New.Meta.Expression; expr != "" {
		fmt.Fprintln(w, SubtitleStyle.Render("Command: "+expr))
	}
	if p.IsNew() {
		fmt.Fprintln(w, NewStyle.Render("+new snapshot"))
		fmt.Fprintln(w, p.New.Body)
		return
	}
	fmt.Fprint(w, colorDiff(e.Diff(p)))
}

func newAcceptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "accept [snapshot...]",
		Short: "Accept pending snapshots (all when none are named)",
		RunE: func(cmd *cobra.Command, args []string) error {
			done, err := a.engine.Accept(args)
			fmt.Fprintf(cmd.OutOrStdout(), "accepted %d snapshots\n", len(done))
			return err
		},
	}
}

func newRejectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reject [snapshot...]",
		Short: "Reject pending snapshots (all when none are named)",
		RunE: func(cmd *cobra.Command, args []string) error {
			done, err := a.engine.Reject(args)
			fmt.Fprintf(cmd.OutOrStdout(), "rejected %d snapshots\n", len(done))
			return err
		},
	}
}

func newTestCmd(a *app) *cobra.Command {
	var accept bool
	cmd := &cobra.Command{
		Use:   "test [packages...]",
		Short: "Run go test and list the snapshots it left pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.engine.Test(cmd.Context(), args, accept)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprint(w, report.Summary.String())
			fmt.Fprintln(w)
			if len(report.Accepted) > 0 {
				fmt.Fprintf(w, "accepted %d snapshots\n", len(report.Accepted))
			}
			printPending(w, report.Pending)
			if testFailed(report.Summary, accept) {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&accept, "accept", false, "accept every pending snapshot after the run")
	return cmd
}

// testFailed reports whether a go test run should fail the command. When
// accepting, failures that were only snapshot mismatches are resolved.
func testFailed(s *review.TestSummary, accept bool) bool {
	if s.Status != "FAIL" {
		return false
	}
	if accept && len(s.BuildErrors) == 0 && s.Mismatches() == s.Failed {
		return false
	}
	return true
}
