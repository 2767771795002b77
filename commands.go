package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"showcheck/notify"
	"showcheck/rarity"
	"showcheck/server"
	"showcheck/storage"
)

// pollsPerHour caps manual /pollz triggers per client.
const pollsPerHour = 12

// withApp loads config, builds the logger and app, and runs fn.
func (c *commandContext) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newRunCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Check every portal once and send alerts for new shows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				m, err := a.monitor(ctx)
				if err != nil {
					return err
				}
				report, err := m.CheckAll(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, st := range report.Statuses {
					if !st.OK {
						fmt.Fprintf(out, "Warning: %s failed, showing previous results: %v\n", st.Source, st.Err)
					}
				}
				if len(report.Cards) == 0 {
					fmt.Fprintln(out, "No shows available.")
				} else {
					fmt.Fprintf(out, "%d shows available, %d new\n", report.Total, len(report.Fresh))
					fmt.Fprintln(out, renderCards(report.Cards, freshStatus(report.Fresh)))
				}
				if report.DispatchErr != nil {
					return fmt.Errorf("notification not delivered, will retry next run: %w", report.DispatchErr)
				}
				return nil
			})
		},
	}
}

func newServeCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve /health, /pollz and /shows.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				m, err := a.monitor(ctx)
				if err != nil {
					return err
				}
				srv := server.New(&server.Config{
					Poller:       m,
					Publisher:    a.state,
					Logger:       a.logger.With("component", "server"),
					PollsPerHour: pollsPerHour,
				})
				return srv.ListenAndServe(ctx, a.cfg.Server.Port)
			})
		},
	}
}

func newShowsCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "shows",
		Short: "Print the last published shows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				published, err := a.state.LoadPublished(ctx)
				if storage.IsNotFound(err) {
					fmt.Fprintln(out, "No shows published yet. Run `showcheck run` first.")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d shows, last updated %s\n", published.Count,
					published.LastUpdated.In(a.cfg.Run.Location).Format(time.DateTime))
				if len(published.Cards) > 0 {
					fmt.Fprintln(out, renderCards(published.Cards, nil))
				}
				return nil
			})
		},
	}
}

func newNotifiedCommand(c *commandContext) *cobra.Command {
	notifiedCmd := &cobra.Command{
		Use:   "notified",
		Short: "Inspect or reset the set of announced shows",
	}
	notifiedCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget every announced show so the next run alerts again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				prev, err := a.state.LoadNotified(ctx)
				if err != nil {
					return err
				}
				if err := a.state.SaveNotified(ctx, notify.Clear()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d notified shows\n", prev.Len())
				return nil
			})
		},
	})
	return notifiedCmd
}

func newHistoryCommand(c *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect appearance history",
	}
	historyCmd.AddCommand(&cobra.Command{
		Use:   "show NAME",
		Short: "Show on which days a show was available and whether it counts as rare",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				h, err := a.state.LoadHistory(ctx)
				if err != nil {
					return err
				}
				days := h.Days(name)
				out := cmd.OutOrStdout()
				if len(days) == 0 {
					fmt.Fprintf(out, "No history for %q\n", name)
					return nil
				}

				today := civil.DateOf(time.Now().In(a.cfg.Run.Location))
				hc := a.cfg.History
				classifier := rarity.New(h, today, hc.WindowDays, hc.RareThreshold)

				rows := make([][]string, 0, len(days))
				for _, d := range days {
					rows = append(rows, []string{d.String(), fmt.Sprintf("%d", today.DaysSince(d))})
				}
				fmt.Fprintf(out, "%s: seen on %d of the last %d days, rare=%v\n",
					name, classifier.Count(name), hc.WindowDays, classifier.IsRare(name))
				fmt.Fprintln(out, renderTable([]string{"Date", "Days ago"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	})
	return historyCmd
}
