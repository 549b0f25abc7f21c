// Package main is the jobs CLI: schema migration, the periodic claim sweeps,
// stalled refund recovery, the refund queue worker and an event stream tail.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"disputehub/internal/app"
	"disputehub/internal/config"
	"disputehub/internal/logger"
	"disputehub/internal/repositories"
	"disputehub/internal/services/notification"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "disputehub-jobs",
		Short:         "Background jobs for the dispute service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(escalateCmd(&configPath))
	rootCmd.AddCommand(autoResolveCmd(&configPath))
	rootCmd.AddCommand(recoverRefundsCmd(&configPath))
	rootCmd.AddCommand(workerCmd(&configPath))
	rootCmd.AddCommand(tailEventsCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp builds the services, runs fn and tears everything down. The context
// passed to fn is cancelled on SIGINT or SIGTERM.
func withApp(configPath string, fn func(ctx context.Context, a *app.App) error) error {
	config.LoadEnv()
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.App.LogLevel, cfg.App.Name+"-jobs")
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*configPath, func(ctx context.Context, a *app.App) error {
				if err := repositories.Migrate(a.DB.WithContext(ctx)); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				a.Log.Info("schema migrated")
				return nil
			})
		},
	}
}

func escalateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "escalate",
		Short: "Escalate claims whose seller response deadline has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*configPath, func(ctx context.Context, a *app.App) error {
				res, err := a.Claims.EscalateOverdue(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d escalated=%d skipped=%d failed=%d\n",
					res.Scanned, res.Resolved, res.Skipped, res.Failed)
				return nil
			})
		},
	}
}

func autoResolveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "auto-resolve",
		Short: "Decide low-value claims the investigation engine is confident about",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*configPath, func(ctx context.Context, a *app.App) error {
				res, err := a.Claims.AutoResolvePending(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d resolved=%d skipped=%d failed=%d\n",
					res.Scanned, res.Resolved, res.Skipped, res.Failed)
				return nil
			})
		},
	}
}

func recoverRefundsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "recover-refunds",
		Short: "Reschedule or re-drive stalled refunds and start refunds that were never queued",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*configPath, func(ctx context.Context, a *app.App) error {
				res, err := a.Refunds.RecoverStalled(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d rescheduled=%d redriven=%d started=%d failed=%d\n",
					res.Scanned, res.Rescheduled, res.Redriven, res.Started, res.Failed)
				return nil
			})
		},
	}
}

func workerCmd(configPath *string) *cobra.Command {
	var sweepEvery time.Duration

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume refund jobs until interrupted",
		Long: `Consume refund jobs until interrupted.

With --sweep-every the worker also runs escalation, auto-resolution and
stalled refund recovery on that interval, so a small deployment needs no
external cron.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*configPath, func(ctx context.Context, a *app.App) error {
				g, ctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					return a.Runner.Run(ctx, a.Refunds.HandleJob)
				})
				g.Go(func() error {
					<-ctx.Done()
					a.Runner.Stop()
					return nil
				})
				if sweepEvery > 0 {
					g.Go(func() error {
						sweepLoop(ctx, a, sweepEvery)
						return nil
					})
				}
				return g.Wait()
			})
		},
	}
	cmd.Flags().DurationVar(&sweepEvery, "sweep-every", 0, "run the periodic sweeps on this interval (0 disables)")
	return cmd
}

func tailEventsCmd(configPath *string) *cobra.Command {
	var group, name string

	cmd := &cobra.Command{
		Use:   "tail-events",
		Short: "Print events from the event stream as JSON lines, acknowledging each one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*configPath, func(ctx context.Context, a *app.App) error {
				if a.Redis == nil {
					return fmt.Errorf("redis is not available")
				}
				consumer, err := notification.NewConsumer(ctx, a.Redis, a.Config.Redis.EventsStream,
					group, name, 5*time.Second, a.Log.Named("events"))
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				for ctx.Err() == nil {
					batch, err := consumer.Read(ctx, 50)
					if err != nil {
						if ctx.Err() != nil {
							return nil
						}
						return err
					}
					for _, d := range batch {
						if err := enc.Encode(d.Envelope); err != nil {
							return err
						}
						if err := consumer.Ack(ctx, d.EntryID); err != nil {
							return err
						}
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&group, "group", "tail", "consumer group; a new group starts from the oldest retained event")
	cmd.Flags().StringVar(&name, "name", "tail-1", "consumer name within the group")
	return cmd
}

func sweepLoop(ctx context.Context, a *app.App, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, err := a.Claims.EscalateOverdue(ctx); err != nil {
			a.Log.Error("escalation sweep failed", zap.Error(err))
		}
		if _, err := a.Claims.AutoResolvePending(ctx); err != nil {
			a.Log.Error("auto-resolve sweep failed", zap.Error(err))
		}
		if _, err := a.Refunds.RecoverStalled(ctx); err != nil {
			a.Log.Error("refund recovery failed", zap.Error(err))
		}
	}
}
