// Package main provides the deadline scanner: overdue reminders and release of
// expired document locks on a cron schedule.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/signoff/pkg/capability"
	"github.com/dukex/signoff/pkg/cmd"
	"github.com/dukex/signoff/pkg/log"
	"github.com/dukex/signoff/pkg/scanner"
	"github.com/dukex/signoff/pkg/services"
	cli "github.com/urfave/cli/v3"
)

func main() {
	logger := log.WithModule("scanner")

	command := &cli.Command{
		Name:  "signoff-scanner",
		Usage: "Send overdue reminders and release expired document locks",
		Flags: append(cmd.CommonFlags(),
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression for the scan (five fields)",
				Value:   scanner.DefaultSchedule,
				Sources: cli.EnvVars("SCAN_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "actor",
				Usage:   "Principal the scanner acts as; must be one of the administrators",
				Value:   "signoff-scanner",
				Sources: cli.EnvVars("SCANNER_ACTOR"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the single-runner lease; empty runs without one",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Upper bound of a single scan, also the lease TTL",
				Value: time.Minute,
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single scan and exit",
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			actor := command.String("actor")
			administrators := cmd.SplitList(command.String("administrators"))
			roles := capability.NewRoles(append(administrators, actor)...)

			tracer, shutdown := cmd.NewTracer(ctx, command.Bool("tracing"), "signoff-scanner", logger)
			defer func() {
				if err := shutdown(context.WithoutCancel(ctx)); err != nil {
					logger.ErrorContext(ctx, "Failed to shutdown tracer", "error", err)
				}
			}()

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), "signoff-scanner", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			opts := []scanner.Option{scanner.WithTimeout(command.Duration("timeout"))}

			if redisURL := command.String("redis-url"); redisURL != "" {
				client, err := scanner.ConnectRedis(ctx, redisURL)
				if err != nil {
					return err
				}

				defer func() { _ = client.Close() }()

				opts = append(opts, scanner.WithLease(scanner.NewRedisLease(client, scanner.LeaseKey)))
			}

			serviceOpts := []services.Option{services.WithTracer(tracer)}

			s, err := scanner.New(
				services.NewSubmissions(persistence, eventBus, serviceOpts...),
				services.NewDocuments(persistence, roles, eventBus, serviceOpts...),
				actor,
				logger,
				opts...,
			)
			if err != nil {
				return err
			}

			if command.Bool("once") {
				report, err := s.Scan(ctx)
				logger.InfoContext(ctx, "scan finished", "skipped", report.Skipped, "reminders", report.Reminders, "released", len(report.Released))

				return err
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = s.Start(ctx, command.String("schedule"))
			if err != nil {
				return err
			}

			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), command.Duration("timeout"))
			defer cancel()

			err = s.Stop(stopCtx)
			if errors.Is(err, context.DeadlineExceeded) {
				logger.WarnContext(ctx, "scan still running at shutdown")

				return nil
			}

			return err
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("signoff-scanner failed", "error", err)
		os.Exit(1)
	}
}
