package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dukex/signoff/pkg/cmd"
	"github.com/dukex/signoff/pkg/events"
	"github.com/dukex/signoff/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func EventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Inspect engine notifications",
		Commands: []*cli.Command{
			{
				Name:   "tail",
				Usage:  "Print events from the event bus as JSON lines until interrupted",
				Flags:  cmd.EventBusFlags(),
				Action: tailEvents,
			},
		},
	}
}

func tailEvents(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("cli")

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), "signoff-tail", logger)
	if err != nil {
		return err
	}

	defer func() { _ = eventBus.Close() }()

	out := command.Root().Writer

	for _, eventType := range events.Types {
		err := eventBus.Handle(eventType, func(_ context.Context, event any) error {
			line, err := json.Marshal(event)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(out, string(line))

			return err
		})
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = eventBus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	<-ctx.Done()

	return nil
}
