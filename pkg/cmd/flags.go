package cmd

import (
	"strings"

	cli "github.com/urfave/cli/v3"
)

// CommonFlags are shared by every binary that touches storage.
func CommonFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL for persistence (file://path or postgres://...)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "administrators",
			Usage:   "Comma separated principals with administrator rights on documents",
			Sources: cli.EnvVars("ADMINISTRATORS"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export spans over OTLP/HTTP (configured with OTEL_EXPORTER_OTLP_* variables)",
			Sources: cli.EnvVars("TRACING_ENABLED"),
		},
	}, EventBusFlags()...)
}

// EventBusFlags select the notification transport.
func EventBusFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Value:   "localhost:9092",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}

// SplitList splits a comma separated flag value, dropping blanks.
func SplitList(value string) []string {
	items := make([]string, 0)

	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}
