// Package main provides the signoff command line tool.
package main

import (
	"context"
	"os"

	"github.com/dukex/signoff/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	logger := log.WithModule("cli")

	command := &cli.Command{
		Name:                  "signoff",
		Usage:                 "Manage approval workflow templates",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			TemplatesCommand(),
			EventsCommand(),
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("signoff failed", "error", err)
		os.Exit(1)
	}
}
