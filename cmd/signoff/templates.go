package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/signoff/pkg/cmd"
	"github.com/dukex/signoff/pkg/log"
	"github.com/dukex/signoff/pkg/models"
	"github.com/dukex/signoff/pkg/services"
	"github.com/dukex/signoff/pkg/templatefile"
	cli "github.com/urfave/cli/v3"
)

func TemplatesCommand() *cli.Command {
	return &cli.Command{
		Name:  "templates",
		Usage: "Import and list workflow templates",
		Flags: cmd.CommonFlags(),
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Import templates from YAML definition files",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "created-by",
						Usage: "Creator recorded when a file has no created_by",
						Value: "signoff-cli",
					},
				},
				Action: importTemplates,
			},
			{
				Name:  "list",
				Usage: "List templates",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "Only templates in this status"},
				},
				Action: listTemplates,
			},
		},
	}
}

func importTemplates(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("cli")

	files := command.Args().Slice()
	if len(files) == 0 {
		return errors.New("at least one template file is required")
	}

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() { _ = persistence.Close(ctx) }()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), "signoff-cli", logger)
	if err != nil {
		return err
	}

	defer func() { _ = eventBus.Close() }()

	templates := services.NewTemplates(persistence, eventBus)

	for _, path := range files {
		def, err := templatefile.Load(path)
		if err != nil {
			return err
		}

		if def.Template.CreatedBy == "" {
			def.Template.CreatedBy = command.String("created-by")
		}

		template, err := templates.Import(ctx, def.Template, def.Activate)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", path, err)
		}

		_, _ = fmt.Fprintf(command.Root().Writer, "%s\t%s\t%s\t%d steps\n", template.ID, template.Status, template.Name, len(template.Steps))
	}

	return nil
}

func listTemplates(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("cli")

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() { _ = persistence.Close(ctx) }()

	var status *models.TemplateStatus

	if s := command.String("status"); s != "" {
		st := models.TemplateStatus(s)
		status = &st
	}

	list, err := services.NewTemplates(persistence, nil).List(ctx, status)
	if err != nil {
		return err
	}

	for _, template := range list {
		_, _ = fmt.Fprintf(command.Root().Writer, "%s\t%s\t%s\t%d steps\n", template.ID, template.Status, template.Name, len(template.Steps))
	}

	return nil
}
