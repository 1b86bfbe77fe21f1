package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/plantcare/internal"
	"github.com/starford/plantcare/internal/models"
	"github.com/starford/plantcare/internal/watering"
	pkgconfig "github.com/starford/plantcare/pkg/config"
)

var version = "dev"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: pkgconfig.DefaultPath,
		Sources:     cli.EnvVars(pkgconfig.EnvFile),
	}
}

func loadOptions(cmd *cli.Command) ([]internal.Option, error) {
	configPath := pkgconfig.Resolve(cmd.String("config"))

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, opts...); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

func reminders(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.CheckReminders(ctx, opts...)
}

func interval(_ context.Context, cmd *cli.Command) error {
	md := models.SpeciesCareMetadata{WateringDescription: cmd.String("description")}
	if b := cmd.String("benchmark"); b != "" {
		md.WateringBenchmark = watering.ParseBenchmark(b)
	}
	days, source := watering.Explain(md)
	_, err := fmt.Fprintf(os.Stdout, "%d days (%s)\n", days, source)
	return err
}

func main() {
	cmd := &cli.Command{
		Name:    "plantcare",
		Usage:   "Houseplant watering tracker with species lookup, reminders, and a photo inbox",
		Version: version,
		Action:  serve,
		Flags:   []cli.Flag{configFlag()},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, reminder scheduler, and photo inbox",
				Flags:  []cli.Flag{configFlag()},
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Flags:  []cli.Flag{configFlag()},
				Action: mcp,
			},
			{
				Name:   "reminders",
				Usage:  "Print the plants that need watering today",
				Flags:  []cli.Flag{configFlag()},
				Action: reminders,
			},
			{
				Name:  "interval",
				Usage: "Resolve a watering interval from species care data",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "benchmark",
						Usage: `Watering benchmark, e.g. "7-10" or "5"`,
					},
					&cli.StringFlag{
						Name:  "description",
						Usage: `Watering description, e.g. "Water twice a week"`,
					},
				},
				Action: interval,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
