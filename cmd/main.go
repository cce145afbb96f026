package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dfwthrift/contentpipe/internal/app"
	"github.com/dfwthrift/contentpipe/internal/config"
	"github.com/dfwthrift/contentpipe/internal/logger"
	"github.com/spf13/cobra"
)

var cfg *config.Config

func main() {
	root := &cobra.Command{
		Use:   "contentpipe",
		Short: "DFW thrift content pipeline",
		Long:  "Harvests local thrift, sale and secondhand content, scores it for relevance and publishes reviewed items as events or articles.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Load()
			return logger.Init(logger.Config{
				Level:  cfg.LogLevel,
				Output: logOutput(cfg.LogFile),
				Pretty: cfg.LogPretty && !cfg.IsProduction(),
			})
		},
		SilenceUsage: true,
	}

	root.AddCommand(
		serveCmd(),
		migrateCmd(),
		validateCmd(),
		processCmd(),
		harvestCmd(),
		publishCmd(),
		sourcesCmd(),
		cacheCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func logOutput(file string) string {
	if file == "" {
		return "stdout"
	}
	return file
}

// withApp builds the application, runs fn and closes it
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Get().Error().Err(err).Msg("Error closing application")
		}
	}()
	return fn(a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				if err := a.Migrate(cmd.Context()); err != nil {
					return err
				}
				logger.Get().Info().Msg("Schema is up to date")
				return nil
			})
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <url>",
		Short: "Check whether a URL serves a usable RSS or Atom feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				result, err := a.Validator.Validate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
}

func processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <source-id>",
		Short: "Harvest, score and save items from one source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				report, err := a.Processor.ProcessSource(cmd.Context(), args[0])
				if report != nil {
					if perr := printJSON(report); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
}

func harvestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "harvest",
		Short: "Process every active source with the bulk relevance threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				report, err := a.Harvester.Run(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(report)
			})
		},
	}
}

func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <id>...",
		Short: "Publish processed pipeline items as events or articles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				result := a.Publisher.BulkPublish(cmd.Context(), args)
				if err := printJSON(result); err != nil {
					return err
				}
				if len(result.Failed) > 0 {
					return fmt.Errorf("%d of %d items failed to publish", len(result.Failed), len(args))
				}
				return nil
			})
		},
	}
}

func cacheCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "cache",
		Short: "Manage the dedupe cache",
	}
	c.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget every processed marker so the next run sees all items as new",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				if err := a.Cache.ClearProcessed(cmd.Context()); err != nil {
					return err
				}
				logger.Get().Info().Msg("Processed markers cleared")
				return nil
			})
		},
	})
	return c
}
