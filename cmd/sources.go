package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dfwthrift/contentpipe/internal/app"
	"github.com/dfwthrift/contentpipe/internal/health"
	"github.com/dfwthrift/contentpipe/internal/logger"
	"github.com/dfwthrift/contentpipe/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout accepted by `sources import`
type seedFile struct {
	Sources []seedSource `yaml:"sources"`
}

type seedSource struct {
	Name            string   `yaml:"name"`
	URL             string   `yaml:"url"`
	SourceType      string   `yaml:"source_type"`
	Category        string   `yaml:"category"`
	GeographicFocus string   `yaml:"geographic_focus"`
	Keywords        []string `yaml:"keywords"`
	Active          *bool    `yaml:"active"`
	Schedule        string   `yaml:"schedule"`
}

func loadSeedFile(path string) ([]models.ContentSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return parseSeed(raw)
}

func parseSeed(raw []byte) ([]models.ContentSource, error) {
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	out := make([]models.ContentSource, 0, len(seed.Sources))
	for i, s := range seed.Sources {
		st := models.SourceType(strings.TrimSpace(s.SourceType))
		switch {
		case strings.TrimSpace(s.Name) == "":
			return nil, fmt.Errorf("source %d: name is required", i)
		case strings.TrimSpace(s.URL) == "":
			return nil, fmt.Errorf("source %q: url is required", s.Name)
		case !st.Valid():
			return nil, fmt.Errorf("source %q: unknown source_type %q", s.Name, s.SourceType)
		}

		out = append(out, models.ContentSource{
			Name:            strings.TrimSpace(s.Name),
			URL:             strings.TrimSpace(s.URL),
			SourceType:      st,
			Category:        s.Category,
			GeographicFocus: s.GeographicFocus,
			Keywords:        s.Keywords,
			Active:          s.Active == nil || *s.Active,
			Schedule:        s.Schedule,
		})
	}
	return out, nil
}

func sourcesCmd() *cobra.Command {
	sources := &cobra.Command{
		Use:   "sources",
		Short: "Manage content sources",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List sources with their health",
		RunE: func(cmd *cobra.Command, args []string) error {
			activeOnly, _ := cmd.Flags().GetBool("active")
			return withApp(cmd.Context(), func(a *app.App) error {
				srcs, err := a.Store.ListSources(cmd.Context(), activeOnly)
				if err != nil {
					return err
				}
				for _, s := range srcs {
					fmt.Printf("%s\t%-10s\t%-8s\t%.0f%%\t%s\t%s\n",
						s.ID, s.SourceType, health.Classify(s.Health),
						s.Health.SuccessRate*100, activeLabel(s.Active), s.Name)
				}
				return nil
			})
		},
	}
	list.Flags().Bool("active", false, "Only list active sources")

	importCmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create sources from a YAML seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seeds, err := loadSeedFile(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				for i := range seeds {
					if err := a.Store.CreateSource(cmd.Context(), &seeds[i]); err != nil {
						return fmt.Errorf("create source %q: %w", seeds[i].Name, err)
					}
					logger.Get().Info().Str("id", seeds[i].ID).Str("name", seeds[i].Name).Msg("Source imported")
				}
				fmt.Printf("imported %d sources\n", len(seeds))
				return nil
			})
		},
	}

	sources.AddCommand(list, importCmd)
	return sources
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "paused"
}
