package pipeline

import (
	"context"
	"time"

	"github.com/dfwthrift/contentpipe/internal/ai"
	"github.com/dfwthrift/contentpipe/internal/logger"
	"github.com/dfwthrift/contentpipe/internal/models"
)

// HarvestReport is the outcome of one bulk run over all active sources
type HarvestReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Sources    []Report  `json:"sources"`
	Saved      int       `json:"saved"`
	Failed     int       `json:"failed"`
}

// Harvester processes every active source in turn with the stricter bulk threshold
type Harvester struct {
	processor *Processor
}

func NewHarvester(p *Processor) *Harvester {
	return &Harvester{processor: p}
}

// Run visits active rss and web_scrape sources one after another.
// A failing source is reported and the run moves on.
func (h *Harvester) Run(ctx context.Context) (*HarvestReport, error) {
	log := logger.Get()
	report := &HarvestReport{StartedAt: h.processor.now(), Sources: []Report{}}

	sources, err := h.processor.sources.ListSources(ctx, true)
	if err != nil {
		return nil, err
	}

	for i := range sources {
		src := &sources[i]
		if src.SourceType != models.SourceRSS && src.SourceType != models.SourceWebScrape {
			log.Debug().Str("source", src.Name).Str("type", string(src.SourceType)).Msg("Skipping source type")
			continue
		}

		r, err := h.processor.process(ctx, src, ai.ThresholdBulkHarvest)
		if err != nil {
			report.Failed++
		}
		report.Saved += r.Saved
		report.Sources = append(report.Sources, *r)
	}

	report.FinishedAt = h.processor.now()
	log.Info().
		Int("sources", len(report.Sources)).
		Int("saved", report.Saved).
		Int("failed", report.Failed).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Harvest finished")

	return report, nil
}
