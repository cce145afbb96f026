package ai

import (
	"context"
	"encoding/json"
	"math"

	"github.com/dfwthrift/contentpipe/internal/apperr"
	"github.com/dfwthrift/contentpipe/internal/logger"
	"github.com/dfwthrift/contentpipe/internal/models"
)

// Relevance thresholds; items scoring below are never persisted
const (
	ThresholdSourceProcessing = 5
	ThresholdBulkHarvest      = 7

	DefaultBatchSize = 10
)

// Outcome says which scorer produced a batch's scores
type Outcome string

const (
	OutcomeModel    Outcome = "model"
	OutcomeFallback Outcome = "fallback"
)

// ScoredItem is a raw item with its relevance score and normalized fields
type ScoredItem struct {
	Raw       models.RawContentItem `json:"raw"`
	Score     int                   `json:"score"`
	Processed models.ProcessedData  `json:"processed"`
}

// BatchResult records how one batch was scored. Cause is set for fallbacks.
type BatchResult struct {
	Size    int     `json:"size"`
	Outcome Outcome `json:"outcome"`
	Cause   error   `json:"-"`
	Kept    int     `json:"kept"`
}

// FilterResult holds the items at or above the threshold plus per-batch outcomes
type FilterResult struct {
	Items   []ScoredItem  `json:"items"`
	Batches []BatchResult `json:"batches"`
	Dropped int           `json:"dropped"`
}

// UsedFallback reports whether any batch was scored locally
func (r FilterResult) UsedFallback() bool {
	for _, b := range r.Batches {
		if b.Outcome == OutcomeFallback {
			return true
		}
	}
	return false
}

// RelevanceFilter scores harvested items with the language model and falls
// back to HeuristicScore for any batch the model cannot score.
type RelevanceFilter struct {
	completer Completer
	post      *PostProcessor
	batchSize int
}

func NewRelevanceFilter(completer Completer, post *PostProcessor, batchSize int) *RelevanceFilter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if post == nil {
		post = NewPostProcessor()
	}
	return &RelevanceFilter{completer: completer, post: post, batchSize: batchSize}
}

// Filter scores items in batches and keeps those with score >= threshold.
// It never fails: a batch whose call or response is unusable is scored locally.
func (f *RelevanceFilter) Filter(ctx context.Context, items []models.RawContentItem, variant PromptVariant, threshold int) FilterResult {
	log := logger.Get()
	result := FilterResult{Items: []ScoredItem{}}

	for start := 0; start < len(items); start += f.batchSize {
		end := start + f.batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		scored, err := f.scoreWithModel(ctx, batch, variant)
		br := BatchResult{Size: len(batch), Outcome: OutcomeModel}
		if err != nil {
			log.Warn().
				Err(err).
				Int("batch_size", len(batch)).
				Str("variant", string(variant)).
				Msg("Model scoring failed, using local heuristic")
			scored = f.scoreLocally(batch)
			br.Outcome = OutcomeFallback
			br.Cause = err
		}

		for _, s := range scored {
			if s.Score < threshold {
				continue
			}
			result.Items = append(result.Items, s)
			br.Kept++
		}
		result.Dropped += len(batch) - br.Kept
		result.Batches = append(result.Batches, br)
	}

	log.Info().
		Int("input", len(items)).
		Int("kept", len(result.Items)).
		Int("threshold", threshold).
		Bool("fallback", result.UsedFallback()).
		Msg("Relevance filtering finished")

	return result
}

func (f *RelevanceFilter) scoreWithModel(ctx context.Context, batch []models.RawContentItem, variant PromptVariant) ([]ScoredItem, error) {
	if f.completer == nil {
		return nil, &apperr.UpstreamServiceError{Service: serviceOpenAI, Err: errNoCompleter}
	}

	userPrompt, err := BuildBatchPrompt(batch)
	if err != nil {
		return nil, err
	}

	content, err := f.completer.Complete(ctx, []Message{
		{Role: "system", Content: BuildSystemPrompt(variant)},
		{Role: "user", Content: userPrompt},
	})
	if err != nil {
		return nil, err
	}

	return f.parseModelResponse(content, batch)
}

type modelItem struct {
	Index             *int    `json:"index"`
	RelevanceScore    float64 `json:"relevance_score"`
	Category          string  `json:"category"`
	Title             string  `json:"title"`
	Description       string  `json:"description"`
	Location          string  `json:"location"`
	Date              string  `json:"date"`
	ActionableDetails string  `json:"actionable_details"`
}

// parseModelResponse maps the model's JSON array back onto the batch.
// Elements without a valid index are matched by position.
func (f *RelevanceFilter) parseModelResponse(content string, batch []models.RawContentItem) ([]ScoredItem, error) {
	parsed, err := decodeModelItems(StripCodeFence(content))
	if err != nil {
		return nil, err
	}

	used := make(map[int]bool, len(parsed))
	out := make([]ScoredItem, 0, len(parsed))
	for pos, mi := range parsed {
		idx := pos
		if mi.Index != nil {
			idx = *mi.Index
		}
		if idx < 0 || idx >= len(batch) || used[idx] {
			continue
		}
		used[idx] = true

		raw := batch[idx]
		out = append(out, ScoredItem{
			Raw:   raw,
			Score: clampScore(int(math.Round(mi.RelevanceScore))),
			Processed: f.post.Normalize(models.ProcessedData{
				Title:             mi.Title,
				Description:       mi.Description,
				Location:          mi.Location,
				Category:          mi.Category,
				Date:              mi.Date,
				ActionableDetails: mi.ActionableDetails,
			}, raw),
		})
	}
	return out, nil
}

func decodeModelItems(s string) ([]modelItem, error) {
	var items []modelItem
	if err := json.Unmarshal([]byte(s), &items); err == nil {
		// a bare null decodes without error; an empty array is a real answer
		if items == nil {
			return nil, &apperr.ParseError{Reason: "model response is null"}
		}
		return items, nil
	}

	var wrapped struct {
		Items *[]modelItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(s), &wrapped); err != nil {
		return nil, &apperr.ParseError{Reason: "model response is not JSON", Err: err}
	}
	if wrapped.Items == nil {
		return nil, &apperr.ParseError{Reason: "model response has no items array"}
	}
	return *wrapped.Items, nil
}

func (f *RelevanceFilter) scoreLocally(batch []models.RawContentItem) []ScoredItem {
	out := make([]ScoredItem, 0, len(batch))
	for _, raw := range batch {
		out = append(out, ScoredItem{
			Raw:       raw,
			Score:     HeuristicScore(raw),
			Processed: f.post.Normalize(models.ProcessedData{}, raw),
		})
	}
	return out
}
