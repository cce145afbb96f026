package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dfwthrift/contentpipe/internal/models"
)

type stubCompleter struct {
	responses []string
	errs      []error
	calls     int
	lastUser  string
}

func (s *stubCompleter) Complete(ctx context.Context, messages []Message) (string, error) {
	i := s.calls
	s.calls++
	if len(messages) > 1 {
		s.lastUser = messages[1].Content
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "[]", nil
}

func rawItems(n int) []models.RawContentItem {
	items := make([]models.RawContentItem, n)
	for i := range items {
		items[i] = models.RawContentItem{
			Title:       fmt.Sprintf("Item number %d", i),
			Description: "A listing description long enough",
			Type:        models.CategoryGeneral,
			Source:      "Test Source",
			URL:         fmt.Sprintf("https://example.com/%d", i),
		}
	}
	return items
}

func TestFilterKeepsItemsAtOrAboveThreshold(t *testing.T) {
	stub := &stubCompleter{responses: []string{
		"```json\n" + `[
			{"index":0,"relevance_score":9,"category":"estate_sale","title":"Estate sale","description":"Big one"},
			{"index":1,"relevance_score":4,"category":"vintage"},
			{"index":2,"relevance_score":5,"category":"Thrift Store"}
		]` + "\n```",
	}}
	f := NewRelevanceFilter(stub, nil, 10)

	res := f.Filter(context.Background(), rawItems(3), VariantRSS, ThresholdSourceProcessing)

	if res.UsedFallback() {
		t.Fatal("expected model outcome")
	}
	if len(res.Items) != 2 || res.Dropped != 1 {
		t.Fatalf("expected 2 kept and 1 dropped, got %d kept, %d dropped", len(res.Items), res.Dropped)
	}
	if res.Items[0].Processed.Category != models.CategoryEstateSale || res.Items[0].Score != 9 {
		t.Errorf("unexpected first item: %+v", res.Items[0])
	}
	if res.Items[1].Processed.Category != models.CategoryThriftStore {
		t.Errorf("expected normalized category thrift_store, got %q", res.Items[1].Processed.Category)
	}
	if res.Items[1].Processed.Title != "Item number 2" {
		t.Errorf("expected raw title to fill gap, got %q", res.Items[1].Processed.Title)
	}
	for _, it := range res.Items {
		if it.Score < ThresholdSourceProcessing || it.Score > 10 {
			t.Errorf("score %d out of bounds", it.Score)
		}
	}
}

func TestFilterBatchesAndFallsBackPerBatch(t *testing.T) {
	stub := &stubCompleter{
		responses: []string{`[{"index":0,"relevance_score":8},{"index":1,"relevance_score":8}]`, "", ""},
		errs:      []error{nil, errors.New("connection reset")},
	}
	f := NewRelevanceFilter(stub, nil, 2)

	items := rawItems(4)
	items[2].Title = "Garage sale in Dallas"
	items[2].Description = "Vintage and antique finds"
	res := f.Filter(context.Background(), items, VariantRSS, ThresholdSourceProcessing)

	if stub.calls != 2 {
		t.Fatalf("expected 2 model calls, got %d", stub.calls)
	}
	if len(res.Batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(res.Batches))
	}
	if res.Batches[0].Outcome != OutcomeModel || res.Batches[1].Outcome != OutcomeFallback {
		t.Fatalf("unexpected outcomes: %+v", res.Batches)
	}
	if res.Batches[1].Cause == nil {
		t.Error("expected fallback cause to be recorded")
	}
	// batch 2: item 2 scores 2*3+1 = 7, item 3 scores 1
	if len(res.Items) != 3 {
		t.Fatalf("expected 3 kept items, got %d", len(res.Items))
	}
	if res.Items[2].Raw.Title != "Garage sale in Dallas" || res.Items[2].Score != 7 {
		t.Errorf("unexpected fallback item: %+v", res.Items[2])
	}
	if res.Items[2].Processed.Category != models.CategoryGarageSale {
		t.Errorf("expected heuristic category, got %q", res.Items[2].Processed.Category)
	}
}

func TestFilterMalformedJSONFallsBack(t *testing.T) {
	stub := &stubCompleter{responses: []string{"Sure! Here are the results: not json"}}
	f := NewRelevanceFilter(stub, nil, 10)

	res := f.Filter(context.Background(), rawItems(2), VariantReddit, ThresholdBulkHarvest)

	if !res.UsedFallback() {
		t.Fatal("expected fallback outcome")
	}
	if len(res.Items) != 0 || res.Dropped != 2 {
		t.Errorf("expected all heuristic scores below 7, got %d kept", len(res.Items))
	}
}

func TestFilterNullResponseFallsBack(t *testing.T) {
	tests := []struct {
		response string
		want     Outcome
	}{
		{"null", OutcomeFallback},
		{`{"items":null}`, OutcomeFallback},
		{"[]", OutcomeModel},
	}

	for _, tt := range tests {
		t.Run(tt.response, func(t *testing.T) {
			stub := &stubCompleter{responses: []string{tt.response}}
			res := NewRelevanceFilter(stub, nil, 10).Filter(context.Background(), rawItems(2), VariantRSS, 1)

			if len(res.Batches) != 1 || res.Batches[0].Outcome != tt.want {
				t.Fatalf("expected outcome %s, got %+v", tt.want, res.Batches)
			}
		})
	}
}

func TestFilterAcceptsWrappedItemsAndClampsScores(t *testing.T) {
	stub := &stubCompleter{responses: []string{
		`{"items":[{"index":1,"relevance_score":42.4},{"index":1,"relevance_score":9},{"index":7,"relevance_score":9},{"relevance_score":6.6}]}`,
	}}
	f := NewRelevanceFilter(stub, nil, 10)

	res := f.Filter(context.Background(), rawItems(3), VariantRSS, 1)

	// index 1 once (duplicate ignored), index 7 out of range, last element matched by position 3 -> out of range
	if len(res.Items) != 1 {
		t.Fatalf("expected 1 item, got %d: %+v", len(res.Items), res.Items)
	}
	if res.Items[0].Score != 10 || res.Items[0].Raw.Title != "Item number 1" {
		t.Errorf("unexpected item: %+v", res.Items[0])
	}
}

func TestFilterSendsIndexedBatch(t *testing.T) {
	stub := &stubCompleter{}
	NewRelevanceFilter(stub, nil, 10).Filter(context.Background(), rawItems(2), VariantRSS, 5)

	if !strings.Contains(stub.lastUser, `"index": 1`) {
		t.Errorf("expected indexed items in prompt, got %s", stub.lastUser)
	}
}

func TestFilterOverHTTPFallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	items := rawItems(1)
	items[0].Title = "Estate sale in Plano"
	items[0].Description = "Antique furniture and vintage records"

	f := NewRelevanceFilter(newTestOpenAIClient(srv.URL), nil, 10)
	res := f.Filter(context.Background(), items, VariantRSS, ThresholdBulkHarvest)

	if !res.UsedFallback() {
		t.Fatal("expected fallback outcome")
	}
	if len(res.Items) != 1 || res.Items[0].Score != 7 {
		t.Fatalf("expected heuristic score 7 to pass threshold 7, got %+v", res.Items)
	}
}

func TestFilterNilCompleterUsesHeuristic(t *testing.T) {
	res := NewRelevanceFilter(nil, nil, 0).Filter(context.Background(), rawItems(3), VariantRSS, 1)
	if !res.UsedFallback() || len(res.Items) != 3 {
		t.Fatalf("expected heuristic scoring for all items, got %+v", res)
	}
}
