package health

import (
	"testing"
	"time"

	"github.com/dfwthrift/contentpipe/internal/models"
)

var at = time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

func TestApplySuccessResetsFailures(t *testing.T) {
	prev := models.SourceHealth{TotalAttempts: 4, SuccessfulAttempts: 2, ConsecutiveFailures: 2, LastErrorMessage: "timeout"}

	got := Apply(prev, true, "", at)

	if got.TotalAttempts != 5 || got.SuccessfulAttempts != 3 || got.ConsecutiveFailures != 0 {
		t.Errorf("unexpected counters: %+v", got)
	}
	if got.SuccessRate != 0.6 {
		t.Errorf("expected rate 0.6, got %v", got.SuccessRate)
	}
	if got.LastAttemptAt == nil || !got.LastAttemptAt.Equal(at) {
		t.Errorf("expected last attempt %v, got %v", at, got.LastAttemptAt)
	}
	if prev.TotalAttempts != 4 {
		t.Error("Apply must not mutate its input")
	}
}

func TestThreeFailuresAreCritical(t *testing.T) {
	h := Apply(models.SourceHealth{}, true, "", at)
	for i := 0; i < 3; i++ {
		h = Apply(h, false, "fetch failed: status 503", at.Add(time.Duration(i)*time.Hour))
	}

	if h.ConsecutiveFailures != 3 || h.TotalAttempts != 4 || h.SuccessfulAttempts != 1 {
		t.Fatalf("unexpected counters: %+v", h)
	}
	if h.SuccessRate != 0.25 {
		t.Errorf("expected rate 0.25, got %v", h.SuccessRate)
	}
	if h.LastErrorMessage != "fetch failed: status 503" {
		t.Errorf("unexpected last error %q", h.LastErrorMessage)
	}
	if Classify(h) != LevelCritical {
		t.Errorf("expected critical, got %s", Classify(h))
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		failures int
		want     Level
	}{
		{0, LevelHealthy},
		{1, LevelWarning},
		{2, LevelWarning},
		{3, LevelCritical},
		{10, LevelCritical},
	}
	for _, tt := range tests {
		if got := Classify(models.SourceHealth{ConsecutiveFailures: tt.failures}); got != tt.want {
			t.Errorf("%d failures: expected %s, got %s", tt.failures, tt.want, got)
		}
	}
}

func TestRateBeforeFirstAttempt(t *testing.T) {
	if Rate(0, 0) != 0 {
		t.Error("expected zero rate with no attempts")
	}
}
