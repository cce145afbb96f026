package health

import (
	"time"

	"github.com/dfwthrift/contentpipe/internal/models"
)

// CriticalFailures is the consecutive failure count at which a source is shown as critical
const CriticalFailures = 3

// Level is the display classification of a source's health
type Level string

const (
	LevelHealthy  Level = "healthy"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Apply returns prev updated with the outcome of one fetch attempt.
// A success keeps the last error message for the admin view.
func Apply(prev models.SourceHealth, ok bool, errMsg string, at time.Time) models.SourceHealth {
	next := prev
	next.TotalAttempts++
	if ok {
		next.SuccessfulAttempts++
		next.ConsecutiveFailures = 0
	} else {
		next.ConsecutiveFailures++
		next.LastErrorMessage = errMsg
	}
	next.SuccessRate = Rate(next.SuccessfulAttempts, next.TotalAttempts)
	attempt := at
	next.LastAttemptAt = &attempt
	return next
}

// Rate is successful/total, or 0 before the first attempt
func Rate(successful, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(successful) / float64(total)
}

// Classify maps health counters to a display level. It never pauses a source.
func Classify(h models.SourceHealth) Level {
	switch {
	case h.ConsecutiveFailures >= CriticalFailures:
		return LevelCritical
	case h.ConsecutiveFailures > 0:
		return LevelWarning
	}
	return LevelHealthy
}
