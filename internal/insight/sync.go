package insight

import (
	"math"
	"time"

	"github.com/kkhalifeh/twins-assistant-sub000/internal/timeline"
)

// DefaultSyncProximity is the window within which two events count as
// synchronized.
const DefaultSyncProximity = 30 * time.Minute

// Synchronization measures how closely child A's events align with child B's:
// the percentage of A's events that have some B event starting within the
// proximity, rounded to the nearest integer. The denominator is A's count, so
// the metric is intentionally asymmetric; an empty A yields 0%, not an error.
func Synchronization(a, b []timeline.Entry, proximity time.Duration) int {
	if proximity <= 0 {
		proximity = DefaultSyncProximity
	}
	matched := 0
	for _, eventA := range a {
		for _, eventB := range b {
			diff := eventA.OccursAt.Sub(eventB.OccursAt)
			if diff < 0 {
				diff = -diff
			}
			if diff < proximity {
				matched++
				break
			}
		}
	}
	denominator := len(a)
	if denominator < 1 {
		denominator = 1
	}
	return int(math.Round(float64(matched) / float64(denominator) * 100))
}
