package insight

import (
	"fmt"
	"math"
	"time"

	"github.com/kkhalifeh/twins-assistant-sub000/internal/timeline"
)

const (
	FindingFeedingSleep  = "feeding_sleep"
	FindingFeedingDiaper = "feeding_diaper"
)

// Finding is one confidence-scored temporal relationship detected in a
// child's streams.
type Finding struct {
	Type        string  `json:"type"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

const (
	feedToSleepWindow   = 60 * time.Minute
	feedToDiaperWindow  = 3 * time.Hour
	minDiaperPairSample = 6
)

// DetectCorrelations scans time-ordered feeding, sleep, and diaper sequences
// for one child. Findings are independent; a call may produce zero, one, or
// both types.
func DetectCorrelations(feedings, sleeps, diapers []timeline.Entry) []Finding {
	findings := make([]Finding, 0, 2)

	// Feeding then deep sleep within the hour is a presence signal: one
	// qualifying pair is enough to surface the hint, so stop at the first.
	for _, sleep := range sleeps {
		before := latestFeedingBefore(feedings, sleep.OccursAt)
		if before == nil {
			continue
		}
		gap := sleep.OccursAt.Sub(before.OccursAt)
		if gap < feedToSleepWindow && sleep.Sleep != nil && sleep.Sleep.Quality == timeline.QualityDeep {
			findings = append(findings, Finding{
				Type:        FindingFeedingSleep,
				Confidence:  0.75,
				Description: "Better sleep quality when fed within 1 hour before sleep",
			})
			break
		}
	}

	latencies := make([]float64, 0, len(feedings))
	for _, feeding := range feedings {
		next := firstDiaperAfter(diapers, feeding.OccursAt, feedToDiaperWindow)
		if next != nil {
			latencies = append(latencies, next.OccursAt.Sub(feeding.OccursAt).Minutes())
		}
	}
	if len(latencies) >= minDiaperPairSample {
		avgLatency := int(math.Round(mean(latencies)))
		findings = append(findings, Finding{
			Type:        FindingFeedingDiaper,
			Confidence:  0.80,
			Description: fmt.Sprintf("Typically needs diaper change %d minutes after feeding", avgLatency),
		})
	}

	return findings
}

func latestFeedingBefore(feedings []timeline.Entry, instant time.Time) *timeline.Entry {
	var latest *timeline.Entry
	for i := range feedings {
		if feedings[i].OccursAt.Before(instant) {
			latest = &feedings[i]
		}
	}
	return latest
}

func firstDiaperAfter(diapers []timeline.Entry, instant time.Time, within time.Duration) *timeline.Entry {
	for i := range diapers {
		if diapers[i].OccursAt.After(instant) && diapers[i].OccursAt.Sub(instant) < within {
			return &diapers[i]
		}
	}
	return nil
}
