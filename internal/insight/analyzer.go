package insight

import (
	"errors"
	"math"
	"time"

	"github.com/kkhalifeh/twins-assistant-sub000/internal/timeline"
)

// ErrInsufficientData is a distinguished result, not a failure: the analyzer
// refuses to fabricate statistics from too few samples and callers must
// branch on it instead of treating it as zero.
var ErrInsufficientData = errors.New("insufficient data")

const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

const (
	QualityExcellent      = "excellent"
	QualityGood           = "good"
	QualityNeedsAttention = "needs attention"
	QualityNoData         = "no data"
)

// breastFlowMLPerMinute estimates volume for breast feedings that recorded a
// duration but no amount: 30 ml per 5 minutes.
const breastFlowMLPerMinute = 30.0 / 5.0

type FeedingPattern struct {
	AverageIntervalHours float64
	RecentIntervalHours  float64
	AverageAmountML      int
	TotalFeedings        int
	Trend                string
	LastFeedingAt        time.Time
	NextFeedingEstimate  time.Time
}

// AnalyzeFeedingPattern computes interval and intake statistics from a
// time-ordered feeding sequence for one child. Fewer than two feedings yields
// ErrInsufficientData.
func AnalyzeFeedingPattern(feedings []timeline.Entry) (FeedingPattern, error) {
	if len(feedings) < 2 {
		return FeedingPattern{}, ErrInsufficientData
	}

	gaps := make([]float64, 0, len(feedings)-1)
	for i := 1; i < len(feedings); i++ {
		gaps = append(gaps, feedings[i].OccursAt.Sub(feedings[i-1].OccursAt).Hours())
	}
	avg := mean(gaps)

	recentStart := len(gaps) - 5
	if recentStart < 0 {
		recentStart = 0
	}
	recent := mean(gaps[recentStart:])

	trend := TrendStable
	if recent > avg {
		trend = TrendIncreasing
	} else if recent < avg {
		trend = TrendDecreasing
	}

	last := feedings[len(feedings)-1]
	return FeedingPattern{
		AverageIntervalHours: avg,
		RecentIntervalHours:  recent,
		AverageAmountML:      estimatedAverageAmountML(feedings),
		TotalFeedings:        len(feedings),
		Trend:                trend,
		LastFeedingAt:        last.OccursAt,
		NextFeedingEstimate:  last.OccursAt.Add(time.Duration(avg * float64(time.Hour))),
	}, nil
}

// estimatedAverageAmountML averages recorded amounts, estimating breast
// feedings from their duration. Entries with neither an amount nor a duration
// are excluded from the denominator rather than counted as zero.
func estimatedAverageAmountML(feedings []timeline.Entry) int {
	total := 0.0
	counted := 0
	for _, entry := range feedings {
		if entry.Feeding == nil {
			continue
		}
		switch {
		case entry.Feeding.AmountML != nil:
			total += *entry.Feeding.AmountML
			counted++
		case entry.Feeding.Kind == timeline.FeedingBreast:
			if minutes, ok := entry.DurationMinutes(); ok && minutes > 0 {
				total += float64(minutes) * breastFlowMLPerMinute
				counted++
			}
		}
	}
	if counted == 0 {
		return 0
	}
	return int(math.Round(total / float64(counted)))
}

type SleepPattern struct {
	TotalSleepHoursPerDay  float64
	AverageNapMinutes      float64
	AverageNightMinutes    float64
	TotalNaps              int
	TotalNightSleeps       int
	TypicalWakeHour        *int
	Quality                string
	QualityScore           float64
	CompletedSleepSessions int
}

// TypicalWakeTime renders the modal wake hour, or "variable" when no
// completed night sleep exists.
func (p SleepPattern) TypicalWakeTime() string {
	if p.TypicalWakeHour == nil {
		return "variable"
	}
	return time.Date(0, 1, 1, *p.TypicalWakeHour, 0, 0, 0, time.UTC).Format("15:00")
}

// AnalyzeSleepPattern scores a child's completed sleep sessions over the
// lookback window. Wake hours are read in loc, the caller's view timezone.
func AnalyzeSleepPattern(sleeps []timeline.Entry, lookbackDays int, loc *time.Location) SleepPattern {
	if lookbackDays < 1 {
		lookbackDays = 1
	}
	if loc == nil {
		loc = time.UTC
	}

	pattern := SleepPattern{Quality: QualityNoData}
	totalMinutes := 0
	napMinutes, nightMinutes := 0, 0
	wakeCounts := map[int]int{}
	var bestHour *int
	bestCount := 0
	score := 0.0

	for _, entry := range sleeps {
		if entry.Sleep == nil {
			continue
		}
		minutes, complete := entry.DurationMinutes()
		if !complete {
			continue
		}
		pattern.CompletedSleepSessions++
		totalMinutes += minutes
		score += qualityWeight(entry.Sleep.Quality)

		switch entry.Sleep.Kind {
		case timeline.SleepNight:
			pattern.TotalNightSleeps++
			nightMinutes += minutes
			hour := entry.Sleep.EndsAt.In(loc).Hour()
			wakeCounts[hour]++
			// Ties resolve to the most recently seen hour, which keeps the
			// result deterministic for a time-ordered input.
			if wakeCounts[hour] >= bestCount {
				bestCount = wakeCounts[hour]
				h := hour
				bestHour = &h
			}
		case timeline.SleepNap:
			pattern.TotalNaps++
			napMinutes += minutes
		}
	}

	if pattern.CompletedSleepSessions == 0 {
		return pattern
	}

	pattern.TotalSleepHoursPerDay = round1(float64(totalMinutes) / 60.0 / float64(lookbackDays))
	if pattern.TotalNaps > 0 {
		pattern.AverageNapMinutes = float64(napMinutes) / float64(pattern.TotalNaps)
	}
	if pattern.TotalNightSleeps > 0 {
		pattern.AverageNightMinutes = float64(nightMinutes) / float64(pattern.TotalNightSleeps)
	}
	pattern.TypicalWakeHour = bestHour
	pattern.QualityScore = score / float64(pattern.CompletedSleepSessions)
	switch {
	case pattern.QualityScore >= 2.5:
		pattern.Quality = QualityExcellent
	case pattern.QualityScore >= 1.5:
		pattern.Quality = QualityGood
	default:
		pattern.Quality = QualityNeedsAttention
	}
	return pattern
}

func qualityWeight(quality timeline.SleepQuality) float64 {
	switch quality {
	case timeline.QualityDeep:
		return 3
	case timeline.QualityRestless:
		return 1
	case timeline.QualityInterrupted:
		return 0
	default:
		// Unspecified quality counts as neutral.
		return 2
	}
}

// AverageRealisticIntervalHours is the dashboard-style feeding interval: only
// gaps above zero and under twelve hours count, so an overnight logging gap
// does not distort the average. Returns 0 when no realistic gap exists.
func AverageRealisticIntervalHours(feedings []timeline.Entry) float64 {
	if len(feedings) < 2 {
		return 0
	}
	gaps := make([]float64, 0, len(feedings)-1)
	for i := 1; i < len(feedings); i++ {
		gap := feedings[i].OccursAt.Sub(feedings[i-1].OccursAt).Hours()
		if gap > 0 && gap < 12 {
			gaps = append(gaps, gap)
		}
	}
	if len(gaps) == 0 {
		return 0
	}
	return round1(mean(gaps))
}

// TotalSleepHours sums completed sleep durations, in hours rounded to one
// decimal.
func TotalSleepHours(sleeps []timeline.Entry) float64 {
	totalMinutes := 0
	for _, entry := range sleeps {
		if minutes, ok := entry.DurationMinutes(); ok && minutes > 0 {
			totalMinutes += minutes
		}
	}
	return round1(float64(totalMinutes) / 60.0)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}
