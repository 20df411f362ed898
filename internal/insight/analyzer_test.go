package insight

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/kkhalifeh/twins-assistant-sub000/internal/timeline"
)

func TestAnalyzeFeedingPatternInsufficientData(t *testing.T) {
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	if _, err := AnalyzeFeedingPattern(nil); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData for empty input, got %v", err)
	}
	one := []timeline.Entry{bottleFeeding("a", base, 120)}
	if _, err := AnalyzeFeedingPattern(one); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData for one feeding, got %v", err)
	}
}

func TestAnalyzeFeedingPatternRegularSchedule(t *testing.T) {
	base := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	feedings := make([]timeline.Entry, 0, 4)
	for i := 0; i < 4; i++ {
		feedings = append(feedings, bottleFeeding("a", base.Add(time.Duration(i)*210*time.Minute), 120))
	}

	pattern, err := AnalyzeFeedingPattern(feedings)
	if err != nil {
		t.Fatalf("AnalyzeFeedingPattern: %v", err)
	}
	if math.Abs(pattern.AverageIntervalHours-3.5) > 1e-9 {
		t.Fatalf("average interval = %v, want 3.5", pattern.AverageIntervalHours)
	}
	if pattern.Trend != TrendStable {
		t.Fatalf("trend = %q, want stable", pattern.Trend)
	}
	if pattern.TotalFeedings != 4 {
		t.Fatalf("total feedings = %d, want 4", pattern.TotalFeedings)
	}
	if pattern.AverageAmountML != 120 {
		t.Fatalf("average amount = %d, want 120", pattern.AverageAmountML)
	}
	last := feedings[3].OccursAt
	if !pattern.LastFeedingAt.Equal(last) {
		t.Fatalf("last feeding = %s", pattern.LastFeedingAt.Format(time.RFC3339))
	}
	wantNext := last.Add(210 * time.Minute)
	if !pattern.NextFeedingEstimate.Equal(wantNext) {
		t.Fatalf("next estimate = %s, want %s", pattern.NextFeedingEstimate.Format(time.RFC3339), wantNext.Format(time.RFC3339))
	}
}

func TestAnalyzeFeedingPatternTrendIncreasing(t *testing.T) {
	// Seven feedings, gaps 2,2,2,3,3,3 hours. The last five gaps average
	// higher than the overall mean, so intervals are lengthening.
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	offsets := []int{0, 2, 4, 6, 9, 12, 15}
	feedings := make([]timeline.Entry, 0, len(offsets))
	for _, h := range offsets {
		feedings = append(feedings, bottleFeeding("a", base.Add(time.Duration(h)*time.Hour), 100))
	}

	pattern, err := AnalyzeFeedingPattern(feedings)
	if err != nil {
		t.Fatalf("AnalyzeFeedingPattern: %v", err)
	}
	if pattern.Trend != TrendIncreasing {
		t.Fatalf("trend = %q, want increasing", pattern.Trend)
	}
	if pattern.RecentIntervalHours <= pattern.AverageIntervalHours {
		t.Fatalf("recent %v should exceed average %v", pattern.RecentIntervalHours, pattern.AverageIntervalHours)
	}
}

func TestEstimatedAverageAmountML(t *testing.T) {
	base := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)

	// 120ml bottle, 20min breast feed estimated at 120ml, and one breast feed
	// with no duration that must not drag the average down.
	noDuration := timeline.Entry{
		ChildID:  "a",
		Type:     timeline.EntryFeeding,
		OccursAt: base.Add(6 * time.Hour),
		Feeding:  &timeline.FeedingDetail{Kind: timeline.FeedingBreast},
	}
	feedings := []timeline.Entry{
		bottleFeeding("a", base, 120),
		breastFeeding("a", base.Add(3*time.Hour), 20),
		noDuration,
	}

	if got := estimatedAverageAmountML(feedings); got != 120 {
		t.Fatalf("estimated average = %d, want 120", got)
	}
	if got := estimatedAverageAmountML([]timeline.Entry{noDuration}); got != 0 {
		t.Fatalf("estimated average with no usable samples = %d, want 0", got)
	}
}

func TestAverageRealisticIntervalHoursSkipsOvernightGaps(t *testing.T) {
	base := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	feedings := []timeline.Entry{
		bottleFeeding("a", base, 100),
		bottleFeeding("a", base.Add(210*time.Minute), 100),
		bottleFeeding("a", base.Add(420*time.Minute), 100),
		// 13h logging gap, excluded from the average.
		bottleFeeding("a", base.Add(420*time.Minute+13*time.Hour), 100),
	}
	if got := AverageRealisticIntervalHours(feedings); got != 3.5 {
		t.Fatalf("realistic interval = %v, want 3.5", got)
	}
	if got := AverageRealisticIntervalHours(feedings[:1]); got != 0 {
		t.Fatalf("single feeding should yield 0, got %v", got)
	}
}

func TestAnalyzeSleepPatternNoData(t *testing.T) {
	pattern := AnalyzeSleepPattern(nil, 7, time.UTC)
	if pattern.Quality != QualityNoData {
		t.Fatalf("quality = %q, want %q", pattern.Quality, QualityNoData)
	}
	if pattern.TypicalWakeTime() != "variable" {
		t.Fatalf("wake time = %q, want variable", pattern.TypicalWakeTime())
	}

	// An open session alone is not analyzable.
	open := []timeline.Entry{openSleep("a", time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC))}
	pattern = AnalyzeSleepPattern(open, 7, time.UTC)
	if pattern.CompletedSleepSessions != 0 || pattern.Quality != QualityNoData {
		t.Fatalf("open session must not count: %+v", pattern)
	}
}

func TestAnalyzeSleepPatternQualityBuckets(t *testing.T) {
	base := time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)

	allDeep := []timeline.Entry{
		completedSleep("a", base, 600, timeline.SleepNight, timeline.QualityDeep),
		completedSleep("a", base.AddDate(0, 0, 1), 600, timeline.SleepNight, timeline.QualityDeep),
	}
	pattern := AnalyzeSleepPattern(allDeep, 2, time.UTC)
	if pattern.Quality != QualityExcellent {
		t.Fatalf("all-deep quality = %q, want excellent", pattern.Quality)
	}
	if pattern.QualityScore != 3 {
		t.Fatalf("quality score = %v, want 3", pattern.QualityScore)
	}

	mixed := []timeline.Entry{
		completedSleep("a", base, 600, timeline.SleepNight, timeline.QualityDeep),
		completedSleep("a", base.AddDate(0, 0, 1), 600, timeline.SleepNight, timeline.QualityInterrupted),
	}
	pattern = AnalyzeSleepPattern(mixed, 2, time.UTC)
	if pattern.Quality != QualityGood {
		t.Fatalf("mixed quality = %q, want good", pattern.Quality)
	}

	rough := []timeline.Entry{
		completedSleep("a", base, 600, timeline.SleepNight, timeline.QualityRestless),
		completedSleep("a", base.AddDate(0, 0, 1), 600, timeline.SleepNight, timeline.QualityInterrupted),
	}
	pattern = AnalyzeSleepPattern(rough, 2, time.UTC)
	if pattern.Quality != QualityNeedsAttention {
		t.Fatalf("rough quality = %q, want needs attention", pattern.Quality)
	}

	// Unspecified quality scores neutral (2.0), landing in the good bucket.
	unknown := []timeline.Entry{completedSleep("a", base, 600, timeline.SleepNight, "")}
	pattern = AnalyzeSleepPattern(unknown, 1, time.UTC)
	if pattern.Quality != QualityGood || pattern.QualityScore != 2 {
		t.Fatalf("unspecified quality = %q score %v, want good 2", pattern.Quality, pattern.QualityScore)
	}
}

func TestAnalyzeSleepPatternAggregates(t *testing.T) {
	base := time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)
	sleeps := []timeline.Entry{
		completedSleep("a", base, 600, timeline.SleepNight, timeline.QualityDeep),
		completedSleep("a", base.Add(18*time.Hour), 60, timeline.SleepNap, timeline.QualityDeep),
		completedSleep("a", base.Add(22*time.Hour), 90, timeline.SleepNap, timeline.QualityDeep),
	}
	pattern := AnalyzeSleepPattern(sleeps, 2, time.UTC)

	if pattern.TotalNaps != 2 || pattern.TotalNightSleeps != 1 {
		t.Fatalf("naps=%d nights=%d, want 2/1", pattern.TotalNaps, pattern.TotalNightSleeps)
	}
	if pattern.AverageNapMinutes != 75 {
		t.Fatalf("average nap = %v, want 75", pattern.AverageNapMinutes)
	}
	if pattern.AverageNightMinutes != 600 {
		t.Fatalf("average night = %v, want 600", pattern.AverageNightMinutes)
	}
	// 750 minutes over 2 days = 6.25 hours/day, rounded to 6.3.
	if pattern.TotalSleepHoursPerDay != 6.3 {
		t.Fatalf("hours per day = %v, want 6.3", pattern.TotalSleepHoursPerDay)
	}
}

func TestTypicalWakeHourUsesViewZone(t *testing.T) {
	// Night sleep ends 2024-06-02 06:00 UTC, which is 15:00 in Tokyo.
	base := time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)
	sleeps := []timeline.Entry{completedSleep("a", base, 600, timeline.SleepNight, timeline.QualityDeep)}

	utcPattern := AnalyzeSleepPattern(sleeps, 1, time.UTC)
	if utcPattern.TypicalWakeHour == nil || *utcPattern.TypicalWakeHour != 6 {
		t.Fatalf("UTC wake hour = %v, want 6", utcPattern.TypicalWakeHour)
	}
	if utcPattern.TypicalWakeTime() != "06:00" {
		t.Fatalf("wake time = %q, want 06:00", utcPattern.TypicalWakeTime())
	}

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load Asia/Tokyo: %v", err)
	}
	tokyoPattern := AnalyzeSleepPattern(sleeps, 1, tokyo)
	if tokyoPattern.TypicalWakeHour == nil || *tokyoPattern.TypicalWakeHour != 15 {
		t.Fatalf("Tokyo wake hour = %v, want 15", tokyoPattern.TypicalWakeHour)
	}
}

func TestTypicalWakeHourModalTieResolvesToLatestSeen(t *testing.T) {
	base := time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)
	sleeps := []timeline.Entry{
		completedSleep("a", base, 600, timeline.SleepNight, timeline.QualityDeep),                    // wakes 06:00
		completedSleep("a", base.AddDate(0, 0, 1).Add(time.Hour), 600, timeline.SleepNight, timeline.QualityDeep), // wakes 07:00
	}
	pattern := AnalyzeSleepPattern(sleeps, 2, time.UTC)
	if pattern.TypicalWakeHour == nil || *pattern.TypicalWakeHour != 7 {
		t.Fatalf("tied wake hour = %v, want 7 (latest seen)", pattern.TypicalWakeHour)
	}
}

func TestTotalSleepHours(t *testing.T) {
	base := time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)
	sleeps := []timeline.Entry{
		completedSleep("a", base, 90, timeline.SleepNap, timeline.QualityDeep),
		completedSleep("a", base.Add(3*time.Hour), 30, timeline.SleepNap, timeline.QualityDeep),
		openSleep("a", base.Add(6*time.Hour)),
	}
	if got := TotalSleepHours(sleeps); got != 2 {
		t.Fatalf("total sleep hours = %v, want 2", got)
	}
}
