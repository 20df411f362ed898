package insight

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kkhalifeh/twins-assistant-sub000/internal/store"
	"github.com/kkhalifeh/twins-assistant-sub000/internal/timeline"
)

// Service is the aggregation and pattern-analysis engine. It holds no mutable
// state between calls: every query recomputes from the store, so repeated
// identical calls are idempotent.
type Service struct {
	store store.Store
	now   func() time.Time
}

type Option func(*Service)

// WithClock overrides the wall clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(st store.Store, opts ...Option) *Service {
	s := &Service{store: st, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type Stats struct {
	TotalFeedings           int     `json:"total_feedings"`
	TotalSleepSessions      int     `json:"total_sleep_sessions"`
	TotalDiaperChanges      int     `json:"total_diaper_changes"`
	TotalHealthChecks       int     `json:"total_health_checks"`
	ActiveSleepSessions     int     `json:"active_sleep_sessions"`
	AvgFeedingIntervalHours float64 `json:"avg_feeding_interval_hours"`
	TotalSleepHours         float64 `json:"total_sleep_hours"`
}

type AggregationResult struct {
	Window    timeline.Window
	StartUTC  time.Time
	EndUTC    time.Time
	Snapshots []ChildSnapshot
	Stats     Stats
	Insights  []Insight
}

// Aggregation runs one fetch+filter pipeline per child concurrently, joins
// the results, and composes stats and insights. Cancellation aborts in-flight
// store reads; partial per-child results are abandoned without side effects.
func (s *Service) Aggregation(ctx context.Context, w timeline.Window, children []store.Child) (AggregationResult, error) {
	startUTC, endUTC, err := w.UTCRange()
	if err != nil {
		return AggregationResult{}, err
	}

	snapshots := make([]ChildSnapshot, len(children))
	errs := make([]error, len(children))
	var wg sync.WaitGroup
	for i, child := range children {
		wg.Add(1)
		go func(idx int, child store.Child) {
			defer wg.Done()
			snapshots[idx], errs[idx] = s.childSnapshot(ctx, child, w)
		}(i, child)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return AggregationResult{}, err
		}
	}

	result := AggregationResult{
		Window:    w,
		StartUTC:  startUTC,
		EndUTC:    endUTC,
		Snapshots: snapshots,
	}
	allFeedings := make([]timeline.Entry, 0)
	allSleeps := make([]timeline.Entry, 0)
	for _, snap := range snapshots {
		result.Stats.TotalFeedings += len(snap.Feedings)
		result.Stats.TotalSleepSessions += len(snap.Sleeps)
		result.Stats.TotalDiaperChanges += len(snap.Diapers)
		result.Stats.TotalHealthChecks += len(snap.Health)
		result.Stats.ActiveSleepSessions += len(snap.OpenSleeps)
		allFeedings = append(allFeedings, snap.Feedings...)
		allSleeps = append(allSleeps, snap.Sleeps...)
	}
	result.Stats.AvgFeedingIntervalHours = AverageRealisticIntervalHours(sortedByOccurrence(allFeedings))
	result.Stats.TotalSleepHours = TotalSleepHours(allSleeps)
	result.Insights = ComposeInsights(snapshots, w, s.now().UTC())
	return result, nil
}

func (s *Service) childSnapshot(ctx context.Context, child store.Child, w timeline.Window) (ChildSnapshot, error) {
	snap := ChildSnapshot{Child: child}
	ids := []string{child.ID}

	var err error
	if snap.Feedings, err = FetchCandidates(ctx, s.store, timeline.EntryFeeding, ids, w); err != nil {
		return ChildSnapshot{}, fmt.Errorf("fetch feedings for child %s: %w", child.ID, err)
	}
	if snap.Sleeps, err = FetchCandidates(ctx, s.store, timeline.EntrySleep, ids, w); err != nil {
		return ChildSnapshot{}, fmt.Errorf("fetch sleeps for child %s: %w", child.ID, err)
	}
	if snap.Diapers, err = FetchCandidates(ctx, s.store, timeline.EntryDiaper, ids, w); err != nil {
		return ChildSnapshot{}, fmt.Errorf("fetch diapers for child %s: %w", child.ID, err)
	}
	if snap.Health, err = FetchCandidates(ctx, s.store, timeline.EntryHealth, ids, w); err != nil {
		return ChildSnapshot{}, fmt.Errorf("fetch health checks for child %s: %w", child.ID, err)
	}
	if snap.OpenSleeps, err = s.store.FindOpenSleepSessions(ctx, child.ID); err != nil {
		return ChildSnapshot{}, fmt.Errorf("fetch open sleep sessions for child %s: %w", child.ID, err)
	}
	if err := timeline.ValidateOpenSessions(child.ID, snap.OpenSleeps); err != nil {
		return ChildSnapshot{}, err
	}
	return snap, nil
}

type PatternResult struct {
	ChildID string
	Feeding *FeedingPattern
	Sleep   SleepPattern
}

// PatternAnalysis analyzes one child's rolling lookback window ending now.
// Wake hours are interpreted in zone. Returns ErrInsufficientData when
// neither stream has anything to analyze.
func (s *Service) PatternAnalysis(ctx context.Context, childID string, lookbackDays int, zone string) (PatternResult, error) {
	loc, err := timeline.LoadZone(zone)
	if err != nil {
		return PatternResult{}, err
	}
	if lookbackDays < 1 {
		lookbackDays = 7
	}
	now := s.now().UTC()
	since := now.AddDate(0, 0, -lookbackDays)

	feedings, err := s.store.FindEntries(ctx, timeline.EntryFeeding, []string{childID}, since, now)
	if err != nil {
		return PatternResult{}, err
	}
	sleeps, err := s.store.FindEntries(ctx, timeline.EntrySleep, []string{childID}, since, now)
	if err != nil {
		return PatternResult{}, err
	}

	result := PatternResult{ChildID: childID}
	feedingPattern, err := AnalyzeFeedingPattern(feedings)
	if err == nil {
		result.Feeding = &feedingPattern
	}
	result.Sleep = AnalyzeSleepPattern(sleeps, lookbackDays, loc)

	if result.Feeding == nil && result.Sleep.CompletedSleepSessions == 0 {
		return PatternResult{}, ErrInsufficientData
	}
	return result, nil
}

// Correlations scans one child's lookback streams for repeatable temporal
// relationships. Default lookback is 14 days.
func (s *Service) Correlations(ctx context.Context, childID string, lookbackDays int) ([]Finding, error) {
	if lookbackDays < 1 {
		lookbackDays = 14
	}
	now := s.now().UTC()
	since := now.AddDate(0, 0, -lookbackDays)
	ids := []string{childID}

	feedings, err := s.store.FindEntries(ctx, timeline.EntryFeeding, ids, since, now)
	if err != nil {
		return nil, err
	}
	sleeps, err := s.store.FindEntries(ctx, timeline.EntrySleep, ids, since, now)
	if err != nil {
		return nil, err
	}
	diapers, err := s.store.FindEntries(ctx, timeline.EntryDiaper, ids, since, now)
	if err != nil {
		return nil, err
	}
	return DetectCorrelations(feedings, sleeps, diapers), nil
}

type ComparisonResult struct {
	FeedingSync int
	SleepSync   int
	PatternA    PatternResult
	PatternB    PatternResult
}

// Comparison measures how closely two children's timelines align. The two
// sync percentages are kept separate; they are not combined into one score.
// The metric reads A against B, so swapping the children changes the
// denominator.
func (s *Service) Comparison(ctx context.Context, childA, childB string, lookbackDays int, zone string) (ComparisonResult, error) {
	if _, err := timeline.LoadZone(zone); err != nil {
		return ComparisonResult{}, err
	}
	if lookbackDays < 1 {
		lookbackDays = 7
	}
	now := s.now().UTC()
	since := now.AddDate(0, 0, -lookbackDays)

	type streams struct {
		feedings, sleeps []timeline.Entry
		err              error
	}
	fetch := func(childID string) streams {
		var st streams
		st.feedings, st.err = s.store.FindEntries(ctx, timeline.EntryFeeding, []string{childID}, since, now)
		if st.err != nil {
			return st
		}
		st.sleeps, st.err = s.store.FindEntries(ctx, timeline.EntrySleep, []string{childID}, since, now)
		return st
	}

	// The sync computation is a join point: both children's sets must be
	// available before it runs. The fetches themselves are independent.
	var wg sync.WaitGroup
	var a, b streams
	wg.Add(2)
	go func() { defer wg.Done(); a = fetch(childA) }()
	go func() { defer wg.Done(); b = fetch(childB) }()
	wg.Wait()
	if a.err != nil {
		return ComparisonResult{}, a.err
	}
	if b.err != nil {
		return ComparisonResult{}, b.err
	}

	result := ComparisonResult{
		FeedingSync: Synchronization(a.feedings, b.feedings, DefaultSyncProximity),
		SleepSync:   Synchronization(a.sleeps, b.sleeps, DefaultSyncProximity),
		PatternA:    PatternResult{ChildID: childA, Sleep: AnalyzeSleepPattern(a.sleeps, lookbackDays, time.UTC)},
		PatternB:    PatternResult{ChildID: childB, Sleep: AnalyzeSleepPattern(b.sleeps, lookbackDays, time.UTC)},
	}
	if pattern, err := AnalyzeFeedingPattern(a.feedings); err == nil {
		result.PatternA.Feeding = &pattern
	}
	if pattern, err := AnalyzeFeedingPattern(b.feedings); err == nil {
		result.PatternB.Feeding = &pattern
	}
	return result, nil
}

// InsightsReport builds the account-wide narrative insight list: per-child
// feeding and sleep analyses, detected correlations, and a twin comparison
// when exactly two children exist.
func (s *Service) InsightsReport(ctx context.Context, children []store.Child, lookbackDays int, zone string) ([]Insight, error) {
	if _, err := timeline.LoadZone(zone); err != nil {
		return nil, err
	}
	if lookbackDays < 1 {
		lookbackDays = 7
	}
	insights := make([]Insight, 0)

	for _, child := range children {
		pattern, err := s.PatternAnalysis(ctx, child.ID, lookbackDays, zone)
		if err != nil && !errors.Is(err, ErrInsufficientData) {
			return nil, err
		}
		if pattern.Feeding != nil {
			insights = append(insights, Insight{
				Type:      "feeding",
				Priority:  PriorityInfo,
				ChildID:   child.ID,
				ChildName: child.Name,
				Title:     "Feeding Pattern Analysis",
				Description: fmt.Sprintf(
					"%s feeds every %.1f hours on average, consuming about %dml per feeding.",
					child.Name, pattern.Feeding.AverageIntervalHours, pattern.Feeding.AverageAmountML,
				),
				Confidence:     0.85,
				Recommendation: feedingRecommendation(pattern.Feeding.Trend),
			})
		}
		if pattern.Sleep.CompletedSleepSessions > 0 {
			insights = append(insights, Insight{
				Type:      "sleep",
				Priority:  PriorityInfo,
				ChildID:   child.ID,
				ChildName: child.Name,
				Title:     "Sleep Pattern Analysis",
				Description: fmt.Sprintf(
					"%s sleeps %.1f hours per day on average.",
					child.Name, pattern.Sleep.TotalSleepHoursPerDay,
				),
				Confidence:     0.80,
				Recommendation: sleepRecommendation(pattern.Sleep.Quality),
			})
		}

		findings, err := s.Correlations(ctx, child.ID, 2*lookbackDays)
		if err != nil {
			return nil, err
		}
		for _, finding := range findings {
			insights = append(insights, Insight{
				Type:           "correlation",
				Priority:       PriorityInfo,
				ChildID:        child.ID,
				ChildName:      child.Name,
				Title:          "Pattern Discovered",
				Description:    finding.Description,
				Confidence:     finding.Confidence,
				Recommendation: "Use this pattern to optimize daily routine.",
			})
		}
	}

	if len(children) == 2 {
		comparison, err := s.Comparison(ctx, children[0].ID, children[1].ID, lookbackDays, zone)
		if err != nil {
			return nil, err
		}
		recommendation := "Try to align feeding times for easier management."
		if comparison.FeedingSync > 70 {
			recommendation = "Great job keeping both children on similar schedules!"
		}
		insights = append(insights, Insight{
			Type:     "comparison",
			Priority: PriorityInfo,
			Title:    "Twin Synchronization",
			Description: fmt.Sprintf(
				"Feeding synchronization: %d%%, Sleep synchronization: %d%%",
				comparison.FeedingSync, comparison.SleepSync,
			),
			Confidence:     0.90,
			Recommendation: recommendation,
		})
	}

	return insights, nil
}

// Predictions builds next-event estimates for every child.
func (s *Service) Predictions(ctx context.Context, children []store.Child, zone string) ([]Prediction, error) {
	loc, err := timeline.LoadZone(zone)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	since := now.AddDate(0, 0, -7)

	predictions := make([]Prediction, 0)
	for _, child := range children {
		ids := []string{child.ID}
		feedings, err := s.store.FindEntries(ctx, timeline.EntryFeeding, ids, since, now)
		if err != nil {
			return nil, err
		}
		sleeps, err := s.store.FindEntries(ctx, timeline.EntrySleep, ids, since, now)
		if err != nil {
			return nil, err
		}
		diapers, err := s.store.FindEntries(ctx, timeline.EntryDiaper, ids, since, now)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, ComposePredictions(child, feedings, sleeps, diapers, now, loc)...)
	}
	return predictions, nil
}

func feedingRecommendation(trend string) string {
	if trend == TrendIncreasing {
		return "Feeding intervals are getting longer, which is normal as baby grows."
	}
	return "Maintain current feeding schedule."
}

func sleepRecommendation(quality string) string {
	if quality == QualityExcellent {
		return "Sleep patterns are healthy and consistent."
	}
	return "Consider adjusting bedtime routine for better sleep quality."
}

func sortedByOccurrence(entries []timeline.Entry) []timeline.Entry {
	ordered := make([]timeline.Entry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OccursAt.Before(ordered[j].OccursAt)
	})
	return ordered
}
