package insight

import (
	"testing"
	"time"

	"github.com/kkhalifeh/twins-assistant-sub000/internal/store"
	"github.com/kkhalifeh/twins-assistant-sub000/internal/timeline"
)

func dayWindow(t *testing.T, date, zone string) timeline.Window {
	t.Helper()
	w, err := timeline.NewWindow(date, zone, timeline.GranularityDay)
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	return w
}

func insightOfType(insights []Insight, insightType string) *Insight {
	for i := range insights {
		if insights[i].Type == insightType {
			return &insights[i]
		}
	}
	return nil
}

func TestComposeInsightsFeedingUrgency(t *testing.T) {
	now := time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)
	w := dayWindow(t, "2024-06-01", "UTC")
	child := store.Child{ID: "c1", Name: "Mia"}

	overdue := []ChildSnapshot{{
		Child:    child,
		Feedings: []timeline.Entry{bottleFeeding("c1", now.Add(-6*time.Hour), 120)},
	}}
	insights := ComposeInsights(overdue, w, now)
	feeding := insightOfType(insights, "feeding_overdue")
	if feeding == nil {
		t.Fatalf("expected feeding_overdue, got %+v", insights)
	}
	if feeding.Priority != PriorityHigh {
		t.Fatalf("priority = %q, want high", feeding.Priority)
	}

	dueSoon := []ChildSnapshot{{
		Child:    child,
		Feedings: []timeline.Entry{bottleFeeding("c1", now.Add(-4*time.Hour), 120)},
	}}
	insights = ComposeInsights(dueSoon, w, now)
	if insightOfType(insights, "feeding_due") == nil {
		t.Fatalf("expected feeding_due, got %+v", insights)
	}

	recent := []ChildSnapshot{{
		Child:    child,
		Feedings: []timeline.Entry{bottleFeeding("c1", now.Add(-time.Hour), 120)},
	}}
	if insights := ComposeInsights(recent, w, now); len(insights) != 0 {
		t.Fatalf("recent feeding should produce no insight, got %+v", insights)
	}
}

func TestComposeInsightsSuppressesUrgencyOnPastWindows(t *testing.T) {
	// Viewing yesterday: the last feeding in that window is by definition many
	// hours old, but a past view must not raise urgency.
	now := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
	w := dayWindow(t, "2024-06-01", "UTC")
	snapshots := []ChildSnapshot{{
		Child:    store.Child{ID: "c1", Name: "Mia"},
		Feedings: []timeline.Entry{bottleFeeding("c1", time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), 120)},
		Diapers:  []timeline.Entry{diaperChange("c1", time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))},
	}}

	if insights := ComposeInsights(snapshots, w, now); len(insights) != 0 {
		t.Fatalf("past window must not produce urgency insights, got %+v", insights)
	}
}

func TestComposeInsightsNapDue(t *testing.T) {
	now := time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)
	w := dayWindow(t, "2024-06-01", "UTC")
	child := store.Child{ID: "c1", Name: "Mia"}

	awake := []ChildSnapshot{{
		Child:  child,
		Sleeps: []timeline.Entry{completedSleep("c1", now.Add(-5*time.Hour), 60, timeline.SleepNap, timeline.QualityDeep)},
	}}
	if insightOfType(ComposeInsights(awake, w, now), "nap_due") == nil {
		t.Fatalf("expected nap_due after 4h awake")
	}

	// A child currently sleeping is never nap-due.
	sleeping := []ChildSnapshot{{
		Child:      child,
		Sleeps:     awake[0].Sleeps,
		OpenSleeps: []timeline.Entry{openSleep("c1", now.Add(-10 * time.Minute))},
	}}
	if insightOfType(ComposeInsights(sleeping, w, now), "nap_due") != nil {
		t.Fatalf("open sleep session must suppress nap_due")
	}
}

func TestComposeInsightsSynchronization(t *testing.T) {
	now := time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)
	w := dayWindow(t, "2024-06-01", "UTC")
	feedA := bottleFeeding("c1", now.Add(-time.Hour), 120)
	feedB := bottleFeeding("c2", now.Add(-50*time.Minute), 120)
	snapshots := []ChildSnapshot{
		{Child: store.Child{ID: "c1", Name: "Mia"}, Feedings: []timeline.Entry{feedA}},
		{Child: store.Child{ID: "c2", Name: "Leo"}, Feedings: []timeline.Entry{feedB}},
	}

	insights := ComposeInsights(snapshots, w, now)
	sync := insightOfType(insights, "synchronization")
	if sync == nil {
		t.Fatalf("expected synchronization insight for two children, got %+v", insights)
	}
	if sync.Priority != PriorityInfo {
		t.Fatalf("sync priority = %q, want info", sync.Priority)
	}
	if sync.Title != "Children are well synchronized" {
		t.Fatalf("aligned children should get the positive framing, got %q", sync.Title)
	}

	// Single child: no synchronization insight at all.
	if insightOfType(ComposeInsights(snapshots[:1], w, now), "synchronization") != nil {
		t.Fatalf("single child must not get a synchronization insight")
	}
}

func TestComposeInsightsSortsAndTruncates(t *testing.T) {
	now := time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)
	w := dayWindow(t, "2024-06-01", "UTC")

	// Each child contributes overdue feeding (high), stale diaper (low), and
	// nap due (low); plus one sync insight (info). Seven total, capped at five.
	snapshot := func(id, name string) ChildSnapshot {
		return ChildSnapshot{
			Child:    store.Child{ID: id, Name: name},
			Feedings: []timeline.Entry{bottleFeeding(id, now.Add(-6*time.Hour), 120)},
			Diapers:  []timeline.Entry{diaperChange(id, now.Add(-4*time.Hour))},
			Sleeps:   []timeline.Entry{completedSleep(id, now.Add(-5*time.Hour), 60, timeline.SleepNap, timeline.QualityDeep)},
		}
	}
	insights := ComposeInsights([]ChildSnapshot{snapshot("c1", "Mia"), snapshot("c2", "Leo")}, w, now)

	if len(insights) != 5 {
		t.Fatalf("got %d insights, want 5", len(insights))
	}
	for i := 1; i < len(insights); i++ {
		if rankOf(insights[i-1].Priority) > rankOf(insights[i].Priority) {
			t.Fatalf("insights not sorted by priority: %+v", insights)
		}
	}
	if insights[0].Priority != PriorityHigh || insights[1].Priority != PriorityHigh {
		t.Fatalf("high-priority insights must survive truncation: %+v", insights)
	}
	if insightOfType(insights, "synchronization") != nil {
		t.Fatalf("info insight should be truncated away when higher priorities fill the cap")
	}
}

func TestComposePredictions(t *testing.T) {
	now := time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)
	child := store.Child{ID: "c1", Name: "Mia"}

	feedings := []timeline.Entry{
		bottleFeeding("c1", now.Add(-7*time.Hour), 120),
		bottleFeeding("c1", now.Add(-4*time.Hour), 120),
		bottleFeeding("c1", now.Add(-time.Hour), 120),
	}
	sleeps := []timeline.Entry{
		completedSleep("c1", now.Add(-4*time.Hour), 60, timeline.SleepNap, timeline.QualityDeep),
	}
	diapers := []timeline.Entry{diaperChange("c1", now.Add(-4*time.Hour))}

	predictions := ComposePredictions(child, feedings, sleeps, diapers, now, time.UTC)
	byType := map[string]Prediction{}
	for _, p := range predictions {
		byType[p.Type] = p
	}

	feeding, ok := byType["feeding"]
	if !ok {
		t.Fatalf("expected feeding prediction, got %+v", predictions)
	}
	// Last fed 17:00 UTC with a 3h average: next estimate 20:00.
	if feeding.Time != "8:00 PM" {
		t.Fatalf("feeding time = %q, want 8:00 PM", feeding.Time)
	}
	if feeding.Confidence != "High" {
		t.Fatalf("feeding confidence = %q, want High", feeding.Confidence)
	}

	sleep, ok := byType["sleep"]
	if !ok {
		t.Fatalf("expected sleep prediction after 3h awake, got %+v", predictions)
	}
	if sleep.Confidence != "Medium" {
		t.Fatalf("sleep confidence = %q, want Medium", sleep.Confidence)
	}

	diaper, ok := byType["diaper"]
	if !ok {
		t.Fatalf("expected diaper prediction, got %+v", predictions)
	}
	if diaper.Confidence != "High" {
		t.Fatalf("diaper confidence after 4h = %q, want High", diaper.Confidence)
	}
}

func TestComposePredictionsRendersTimeInViewZone(t *testing.T) {
	now := time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)
	child := store.Child{ID: "c1", Name: "Mia"}
	feedings := []timeline.Entry{
		bottleFeeding("c1", now.Add(-4*time.Hour), 120),
		bottleFeeding("c1", now.Add(-time.Hour), 120),
	}

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load Asia/Tokyo: %v", err)
	}
	predictions := ComposePredictions(child, feedings, nil, nil, now, tokyo)
	if len(predictions) == 0 {
		t.Fatalf("expected a feeding prediction")
	}
	// Next estimate 20:00 UTC is 05:00 next morning in Tokyo.
	if predictions[0].Time != "5:00 AM" {
		t.Fatalf("time = %q, want 5:00 AM", predictions[0].Time)
	}
}

func TestComposePredictionsEmptyStreams(t *testing.T) {
	now := time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)
	child := store.Child{ID: "c1", Name: "Mia"}
	if predictions := ComposePredictions(child, nil, nil, nil, now, time.UTC); len(predictions) != 0 {
		t.Fatalf("expected no predictions, got %+v", predictions)
	}
}
