package insight

import (
	"fmt"
	"sort"
	"time"

	"github.com/kkhalifeh/twins-assistant-sub000/internal/store"
	"github.com/kkhalifeh/twins-assistant-sub000/internal/timeline"
)

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
	PriorityInfo   = "info"
)

var priorityRank = map[string]int{
	PriorityHigh:   0,
	PriorityMedium: 1,
	PriorityLow:    2,
	PriorityInfo:   3,
}

// maxInsights caps the composed list. Truncation happens after the priority
// sort so high-priority items are never dropped in favor of lower ones.
const maxInsights = 5

// Insight is an ephemeral, per-request value; it is never persisted.
type Insight struct {
	Type           string  `json:"type"`
	Priority       string  `json:"priority"`
	ChildID        string  `json:"child_id,omitempty"`
	ChildName      string  `json:"child_name,omitempty"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Confidence     float64 `json:"confidence"`
	Recommendation string  `json:"recommendation,omitempty"`
}

type Prediction struct {
	Type       string `json:"type"`
	ChildID    string `json:"child_id"`
	ChildName  string `json:"child_name"`
	Prediction string `json:"prediction"`
	Time       string `json:"time"`
	Confidence string `json:"confidence"`
}

// ChildSnapshot carries one child's window-filtered, time-ordered streams.
type ChildSnapshot struct {
	Child      store.Child
	Feedings   []timeline.Entry
	Sleeps     []timeline.Entry
	Diapers    []timeline.Entry
	Health     []timeline.Entry
	OpenSleeps []timeline.Entry
}

func (s ChildSnapshot) lastOf(entries []timeline.Entry) *timeline.Entry {
	if len(entries) == 0 {
		return nil
	}
	return &entries[len(entries)-1]
}

// ComposeInsights turns per-child snapshots into a ranked list. Due/overdue
// hints only apply when the window covers the current moment; stale views get
// no false urgency.
func ComposeInsights(snapshots []ChildSnapshot, w timeline.Window, now time.Time) []Insight {
	insights := make([]Insight, 0)
	currentPeriod := w.CoversInstant(now)

	for _, snap := range snapshots {
		name := snap.Child.Name

		if last := snap.lastOf(snap.Feedings); last != nil && currentPeriod {
			hoursSince := now.Sub(last.OccursAt).Hours()
			switch {
			case hoursSince >= 5:
				insights = append(insights, Insight{
					Type:        "feeding_overdue",
					Priority:    PriorityHigh,
					ChildID:     snap.Child.ID,
					ChildName:   name,
					Title:       fmt.Sprintf("%s is overdue for feeding", name),
					Description: fmt.Sprintf("Last fed %d hours ago", int(hoursSince)),
					Confidence:  0.9,
				})
			case hoursSince >= 3:
				insights = append(insights, Insight{
					Type:        "feeding_due",
					Priority:    PriorityMedium,
					ChildID:     snap.Child.ID,
					ChildName:   name,
					Title:       fmt.Sprintf("%s might be due for feeding soon", name),
					Description: fmt.Sprintf("Last fed %d hours ago", int(hoursSince)),
					Confidence:  0.75,
				})
			}
		}

		if last := snap.lastOf(snap.Diapers); last != nil && currentPeriod {
			hoursSince := now.Sub(last.OccursAt).Hours()
			if hoursSince >= 3 {
				insights = append(insights, Insight{
					Type:        "diaper_check",
					Priority:    PriorityLow,
					ChildID:     snap.Child.ID,
					ChildName:   name,
					Title:       fmt.Sprintf("Check %s's diaper", name),
					Description: fmt.Sprintf("Last changed %d hours ago", int(hoursSince)),
					Confidence:  0.7,
				})
			}
		}

		if len(snap.OpenSleeps) == 0 {
			if wake := lastWakeTime(snap.Sleeps); wake != nil {
				hoursAwake := now.Sub(*wake).Hours()
				if hoursAwake >= 3 && hoursAwake < 5 {
					insights = append(insights, Insight{
						Type:        "nap_due",
						Priority:    PriorityLow,
						ChildID:     snap.Child.ID,
						ChildName:   name,
						Title:       fmt.Sprintf("%s may need a nap soon", name),
						Description: fmt.Sprintf("Has been awake for %d hours", int(hoursAwake)),
						Confidence:  0.6,
					})
				}
			}
		}
	}

	if len(snapshots) >= 2 {
		sync := Synchronization(snapshots[0].Feedings, snapshots[1].Feedings, DefaultSyncProximity)
		title := "Synchronization opportunity"
		description := fmt.Sprintf("Feeding synchronization is at %d%%; consider aligning feeding times for easier management", sync)
		if sync > 70 {
			title = "Children are well synchronized"
			description = fmt.Sprintf("Feeding synchronization is at %d%%", sync)
		}
		insights = append(insights, Insight{
			Type:        "synchronization",
			Priority:    PriorityInfo,
			Title:       title,
			Description: description,
			Confidence:  0.9,
		})
	}

	sort.SliceStable(insights, func(i, j int) bool {
		return rankOf(insights[i].Priority) < rankOf(insights[j].Priority)
	})
	if len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	return insights
}

// ComposePredictions emits next-event estimates for one child from its
// lookback streams.
func ComposePredictions(child store.Child, feedings, sleeps, diapers []timeline.Entry, now time.Time, loc *time.Location) []Prediction {
	if loc == nil {
		loc = time.UTC
	}
	predictions := make([]Prediction, 0, 3)

	if pattern, err := AnalyzeFeedingPattern(feedings); err == nil {
		predictions = append(predictions, Prediction{
			Type:       "feeding",
			ChildID:    child.ID,
			ChildName:  child.Name,
			Prediction: "Next feeding",
			Time:       pattern.NextFeedingEstimate.In(loc).Format("3:04 PM"),
			Confidence: "High",
		})
	}

	if wake := lastWakeTime(sleeps); wake != nil {
		hoursAwake := now.Sub(*wake).Hours()
		if hoursAwake > 2 && hoursAwake < 4 {
			predictions = append(predictions, Prediction{
				Type:       "sleep",
				ChildID:    child.ID,
				ChildName:  child.Name,
				Prediction: "May be ready for nap",
				Time:       "Soon",
				Confidence: "Medium",
			})
		}
	}

	if len(diapers) > 0 {
		last := diapers[len(diapers)-1]
		hoursSince := now.Sub(last.OccursAt).Hours()
		if hoursSince > 2 {
			confidence := "Medium"
			if hoursSince > 3 {
				confidence = "High"
			}
			predictions = append(predictions, Prediction{
				Type:       "diaper",
				ChildID:    child.ID,
				ChildName:  child.Name,
				Prediction: "Diaper check recommended",
				Time:       "Now",
				Confidence: confidence,
			})
		}
	}

	return predictions
}

// lastWakeTime is the latest end instant among completed sleeps.
func lastWakeTime(sleeps []timeline.Entry) *time.Time {
	var latest *time.Time
	for _, entry := range sleeps {
		end := entry.EndsAt()
		if end == nil || entry.Type != timeline.EntrySleep {
			continue
		}
		if latest == nil || end.After(*latest) {
			latest = end
		}
	}
	return latest
}

func rankOf(priority string) int {
	rank, ok := priorityRank[priority]
	if !ok {
		return len(priorityRank)
	}
	return rank
}
