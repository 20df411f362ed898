package insight

import (
	"time"

	"github.com/kkhalifeh/twins-assistant-sub000/internal/timeline"
)

func bottleFeeding(childID string, at time.Time, amountML float64) timeline.Entry {
	return timeline.Entry{
		ChildID:  childID,
		Type:     timeline.EntryFeeding,
		OccursAt: at,
		Feeding:  &timeline.FeedingDetail{Kind: timeline.FeedingBottle, AmountML: &amountML},
	}
}

func breastFeeding(childID string, at time.Time, minutes int) timeline.Entry {
	end := at.Add(time.Duration(minutes) * time.Minute)
	return timeline.Entry{
		ChildID:  childID,
		Type:     timeline.EntryFeeding,
		OccursAt: at,
		Feeding:  &timeline.FeedingDetail{Kind: timeline.FeedingBreast, EndsAt: &end},
	}
}

func completedSleep(childID string, at time.Time, minutes int, kind timeline.SleepKind, quality timeline.SleepQuality) timeline.Entry {
	end := at.Add(time.Duration(minutes) * time.Minute)
	return timeline.Entry{
		ChildID:  childID,
		Type:     timeline.EntrySleep,
		OccursAt: at,
		Sleep:    &timeline.SleepDetail{Kind: kind, Quality: quality, EndsAt: &end},
	}
}

func openSleep(childID string, at time.Time) timeline.Entry {
	return timeline.Entry{
		ChildID:  childID,
		Type:     timeline.EntrySleep,
		OccursAt: at,
		Sleep:    &timeline.SleepDetail{Kind: timeline.SleepNap},
	}
}

func diaperChange(childID string, at time.Time) timeline.Entry {
	return timeline.Entry{
		ChildID:  childID,
		Type:     timeline.EntryDiaper,
		OccursAt: at,
		Diaper:   &timeline.DiaperDetail{Kind: "wet"},
	}
}
