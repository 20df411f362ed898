package timeline

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvariantViolation reports a contract violation in stored data, such as
// two open sleep sessions for the same child. The engine surfaces it instead
// of repairing the data, because silently closing a session would corrupt
// duration math downstream.
var ErrInvariantViolation = errors.New("invariant violation")

type EntryType string

const (
	EntryFeeding EntryType = "feeding"
	EntrySleep   EntryType = "sleep"
	EntryDiaper  EntryType = "diaper"
	EntryHealth  EntryType = "health"
)

type FeedingKind string

const (
	FeedingBreast  FeedingKind = "breast"
	FeedingBottle  FeedingKind = "bottle"
	FeedingFormula FeedingKind = "formula"
	FeedingSolid   FeedingKind = "solid"
)

type SleepKind string

const (
	SleepNap   SleepKind = "nap"
	SleepNight SleepKind = "night"
)

type SleepQuality string

const (
	QualityDeep        SleepQuality = "deep"
	QualityRestless    SleepQuality = "restless"
	QualityInterrupted SleepQuality = "interrupted"
)

type FeedingDetail struct {
	Kind     FeedingKind
	AmountML *float64
	// EndsAt is set when the caregiver logged an explicit feeding end.
	EndsAt *time.Time
}

type SleepDetail struct {
	Kind    SleepKind
	Quality SleepQuality
	// EndsAt == nil denotes an open session: the child is currently sleeping.
	EndsAt *time.Time
}

type DiaperDetail struct {
	Kind        string
	Consistency string
}

type HealthDetail struct {
	Kind  string
	Value string
	Unit  string
}

// Entry is one recorded activity. OccursAt is the canonical absolute instant
// used for ordering and range queries; EntryTimezone records where the
// caregiver was and never alters the instant.
type Entry struct {
	ID            string
	ChildID       string
	RecordedBy    string
	OccursAt      time.Time
	EntryTimezone string
	Type          EntryType

	Feeding *FeedingDetail
	Sleep   *SleepDetail
	Diaper  *DiaperDetail
	Health  *HealthDetail
}

// EndsAt returns the end instant for entry types that carry one.
func (e Entry) EndsAt() *time.Time {
	switch e.Type {
	case EntrySleep:
		if e.Sleep != nil {
			return e.Sleep.EndsAt
		}
	case EntryFeeding:
		if e.Feeding != nil {
			return e.Feeding.EndsAt
		}
	}
	return nil
}

// DurationMinutes derives whole minutes between OccursAt and the end instant.
// The second return is false for open sessions and types without an end.
func (e Entry) DurationMinutes() (int, bool) {
	end := e.EndsAt()
	if end == nil {
		return 0, false
	}
	return int(end.UTC().Sub(e.OccursAt.UTC()).Minutes()), true
}

// IsOpenSleep reports whether the entry is a sleep session still in progress.
func (e Entry) IsOpenSleep() bool {
	return e.Type == EntrySleep && e.Sleep != nil && e.Sleep.EndsAt == nil
}

// ValidateOpenSessions enforces the at-most-one-open-sleep-session rule for a
// single child's entries.
func ValidateOpenSessions(childID string, entries []Entry) error {
	open := 0
	for _, entry := range entries {
		if entry.ChildID != childID {
			continue
		}
		if entry.IsOpenSleep() {
			open++
		}
	}
	if open > 1 {
		return fmt.Errorf("%w: child %s has %d open sleep sessions", ErrInvariantViolation, childID, open)
	}
	return nil
}
