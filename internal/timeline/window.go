package timeline

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidZone reports an unrecognized IANA timezone identifier. It is
// rejected at this boundary and never silently defaulted.
var ErrInvalidZone = errors.New("invalid timezone")

type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

func ParseGranularity(raw string) (Granularity, bool) {
	switch Granularity(strings.ToLower(strings.TrimSpace(raw))) {
	case GranularityDay, "":
		return GranularityDay, true
	case GranularityWeek:
		return GranularityWeek, true
	case GranularityMonth:
		return GranularityMonth, true
	}
	return "", false
}

// Window identifies one calendar period viewed from a caregiver-chosen
// timezone. It is constructed per request and never mutated.
type Window struct {
	Year        int
	Month       time.Month
	Day         int
	Zone        string
	Granularity Granularity
}

// NewWindow parses a YYYY-MM-DD date and validates the zone.
func NewWindow(dateStr, zone string, granularity Granularity) (Window, error) {
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(dateStr))
	if err != nil {
		return Window{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	if _, err := LoadZone(zone); err != nil {
		return Window{}, err
	}
	return Window{
		Year:        parsed.Year(),
		Month:       parsed.Month(),
		Day:         parsed.Day(),
		Zone:        zone,
		Granularity: granularity,
	}, nil
}

func LoadZone(zone string) (*time.Location, error) {
	trimmed := strings.TrimSpace(zone)
	if trimmed == "" || trimmed == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidZone, zone)
	}
	loc, err := time.LoadLocation(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidZone, zone)
	}
	return loc, nil
}

// ValidZone reports whether zone is a recognized IANA identifier.
func ValidZone(zone string) bool {
	_, err := LoadZone(zone)
	return err == nil
}

// UTCRange builds the local wall-clock boundaries of the window in its zone
// and converts them to UTC using the zone's offset at each boundary moment, so
// DST transition days are shorter or longer than 24h as appropriate.
func (w Window) UTCRange() (time.Time, time.Time, error) {
	loc, err := LoadZone(w.Zone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	var start, end time.Time
	switch w.Granularity {
	case GranularityWeek:
		anchor := time.Date(w.Year, w.Month, w.Day, 0, 0, 0, 0, loc)
		// Week starts Sunday by product convention.
		weekStart := anchor.AddDate(0, 0, -int(anchor.Weekday()))
		start = time.Date(weekStart.Year(), weekStart.Month(), weekStart.Day(), 0, 0, 0, 0, loc)
		endDay := weekStart.AddDate(0, 0, 6)
		end = time.Date(endDay.Year(), endDay.Month(), endDay.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), loc)
	case GranularityMonth:
		start = time.Date(w.Year, w.Month, 1, 0, 0, 0, 0, loc)
		nextMonth := start.AddDate(0, 1, 0)
		lastDay := nextMonth.AddDate(0, 0, -1)
		end = time.Date(lastDay.Year(), lastDay.Month(), lastDay.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), loc)
	default:
		start = time.Date(w.Year, w.Month, w.Day, 0, 0, 0, 0, loc)
		end = time.Date(w.Year, w.Month, w.Day, 23, 59, 59, int(time.Second-time.Nanosecond), loc)
	}
	return start.UTC(), end.UTC(), nil
}

// Contains reports whether an absolute instant belongs to this window when
// viewed from the window's zone. This is the single source of truth for
// bucket membership; the entry's own recording timezone plays no role because
// aggregation views are per caregiver viewpoint.
func (w Window) Contains(instant time.Time) (bool, error) {
	loc, err := LoadZone(w.Zone)
	if err != nil {
		return false, err
	}
	local := instant.In(loc)

	switch w.Granularity {
	case GranularityWeek:
		anchor := time.Date(w.Year, w.Month, w.Day, 0, 0, 0, 0, loc)
		weekStart := anchor.AddDate(0, 0, -int(anchor.Weekday()))
		startY, startM, startD := weekStart.Date()
		endDay := weekStart.AddDate(0, 0, 6)
		endY, endM, endD := endDay.Date()
		localDate := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
		first := time.Date(startY, startM, startD, 0, 0, 0, 0, time.UTC)
		last := time.Date(endY, endM, endD, 0, 0, 0, 0, time.UTC)
		return !localDate.Before(first) && !localDate.After(last), nil
	case GranularityMonth:
		return local.Year() == w.Year && local.Month() == w.Month, nil
	default:
		return local.Year() == w.Year && local.Month() == w.Month && local.Day() == w.Day, nil
	}
}

// CoversInstant reports whether the window includes the given moment, used to
// suppress due/overdue hints on past-period views.
func (w Window) CoversInstant(now time.Time) bool {
	ok, err := w.Contains(now)
	if err != nil {
		return false
	}
	return ok
}
