package store

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kkhalifeh/twins-assistant-sub000/internal/timeline"
)

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Postgres reads the activity-log tables written by the logging side of the
// product. Column names keep the original camelCase schema.
type Postgres struct {
	db querier
}

func NewPostgres(db querier) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) FindEntries(ctx context.Context, entryType timeline.EntryType, childIDs []string, startUTC, endUTC time.Time) ([]timeline.Entry, error) {
	switch entryType {
	case timeline.EntryFeeding:
		return p.findFeedings(ctx, childIDs, startUTC, endUTC)
	case timeline.EntrySleep:
		return p.findSleeps(ctx, childIDs, startUTC, endUTC)
	case timeline.EntryDiaper:
		return p.findDiapers(ctx, childIDs, startUTC, endUTC)
	case timeline.EntryHealth:
		return p.findHealth(ctx, childIDs, startUTC, endUTC)
	}
	return nil, nil
}

func (p *Postgres) findFeedings(ctx context.Context, childIDs []string, startUTC, endUTC time.Time) ([]timeline.Entry, error) {
	rows, err := p.db.Query(
		ctx,
		`SELECT id, "childId", "userId", "startTime", "endTime", type, amount, "entryTimezone"
		 FROM "FeedingLog"
		 WHERE "childId" = ANY($1) AND "startTime" >= $2 AND "startTime" <= $3
		 ORDER BY "startTime" ASC`,
		childIDs,
		startUTC,
		endUTC,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]timeline.Entry, 0)
	for rows.Next() {
		var entry timeline.Entry
		var endsAt *time.Time
		var kind string
		var amount *float64
		var zone *string
		if err := rows.Scan(&entry.ID, &entry.ChildID, &entry.RecordedBy, &entry.OccursAt, &endsAt, &kind, &amount, &zone); err != nil {
			return nil, err
		}
		entry.OccursAt = entry.OccursAt.UTC()
		entry.Type = timeline.EntryFeeding
		entry.EntryTimezone = derefString(zone)
		entry.Feeding = &timeline.FeedingDetail{
			Kind:     timeline.FeedingKind(strings.ToLower(kind)),
			AmountML: amount,
			EndsAt:   utcRef(endsAt),
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (p *Postgres) findSleeps(ctx context.Context, childIDs []string, startUTC, endUTC time.Time) ([]timeline.Entry, error) {
	rows, err := p.db.Query(
		ctx,
		`SELECT id, "childId", "userId", "startTime", "endTime", type, quality, "entryTimezone"
		 FROM "SleepLog"
		 WHERE "childId" = ANY($1) AND "startTime" >= $2 AND "startTime" <= $3
		 ORDER BY "startTime" ASC`,
		childIDs,
		startUTC,
		endUTC,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]timeline.Entry, 0)
	for rows.Next() {
		var entry timeline.Entry
		var endsAt *time.Time
		var kind string
		var quality *string
		var zone *string
		if err := rows.Scan(&entry.ID, &entry.ChildID, &entry.RecordedBy, &entry.OccursAt, &endsAt, &kind, &quality, &zone); err != nil {
			return nil, err
		}
		entry.OccursAt = entry.OccursAt.UTC()
		entry.Type = timeline.EntrySleep
		entry.EntryTimezone = derefString(zone)
		entry.Sleep = &timeline.SleepDetail{
			Kind:    timeline.SleepKind(strings.ToLower(kind)),
			Quality: timeline.SleepQuality(strings.ToLower(derefString(quality))),
			EndsAt:  utcRef(endsAt),
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (p *Postgres) findDiapers(ctx context.Context, childIDs []string, startUTC, endUTC time.Time) ([]timeline.Entry, error) {
	rows, err := p.db.Query(
		ctx,
		`SELECT id, "childId", "userId", timestamp, type, consistency, "entryTimezone"
		 FROM "DiaperLog"
		 WHERE "childId" = ANY($1) AND timestamp >= $2 AND timestamp <= $3
		 ORDER BY timestamp ASC`,
		childIDs,
		startUTC,
		endUTC,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]timeline.Entry, 0)
	for rows.Next() {
		var entry timeline.Entry
		var kind string
		var consistency *string
		var zone *string
		if err := rows.Scan(&entry.ID, &entry.ChildID, &entry.RecordedBy, &entry.OccursAt, &kind, &consistency, &zone); err != nil {
			return nil, err
		}
		entry.OccursAt = entry.OccursAt.UTC()
		entry.Type = timeline.EntryDiaper
		entry.EntryTimezone = derefString(zone)
		entry.Diaper = &timeline.DiaperDetail{
			Kind:        strings.ToLower(kind),
			Consistency: strings.ToLower(derefString(consistency)),
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (p *Postgres) findHealth(ctx context.Context, childIDs []string, startUTC, endUTC time.Time) ([]timeline.Entry, error) {
	rows, err := p.db.Query(
		ctx,
		`SELECT id, "childId", "userId", timestamp, type, value, unit, "entryTimezone"
		 FROM "HealthLog"
		 WHERE "childId" = ANY($1) AND timestamp >= $2 AND timestamp <= $3
		 ORDER BY timestamp ASC`,
		childIDs,
		startUTC,
		endUTC,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]timeline.Entry, 0)
	for rows.Next() {
		var entry timeline.Entry
		var kind string
		var value, unit *string
		var zone *string
		if err := rows.Scan(&entry.ID, &entry.ChildID, &entry.RecordedBy, &entry.OccursAt, &kind, &value, &unit, &zone); err != nil {
			return nil, err
		}
		entry.OccursAt = entry.OccursAt.UTC()
		entry.Type = timeline.EntryHealth
		entry.EntryTimezone = derefString(zone)
		entry.Health = &timeline.HealthDetail{
			Kind:  strings.ToLower(kind),
			Value: derefString(value),
			Unit:  derefString(unit),
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (p *Postgres) FindOpenSleepSessions(ctx context.Context, childID string) ([]timeline.Entry, error) {
	rows, err := p.db.Query(
		ctx,
		`SELECT id, "childId", "userId", "startTime", type, quality, "entryTimezone"
		 FROM "SleepLog"
		 WHERE "childId" = $1 AND "endTime" IS NULL
		 ORDER BY "startTime" ASC`,
		childID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]timeline.Entry, 0)
	for rows.Next() {
		var entry timeline.Entry
		var kind string
		var quality *string
		var zone *string
		if err := rows.Scan(&entry.ID, &entry.ChildID, &entry.RecordedBy, &entry.OccursAt, &kind, &quality, &zone); err != nil {
			return nil, err
		}
		entry.OccursAt = entry.OccursAt.UTC()
		entry.Type = timeline.EntrySleep
		entry.EntryTimezone = derefString(zone)
		entry.Sleep = &timeline.SleepDetail{
			Kind:    timeline.SleepKind(strings.ToLower(kind)),
			Quality: timeline.SleepQuality(strings.ToLower(derefString(quality))),
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (p *Postgres) ListChildren(ctx context.Context, accountID string) ([]Child, error) {
	rows, err := p.db.Query(
		ctx,
		`SELECT c.id, c.name, u."accountId"
		 FROM "Child" c
		 JOIN "User" u ON u.id = c."userId"
		 WHERE u."accountId" = $1
		 ORDER BY c.name ASC`,
		accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	children := make([]Child, 0)
	for rows.Next() {
		var child Child
		if err := rows.Scan(&child.ID, &child.Name, &child.AccountID); err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, rows.Err()
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func utcRef(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}
