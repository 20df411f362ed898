// Package store is the read-side collaborator for the aggregation engine. It
// owns no retry or backoff policy; errors propagate verbatim to the caller.
package store

import (
	"context"
	"time"

	"github.com/kkhalifeh/twins-assistant-sub000/internal/timeline"
)

type Child struct {
	ID        string
	Name      string
	AccountID string
}

// Store reads recorded activity entries. FindEntries returns entries ordered
// by occurrence time ascending; the UTC range is inclusive on both ends.
type Store interface {
	FindEntries(ctx context.Context, entryType timeline.EntryType, childIDs []string, startUTC, endUTC time.Time) ([]timeline.Entry, error)
	FindOpenSleepSessions(ctx context.Context, childID string) ([]timeline.Entry, error)
	ListChildren(ctx context.Context, accountID string) ([]Child, error)
}
