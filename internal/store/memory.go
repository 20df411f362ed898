package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kkhalifeh/twins-assistant-sub000/internal/timeline"
)

// Memory is an in-process Store used by unit tests and the local seed script.
type Memory struct {
	mu       sync.RWMutex
	entries  []timeline.Entry
	children []Child
	// FailWith, when set, is returned by every read. Lets tests exercise
	// store-error propagation.
	FailWith error
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) AddChild(child Child) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.children = append(m.children, child)
}

func (m *Memory) AddEntry(entry timeline.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.OccursAt = entry.OccursAt.UTC()
	m.entries = append(m.entries, entry)
}

func (m *Memory) FindEntries(ctx context.Context, entryType timeline.EntryType, childIDs []string, startUTC, endUTC time.Time) ([]timeline.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	wanted := make(map[string]struct{}, len(childIDs))
	for _, id := range childIDs {
		wanted[id] = struct{}{}
	}

	matched := make([]timeline.Entry, 0)
	for _, entry := range m.entries {
		if entry.Type != entryType {
			continue
		}
		if _, ok := wanted[entry.ChildID]; !ok {
			continue
		}
		if entry.OccursAt.Before(startUTC) || entry.OccursAt.After(endUTC) {
			continue
		}
		matched = append(matched, entry)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccursAt.Before(matched[j].OccursAt)
	})
	return matched, nil
}

func (m *Memory) FindOpenSleepSessions(ctx context.Context, childID string) ([]timeline.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	open := make([]timeline.Entry, 0)
	for _, entry := range m.entries {
		if entry.ChildID == childID && entry.IsOpenSleep() {
			open = append(open, entry)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].OccursAt.Before(open[j].OccursAt)
	})
	return open, nil
}

func (m *Memory) ListChildren(ctx context.Context, accountID string) ([]Child, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	children := make([]Child, 0)
	for _, child := range m.children {
		if child.AccountID == accountID {
			children = append(children, child)
		}
	}
	sort.SliceStable(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	return children, nil
}
