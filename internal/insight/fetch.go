package insight

import (
	"context"
	"time"

	"github.com/kkhalifeh/twins-assistant-sub000/internal/observability"
	"github.com/kkhalifeh/twins-assistant-sub000/internal/store"
	"github.com/kkhalifeh/twins-assistant-sub000/internal/timeline"
)

// fetchPadding widens the storage query by one calendar day on each side. An
// event recorded near midnight can be stored as a UTC instant outside a tight
// UTC range while still belonging to the target local day; the padded fetch
// plus the exact Contains re-filter below eliminates those false negatives.
const fetchPadding = 24 * time.Hour

// FetchCandidates pulls entries of one type for the window, over-fetching by
// the padding and then re-filtering each row through the window's zone. Both
// steps are required; skipping the filter is the boundary-clipping defect this
// function exists to prevent. Store errors propagate verbatim.
func FetchCandidates(ctx context.Context, st store.Store, entryType timeline.EntryType, childIDs []string, w timeline.Window) ([]timeline.Entry, error) {
	startUTC, endUTC, err := w.UTCRange()
	if err != nil {
		return nil, err
	}

	candidates, err := st.FindEntries(ctx, entryType, childIDs, startUTC.Add(-fetchPadding), endUTC.Add(fetchPadding))
	if err != nil {
		return nil, err
	}

	filtered := make([]timeline.Entry, 0, len(candidates))
	for _, entry := range candidates {
		ok, err := w.Contains(entry.OccursAt)
		if err != nil {
			return nil, err
		}
		if ok {
			filtered = append(filtered, entry)
		}
	}
	observability.RecordDiscardedCandidates(len(candidates) - len(filtered))
	return filtered, nil
}
