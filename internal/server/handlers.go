package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kkhalifeh/twins-assistant-sub000/internal/insight"
	"github.com/kkhalifeh/twins-assistant-sub000/internal/observability"
	"github.com/kkhalifeh/twins-assistant-sub000/internal/store"
	"github.com/kkhalifeh/twins-assistant-sub000/internal/timeline"
)

type entryView struct {
	ID              string         `json:"id"`
	ChildID         string         `json:"child_id"`
	Type            string         `json:"type"`
	OccursAt        time.Time      `json:"occurs_at"`
	EndsAt          *time.Time     `json:"ends_at,omitempty"`
	DurationMinutes *int           `json:"duration_minutes,omitempty"`
	EntryTimezone   string         `json:"entry_timezone,omitempty"`
	Details         map[string]any `json:"details,omitempty"`
}

type childAggregationView struct {
	ChildID    string      `json:"child_id"`
	ChildName  string      `json:"child_name"`
	Feedings   []entryView `json:"feedings"`
	Sleeps     []entryView `json:"sleeps"`
	Diapers    []entryView `json:"diapers"`
	Health     []entryView `json:"health"`
	OpenSleeps []entryView `json:"open_sleep_sessions"`
}

type feedingPatternView struct {
	AverageIntervalHours float64   `json:"average_interval_hours"`
	RecentIntervalHours  float64   `json:"recent_interval_hours"`
	AverageAmountML      int       `json:"average_amount_ml"`
	TotalFeedings        int       `json:"total_feedings"`
	Trend                string    `json:"trend"`
	LastFeedingAt        time.Time `json:"last_feeding_at"`
	NextFeedingEstimate  time.Time `json:"next_feeding_estimate"`
}

type sleepPatternView struct {
	TotalSleepHoursPerDay  float64 `json:"total_sleep_hours_per_day"`
	AverageNapMinutes      float64 `json:"average_nap_minutes"`
	AverageNightMinutes    float64 `json:"average_night_minutes"`
	TotalNaps              int     `json:"total_naps"`
	TotalNightSleeps       int     `json:"total_night_sleeps"`
	TypicalWakeTime        string  `json:"typical_wake_time"`
	Quality                string  `json:"quality"`
	QualityScore           float64 `json:"quality_score"`
	CompletedSleepSessions int     `json:"completed_sleep_sessions"`
}

type patternView struct {
	ChildID string              `json:"child_id"`
	Feeding *feedingPatternView `json:"feeding,omitempty"`
	Sleep   sleepPatternView    `json:"sleep"`
}

func (a *App) getAggregation(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	zone := strings.TrimSpace(c.DefaultQuery("timezone", a.cfg.DefaultViewTimezone))
	loc, err := timeline.LoadZone(zone)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	granularity, ok := timeline.ParseGranularity(c.Query("view"))
	if !ok {
		writeError(c, http.StatusBadRequest, "view must be day, week or month")
		return
	}

	dateStr := strings.TrimSpace(c.Query("date"))
	if dateStr == "" {
		dateStr = time.Now().In(loc).Format("2006-01-02")
	}
	window, err := timeline.NewWindow(dateStr, zone, granularity)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	children, err := a.accountChildren(c, user)
	if err != nil {
		return
	}
	if childID := strings.TrimSpace(c.Query("child_id")); childID != "" {
		scoped := children[:0]
		for _, child := range children {
			if child.ID == childID {
				scoped = append(scoped, child)
			}
		}
		if len(scoped) == 0 {
			writeError(c, http.StatusNotFound, "Child not found")
			return
		}
		children = scoped
	}

	started := time.Now()
	result, err := a.engine.Aggregation(c.Request.Context(), window, children)
	observability.ObserveQuery("aggregation", started, err)
	if err != nil {
		writeEngineError(c, err)
		return
	}

	views := make([]childAggregationView, 0, len(result.Snapshots))
	for _, snap := range result.Snapshots {
		views = append(views, childAggregationView{
			ChildID:    snap.Child.ID,
			ChildName:  snap.Child.Name,
			Feedings:   entryViews(snap.Feedings),
			Sleeps:     entryViews(snap.Sleeps),
			Diapers:    entryViews(snap.Diapers),
			Health:     entryViews(snap.Health),
			OpenSleeps: entryViews(snap.OpenSleeps),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"date":      dateStr,
		"timezone":  zone,
		"view":      string(granularity),
		"start_utc": result.StartUTC.Format(time.RFC3339Nano),
		"end_utc":   result.EndUTC.Format(time.RFC3339Nano),
		"children":  views,
		"stats":     result.Stats,
		"insights":  result.Insights,
	})
}

func (a *App) getPatternAnalysis(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	childID := c.Param("childId")
	if !a.ownsChild(c, user, childID) {
		return
	}

	started := time.Now()
	result, err := a.engine.PatternAnalysis(c.Request.Context(), childID, a.lookbackDays(c), a.viewZone(c))
	observability.ObserveQuery("pattern_analysis", started, err)
	if errors.Is(err, insight.ErrInsufficientData) {
		c.JSON(http.StatusOK, gin.H{"child_id": childID, "insufficient_data": true})
		return
	}
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, patternViewOf(result))
}

func (a *App) getCorrelations(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	childID := c.Param("childId")
	if !a.ownsChild(c, user, childID) {
		return
	}

	days := queryInt(c, "days", 14)
	started := time.Now()
	findings, err := a.engine.Correlations(c.Request.Context(), childID, days)
	observability.ObserveQuery("correlations", started, err)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"child_id":     childID,
		"days":         days,
		"correlations": findings,
	})
}

func (a *App) getComparison(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	children, err := a.accountChildren(c, user)
	if err != nil {
		return
	}

	childA := strings.TrimSpace(c.Query("child_a"))
	childB := strings.TrimSpace(c.Query("child_b"))
	if childA == "" || childB == "" {
		if len(children) < 2 {
			writeError(c, http.StatusBadRequest, "Comparison requires two children")
			return
		}
		childA, childB = children[0].ID, children[1].ID
	} else if !childOf(children, childA) || !childOf(children, childB) {
		writeError(c, http.StatusNotFound, "Child not found")
		return
	}

	started := time.Now()
	result, err := a.engine.Comparison(c.Request.Context(), childA, childB, a.lookbackDays(c), a.viewZone(c))
	observability.ObserveQuery("comparison", started, err)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"feeding_sync_percent": result.FeedingSync,
		"sleep_sync_percent":   result.SleepSync,
		"child_a":              patternViewOf(result.PatternA),
		"child_b":              patternViewOf(result.PatternB),
	})
}

func (a *App) getInsights(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	children, err := a.accountChildren(c, user)
	if err != nil {
		return
	}

	started := time.Now()
	insights, err := a.engine.InsightsReport(c.Request.Context(), children, a.lookbackDays(c), a.viewZone(c))
	observability.ObserveQuery("insights_report", started, err)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"insights": insights})
}

func (a *App) getPredictions(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	children, err := a.accountChildren(c, user)
	if err != nil {
		return
	}

	started := time.Now()
	predictions, err := a.engine.Predictions(c.Request.Context(), children, a.viewZone(c))
	observability.ObserveQuery("predictions", started, err)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"predictions": predictions})
}

// accountChildren lists the caller's children, writing the response itself on
// failure so handlers can bail with a bare return.
func (a *App) accountChildren(c *gin.Context, user AuthUser) ([]store.Child, error) {
	children, err := a.store.ListChildren(c.Request.Context(), user.AccountID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load children")
		return nil, err
	}
	return children, nil
}

// ownsChild verifies the child belongs to the caller's account; it writes a
// 404 (not 403) for foreign children so child IDs are not probeable.
func (a *App) ownsChild(c *gin.Context, user AuthUser, childID string) bool {
	children, err := a.accountChildren(c, user)
	if err != nil {
		return false
	}
	if !childOf(children, childID) {
		writeError(c, http.StatusNotFound, "Child not found")
		return false
	}
	return true
}

func childOf(children []store.Child, childID string) bool {
	for _, child := range children {
		if child.ID == childID {
			return true
		}
	}
	return false
}

func (a *App) viewZone(c *gin.Context) string {
	return strings.TrimSpace(c.DefaultQuery("timezone", a.cfg.DefaultViewTimezone))
}

func (a *App) lookbackDays(c *gin.Context) int {
	return queryInt(c, "days", a.cfg.DefaultLookbackDays)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func writeEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, timeline.ErrInvalidZone):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, timeline.ErrInvariantViolation):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "Aggregation query failed")
	}
}

func entryViews(entries []timeline.Entry) []entryView {
	views := make([]entryView, 0, len(entries))
	for _, entry := range entries {
		view := entryView{
			ID:            entry.ID,
			ChildID:       entry.ChildID,
			Type:          string(entry.Type),
			OccursAt:      entry.OccursAt,
			EndsAt:        entry.EndsAt(),
			EntryTimezone: entry.EntryTimezone,
		}
		if minutes, ok := entry.DurationMinutes(); ok {
			view.DurationMinutes = &minutes
		}
		switch {
		case entry.Feeding != nil:
			view.Details = map[string]any{"kind": string(entry.Feeding.Kind)}
			if entry.Feeding.AmountML != nil {
				view.Details["amount_ml"] = *entry.Feeding.AmountML
			}
		case entry.Sleep != nil:
			view.Details = map[string]any{"kind": string(entry.Sleep.Kind)}
			if entry.Sleep.Quality != "" {
				view.Details["quality"] = string(entry.Sleep.Quality)
			}
		case entry.Diaper != nil:
			view.Details = map[string]any{"kind": entry.Diaper.Kind}
			if entry.Diaper.Consistency != "" {
				view.Details["consistency"] = entry.Diaper.Consistency
			}
		case entry.Health != nil:
			view.Details = map[string]any{"kind": entry.Health.Kind}
			if entry.Health.Value != "" {
				view.Details["value"] = entry.Health.Value
				view.Details["unit"] = entry.Health.Unit
			}
		}
		views = append(views, view)
	}
	return views
}

func patternViewOf(result insight.PatternResult) patternView {
	view := patternView{
		ChildID: result.ChildID,
		Sleep: sleepPatternView{
			TotalSleepHoursPerDay:  result.Sleep.TotalSleepHoursPerDay,
			AverageNapMinutes:      result.Sleep.AverageNapMinutes,
			AverageNightMinutes:    result.Sleep.AverageNightMinutes,
			TotalNaps:              result.Sleep.TotalNaps,
			TotalNightSleeps:       result.Sleep.TotalNightSleeps,
			TypicalWakeTime:        result.Sleep.TypicalWakeTime(),
			Quality:                result.Sleep.Quality,
			QualityScore:           result.Sleep.QualityScore,
			CompletedSleepSessions: result.Sleep.CompletedSleepSessions,
		},
	}
	if result.Feeding != nil {
		view.Feeding = &feedingPatternView{
			AverageIntervalHours: result.Feeding.AverageIntervalHours,
			RecentIntervalHours:  result.Feeding.RecentIntervalHours,
			AverageAmountML:      result.Feeding.AverageAmountML,
			TotalFeedings:        result.Feeding.TotalFeedings,
			Trend:                result.Feeding.Trend,
			LastFeedingAt:        result.Feeding.LastFeedingAt,
			NextFeedingEstimate:  result.Feeding.NextFeedingEstimate,
		}
	}
	return view
}
