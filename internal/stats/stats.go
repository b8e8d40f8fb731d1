package stats

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"backend-fogtrek/internal/classify"
	"backend-fogtrek/internal/shared/geo"
)

const (
	// SessionGapMs splits history into sessions: a gap strictly greater than
	// this ends one session and starts the next. It also caps the per-pair
	// active-time delta counted by Increment, which keeps batch and
	// incremental active time in agreement.
	SessionGapMs = 600000

	// DefaultFogRadiusM is the revealed-disc radius when none is configured.
	DefaultFogRadiusM = 25.0
)

// ExplorationStats are the running totals surfaced to the UI.
type ExplorationStats struct {
	DistanceM    float64 `json:"distance_m"`
	AreaM2       float64 `json:"area_m2"`
	ActiveTimeMs int64   `json:"active_time_ms"`
}

// SessionInfo tracks the lifecycle of the current exploration session.
// EndTime and LastActiveTime are zero while unset; ending is terminal.
type SessionInfo struct {
	SessionID         string `json:"session_id"`
	StartTime         int64  `json:"start_time"`
	EndTime           int64  `json:"end_time,omitempty"`
	LastActiveTime    int64  `json:"last_active_time,omitempty"`
	TotalPausedTimeMs int64  `json:"total_paused_time_ms"`
}

// Open reports whether the session has not been ended.
func (s SessionInfo) Open() bool {
	return s.EndTime == 0
}

// State is the aggregate root owned by the engine's caller. Total stats are
// lifetime; Session stats reset whenever a new session starts.
type State struct {
	Total          ExplorationStats `json:"total"`
	Session        ExplorationStats `json:"session"`
	CurrentSession SessionInfo      `json:"current_session"`
	LastProcessed  *geo.GeoFix      `json:"last_processed_fix,omitempty"`
	Initialized    bool             `json:"initialized"`
}

// Engine computes exploration statistics. It is stateless; all state lives
// in the State values it is handed. The clock and id source are injectable
// for tests.
type Engine struct {
	policy     classify.Policy
	fogRadiusM float64
	now        func() int64
	newID      func() string
}

func NewEngine(fogRadiusM float64) *Engine {
	if fogRadiusM <= 0 {
		fogRadiusM = DefaultFogRadiusM
	}
	return &Engine{
		policy:     classify.DefaultPolicy(),
		fogRadiusM: fogRadiusM,
		now:        func() int64 { return time.Now().UnixMilli() },
		newID:      uuid.NewString,
	}
}

// NewEngineWithClock pins the clock and session-id source, for callers and
// tests that need deterministic session lifecycles.
func NewEngineWithClock(fogRadiusM float64, now func() int64, newID func() string) *Engine {
	e := NewEngine(fogRadiusM)
	if now != nil {
		e.now = now
	}
	if newID != nil {
		e.newID = newID
	}
	return e
}

// Policy returns the connection policy the engine classifies with, so
// callers producing feed payloads stay in agreement with it.
func (e *Engine) Policy() classify.Policy {
	return e.policy
}

// FromHistory builds a State from the full persisted fix history. Distance
// routes through the connection classifier; area is the additive per-fix
// disc approximation; active time sums the wall-clock span of each
// gap-delimited session. The returned state carries a fresh current session
// and no last-processed fix, so the next incremental fix never silently
// connects across a cold start.
func (e *Engine) FromHistory(fixes []geo.GeoFix) State {
	sorted := make([]geo.GeoFix, len(fixes))
	copy(sorted, fixes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	st := State{Initialized: true}
	st.Total.DistanceM = classify.TotalDistance(classify.Classify(e.policy, sorted))
	st.Total.AreaM2 = e.discArea(len(sorted))
	st.Total.ActiveTimeMs = sessionSpanMs(sorted)
	st.CurrentSession = e.freshSession()
	return st
}

// Increment applies one new fix to a running state. A disconnected pair
// still advances LastProcessed so the next comparison anchors correctly.
func (e *Engine) Increment(st State, fix geo.GeoFix) State {
	if !st.Initialized {
		return st
	}
	if fix.Timestamp < st.CurrentSession.StartTime {
		return st
	}
	if !st.CurrentSession.Open() && fix.Timestamp > st.CurrentSession.EndTime {
		return st
	}

	if prev := st.LastProcessed; prev != nil {
		classified := classify.Classify(e.policy, []geo.GeoFix{*prev, fix})
		if d := classify.TotalDistance(classified); d > 0 {
			st.Session.DistanceM += d
			st.Total.DistanceM += d
		}

		if st.CurrentSession.Open() {
			delta := fix.Timestamp - prev.Timestamp
			if delta > 0 && delta <= SessionGapMs {
				st.Session.ActiveTimeMs += delta
				st.Total.ActiveTimeMs += delta
			}
		}
	}

	processed := fix
	st.LastProcessed = &processed
	return st
}

// RecalculateArea refreshes the additive disc area from the full fix list.
// Session area only counts fixes at or after the session start, and only
// while the session is open. Fewer than 3 fixes is a no-op.
func (e *Engine) RecalculateArea(st State, fixes []geo.GeoFix) State {
	if len(fixes) < 3 {
		return st
	}

	st.Total.AreaM2 = e.discArea(len(fixes))

	if st.CurrentSession.Open() {
		count := 0
		for _, f := range fixes {
			if f.Timestamp >= st.CurrentSession.StartTime {
				count++
			}
		}
		st.Session.AreaM2 = e.discArea(count)
	}
	return st
}

// StartSession opens a fresh session, zeroing session stats. Totals persist.
func (e *Engine) StartSession(st State) State {
	st.Session = ExplorationStats{}
	st.CurrentSession = e.freshSession()
	return st
}

// EndSession closes the current session. Ending is terminal; a later
// StartSession supersedes it.
func (e *Engine) EndSession(st State) State {
	st.CurrentSession.EndTime = e.now()
	return st
}

// Pause records when activity stopped. It does not halt accrual by itself;
// callers stop feeding fixes while paused.
func (e *Engine) Pause(st State) State {
	st.CurrentSession.LastActiveTime = e.now()
	return st
}

// Resume adds the elapsed pause to the paused-time ledger.
func (e *Engine) Resume(st State) State {
	now := e.now()
	if st.CurrentSession.LastActiveTime > 0 {
		st.CurrentSession.TotalPausedTimeMs += now - st.CurrentSession.LastActiveTime
	}
	st.CurrentSession.LastActiveTime = now
	return st
}

func (e *Engine) freshSession() SessionInfo {
	return SessionInfo{
		SessionID: e.newID(),
		StartTime: e.now(),
	}
}

// discArea is the additive revealed-area approximation: one fixed-radius
// disc per retained fix, overlap ignored.
func (e *Engine) discArea(count int) float64 {
	return float64(count) * math.Pi * e.fogRadiusM * e.fogRadiusM
}

// sessionSpanMs groups sorted fixes into sessions wherever the gap exceeds
// SessionGapMs, then sums each session's wall-clock span.
func sessionSpanMs(sorted []geo.GeoFix) int64 {
	if len(sorted) == 0 {
		return 0
	}

	var total int64
	start := sorted[0].Timestamp
	prev := sorted[0].Timestamp
	for _, f := range sorted[1:] {
		if f.Timestamp-prev > SessionGapMs {
			total += prev - start
			start = f.Timestamp
		}
		prev = f.Timestamp
	}
	total += prev - start
	return total
}
