package classify

import (
	"sort"

	"backend-fogtrek/internal/shared/geo"
)

// Disconnection reasons, in rule order. The first failing rule wins.
const (
	ReasonTimeGap  = "Time gap too large"
	ReasonDistance = "Distance jump too large"
	ReasonSpeed    = "Speed too high"
	ReasonMovement = "Movement too small"
)

// Policy holds the connection thresholds. All values are fixed product
// policy; they are injectable so tests can probe the boundaries.
type Policy struct {
	MaxGapSeconds float64
	MaxJumpM      float64
	MaxSpeedMph   float64
	MinMoveM      float64
}

// Default thresholds, and the relaxed variants an older inline stats path
// carried (kept as named constants; the aggregator uses DefaultPolicy only).
const (
	DefaultMaxGapSeconds = 120.0
	DefaultMaxJumpM      = 2000.0
	DefaultMaxSpeedMph   = 100.0
	DefaultMinMoveM      = 3.0

	RelaxedMaxGapSeconds = 300.0
	RelaxedMinMoveM      = 5.0
)

func DefaultPolicy() Policy {
	return Policy{
		MaxGapSeconds: DefaultMaxGapSeconds,
		MaxJumpM:      DefaultMaxJumpM,
		MaxSpeedMph:   DefaultMaxSpeedMph,
		MinMoveM:      DefaultMinMoveM,
	}
}

// ClassifiedFix is a retained fix tagged with its relationship to the
// preceding fix in the sequence.
type ClassifiedFix struct {
	geo.GeoFix
	ConnectsToPrevious  bool   `json:"connects_to_previous"`
	StartsNewSession    bool   `json:"starts_new_session"`
	DisconnectionReason string `json:"disconnection_reason,omitempty"`
}

// Segment is a connected pair of fixes with its precomputed distance.
type Segment struct {
	Start     ClassifiedFix `json:"start"`
	End       ClassifiedFix `json:"end"`
	DistanceM float64       `json:"distance_m"`
}

// Classify tags each fix with its connection verdict against its
// predecessor. Input is sorted by timestamp defensively; the caller's slice
// is not mutated. The first fix always starts a session, as does any fix
// that fails a rule.
func Classify(p Policy, fixes []geo.GeoFix) []ClassifiedFix {
	if len(fixes) == 0 {
		return nil
	}

	sorted := make([]geo.GeoFix, len(fixes))
	copy(sorted, fixes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	out := make([]ClassifiedFix, 0, len(sorted))
	out = append(out, ClassifiedFix{GeoFix: sorted[0], StartsNewSession: true})

	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		cf := ClassifiedFix{GeoFix: cur}

		if reason, ok := p.check(prev, cur); ok {
			cf.ConnectsToPrevious = true
		} else {
			cf.StartsNewSession = true
			cf.DisconnectionReason = reason
		}
		out = append(out, cf)
	}
	return out
}

// check applies the four ordered rules to an adjacent pair. Returns the
// failing rule's reason, or ok when the pair connects.
func (p Policy) check(prev, cur geo.GeoFix) (string, bool) {
	gapSeconds := float64(cur.Timestamp-prev.Timestamp) / 1000.0
	if gapSeconds > p.MaxGapSeconds {
		return ReasonTimeGap, false
	}

	dist := geo.Distance(prev, cur)
	if dist > p.MaxJumpM {
		return ReasonDistance, false
	}
	if geo.SpeedMph(prev, cur) > p.MaxSpeedMph {
		return ReasonSpeed, false
	}
	if dist < p.MinMoveM {
		return ReasonMovement, false
	}
	return "", true
}

// ConnectedSegments derives segments from adjacent connected pairs.
func ConnectedSegments(classified []ClassifiedFix) []Segment {
	var segments []Segment
	for i := 1; i < len(classified); i++ {
		if !classified[i].ConnectsToPrevious {
			continue
		}
		segments = append(segments, Segment{
			Start:     classified[i-1],
			End:       classified[i],
			DistanceM: geo.Distance(classified[i-1].GeoFix, classified[i].GeoFix),
		})
	}
	return segments
}

// TotalDistance sums connected-segment distances in meters.
func TotalDistance(classified []ClassifiedFix) float64 {
	var total float64
	for _, s := range ConnectedSegments(classified) {
		total += s.DistanceM
	}
	return total
}

// SessionBoundaries returns the indices where a new session starts.
func SessionBoundaries(classified []ClassifiedFix) []int {
	var bounds []int
	for i, cf := range classified {
		if cf.StartsNewSession {
			bounds = append(bounds, i)
		}
	}
	return bounds
}
