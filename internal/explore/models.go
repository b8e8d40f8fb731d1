package explore

import (
	"backend-fogtrek/internal/classify"
	"backend-fogtrek/internal/stats"
)

// OfferResult reports what happened to an offered fix.
type OfferResult struct {
	Accepted            bool    `json:"accepted"`
	ConnectsToPrevious  bool    `json:"connects_to_previous"`
	StartsNewSession    bool    `json:"starts_new_session"`
	DisconnectionReason string  `json:"disconnection_reason,omitempty"`
	Stats               Summary `json:"stats"`
}

// Summary is the stats snapshot surfaced to clients, raw plus formatted.
type Summary struct {
	Total          stats.ExplorationStats `json:"total"`
	Session        stats.ExplorationStats `json:"session"`
	CurrentSession stats.SessionInfo      `json:"current_session"`
	Formatted      FormattedStats         `json:"formatted"`
}

type FormattedStats struct {
	TotalDistance   string `json:"total_distance"`
	TotalArea       string `json:"total_area"`
	TotalActiveTime string `json:"total_active_time"`
	SessionDistance string `json:"session_distance"`
	SessionArea     string `json:"session_area"`
	SessionTimer    string `json:"session_timer"`
}

// FixRequest is the inbound fix payload.
type FixRequest struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Timestamp int64   `json:"timestamp"`
}

// FeedEvent is what the stream hub broadcasts per retained fix.
type FeedEvent struct {
	DeviceID string                 `json:"device_id"`
	Fix      classify.ClassifiedFix `json:"fix"`
}
