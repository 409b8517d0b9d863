package delivery

import "time"

// StatsSnapshot is a point-in-time copy of a Deliverer's counters.
type StatsSnapshot struct {
	Sends           int64 `json:"sends"`
	Edits           int64 `json:"edits"`
	Chunks          int64 `json:"chunks"`
	NotModified     int64 `json:"not_modified"`
	Throttled       int64 `json:"throttled"`
	Retries         int64 `json:"retries"`
	Resplits        int64 `json:"resplits"`
	MarkupFallbacks int64 `json:"markup_fallbacks"`
	Truncations     int64 `json:"truncations"`
	Failures        int64 `json:"failures"`
	LimiterWaits    int64 `json:"limiter_waits"`
}

// StatsRecord is a snapshot taken at a point in time.
type StatsRecord struct {
	At    time.Time     `json:"at"`
	Stats StatsSnapshot `json:"stats"`
}
