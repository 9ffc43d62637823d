package domain

import "time"

type ScanStatus string

const (
	StatusQueued    ScanStatus = "queued"
	StatusRunning   ScanStatus = "running"
	StatusDone      ScanStatus = "done"
	StatusCancelled ScanStatus = "cancelled"
	StatusError     ScanStatus = "error"
)

// Terminal reports whether no further transition is possible.
func (s ScanStatus) Terminal() bool {
	return s == StatusDone || s == StatusCancelled || s == StatusError
}

type ScanType string

const (
	ScanDuplicates ScanType = "duplicates"
	ScanErrors     ScanType = "errors"
)

// Scope selects the slice of the catalog a scan walks.
type Scope struct {
	CityIDs   []int64 `json:"city_ids"`
	CountryID *int64  `json:"country_id,omitempty"`
}

// Counters are monotonically non-decreasing within a scan.
type Counters struct {
	HotelsLoaded    int `json:"hotels_loaded"`
	ComparisonsDone int `json:"comparisons_done"`
	FlagsFound      int `json:"flags_found"`
}

// UpstreamStats aggregates outbound call volume and latency across the process.
type UpstreamStats struct {
	RequestCount   int64   `json:"request_count"`
	AvgResponseMs  float64 `json:"avg_response_ms"`
	PeakResponseMs float64 `json:"peak_response_ms"`
}

// ResultRow is one reported duplicate group (or one flagged hotel in an
// error scan). Consumed as-is by the export layer.
type ResultRow struct {
	HotelName  string   `json:"hotel_name"`
	PrimaryID  int64    `json:"id1"`
	MatchedIDs []int64  `json:"id2"`
	Address    string   `json:"address,omitempty"`
	Stars      *int     `json:"stars,omitempty"`
	Confidence *float64 `json:"confidence_score,omitempty"`
	Flag       string   `json:"flag_type"`
	Reason     string   `json:"reason"`
}

// ScanSnapshot is a consistent point-in-time view of one scan's state.
// Rows is non-nil only once the scan is done.
type ScanSnapshot struct {
	ID          string        `json:"scan_id"`
	Type        ScanType      `json:"scan_type"`
	Scope       Scope         `json:"scope"`
	Status      ScanStatus    `json:"status"`
	Counters    Counters      `json:"counters"`
	ProgressPct int           `json:"progress_pct"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	FinishedAt  *time.Time    `json:"finished_at,omitempty"`
	Rows        []ResultRow   `json:"results,omitempty"`
	Stats       UpstreamStats `json:"stats"`
	Error       string        `json:"error,omitempty"`
}
