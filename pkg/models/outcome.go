package models

import (
	"time"
)

// OutcomeStatus tags the terminal state of one (facility, year) fetch.
type OutcomeStatus string

const (
	// OutcomeSuccess: a complete series was obtained.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomePartial: a series was obtained with gaps; MissingPeriods lists them.
	OutcomePartial OutcomeStatus = "partial"
	// OutcomeFailure: no usable series; Reason explains why.
	OutcomeFailure OutcomeStatus = "failure"
)

// FetchOutcome is the unit of bookkeeping for batch operations: one
// terminal result per (facility, year). Failure is data here, never a
// panic or an error crossing the batch loop.
type FetchOutcome struct {
	FacilityID     string        `json:"facility_id"`
	Year           int           `json:"year"` // 0 for TMY requests
	Status         OutcomeStatus `json:"status"`
	Source         string        `json:"source,omitempty"` // provider that served the data, or "cache"
	MissingPeriods []Period      `json:"missing_periods,omitempty"`
	Reason         string        `json:"reason,omitempty"`
	CompletedAt    time.Time     `json:"completed_at"`
}

// Terminal reports whether the outcome represents a finished unit of work.
// The zero FetchOutcome is not terminal, which lets a report distinguish
// "not yet attempted" from "no data".
func (o FetchOutcome) Terminal() bool {
	switch o.Status {
	case OutcomeSuccess, OutcomePartial, OutcomeFailure:
		return true
	}
	return false
}

// BatchReport summarizes one batch run. A run is complete once every
// (facility, year) pair has a terminal outcome — not necessarily Success.
type BatchReport struct {
	RunID      string         `json:"run_id"`
	Total      int            `json:"total"`
	Processed  int            `json:"processed"`
	Succeeded  int            `json:"succeeded"`
	Partial    int            `json:"partial"`
	Failed     int            `json:"failed"`
	Pending    int            `json:"pending"` // pairs without a terminal outcome (interrupted runs)
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Outcomes   []FetchOutcome `json:"outcomes"`
}

// Complete reports whether every pair reached a terminal outcome.
func (r *BatchReport) Complete() bool {
	return r.Pending == 0 && r.Processed == r.Total
}
