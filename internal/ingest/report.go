package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/sector-mail-desk/internal/domain"
)

// ErrRunInProgress is returned when another run holds the run lock.
var ErrRunInProgress = errors.New("ingestion run already in progress")

// SectorError aborts a run: something outside per-message isolation failed
// while processing Sector.
type SectorError struct {
	Sector     domain.Sector
	Attempted  []domain.Sector
	Configured []string
	Err        error
}

func (e *SectorError) Error() string {
	return fmt.Sprintf("sector %s failed (configured: %s): %v", e.Sector, strings.Join(e.Configured, ","), e.Err)
}

func (e *SectorError) Unwrap() error { return e.Err }

// SectorReport counts what happened to one sector during a run.
type SectorReport struct {
	Sector            domain.Sector `json:"sector"`
	Skipped           bool          `json:"skipped"`
	SkipReason        string        `json:"skipReason,omitempty"`
	Listed            int           `json:"listed"`
	Created           int           `json:"created"`
	AlreadyProcessed  int           `json:"alreadyProcessed"`
	Duplicates        int           `json:"duplicates"`
	Rejected          int           `json:"rejected"`
	Failed            int           `json:"failed"`
	InvalidRemoved    int           `json:"invalidRemoved"`
	DuplicatesRemoved int           `json:"duplicatesRemoved"`
}

// RunReport summarizes one ingestion run.
type RunReport struct {
	RunID      string         `json:"runId"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Sectors    []SectorReport `json:"sectors"`
}

// Created totals tickets created across sectors.
func (r *RunReport) Created() int {
	total := 0
	for _, s := range r.Sectors {
		total += s.Created
	}
	return total
}
