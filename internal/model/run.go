package model

import "time"

// RunStatus represents the current state of a census run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one persisted pipeline execution for a single survey year.
type Run struct {
	ID        string      `json:"id"`
	Year      string      `json:"year"`
	Dataset   string      `json:"dataset"`
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunSummary holds the record counts and asset total of a finished run.
type RunSummary struct {
	Files      int            `json:"files" yaml:"files"`
	Records    int            `json:"records" yaml:"records"`
	Extracted  int            `json:"extracted" yaml:"extracted"`
	Skipped    int            `json:"skipped" yaml:"skipped"`
	Filtered   int            `json:"filtered" yaml:"filtered"`
	AssetTotal int64          `json:"asset_total" yaml:"asset_total"`
	Reasons    map[string]int `json:"reasons,omitempty" yaml:"reasons,omitempty"`
}

// AggregateEntry is one grouped asset total.
type AggregateEntry struct {
	Dimension Field  `json:"dimension"`
	Key       string `json:"key"`
	Total     int64  `json:"total"`
}
