package models

import "time"

// ExportLog is an optional per-batch outcome record for an ExportJob,
// written every time the pipeline persists its running counters (see
// internal/export).
type ExportLog struct {
	ID          string `badgerhold:"key"`
	ExportJobID string `badgerholdIndex:"ExportJobID"`

	Exported int
	Failed   int

	Timestamp time.Time
}
