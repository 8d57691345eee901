package models

import "time"

// ProgressRecord is an append-only checkpoint emitted by a supervisor after
// each fully processed listing page. It is never mutated after insert; the
// supervisor reads the most recent record for a job to locate the resume
// cursor on restart.
type ProgressRecord struct {
	ID    string `badgerhold:"key"`
	JobID string `badgerholdIndex:"JobID"`

	Domain string
	City   string
	Page   int

	BusinessesFound   int
	NewBusinesses     int
	BusinessesScraped int

	Timestamp time.Time
}
