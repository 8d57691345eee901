package models

import "time"

// JobStatus is the lifecycle state of a Job. See internal/scheduler for the
// permitted state transitions.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// PauseReason records why a Job transitioned to paused.
type PauseReason string

const (
	PauseReasonManual        PauseReason = "manual"
	PauseReasonNetworkError  PauseReason = "network_error"
	PauseReasonServerRestart PauseReason = "server_restart"
)

// Job is a crawl targeting exactly one site.
//
// Domains is a single-element slice, preserved for historical reasons: early
// revisions of this system allowed multiple domains per job, and the field
// shape was kept so stored records and catalog-seeded jobs don't need a
// migration. create_job rejects more than one domain.
type Job struct {
	ID    string   `badgerhold:"key"`
	Name  string   `badgerholdIndex:"Name"`
	Domains []string

	ConcurrentRequests int
	RequestDelay       float64

	Status      JobStatus `badgerholdIndex:"Status"`
	PauseReason PauseReason

	CreatedAt   time.Time `badgerholdIndex:"CreatedAt"`
	StartedAt   *time.Time
	PausedAt    *time.Time
	ResumedAt   *time.Time
	CompletedAt *time.Time

	TotalCities      int
	CitiesCompleted  int
	TotalBusinesses  int
	BusinessesScraped int

	CurrentDomain         string
	CurrentCity           string
	CurrentPage           int
	LastProgressTimestamp *time.Time

	Errors []string

	LastHeartbeat time.Time

	// Optional seeding metadata, populated by seed_from_catalog.
	Country  string
	Region   string
	BaseURL  string
	IsSeeded bool
}

// CanonicalDomain returns the job's single configured domain, or empty
// string if none is set. Jobs are always single-domain by construction
// (see create_job / admission), so this is safe to call without checking
// len(Domains) at call sites.
func (j *Job) CanonicalDomain() string {
	if len(j.Domains) == 0 {
		return ""
	}
	return j.Domains[0]
}

// AppendError appends an error message to the audit trail.
func (j *Job) AppendError(msg string) {
	j.Errors = append(j.Errors, msg)
}

// IsActive reports whether the job currently holds its domain (i.e. is in a
// state that blocks another job for the same canonical domain from being
// admitted).
func (j *Job) IsActive() bool {
	switch j.Status {
	case JobStatusPending, JobStatusRunning, JobStatusPaused:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the job is in one of the three terminal states.
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusCancelled, JobStatusFailed:
		return true
	default:
		return false
	}
}
