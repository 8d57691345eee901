package interfaces

import (
	"context"

	"github.com/joshfom/yello-crawl/internal/models"
)

// DomainBusyError is returned by admission when the canonical domain is
// already held by an active job.
type DomainBusyError struct {
	ExistingDomain string
	ExistingJobID  string
}

func (e *DomainBusyError) Error() string {
	return "domain busy: " + e.ExistingDomain + " held by job " + e.ExistingJobID
}

// StatusSummary reports job counts per status, returned by status_summary.
type StatusSummary struct {
	Pending   int
	Running   int
	Paused    int
	Cancelled int
	Completed int
	Failed    int
}

// SeedResult reports the outcome of seed_from_catalog.
type SeedResult struct {
	Created int
	Skipped int
	Errors  []string
}

// AdapterFactory constructs a site Adapter for a job's base URL. Kept as a
// function type (not a struct method) so the scheduler can be unit tested
// against a stub adapter without touching net/http.
type AdapterFactory func(canonicalDomain, baseURL string) (Adapter, error)

// Scheduler is the control surface named in spec §6.
type Scheduler interface {
	CreateJob(ctx context.Context, name, domain string, concurrentRequests int, requestDelay float64) (*models.Job, error)
	Start(ctx context.Context, jobID string) error
	ForceStart(ctx context.Context, jobID string) error
	Pause(ctx context.Context, jobID string) error
	Resume(ctx context.Context, jobID string) error
	Cancel(ctx context.Context, jobID string) error
	Status(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, opts JobListOptions) ([]*models.Job, error)

	PauseAll(ctx context.Context) (int, error)
	ResumeAll(ctx context.Context) (int, error)
	ResumeNetworkPaused(ctx context.Context) (int, error)
	RestartZeroExtraction(ctx context.Context) (int, error)
	StatusSummary(ctx context.Context) (*StatusSummary, error)

	SeedFromCatalog(ctx context.Context, catalog *models.Catalog, overwrite bool) (*SeedResult, error)
	UpdateSettings(ctx context.Context, jobID string, concurrentRequests *int, requestDelay *float64) error

	// RecoverOnStartup moves every job left in status=running by a prior
	// process crash to paused(server_restart). It does not auto-resume them.
	RecoverOnStartup(ctx context.Context) (int, error)
}
