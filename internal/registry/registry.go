// Package registry implements the Domain Registry / Admission component:
// domain canonicalization and the admission check that keeps at most one
// active job per canonical domain.
package registry

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/joshfom/yello-crawl/internal/common"
	"github.com/joshfom/yello-crawl/internal/interfaces"
	"github.com/joshfom/yello-crawl/internal/models"
)

// Registry canonicalizes domains and admits new jobs against the Job store.
type Registry struct {
	jobs     interfaces.JobStore
	logger   arbor.ILogger
	validate *validator.Validate
}

// New constructs a Registry over the given Job store.
func New(jobs interfaces.JobStore, logger arbor.ILogger) *Registry {
	return &Registry{jobs: jobs, logger: logger, validate: validator.New()}
}

// admissionInput is validated before a Job is admitted. Concurrency/delay
// are optional here (zero passes) because values outside [1,20]/[0.1,10.0]
// are clamped rather than rejected (see ClampConcurrentRequests /
// ClampRequestDelay); the validator rejects only a missing name/domain and
// concurrency/delay values below 0 or above 1000.
type admissionInput struct {
	Name               string  `validate:"required"`
	Domain             string  `validate:"required"`
	ConcurrentRequests int     `validate:"omitempty,min=0,max=1000"`
	RequestDelay       float64 `validate:"omitempty,min=0,max=1000"`
}

// Canonicalize reduces a raw domain or URL to its canonical form: strip
// scheme, strip a leading "www.", lowercase, and remap any host whose first
// label is "yellowpages" to use the "yello" label instead (so
// yellowpages.ae and yello.ae compare equal). It is a pure function and is
// idempotent: Canonicalize(Canonicalize(x)) == Canonicalize(x).
func Canonicalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "http://" + candidate
	}

	host := candidate
	if parsed, err := url.Parse(candidate); err == nil && parsed.Host != "" {
		host = parsed.Host
	} else {
		// Not a well-formed URL; fall back to treating the raw input as a
		// bare host after stripping any scheme-like prefix by hand.
		if idx := strings.Index(raw, "://"); idx >= 0 {
			host = raw[idx+3:]
		} else {
			host = raw
		}
		if idx := strings.IndexAny(host, "/?#"); idx >= 0 {
			host = host[:idx]
		}
	}

	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")

	if strings.HasPrefix(host, "yellowpages.") {
		host = "yello." + strings.TrimPrefix(host, "yellowpages.")
	}

	return host
}

// Admit canonicalizes domain and, if no pending/running/paused job already
// holds it, creates and persists a new pending Job. Otherwise it returns a
// DomainBusyError naming the conflicting job.
func (r *Registry) Admit(ctx context.Context, name, domain string, concurrentRequests int, requestDelay float64) (*models.Job, error) {
	input := admissionInput{Name: name, Domain: domain, ConcurrentRequests: concurrentRequests, RequestDelay: requestDelay}
	if err := r.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid job admission request: %w", err)
	}

	canonical := Canonicalize(domain)
	if canonical == "" {
		return nil, fmt.Errorf("invalid domain: %q", domain)
	}

	existing, err := r.jobs.FindActiveByDomain(ctx, canonical)
	if err != nil {
		return nil, fmt.Errorf("check domain admission for %s: %w", canonical, err)
	}
	if existing != nil {
		return nil, &interfaces.DomainBusyError{ExistingDomain: existing.CanonicalDomain(), ExistingJobID: existing.ID}
	}

	job := &models.Job{
		ID:                 common.NewJobID(),
		Name:               name,
		Domains:            []string{canonical},
		ConcurrentRequests: ClampConcurrentRequests(concurrentRequests),
		RequestDelay:       ClampRequestDelay(requestDelay),
		Status:             models.JobStatusPending,
		CreatedAt:          time.Now(),
	}

	if err := r.jobs.Insert(ctx, job); err != nil {
		return nil, fmt.Errorf("persist admitted job for %s: %w", canonical, err)
	}

	r.logger.Info().Str("job_id", job.ID).Str("domain", canonical).Msg("job admitted")
	return job, nil
}

// Available returns the catalog entries whose canonical domain is not
// currently held by any active job.
func (r *Registry) Available(ctx context.Context, catalog *models.Catalog) ([]models.CatalogCountry, error) {
	held := make(map[string]bool)

	activeJobs, err := r.jobs.List(ctx, interfaces.JobListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list jobs for availability check: %w", err)
	}
	for _, job := range activeJobs {
		if job.IsActive() {
			held[job.CanonicalDomain()] = true
		}
	}

	var available []models.CatalogCountry
	for _, region := range catalog.Countries {
		for _, country := range region.Countries {
			if !held[Canonicalize(country.Domain)] {
				available = append(available, country)
			}
		}
	}
	return available, nil
}

// ClampConcurrentRequests normalizes a requested concurrency to spec §3's
// [1,20] range, falling back to the configured default for zero/negative
// input. Exported so callers other than Admit (e.g. Scheduler.UpdateSettings)
// can apply the same normalization before persisting a job.
func ClampConcurrentRequests(v int) int {
	if v <= 0 {
		return common.DefaultConcurrentRequests
	}
	if v < common.MinConcurrentRequests {
		return common.MinConcurrentRequests
	}
	if v > common.MaxConcurrentRequests {
		return common.MaxConcurrentRequests
	}
	return v
}

// ClampRequestDelay normalizes a requested delay to spec §3's [0.1,10.0]
// range, falling back to the configured default for zero/negative input.
func ClampRequestDelay(v float64) float64 {
	if v <= 0 {
		return common.DefaultRequestDelay
	}
	if v < common.MinRequestDelay {
		return common.MinRequestDelay
	}
	if v > common.MaxRequestDelay {
		return common.MaxRequestDelay
	}
	return v
}
