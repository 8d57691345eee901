// Package scheduler implements the Scrape Scheduler component (spec §4.3):
// the job state machine, per-job supervisor goroutines, and the bulk
// control-surface operations.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/joshfom/yello-crawl/internal/common"
	"github.com/joshfom/yello-crawl/internal/interfaces"
	"github.com/joshfom/yello-crawl/internal/models"
	"github.com/joshfom/yello-crawl/internal/registry"
)

// Service is the Scheduler implementation. It holds a process-local map of
// running supervisors; all durable state lives in the Job Store so a fresh
// process can reconstruct resume points after a restart.
type Service struct {
	store          interfaces.Store
	registry       *registry.Registry
	adapterFactory interfaces.AdapterFactory
	config         *common.SchedulerConfig
	logger         arbor.ILogger

	mu     sync.Mutex
	active map[string]*supervisor

	cron *cron.Cron
}

var _ interfaces.Scheduler = (*Service)(nil)

// New constructs a Service. adapterFactory builds a site Adapter for a
// job's canonical domain and base URL; it is injected so tests can supply a
// stub adapter without touching net/http.
func New(store interfaces.Store, reg *registry.Registry, adapterFactory interfaces.AdapterFactory, config *common.SchedulerConfig, logger arbor.ILogger) *Service {
	return &Service{
		store:          store,
		registry:       reg,
		adapterFactory: adapterFactory,
		config:         config,
		logger:         logger,
		active:         make(map[string]*supervisor),
	}
}

// StartBackgroundSweeps wires the optional robfig/cron stale-job sweep and
// (if configured) an automatic resume_network_paused sweep. Both are off by
// default; manual operator action is the primary path per spec §9.
func (s *Service) StartBackgroundSweeps() {
	if s.config.StaleSweepSchedule == "" {
		return
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.config.StaleSweepSchedule, func() {
		s.runStaleSweep(context.Background())
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("scheduler: failed to register stale-job sweep")
		return
	}
	s.cron.Start()
	s.logger.Info().Str("schedule", s.config.StaleSweepSchedule).Msg("scheduler: stale-job sweep registered")
}

// StopBackgroundSweeps halts the cron scheduler, if running.
func (s *Service) StopBackgroundSweeps() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
}

func (s *Service) runStaleSweep(ctx context.Context) {
	stale, err := s.store.Jobs().GetStale(ctx, s.config.StaleThreshold)
	if err != nil {
		s.logger.Warn().Err(err).Msg("scheduler: stale-job sweep failed")
		return
	}
	if len(stale) > 0 {
		s.logger.Warn().Int("count", len(stale)).Msg("scheduler: stale jobs detected")
	}

	if !s.config.AutoResumeNetworkPaused {
		return
	}
	if _, err := s.ResumeNetworkPaused(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("scheduler: auto resume_network_paused sweep failed")
	}
}

// CreateJob implements interfaces.Scheduler.CreateJob by delegating to the
// Domain Registry's admission check.
func (s *Service) CreateJob(ctx context.Context, name, domain string, concurrentRequests int, requestDelay float64) (*models.Job, error) {
	return s.registry.Admit(ctx, name, domain, concurrentRequests, requestDelay)
}

// Start transitions a pending or paused job to running and spawns its
// supervisor. It is a no-op error if the job is already active in-process.
func (s *Service) Start(ctx context.Context, jobID string) error {
	job, err := s.store.Jobs().Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("start job %s: %w", jobID, err)
	}

	switch job.Status {
	case models.JobStatusPending, models.JobStatusPaused:
	default:
		return fmt.Errorf("start job %s: illegal transition from %s", jobID, job.Status)
	}

	return s.launch(ctx, job)
}

// ForceStart stops any in-process supervisor for jobID, resets started_at,
// and re-enters running from any prior state, per spec §4.3.1.
func (s *Service) ForceStart(ctx context.Context, jobID string) error {
	s.stopSupervisor(jobID)

	job, err := s.store.Jobs().Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("force_start job %s: %w", jobID, err)
	}
	return s.launch(ctx, job)
}

func (s *Service) launch(ctx context.Context, job *models.Job) error {
	now := time.Now()
	job.Status = models.JobStatusRunning
	job.PauseReason = ""
	job.StartedAt = &now
	job.ResumedAt = nil
	job.LastHeartbeat = now
	if err := s.store.Jobs().Update(ctx, job); err != nil {
		return fmt.Errorf("persist running status for job %s: %w", job.ID, err)
	}

	adapter, err := s.adapterFactory(job.CanonicalDomain(), job.BaseURL)
	if err != nil {
		return fmt.Errorf("build adapter for job %s: %w", job.ID, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sv := &supervisor{
		jobID:   job.ID,
		store:   s.store,
		adapter: adapter,
		logger:  s.logger,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	s.active[job.ID] = sv
	s.mu.Unlock()

	common.SafeGoWithContext(runCtx, s.logger, "supervisor:"+job.ID, func() { sv.run(runCtx) })
	return nil
}

func (s *Service) stopSupervisor(jobID string) {
	s.mu.Lock()
	sv, ok := s.active[jobID]
	if ok {
		delete(s.active, jobID)
	}
	s.mu.Unlock()

	if ok {
		sv.stop()
	}
}

// Pause transitions a running job to paused(manual) and signals its
// supervisor to stop cooperatively.
func (s *Service) Pause(ctx context.Context, jobID string) error {
	job, err := s.store.Jobs().Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("pause job %s: %w", jobID, err)
	}
	if job.Status != models.JobStatusRunning {
		return fmt.Errorf("pause job %s: illegal transition from %s", jobID, job.Status)
	}

	now := time.Now()
	job.Status = models.JobStatusPaused
	job.PauseReason = models.PauseReasonManual
	job.PausedAt = &now
	if err := s.store.Jobs().Update(ctx, job); err != nil {
		return fmt.Errorf("persist paused status for job %s: %w", jobID, err)
	}

	s.stopSupervisor(jobID)
	return nil
}

// Resume transitions a paused job back to running and respawns its
// supervisor, which resumes from the last ProgressRecord.
func (s *Service) Resume(ctx context.Context, jobID string) error {
	job, err := s.store.Jobs().Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("resume job %s: %w", jobID, err)
	}
	if job.Status != models.JobStatusPaused {
		return fmt.Errorf("resume job %s: illegal transition from %s", jobID, job.Status)
	}

	now := time.Now()
	job.ResumedAt = &now
	job.PauseReason = ""
	job.PausedAt = nil
	if err := s.store.Jobs().Update(ctx, job); err != nil {
		return fmt.Errorf("persist resumed status for job %s: %w", jobID, err)
	}

	return s.launch(ctx, job)
}

// Cancel transitions a running or paused job to cancelled.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	job, err := s.store.Jobs().Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("cancel job %s: %w", jobID, err)
	}
	if job.Status != models.JobStatusRunning && job.Status != models.JobStatusPaused {
		return fmt.Errorf("cancel job %s: illegal transition from %s", jobID, job.Status)
	}

	job.Status = models.JobStatusCancelled
	if err := s.store.Jobs().Update(ctx, job); err != nil {
		return fmt.Errorf("persist cancelled status for job %s: %w", jobID, err)
	}

	s.stopSupervisor(jobID)
	return nil
}

// Status returns the current Job document.
func (s *Service) Status(ctx context.Context, jobID string) (*models.Job, error) {
	return s.store.Jobs().Get(ctx, jobID)
}

// ListJobs lists jobs matching opts.
func (s *Service) ListJobs(ctx context.Context, opts interfaces.JobListOptions) ([]*models.Job, error) {
	return s.store.Jobs().List(ctx, opts)
}

// PauseAll implements spec §4.3.4: set all running jobs to
// paused(manual) and signal their supervisors.
func (s *Service) PauseAll(ctx context.Context) (int, error) {
	running, err := s.store.Jobs().List(ctx, interfaces.JobListOptions{Status: models.JobStatusRunning})
	if err != nil {
		return 0, fmt.Errorf("pause_all: list running jobs: %w", err)
	}

	count := 0
	for _, job := range running {
		if err := s.Pause(ctx, job.ID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("pause_all: failed to pause job")
			continue
		}
		count++
	}
	return count, nil
}

// ResumeAll resumes every paused job, regardless of pause_reason.
func (s *Service) ResumeAll(ctx context.Context) (int, error) {
	return s.resumeMatching(ctx, func(*models.Job) bool { return true })
}

// ResumeNetworkPaused resumes only jobs paused with pause_reason=network_error.
func (s *Service) ResumeNetworkPaused(ctx context.Context) (int, error) {
	return s.resumeMatching(ctx, func(job *models.Job) bool {
		return job.PauseReason == models.PauseReasonNetworkError
	})
}

func (s *Service) resumeMatching(ctx context.Context, match func(*models.Job) bool) (int, error) {
	paused, err := s.store.Jobs().List(ctx, interfaces.JobListOptions{Status: models.JobStatusPaused})
	if err != nil {
		return 0, fmt.Errorf("resume: list paused jobs: %w", err)
	}

	count := 0
	for _, job := range paused {
		if !match(job) {
			continue
		}
		if err := s.Resume(ctx, job.ID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("resume: failed to resume job")
			continue
		}
		count++
	}
	return count, nil
}

// RestartZeroExtraction implements spec §4.3.4 / the original's
// restart_jobs.py: terminal jobs whose businesses_scraped == 0 are reset to
// pending with cleared cursors.
func (s *Service) RestartZeroExtraction(ctx context.Context) (int, error) {
	count := 0
	for _, status := range []models.JobStatus{models.JobStatusCompleted, models.JobStatusCancelled, models.JobStatusFailed} {
		jobs, err := s.store.Jobs().List(ctx, interfaces.JobListOptions{Status: status})
		if err != nil {
			return count, fmt.Errorf("restart_zero_extraction: list %s jobs: %w", status, err)
		}

		for _, job := range jobs {
			if job.BusinessesScraped != 0 {
				continue
			}

			job.Status = models.JobStatusPending
			job.PauseReason = ""
			job.StartedAt = nil
			job.PausedAt = nil
			job.ResumedAt = nil
			job.CompletedAt = nil
			job.CurrentCity = ""
			job.CurrentPage = 0
			job.LastProgressTimestamp = nil
			job.CitiesCompleted = 0

			if err := s.store.Jobs().Update(ctx, job); err != nil {
				s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("restart_zero_extraction: failed to reset job")
				continue
			}
			count++
		}
	}
	return count, nil
}

// StatusSummary reports job counts per status.
func (s *Service) StatusSummary(ctx context.Context) (*interfaces.StatusSummary, error) {
	summary := &interfaces.StatusSummary{}
	for status, dest := range map[models.JobStatus]*int{
		models.JobStatusPending:   &summary.Pending,
		models.JobStatusRunning:   &summary.Running,
		models.JobStatusPaused:    &summary.Paused,
		models.JobStatusCancelled: &summary.Cancelled,
		models.JobStatusCompleted: &summary.Completed,
		models.JobStatusFailed:    &summary.Failed,
	} {
		count, err := s.store.Jobs().Count(ctx, interfaces.JobListOptions{Status: status})
		if err != nil {
			return nil, fmt.Errorf("status_summary: count %s: %w", status, err)
		}
		*dest = count
	}
	return summary, nil
}

// SeedFromCatalog implements spec §6 catalog seeding: one job per catalog
// country, skipping (or overwriting) domains already held by an active job.
func (s *Service) SeedFromCatalog(ctx context.Context, catalog *models.Catalog, overwrite bool) (*interfaces.SeedResult, error) {
	result := &interfaces.SeedResult{}

	for _, region := range catalog.Countries {
		for _, country := range region.Countries {
			canonical := registry.Canonicalize(country.Domain)

			existing, err := s.store.Jobs().FindActiveByDomain(ctx, canonical)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", canonical, err))
				continue
			}
			if existing != nil {
				if !overwrite {
					result.Skipped++
					continue
				}
				if err := s.Cancel(ctx, existing.ID); err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("%s: cancel existing job: %v", canonical, err))
					continue
				}
			}

			job, err := s.registry.Admit(ctx, country.Name, country.Domain, common.DefaultConcurrentRequests, common.DefaultRequestDelay)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", canonical, err))
				continue
			}

			job.Country = country.Name
			job.Region = region.Region
			job.BaseURL = country.URL
			job.IsSeeded = true
			if err := s.store.Jobs().Update(ctx, job); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: persist seed metadata: %v", canonical, err))
				continue
			}

			result.Created++
		}
	}
	return result, nil
}

// UpdateSettings updates a job's concurrency/delay settings. Either pointer
// may be nil to leave that field unchanged.
func (s *Service) UpdateSettings(ctx context.Context, jobID string, concurrentRequests *int, requestDelay *float64) error {
	job, err := s.store.Jobs().Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("update_settings job %s: %w", jobID, err)
	}

	if concurrentRequests != nil {
		job.ConcurrentRequests = registry.ClampConcurrentRequests(*concurrentRequests)
	}
	if requestDelay != nil {
		job.RequestDelay = registry.ClampRequestDelay(*requestDelay)
	}

	return s.store.Jobs().Update(ctx, job)
}

// RecoverOnStartup implements spec §9's restart recovery: every job left
// running by a prior process is moved to paused(server_restart). It does
// not auto-spawn supervisors.
func (s *Service) RecoverOnStartup(ctx context.Context) (int, error) {
	return s.store.Jobs().MarkRunningAsPaused(ctx, models.PauseReasonServerRestart)
}
