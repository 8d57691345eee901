package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/joshfom/yello-crawl/internal/interfaces"
	"github.com/joshfom/yello-crawl/internal/models"
)

// JobStorage implements interfaces.JobStore over badgerhold.
//
// IncrementCounters guards its read-modify-write with a single store-wide mutex
// because badgerhold has no native atomic field increment; this mirrors the
// same limitation (and the same locked-read-modify-write workaround) the
// teacher's own UpdateProgressCountersAtomic documents.
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger

	countersMu sync.Mutex
}

// NewJobStorage constructs a JobStorage over the given BadgerDB.
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) *JobStorage {
	return &JobStorage{db: db, logger: logger}
}

var _ interfaces.JobStore = (*JobStorage)(nil)

func (s *JobStorage) Insert(ctx context.Context, job *models.Job) error {
	if err := s.db.Store().Insert(job.ID, job); err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

func (s *JobStorage) Get(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return &job, nil
}

func (s *JobStorage) Update(ctx context.Context, job *models.Job) error {
	if err := s.db.Store().Update(job.ID, job); err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	return nil
}

func (s *JobStorage) Delete(ctx context.Context, jobID string) error {
	if err := s.db.Store().Delete(jobID, &models.Job{}); err != nil {
		return fmt.Errorf("delete job %s: %w", jobID, err)
	}
	return nil
}

func (s *JobStorage) buildQuery(opts interfaces.JobListOptions) *badgerhold.Query {
	query := badgerhold.Where("ID").Ne("")
	if opts.Status != "" {
		query = query.And("Status").Eq(opts.Status)
	}
	if opts.Domain != "" {
		query = query.And("Domains").Contains(opts.Domain)
	}
	if opts.OrderBy != "" {
		query = query.SortBy(opts.OrderBy)
	} else {
		query = query.SortBy("CreatedAt")
	}
	if opts.OrderDir == "" || opts.OrderDir == "DESC" || opts.OrderDir == "desc" {
		query = query.Reverse()
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Skip(opts.Offset)
	}
	return query
}

func (s *JobStorage) List(ctx context.Context, opts interfaces.JobListOptions) ([]*models.Job, error) {
	var jobs []*models.Job
	if err := s.db.Store().Find(&jobs, s.buildQuery(opts)); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

func (s *JobStorage) Count(ctx context.Context, opts interfaces.JobListOptions) (int, error) {
	count, err := s.db.Store().Count(&models.Job{}, s.buildQuery(opts))
	if err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return count, nil
}

// FindActiveByDomain returns the job currently holding the canonical domain,
// i.e. one whose status is in {pending, running, paused}. This is the
// read half of the read-modify-insert admission check in internal/registry.
func (s *JobStorage) FindActiveByDomain(ctx context.Context, canonicalDomain string) (*models.Job, error) {
	var jobs []*models.Job
	query := badgerhold.Where("Domains").Contains(canonicalDomain).
		And("Status").In(models.JobStatusPending, models.JobStatusRunning, models.JobStatusPaused)
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("find active job for domain %s: %w", canonicalDomain, err)
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return jobs[0], nil
}

// IncrementCounters performs a locked read-modify-write on TotalBusinesses
// and BusinessesScraped. The mutex serializes concurrent calls for any job
// in this process; across processes badgerhold's own transaction still
// prevents a torn write, it just doesn't prevent the lost-update race this
// mutex closes.
func (s *JobStorage) IncrementCounters(ctx context.Context, jobID string, totalBusinessesDelta, businessesScrapedDelta int) error {
	s.countersMu.Lock()
	defer s.countersMu.Unlock()

	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return interfaces.ErrNotFound
		}
		return fmt.Errorf("get job %s for counter update: %w", jobID, err)
	}

	job.TotalBusinesses += totalBusinessesDelta
	job.BusinessesScraped += businessesScrapedDelta

	if err := s.db.Store().Update(jobID, &job); err != nil {
		return fmt.Errorf("update counters for job %s: %w", jobID, err)
	}
	return nil
}

func (s *JobStorage) UpdateHeartbeat(ctx context.Context, jobID string) error {
	s.countersMu.Lock()
	defer s.countersMu.Unlock()

	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return interfaces.ErrNotFound
		}
		return fmt.Errorf("get job %s for heartbeat: %w", jobID, err)
	}
	job.LastHeartbeat = time.Now()
	if err := s.db.Store().Update(jobID, &job); err != nil {
		return fmt.Errorf("update heartbeat for job %s: %w", jobID, err)
	}
	return nil
}

func (s *JobStorage) GetStale(ctx context.Context, staleThreshold time.Duration) ([]*models.Job, error) {
	cutoff := time.Now().Add(-staleThreshold)
	var jobs []*models.Job
	query := badgerhold.Where("Status").Eq(models.JobStatusRunning).
		And("LastHeartbeat").Lt(cutoff)
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("find stale jobs: %w", err)
	}
	return jobs, nil
}

// MarkRunningAsPaused moves every job left in status=running to paused with
// the given reason. Grounded on the teacher's MarkRunningJobsAsPending,
// adapted to the pause/resume vocabulary this spec uses instead of the
// teacher's pending/running vocabulary.
func (s *JobStorage) MarkRunningAsPaused(ctx context.Context, reason models.PauseReason) (int, error) {
	var jobs []*models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("Status").Eq(models.JobStatusRunning)); err != nil {
		return 0, fmt.Errorf("find running jobs: %w", err)
	}

	now := time.Now()
	count := 0
	for _, job := range jobs {
		job.Status = models.JobStatusPaused
		job.PauseReason = reason
		job.PausedAt = &now
		if err := s.db.Store().Update(job.ID, job); err != nil {
			return count, fmt.Errorf("pause job %s on recovery: %w", job.ID, err)
		}
		count++
	}
	return count, nil
}
