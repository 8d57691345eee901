// Package export implements the Export Pipeline component (spec §4.5):
// streaming stored Business records to an external HTTP endpoint.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/joshfom/yello-crawl/internal/common"
	"github.com/joshfom/yello-crawl/internal/interfaces"
	"github.com/joshfom/yello-crawl/internal/models"
)

const checkpointEvery = 10

// Pipeline is the ExportPipeline implementation. Structurally parallel to
// the scrape supervisor (cooperative cancellation, periodic checkpoint) but
// simpler: a single paged Business cursor, no nested city/page state.
type Pipeline struct {
	store    interfaces.Store
	logger   arbor.ILogger
	client   *http.Client
	validate *validator.Validate

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

var _ interfaces.ExportPipeline = (*Pipeline)(nil)

// New constructs a Pipeline.
func New(store interfaces.Store, logger arbor.ILogger) *Pipeline {
	return &Pipeline{
		store:    store,
		logger:   logger,
		client:   &http.Client{Timeout: common.DefaultRequestTimeout},
		validate: validator.New(),
		active:   make(map[string]context.CancelFunc),
	}
}

// exportConfigInput mirrors the fields of models.ExportConfig that Create
// rejects outright rather than defaulting or clamping.
type exportConfigInput struct {
	EndpointURL   string `validate:"required,url"`
	RequestMethod string `validate:"required,oneof=POST PUT"`
	BatchSize     int    `validate:"omitempty,min=1,max=10000"`
}

// Create persists a new ExportJob in status=pending, optionally starting it
// immediately.
func (p *Pipeline) Create(ctx context.Context, config models.ExportConfig, autoStart bool) (*models.ExportJob, error) {
	if config.RequestMethod == "" {
		config.RequestMethod = models.RequestMethodPOST
	}
	if config.BatchSize <= 0 {
		config.BatchSize = common.DefaultExportBatchSize
	}

	input := exportConfigInput{
		EndpointURL:   config.EndpointURL,
		RequestMethod: string(config.RequestMethod),
		BatchSize:     config.BatchSize,
	}
	if err := p.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid export config: %w", err)
	}

	job := &models.ExportJob{
		ID:        common.NewExportJobID(),
		Config:    config,
		Status:    models.ExportStatusPending,
		CreatedAt: time.Now(),
	}
	if err := p.store.ExportJobs().Insert(ctx, job); err != nil {
		return nil, fmt.Errorf("create export job: %w", err)
	}

	if autoStart {
		if err := p.Start(ctx, job.ID); err != nil {
			return job, err
		}
	}
	return job, nil
}

// Start marks the job running, counts its total records, and spawns the
// export goroutine.
func (p *Pipeline) Start(ctx context.Context, jobID string) error {
	job, err := p.store.ExportJobs().Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("start export job %s: %w", jobID, err)
	}
	if job.Status == models.ExportStatusRunning {
		return fmt.Errorf("start export job %s: already running", jobID)
	}

	total, err := p.store.Businesses().Count(ctx, businessListOptions(job.Config.Filters))
	if err != nil {
		return fmt.Errorf("count records for export job %s: %w", jobID, err)
	}

	now := time.Now()
	job.Status = models.ExportStatusRunning
	job.StartedAt = &now
	job.TotalRecords = total
	if err := p.store.ExportJobs().Update(ctx, job); err != nil {
		return fmt.Errorf("persist running status for export job %s: %w", jobID, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.active[jobID] = cancel
	p.mu.Unlock()

	common.SafeGoWithContext(runCtx, p.logger, "export:"+jobID, func() { p.run(runCtx, jobID) })
	return nil
}

// Stop signals the export goroutine to stop cooperatively.
func (p *Pipeline) Stop(ctx context.Context, jobID string) error {
	p.mu.Lock()
	cancel, ok := p.active[jobID]
	if ok {
		delete(p.active, jobID)
	}
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("stop export job %s: not running", jobID)
	}
	cancel()

	job, err := p.store.ExportJobs().Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("stop export job %s: %w", jobID, err)
	}
	job.Status = models.ExportStatusCancelled
	return p.store.ExportJobs().Update(ctx, job)
}

// Delete removes the ExportJob document.
func (p *Pipeline) Delete(ctx context.Context, jobID string) error {
	return p.store.ExportJobs().Delete(ctx, jobID)
}

// Get returns the current ExportJob document.
func (p *Pipeline) Get(ctx context.Context, jobID string) (*models.ExportJob, error) {
	return p.store.ExportJobs().Get(ctx, jobID)
}

// List lists export jobs.
func (p *Pipeline) List(ctx context.Context, limit, offset int) ([]*models.ExportJob, error) {
	return p.store.ExportJobs().List(ctx, limit, offset)
}

// GetLogs returns the per-checkpoint ExportLog records for a job.
func (p *Pipeline) GetLogs(ctx context.Context, jobID string) ([]*models.ExportLog, error) {
	return p.store.ExportLogs().ListByExportJob(ctx, jobID)
}

func businessListOptions(filters *models.ExportFilters) interfaces.BusinessListOptions {
	opts := interfaces.BusinessListOptions{OrderBy: "ScrapedAt"}
	if filters == nil {
		return opts
	}
	opts.City = filters.City
	opts.Category = filters.BusinessType
	if filters.DateRange != nil {
		if filters.DateRange.Start != nil {
			opts.ScrapedAfter = *filters.DateRange.Start
		}
		if filters.DateRange.End != nil {
			opts.ScrapedBefore = *filters.DateRange.End
		}
	}
	return opts
}

func (p *Pipeline) run(ctx context.Context, jobID string) {
	log := p.logger.WithCorrelationId(jobID)

	job, err := p.store.ExportJobs().Get(ctx, jobID)
	if err != nil {
		log.Error().Err(err).Msg("export: failed to load job, aborting")
		return
	}

	limiter := rate.NewLimiter(rate.Every(time.Duration(job.Config.RateLimitDelay*float64(time.Second))), 1)

	const pageSize = 100
	offset := 0
	sinceLastCheckpoint := 0

	for {
		select {
		case <-ctx.Done():
			p.finish(ctx, job, models.ExportStatusCancelled, "")
			return
		default:
		}

		opts := businessListOptions(job.Config.Filters)
		opts.Limit = pageSize
		opts.Offset = offset

		businesses, err := p.store.Businesses().List(ctx, opts)
		if err != nil {
			p.finish(ctx, job, models.ExportStatusFailed, err.Error())
			return
		}
		if len(businesses) == 0 {
			p.finish(ctx, job, models.ExportStatusCompleted, "")
			return
		}

		for _, business := range businesses {
			select {
			case <-ctx.Done():
				p.finish(ctx, job, models.ExportStatusCancelled, "")
				return
			default:
			}

			if err := p.deliver(job.Config, business); err != nil {
				job.FailedRecords++
				log.Warn().Err(err).Str("business_id", business.ID).Msg("export: delivery failed")
			} else {
				job.ExportedRecords++
				exportedAt := time.Now()
				if err := p.store.Businesses().MarkExported(ctx, business.ID, exportedAt, "export"); err != nil {
					log.Warn().Err(err).Str("business_id", business.ID).Msg("export: failed to mark exported")
				}
			}

			sinceLastCheckpoint++
			if sinceLastCheckpoint >= checkpointEvery {
				p.checkpoint(ctx, job)
				sinceLastCheckpoint = 0
			}

			if err := limiter.Wait(ctx); err != nil {
				p.finish(ctx, job, models.ExportStatusCancelled, "")
				return
			}
		}

		offset += len(businesses)
	}
}

func (p *Pipeline) checkpoint(ctx context.Context, job *models.ExportJob) {
	if err := p.store.ExportJobs().Update(ctx, job); err != nil {
		p.logger.Warn().Err(err).Str("job_id", job.ID).Msg("export: failed to persist checkpoint")
	}

	entry := &models.ExportLog{
		ExportJobID: job.ID,
		Exported:    job.ExportedRecords,
		Failed:      job.FailedRecords,
		Timestamp:   time.Now(),
	}
	if err := p.store.ExportLogs().Insert(ctx, entry); err != nil {
		p.logger.Warn().Err(err).Str("job_id", job.ID).Msg("export: failed to persist export log")
	}
}

func (p *Pipeline) finish(ctx context.Context, job *models.ExportJob, status models.ExportStatus, errMsg string) {
	p.mu.Lock()
	delete(p.active, job.ID)
	p.mu.Unlock()

	now := time.Now()
	job.Status = status
	job.CompletedAt = &now
	job.ErrorMessage = errMsg

	if err := p.store.ExportJobs().Update(ctx, job); err != nil {
		p.logger.Error().Err(err).Str("job_id", job.ID).Msg("export: failed to persist terminal status")
	}
	p.checkpoint(ctx, job)

	p.logger.WithCorrelationId(job.ID).Info().Str("status", string(status)).Msg("export job finished")
}

// deliver POSTs or PUTs a single Business record, projected to
// config.Fields if non-empty, with Bearer auth, grounded on the original's
// _send_to_api contract (2xx is success).
func (p *Pipeline) deliver(config models.ExportConfig, business *models.Business) error {
	payload, err := projectFields(business, config.Fields)
	if err != nil {
		return fmt.Errorf("encode business %s: %w", business.ID, err)
	}

	method := string(config.RequestMethod)
	if method == "" {
		method = string(models.RequestMethodPOST)
	}

	req, err := http.NewRequest(method, config.EndpointURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request for business %s: %w", business.ID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if config.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+config.AuthToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver business %s: %w", business.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("deliver business %s: unexpected status %d", business.ID, resp.StatusCode)
	}
	return nil
}

// projectFields marshals business to JSON and, if fields is non-empty,
// restricts the output to those top-level keys.
func projectFields(business *models.Business, fields []string) ([]byte, error) {
	full, err := json.Marshal(business)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return full, nil
	}

	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(full, &asMap); err != nil {
		return nil, err
	}

	projected := make(map[string]json.RawMessage, len(fields))
	for _, field := range fields {
		if value, ok := asMap[field]; ok {
			projected[field] = value
		}
	}
	return json.Marshal(projected)
}

// TestConnection performs a lightweight probe against endpointURL with the
// same Authorization convention as real delivery, grounded on the
// original's _send_to_api request construction.
func (p *Pipeline) TestConnection(ctx context.Context, endpointURL, authToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		return fmt.Errorf("build test connection request: %w", err)
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("test connection to %s: %w", endpointURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("test connection to %s: server error %d", endpointURL, resp.StatusCode)
	}
	return nil
}
