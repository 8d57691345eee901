package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/joshfom/yello-crawl/internal/common"
	"github.com/joshfom/yello-crawl/internal/interfaces"
	"github.com/joshfom/yello-crawl/internal/models"
)

// supervisor owns the crawl loop for exactly one Job, per spec §4.3.2. It
// holds no state the Job Store doesn't also have; every mutation it makes
// is persisted so that a fresh process can reconstruct the resume point.
type supervisor struct {
	jobID   string
	store   interfaces.Store
	adapter interfaces.Adapter
	logger  arbor.ILogger

	cancel context.CancelFunc
	done   chan struct{}
}

// run executes the full supervisor algorithm. It is invoked via
// common.SafeGoWithContext so a panic inside it is recovered and logged
// rather than crashing the process.
func (sv *supervisor) run(ctx context.Context) {
	defer close(sv.done)

	log := sv.logger.WithCorrelationId(sv.jobID)
	job, err := sv.store.Jobs().Get(ctx, sv.jobID)
	if err != nil {
		log.Error().Err(err).Msg("supervisor: failed to load job, aborting")
		return
	}

	requestDelay := time.Duration(job.RequestDelay * float64(time.Second))
	limiter := rate.NewLimiter(rate.Every(requestDelay), 1)
	sem := semaphore.NewWeighted(int64(job.ConcurrentRequests))

	startCity, startPage, err := sv.loadResumeCursor(ctx, job)
	if err != nil {
		log.Error().Err(err).Msg("supervisor: failed to load resume cursor")
		sv.fail(ctx, job, err)
		return
	}

	cities, err := sv.adapter.Cities()
	if err != nil {
		sv.handleLoopError(ctx, job, fmt.Errorf("discover cities: %w", err))
		return
	}

	if job.TotalCities == 0 {
		job.TotalCities = len(cities)
		_ = sv.store.Jobs().Update(ctx, job)
	}

	startCityIndex := 0
	if startCity != "" {
		if idx := firstIndex(cities, startCity); idx >= 0 {
			startCityIndex = idx
		} else {
			log.Warn().Str("city", startCity).Msg("supervisor: resume city not found, restarting from first city")
			startPage = 1
		}
	} else {
		startPage = 1
	}

	for cityIndex := startCityIndex; cityIndex < len(cities); cityIndex++ {
		city := cities[cityIndex]
		pageStart := 1
		if cityIndex == startCityIndex {
			pageStart = startPage
		}

		err := sv.runCity(ctx, job, limiter, sem, requestDelay, city, pageStart)
		if err != nil {
			sv.handleLoopError(ctx, job, err)
			return
		}

		job.CitiesCompleted++
		if err := sv.store.Jobs().Update(ctx, job); err != nil {
			log.Warn().Err(err).Msg("supervisor: failed to persist city completion")
		}
	}

	now := time.Now()
	job.Status = models.JobStatusCompleted
	job.CompletedAt = &now
	if err := sv.store.Jobs().Update(ctx, job); err != nil {
		log.Error().Err(err).Msg("supervisor: failed to persist completion")
	}
	log.Info().Str("job_id", job.ID).Msg("job completed")
}

func firstIndex(cities []interfaces.City, name string) int {
	for i, c := range cities {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// loadResumeCursor implements step 1 of the supervisor algorithm: prefer the
// latest ProgressRecord over the Job's own cursor fields when it is newer.
func (sv *supervisor) loadResumeCursor(ctx context.Context, job *models.Job) (city string, page int, err error) {
	latest, err := sv.store.Progress().Latest(ctx, job.ID)
	if err != nil {
		return "", 0, fmt.Errorf("load latest progress: %w", err)
	}

	if latest != nil && (job.LastProgressTimestamp == nil || latest.Timestamp.After(*job.LastProgressTimestamp)) {
		return latest.City, latest.Page + 1, nil
	}
	if job.CurrentCity != "" {
		return job.CurrentCity, job.CurrentPage, nil
	}
	return "", 1, nil
}

// runCity implements steps 4 and 5 of the supervisor algorithm for a single
// city, starting at startPage. limiter paces the sequential page-to-page
// fetch loop below; requestDelay is handed to fetchDetails so each
// concurrent detail-fetch goroutine can pace itself independently instead of
// funneling through the shared limiter.
func (sv *supervisor) runCity(ctx context.Context, job *models.Job, limiter *rate.Limiter, sem *semaphore.Weighted, requestDelay time.Duration, city interfaces.City, startPage int) error {
	log := sv.logger.WithCorrelationId(job.ID)
	page := startPage

	for {
		select {
		case <-ctx.Done():
			return errCancelled
		default:
		}

		fresh, err := sv.store.Jobs().Get(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("reload job status: %w", err)
		}
		if fresh.Status != models.JobStatusRunning {
			return errCancelled
		}

		urls, hasNext, err := sv.adapter.Listings(city.URL, page)
		if err != nil {
			return fmt.Errorf("list businesses for %s page %d: %w", city.Name, page, err)
		}
		if len(urls) == 0 {
			return nil
		}

		newURLs, err := sv.dedupe(ctx, job.CanonicalDomain(), urls)
		if err != nil {
			return fmt.Errorf("dedup businesses for %s page %d: %w", city.Name, page, err)
		}

		if err := sv.store.Jobs().IncrementCounters(ctx, job.ID, len(urls), 0); err != nil {
			log.Warn().Err(err).Msg("supervisor: failed to increment total_businesses")
		}

		successfulSaves, err := sv.fetchDetails(ctx, sem, requestDelay, job, newURLs)
		if err != nil {
			return err
		}

		if err := sv.store.Jobs().IncrementCounters(ctx, job.ID, 0, successfulSaves); err != nil {
			log.Warn().Err(err).Msg("supervisor: failed to increment businesses_scraped")
		}
		// Pick up the incremented counters so the full-document cursor Update
		// below doesn't write stale values back over them.
		if latest, err := sv.store.Jobs().Get(ctx, job.ID); err == nil {
			job.TotalBusinesses = latest.TotalBusinesses
			job.BusinessesScraped = latest.BusinessesScraped
		}

		now := time.Now()
		record := &models.ProgressRecord{
			ID:                common.NewProgressID(),
			JobID:             job.ID,
			Domain:            job.CanonicalDomain(),
			City:              city.Name,
			Page:              page,
			BusinessesFound:   len(urls),
			NewBusinesses:     len(newURLs),
			BusinessesScraped: successfulSaves,
			Timestamp:         now,
		}
		if err := sv.store.Progress().Insert(ctx, record); err != nil {
			log.Warn().Err(err).Msg("supervisor: failed to persist progress checkpoint")
		}

		job.CurrentCity = city.Name
		job.CurrentPage = page
		job.LastProgressTimestamp = &now
		if err := sv.store.Jobs().Update(ctx, job); err != nil {
			log.Warn().Err(err).Msg("supervisor: failed to persist job cursor")
		}

		if !hasNext {
			return nil
		}

		page++
		job.CurrentPage = page
		if err := sv.store.Jobs().Update(ctx, job); err != nil {
			log.Warn().Err(err).Msg("supervisor: failed to persist advanced page cursor")
		}

		if err := limiter.Wait(ctx); err != nil {
			return errCancelled
		}
	}
}

// dedupe implements step 4c: keep only URLs not already present for this
// domain.
func (sv *supervisor) dedupe(ctx context.Context, domain string, urls []string) ([]string, error) {
	var fresh []string
	for _, u := range urls {
		exists, err := sv.store.Businesses().Exists(ctx, domain, u)
		if err != nil {
			return nil, err
		}
		if !exists {
			fresh = append(fresh, u)
		}
	}
	return fresh, nil
}

// sleepPerTask pauses the calling goroutine for delay, honoring cancellation.
// It is independent per call, unlike a shared rate.Limiter, so concurrent
// callers don't serialize against one another.
func sleepPerTask(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// fetchDetails implements step 4e: bounded-parallel detail fetch with a
// per-task pause, returning the count of records actually persisted (not
// the count of inputs). Each goroutine paces itself with its own timer
// (sleepPerTask) rather than a rate.Limiter shared across the fan-out: a
// shared limiter would serialize every in-flight task onto one token bucket
// and collapse throughput to one completion per request_delay regardless of
// concurrent_requests.
func (sv *supervisor) fetchDetails(ctx context.Context, sem *semaphore.Weighted, requestDelay time.Duration, job *models.Job, urls []string) (int, error) {
	if len(urls) == 0 {
		return 0, nil
	}

	log := sv.logger.WithCorrelationId(job.ID)
	results := make(chan bool, len(urls))

	for _, u := range urls {
		if err := sem.Acquire(ctx, 1); err != nil {
			return 0, errCancelled
		}

		go func(businessURL string) {
			defer sem.Release(1)
			defer sleepPerTask(ctx, requestDelay)

			business, err := sv.adapter.Details(businessURL)
			if err != nil {
				log.Warn().Err(err).Str("url", businessURL).Msg("supervisor: detail fetch failed")
				results <- false
				return
			}

			business.Domain = job.CanonicalDomain()
			business.PageURL = businessURL
			err = sv.store.Businesses().Insert(ctx, business)
			switch {
			case err == nil:
				results <- true
			case err == interfaces.ErrDuplicateBusiness:
				results <- false
			default:
				log.Warn().Err(err).Str("url", businessURL).Msg("supervisor: failed to persist business")
				results <- false
			}
		}(u)
	}

	successfulSaves := 0
	for i := 0; i < len(urls); i++ {
		if <-results {
			successfulSaves++
		}
	}
	return successfulSaves, nil
}

// handleLoopError implements spec §4.3.3: classify the error and transition
// the job accordingly.
func (sv *supervisor) handleLoopError(ctx context.Context, job *models.Job, err error) {
	log := sv.logger.WithCorrelationId(job.ID)

	fresh, getErr := sv.store.Jobs().Get(ctx, job.ID)
	if getErr == nil {
		job = fresh
	}

	switch ClassifyError(err) {
	case ClassificationCancelled:
		if job.Status != models.JobStatusPaused {
			job.Status = models.JobStatusCancelled
			_ = sv.store.Jobs().Update(ctx, job)
		}
		log.Info().Str("job_id", job.ID).Msg("supervisor stopped cooperatively")
	case ClassificationNetwork:
		now := time.Now()
		job.Status = models.JobStatusPaused
		job.PauseReason = models.PauseReasonNetworkError
		job.PausedAt = &now
		job.AppendError(err.Error())
		_ = sv.store.Jobs().Update(ctx, job)
		log.Warn().Err(err).Str("job_id", job.ID).Msg("job paused on network error")
	default:
		sv.fail(ctx, job, err)
	}
}

func (sv *supervisor) fail(ctx context.Context, job *models.Job, err error) {
	job.Status = models.JobStatusFailed
	job.AppendError(err.Error())
	if updateErr := sv.store.Jobs().Update(ctx, job); updateErr != nil {
		sv.logger.Error().Err(updateErr).Str("job_id", job.ID).Msg("supervisor: failed to persist failure")
	}
	sv.logger.Error().Err(err).Str("job_id", job.ID).Msg("job failed")
}

// stop signals the supervisor to stop cooperatively and waits for it to
// finish.
func (sv *supervisor) stop() {
	sv.cancel()
	<-sv.done
}
