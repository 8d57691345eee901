package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/joshfom/yello-crawl/internal/interfaces"
	"github.com/joshfom/yello-crawl/internal/models"
)

// fakeJobStore is a minimal in-memory interfaces.JobStore for exercising
// Registry.Admit without a real BadgerDB.
type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]*models.Job)}
}

func (f *fakeJobStore) Insert(ctx context.Context, job *models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobStore) Get(ctx context.Context, jobID string) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return job, nil
}

func (f *fakeJobStore) Update(ctx context.Context, job *models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobStore) Delete(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, jobID)
	return nil
}

func (f *fakeJobStore) List(ctx context.Context, opts interfaces.JobListOptions) ([]*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Job
	for _, job := range f.jobs {
		if opts.Status != "" && job.Status != opts.Status {
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

func (f *fakeJobStore) Count(ctx context.Context, opts interfaces.JobListOptions) (int, error) {
	jobs, err := f.List(ctx, opts)
	return len(jobs), err
}

func (f *fakeJobStore) FindActiveByDomain(ctx context.Context, canonicalDomain string) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if job.CanonicalDomain() == canonicalDomain && job.IsActive() {
			return job, nil
		}
	}
	return nil, nil
}

func (f *fakeJobStore) IncrementCounters(ctx context.Context, jobID string, totalDelta, scrapedDelta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return interfaces.ErrNotFound
	}
	job.TotalBusinesses += totalDelta
	job.BusinessesScraped += scrapedDelta
	return nil
}

func (f *fakeJobStore) UpdateHeartbeat(ctx context.Context, jobID string) error { return nil }

func (f *fakeJobStore) GetStale(ctx context.Context, staleThreshold time.Duration) ([]*models.Job, error) {
	return nil, nil
}

func (f *fakeJobStore) MarkRunningAsPaused(ctx context.Context, reason models.PauseReason) (int, error) {
	return 0, nil
}

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare host", "yello.ae", "yello.ae"},
		{"scheme stripped", "https://yello.ae/browse", "yello.ae"},
		{"www stripped", "www.yello.ae", "yello.ae"},
		{"uppercase lowered", "YELLO.AE", "yello.ae"},
		{"yellowpages remapped", "yellowpages.ae", "yello.ae"},
		{"yellowpages with scheme and www", "https://www.yellowpages.co.za/", "yello.co.za"},
		{"empty input", "", ""},
		{"whitespace trimmed", "  yello.ae  ", "yello.ae"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Canonicalize(tc.in))
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	inputs := []string{"https://www.yellowpages.ae/browse", "YELLO.AE", "businesslist.co.ke"}
	for _, in := range inputs {
		once := Canonicalize(in)
		twice := Canonicalize(once)
		assert.Equal(t, once, twice, "Canonicalize should be idempotent for %q", in)
	}
}

func TestRegistry_Admit_CreatesPendingJob(t *testing.T) {
	store := newFakeJobStore()
	reg := New(store, arbor.NewLogger())

	job, err := reg.Admit(context.Background(), "UAE Directory", "https://www.yello.ae", 8, 2.5)

	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, "yello.ae", job.CanonicalDomain())
	assert.Equal(t, 8, job.ConcurrentRequests)
	assert.Equal(t, 2.5, job.RequestDelay)
	assert.NotEmpty(t, job.ID)
}

func TestRegistry_Admit_ClampsOutOfRangeSettings(t *testing.T) {
	store := newFakeJobStore()
	reg := New(store, arbor.NewLogger())

	job, err := reg.Admit(context.Background(), "test", "yello.ae", 999, 50.0)
	require.NoError(t, err)
	assert.Equal(t, 20, job.ConcurrentRequests)
	assert.Equal(t, 10.0, job.RequestDelay)

	job2, err := reg.Admit(context.Background(), "test2", "yelu.in", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, job2.ConcurrentRequests)
	assert.Equal(t, 1.0, job2.RequestDelay)
}

func TestRegistry_Admit_RejectsBusyDomain(t *testing.T) {
	store := newFakeJobStore()
	reg := New(store, arbor.NewLogger())

	first, err := reg.Admit(context.Background(), "first", "yello.ae", 5, 1)
	require.NoError(t, err)

	_, err = reg.Admit(context.Background(), "second", "www.yello.ae", 5, 1)
	require.Error(t, err)

	var busyErr *interfaces.DomainBusyError
	require.ErrorAs(t, err, &busyErr)
	assert.Equal(t, first.ID, busyErr.ExistingJobID)
}

func TestRegistry_Admit_AllowsReadmitAfterTerminal(t *testing.T) {
	store := newFakeJobStore()
	reg := New(store, arbor.NewLogger())

	first, err := reg.Admit(context.Background(), "first", "yello.ae", 5, 1)
	require.NoError(t, err)

	first.Status = models.JobStatusCompleted
	require.NoError(t, store.Update(context.Background(), first))

	second, err := reg.Admit(context.Background(), "second", "yello.ae", 5, 1)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRegistry_Admit_RejectsInvalidDomain(t *testing.T) {
	store := newFakeJobStore()
	reg := New(store, arbor.NewLogger())

	_, err := reg.Admit(context.Background(), "bad", "   ", 5, 1)
	assert.Error(t, err)
}

func TestRegistry_Available_ExcludesHeldDomains(t *testing.T) {
	store := newFakeJobStore()
	reg := New(store, arbor.NewLogger())

	_, err := reg.Admit(context.Background(), "held", "yello.ae", 5, 1)
	require.NoError(t, err)

	catalog := &models.Catalog{
		Countries: []models.CatalogRegion{
			{
				Region: "Middle East",
				Countries: []models.CatalogCountry{
					{Name: "UAE", Domain: "yello.ae"},
					{Name: "India", Domain: "yelu.in"},
				},
			},
		},
	}

	available, err := reg.Available(context.Background(), catalog)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "yelu.in", available[0].Domain)
}
