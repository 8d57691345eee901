package badger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/joshfom/yello-crawl/internal/common"
	"github.com/joshfom/yello-crawl/internal/interfaces"
	"github.com/joshfom/yello-crawl/internal/models"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "badger")
	db, err := NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{Path: dir})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestJobStorage_InsertGetUpdateDelete(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := &models.Job{
		ID:        common.NewJobID(),
		Name:      "UAE Directory",
		Domains:   []string{"yello.ae"},
		Status:    models.JobStatusPending,
		CreatedAt: time.Now(),
	}
	require.NoError(t, storage.Insert(ctx, job))

	fetched, err := storage.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.Name, fetched.Name)
	assert.Equal(t, models.JobStatusPending, fetched.Status)

	fetched.Status = models.JobStatusRunning
	require.NoError(t, storage.Update(ctx, fetched))

	reloaded, err := storage.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, reloaded.Status)

	require.NoError(t, storage.Delete(ctx, job.ID))
	_, err = storage.Get(ctx, job.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestJobStorage_FindActiveByDomain(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	active := &models.Job{ID: common.NewJobID(), Domains: []string{"yello.ae"}, Status: models.JobStatusRunning, CreatedAt: time.Now()}
	terminal := &models.Job{ID: common.NewJobID(), Domains: []string{"yelu.in"}, Status: models.JobStatusCompleted, CreatedAt: time.Now()}
	require.NoError(t, storage.Insert(ctx, active))
	require.NoError(t, storage.Insert(ctx, terminal))

	found, err := storage.FindActiveByDomain(ctx, "yello.ae")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, active.ID, found.ID)

	notFound, err := storage.FindActiveByDomain(ctx, "yelu.in")
	require.NoError(t, err)
	assert.Nil(t, notFound)
}

func TestJobStorage_IncrementCounters(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := &models.Job{ID: common.NewJobID(), Domains: []string{"yello.ae"}, Status: models.JobStatusRunning, CreatedAt: time.Now()}
	require.NoError(t, storage.Insert(ctx, job))

	require.NoError(t, storage.IncrementCounters(ctx, job.ID, 10, 4))
	require.NoError(t, storage.IncrementCounters(ctx, job.ID, 5, 3))

	updated, err := storage.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, updated.TotalBusinesses)
	assert.Equal(t, 7, updated.BusinessesScraped)
}

func TestJobStorage_IncrementCounters_ConcurrentCallsDontLoseUpdates(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := &models.Job{ID: common.NewJobID(), Domains: []string{"yello.ae"}, Status: models.JobStatusRunning, CreatedAt: time.Now()}
	require.NoError(t, storage.Insert(ctx, job))

	const calls = 50
	done := make(chan struct{}, calls)
	for i := 0; i < calls; i++ {
		go func() {
			_ = storage.IncrementCounters(ctx, job.ID, 1, 0)
			done <- struct{}{}
		}()
	}
	for i := 0; i < calls; i++ {
		<-done
	}

	final, err := storage.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, calls, final.TotalBusinesses)
}

func TestJobStorage_GetStale(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	fresh := &models.Job{ID: common.NewJobID(), Domains: []string{"yello.ae"}, Status: models.JobStatusRunning, LastHeartbeat: time.Now(), CreatedAt: time.Now()}
	stale := &models.Job{ID: common.NewJobID(), Domains: []string{"yelu.in"}, Status: models.JobStatusRunning, LastHeartbeat: time.Now().Add(-time.Hour), CreatedAt: time.Now()}
	require.NoError(t, storage.Insert(ctx, fresh))
	require.NoError(t, storage.Insert(ctx, stale))

	found, err := storage.GetStale(ctx, 15*time.Minute)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, stale.ID, found[0].ID)
}

func TestJobStorage_MarkRunningAsPaused(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	running := &models.Job{ID: common.NewJobID(), Domains: []string{"yello.ae"}, Status: models.JobStatusRunning, CreatedAt: time.Now()}
	pending := &models.Job{ID: common.NewJobID(), Domains: []string{"yelu.in"}, Status: models.JobStatusPending, CreatedAt: time.Now()}
	require.NoError(t, storage.Insert(ctx, running))
	require.NoError(t, storage.Insert(ctx, pending))

	count, err := storage.MarkRunningAsPaused(ctx, models.PauseReasonServerRestart)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	reloaded, err := storage.Get(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPaused, reloaded.Status)
	assert.Equal(t, models.PauseReasonServerRestart, reloaded.PauseReason)

	untouched, err := storage.Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, untouched.Status)
}

func TestJobStorage_List_FiltersByStatus(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	for i, status := range []models.JobStatus{models.JobStatusPending, models.JobStatusRunning, models.JobStatusRunning} {
		job := &models.Job{ID: common.NewJobID(), Name: "job", Domains: []string{"d.com"}, Status: status, CreatedAt: time.Now().Add(time.Duration(i) * time.Second)}
		require.NoError(t, storage.Insert(ctx, job))
	}

	running, err := storage.List(ctx, interfaces.JobListOptions{Status: models.JobStatusRunning})
	require.NoError(t, err)
	assert.Len(t, running, 2)

	all, err := storage.List(ctx, interfaces.JobListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
