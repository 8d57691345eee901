package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/joshfom/yello-crawl/internal/common"
	"github.com/joshfom/yello-crawl/internal/models"
)

func TestProgressStorage_Latest_ReturnsMostRecent(t *testing.T) {
	db := newTestDB(t)
	storage := NewProgressStorage(db, arbor.NewLogger())
	ctx := context.Background()
	jobID := common.NewJobID()

	older := &models.ProgressRecord{ID: common.NewProgressID(), JobID: jobID, City: "Dubai", Page: 1, Timestamp: time.Now().Add(-time.Hour)}
	newer := &models.ProgressRecord{ID: common.NewProgressID(), JobID: jobID, City: "Dubai", Page: 2, Timestamp: time.Now()}
	require.NoError(t, storage.Insert(ctx, older))
	require.NoError(t, storage.Insert(ctx, newer))

	latest, err := storage.Latest(ctx, jobID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 2, latest.Page)
}

func TestProgressStorage_Latest_NilWhenNoRecords(t *testing.T) {
	db := newTestDB(t)
	storage := NewProgressStorage(db, arbor.NewLogger())

	latest, err := storage.Latest(context.Background(), "unknown-job")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestProgressStorage_ListByJob_OrderedDescendingAndLimited(t *testing.T) {
	db := newTestDB(t)
	storage := NewProgressStorage(db, arbor.NewLogger())
	ctx := context.Background()
	jobID := common.NewJobID()

	base := time.Now()
	for i := 1; i <= 5; i++ {
		record := &models.ProgressRecord{
			ID:        common.NewProgressID(),
			JobID:     jobID,
			City:      "Dubai",
			Page:      i,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, storage.Insert(ctx, record))
	}

	records, err := storage.ListByJob(ctx, jobID, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 5, records[0].Page)
	assert.Equal(t, 4, records[1].Page)
	assert.Equal(t, 3, records[2].Page)
}
