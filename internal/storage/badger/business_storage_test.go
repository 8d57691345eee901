package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/joshfom/yello-crawl/internal/interfaces"
	"github.com/joshfom/yello-crawl/internal/models"
)

func TestBusinessStorage_Insert_RejectsDuplicateIdentity(t *testing.T) {
	db := newTestDB(t)
	storage := NewBusinessStorage(db, arbor.NewLogger())
	ctx := context.Background()

	first := &models.Business{Domain: "yello.ae", PageURL: "https://yello.ae/company/acme", Name: "Acme", ScrapedAt: time.Now()}
	require.NoError(t, storage.Insert(ctx, first))

	duplicate := &models.Business{Domain: "yello.ae", PageURL: "https://yello.ae/company/acme", Name: "Acme Again", ScrapedAt: time.Now()}
	err := storage.Insert(ctx, duplicate)
	assert.ErrorIs(t, err, interfaces.ErrDuplicateBusiness)
}

func TestBusinessStorage_Exists(t *testing.T) {
	db := newTestDB(t)
	storage := NewBusinessStorage(db, arbor.NewLogger())
	ctx := context.Background()

	exists, err := storage.Exists(ctx, "yello.ae", "https://yello.ae/company/acme")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, storage.Insert(ctx, &models.Business{Domain: "yello.ae", PageURL: "https://yello.ae/company/acme", ScrapedAt: time.Now()}))

	exists, err = storage.Exists(ctx, "yello.ae", "https://yello.ae/company/acme")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBusinessStorage_MarkExported(t *testing.T) {
	db := newTestDB(t)
	storage := NewBusinessStorage(db, arbor.NewLogger())
	ctx := context.Background()

	business := &models.Business{Domain: "yello.ae", PageURL: "https://yello.ae/company/acme", ScrapedAt: time.Now()}
	require.NoError(t, storage.Insert(ctx, business))

	exportedAt := time.Now()
	require.NoError(t, storage.MarkExported(ctx, business.ID, exportedAt, "export"))

	reloaded, err := storage.Get(ctx, business.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.ExportedAt)
	assert.WithinDuration(t, exportedAt, *reloaded.ExportedAt, time.Second)
	assert.Equal(t, "export", reloaded.ExportMode)
}

func TestBusinessStorage_List_FiltersByCity(t *testing.T) {
	db := newTestDB(t)
	storage := NewBusinessStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.Insert(ctx, &models.Business{Domain: "yello.ae", PageURL: "/a", City: "Dubai", ScrapedAt: time.Now()}))
	require.NoError(t, storage.Insert(ctx, &models.Business{Domain: "yello.ae", PageURL: "/b", City: "Sharjah", ScrapedAt: time.Now()}))
	require.NoError(t, storage.Insert(ctx, &models.Business{Domain: "yello.ae", PageURL: "/c", City: "Dubai", ScrapedAt: time.Now()}))

	dubai, err := storage.List(ctx, interfaces.BusinessListOptions{City: "Dubai"})
	require.NoError(t, err)
	assert.Len(t, dubai, 2)

	count, err := storage.Count(ctx, interfaces.BusinessListOptions{City: "Sharjah"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBusinessStorage_List_FiltersExportedOnly(t *testing.T) {
	db := newTestDB(t)
	storage := NewBusinessStorage(db, arbor.NewLogger())
	ctx := context.Background()

	exported := &models.Business{Domain: "yello.ae", PageURL: "/a", ScrapedAt: time.Now()}
	require.NoError(t, storage.Insert(ctx, exported))
	require.NoError(t, storage.MarkExported(ctx, exported.ID, time.Now(), "export"))

	require.NoError(t, storage.Insert(ctx, &models.Business{Domain: "yello.ae", PageURL: "/b", ScrapedAt: time.Now()}))

	yes := true
	onlyExported, err := storage.List(ctx, interfaces.BusinessListOptions{ExportedOnly: &yes})
	require.NoError(t, err)
	require.Len(t, onlyExported, 1)
	assert.Equal(t, exported.ID, onlyExported[0].ID)

	no := false
	onlyUnexported, err := storage.List(ctx, interfaces.BusinessListOptions{ExportedOnly: &no})
	require.NoError(t, err)
	assert.Len(t, onlyUnexported, 1)
}
