package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/joshfom/yello-crawl/internal/interfaces"
	"github.com/joshfom/yello-crawl/internal/models"
)

// ProgressStorage implements interfaces.ProgressStore over badgerhold.
// Records are append-only: there is no Update method by design.
type ProgressStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

func NewProgressStorage(db *BadgerDB, logger arbor.ILogger) *ProgressStorage {
	return &ProgressStorage{db: db, logger: logger}
}

var _ interfaces.ProgressStore = (*ProgressStorage)(nil)

func (s *ProgressStorage) Insert(ctx context.Context, record *models.ProgressRecord) error {
	if err := s.db.Store().Insert(record.ID, record); err != nil {
		return fmt.Errorf("insert progress record %s: %w", record.ID, err)
	}
	return nil
}

func (s *ProgressStorage) Latest(ctx context.Context, jobID string) (*models.ProgressRecord, error) {
	var records []*models.ProgressRecord
	query := badgerhold.Where("JobID").Eq(jobID).SortBy("Timestamp").Reverse().Limit(1)
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("find latest progress for job %s: %w", jobID, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (s *ProgressStorage) ListByJob(ctx context.Context, jobID string, limit int) ([]*models.ProgressRecord, error) {
	var records []*models.ProgressRecord
	query := badgerhold.Where("JobID").Eq(jobID).SortBy("Timestamp").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("list progress for job %s: %w", jobID, err)
	}
	return records, nil
}
