package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/joshfom/yello-crawl/internal/interfaces"
	"github.com/joshfom/yello-crawl/internal/models"
)

// ExportJobStorage implements interfaces.ExportJobStore over badgerhold.
type ExportJobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

func NewExportJobStorage(db *BadgerDB, logger arbor.ILogger) *ExportJobStorage {
	return &ExportJobStorage{db: db, logger: logger}
}

var _ interfaces.ExportJobStore = (*ExportJobStorage)(nil)

func (s *ExportJobStorage) Insert(ctx context.Context, job *models.ExportJob) error {
	if err := s.db.Store().Insert(job.ID, job); err != nil {
		return fmt.Errorf("insert export job %s: %w", job.ID, err)
	}
	return nil
}

func (s *ExportJobStorage) Get(ctx context.Context, jobID string) (*models.ExportJob, error) {
	var job models.ExportJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("get export job %s: %w", jobID, err)
	}
	return &job, nil
}

func (s *ExportJobStorage) Update(ctx context.Context, job *models.ExportJob) error {
	if err := s.db.Store().Update(job.ID, job); err != nil {
		return fmt.Errorf("update export job %s: %w", job.ID, err)
	}
	return nil
}

func (s *ExportJobStorage) Delete(ctx context.Context, jobID string) error {
	if err := s.db.Store().Delete(jobID, &models.ExportJob{}); err != nil {
		return fmt.Errorf("delete export job %s: %w", jobID, err)
	}
	return nil
}

func (s *ExportJobStorage) List(ctx context.Context, limit, offset int) ([]*models.ExportJob, error) {
	var jobs []*models.ExportJob
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Skip(offset)
	}
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("list export jobs: %w", err)
	}
	return jobs, nil
}
