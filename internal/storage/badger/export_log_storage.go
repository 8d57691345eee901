package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/joshfom/yello-crawl/internal/common"
	"github.com/joshfom/yello-crawl/internal/interfaces"
	"github.com/joshfom/yello-crawl/internal/models"
)

// ExportLogStorage implements interfaces.ExportLogStore over badgerhold.
type ExportLogStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

func NewExportLogStorage(db *BadgerDB, logger arbor.ILogger) *ExportLogStorage {
	return &ExportLogStorage{db: db, logger: logger}
}

var _ interfaces.ExportLogStore = (*ExportLogStorage)(nil)

func (s *ExportLogStorage) Insert(ctx context.Context, log *models.ExportLog) error {
	if log.ID == "" {
		log.ID = common.NewExportLogID()
	}
	if err := s.db.Store().Insert(log.ID, log); err != nil {
		return fmt.Errorf("insert export log %s: %w", log.ID, err)
	}
	return nil
}

func (s *ExportLogStorage) ListByExportJob(ctx context.Context, exportJobID string) ([]*models.ExportLog, error) {
	var logs []*models.ExportLog
	query := badgerhold.Where("ExportJobID").Eq(exportJobID).SortBy("Timestamp")
	if err := s.db.Store().Find(&logs, query); err != nil {
		return nil, fmt.Errorf("list export logs for %s: %w", exportJobID, err)
	}
	return logs, nil
}
