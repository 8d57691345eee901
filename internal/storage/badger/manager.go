package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/joshfom/yello-crawl/internal/common"
	"github.com/joshfom/yello-crawl/internal/interfaces"
)

// Store implements interfaces.Store over a single BadgerDB connection.
type Store struct {
	db         *BadgerDB
	jobs       interfaces.JobStore
	progress   interfaces.ProgressStore
	businesses interfaces.BusinessStore
	exportJobs interfaces.ExportJobStore
	exportLogs interfaces.ExportLogStore
	logger     arbor.ILogger
}

// NewStore opens a BadgerDB connection and wires up all five collections.
func NewStore(logger arbor.ILogger, config *common.BadgerConfig) (*Store, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	store := &Store{
		db:         db,
		jobs:       NewJobStorage(db, logger),
		progress:   NewProgressStorage(db, logger),
		businesses: NewBusinessStorage(db, logger),
		exportJobs: NewExportJobStorage(db, logger),
		exportLogs: NewExportLogStorage(db, logger),
		logger:     logger,
	}

	logger.Info().Msg("badger store initialized")
	return store, nil
}

var _ interfaces.Store = (*Store)(nil)

func (s *Store) Jobs() interfaces.JobStore             { return s.jobs }
func (s *Store) Progress() interfaces.ProgressStore     { return s.progress }
func (s *Store) Businesses() interfaces.BusinessStore   { return s.businesses }
func (s *Store) ExportJobs() interfaces.ExportJobStore  { return s.exportJobs }
func (s *Store) ExportLogs() interfaces.ExportLogStore  { return s.exportLogs }

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
