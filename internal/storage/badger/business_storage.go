package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/joshfom/yello-crawl/internal/interfaces"
	"github.com/joshfom/yello-crawl/internal/models"
)

// BusinessStorage implements interfaces.BusinessStore over badgerhold.
//
// Uniqueness on (Domain, PageURL) is enforced by using models.BusinessKey as
// the store's primary key and calling Insert (not Upsert): badgerhold
// rejects a second Insert under the same key with ErrKeyExists, giving the
// conflict-is-a-real-error semantics spec §3 requires, the same way the
// teacher's MarkURLSeen builds a composite "jobID|url" key to detect an
// existing entry before writing.
type BusinessStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

func NewBusinessStorage(db *BadgerDB, logger arbor.ILogger) *BusinessStorage {
	return &BusinessStorage{db: db, logger: logger}
}

var _ interfaces.BusinessStore = (*BusinessStorage)(nil)

func (s *BusinessStorage) Insert(ctx context.Context, business *models.Business) error {
	key := models.BusinessKey(business.Domain, business.PageURL)
	business.ID = key
	if err := s.db.Store().Insert(key, business); err != nil {
		if err == badgerhold.ErrKeyExists {
			return interfaces.ErrDuplicateBusiness
		}
		return fmt.Errorf("insert business %s: %w", key, err)
	}
	return nil
}

func (s *BusinessStorage) Exists(ctx context.Context, domain, pageURL string) (bool, error) {
	key := models.BusinessKey(domain, pageURL)
	var business models.Business
	if err := s.db.Store().Get(key, &business); err != nil {
		if err == badgerhold.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("check business %s: %w", key, err)
	}
	return true, nil
}

func (s *BusinessStorage) Get(ctx context.Context, id string) (*models.Business, error) {
	var business models.Business
	if err := s.db.Store().Get(id, &business); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("get business %s: %w", id, err)
	}
	return &business, nil
}

func (s *BusinessStorage) buildQuery(opts interfaces.BusinessListOptions) *badgerhold.Query {
	query := badgerhold.Where("ID").Ne("")
	if opts.Domain != "" {
		query = query.And("Domain").Eq(opts.Domain)
	}
	if opts.City != "" {
		query = query.And("City").Eq(opts.City)
	}
	if opts.Country != "" {
		query = query.And("Country").Eq(opts.Country)
	}
	if opts.Category != "" {
		query = query.And("Category").Eq(opts.Category)
	}
	if opts.ExportedOnly != nil {
		if *opts.ExportedOnly {
			query = query.And("ExportedAt").Ne(nil)
		} else {
			query = query.And("ExportedAt").Eq(nil)
		}
	}
	if !opts.ScrapedAfter.IsZero() {
		query = query.And("ScrapedAt").Ge(opts.ScrapedAfter)
	}
	if !opts.ScrapedBefore.IsZero() {
		query = query.And("ScrapedAt").Le(opts.ScrapedBefore)
	}
	if opts.OrderBy != "" {
		query = query.SortBy(opts.OrderBy)
	} else {
		query = query.SortBy("ScrapedAt")
	}
	if opts.OrderDir == "" || opts.OrderDir == "DESC" || opts.OrderDir == "desc" {
		query = query.Reverse()
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Skip(opts.Offset)
	}
	return query
}

func (s *BusinessStorage) List(ctx context.Context, opts interfaces.BusinessListOptions) ([]*models.Business, error) {
	var businesses []*models.Business
	if err := s.db.Store().Find(&businesses, s.buildQuery(opts)); err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	return businesses, nil
}

func (s *BusinessStorage) Count(ctx context.Context, opts interfaces.BusinessListOptions) (int, error) {
	count, err := s.db.Store().Count(&models.Business{}, s.buildQuery(opts))
	if err != nil {
		return 0, fmt.Errorf("count businesses: %w", err)
	}
	return count, nil
}

func (s *BusinessStorage) MarkExported(ctx context.Context, id string, exportedAt time.Time, exportMode string) error {
	var business models.Business
	if err := s.db.Store().Get(id, &business); err != nil {
		if err == badgerhold.ErrNotFound {
			return interfaces.ErrNotFound
		}
		return fmt.Errorf("get business %s for export stamp: %w", id, err)
	}
	business.ExportedAt = &exportedAt
	business.ExportMode = exportMode
	if err := s.db.Store().Update(id, &business); err != nil {
		return fmt.Errorf("mark business %s exported: %w", id, err)
	}
	return nil
}
