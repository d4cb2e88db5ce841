package tipindex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	// RoleSent selects tips sent by an account.
	RoleSent = "sent"
	// RoleReceived selects tips received by an account.
	RoleReceived = "received"

	defaultPageSize = 50
	maxPageSize     = 500
)

var (
	// ErrNotFound is returned for unknown tip ids.
	ErrNotFound = errors.New("tipindex: record not found")
	// ErrInvalidRole is returned for roles other than sent and received.
	ErrInvalidRole = errors.New("tipindex: invalid role")
)

// Page selects a window of results, newest first.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Store persists the tip read model through gorm.
type Store struct {
	db *gorm.DB
}

// Open connects to the configured driver (postgres or sqlite) and migrates
// the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("tipindex: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("tipindex: open %s: %w", driver, err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("tipindex: database required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("tipindex: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertTip inserts a tip row, leaving an existing row untouched so replays
// are harmless.
func (s *Store) UpsertTip(ctx context.Context, rec *TipRecord) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec).Error
}

// MarkRefunded flags a tip as refunded at height.
func (s *Store) MarkRefunded(ctx context.Context, id, height uint64) error {
	res := s.db.WithContext(ctx).Model(&TipRecord{}).Where("id = ?", id).
		Updates(map[string]interface{}{"refunded": true, "refund_height": height})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// RecordBatch stores a batch summary.
func (s *Store) RecordBatch(ctx context.Context, rec *BatchRecord) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

// Tip loads one record.
func (s *Store) Tip(ctx context.Context, id uint64) (*TipRecord, error) {
	var rec TipRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// History returns the full, uncapped history of addr for role, newest first,
// together with the total number of matching rows.
func (s *Store) History(ctx context.Context, addr, role string, page Page) ([]TipRecord, int64, error) {
	var column string
	switch role {
	case RoleSent:
		column = "tipper"
	case RoleReceived:
		column = "artist"
	default:
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	page = page.normalize()
	query := s.db.WithContext(ctx).Model(&TipRecord{}).Where(column+" = ?", addr)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var records []TipRecord
	err := query.Order("id DESC").Limit(page.Limit).Offset(page.Offset).Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Batches returns the batch summaries of a tipper, newest first.
func (s *Store) Batches(ctx context.Context, tipper string, page Page) ([]BatchRecord, error) {
	page = page.normalize()
	var records []BatchRecord
	err := s.db.WithContext(ctx).Where("tipper = ?", tipper).
		Order("id DESC").Limit(page.Limit).Offset(page.Offset).Find(&records).Error
	return records, err
}
