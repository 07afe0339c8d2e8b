package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"xbt_book/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage persists the orders the execution layer placed.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the SQLite database at dbPath.
func NewStorage(dbPath string) (*Storage, error) {
	// Ensure directory exists
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.TrackedOrder{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// TrackOrder records (or refreshes) a placed order.
func (s *Storage) TrackOrder(o *domain.TrackedOrder) error {
	return s.db.Save(o).Error
}

// UntrackOrder forgets an order. Unknown ids are not an error.
func (s *Storage) UntrackOrder(orderID string) error {
	return s.db.Where("order_id = ?", orderID).Delete(&domain.TrackedOrder{}).Error
}

// TrackedOrder retrieves a tracked order by id. A missing order returns (nil, nil).
func (s *Storage) TrackedOrder(orderID string) (*domain.TrackedOrder, error) {
	var o domain.TrackedOrder
	err := s.db.First(&o, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// TrackedOrders returns every tracked order, oldest first.
func (s *Storage) TrackedOrders() ([]domain.TrackedOrder, error) {
	var orders []domain.TrackedOrder
	err := s.db.Order("created_at asc").Find(&orders).Error
	return orders, err
}

// RetainOnly drops every tracked order whose id is not in keep, returning how
// many were removed. Used to reconcile with the exchange's pending list.
func (s *Storage) RetainOnly(keep []string) (int64, error) {
	q := s.db
	if len(keep) > 0 {
		q = q.Where("order_id NOT IN ?", keep)
	} else {
		q = q.Where("1 = 1")
	}
	res := q.Delete(&domain.TrackedOrder{})
	return res.RowsAffected, res.Error
}
