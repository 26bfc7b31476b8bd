package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SQLite implements Store on an embedded SQLite database via gorm.
//
// The connection is opened lazily, exactly once per process: the first
// operation triggers the open and concurrent callers wait on the same attempt
// instead of racing to open their own handles.
type SQLite struct {
	path   string
	logger *zap.Logger

	once    sync.Once
	db      *gorm.DB
	openErr error
}

// NewSQLite creates a store backed by the SQLite database at path. The file
// and its parent directory are created on first use.
func NewSQLite(path string, logger *zap.Logger) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("store path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLite{path: path, logger: logger}, nil
}

// conn returns the shared database handle, opening it on first use.
func (s *SQLite) conn() (*gorm.DB, error) {
	s.once.Do(func() {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			s.openErr = fmt.Errorf("creating store directory: %w", err)
			return
		}

		db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{
			Logger: gormlogger.Discard,
		})
		if err != nil {
			s.openErr = fmt.Errorf("opening database: %w", err)
			return
		}

		if err := db.AutoMigrate(&Item{}); err != nil {
			s.openErr = fmt.Errorf("migrating schema: %w", err)
			return
		}

		s.db = db
		s.logger.Info("store opened", zap.String("path", s.path))
	})

	if s.openErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, s.openErr)
	}
	return s.db, nil
}

// Create persists a new item, assigning its ID and Timestamp.
func (s *SQLite) Create(ctx context.Context, item *Item) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now().UTC()
	}
	if item.Category == "" {
		item.Category = "general"
	}

	if err := db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("%w: creating item: %v", ErrUnavailable, err)
	}
	return nil
}

// GetByIDs returns the current state of the given items.
func (s *SQLite) GetByIDs(ctx context.Context, ids []string) ([]Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	var items []Item
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("%w: fetching items: %v", ErrUnavailable, err)
	}
	return items, nil
}

// ApplyClusterPatch relabels items into a cluster and bumps their variations.
func (s *SQLite) ApplyClusterPatch(ctx context.Context, ids []string, clusterID, template string) error {
	if len(ids) == 0 {
		return nil
	}
	db, err := s.conn()
	if err != nil {
		return err
	}

	err = db.WithContext(ctx).Model(&Item{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"cluster_id":       clusterID,
			"message_template": template,
			"variations":       gorm.Expr("variations + 1"),
		}).Error
	if err != nil {
		return fmt.Errorf("%w: patching cluster members: %v", ErrUnavailable, err)
	}
	return nil
}

// IncrementUpvotes atomically adds 1 to an item's upvotes and returns the new
// value.
func (s *SQLite) IncrementUpvotes(ctx context.Context, id string) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}

	var upvotes int64
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Item{}).
			Where("id = ?", id).
			UpdateColumn("upvotes", gorm.Expr("upvotes + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		var item Item
		if err := tx.Select("upvotes").Where("id = ?", id).First(&item).Error; err != nil {
			return err
		}
		upvotes = item.Upvotes
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("%w: incrementing upvotes: %v", ErrUnavailable, err)
	}
	return upvotes, nil
}

// Find runs a sorted, bounded read.
func (s *SQLite) Find(ctx context.Context, q Query) ([]Item, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	tx := db.WithContext(ctx).Model(&Item{})
	if !q.Since.IsZero() {
		tx = tx.Where("timestamp >= ?", q.Since)
	}
	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}

	switch q.Sort {
	case SortUpvotes:
		tx = tx.Order("upvotes DESC").Order("timestamp DESC")
	case SortConfidence:
		tx = tx.Order("confidence DESC").Order("timestamp DESC")
	default:
		tx = tx.Order("timestamp DESC")
	}

	var items []Item
	if err := tx.Limit(limit).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("%w: querying items: %v", ErrUnavailable, err)
	}
	return items, nil
}

// Totals computes the global detection count and upvote sum.
func (s *SQLite) Totals(ctx context.Context) (Totals, error) {
	db, err := s.conn()
	if err != nil {
		return Totals{}, err
	}

	var totals Totals
	row := db.WithContext(ctx).Model(&Item{}).
		Select("COUNT(*) AS detections, COALESCE(SUM(upvotes), 0) AS upvotes").
		Row()
	if err := row.Scan(&totals.Detections, &totals.Upvotes); err != nil {
		return Totals{}, fmt.Errorf("%w: aggregating totals: %v", ErrUnavailable, err)
	}
	return totals, nil
}

// Close releases the underlying connection if one was opened.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ Store = (*SQLite)(nil)
