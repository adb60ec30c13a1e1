package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
)

var _ ports.HandoffStore = (*HandoffStore)(nil)

// HandoffStore persists logistics hand-off keys in PostgreSQL.
type HandoffStore struct {
	db *gorm.DB
}

// NewHandoffStore wires a PostgreSQL-backed hand-off store.
func NewHandoffStore(db *gorm.DB) *HandoffStore {
	return &HandoffStore{db: db}
}

// Get loads a record by key, returning nil when absent.
func (s *HandoffStore) Get(ctx context.Context, key string) (*ports.HandoffRecord, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var record handoffRecord
	if err := s.db.WithContext(ctx).First(&record, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toPortRecord(&record), nil
}

// Save inserts the record; if the key already exists with the same hash it is returned,
// otherwise ErrHandoffConflict is returned with the stored record.
func (s *HandoffStore) Save(ctx context.Context, record ports.HandoffRecord) (*ports.HandoffRecord, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	now := time.Now()
	dbRecord := handoffRecord{
		Key:         record.Key,
		RequestHash: record.RequestHash,
		OrderRef:    record.OrderRef,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&dbRecord)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected > 0 {
		return toPortRecord(&dbRecord), nil
	}
	existing, err := s.Get(ctx, record.Key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errors.New("logistics hand-off vanished after conflicting insert")
	}
	if existing.RequestHash != record.RequestHash {
		return existing, ports.ErrHandoffConflict
	}
	return existing, nil
}

func (s *HandoffStore) ensureDB() error {
	if s == nil || s.db == nil {
		return errors.New("postgres hand-off store not configured")
	}
	return nil
}
