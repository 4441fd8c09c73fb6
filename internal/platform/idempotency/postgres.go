package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStore persists idempotency records through GORM. The claim relies
// on the primary-key uniqueness constraint for atomicity; there is no
// application-level lock.
type PostgresStore struct {
	db        *gorm.DB
	retention time.Duration
}

func NewPostgresStore(db *gorm.DB, retention time.Duration) *PostgresStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &PostgresStore{db: db, retention: retention}
}

func (s *PostgresStore) Claim(ctx context.Context, key string, now time.Time) (bool, Record, error) {
	key = strings.TrimSpace(key)
	now = now.UTC()

	for attempt := 0; attempt < 2; attempt++ {
		row := recordModel{
			Key:       key,
			Status:    StatusPending,
			CreatedAt: now,
			ExpiresAt: now.Add(s.retention),
		}
		createResult := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoNothing: true,
			}).
			Create(&row)
		if createResult.Error != nil {
			return false, Record{}, createResult.Error
		}
		if createResult.RowsAffected > 0 {
			return true, row.toRecord(), nil
		}

		var existing recordModel
		err := s.db.WithContext(ctx).
			Where("key = ?", key).
			First(&existing).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Fail closed: the row vanished between insert and lookup.
				return false, Record{}, ErrClaimRaced
			}
			return false, Record{}, err
		}

		if !existing.ExpiresAt.IsZero() && now.After(existing.ExpiresAt.UTC()) {
			// Stale record past retention: sweep it and claim once more.
			if err := s.db.WithContext(ctx).
				Where("key = ?", key).
				Delete(&recordModel{}).
				Error; err != nil {
				return false, Record{}, err
			}
			continue
		}
		return false, existing.toRecord(), nil
	}
	return false, Record{}, ErrClaimRaced
}

func (s *PostgresStore) Finalize(ctx context.Context, key string, responseStatus int, payload []byte) error {
	result := s.db.WithContext(ctx).
		Model(&recordModel{}).
		Where("key = ?", strings.TrimSpace(key)).
		Where("status = ?", StatusPending).
		Updates(map[string]any{
			"status":           StatusCompleted,
			"response_status":  responseStatus,
			"response_payload": append([]byte(nil), payload...),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrClaimRaced
	}
	return nil
}

func (s *PostgresStore) Release(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		Delete(&recordModel{}).
		Error
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&recordModel{})
	return result.RowsAffected, result.Error
}

type recordModel struct {
	Key             string    `gorm:"column:key;primaryKey"`
	Status          string    `gorm:"column:status"`
	ResponseStatus  int       `gorm:"column:response_status"`
	ResponsePayload []byte    `gorm:"column:response_payload"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (recordModel) TableName() string {
	return "idempotency_records"
}

func (m recordModel) toRecord() Record {
	return Record{
		Key:             m.Key,
		Status:          m.Status,
		ResponseStatus:  m.ResponseStatus,
		ResponsePayload: append([]byte(nil), m.ResponsePayload...),
		CreatedAt:       m.CreatedAt.UTC(),
		ExpiresAt:       m.ExpiresAt.UTC(),
	}
}
