package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/ARamos00/nursery-tracker/internal/domain"
)

// ErrDuplicateIdempotencyRecord signals that another request already persisted
// a record for the same tuple; the caller should re-fetch and replay it.
var ErrDuplicateIdempotencyRecord = errors.New("idempotency record already exists")

// IdempotencyTuple identifies one retryable request.
type IdempotencyTuple struct {
	OwnerID  uint
	Key      string
	Method   string
	Path     string
	BodyHash string
}

type IdempotencyRepository interface {
	Find(ctx context.Context, tuple IdempotencyTuple) (*domain.IdempotencyRecord, error)
	Insert(ctx context.Context, rec *domain.IdempotencyRecord) error
	CleanupBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

type GormIdempotencyRepository struct{ db *gorm.DB }

func NewIdempotencyRepository(db *gorm.DB) IdempotencyRepository {
	return &GormIdempotencyRepository{db: db}
}

// Find returns the stored record for the exact tuple, or nil when absent.
func (r *GormIdempotencyRepository) Find(ctx context.Context, tuple IdempotencyTuple) (*domain.IdempotencyRecord, error) {
	var rec domain.IdempotencyRecord
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND idempotency_key = ? AND method = ? AND path = ? AND body_hash = ?",
			tuple.OwnerID, tuple.Key, tuple.Method, tuple.Path, tuple.BodyHash).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Insert persists a new record. The unique index on the tuple is the sole
// concurrency-control mechanism; a violation maps to
// ErrDuplicateIdempotencyRecord so the gate can replay the winner.
func (r *GormIdempotencyRepository) Insert(ctx context.Context, rec *domain.IdempotencyRecord) error {
	err := r.db.WithContext(ctx).Create(rec).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return ErrDuplicateIdempotencyRecord
	}
	return err
}

// CleanupBefore deletes up to batchSize records created before the cutoff.
// Pruning is an operational concern; the gate itself never deletes records.
func (r *GormIdempotencyRepository) CleanupBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&domain.IdempotencyRecord{}).
		Where("created_at < ?", cutoff).
		Order("id ASC").
		Limit(batchSize).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Delete(&domain.IdempotencyRecord{}, ids)
	return res.RowsAffected, res.Error
}

// isUniqueViolation covers drivers that do not translate unique-constraint
// failures into gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "constraint failed")
}
