package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ARamos00/nursery-tracker/internal/domain"
)

var ErrWebhookDeliveryNotFound = errors.New("webhook delivery not found")

// WebhookDeliveryRepository stores delivery rows and serves the worker's due
// query. CreateInTx participates in the caller's transaction so enqueue is an
// explicit outbox write alongside the domain mutation.
type WebhookDeliveryRepository interface {
	CreateInTx(tx *gorm.DB, d *domain.WebhookDelivery) error
	List(ctx context.Context, ownerID uint, page PageRequest) (PageResult[domain.WebhookDelivery], error)
	FindByID(ctx context.Context, ownerID, id uint) (*domain.WebhookDelivery, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.WebhookDelivery, error)
	Update(ctx context.Context, d *domain.WebhookDelivery) error
}

type GormWebhookDeliveryRepository struct{ db *gorm.DB }

func NewWebhookDeliveryRepository(db *gorm.DB) WebhookDeliveryRepository {
	return &GormWebhookDeliveryRepository{db: db}
}

func (r *GormWebhookDeliveryRepository) CreateInTx(tx *gorm.DB, d *domain.WebhookDelivery) error {
	return tx.Create(d).Error
}

// List serves the delivery audit view, newest first. Deliveries accumulate
// indefinitely, so the listing is always paginated.
func (r *GormWebhookDeliveryRepository) List(ctx context.Context, ownerID uint, page PageRequest) (PageResult[domain.WebhookDelivery], error) {
	page = normalizePageRequest(page)
	scope := r.db.WithContext(ctx).Model(&domain.WebhookDelivery{}).Where("owner_id = ?", ownerID)

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return PageResult[domain.WebhookDelivery]{}, err
	}
	var deliveries []domain.WebhookDelivery
	err := scope.
		Order("created_at DESC").Order("id DESC").
		Offset((page.Page - 1) * page.PageSize).
		Limit(page.PageSize).
		Find(&deliveries).Error
	if err != nil {
		return PageResult[domain.WebhookDelivery]{}, err
	}
	return PageResult[domain.WebhookDelivery]{
		Items:      deliveries,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      total,
		TotalPages: calcTotalPages(total, page.PageSize),
	}, nil
}

func (r *GormWebhookDeliveryRepository) FindByID(ctx context.Context, ownerID, id uint) (*domain.WebhookDelivery, error) {
	var d domain.WebhookDelivery
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWebhookDeliveryNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ListDue returns QUEUED deliveries whose next attempt is unscheduled or due,
// oldest first, capped at limit. The endpoint association is preloaded so the
// worker can sign without extra round-trips.
func (r *GormWebhookDeliveryRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.WebhookDelivery, error) {
	var deliveries []domain.WebhookDelivery
	err := r.db.WithContext(ctx).
		Preload("Endpoint").
		Where("status = ?", domain.WebhookDeliveryStatusQueued).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
		Order("created_at ASC").Order("id ASC").
		Limit(limit).
		Find(&deliveries).Error
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}

// Update persists all bookkeeping fields for one delivery in a single write.
// Zero values are written deliberately, so a column list is used instead of
// gorm's non-zero Updates behavior.
func (r *GormWebhookDeliveryRepository) Update(ctx context.Context, d *domain.WebhookDelivery) error {
	res := r.db.WithContext(ctx).
		Model(&domain.WebhookDelivery{}).
		Where("id = ?", d.ID).
		Updates(map[string]any{
			"status":           d.Status,
			"attempt_count":    d.AttemptCount,
			"last_attempt_at":  d.LastAttemptAt,
			"next_attempt_at":  d.NextAttemptAt,
			"response_status":  d.ResponseStatus,
			"response_headers": d.ResponseHeaders,
			"response_body":    d.ResponseBody,
			"last_error":       d.LastError,
			"duration_ms":      d.DurationMS,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrWebhookDeliveryNotFound
	}
	return nil
}
