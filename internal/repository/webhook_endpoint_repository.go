package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ARamos00/nursery-tracker/internal/domain"
)

var ErrWebhookEndpointNotFound = errors.New("webhook endpoint not found")

// WebhookEndpointRepository is strictly owner-scoped: every query filters by
// owner id so endpoints are never visible or mutable across owners.
type WebhookEndpointRepository interface {
	List(ctx context.Context, ownerID uint) ([]domain.WebhookEndpoint, error)
	ListActive(ctx context.Context, ownerID uint) ([]domain.WebhookEndpoint, error)
	FindByID(ctx context.Context, ownerID, id uint) (*domain.WebhookEndpoint, error)
	Create(ctx context.Context, ep *domain.WebhookEndpoint) error
	Update(ctx context.Context, ep *domain.WebhookEndpoint) error
	Delete(ctx context.Context, ownerID, id uint) error
}

type GormWebhookEndpointRepository struct{ db *gorm.DB }

func NewWebhookEndpointRepository(db *gorm.DB) WebhookEndpointRepository {
	return &GormWebhookEndpointRepository{db: db}
}

func (r *GormWebhookEndpointRepository) List(ctx context.Context, ownerID uint) ([]domain.WebhookEndpoint, error) {
	var endpoints []domain.WebhookEndpoint
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").Order("id DESC").
		Find(&endpoints).Error
	if err != nil {
		return nil, err
	}
	return endpoints, nil
}

func (r *GormWebhookEndpointRepository) ListActive(ctx context.Context, ownerID uint) ([]domain.WebhookEndpoint, error) {
	var endpoints []domain.WebhookEndpoint
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND is_active = ?", ownerID, true).
		Order("id ASC").
		Find(&endpoints).Error
	if err != nil {
		return nil, err
	}
	return endpoints, nil
}

func (r *GormWebhookEndpointRepository) FindByID(ctx context.Context, ownerID, id uint) (*domain.WebhookEndpoint, error) {
	var ep domain.WebhookEndpoint
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&ep).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWebhookEndpointNotFound
		}
		return nil, err
	}
	return &ep, nil
}

func (r *GormWebhookEndpointRepository) Create(ctx context.Context, ep *domain.WebhookEndpoint) error {
	return r.db.WithContext(ctx).Create(ep).Error
}

func (r *GormWebhookEndpointRepository) Update(ctx context.Context, ep *domain.WebhookEndpoint) error {
	res := r.db.WithContext(ctx).
		Model(&domain.WebhookEndpoint{}).
		Where("id = ? AND owner_id = ?", ep.ID, ep.OwnerID).
		Updates(map[string]any{
			"name":         ep.Name,
			"url":          ep.URL,
			"event_types":  ep.EventTypes,
			"secret":       ep.Secret,
			"secret_last4": ep.SecretLast4,
			"is_active":    ep.IsActive,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrWebhookEndpointNotFound
	}
	return nil
}

func (r *GormWebhookEndpointRepository) Delete(ctx context.Context, ownerID, id uint) error {
	res := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Delete(&domain.WebhookEndpoint{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrWebhookEndpointNotFound
	}
	return nil
}
