package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ARamos00/nursery-tracker/internal/domain"
)

var ErrPlantNotFound = errors.New("plant not found")

type PlantRepository interface {
	List(ctx context.Context, ownerID uint, page PageRequest) (PageResult[domain.Plant], error)
	FindByID(ctx context.Context, ownerID, id uint) (*domain.Plant, error)
	CreateInTx(tx *gorm.DB, p *domain.Plant) error
	UpdateInTx(tx *gorm.DB, p *domain.Plant) error
	Delete(ctx context.Context, ownerID, id uint) error
}

type GormPlantRepository struct{ db *gorm.DB }

func NewPlantRepository(db *gorm.DB) PlantRepository {
	return &GormPlantRepository{db: db}
}

func (r *GormPlantRepository) List(ctx context.Context, ownerID uint, page PageRequest) (PageResult[domain.Plant], error) {
	page = normalizePageRequest(page)
	scope := r.db.WithContext(ctx).Model(&domain.Plant{}).Where("owner_id = ?", ownerID)

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return PageResult[domain.Plant]{}, err
	}
	var plants []domain.Plant
	err := scope.
		Order("created_at DESC").Order("id DESC").
		Offset((page.Page - 1) * page.PageSize).
		Limit(page.PageSize).
		Find(&plants).Error
	if err != nil {
		return PageResult[domain.Plant]{}, err
	}
	return PageResult[domain.Plant]{
		Items:      plants,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      total,
		TotalPages: calcTotalPages(total, page.PageSize),
	}, nil
}

func (r *GormPlantRepository) FindByID(ctx context.Context, ownerID, id uint) (*domain.Plant, error) {
	var p domain.Plant
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlantNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *GormPlantRepository) CreateInTx(tx *gorm.DB, p *domain.Plant) error {
	return tx.Create(p).Error
}

func (r *GormPlantRepository) UpdateInTx(tx *gorm.DB, p *domain.Plant) error {
	res := tx.Model(&domain.Plant{}).
		Where("id = ? AND owner_id = ?", p.ID, p.OwnerID).
		Updates(map[string]any{
			"name":     p.Name,
			"species":  p.Species,
			"status":   p.Status,
			"quantity": p.Quantity,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPlantNotFound
	}
	return nil
}

func (r *GormPlantRepository) Delete(ctx context.Context, ownerID, id uint) error {
	res := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Delete(&domain.Plant{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPlantNotFound
	}
	return nil
}
