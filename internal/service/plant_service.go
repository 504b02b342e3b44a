package service

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/ARamos00/nursery-tracker/internal/domain"
	"github.com/ARamos00/nursery-tracker/internal/repository"
)

// PlantService is the mutating collaborator around which the reliability
// primitives are wrapped. Writes that emit events persist the domain row and
// its outbox delivery rows in one transaction.
type PlantService struct {
	db       *gorm.DB
	plants   repository.PlantRepository
	enqueuer *WebhookEnqueuer
}

func NewPlantService(db *gorm.DB, plants repository.PlantRepository, enqueuer *WebhookEnqueuer) *PlantService {
	return &PlantService{db: db, plants: plants, enqueuer: enqueuer}
}

func (s *PlantService) List(ctx context.Context, ownerID uint, page repository.PageRequest) (repository.PageResult[domain.Plant], error) {
	return s.plants.List(ctx, ownerID, page)
}

func (s *PlantService) Get(ctx context.Context, ownerID, id uint) (*domain.Plant, error) {
	return s.plants.FindByID(ctx, ownerID, id)
}

// Create persists a new plant and enqueues an event.created delivery for the
// owner's subscribed endpoints, atomically.
func (s *PlantService) Create(ctx context.Context, p *domain.Plant) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.plants.CreateInTx(tx, p); err != nil {
			return fmt.Errorf("create plant: %w", err)
		}
		_, err := s.enqueuer.EnqueueInTx(ctx, tx, p.OwnerID, domain.EventTypeEventCreated, map[string]any{
			"plant": p,
		})
		return err
	})
}

// Update persists field changes; when the lifecycle status changed it also
// enqueues a plant.status_changed delivery in the same transaction.
func (s *PlantService) Update(ctx context.Context, p *domain.Plant, statusChanged bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.plants.UpdateInTx(tx, p); err != nil {
			return err
		}
		if !statusChanged {
			return nil
		}
		_, err := s.enqueuer.EnqueueInTx(ctx, tx, p.OwnerID, domain.EventTypePlantStatusChanged, map[string]any{
			"plant": p,
		})
		return err
	})
}

func (s *PlantService) Delete(ctx context.Context, ownerID, id uint) error {
	return s.plants.Delete(ctx, ownerID, id)
}
