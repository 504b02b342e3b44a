package database

import (
	"gorm.io/gorm"

	"github.com/ARamos00/nursery-tracker/internal/domain"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Plant{},
		&domain.IdempotencyRecord{},
		&domain.WebhookEndpoint{},
		&domain.WebhookDelivery{},
	)
}
