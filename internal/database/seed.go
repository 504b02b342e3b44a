package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/ARamos00/nursery-tracker/internal/domain"
	"github.com/ARamos00/nursery-tracker/internal/security"
)

// SeedReport summarizes what a seed run changed.
type SeedReport struct {
	Noop             bool
	CreatedPlants    int
	CreatedEndpoints int
}

const seedOwnerID uint = 1

// SeedSync inserts development fixtures for owner 1: a handful of plants and
// one webhook endpoint pointed at receiverURL (skipped when empty). Reruns are
// no-ops.
func SeedSync(db *gorm.DB, receiverURL string) (SeedReport, error) {
	report := SeedReport{}

	plants := []domain.Plant{
		{OwnerID: seedOwnerID, Name: "Fiddle Leaf Fig", Species: "Ficus lyrata", Status: domain.PlantStatusActive, Quantity: 3},
		{OwnerID: seedOwnerID, Name: "Monstera", Species: "Monstera deliciosa", Status: domain.PlantStatusActive, Quantity: 5},
		{OwnerID: seedOwnerID, Name: "Basil Tray", Species: "Ocimum basilicum", Status: domain.PlantStatusDormant, Quantity: 24},
	}
	for i := range plants {
		p := plants[i]
		var existing domain.Plant
		err := db.Where("owner_id = ? AND name = ?", p.OwnerID, p.Name).First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return report, fmt.Errorf("look up seed plant %q: %w", p.Name, err)
		}
		if err := db.Create(&p).Error; err != nil {
			return report, fmt.Errorf("create seed plant %q: %w", p.Name, err)
		}
		report.CreatedPlants++
	}

	if receiverURL != "" {
		var existing domain.WebhookEndpoint
		err := db.Where("owner_id = ? AND url = ?", seedOwnerID, receiverURL).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			secret, serr := security.NewEndpointSecret()
			if serr != nil {
				return report, fmt.Errorf("generate seed secret: %w", serr)
			}
			ep := domain.WebhookEndpoint{
				OwnerID:     seedOwnerID,
				Name:        "dev receiver",
				URL:         receiverURL,
				Secret:      secret,
				SecretLast4: security.Last4(secret),
				IsActive:    true,
			}
			if err := db.Create(&ep).Error; err != nil {
				return report, fmt.Errorf("create seed endpoint: %w", err)
			}
			report.CreatedEndpoints++
		} else if err != nil {
			return report, fmt.Errorf("look up seed endpoint: %w", err)
		}
	}

	report.Noop = report.CreatedPlants == 0 && report.CreatedEndpoints == 0
	return report, nil
}
