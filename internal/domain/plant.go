package domain

import "time"

// PlantStatus is the propagation lifecycle state of a plant.
type PlantStatus string

const (
	PlantStatusActive    PlantStatus = "ACTIVE"
	PlantStatusDormant   PlantStatus = "DORMANT"
	PlantStatusHarvested PlantStatus = "HARVESTED"
	PlantStatusCulled    PlantStatus = "CULLED"
)

// Plant is the owner-scoped inventory resource used by the write path. Its
// business fields are deliberately minimal; the interesting behavior lives in
// the idempotency, concurrency, and webhook layers wrapped around it.
type Plant struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	OwnerID   uint        `gorm:"not null;index" json:"-"`
	Name      string      `gorm:"size:200;not null" json:"name"`
	Species   string      `gorm:"size:200" json:"species"`
	Status    PlantStatus `gorm:"size:16;not null;default:ACTIVE" json:"status"`
	Quantity  int         `gorm:"not null;default:1" json:"quantity"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
