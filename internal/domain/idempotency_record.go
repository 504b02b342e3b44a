package domain

import "time"

// IdempotencyRecord stores the first successful response for a
// (owner, key, method, path, body_hash) tuple so retried requests can be
// replayed without re-executing the underlying operation. Rows are immutable
// once written and are pruned by age out of band.
type IdempotencyRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OwnerID        uint      `gorm:"not null;uniqueIndex:idx_idempotency_tuple" json:"-"`
	IdempotencyKey string    `gorm:"size:200;not null;uniqueIndex:idx_idempotency_tuple" json:"-"`
	Method         string    `gorm:"size:10;not null;uniqueIndex:idx_idempotency_tuple" json:"-"`
	Path           string    `gorm:"size:512;not null;uniqueIndex:idx_idempotency_tuple" json:"-"`
	BodyHash       string    `gorm:"size:64;not null;uniqueIndex:idx_idempotency_tuple" json:"-"`
	StatusCode     int       `gorm:"not null" json:"-"`
	ContentType    string    `gorm:"size:128" json:"-"`
	ResponseBody   []byte    `gorm:"type:bytes" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}
