package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Appointment is owned by the scheduling subsystem; billing reads it only.
type Appointment struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	BranchID     uuid.UUID       `gorm:"column:branch_id;type:uuid;not null"`
	CustomerID   *uuid.UUID      `gorm:"column:customer_id;type:uuid"`
	ContactID    *uuid.UUID      `gorm:"column:contact_id;type:uuid"`
	ArtistID     *uuid.UUID      `gorm:"column:artist_id;type:uuid"`
	ServiceID    *uuid.UUID      `gorm:"column:service_id;type:uuid"`
	ServiceName  *string         `gorm:"column:service_name"`
	ServicePrice *int64          `gorm:"column:service_price"`
	CartSnapshot json.RawMessage `gorm:"column:cart_snapshot;type:jsonb"`
	StartsAt     time.Time       `gorm:"column:starts_at;not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// Contact is the pre-booking inquiry an appointment may originate from.
type Contact struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	BranchID     uuid.UUID       `gorm:"column:branch_id;type:uuid;not null"`
	CartSnapshot json.RawMessage `gorm:"column:cart_snapshot;type:jsonb"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}
