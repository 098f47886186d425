package model

import (
	"time"
)

// BaseModel handles the numeric ID and standard audit trail
type BaseModel struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Audit User Tracking
	CreatedBy string `gorm:"type:varchar(255)" json:"createdBy"`
	UpdatedBy string `gorm:"type:varchar(255)" json:"updatedBy"`
}

// Stamp sets the audit actor for a row about to be inserted
func (base *BaseModel) Stamp(actor string) {
	base.CreatedBy = actor
	base.UpdatedBy = actor
}
