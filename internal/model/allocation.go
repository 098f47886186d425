package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type AllocationStatus string

const (
	AllocationAllocated AllocationStatus = "ALLOCATED"
	AllocationReleased  AllocationStatus = "RELEASED"
)

// Allocation reserves part of a batch against an order line. Rows are never
// deleted; a release only flips the status once.
type Allocation struct {
	BaseModel
	BatchID     uint64           `gorm:"not null;index" json:"batchId"`
	BatchNumber string           `gorm:"type:varchar(100)" json:"batchNumber"`
	OrderLineID string           `gorm:"type:varchar(100);not null;index" json:"orderLineId"`
	OrderID     string           `gorm:"type:varchar(100)" json:"orderId,omitempty"`
	ProductID   string           `gorm:"type:varchar(100)" json:"productId,omitempty"`
	Quantity    decimal.Decimal  `gorm:"type:decimal(20,6);not null" json:"quantity"`
	Unit        string           `gorm:"type:varchar(20)" json:"unit"`
	Status      AllocationStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	ReleasedBy  string           `gorm:"type:varchar(255)" json:"releasedBy,omitempty"`
	ReleasedAt  *time.Time       `json:"releasedAt,omitempty"`
}

func (Allocation) TableName() string {
	return "allocations"
}
