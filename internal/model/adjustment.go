package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type AdjustmentType string

const (
	AdjustmentCorrection     AdjustmentType = "CORRECTION"
	AdjustmentInventoryCount AdjustmentType = "INVENTORY_COUNT"
	AdjustmentDamage         AdjustmentType = "DAMAGE"
	AdjustmentSample         AdjustmentType = "SAMPLE"
	AdjustmentOther          AdjustmentType = "OTHER"
)

// QuantityAdjustment is one permanent entry of a batch's correction history
type QuantityAdjustment struct {
	ID             uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	BatchID        uint64          `gorm:"not null;index" json:"batchId"`
	BatchNumber    string          `gorm:"type:varchar(100)" json:"batchNumber"`
	OldQuantity    decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"oldQuantity"`
	NewQuantity    decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"newQuantity"`
	Delta          decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"delta"`
	AdjustmentType AdjustmentType  `gorm:"type:varchar(30);not null" json:"adjustmentType"`
	Reason         string          `gorm:"type:text;not null" json:"reason"`
	CreatedBy      string          `gorm:"type:varchar(255)" json:"createdBy"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func (QuantityAdjustment) TableName() string {
	return "quantity_adjustments"
}

// Valid reports whether t is a known adjustment type
func (t AdjustmentType) Valid() bool {
	switch t {
	case AdjustmentCorrection, AdjustmentInventoryCount, AdjustmentDamage,
		AdjustmentSample, AdjustmentOther:
		return true
	}
	return false
}
