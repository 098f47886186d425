package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type RelationKind string

const (
	RelationTransform RelationKind = "TRANSFORM"
	RelationSplit     RelationKind = "SPLIT"
	RelationMerge     RelationKind = "MERGE"
)

// GenealogyEdge records that quantity moved from SourceBatchID into
// TargetBatchID. Edges are written once and never updated.
type GenealogyEdge struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	SourceBatchID uint64          `gorm:"not null;index" json:"sourceBatchId"`
	TargetBatchID uint64          `gorm:"not null;index" json:"targetBatchId"`
	RelationKind  RelationKind    `gorm:"type:varchar(20);not null" json:"relationKind"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity"`
	Unit          string          `gorm:"type:varchar(20)" json:"unit"`
	Reason        string          `gorm:"type:text" json:"reason,omitempty"`
	CreatedBy     string          `gorm:"type:varchar(255)" json:"createdBy"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func (GenealogyEdge) TableName() string {
	return "genealogy_edges"
}
