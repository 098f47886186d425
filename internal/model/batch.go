package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type BatchStatus string

const (
	BatchAvailable      BatchStatus = "AVAILABLE"
	BatchReserved       BatchStatus = "RESERVED"
	BatchConsumed       BatchStatus = "CONSUMED"
	BatchProduced       BatchStatus = "PRODUCED"
	BatchBlocked        BatchStatus = "BLOCKED"
	BatchScrapped       BatchStatus = "SCRAPPED"
	BatchOnHold         BatchStatus = "ON_HOLD"
	BatchQualityPending BatchStatus = "QUALITY_PENDING"
	BatchMerged         BatchStatus = "MERGED"
	BatchSplit          BatchStatus = "SPLIT"
)

// CreationChannel records how a batch came into existence
type CreationChannel string

const (
	CreatedByProduction   CreationChannel = "PRODUCTION"
	CreatedBySplit        CreationChannel = "SPLIT"
	CreatedByMerge        CreationChannel = "MERGE"
	CreatedByManual       CreationChannel = "MANUAL"
	CreatedBySystem       CreationChannel = "SYSTEM"
	CreatedByGoodsReceipt CreationChannel = "GOODS_RECEIPT"
)

// transitions is the complete status state machine. Statuses without an
// entry are terminal.
var transitions = map[BatchStatus][]BatchStatus{
	BatchAvailable: {
		BatchReserved, BatchConsumed, BatchBlocked, BatchScrapped,
		BatchOnHold, BatchSplit, BatchMerged,
	},
	BatchProduced: {
		BatchAvailable, BatchQualityPending, BatchBlocked, BatchOnHold,
		BatchConsumed, BatchScrapped,
	},
	BatchReserved:       {BatchAvailable, BatchConsumed, BatchBlocked, BatchOnHold},
	BatchQualityPending: {BatchAvailable, BatchScrapped},
	BatchBlocked:        {BatchAvailable, BatchScrapped},
	BatchOnHold:         {BatchAvailable, BatchScrapped},
}

// AllStatuses lists every known batch status
var AllStatuses = []BatchStatus{
	BatchAvailable, BatchReserved, BatchConsumed, BatchProduced, BatchBlocked,
	BatchScrapped, BatchOnHold, BatchQualityPending, BatchMerged, BatchSplit,
}

// Valid reports whether s is a known status
func (s BatchStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s
func (s BatchStatus) Terminal() bool {
	_, ok := transitions[s]
	return s.Valid() && !ok
}

// CanTransition checks the state machine for from -> to
func CanTransition(from, to BatchStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Valid reports whether c is a known creation channel
func (c CreationChannel) Valid() bool {
	switch c {
	case CreatedByProduction, CreatedBySplit, CreatedByMerge,
		CreatedByManual, CreatedBySystem, CreatedByGoodsReceipt:
		return true
	}
	return false
}

// Batch is a traceable quantity of one material
type Batch struct {
	BaseModel
	BatchNumber  string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"batchNumber"`
	MaterialID   string          `gorm:"type:varchar(100);index;not null" json:"materialId"`
	MaterialName string          `gorm:"type:varchar(255)" json:"materialName"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity"`
	Unit         string          `gorm:"type:varchar(20);not null" json:"unit"`
	Status       BatchStatus     `gorm:"type:varchar(20);index;not null" json:"status"`
	CreatedVia   CreationChannel `gorm:"type:varchar(20);not null" json:"createdVia"`

	// External production confirmation this batch came from, if any
	ProductionRef string `gorm:"type:varchar(100)" json:"productionRef,omitempty"`

	// Quality decision
	ApprovedBy      string     `gorm:"type:varchar(255)" json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	RejectedBy      string     `gorm:"type:varchar(255)" json:"rejectedBy,omitempty"`
	RejectedAt      *time.Time `json:"rejectedAt,omitempty"`
	RejectionReason string     `gorm:"type:text" json:"rejectionReason,omitempty"`

	// Supplier linkage for raw material receipts
	SupplierID          string     `gorm:"type:varchar(100)" json:"supplierId,omitempty"`
	SupplierName        string     `gorm:"type:varchar(255)" json:"supplierName,omitempty"`
	SupplierBatchNumber string     `gorm:"type:varchar(100)" json:"supplierBatchNumber,omitempty"`
	ReceivedAt          *time.Time `json:"receivedAt,omitempty"`

	Attributes datatypes.JSONMap `json:"attributes,omitempty"`

	// Optimistic concurrency counter, bumped on every write
	Version int64 `gorm:"not null;default:1" json:"version"`
}

func (Batch) TableName() string {
	return "batches"
}

// Allocatable reports whether new allocations may be placed on the batch
func (b *Batch) Allocatable() bool {
	return b.Status == BatchAvailable || b.Status == BatchReserved
}
