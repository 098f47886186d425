package service

import (
	"strings"
	"time"

	"go-batch-ledger/internal/model"

	"github.com/shopspring/decimal"
)

type CreateBatchRequest struct {
	BatchNumber         string                 `json:"batchNumber" validate:"required,max=100"`
	MaterialID          string                 `json:"materialId" validate:"required,max=100"`
	MaterialName        string                 `json:"materialName" validate:"max=255"`
	Quantity            decimal.Decimal        `json:"quantity" validate:"gte=0,qty"`
	Unit                string                 `json:"unit" validate:"required,max=20"`
	Status              model.BatchStatus      `json:"status"`
	CreatedVia          model.CreationChannel  `json:"createdVia"`
	ProductionRef       string                 `json:"productionRef" validate:"max=100"`
	SupplierID          string                 `json:"supplierId" validate:"max=100"`
	SupplierName        string                 `json:"supplierName" validate:"max=255"`
	SupplierBatchNumber string                 `json:"supplierBatchNumber" validate:"max=100"`
	ReceivedAt          *time.Time             `json:"receivedAt"`
	Attributes          map[string]interface{} `json:"attributes"`
}

type AdjustQuantityRequest struct {
	NewQuantity    decimal.Decimal      `json:"newQuantity" validate:"gte=0,qty"`
	AdjustmentType model.AdjustmentType `json:"adjustmentType" validate:"required"`
	Reason         string               `json:"reason" validate:"required,min=10"`
}

type SplitPortion struct {
	Quantity          decimal.Decimal `json:"quantity" validate:"gt=0,qty"`
	BatchNumberSuffix string          `json:"batchNumberSuffix" validate:"max=20"`
}

type SplitRequest struct {
	SourceBatchID uint64         `json:"sourceBatchId" validate:"required"`
	Portions      []SplitPortion `json:"portions" validate:"required,min=1,dive"`
	Reason        string         `json:"reason" validate:"max=500"`
}

type MergeRequest struct {
	SourceBatchIDs    []uint64 `json:"sourceBatchIds" validate:"required,min=2"`
	TargetBatchNumber string   `json:"targetBatchNumber" validate:"max=100"`
	Reason            string   `json:"reason" validate:"max=500"`
}

type AllocateRequest struct {
	BatchID     uint64          `json:"batchId" validate:"required"`
	OrderLineID string          `json:"orderLineId" validate:"required,max=100"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gt=0,qty"`
	OrderID     string          `json:"orderId" validate:"max=100"`
	ProductID   string          `json:"productId" validate:"max=100"`
}

type LinkRequest struct {
	SourceBatchID uint64          `json:"sourceBatchId" validate:"required"`
	TargetBatchID uint64          `json:"targetBatchId" validate:"required"`
	Quantity      decimal.Decimal `json:"quantity" validate:"gte=0,qty"`
	Reason        string          `json:"reason" validate:"required,min=10"`
}

type ProductionInput struct {
	BatchID  uint64          `json:"batchId" validate:"required"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0,qty"`
}

type ProduceRequest struct {
	Output CreateBatchRequest `json:"output"`
	Inputs []ProductionInput  `json:"inputs" validate:"required,min=1,dive"`
}

func (r *CreateBatchRequest) trim() {
	r.BatchNumber = strings.TrimSpace(r.BatchNumber)
	r.MaterialID = strings.TrimSpace(r.MaterialID)
	r.Unit = strings.TrimSpace(r.Unit)
}

func (r *AdjustQuantityRequest) trim() {
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *SplitRequest) trim() {
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *MergeRequest) trim() {
	r.Reason = strings.TrimSpace(r.Reason)
	r.TargetBatchNumber = strings.TrimSpace(r.TargetBatchNumber)
}

func (r *AllocateRequest) trim() {
	r.OrderLineID = strings.TrimSpace(r.OrderLineID)
}

func (r *LinkRequest) trim() {
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *ProduceRequest) trim() {
	r.Output.trim()
}
