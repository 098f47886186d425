package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventBatchCreated          = "batch_created"
	EventBatchSplit            = "batch_split"
	EventBatchMerged           = "batch_merged"
	EventBatchProduced         = "batch_produced"
	EventBatchStatusChanged    = "batch_status_changed"
	EventBatchQuantityAdjusted = "batch_quantity_adjusted"
	EventAllocationCreated     = "allocation_created"
	EventAllocationReleased    = "allocation_released"
	EventGenealogyLinked       = "genealogy_linked"
)

// LedgerEvent describes a committed ledger mutation for live subscribers
type LedgerEvent struct {
	ID         uuid.UUID   `json:"id"`
	Type       string      `json:"type"`
	Actor      string      `json:"actor"`
	Message    string      `json:"message"`
	OccurredAt time.Time   `json:"occurredAt"`
	Data       interface{} `json:"data"`
}

func NewLedgerEvent(eventType, actor, message string, data interface{}) LedgerEvent {
	return LedgerEvent{
		ID:         uuid.New(),
		Type:       eventType,
		Actor:      actor,
		Message:    message,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}
