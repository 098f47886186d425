package handler

import (
	"go-batch-ledger/internal/middleware"
	"go-batch-ledger/internal/model"
	"go-batch-ledger/internal/repository"
	"go-batch-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
)

type BatchHandler struct {
	batches     service.BatchService
	allocations service.AllocationService
}

func NewBatchHandler(b service.BatchService, a service.AllocationService) *BatchHandler {
	return &BatchHandler{batches: b, allocations: a}
}

func (h *BatchHandler) CreateBatch(c *fiber.Ctx) error {
	var req service.CreateBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	batch, err := h.batches.Create(c.UserContext(), &req, middleware.Actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(batch)
}

// GetBatches lists batches
// Query params: materialId, status, limit (default 50), offset
func (h *BatchHandler) GetBatches(c *fiber.Ctx) error {
	filter := repository.BatchFilter{
		MaterialID: c.Query("materialId"),
		Status:     model.BatchStatus(c.Query("status")),
		Limit:      c.QueryInt("limit", 50),
		Offset:     c.QueryInt("offset", 0),
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	batches, total, err := h.batches.List(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": batches, "total": total})
}

func (h *BatchHandler) GetBatch(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid batch ID")
	}
	batch, err := h.batches.GetByID(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(batch)
}

func (h *BatchHandler) GetBatchByNumber(c *fiber.Ctx) error {
	batch, err := h.batches.GetByNumber(c.UserContext(), c.Params("batchNumber"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(batch)
}

func (h *BatchHandler) UpdateStatus(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid batch ID")
	}
	var body struct {
		Status model.BatchStatus `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	batch, err := h.batches.UpdateStatus(c.UserContext(), id, body.Status, middleware.Actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(batch)
}

func (h *BatchHandler) AdjustQuantity(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid batch ID")
	}
	var req service.AdjustQuantityRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	adjustment, err := h.batches.AdjustQuantity(c.UserContext(), id, &req, middleware.Actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(adjustment)
}

func (h *BatchHandler) GetAdjustments(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid batch ID")
	}
	history, err := h.batches.Adjustments(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(history)
}

func (h *BatchHandler) Approve(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid batch ID")
	}
	batch, err := h.batches.Approve(c.UserContext(), id, middleware.Actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(batch)
}

func (h *BatchHandler) Reject(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid batch ID")
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	batch, err := h.batches.Reject(c.UserContext(), id, body.Reason, middleware.Actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(batch)
}

func (h *BatchHandler) GetBatchAllocations(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid batch ID")
	}
	allocations, err := h.allocations.ListForBatch(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(allocations)
}

func (h *BatchHandler) GetOrderLineAllocations(c *fiber.Ctx) error {
	allocations, err := h.allocations.ListForOrderLine(c.UserContext(), c.Params("orderLineId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(allocations)
}
