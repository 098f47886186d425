package handler

import (
	"go-batch-ledger/internal/middleware"
	"go-batch-ledger/internal/model"
	"go-batch-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
)

type LedgerHandler struct {
	split        service.SplitService
	merge        service.MergeService
	allocations  service.AllocationService
	availability service.AvailabilityCalculator
	genealogy    service.GenealogyService
	reports      service.ReportService
}

func NewLedgerHandler(
	split service.SplitService,
	merge service.MergeService,
	allocations service.AllocationService,
	availability service.AvailabilityCalculator,
	genealogy service.GenealogyService,
	reports service.ReportService,
) *LedgerHandler {
	return &LedgerHandler{
		split:        split,
		merge:        merge,
		allocations:  allocations,
		availability: availability,
		genealogy:    genealogy,
		reports:      reports,
	}
}

func (h *LedgerHandler) Split(c *fiber.Ctx) error {
	var req service.SplitRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	result, err := h.split.Split(c.UserContext(), &req, middleware.Actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(result)
}

func (h *LedgerHandler) Merge(c *fiber.Ctx) error {
	var req service.MergeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	result, err := h.merge.Merge(c.UserContext(), &req, middleware.Actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(result)
}

func (h *LedgerHandler) Allocate(c *fiber.Ctx) error {
	var req service.AllocateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	allocation, err := h.allocations.Allocate(c.UserContext(), &req, middleware.Actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(allocation)
}

func (h *LedgerHandler) Release(c *fiber.Ctx) error {
	id, ok := parseID(c, "allocationId")
	if !ok {
		return badRequest(c, "Invalid allocation ID")
	}
	if err := h.allocations.Release(c.UserContext(), id, middleware.Actor(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *LedgerHandler) Availability(c *fiber.Ctx) error {
	id, ok := parseID(c, "batchId")
	if !ok {
		return badRequest(c, "Invalid batch ID")
	}
	availability, err := h.availability.Availability(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(availability)
}

func (h *LedgerHandler) Genealogy(c *fiber.Ctx) error {
	id, ok := parseID(c, "batchId")
	if !ok {
		return badRequest(c, "Invalid batch ID")
	}
	view, err := h.genealogy.Genealogy(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// Ancestors returns the upstream lineage tree
// Query params: depth (default 0, unbounded)
func (h *LedgerHandler) Ancestors(c *fiber.Ctx) error {
	id, ok := parseID(c, "batchId")
	if !ok {
		return badRequest(c, "Invalid batch ID")
	}
	depth := c.QueryInt("depth", 0)
	tree, err := h.genealogy.AncestorsOf(c.UserContext(), id, depth)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"batchId": id, "depth": depth, "nodes": tree})
}

// Descendants returns the downstream lineage tree
// Query params: depth (default 0, unbounded)
func (h *LedgerHandler) Descendants(c *fiber.Ctx) error {
	id, ok := parseID(c, "batchId")
	if !ok {
		return badRequest(c, "Invalid batch ID")
	}
	depth := c.QueryInt("depth", 0)
	tree, err := h.genealogy.DescendantsOf(c.UserContext(), id, depth)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"batchId": id, "depth": depth, "nodes": tree})
}

func (h *LedgerHandler) Produce(c *fiber.Ctx) error {
	var req service.ProduceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	result, err := h.genealogy.RecordProduction(c.UserContext(), &req, middleware.Actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(result)
}

func (h *LedgerHandler) Link(c *fiber.Ctx) error {
	var req service.LinkRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	edge, err := h.genealogy.Link(c.UserContext(), &req, middleware.Actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(edge)
}

func (h *LedgerHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.reports.Summary(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}

func (h *LedgerHandler) Verify(c *fiber.Ctx) error {
	report, err := h.reports.Verify(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

// Privileges lists the codes the ledger checks on mutations, for the
// identity service to provision
func (h *LedgerHandler) Privileges(c *fiber.Ctx) error {
	return c.JSON(model.DefaultPrivileges)
}
