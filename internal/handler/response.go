package handler

import (
	"errors"
	"strconv"

	"go-batch-ledger/internal/service"
	"go-batch-ledger/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

const (
	codeValidation   = "VALIDATION_ERROR"
	codeNotFound     = "NOT_FOUND"
	codeTransition   = "INVALID_TRANSITION"
	codeInsufficient = "INSUFFICIENT_QUANTITY"
	codeCycle        = "CYCLE_DETECTED"
	codeConflict     = "CONFLICT"
	codeInternal     = "INTERNAL_ERROR"
)

// respondError maps ledger errors onto status codes. Anything unrecognised
// is logged and reported as a generic internal error.
func respondError(c *fiber.Ctx, err error) error {
	var (
		vErr *service.ValidationError
		qErr *service.InsufficientQuantityError
	)
	switch {
	case errors.As(err, &vErr):
		return c.Status(400).JSON(fiber.Map{"message": vErr.Message, "code": codeValidation})
	case errors.As(err, &qErr):
		return c.Status(409).JSON(fiber.Map{
			"message":   qErr.Error(),
			"code":      codeInsufficient,
			"requested": qErr.Requested,
			"available": qErr.Available,
		})
	case errors.Is(err, service.ErrNotFound):
		return c.Status(404).JSON(fiber.Map{"message": err.Error(), "code": codeNotFound})
	case errors.Is(err, service.ErrInvalidTransition):
		return c.Status(409).JSON(fiber.Map{"message": err.Error(), "code": codeTransition})
	case errors.Is(err, service.ErrCycleDetected):
		return c.Status(409).JSON(fiber.Map{"message": err.Error(), "code": codeCycle})
	case errors.Is(err, service.ErrConflict):
		return c.Status(409).JSON(fiber.Map{"message": err.Error(), "code": codeConflict})
	}

	logger.LogError("handler", c.Route().Path, c.Method()+" "+c.OriginalURL(), nil, err)
	return c.Status(500).JSON(fiber.Map{"message": "Internal Server Error", "code": codeInternal})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(400).JSON(fiber.Map{"message": message, "code": codeValidation})
}

// parseID reads a positive numeric route parameter
func parseID(c *fiber.Ctx, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// ErrorHandler renders errors that escape the handlers, such as unknown
// routes, in the same body shape
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fErr *fiber.Error
	if errors.As(err, &fErr) {
		code := codeInternal
		switch fErr.Code {
		case fiber.StatusNotFound:
			code = codeNotFound
		case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
			code = codeValidation
		case fiber.StatusMethodNotAllowed:
			code = "METHOD_NOT_ALLOWED"
		case fiber.StatusUpgradeRequired:
			code = "UPGRADE_REQUIRED"
		}
		return c.Status(fErr.Code).JSON(fiber.Map{"message": fErr.Message, "code": code})
	}
	return respondError(c, err)
}
