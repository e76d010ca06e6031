package utils

import (
	"errors"

	"github.com/filedepot/backend/pkg/apperr"
	"github.com/filedepot/backend/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

// OK writes the standard envelope with status "ok" and any extra fields.
func OK(c *fiber.Ctx, extra fiber.Map) error {
	return envelope(c, fiber.StatusOK, extra)
}

// Created is OK with a 201 code, used by create operations.
func Created(c *fiber.Ctx, extra fiber.Map) error {
	return envelope(c, fiber.StatusCreated, extra)
}

// Binary writes raw file content with no envelope.
func Binary(c *fiber.Ctx, data []byte) error {
	c.Set(fiber.HeaderContentType, "application/octet-stream")
	return c.Status(fiber.StatusOK).Send(data)
}

// Fail maps err onto the categorical envelope. Anything that is not an
// apperr surfaces as internal_error with full context logged and no
// detail leaked to the caller.
func Fail(c *fiber.Ctx, err error) error {
	appErr := apperr.From(err)
	if appErr == nil {
		logger.Error("internal_error", err, map[string]interface{}{
			"method": c.Method(),
			"path":   c.Path(),
		})
		appErr = apperr.ErrInternal
	}

	payload := fiber.Map{"status": appErr.Status()}
	if msg := appErr.Message(); msg != "" {
		payload["message"] = msg
	}
	return c.Status(appErr.HTTPStatus()).JSON(payload)
}

// ErrorHandler adapts failures raised below the handlers (oversized bodies,
// transport-level rejections) onto the categorical envelope. A body beyond
// the server limit is a quota violation, not a bare 413.
func ErrorHandler(c *fiber.Ctx, err error) error {
	if errors.Is(err, fiber.ErrRequestEntityTooLarge) {
		return Fail(c, apperr.ErrQuotaExceeded)
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) && fiberErr.Code < fiber.StatusInternalServerError {
		return Fail(c, apperr.BadRequest(fiberErr.Message))
	}
	return Fail(c, err)
}

func envelope(c *fiber.Ctx, code int, extra fiber.Map) error {
	payload := fiber.Map{"status": "ok"}
	for key, value := range extra {
		payload[key] = value
	}
	return c.Status(code).JSON(payload)
}
