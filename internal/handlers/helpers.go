package handlers

import (
	"fmt"
	"strconv"

	"github.com/filedepot/backend/internal/middleware"
	"github.com/filedepot/backend/internal/models"
	"github.com/filedepot/backend/pkg/apperr"
	"github.com/gofiber/fiber/v2"
)

func currentUser(c *fiber.Ctx) (*models.StorageUser, error) {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return nil, apperr.ErrUnauthorized
	}
	return user, nil
}

func paramInt64(c *fiber.Ctx, name string) (int64, error) {
	value, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil {
		return 0, apperr.BadRequest(fmt.Sprintf("Malformed value for %q", name))
	}
	return value, nil
}

func queryInt64Required(c *fiber.Ctx, name string) (int64, error) {
	if !c.Context().QueryArgs().Has(name) {
		return 0, apperr.BadRequest(fmt.Sprintf("Missing required query parameter %q", name))
	}
	value, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil {
		return 0, apperr.BadRequest(fmt.Sprintf("Malformed value for query parameter %q", name))
	}
	return value, nil
}

func queryInt64Optional(c *fiber.Ctx, name string) (*int64, error) {
	if !c.Context().QueryArgs().Has(name) {
		return nil, nil
	}
	value, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil {
		return nil, apperr.BadRequest(fmt.Sprintf("Malformed value for query parameter %q", name))
	}
	return &value, nil
}

func queryStringRequired(c *fiber.Ctx, name string) (string, error) {
	if !c.Context().QueryArgs().Has(name) {
		return "", apperr.BadRequest(fmt.Sprintf("Missing required query parameter %q", name))
	}
	value := c.Query(name)
	if value == "" {
		return "", apperr.BadRequest(fmt.Sprintf("Malformed value for query parameter %q", name))
	}
	return value, nil
}

func queryStringOptional(c *fiber.Ctx, name string) (*string, error) {
	if !c.Context().QueryArgs().Has(name) {
		return nil, nil
	}
	value := c.Query(name)
	if value == "" {
		return nil, apperr.BadRequest(fmt.Sprintf("Malformed value for query parameter %q", name))
	}
	return &value, nil
}

// queryFlag reads a presence-only query parameter. The flag is set by
// appearing at all; attaching a value is malformed.
func queryFlag(c *fiber.Ctx, name string) (bool, error) {
	if !c.Context().QueryArgs().Has(name) {
		return false, nil
	}
	if len(c.Context().QueryArgs().Peek(name)) > 0 {
		return false, apperr.BadRequest(fmt.Sprintf("Malformed value for query parameter %q", name))
	}
	return true, nil
}
