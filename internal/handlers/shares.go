package handlers

import (
	"github.com/filedepot/backend/internal/services"
	"github.com/filedepot/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type SharesHandler struct {
	Shares *services.ShareService
}

func NewSharesHandler(shares *services.ShareService) *SharesHandler {
	return &SharesHandler{Shares: shares}
}

func (h *SharesHandler) Get(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return utils.Fail(c, err)
	}

	shareID, err := paramInt64(c, "shareID")
	if err != nil {
		return utils.Fail(c, err)
	}

	share, err := h.Shares.Get(c.Context(), actor.ID, shareID)
	if err != nil {
		return utils.Fail(c, err)
	}

	return utils.OK(c, fiber.Map{"share": serializeShare(share)})
}

// Create issues a share on a file or directory the caller owns. The
// "canWrite" flag upgrades the grant from read-only to read-write.
func (h *SharesHandler) Create(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return utils.Fail(c, err)
	}

	subjectID, err := queryInt64Required(c, "subject")
	if err != nil {
		return utils.Fail(c, err)
	}
	targetType, err := queryStringRequired(c, "targetType")
	if err != nil {
		return utils.Fail(c, err)
	}
	targetID, err := queryInt64Required(c, "targetID")
	if err != nil {
		return utils.Fail(c, err)
	}
	canWrite, err := queryFlag(c, "canWrite")
	if err != nil {
		return utils.Fail(c, err)
	}

	share, err := h.Shares.Create(c.Context(), actor.ID, subjectID, targetType, targetID, canWrite)
	if err != nil {
		return utils.Fail(c, err)
	}

	return utils.Created(c, fiber.Map{"share": serializeShare(share)})
}

func (h *SharesHandler) Delete(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return utils.Fail(c, err)
	}

	shareID, err := paramInt64(c, "shareID")
	if err != nil {
		return utils.Fail(c, err)
	}

	if err := h.Shares.Delete(c.Context(), actor.ID, shareID); err != nil {
		return utils.Fail(c, err)
	}

	return utils.OK(c, nil)
}
