package handlers

import (
	"github.com/filedepot/backend/internal/services"
	"github.com/filedepot/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type DirectoriesHandler struct {
	Tree *services.TreeService
}

func NewDirectoriesHandler(tree *services.TreeService) *DirectoriesHandler {
	return &DirectoriesHandler{Tree: tree}
}

// Get returns the directory together with its immediate subdirectories
// and files.
func (h *DirectoriesHandler) Get(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return utils.Fail(c, err)
	}

	directoryID, err := paramInt64(c, "directoryID")
	if err != nil {
		return utils.Fail(c, err)
	}

	listing, err := h.Tree.GetDirectory(c.Context(), actor.ID, directoryID)
	if err != nil {
		return utils.Fail(c, err)
	}

	return utils.OK(c, fiber.Map{"directory": serializeDirectoryListing(listing)})
}

func (h *DirectoriesHandler) Create(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return utils.Fail(c, err)
	}

	name, err := queryStringRequired(c, "name")
	if err != nil {
		return utils.Fail(c, err)
	}
	parentID, err := queryInt64Required(c, "parentDirectory")
	if err != nil {
		return utils.Fail(c, err)
	}

	dir, err := h.Tree.CreateDirectory(c.Context(), actor.ID, name, parentID)
	if err != nil {
		return utils.Fail(c, err)
	}

	return utils.Created(c, fiber.Map{"directory": serializeDirectory(dir)})
}

// Update renames and/or moves a directory. Root directories accept
// neither.
func (h *DirectoriesHandler) Update(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return utils.Fail(c, err)
	}

	directoryID, err := paramInt64(c, "directoryID")
	if err != nil {
		return utils.Fail(c, err)
	}

	name, err := queryStringOptional(c, "name")
	if err != nil {
		return utils.Fail(c, err)
	}
	parentID, err := queryInt64Optional(c, "parentDirectory")
	if err != nil {
		return utils.Fail(c, err)
	}

	dir, err := h.Tree.UpdateDirectory(c.Context(), actor.ID, directoryID, services.DirectoryUpdate{
		Name:     name,
		ParentID: parentID,
	})
	if err != nil {
		return utils.Fail(c, err)
	}

	return utils.OK(c, fiber.Map{"directory": serializeDirectory(dir)})
}

// Delete removes a directory. Without the "cascade" flag the directory
// must be empty; with it the whole subtree goes.
func (h *DirectoriesHandler) Delete(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return utils.Fail(c, err)
	}

	directoryID, err := paramInt64(c, "directoryID")
	if err != nil {
		return utils.Fail(c, err)
	}

	cascade, err := queryFlag(c, "cascade")
	if err != nil {
		return utils.Fail(c, err)
	}

	if err := h.Tree.DeleteDirectory(c.Context(), actor.ID, directoryID, cascade); err != nil {
		return utils.Fail(c, err)
	}

	return utils.OK(c, nil)
}
