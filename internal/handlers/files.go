package handlers

import (
	"github.com/filedepot/backend/internal/services"
	"github.com/filedepot/backend/pkg/apperr"
	"github.com/filedepot/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type FilesHandler struct {
	Tree *services.TreeService
}

func NewFilesHandler(tree *services.TreeService) *FilesHandler {
	return &FilesHandler{Tree: tree}
}

// Get streams the raw file content. Metadata travels through the parent
// directory listing instead.
func (h *FilesHandler) Get(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return utils.Fail(c, err)
	}

	fileID, err := paramInt64(c, "fileID")
	if err != nil {
		return utils.Fail(c, err)
	}

	_, data, err := h.Tree.GetFileContent(c.Context(), actor.ID, fileID)
	if err != nil {
		return utils.Fail(c, err)
	}

	return utils.Binary(c, data)
}

// Create stores the request body as a new file under the named parent
// directory.
func (h *FilesHandler) Create(c *fiber.Ctx) error {
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

	file, err := h.Tree.CreateFile(c.Context(), actor.ID, name, parentID, c.Body())
	if err != nil {
		return utils.Fail(c, err)
	}

	return utils.Created(c, fiber.Map{"file": serializeFile(file)})
}

// Update renames, moves and/or rewrites a file. The body replaces the
// content only when the "writebody" flag is present; a body without the
// flag is malformed.
func (h *FilesHandler) Update(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return utils.Fail(c, err)
	}

	fileID, err := paramInt64(c, "fileID")
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
	writeBody, err := queryFlag(c, "writebody")
	if err != nil {
		return utils.Fail(c, err)
	}
	if !writeBody && len(c.Body()) > 0 {
		return utils.Fail(c, apperr.BadRequest("Cannot have a request body without the \"writebody\" flag"))
	}

	file, err := h.Tree.UpdateFile(c.Context(), actor.ID, fileID, services.FileUpdate{
		Name:      name,
		ParentID:  parentID,
		WriteBody: writeBody,
		Body:      c.Body(),
	})
	if err != nil {
		return utils.Fail(c, err)
	}

	return utils.OK(c, fiber.Map{"file": serializeFile(file)})
}

func (h *FilesHandler) Delete(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return utils.Fail(c, err)
	}

	fileID, err := paramInt64(c, "fileID")
	if err != nil {
		return utils.Fail(c, err)
	}

	if err := h.Tree.DeleteFile(c.Context(), actor.ID, fileID); err != nil {
		return utils.Fail(c, err)
	}

	return utils.OK(c, nil)
}
