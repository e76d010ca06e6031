package handlers

import (
	"github.com/filedepot/backend/internal/services"
	"github.com/filedepot/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type ContactsHandler struct {
	Contacts *services.ContactService
}

func NewContactsHandler(contacts *services.ContactService) *ContactsHandler {
	return &ContactsHandler{Contacts: contacts}
}

func (h *ContactsHandler) Get(c *fiber.Ctx) error {
	if _, err := currentUser(c); err != nil {
		return utils.Fail(c, err)
	}

	contactID, err := paramInt64(c, "contactID")
	if err != nil {
		return utils.Fail(c, err)
	}

	contact, err := h.Contacts.Get(c.Context(), contactID)
	if err != nil {
		return utils.Fail(c, err)
	}

	return utils.OK(c, fiber.Map{"contact": serializeUser(contact)})
}

// Add records an acquaintance between the caller and the named user. The
// relation is symmetric and adding an existing contact changes nothing.
func (h *ContactsHandler) Add(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return utils.Fail(c, err)
	}

	contactID, err := paramInt64(c, "contactID")
	if err != nil {
		return utils.Fail(c, err)
	}

	contact, err := h.Contacts.Add(c.Context(), actor.ID, contactID)
	if err != nil {
		return utils.Fail(c, err)
	}

	return utils.OK(c, fiber.Map{"contact": serializeUser(contact)})
}

func (h *ContactsHandler) Remove(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return utils.Fail(c, err)
	}

	contactID, err := paramInt64(c, "contactID")
	if err != nil {
		return utils.Fail(c, err)
	}

	if err := h.Contacts.Remove(c.Context(), actor.ID, contactID); err != nil {
		return utils.Fail(c, err)
	}

	return utils.OK(c, nil)
}
