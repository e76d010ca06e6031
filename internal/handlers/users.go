package handlers

import (
	"github.com/filedepot/backend/internal/services"
	"github.com/filedepot/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type UsersHandler struct {
	Users *services.UserService
}

func NewUsersHandler(users *services.UserService) *UsersHandler {
	return &UsersHandler{Users: users}
}

// Info returns the profile named in the path together with its contact
// list. The route is authenticated against the same id, so callers only
// ever read their own profile.
func (h *UsersHandler) Info(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return utils.Fail(c, err)
	}

	userID, err := paramInt64(c, "userID")
	if err != nil {
		return utils.Fail(c, err)
	}

	user, contacts, err := h.Users.Info(c.Context(), actor.ID, userID)
	if err != nil {
		return utils.Fail(c, err)
	}

	return utils.OK(c, fiber.Map{"userinfo": serializeUserInfo(user, contacts)})
}
