package middleware

import (
	"strconv"

	"github.com/filedepot/backend/internal/models"
	"github.com/filedepot/backend/internal/services"
	"github.com/filedepot/backend/pkg/apperr"
	"github.com/filedepot/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

const currentUserKey = "currentUser"

// AuthMiddleware authenticates requests against the external authority's
// tokens and lazily provisions the storage-side user record. Every
// protected route names the acting user (path parameter or "user" query
// parameter), and the token must belong to exactly that user.
type AuthMiddleware struct {
	Verifier *utils.TokenVerifier
	Users    *services.UserService
}

func NewAuthMiddleware(verifier *utils.TokenVerifier, users *services.UserService) *AuthMiddleware {
	return &AuthMiddleware{Verifier: verifier, Users: users}
}

// RequireUserQuery authenticates routes carrying the acting user in the
// "user" query parameter.
func (a *AuthMiddleware) RequireUserQuery(c *fiber.Ctx) error {
	if !c.Context().QueryArgs().Has("user") {
		return utils.Fail(c, apperr.BadRequest("Missing required query parameter \"user\""))
	}
	userID, err := strconv.ParseInt(c.Query("user"), 10, 64)
	if err != nil {
		return utils.Fail(c, apperr.BadRequest("Malformed value for query parameter \"user\""))
	}
	return a.authenticate(c, userID)
}

// RequireUserParam authenticates routes whose path names the acting user,
// like the user-profile endpoint.
func (a *AuthMiddleware) RequireUserParam(c *fiber.Ctx) error {
	userID, err := strconv.ParseInt(c.Params("userID"), 10, 64)
	if err != nil {
		return utils.Fail(c, apperr.BadRequest("Malformed value for \"userID\""))
	}
	return a.authenticate(c, userID)
}

func (a *AuthMiddleware) authenticate(c *fiber.Ctx, claimedUserID int64) error {
	claims, err := a.Verifier.Verify(c.Get(fiber.HeaderAuthorization), claimedUserID)
	if err != nil {
		return utils.Fail(c, err)
	}

	user, err := a.Users.Provision(c.Context(), claims.UserID, claims.UserName)
	if err != nil {
		return utils.Fail(c, err)
	}

	c.Locals(currentUserKey, user)
	return c.Next()
}

// GetCurrentUser returns the authenticated user set by AuthMiddleware, or
// nil outside an authenticated request.
func GetCurrentUser(c *fiber.Ctx) *models.StorageUser {
	value := c.Locals(currentUserKey)
	if value == nil {
		return nil
	}
	user, ok := value.(*models.StorageUser)
	if !ok {
		return nil
	}
	return user
}
