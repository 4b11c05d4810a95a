package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/accessradar/accessradar/app/models"
	"github.com/accessradar/accessradar/app/repository"
	"github.com/accessradar/accessradar/internal/pkg/apperrors"
	"github.com/accessradar/accessradar/internal/pkg/usercontext"
)

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// HandleUserCreate provisions a new account. Accounts start on the free plan,
// an API key is issued separately.
// POST /api/v1/admin/users
func HandleUserCreate(c *fiber.Ctx) error {
	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, &apperrors.ValidationError{Field: "body", Reason: "invalid request body"})
	}

	user, err := models.CreateUser(strings.TrimSpace(req.Name), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return respondError(c, &apperrors.ValidationError{Field: "body", Reason: err.Error()})
	}
	if err := repository.GetGlobalFactory().GetUserRepository().Create(user); err != nil {
		return respondError(c, &apperrors.PersistenceError{Op: "create user", Err: err})
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

// HandleUserAPIKeyIssue issues a fresh API key for a user. The raw secret is
// returned exactly once, only its hash is stored. Issuing replaces any
// previous key.
// POST /api/v1/admin/users/:id/api-key
func HandleUserAPIKeyIssue(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("id")
	if err != nil || userID <= 0 {
		return respondError(c, &apperrors.ValidationError{Field: "id", Reason: "invalid user id"})
	}

	users := repository.GetGlobalFactory().GetUserRepository()
	user, err := users.GetByID(uint(userID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return userNotFound(c)
		}
		return respondError(c, &apperrors.PersistenceError{Op: "load user", Err: err})
	}

	replaced := user.HasActiveAPIKey()
	rawKey, err := user.IssueAPIKey()
	if err != nil {
		return respondError(c, &apperrors.PersistenceError{Op: "issue api key", Err: err})
	}
	if err := users.Update(user); err != nil {
		return respondError(c, &apperrors.PersistenceError{Op: "store api key", Err: err})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"api_key":    rawKey,
		"prefix":     user.APIKeyPrefix,
		"replaced":   replaced,
		"created_at": user.APIKeyCreatedAt,
	})
}

// HandleUserAPIKeyRevoke revokes a user's API key.
// DELETE /api/v1/admin/users/:id/api-key
func HandleUserAPIKeyRevoke(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("id")
	if err != nil || userID <= 0 {
		return respondError(c, &apperrors.ValidationError{Field: "id", Reason: "invalid user id"})
	}

	users := repository.GetGlobalFactory().GetUserRepository()
	user, err := users.GetByID(uint(userID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return userNotFound(c)
		}
		return respondError(c, &apperrors.PersistenceError{Op: "load user", Err: err})
	}
	if !user.HasActiveAPIKey() {
		return respondError(c, &apperrors.ValidationError{Field: "id", Reason: "user has no active api key"})
	}

	user.RevokeAPIKey()
	if err := users.Update(user); err != nil {
		return respondError(c, &apperrors.PersistenceError{Op: "revoke api key", Err: err})
	}

	return c.JSON(fiber.Map{"revoked": true})
}

// HandlePasswordChange lets the authenticated user rotate their password.
// POST /api/v1/account/password
func HandlePasswordChange(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return respondError(c, &apperrors.AuthError{Reason: "authentication required"})
	}

	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, &apperrors.ValidationError{Field: "body", Reason: "invalid request body"})
	}
	if len(req.NewPassword) < 6 {
		return respondError(c, &apperrors.ValidationError{Field: "new_password", Reason: "password must have at least 6 characters"})
	}

	users := repository.GetGlobalFactory().GetUserRepository()
	user, err := users.GetByID(userCtx.UserID)
	if err != nil {
		return respondError(c, &apperrors.PersistenceError{Op: "load user", Err: err})
	}
	if !user.CheckPassword(req.CurrentPassword) {
		return respondError(c, &apperrors.AuthError{Reason: "current password does not match"})
	}

	if err := user.SetPassword(req.NewPassword); err != nil {
		return respondError(c, &apperrors.PersistenceError{Op: "hash password", Err: err})
	}
	if err := users.Update(user); err != nil {
		return respondError(c, &apperrors.PersistenceError{Op: "store password", Err: err})
	}

	return c.JSON(fiber.Map{"changed": true})
}

func userNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":   "not_found",
		"message": "user not found",
	})
}
