package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/pkg/util"
)

// AuthHandler exposes registration, login and credential recovery.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// SignUp POST /auth/sign-up.
func (h *AuthHandler) SignUp(c *fiber.Ctx) error {
	var req dto.SignUpRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewBadRequest("invalid payload")
	}
	if req.FirstName == "" || req.LastName == "" || req.Email == "" || req.Password == "" {
		return util.NewBadRequest("firstName, lastName, email and password are required")
	}

	user, err := h.service.SignUp(c.UserContext(), service.SignUpInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		return err
	}
	return created(c, "account created", dto.NewUserResponse(user))
}

// SignIn POST /auth/sign-in.
func (h *AuthHandler) SignIn(c *fiber.Ctx) error {
	var req dto.SignInRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewBadRequest("invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return util.NewBadRequest("email and password are required")
	}

	result, err := h.service.SignIn(c.UserContext(), service.SignInInput{
		Email:     req.Email,
		Password:  req.Password,
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		SourceApp: req.SourceApp,
	})
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     auth.CookieName,
		Value:    result.Token,
		Expires:  result.ExpiresAt,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return ok(c, "signed in", fiber.Map{
		"accessToken": result.Token,
		"expiresAt":   result.ExpiresAt,
		"user":        dto.NewUserResponse(result.User),
	})
}

// SignOut POST /auth/sign-out.
func (h *AuthHandler) SignOut(c *fiber.Ctx) error {
	raw := c.Cookies(auth.CookieName)
	if err := h.service.SignOut(c.UserContext(), raw); err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return ok(c, "signed out", fiber.Map{"signedOut": true})
}

// Me GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal := auth.PrincipalFrom(c)
	if principal == nil {
		return util.NewUnauthorized("authentication required")
	}
	return ok(c, "current user", dto.NewUserResponse(principal.User))
}

// ForgotPassword POST /auth/forgot-password.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewBadRequest("invalid payload")
	}
	if req.Email == "" {
		return util.NewBadRequest("email is required")
	}
	if err := h.service.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return err
	}
	return ok(c, "password reset email sent", fiber.Map{"sent": true})
}

// ResetPassword POST /auth/reset-password.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewBadRequest("invalid payload")
	}
	if err := h.service.ResetPassword(c.UserContext(), req.Token, req.Password); err != nil {
		return err
	}
	return ok(c, "password reset", fiber.Map{"reset": true})
}

// ChangePassword POST /auth/change-password.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	principal := auth.PrincipalFrom(c)
	if principal == nil {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewBadRequest("invalid payload")
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return util.NewBadRequest("currentPassword and newPassword are required")
	}
	if err := h.service.ChangePassword(c.UserContext(), principal.User.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return ok(c, "password changed", fiber.Map{"changed": true})
}

// VerifyAccount GET /auth/verify.
func (h *AuthHandler) VerifyAccount(c *fiber.Ctx) error {
	token := c.Query("token")
	if err := h.service.VerifyAccount(c.UserContext(), token); err != nil {
		return err
	}
	return ok(c, "account verified", fiber.Map{"verified": true})
}
