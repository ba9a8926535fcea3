package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/pkg/util"
)

// CookieName is the cookie carrying the access token.
const CookieName = "accessToken"

const principalKey = "auth.principal"

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	User   *domain.User
	Claims *Claims
}

// Middleware authenticates requests against both the signed token and
// the server-side session row; revoked sessions lose access even while
// the JWT itself is still unexpired.
type Middleware struct {
	tokens   *TokenManager
	sessions repository.SessionRepository
	users    repository.UserRepository
}

// NewMiddleware builds middleware.
func NewMiddleware(tokens *TokenManager, sessions repository.SessionRepository, users repository.UserRepository) *Middleware {
	return &Middleware{tokens: tokens, sessions: sessions, users: users}
}

// Authenticate resolves the caller and stores the Principal in Locals.
func (m *Middleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := extractToken(c)
		if raw == "" {
			return util.NewUnauthorized("authentication required")
		}

		claims, err := m.tokens.Parse(raw)
		if err != nil {
			clearSessionCookie(c)
			return util.NewUnauthorized("invalid or expired token")
		}

		session, err := m.sessions.GetByTokenHash(c.Context(), HashToken(raw))
		if err != nil {
			clearSessionCookie(c)
			return util.NewUnauthorized("session not found")
		}
		if session.Expired(time.Now()) {
			_ = m.sessions.DeleteByTokenHash(c.Context(), session.TokenHash)
			clearSessionCookie(c)
			return util.NewUnauthorized("session expired")
		}

		user, err := m.users.GetByID(c.Context(), claims.UserID)
		if err != nil {
			clearSessionCookie(c)
			return util.NewUnauthorized("account not found")
		}
		if !user.Enabled() {
			return util.NewUnauthorized("account is disabled")
		}

		c.Locals(principalKey, &Principal{User: user, Claims: claims})
		return c.Next()
	}
}

// RequireAdministrative rejects callers outside the administrative roles.
func (m *Middleware) RequireAdministrative() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal := PrincipalFrom(c)
		if principal == nil {
			return util.NewUnauthorized("authentication required")
		}
		if !principal.User.Role.IsAdministrative() {
			return util.NewUnauthorized("administrative role required")
		}
		return c.Next()
	}
}

// PrincipalFrom retrieves the authenticated caller, nil when absent.
func PrincipalFrom(c *fiber.Ctx) *Principal {
	principal, _ := c.Locals(principalKey).(*Principal)
	return principal
}

func extractToken(c *fiber.Ctx) string {
	if cookie := c.Cookies(CookieName); cookie != "" {
		return cookie
	}
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}
