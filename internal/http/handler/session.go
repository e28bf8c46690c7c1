package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"familyvault/internal/service"
)

const (
	// SessionCookie names the cookie carrying the browser session id.
	SessionCookie = "vault_session"

	workspaceLocalKey = "workspace"
)

// Session attaches the caller's workspace to the request, opening a new
// one and setting the cookie when the browser has none.
func Session(sessions service.Sessions, secure bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Cookies(SessionCookie)
		ws, created := sessions.Open(id)
		if created || ws.ID != id {
			c.Cookie(&fiber.Cookie{
				Name:     SessionCookie,
				Value:    ws.ID,
				Path:     "/",
				HTTPOnly: true,
				Secure:   secure,
				SameSite: fiber.CookieSameSiteLaxMode,
				Expires:  time.Now().Add(30 * 24 * time.Hour),
			})
		}
		c.Locals(workspaceLocalKey, ws)
		return c.Next()
	}
}

// workspace returns the workspace stored by Session.
func workspace(c *fiber.Ctx) *service.Workspace {
	ws, _ := c.Locals(workspaceLocalKey).(*service.Workspace)
	return ws
}

// sessionKey keys the rate limiter by browser session, falling back to
// the client address before a session exists.
func sessionKey(c *fiber.Ctx) string {
	if ws := workspace(c); ws != nil {
		return ws.ID
	}
	return c.IP()
}
