package handler

import (
	"context"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"familyvault/internal/auth"
)

const (
	oauthStartPath    = "/login/oauth"
	oauthCallbackPath = "/login/oauth/callback"

	oauthStateCookie = "oauth_state"
	oauthNextCookie  = "oauth_next"
	oauthCookieTTL   = 10 * time.Minute
	oauthExchangeTTL = 10 * time.Second
)

// OAuthStart sends the browser to the identity provider. The state and
// the page to return to ride in short-lived cookies.
func OAuthStart(flow *auth.CodeFlow, secure bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		state := uuid.NewString()
		setTempCookie(c, oauthStateCookie, state, secure)
		setTempCookie(c, oauthNextCookie, safeNext(c.Query("next"), familyPath), secure)
		return c.Redirect(flow.AuthCodeURL(state, c.BaseURL()+oauthCallbackPath), fiber.StatusFound)
	}
}

// OAuthCallback exchanges the provider's code for a session owned by
// this browser only.
func OAuthCallback(flow *auth.CodeFlow, secure bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ws := workspace(c)
		next := safeNext(c.Cookies(oauthNextCookie), familyPath)
		retry := "/login?next=" + url.QueryEscape(next)

		if reason := c.Query("error"); reason != "" {
			ws.Alerts.Error("Sign in failed: " + reason)
			return c.Redirect(retry, fiber.StatusSeeOther)
		}
		state := c.Cookies(oauthStateCookie)
		if state == "" || state != c.Query("state") {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid oauth state")
		}
		code := c.Query("code")
		if code == "" {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "missing authorization code")
		}
		clearTempCookie(c, oauthStateCookie, secure)
		clearTempCookie(c, oauthNextCookie, secure)

		ctx, cancel := context.WithTimeout(c.UserContext(), oauthExchangeTTL)
		defer cancel()
		session, err := flow.Exchange(ctx, code, c.BaseURL()+oauthCallbackPath)
		if err == nil {
			_, err = ws.SignInWith(ctx, session)
		}
		if err != nil {
			ws.Alerts.Error("Sign in failed: " + err.Error())
			return c.Redirect(retry, fiber.StatusSeeOther)
		}
		ws.Alerts.Success("Signed in")
		return c.Redirect(next, fiber.StatusSeeOther)
	}
}

func setTempCookie(c *fiber.Ctx, name, value string, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     oauthStartPath,
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(oauthCookieTTL),
	})
}

func clearTempCookie(c *fiber.Ctx, name string, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Path:     oauthStartPath,
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Unix(0, 0),
	})
}
