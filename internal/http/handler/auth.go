package handler

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// safeNext keeps post-login redirects on this site.
func safeNext(next, fallback string) string {
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") {
		return next
	}
	return fallback
}

// LoginPage renders the token sign-in form, plus the provider button
// when oauth is set.
func LoginPage(oauth bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return render(c, "login", view{Title: "Log in", Next: safeNext(c.Query("next"), "/family"), OAuth: oauth})
	}
}

type signInRequest struct {
	Token string `json:"token" form:"token"`
	Next  string `json:"next" form:"next"`
}

// SignIn stores the identity token posted by the browser.
//
// @Summary Sign in with an identity token
// @Tags session
// @Accept json,x-www-form-urlencoded
// @Param body body signInRequest true "ID token"
// @Success 303
// @Failure 400 {object} errorPayload
// @Router /session/token [post]
func SignIn() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req signInRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "bad request")
		}
		ws := workspace(c)
		if _, err := ws.SignIn(c.UserContext(), req.Token); err != nil {
			ws.Alerts.Error("Sign in failed: " + err.Error())
			return c.Redirect("/login?next="+url.QueryEscape(safeNext(req.Next, "/family")), fiber.StatusSeeOther)
		}
		ws.Alerts.Success("Signed in")
		return c.Redirect(safeNext(req.Next, "/family"), fiber.StatusSeeOther)
	}
}

// SignOut forgets the identity and the cached family data.
func SignOut() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ws := workspace(c)
		if err := ws.SignOut(c.UserContext()); err != nil {
			return err
		}
		ws.Alerts.Info("Signed out")
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
}

// requireUser sends anonymous browsers to the login page.
func requireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if workspace(c).User(c.UserContext()) == nil {
			return c.Redirect("/login?next="+url.QueryEscape(c.Path()), fiber.StatusSeeOther)
		}
		return c.Next()
	}
}
