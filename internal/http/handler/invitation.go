package handler

import (
	"github.com/gofiber/fiber/v2"

	"familyvault/internal/acceptance"
)

const invitationPath = "/invitation"

// InvitationPage is the landing page of an invitation link. A request
// carrying ?token= starts over with that token; later visits render the
// current state and follow a pending dashboard redirect.
func InvitationPage() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ws := workspace(c)
		ctx := c.UserContext()
		ctrl := ws.Invitation

		if target, ok := ws.Browser.TakeRedirect(); ok {
			return c.Redirect(target, fiber.StatusSeeOther)
		}

		switch {
		case c.Query("token") != "":
			if err := ctrl.Init(c.OriginalURL()); err == nil {
				ctrl.HandleAuthState(ctx, ws.User(ctx))
			}
		case ctrl.Token() == "":
			_ = ctrl.Init(c.OriginalURL())
		default:
			// Came back from the login page.
			if _, loaded := ctrl.Invitation(); !loaded && !ws.Page.Visible(acceptance.ElemSuccess) {
				ctrl.HandleAuthState(ctx, ws.User(ctx))
			}
		}

		v := view{Title: "Family invitation"}
		if ctrl.Accepted() {
			// Poll until the delayed dashboard redirect is due.
			v.Refresh = "1;url=" + invitationPath
		}
		return render(c, "invitation", v)
	}
}

func AcceptFromLink() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ws := workspace(c)
		_ = ws.Invitation.Accept(c.UserContext())
		return c.Redirect(invitationPath, fiber.StatusSeeOther)
	}
}

func DeclineFromLink() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ws := workspace(c)
		_ = ws.Invitation.Decline(c.UserContext())
		return c.Redirect(invitationPath, fiber.StatusSeeOther)
	}
}
