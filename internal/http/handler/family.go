package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"familyvault/internal/family"
)

const familyPath = "/family"

// FamilyPage renders members and pending invitations. Both lists are
// fetched on the first visit and on ?refresh=1 only, so rows dismissed
// locally stay dismissed.
func FamilyPage() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ws := workspace(c)
		ctx := c.UserContext()
		if ws.FirstVisit("family") || c.QueryBool("refresh") {
			_, _ = ws.Family.LoadPending(ctx)
			_, _ = ws.Family.LoadMembers(ctx)
		}
		v := view{Title: "Family", Nav: "family"}
		if c.QueryBool("settle") {
			// Lists are refetched shortly after accept and decline.
			v.Refresh = "1;url=" + familyPath
		}
		return render(c, "family", v)
	}
}

func OpenInviteForm() fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspace(c).Family.OpenInviteForm()
		return c.Redirect(familyPath, fiber.StatusSeeOther)
	}
}

func CancelInviteForm() fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspace(c).Page.Hide(family.ElemInviteModal)
		return c.Redirect(familyPath, fiber.StatusSeeOther)
	}
}

// SendInvitation posts the invite form. Failures are reported through
// the page alerts.
func SendInvitation() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ws := workspace(c)
		email, role := c.FormValue("email"), c.FormValue("role", "member")
		ws.Page.SetValue(family.ElemInviteEmail, email)
		ws.Page.SetValue(family.ElemInviteRole, role)
		err := ws.Family.SendInvitation(c.UserContext(), email, role)
		if errors.Is(err, family.ErrSendInFlight) {
			ws.Alerts.Warn("An invitation is already being sent")
		}
		return c.Redirect(familyPath, fiber.StatusSeeOther)
	}
}

func AcceptInvitation() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ws := workspace(c)
		if err := ws.Family.Accept(c.UserContext(), c.Params("token")); err != nil {
			return c.Redirect(familyPath, fiber.StatusSeeOther)
		}
		return c.Redirect(familyPath+"?settle=1", fiber.StatusSeeOther)
	}
}

// DeclineInvitation honours the browser-side confirmation carried in
// the confirm field.
func DeclineInvitation() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ws := workspace(c)
		ws.Browser.SetConfirm(c.FormValue("confirm") == "yes")
		declined, err := ws.Family.Decline(c.UserContext(), c.Params("token"))
		if err != nil || !declined {
			return c.Redirect(familyPath, fiber.StatusSeeOther)
		}
		return c.Redirect(familyPath+"?settle=1", fiber.StatusSeeOther)
	}
}

func DismissInvitation() fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspace(c).Family.Dismiss(c.Params("token"))
		return c.Redirect(familyPath, fiber.StatusSeeOther)
	}
}
