package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"familyvault/internal/auth"
	"familyvault/internal/family"
	"familyvault/internal/model"
)

// Me returns the signed-in user.
//
// @Summary Current user
// @Tags session
// @Produce json
// @Success 200 {object} model.User
// @Failure 401 {object} errorPayload
// @Router /api/v1/me [get]
func Me() fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := workspace(c).User(c.UserContext())
		if u == nil {
			return writeAPIError(c, auth.ErrNotAuthenticated)
		}
		return c.JSON(u)
	}
}

// PendingInvitations lists invitations addressed to the user.
//
// @Summary Pending invitations
// @Tags family
// @Produce json
// @Success 200 {array} model.Invitation
// @Failure 401 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /api/v1/invitations/pending [get]
func PendingInvitations() fiber.Handler {
	return func(c *fiber.Ctx) error {
		invs, err := workspace(c).Family.LoadPending(c.UserContext())
		if err != nil {
			return writeAPIError(c, err)
		}
		return c.JSON(invs)
	}
}

// Members lists the members of the user's family group.
//
// @Summary Family members
// @Tags family
// @Produce json
// @Success 200 {array} model.Member
// @Failure 401 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /api/v1/members [get]
func Members() fiber.Handler {
	return func(c *fiber.Ctx) error {
		members, err := workspace(c).Family.LoadMembers(c.UserContext())
		if err != nil {
			return writeAPIError(c, err)
		}
		if members == nil {
			members = []model.Member{}
		}
		return c.JSON(members)
	}
}

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Invite sends an invitation into the user's family group, creating
// the group on first use.
//
// @Summary Invite a family member
// @Tags family
// @Accept json
// @Produce json
// @Param body body inviteRequest true "Invitee"
// @Success 201 {object} map[string]string
// @Failure 400 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /api/v1/invitations [post]
func Invite() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req inviteRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "bad request")
		}
		if req.Role == "" {
			req.Role = model.RoleMember
		}
		err := workspace(c).Family.SendInvitation(c.UserContext(), req.Email, req.Role)
		switch {
		case errors.Is(err, family.ErrSendInFlight):
			return writeError(c, fiber.StatusConflict, "IN_FLIGHT", "an invitation is already being sent")
		case err != nil:
			return writeAPIError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "sent", "email": req.Email})
	}
}

type documentList struct {
	Documents  []model.Document `json:"documents"`
	Pagination model.Pagination `json:"pagination"`
}

// ListDocuments returns one page of documents with the session's filters.
//
// @Summary List documents
// @Tags documents
// @Produce json
// @Param page query int false "Page number"
// @Success 200 {object} documentList
// @Failure 401 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /api/v1/documents [get]
func ListDocuments() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctrl := workspace(c).Documents
		var err error
		if p := c.QueryInt("page"); p > 0 {
			err = ctrl.ChangePage(c.UserContext(), p)
		} else {
			err = ctrl.LoadDocuments(c.UserContext())
		}
		if err != nil {
			return writeAPIError(c, err)
		}
		st := ctrl.State()
		docs := st.Documents
		if docs == nil {
			docs = []model.Document{}
		}
		return c.JSON(documentList{Documents: docs, Pagination: st.Pagination})
	}
}

// DocumentStats returns the dashboard counters.
//
// @Summary Document statistics
// @Tags documents
// @Produce json
// @Success 200 {object} model.Stats
// @Failure 401 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /api/v1/documents/stats [get]
func DocumentStats() fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := workspace(c).Documents.LoadStats(c.UserContext())
		if err != nil {
			return writeAPIError(c, err)
		}
		return c.JSON(stats)
	}
}
