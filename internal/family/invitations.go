// Package family drives the family section of the vault: the group the
// user belongs to, pending invitations and the member grid.
package family

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"familyvault/internal/api"
	"familyvault/internal/clock"
	"familyvault/internal/dom"
	"familyvault/internal/model"
	"familyvault/internal/notify"
	"familyvault/internal/repository"
)

// Element ids owned by the controller.
const (
	ElemInviteModal    = "inviteModal"
	ElemInviteEmail    = "inviteEmail"
	ElemInviteRole     = "inviteRole"
	ElemInviteSubmit   = "inviteSubmit"
	ElemPending        = "pendingInvitations"
	ElemPendingSection = "pendingSection"
	ElemFamilyGrid     = "familyGrid"
	ElemFamilySection  = "familySection"

	// AttrToken carries the action token of an invitation row.
	AttrToken = "data-token"
)

// DefaultRefetchDelay gives the backend time to commit a membership
// change before the lists are read again.
const DefaultRefetchDelay = 500 * time.Millisecond

// ErrSendInFlight is returned when an invitation is submitted while
// another one is still being sent.
var ErrSendInFlight = errors.New("an invitation is already being sent")

// Deps are the collaborators of a Controller. API, Document and Alerts
// are required.
type Deps struct {
	API          api.Caller
	Document     dom.Document
	Window       dom.Window
	Alerts       notify.Sink
	Storage      repository.LocalStorage
	Clock        clock.Clock
	Logger       *slog.Logger
	RefetchDelay time.Duration
}

// Controller implements invite, accept, decline and dismiss for one
// browser session.
type Controller struct {
	api          api.Caller
	groups       *GroupResolver
	doc          dom.Document
	win          dom.Window
	alerts       notify.Sink
	storage      repository.LocalStorage
	clock        clock.Clock
	log          *slog.Logger
	refetchDelay time.Duration

	mu      sync.Mutex
	sending bool
}

func NewController(d Deps) *Controller {
	c := &Controller{
		api:          d.API,
		groups:       NewGroupResolver(d.API),
		doc:          d.Document,
		win:          d.Window,
		alerts:       d.Alerts,
		storage:      d.Storage,
		clock:        d.Clock,
		log:          d.Logger,
		refetchDelay: d.RefetchDelay,
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.refetchDelay <= 0 {
		c.refetchDelay = DefaultRefetchDelay
	}
	c.log = c.log.With(slog.String("component", "family"))
	return c
}

// Groups exposes the controller's resolver.
func (c *Controller) Groups() *GroupResolver { return c.groups }

// ResetGroup forgets the memoized group id, e.g. on sign-out.
func (c *Controller) ResetGroup() { c.groups.Reset() }

// OpenInviteForm clears the invite form and shows its modal.
func (c *Controller) OpenInviteForm() {
	c.doc.SetValue(ElemInviteEmail, "")
	c.doc.SetValue(ElemInviteRole, model.RoleMember)
	c.doc.SetDisabled(ElemInviteSubmit, false)
	c.doc.Show(ElemInviteModal)
}

// SendInvitation invites email into the user's family group with the
// given role. Role is a free-form relationship label. While the send is
// in flight the submit trigger stays disabled and a second submission
// fails with ErrSendInFlight.
func (c *Controller) SendInvitation(ctx context.Context, email, role string) error {
	email = strings.TrimSpace(email)
	role = strings.TrimSpace(role)
	if email == "" {
		return c.invalid(model.Required("email", "Please enter an email address"))
	}
	if role == "" {
		return c.invalid(model.Required("role", "Please choose a relationship"))
	}

	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	c.sending = true
	c.doc.SetDisabled(ElemInviteSubmit, true)
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.sending = false
		c.doc.SetDisabled(ElemInviteSubmit, false)
		c.mu.Unlock()
	}()

	groupID, err := c.groups.Resolve(ctx)
	if err != nil {
		c.log.ErrorContext(ctx, "resolve family group", slog.String("error", err.Error()))
		c.alerts.Error("Could not find or create your family group: " + api.UserMessage(err))
		return err
	}

	env, err := c.api.Call(ctx, api.Invite, api.Request{
		Params: map[string]string{"groupId": groupID},
		Body:   map[string]string{"email": email, "role": role},
	})
	if err != nil {
		c.log.WarnContext(ctx, "send invitation", slog.String("error", err.Error()))
		c.alerts.Error(api.UserMessage(err))
		return err
	}

	msg := env.Message
	if msg == "" {
		msg = fmt.Sprintf("Invitation sent to %s", email)
	}
	c.alerts.Success(msg)
	c.doc.Hide(ElemInviteModal)
	c.doc.SetValue(ElemInviteEmail, "")

	_, _ = c.LoadPending(ctx)
	_, _ = c.LoadMembers(ctx)
	return nil
}

// LoadPending replaces the rendered pending invitations with the
// backend's current list. Invitations without any action token are
// skipped. It returns the rendered invitations.
func (c *Controller) LoadPending(ctx context.Context) ([]model.Invitation, error) {
	env, err := c.api.Call(ctx, api.ListPendingInvitations, api.Request{})
	if err != nil {
		c.log.WarnContext(ctx, "load pending invitations", slog.String("error", err.Error()))
		return nil, err
	}
	all, err := model.DecodeList[model.Invitation](env, "invitations", func(i int, err error) {
		c.log.WarnContext(ctx, "skipping malformed invitation", slog.Int("index", i), slog.String("error", err.Error()))
	})
	if err != nil {
		c.log.WarnContext(ctx, "decode pending invitations", slog.String("error", err.Error()))
		return nil, err
	}

	c.doc.SetHTML(ElemPending, "")
	rendered := make([]model.Invitation, 0, len(all))
	for _, inv := range all {
		token := inv.ActionToken()
		if token == "" {
			c.log.WarnContext(ctx, "skipping invitation without token",
				slog.String("family", inv.GroupName()), slog.String("invited_by", inv.InvitedBy.String()))
			continue
		}
		c.doc.Append(ElemPending, dom.Element{
			ID:    "invitation-" + token,
			Attrs: map[string]string{AttrToken: token, "class": "invitation-card"},
			HTML:  renderInvitation(inv, token),
		})
		rendered = append(rendered, inv)
	}

	if len(rendered) == 0 {
		c.doc.Hide(ElemPendingSection)
	} else {
		c.doc.Show(ElemPendingSection)
	}
	return rendered, nil
}

// Accept joins the family behind token. On success the family view is
// cleared and both lists are read again after the refetch delay.
func (c *Controller) Accept(ctx context.Context, token string) error {
	if token == "" {
		return c.invalid(model.Required("token", "Invalid invitation"))
	}
	env, err := c.api.Call(ctx, api.AcceptInvitation, api.Request{Params: map[string]string{"token": token}})
	if err != nil {
		c.log.WarnContext(ctx, "accept invitation", slog.String("error", err.Error()))
		c.alerts.Error(api.UserMessage(err))
		return err
	}

	c.alerts.Success(messageOr(env, "Invitation accepted! Welcome to the family."))
	c.ClearFamilyData(ctx)
	c.afterCommit(ctx, func(ctx context.Context) {
		_, _ = c.LoadPending(ctx)
		_, _ = c.LoadMembers(ctx)
	})
	return nil
}

// Decline rejects the invitation behind token after the user confirms.
// It returns false without error when the user backs out.
func (c *Controller) Decline(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, c.invalid(model.Required("token", "Invalid invitation"))
	}
	if c.win != nil && !c.win.Confirm(declinePrompt) {
		return false, nil
	}
	env, err := c.api.Call(ctx, api.RejectInvitation, api.Request{Params: map[string]string{"token": token}})
	if err != nil {
		c.log.WarnContext(ctx, "decline invitation", slog.String("error", err.Error()))
		c.alerts.Error(api.UserMessage(err))
		return false, err
	}

	c.alerts.Success(messageOr(env, "Invitation declined"))
	c.ClearFamilyData(ctx)
	c.afterCommit(ctx, func(ctx context.Context) {
		_, _ = c.LoadPending(ctx)
	})
	return true, nil
}

// Dismiss hides the invitation row for token. The backend is not told.
func (c *Controller) Dismiss(token string) int {
	removed := c.doc.RemoveWhere(ElemPending, AttrToken, token)
	if len(c.doc.Children(ElemPending)) == 0 {
		c.doc.Hide(ElemPendingSection)
	}
	c.alerts.Info("Invitation dismissed")
	return removed
}

// afterCommit runs f once the refetch delay has passed. The request
// context may be gone by then, so f gets one that is never cancelled.
func (c *Controller) afterCommit(ctx context.Context, f func(context.Context)) {
	bg := context.WithoutCancel(ctx)
	c.clock.AfterFunc(c.refetchDelay, func() { f(bg) })
}

func (c *Controller) invalid(err *model.ValidationError) error {
	c.alerts.Error(err.Message)
	return err
}

func messageOr(env *model.Envelope, fallback string) string {
	if env != nil && env.Message != "" {
		return env.Message
	}
	return fallback
}

func renderInvitation(inv model.Invitation, token string) string {
	var b strings.Builder
	group := inv.GroupName()
	if group == "" {
		group = "a family group"
	}
	fmt.Fprintf(&b, `<h4>Join %s</h4>`, dom.Text(group))
	if by := inv.InvitedBy.String(); by != "" {
		fmt.Fprintf(&b, `<p class="invited-by">Invited by %s</p>`, dom.Text(by))
	}
	if inv.Role != "" {
		fmt.Fprintf(&b, `<p class="role">As %s</p>`, dom.Text(inv.Role))
	}
	if !inv.InvitedAt.IsZero() {
		fmt.Fprintf(&b, `<p class="invited-at">Sent %s</p>`, inv.InvitedAt.Format(dateLayout))
	}
	if !inv.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, `<p class="expires-at">Expires %s</p>`, inv.ExpiresAt.Format(dateLayout))
	}
	action := "/family/invitations/" + url.PathEscape(token)
	b.WriteString(`<div class="actions">`)
	for _, a := range []struct{ verb, label, class, prompt string }{
		{"accept", "Accept", "btn-primary", ""},
		{"decline", "Decline", "btn-danger", declinePrompt},
		{"dismiss", "Dismiss", "btn-secondary", ""},
	} {
		b.WriteString(`<form method="post" action="` + dom.Text(action) + "/" + a.verb + `"`)
		if a.prompt != "" {
			fmt.Fprintf(&b, ` onsubmit="return confirm('%s')"`, dom.Text(a.prompt))
		}
		fmt.Fprintf(&b, `><button class="%s" name="confirm" value="yes">%s</button></form>`, a.class, a.label)
	}
	b.WriteString(`</div>`)
	return b.String()
}

const (
	dateLayout    = "Jan 2, 2006"
	declinePrompt = "Are you sure you want to decline this invitation?"
)
