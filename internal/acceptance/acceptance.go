// Package acceptance drives the landing page opened from an invitation
// link: it reads the token from the URL, waits for a signed-in user and
// lets them accept or decline.
package acceptance

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
	"familyvault/internal/auth"
	"familyvault/internal/clock"
	"familyvault/internal/dom"
	"familyvault/internal/model"
	"familyvault/internal/notify"
)

// Element ids of the acceptance page.
const (
	ElemLoading        = "loadingState"
	ElemLoginPrompt    = "loginPrompt"
	ElemError          = "errorState"
	ElemErrorMessage   = "errorMessage"
	ElemPanel          = "invitationPanel"
	ElemDetails        = "invitationDetails"
	ElemExpiring       = "expiringBanner"
	ElemExpired        = "expiredNotice"
	ElemSuccess        = "successState"
	ElemSuccessMessage = "successMessage"
	ElemAccept         = "acceptButton"
	ElemDecline        = "declineButton"
)

const (
	DefaultRedirectDelay  = 2 * time.Second
	DefaultExpiringWindow = 24 * time.Hour
	DefaultDashboardURL   = "/documents"

	placeholderValidity = 7 * 24 * time.Hour
)

var (
	// ErrMissingToken means the page URL carries no token parameter.
	ErrMissingToken = errors.New("invitation link has no token")
	// ErrBusy means an accept or decline is already in flight.
	ErrBusy = errors.New("invitation response already in progress")
)

// Deps are the collaborators of a Controller.
type Deps struct {
	API            api.Caller
	Document       dom.Document
	Window         dom.Window
	Alerts         notify.Sink
	Clock          clock.Clock
	Logger         *slog.Logger
	RedirectDelay  time.Duration
	ExpiringWindow time.Duration
	DashboardURL   string
}

type Controller struct {
	api       api.Caller
	doc       dom.Document
	win       dom.Window
	alerts    notify.Sink
	clock     clock.Clock
	log       *slog.Logger
	redirect  time.Duration
	window    time.Duration
	dashboard string

	mu         sync.Mutex
	token      string
	user       *model.User
	invitation *model.Invitation
	busy       bool
	accepted   bool
}

func NewController(d Deps) *Controller {
	c := &Controller{
		api:       d.API,
		doc:       d.Document,
		win:       d.Window,
		alerts:    d.Alerts,
		clock:     d.Clock,
		log:       d.Logger,
		redirect:  d.RedirectDelay,
		window:    d.ExpiringWindow,
		dashboard: d.DashboardURL,
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.redirect <= 0 {
		c.redirect = DefaultRedirectDelay
	}
	if c.window <= 0 {
		c.window = DefaultExpiringWindow
	}
	if c.dashboard == "" {
		c.dashboard = DefaultDashboardURL
	}
	c.log = c.log.With(slog.String("component", "acceptance"))
	return c
}

// Init reads the invitation token from pageURL. Without one the page
// shows a terminal error.
func (c *Controller) Init(pageURL string) error {
	u, err := url.Parse(pageURL)
	token := ""
	if err == nil {
		token = strings.TrimSpace(u.Query().Get("token"))
	}

	c.mu.Lock()
	c.token = token
	c.invitation = nil
	c.busy = false
	c.accepted = false
	c.mu.Unlock()

	c.doc.Hide(ElemPanel)
	c.doc.Hide(ElemSuccess)
	c.doc.Hide(ElemLoginPrompt)
	if token == "" {
		c.showError("Invalid invitation link. No token was provided.")
		return ErrMissingToken
	}
	c.doc.Hide(ElemError)
	c.doc.Show(ElemLoading)
	return nil
}

// Token returns the token parsed by Init.
func (c *Controller) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Invitation returns the details currently shown, if any.
func (c *Controller) Invitation() (model.Invitation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.invitation == nil {
		return model.Invitation{}, false
	}
	return *c.invitation, true
}

// Accepted reports whether the invitation was accepted since Init.
func (c *Controller) Accepted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accepted
}

// HandleAuthState reacts to one identity update. A nil user shows the
// login prompt; a signed-in user gets the invitation details.
func (c *Controller) HandleAuthState(ctx context.Context, user *model.User) {
	c.mu.Lock()
	token := c.token
	c.user = user
	c.mu.Unlock()
	if token == "" {
		return
	}

	if user == nil {
		c.doc.Hide(ElemLoading)
		c.doc.Hide(ElemPanel)
		c.doc.Show(ElemLoginPrompt)
		return
	}
	c.doc.Hide(ElemLoginPrompt)
	c.LoadDetails(ctx)
}

// Watch applies every auth state received until states is closed or
// ctx is done.
func (c *Controller) Watch(ctx context.Context, states <-chan *model.User) {
	for {
		select {
		case <-ctx.Done():
			return
		case user, ok := <-states:
			if !ok {
				return
			}
			c.HandleAuthState(ctx, user)
		}
	}
}

// LoadDetails fetches the invitation behind the token and renders it.
// When the backend cannot describe the invitation the page falls back
// to placeholder details; the token alone is enough to respond.
func (c *Controller) LoadDetails(ctx context.Context) model.Invitation {
	token := c.Token()
	inv, err := c.fetch(ctx, token)
	if err != nil {
		c.log.InfoContext(ctx, "invitation details unavailable, using placeholder",
			slog.String("error", err.Error()))
		now := c.clock.Now()
		inv = model.Invitation{
			Token:      token,
			FamilyName: "a family group",
			InvitedBy:  model.Identity{Name: "A family member"},
			Role:       model.RoleMember,
			Status:     model.InvitationPending,
			InvitedAt:  now,
			ExpiresAt:  now.Add(placeholderValidity),
		}
	}

	c.mu.Lock()
	c.invitation = &inv
	c.mu.Unlock()
	c.render(inv)
	return inv
}

func (c *Controller) fetch(ctx context.Context, token string) (model.Invitation, error) {
	var inv model.Invitation
	env, err := c.api.Call(ctx, api.GetInvitation, api.Request{Params: map[string]string{"token": token}})
	if err != nil {
		return inv, err
	}
	ok, err := env.Decode("invitation", &inv)
	if err != nil {
		return inv, err
	}
	if !ok {
		return inv, errors.New("response carried no invitation")
	}
	if inv.ActionToken() == "" {
		inv.Token = token
	}
	return inv, nil
}

func (c *Controller) render(inv model.Invitation) {
	now := c.clock.Now()

	var b strings.Builder
	fmt.Fprintf(&b, `<h2>You're invited to join %s</h2>`, dom.Text(inv.GroupName()))
	if by := inv.InvitedBy.String(); by != "" {
		fmt.Fprintf(&b, `<p class="invited-by">Invited by <strong>%s</strong></p>`, dom.Text(by))
	}
	if inv.Role != "" {
		fmt.Fprintf(&b, `<p class="role">Role: %s</p>`, dom.Text(inv.Role))
	}
	if !inv.InvitedAt.IsZero() {
		fmt.Fprintf(&b, `<p class="invited-at">Sent %s</p>`, inv.InvitedAt.Format("January 2, 2006"))
	}
	if !inv.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, `<p class="expires-at">Expires %s</p>`, inv.ExpiresAt.Format("January 2, 2006 at 3:04 PM"))
	}
	c.doc.SetHTML(ElemDetails, b.String())

	if inv.ExpiringSoon(now, c.window) {
		left := inv.ExpiresAt.Sub(now).Round(time.Hour)
		c.doc.SetHTML(ElemExpiring, fmt.Sprintf("This invitation expires in about %d hours.", int(left.Hours())))
		c.doc.Show(ElemExpiring)
	} else {
		c.doc.Hide(ElemExpiring)
	}
	if inv.Expired(now) {
		c.doc.Show(ElemExpired)
	} else {
		c.doc.Hide(ElemExpired)
	}

	c.doc.SetDisabled(ElemAccept, false)
	c.doc.SetDisabled(ElemDecline, false)
	c.doc.Hide(ElemLoading)
	c.doc.Show(ElemPanel)
}

// Accept joins the family and sends the user to the dashboard after
// the redirect delay.
func (c *Controller) Accept(ctx context.Context) error {
	env, err := c.respond(ctx, api.AcceptInvitation)
	if err != nil {
		return err
	}
	group := "the family"
	if inv, ok := c.Invitation(); ok && inv.GroupName() != "" {
		group = inv.GroupName()
	}
	msg := messageOr(env, fmt.Sprintf("You've joined %s!", group))
	c.mu.Lock()
	c.accepted = true
	c.mu.Unlock()
	c.succeed(msg + " Redirecting to your dashboard...")
	c.alerts.Success(msg)

	dashboard := c.dashboard
	c.clock.AfterFunc(c.redirect, func() {
		if c.win != nil {
			c.win.Redirect(dashboard)
		}
	})
	return nil
}

// Decline refuses the invitation and hides the panel.
func (c *Controller) Decline(ctx context.Context) error {
	env, err := c.respond(ctx, api.RejectInvitation)
	if err != nil {
		return err
	}
	msg := messageOr(env, "Invitation declined.")
	c.succeed(msg)
	c.alerts.Success(msg)
	return nil
}

// respond runs op for the current token with both buttons disabled.
// The buttons are re-enabled only on failure.
func (c *Controller) respond(ctx context.Context, op api.Operation) (*model.Envelope, error) {
	c.mu.Lock()
	token, user := c.token, c.user
	if token == "" {
		c.mu.Unlock()
		c.showError("Invalid invitation link. No token was provided.")
		return nil, ErrMissingToken
	}
	if user == nil {
		c.mu.Unlock()
		c.doc.Show(ElemLoginPrompt)
		c.alerts.Warn("Please log in to respond to this invitation")
		return nil, auth.ErrNotAuthenticated
	}
	if c.busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.busy = true
	c.mu.Unlock()

	c.doc.SetDisabled(ElemAccept, true)
	c.doc.SetDisabled(ElemDecline, true)

	env, err := c.api.Call(ctx, op, api.Request{Params: map[string]string{"token": token}})

	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
	if err != nil {
		c.log.WarnContext(ctx, "respond to invitation", slog.String("operation", op.Name), slog.String("error", err.Error()))
		c.alerts.Error(api.UserMessage(err))
		c.doc.SetDisabled(ElemAccept, false)
		c.doc.SetDisabled(ElemDecline, false)
		return nil, err
	}
	return env, nil
}

func (c *Controller) succeed(msg string) {
	c.doc.Hide(ElemPanel)
	c.doc.SetHTML(ElemSuccessMessage, dom.Text(msg))
	c.doc.Show(ElemSuccess)
}

func (c *Controller) showError(msg string) {
	c.doc.Hide(ElemLoading)
	c.doc.SetHTML(ElemErrorMessage, dom.Text(msg))
	c.doc.Show(ElemError)
}

func messageOr(env *model.Envelope, fallback string) string {
	if env != nil && env.Message != "" {
		return env.Message
	}
	return fallback
}
