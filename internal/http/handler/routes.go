package handler

import (
	"github.com/gofiber/fiber/v2"

	"familyvault/internal/auth"
	"familyvault/internal/http/middleware"
	"familyvault/internal/service"
)

// Deps are what the routes need from main.
type Deps struct {
	Sessions service.Sessions
	// DB is pinged by /health; nil when local storage is in memory.
	DB           Pinger
	Limiter      middleware.RateLimiter
	CookieSecure bool
	// OAuth enables provider sign-in; nil keeps token sign-in only.
	OAuth *auth.CodeFlow
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Everything after the probes runs inside a browser session.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())

	web := app.Group("", Session(d.Sessions, d.CookieSecure))
	limit := func(c *fiber.Ctx) error { return c.Next() }
	if d.Limiter != nil {
		limit = middleware.RateLimit(d.Limiter, sessionKey)
	}

	web.Get("/", func(c *fiber.Ctx) error { return c.Redirect(documentsPath, fiber.StatusSeeOther) })
	web.Get("/login", LoginPage(d.OAuth != nil))
	web.Post("/session/token", limit, SignIn())
	if d.OAuth != nil {
		web.Get(oauthStartPath, OAuthStart(d.OAuth, d.CookieSecure))
		web.Get(oauthCallbackPath, limit, OAuthCallback(d.OAuth, d.CookieSecure))
	}
	web.Post("/session/logout", SignOut())

	// The invitation link works signed out and shows its own login prompt.
	web.Get(invitationPath, InvitationPage())
	web.Post(invitationPath+"/accept", limit, AcceptFromLink())
	web.Post(invitationPath+"/decline", limit, DeclineFromLink())

	fam := web.Group(familyPath, requireUser())
	fam.Get("", FamilyPage())
	fam.Get("/invite", OpenInviteForm())
	fam.Get("/invite/cancel", CancelInviteForm())
	fam.Post("/invite", limit, SendInvitation())
	fam.Post("/invitations/:token/accept", limit, AcceptInvitation())
	fam.Post("/invitations/:token/decline", limit, DeclineInvitation())
	fam.Post("/invitations/:token/dismiss", DismissInvitation())

	docs := web.Group(documentsPath, requireUser())
	docs.Get("", DocumentsPage())
	docs.Post("/filters", limit, ApplyFilters())
	docs.Post("/filters/clear", limit, ClearFilters())
	docs.Post("/search", Search())
	docs.Post("/view", SetView())
	docs.Get("/upload", OpenUpload())
	docs.Get("/upload/cancel", CancelUpload())
	docs.Post("/upload", limit, Upload())
	docs.Get("/edit/cancel", CancelEdit())
	docs.Get("/:id/view", ViewDocument())
	docs.Get("/:id/edit", EditDocument())
	docs.Post("/:id/delete", limit, DeleteDocument())
	docs.Post("/:id", limit, UpdateDocument())

	v1 := web.Group("/api/v1")
	v1.Get("/me", Me())
	v1.Get("/invitations/pending", PendingInvitations())
	v1.Post("/invitations", limit, Invite())
	v1.Get("/members", Members())
	v1.Get("/documents", ListDocuments())
	v1.Get("/documents/stats", DocumentStats())
}
