package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"familyvault/internal/api/apitest"
	"familyvault/internal/auth"
	"familyvault/internal/clock"
	"familyvault/internal/config"
	"familyvault/internal/http/middleware"
	"familyvault/internal/repository/memory"
	"familyvault/internal/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pendingBody = `{"success":true,"invitations":[
	{"token":"t1","familyName":"Smiths","invitedBy":"Ann","role":"parent","expiresAt":"2025-03-05T12:00:00Z"}
]}`

const membersBody = `{"success":true,"familyGroups":[{"_id":"g1","members":[{"name":"Ann","role":"admin"}]}]}`

const documentsBody = `{"success":true,
	"documents":[{"_id":"d1","title":"Passport","category":"identity","fileSize":2048,"mimeType":"application/pdf","fileUrl":"https://files.example.com/d1?sig=x"}],
	"pagination":{"total":1,"page":1,"pages":1}}`

type harness struct {
	t       *testing.T
	app     *fiber.App
	backend *apitest.Backend
	clock   *clock.FakeClock
	cookie  string
}

func newHarness(t *testing.T, limiter middleware.RateLimiter) *harness {
	t.Helper()
	return newHarnessWith(t, Deps{Limiter: limiter})
}

func newHarnessWith(t *testing.T, d Deps) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		backend: apitest.NewBackend(t),
		clock:   clock.Fake(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	sessions := service.NewManager(service.Options{
		API:     config.APIConfig{BaseURL: h.backend.URL, TimeoutSec: 5},
		UI:      config.UIConfig{PageSize: 20, RefetchDelayMs: 500, SearchDebounceMs: 500, RedirectDelayMs: 2000, ExpiringSoonHours: 24, DashboardURL: "/documents"},
		Storage: memory.NewLocalStorage(),
		Clock:   h.clock,
	}, time.Hour)

	h.app = fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	h.app.Use(middleware.RequestID())
	d.Sessions = sessions
	RegisterRoutes(h.app, d)
	return h
}

func (h *harness) do(req *http.Request) *http.Response {
	h.t.Helper()
	if h.cookie != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: h.cookie})
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			h.cookie = c.Value
		}
	}
	return resp
}

func (h *harness) get(target string) (*http.Response, string) {
	h.t.Helper()
	resp := h.do(httptest.NewRequest(http.MethodGet, target, nil))
	body, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return resp, string(body)
}

func (h *harness) post(target string, form url.Values) *http.Response {
	h.t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(req)
}

func anaToken(t *testing.T) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "user-1",
		"email": "ana@example.com",
		"name":  "Ana",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

func (h *harness) signIn() {
	h.t.Helper()
	resp := h.post("/session/token", url.Values{"token": {anaToken(h.t)}, "next": {"/family"}})
	require.Equal(h.t, http.StatusSeeOther, resp.StatusCode)
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var body errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))
	app.Get("/memory", HealthCheck(nil))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "postgres", body["store"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp).Error.Code)
	})

	t.Run("memory store", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/memory", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestErrorHandler_NotFoundEnvelope(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.do(httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.NotEmpty(t, body.RequestID)
}

func TestSession_CookieIsStable(t *testing.T) {
	h := newHarness(t, nil)

	resp, body := h.get("/login")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `action="/session/token"`)
	first := h.cookie
	require.NotEmpty(t, first)

	resp, _ = h.get("/login")
	assert.Empty(t, resp.Cookies(), "known session is not reissued")
	assert.Equal(t, first, h.cookie)
}

func TestRequireUser_RedirectsToLogin(t *testing.T) {
	h := newHarness(t, nil)

	resp, _ := h.get("/family")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?next=%2Ffamily", resp.Header.Get("Location"))
}

func newCodeFlow(t *testing.T, idToken string) (*auth.CodeFlow, *[]url.Values) {
	t.Helper()
	var exchanges []url.Values
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		exchanges = append(exchanges, r.PostForm)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"access-1","token_type":"Bearer","expires_in":3600,"id_token":"`+idToken+`"}`)
	}))
	t.Cleanup(provider.Close)

	flow, err := auth.NewCodeFlow(config.OAuthConfig{
		ClientID:     "vault-web",
		ClientSecret: "web-secret",
		AuthURL:      "https://id.example.com/authorize",
		TokenURL:     provider.URL + "/token",
		RefreshToken: "operator-refresh",
		Scopes:       []string{"openid", "email"},
	})
	require.NoError(t, err)
	return flow, &exchanges
}

func TestOAuth_FreshBrowserStaysAnonymous(t *testing.T) {
	flow, exchanges := newCodeFlow(t, anaToken(t))
	h := newHarnessWith(t, Deps{OAuth: flow})

	resp, _ := h.get("/family")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?next=%2Ffamily", resp.Header.Get("Location"))

	resp, _ = h.get("/api/v1/me")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := h.get(invitationPath + "?token=tok-1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `id="loginPrompt"`)

	assert.Empty(t, h.backend.Calls())
	assert.Empty(t, *exchanges)
}

func TestOAuth_SignInIsPerBrowser(t *testing.T) {
	flow, exchanges := newCodeFlow(t, anaToken(t))
	h := newHarnessWith(t, Deps{OAuth: flow})
	h.backend.JSON(http.MethodGet, "/family/invitations/pending", 200, pendingBody)
	h.backend.JSON(http.MethodGet, "/family/my-groups", 200, membersBody)

	_, body := h.get("/login?next=/family")
	assert.Contains(t, body, `href="/login/oauth?next=`)

	resp, _ := h.get(oauthStartPath + "?next=/family")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	target, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "id.example.com", target.Host)
	state := target.Query().Get("state")
	require.NotEmpty(t, state)
	assert.True(t, strings.HasSuffix(target.Query().Get("redirect_uri"), oauthCallbackPath))

	cookies := map[string]string{}
	for _, c := range resp.Cookies() {
		cookies[c.Name] = c.Value
	}
	assert.Equal(t, state, cookies[oauthStateCookie])
	assert.Equal(t, "/family", cookies[oauthNextCookie])

	callback := func(query string) *http.Response {
		req := httptest.NewRequest(http.MethodGet, oauthCallbackPath+"?"+query, nil)
		for name, value := range cookies {
			req.AddCookie(&http.Cookie{Name: name, Value: value})
		}
		return h.do(req)
	}

	resp = callback("code=abc&state=forged")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, *exchanges)

	resp = callback("code=abc&state=" + url.QueryEscape(state))
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/family", resp.Header.Get("Location"))
	require.Len(t, *exchanges, 1)
	assert.Equal(t, "abc", (*exchanges)[0].Get("code"))
	assert.Equal(t, "authorization_code", (*exchanges)[0].Get("grant_type"))

	resp, body = h.get("/family")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Signed in")
	assert.Contains(t, body, "Join Smiths")

	// A second browser is not signed in by the first one's login.
	signedIn := h.cookie
	h.cookie = ""
	resp, _ = h.get("/family")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.NotEqual(t, signedIn, h.cookie)
}

func TestSignIn_RejectsEmptyToken(t *testing.T) {
	h := newHarness(t, nil)

	resp := h.post("/session/token", url.Values{"token": {""}, "next": {"//evil.example.com"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?next=%2Ffamily", resp.Header.Get("Location"))

	_, body := h.get("/login")
	assert.Contains(t, body, "Sign in failed")
}

func TestFamilyPage_LoadsOnceAndDismissSticks(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.JSON(http.MethodGet, "/family/invitations/pending", 200, pendingBody)
	h.backend.JSON(http.MethodGet, "/family/my-groups", 200, membersBody)
	h.signIn()

	resp, body := h.get("/family")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `data-token="t1"`)
	assert.Contains(t, body, "Join Smiths")
	assert.Contains(t, body, "Ann")
	assert.Contains(t, body, "Signed in")
	calls := len(h.backend.Calls())
	assert.Equal(t, 2, calls)

	resp = h.post("/family/invitations/t1/dismiss", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	_, body = h.get("/family")
	assert.NotContains(t, body, `data-token="t1"`)
	assert.Contains(t, body, "Invitation dismissed")
	assert.Len(t, h.backend.Calls(), calls, "revisits render from the page state")

	_, body = h.get("/family?refresh=1")
	assert.Contains(t, body, `data-token="t1"`)
}

func TestFamily_SendInvitationForm(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.JSON(http.MethodGet, "/family/my-groups", 200, `{"success":true,"familyGroups":[{"_id":"g1","members":[]}]}`)
	h.backend.JSON(http.MethodPost, "/family/g1/invite", 200, `{"success":true}`)
	h.backend.JSON(http.MethodGet, "/family/invitations/pending", 200, `{"success":true,"invitations":[]}`)
	h.signIn()

	resp, _ := h.get("/family/invite")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	_, body := h.get("/family")
	assert.Contains(t, body, `id="inviteModal"`)

	resp = h.post("/family/invite", url.Values{"email": {"bo@example.com"}, "role": {"sibling"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	last, ok := h.backend.Last()
	require.True(t, ok)
	assert.Equal(t, "GET /family/my-groups", last.Method+" "+last.Path)
	var sent map[string]string
	for _, r := range h.backend.Requests() {
		if r.Path == "/family/g1/invite" {
			require.NoError(t, json.Unmarshal(r.Body, &sent))
		}
	}
	assert.Equal(t, map[string]string{"email": "bo@example.com", "role": "sibling"}, sent)

	_, body = h.get("/family")
	assert.Contains(t, body, "Invitation sent to bo@example.com")
	assert.NotContains(t, body, `id="inviteModal"`)
}

func TestFamily_DeclineNeedsConfirmation(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.JSON(http.MethodPost, "/family/reject-invitation/t1", 200, `{"success":true}`)
	h.signIn()

	resp := h.post("/family/invitations/t1/decline", nil)
	assert.Equal(t, "/family", resp.Header.Get("Location"))
	assert.Empty(t, h.backend.Calls())

	resp = h.post("/family/invitations/t1/decline", url.Values{"confirm": {"yes"}})
	assert.Equal(t, "/family?settle=1", resp.Header.Get("Location"))
	assert.Equal(t, []string{"POST /family/reject-invitation/t1"}, h.backend.Calls())

	_, body := h.get("/family?settle=1")
	assert.Contains(t, body, `http-equiv="refresh"`)
}

func TestDocumentsPage(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.JSON(http.MethodGet, "/documents", 200, documentsBody)
	h.backend.JSON(http.MethodGet, "/documents/stats", 200, `{"success":true,"stats":{"total":1,"shared":0,"recent":1,"expiring":0}}`)
	h.signIn()

	resp, body := h.get("/documents")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Passport")
	assert.Contains(t, body, "Identity Documents")
	assert.Contains(t, body, `<span id="totalDocuments">1</span>`)

	t.Run("page query", func(t *testing.T) {
		h.backend.Forget()
		h.get("/documents?page=2")
		req, ok := h.backend.Last()
		require.True(t, ok)
		assert.Equal(t, "2", req.Query.Get("page"))
	})

	t.Run("filters", func(t *testing.T) {
		h.backend.Forget()
		resp := h.post("/documents/filters", url.Values{"search": {"pass"}, "category": {"identity"}})
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		req, ok := h.backend.Last()
		require.True(t, ok)
		assert.Equal(t, "pass", req.Query.Get("search"))
		assert.Equal(t, "identity", req.Query.Get("category"))
		assert.Equal(t, "1", req.Query.Get("page"))

		h.post("/documents/filters/clear", nil)
		req, _ = h.backend.Last()
		assert.Empty(t, req.Query.Get("search"))
	})

	t.Run("view toggle", func(t *testing.T) {
		h.post("/documents/view", url.Values{"view": {"list"}})
		_, body := h.get("/documents")
		assert.Contains(t, body, "<table")

		resp := h.post("/documents/view", url.Values{"view": {"carousel"}})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestDocuments_ViewRedirectsToStoredFile(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.JSON(http.MethodGet, "/documents/d1", 200, `{"success":true,"document":{"_id":"d1","title":"Passport","fileUrl":"https://files.example.com/d1?sig=x"}}`)
	h.signIn()

	resp, _ := h.get("/documents/d1/view")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://files.example.com/d1?sig=x", resp.Header.Get("Location"))
}

func TestDocuments_DeleteNeedsConfirmation(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.JSON(http.MethodDelete, "/documents/d1", 200, `{"success":true}`)
	h.backend.JSON(http.MethodGet, "/documents", 200, documentsBody)
	h.signIn()

	h.post("/documents/d1/delete", nil)
	assert.Empty(t, h.backend.Calls())

	resp := h.post("/documents/d1/delete", url.Values{"confirm": {"yes"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Contains(t, h.backend.Calls(), "DELETE /documents/d1")
}

func TestDocuments_Upload(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.JSON(http.MethodPost, "/documents/upload", 200, `{"success":true}`)
	h.backend.JSON(http.MethodGet, "/documents", 200, documentsBody)
	h.signIn()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Passport"))
	require.NoError(t, mw.WriteField("category", "identity"))
	fw, err := mw.CreateFormFile("file", "passport.pdf")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := h.do(req)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	var upload apitest.Request
	for _, r := range h.backend.Requests() {
		if r.Path == "/documents/upload" {
			upload = r
		}
	}
	assert.True(t, strings.HasPrefix(upload.ContentType, "multipart/form-data"))
	assert.Contains(t, string(upload.Body), "%PDF-1.4")
	assert.Contains(t, string(upload.Body), `name="title"`)

	_, body := h.get("/documents")
	assert.Contains(t, body, "Document uploaded successfully")
}

func TestInvitationLink(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.JSON(http.MethodGet, "/family/invitation/t1", 200, `{"success":true,"invitation":{"token":"t1","familyName":"Smiths","invitedBy":"Ann","expiresAt":"2025-03-10T12:00:00Z"}}`)
	h.backend.JSON(http.MethodPost, "/family/accept-invitation/t1", 200, `{"success":true}`)

	_, body := h.get("/invitation?token=t1")
	assert.Contains(t, body, `id="loginPrompt"`)
	assert.NotContains(t, body, `id="invitationPanel"`)

	h.signIn()
	_, body = h.get("/invitation")
	assert.Contains(t, body, "join Smiths")
	assert.Contains(t, body, `id="acceptButton"`)

	resp := h.post("/invitation/accept", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	_, body = h.get("/invitation")
	assert.Contains(t, body, "You&#39;ve joined Smiths!")
	assert.Contains(t, body, `http-equiv="refresh"`)

	h.clock.Advance(2 * time.Second)
	resp, _ = h.get("/invitation")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/documents", resp.Header.Get("Location"))
}

func TestInvitationLink_MissingToken(t *testing.T) {
	h := newHarness(t, nil)

	_, body := h.get("/invitation")
	assert.Contains(t, body, "No token was provided")
}

func TestAPI(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.JSON(http.MethodGet, "/documents/stats", 200, `{"success":true,"stats":{"total":4,"shared":1,"recent":2,"expiring":1}}`)

	resp := h.do(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHENTICATED", decodeError(t, resp).Error.Code)

	h.signIn()

	resp = h.do(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, "ana@example.com", me["email"])

	resp = h.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents/stats", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 4, stats["total"])

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invitations", strings.NewReader(`{"email":""}`))
	req.Header.Set("Content-Type", "application/json")
	resp = h.do(req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", decodeError(t, resp).Error.Code)

	resp = h.do(httptest.NewRequest(http.MethodGet, "/api/v1/members", nil))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "BACKEND_REJECTED", decodeError(t, resp).Error.Code)
}

func TestRateLimit_PostsPerSession(t *testing.T) {
	h := newHarness(t, middleware.NewKeyedRateLimiter(1, 1, time.Minute))
	h.get("/login")

	resp := h.post("/session/token", url.Values{"token": {""}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp = h.post("/session/token", url.Values{"token": {""}})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, resp).Error.Code)
}
