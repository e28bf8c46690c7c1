package documents

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"familyvault/internal/api"
	"familyvault/internal/api/apitest"
	"familyvault/internal/clock"
	"familyvault/internal/dom"
	"familyvault/internal/model"
	"familyvault/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listBody = `{"success":true,
	"documents":[
		{"_id":"d1","title":"Passport","category":"identity","fileSize":1258291,"mimeType":"application/pdf","verificationStatus":"verified","uploadDate":"2024-02-01T09:00:00Z"},
		{"_id":"d2","title":"Diploma","category":"pets","fileSize":2048,"mimeType":"image/png"}
	],
	"pagination":{"total":45,"page":1,"pages":3}}`

type fixture struct {
	backend *apitest.Backend
	page    *dom.Page
	browser *dom.Browser
	alerts  *notify.Buffer
	clock   *clock.FakeClock
	ctrl    *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		backend: apitest.NewBackend(t),
		page:    dom.NewPage(),
		browser: dom.NewBrowser(true),
		alerts:  notify.NewBuffer(),
		clock:   clock.Fake(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.backend.JSON(http.MethodGet, "/documents", 200, listBody)
	f.backend.JSON(http.MethodGet, "/documents/stats", 200, `{"success":true,"stats":{"total":45,"shared":3,"recent":7,"expiring":2}}`)
	f.ctrl = NewController(Deps{
		API:      f.backend.Client(),
		Document: f.page,
		Window:   f.browser,
		Alerts:   f.alerts,
		Clock:    f.clock,
	})
	return f
}

// listQueries returns the query of every GET /documents call.
func (f *fixture) listQueries() []url.Values {
	var out []url.Values
	for _, r := range f.backend.Requests() {
		if r.Method == http.MethodGet && r.Path == "/documents" {
			out = append(out, r.Query)
		}
	}
	return out
}

func (f *fixture) lastListQuery(t *testing.T) url.Values {
	t.Helper()
	qs := f.listQueries()
	require.NotEmpty(t, qs)
	return qs[len(qs)-1]
}

func TestLoadDocuments_RendersListAndPagination(t *testing.T) {
	f := newFixture(t)
	f.ctrl.LoadCategories()

	require.NoError(t, f.ctrl.LoadDocuments(context.Background()))

	st := f.ctrl.State()
	assert.Len(t, st.Documents, 2)
	assert.Equal(t, model.Pagination{Total: 45, Page: 1, Pages: 3}, st.Pagination)
	assert.Equal(t, url.Values{"page": {"1"}, "limit": {"20"}}, f.lastListQuery(t))

	html := f.page.HTML(ElemContainer)
	assert.Contains(t, html, "documents-grid")
	assert.Contains(t, html, "1.2 MB")
	assert.Contains(t, html, "Identity Documents")
	assert.Contains(t, html, "Pets")
	assert.Contains(t, html, "fa-file-pdf")
	assert.Contains(t, html, "status-verified")
	assert.Contains(t, f.page.HTML(ElemPagination), `class="page-btn prev" disabled>`)
}

func TestLoadDocuments_FailureShowsEmptyState(t *testing.T) {
	f := newFixture(t)
	f.backend.JSON(http.MethodGet, "/documents", 500, `{"success":false,"message":"Search index offline"}`)

	err := f.ctrl.LoadDocuments(context.Background())

	require.Error(t, err)
	assert.Contains(t, f.page.HTML(ElemContainer), "Search index offline")
	assert.Empty(t, f.page.HTML(ElemPagination))
	assert.Empty(t, f.ctrl.State().Documents)
}

func TestLoadDocuments_ToleratesOddFileSizes(t *testing.T) {
	f := newFixture(t)
	f.backend.JSON(http.MethodGet, "/documents", 200, `{"success":true,
		"documents":[
			{"_id":"d1","title":"Lease","fileSize":1024},
			{"_id":"d2","title":"Will","fileSize":"2048"},
			{"_id":"d3","title":"Receipt","fileSize":12.5},
			"not a document",
			{"_id":"d5","title":"Scan","fileSize":"unknown"}
		],
		"pagination":{"total":4,"page":1,"pages":1}}`)

	require.NoError(t, f.ctrl.LoadDocuments(context.Background()))

	docs := f.ctrl.State().Documents
	require.Len(t, docs, 4)
	assert.Equal(t, []int64{1024, 2048, 12, 0}, []int64{docs[0].FileSize, docs[1].FileSize, docs[2].FileSize, docs[3].FileSize})

	html := f.page.HTML(ElemContainer)
	assert.Contains(t, html, "1 KB")
	assert.Contains(t, html, "2 KB")
	assert.Contains(t, html, "12 B")
	assert.Contains(t, html, "0 Bytes")
	assert.NotContains(t, html, "Failed to load documents")
}

func TestLoadDocuments_UndecodableListShowsGenericMessage(t *testing.T) {
	f := newFixture(t)
	f.backend.JSON(http.MethodGet, "/documents", 200, `{"success":true,"documents":"nope"}`)

	err := f.ctrl.LoadDocuments(context.Background())

	require.Error(t, err)
	html := f.page.HTML(ElemContainer)
	assert.Contains(t, html, "Failed to load documents")
	assert.Contains(t, html, "Unexpected response from the server")
	assert.NotContains(t, html, "cannot unmarshal")
	assert.NotContains(t, html, "decode")
}

func TestFilterThenPaginate(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ctrl.SetFilter(context.Background(), FilterCategory, "identity"))
	require.NoError(t, f.ctrl.ChangePage(context.Background(), 3))

	qs := f.listQueries()
	require.Len(t, qs, 2)
	assert.Equal(t, url.Values{"category": {"identity"}, "page": {"1"}, "limit": {"20"}}, qs[0])
	assert.Equal(t, url.Values{"category": {"identity"}, "page": {"3"}, "limit": {"20"}}, qs[1])
	assert.Equal(t, "identity", f.page.Value(ElemCategoryFilter))
}

func TestSetFilter_EmptyValueRemovesKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ctrl.SetFilter(ctx, FilterStatus, "verified"))
	require.NoError(t, f.ctrl.ChangePage(ctx, 2))
	require.NoError(t, f.ctrl.SetFilter(ctx, FilterStatus, ""))

	assert.Equal(t, url.Values{"page": {"1"}, "limit": {"20"}}, f.lastListQuery(t))
	assert.ErrorIs(t, f.ctrl.SetFilter(ctx, "owner", "me"), ErrUnknownFilter)
}

func TestClearFilters_ResetsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.SetFilters(ctx, Filters{
		FilterSearch:     "pass",
		FilterCategory:   "identity",
		FilterDepartment: "Immigration",
		FilterStatus:     "pending",
	}))
	require.NoError(t, f.ctrl.ChangePage(ctx, 3))
	f.ctrl.Search(ctx, "pending keystrokes")

	require.NoError(t, f.ctrl.ClearFilters(ctx))

	assert.Equal(t, url.Values{"page": {"1"}, "limit": {"20"}}, f.lastListQuery(t))
	for _, elem := range []string{ElemSearch, ElemCategoryFilter, ElemDepartmentFilter, ElemStatusFilter} {
		assert.Empty(t, f.page.Value(elem), elem)
	}
	assert.Empty(t, f.ctrl.State().Filters)

	// the search typed before clearing never lands
	calls := len(f.listQueries())
	f.clock.Advance(time.Second)
	assert.Len(t, f.listQueries(), calls)
}

func TestSearch_IsDebounced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.ctrl.Search(ctx, "p")
	f.clock.Advance(200 * time.Millisecond)
	f.ctrl.Search(ctx, "pa")
	f.clock.Advance(200 * time.Millisecond)
	f.ctrl.Search(ctx, "pass")
	assert.Equal(t, "pass", f.page.Value(ElemSearch))

	f.clock.Advance(DefaultSearchDebounce - time.Millisecond)
	assert.Empty(t, f.listQueries())

	f.clock.Advance(time.Millisecond)
	qs := f.listQueries()
	require.Len(t, qs, 1)
	assert.Equal(t, "pass", qs[0].Get("search"))
	assert.Equal(t, 0, f.clock.Pending())
}

func TestSetView_RerendersWithoutFetch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.LoadDocuments(context.Background()))
	calls := len(f.backend.Calls())

	require.NoError(t, f.ctrl.SetView(ViewList))
	assert.Contains(t, f.page.HTML(ElemContainer), "<table")
	require.NoError(t, f.ctrl.SetView(ViewGrid))
	assert.Contains(t, f.page.HTML(ElemContainer), "documents-grid")
	assert.ErrorIs(t, f.ctrl.SetView("cards"), ErrUnknownView)

	assert.Len(t, f.backend.Calls(), calls)
	assert.Equal(t, ViewGrid, f.ctrl.State().View)
}

func TestLoadStats(t *testing.T) {
	f := newFixture(t)

	stats, err := f.ctrl.LoadStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Stats{Total: 45, Shared: 3, Recent: 7, Expiring: 2}, stats)
	assert.Equal(t, "45", f.page.HTML(ElemStatTotal))
	assert.Equal(t, "2", f.page.HTML(ElemStatExpiring))

	f.backend.JSON(http.MethodGet, "/documents/stats", 500, `{"success":false}`)
	_, err = f.ctrl.LoadStats(context.Background())
	assert.Error(t, err)
	assert.Empty(t, f.alerts.Messages())
}

func TestLoadCategories(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "Identity", f.ctrl.CategoryLabel("identity"))

	f.ctrl.LoadCategories()

	filter := f.page.Options(ElemCategoryFilter)
	require.Len(t, filter, len(Categories)+1)
	assert.Equal(t, AllCategoriesLabel, filter[0].Label)
	assert.Equal(t, SelectCategoryLabel, f.page.Options(ElemEditCategory)[0].Label)
	assert.Equal(t, SelectCategoryLabel, f.page.Options(ElemUploadCategory)[0].Label)
	assert.Equal(t, "Identity Documents", f.ctrl.CategoryLabel("identity"))
	assert.Equal(t, "Pets", f.ctrl.CategoryLabel("pets"))
}

func TestUpload(t *testing.T) {
	f := newFixture(t)
	var got struct {
		contentType, title, filename, content string
	}
	f.backend.Handle(http.MethodPost, "/documents/upload", func(w http.ResponseWriter, r *http.Request) {
		got.contentType = r.Header.Get("Content-Type")
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			got.title = r.FormValue("title")
			if file, hdr, err := r.FormFile("file"); err == nil {
				got.filename = hdr.Filename
				buf := new(strings.Builder)
				_, _ = io.Copy(buf, file)
				got.content = buf.String()
			}
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"message":"Uploaded"}`))
	})
	f.ctrl.OpenUpload()

	err := f.ctrl.Upload(context.Background(), api.Form{
		Fields: []api.Field{{Name: "title", Value: "Passport"}, {Name: "category", Value: "identity"}},
		Files:  []api.File{{Field: "file", Filename: "passport.pdf", ContentType: "application/pdf", Content: []byte("%PDF")}},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got.contentType, "multipart/form-data; boundary="))
	assert.Equal(t, "Passport", got.title)
	assert.Equal(t, "passport.pdf", got.filename)
	assert.Equal(t, "%PDF", got.content)
	assert.False(t, f.page.Visible(ElemUploadModal))
	assert.False(t, f.page.Disabled(ElemUploadSubmit))
	assert.Equal(t, []string{"POST /documents/upload", "GET /documents", "GET /documents/stats"}, f.backend.Calls())
	assert.Equal(t, notify.Message{Level: notify.LevelSuccess, Text: "Uploaded"}, f.alerts.Messages()[0])
}

func TestUpload_RequiresFile(t *testing.T) {
	f := newFixture(t)

	err := f.ctrl.Upload(context.Background(), api.Form{Fields: []api.Field{{Name: "title", Value: "x"}}})

	var invalid *model.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Empty(t, f.backend.Calls())
}

func TestViewDocument(t *testing.T) {
	f := newFixture(t)
	f.backend.JSON(http.MethodGet, "/documents/d1", 200, `{"success":true,"document":{"_id":"d1","fileUrl":"https://files.example.com/d1?sig=abc"}}`)
	f.backend.JSON(http.MethodGet, "/documents/d2", 200, `{"success":true,"document":{"_id":"d2"}}`)

	require.NoError(t, f.ctrl.ViewDocument(context.Background(), "d1"))
	require.NoError(t, f.ctrl.ViewDocument(context.Background(), "d2"))
	assert.Error(t, f.ctrl.ViewDocument(context.Background(), "missing"))

	assert.Equal(t, []string{
		"https://files.example.com/d1?sig=abc",
		f.backend.URL + "/documents/d2/download",
	}, f.browser.Opened())
	last, _ := f.alerts.Last()
	assert.Equal(t, notify.LevelError, last.Level)
}

func TestEditThenUpdate(t *testing.T) {
	f := newFixture(t)
	f.backend.JSON(http.MethodGet, "/documents/d1", 200, `{"success":true,"document":{
		"_id":"d1","title":"Passport","category":"identity","department":"Immigration",
		"documentNumber":"X123","issueDate":"2023-01-15T00:00:00.000Z","expiryDate":"2033-01-14T00:00:00.000Z",
		"description":"Blue one","tags":["passport","travel"]}}`)
	var sent map[string]any
	f.backend.Handle(http.MethodPut, "/documents/d1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&sent)
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	require.NoError(t, f.ctrl.EditDocument(context.Background(), "d1"))

	assert.True(t, f.page.Visible(ElemEditModal))
	assert.Equal(t, "d1", f.ctrl.State().EditID)
	assert.Equal(t, "2023-01-15", f.page.Value(ElemEditIssueDate))
	assert.Equal(t, "2033-01-14", f.page.Value(ElemEditExpiryDate))
	assert.Equal(t, "passport, travel", f.page.Value(ElemEditTags))
	assert.Equal(t, "identity", f.page.Value(ElemEditCategory))

	f.page.SetValue(ElemEditTitle, "Passport (renewed)")
	f.page.SetValue(ElemEditTags, "passport, ,travel,2033")
	require.NoError(t, f.ctrl.UpdateDocument(context.Background()))

	assert.Equal(t, "Passport (renewed)", sent["title"])
	assert.Equal(t, []any{"passport", "travel", "2033"}, sent["tags"])
	assert.Equal(t, "2023-01-15", sent["issueDate"])
	assert.Equal(t, "X123", sent["documentNumber"])
	assert.Empty(t, f.ctrl.State().EditID)
	assert.False(t, f.page.Visible(ElemEditModal))
	calls := f.backend.Calls()
	assert.Equal(t, "GET /documents", calls[len(calls)-1])
}

func TestUpdateDocument_Validation(t *testing.T) {
	f := newFixture(t)

	var invalid *model.ValidationError
	require.ErrorAs(t, f.ctrl.UpdateDocument(context.Background()), &invalid)
	assert.Equal(t, "document", invalid.Field)

	f.backend.JSON(http.MethodGet, "/documents/d1", 200, `{"success":true,"document":{"_id":"d1","title":"Passport"}}`)
	require.NoError(t, f.ctrl.EditDocument(context.Background(), "d1"))
	f.page.SetValue(ElemEditTitle, "  ")
	require.ErrorAs(t, f.ctrl.UpdateDocument(context.Background()), &invalid)
	assert.Equal(t, "title", invalid.Field)
	assert.Equal(t, "d1", f.ctrl.State().EditID)
	assert.False(t, f.page.Disabled(ElemEditSubmit))
}

func TestDeleteDocument(t *testing.T) {
	f := newFixture(t)
	f.backend.JSON(http.MethodDelete, "/documents/d1", 200, `{"success":true}`)

	f.browser.SetConfirm(false)
	ok, err := f.ctrl.DeleteDocument(context.Background(), "d1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, f.backend.Calls())

	f.browser.SetConfirm(true)
	ok, err = f.ctrl.DeleteDocument(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"DELETE /documents/d1", "GET /documents", "GET /documents/stats"}, f.backend.Calls())
	assert.Equal(t, notify.Message{Level: notify.LevelSuccess, Text: "Document deleted successfully"}, f.alerts.Messages()[0])
}
