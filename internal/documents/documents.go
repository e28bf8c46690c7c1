// Package documents is the controller of the document dashboard:
// filtered and paginated listing, upload, edit, delete and stats.
package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"familyvault/internal/api"
	"familyvault/internal/clock"
	"familyvault/internal/dom"
	"familyvault/internal/model"
	"familyvault/internal/notify"
)

// Element ids owned by the controller.
const (
	ElemContainer        = "documentsContainer"
	ElemPagination       = "pagination"
	ElemSearch           = "searchInput"
	ElemCategoryFilter   = "categoryFilter"
	ElemDepartmentFilter = "departmentFilter"
	ElemStatusFilter     = "statusFilter"

	ElemUploadModal    = "uploadModal"
	ElemUploadCategory = "uploadCategory"
	ElemUploadSubmit   = "uploadSubmit"

	ElemEditModal          = "editModal"
	ElemEditSubmit         = "editSubmit"
	ElemEditTitle          = "editTitle"
	ElemEditCategory       = "editCategory"
	ElemEditDepartment     = "editDepartment"
	ElemEditDocumentNumber = "editDocumentNumber"
	ElemEditIssueDate      = "editIssueDate"
	ElemEditExpiryDate     = "editExpiryDate"
	ElemEditDescription    = "editDescription"
	ElemEditTags           = "editTags"

	ElemStatTotal    = "totalDocuments"
	ElemStatShared   = "sharedDocuments"
	ElemStatRecent   = "recentDocuments"
	ElemStatExpiring = "expiringDocuments"
)

// Recognized filter keys.
const (
	FilterSearch     = "search"
	FilterCategory   = "category"
	FilterDepartment = "department"
	FilterStatus     = "status"
)

// filterElems maps each filter to the widget that edits it.
var filterElems = map[string]string{
	FilterSearch:     ElemSearch,
	FilterCategory:   ElemCategoryFilter,
	FilterDepartment: ElemDepartmentFilter,
	FilterStatus:     ElemStatusFilter,
}

// View is the layout of the document list.
type View string

const (
	ViewGrid View = "grid"
	ViewList View = "list"
)

const (
	DefaultPageSize       = 20
	DefaultSearchDebounce = 500 * time.Millisecond
)

var (
	ErrUnknownFilter = errors.New("unknown filter")
	ErrUnknownView   = errors.New("unknown view")
	ErrBusy          = errors.New("a submission is already in progress")
)

// Filters is the active filter set keyed by filter name.
type Filters map[string]string

// State is a snapshot of the controller.
type State struct {
	Page       int
	PageSize   int
	Filters    Filters
	View       View
	Documents  []model.Document
	Pagination model.Pagination
	EditID     string
}

// Deps are the collaborators of a Controller.
type Deps struct {
	API            api.Caller
	Document       dom.Document
	Window         dom.Window
	Alerts         notify.Sink
	Clock          clock.Clock
	Logger         *slog.Logger
	PageSize       int
	SearchDebounce time.Duration
}

type Controller struct {
	api      api.Caller
	doc      dom.Document
	win      dom.Window
	alerts   notify.Sink
	clock    clock.Clock
	log      *slog.Logger
	debounce time.Duration

	mu          sync.Mutex
	page        int
	pageSize    int
	filters     Filters
	view        View
	docs        []model.Document
	pagination  model.Pagination
	categories  map[string]string
	editID      string
	searchSeq   int
	searchTimer *clock.Timer
	uploading   bool
	updating    bool
}

func NewController(d Deps) *Controller {
	c := &Controller{
		api:        d.API,
		doc:        d.Document,
		win:        d.Window,
		alerts:     d.Alerts,
		clock:      d.Clock,
		log:        d.Logger,
		debounce:   d.SearchDebounce,
		page:       1,
		pageSize:   d.PageSize,
		filters:    Filters{},
		view:       ViewGrid,
		categories: map[string]string{},
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.pageSize <= 0 {
		c.pageSize = DefaultPageSize
	}
	if c.debounce <= 0 {
		c.debounce = DefaultSearchDebounce
	}
	c.log = c.log.With(slog.String("component", "documents"))
	return c
}

// State returns a copy of the controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Page:       c.page,
		PageSize:   c.pageSize,
		Filters:    maps.Clone(c.filters),
		View:       c.view,
		Documents:  append([]model.Document(nil), c.docs...),
		Pagination: c.pagination,
		EditID:     c.editID,
	}
}

// LoadCategories fills the category catalog and every category
// selector on the page.
func (c *Controller) LoadCategories() {
	c.mu.Lock()
	for _, cat := range Categories {
		c.categories[cat.ID] = cat.Label
	}
	c.mu.Unlock()

	c.doc.SetOptions(ElemCategoryFilter, categoryOptions(AllCategoriesLabel))
	c.doc.SetOptions(ElemUploadCategory, categoryOptions(SelectCategoryLabel))
	c.doc.SetOptions(ElemEditCategory, categoryOptions(SelectCategoryLabel))
	c.doc.SetOptions(ElemStatusFilter, Statuses)
}

// CategoryLabel returns the display label of a category id, or the id
// with its first letter capitalized when it is not in the catalog.
func (c *Controller) CategoryLabel(id string) string {
	c.mu.Lock()
	label, ok := c.categories[id]
	c.mu.Unlock()
	if ok {
		return label
	}
	return capitalize(id)
}

// LoadDocuments fetches the current page with the current filters and
// renders the list and its pagination.
func (c *Controller) LoadDocuments(ctx context.Context) error {
	c.mu.Lock()
	query := url.Values{}
	for k, v := range c.filters {
		query.Set(k, v)
	}
	query.Set("page", strconv.Itoa(c.page))
	query.Set("limit", strconv.Itoa(c.pageSize))
	c.mu.Unlock()

	c.doc.SetHTML(ElemContainer, `<div class="loading">Loading documents...</div>`)

	env, err := c.api.Call(ctx, api.ListDocuments, api.Request{Query: query})
	var (
		docs []model.Document
		pg   model.Pagination
	)
	if err == nil {
		docs, err = model.DecodeList[model.Document](env, "documents", func(i int, err error) {
			c.log.WarnContext(ctx, "skipping malformed document", slog.Int("index", i), slog.String("error", err.Error()))
		})
		if err == nil {
			_, err = env.Decode("pagination", &pg)
		}
	}
	if err != nil {
		c.log.WarnContext(ctx, "load documents", slog.String("error", err.Error()))
		c.mu.Lock()
		c.docs = nil
		c.pagination = model.Pagination{}
		c.mu.Unlock()
		c.doc.SetHTML(ElemContainer, emptyState("Failed to load documents", api.UserMessage(err)))
		c.doc.SetHTML(ElemPagination, "")
		return err
	}

	c.mu.Lock()
	if pg.Page == 0 {
		pg.Page = c.page
	}
	if pg.Pages == 0 && pg.Total > 0 {
		pg.Pages = (pg.Total + c.pageSize - 1) / c.pageSize
	}
	c.docs = docs
	c.pagination = pg
	view := c.view
	c.mu.Unlock()

	c.doc.SetHTML(ElemContainer, c.renderDocuments(docs, view))
	c.doc.SetHTML(ElemPagination, RenderPagination(pg))
	return nil
}

// LoadStats fills the dashboard counters. Failures are logged only.
func (c *Controller) LoadStats(ctx context.Context) (model.Stats, error) {
	var stats model.Stats
	env, err := c.api.Call(ctx, api.DocumentStats, api.Request{})
	if err == nil {
		_, err = env.Decode("stats", &stats)
	}
	if err != nil {
		c.log.WarnContext(ctx, "load document stats", slog.String("error", err.Error()))
		return stats, err
	}
	c.doc.SetHTML(ElemStatTotal, strconv.Itoa(stats.Total))
	c.doc.SetHTML(ElemStatShared, strconv.Itoa(stats.Shared))
	c.doc.SetHTML(ElemStatRecent, strconv.Itoa(stats.Recent))
	c.doc.SetHTML(ElemStatExpiring, strconv.Itoa(stats.Expiring))
	return stats, nil
}

// SetFilter sets one filter, or removes it when value is empty, then
// reloads from the first page.
func (c *Controller) SetFilter(ctx context.Context, key, value string) error {
	return c.SetFilters(ctx, Filters{key: value})
}

// SetFilters applies several filters with a single reload.
func (c *Controller) SetFilters(ctx context.Context, f Filters) error {
	for key := range f {
		if _, ok := filterElems[key]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownFilter, key)
		}
	}
	c.mu.Lock()
	for key, value := range f {
		value = strings.TrimSpace(value)
		if value == "" {
			delete(c.filters, key)
		} else {
			c.filters[key] = value
		}
		c.doc.SetValue(filterElems[key], value)
	}
	c.page = 1
	c.mu.Unlock()
	return c.LoadDocuments(ctx)
}

// Search applies the free-text filter once input has been idle for the
// debounce window. Only the most recent text is applied.
func (c *Controller) Search(ctx context.Context, text string) {
	c.doc.SetValue(ElemSearch, text)
	bg := context.WithoutCancel(ctx)

	c.mu.Lock()
	c.searchSeq++
	seq := c.searchSeq
	if c.searchTimer != nil {
		c.searchTimer.Stop()
	}
	c.mu.Unlock()

	t := c.clock.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		latest := seq == c.searchSeq
		c.mu.Unlock()
		if latest {
			_ = c.SetFilter(bg, FilterSearch, text)
		}
	})

	c.mu.Lock()
	if seq == c.searchSeq {
		c.searchTimer = t
	}
	c.mu.Unlock()
}

// SetView switches between grid and list and re-renders the cached
// documents without a fetch.
func (c *Controller) SetView(v View) error {
	if v != ViewGrid && v != ViewList {
		return fmt.Errorf("%w: %q", ErrUnknownView, v)
	}
	c.mu.Lock()
	c.view = v
	docs := c.docs
	c.mu.Unlock()
	c.doc.SetHTML(ElemContainer, c.renderDocuments(docs, v))
	return nil
}

// ChangePage loads page n.
func (c *Controller) ChangePage(ctx context.Context, n int) error {
	if n < 1 {
		n = 1
	}
	c.mu.Lock()
	c.page = n
	c.mu.Unlock()
	return c.LoadDocuments(ctx)
}

// ClearFilters resets every filter widget, drops all filters and
// reloads the first page.
func (c *Controller) ClearFilters(ctx context.Context) error {
	c.mu.Lock()
	c.searchSeq++
	if c.searchTimer != nil {
		c.searchTimer.Stop()
		c.searchTimer = nil
	}
	c.filters = Filters{}
	c.page = 1
	c.mu.Unlock()

	for _, elem := range filterElems {
		c.doc.SetValue(elem, "")
	}
	return c.LoadDocuments(ctx)
}

// OpenUpload shows the upload modal.
func (c *Controller) OpenUpload() {
	c.doc.SetDisabled(ElemUploadSubmit, false)
	c.doc.Show(ElemUploadModal)
}

// Upload sends the named inputs of the upload form as multipart data.
func (c *Controller) Upload(ctx context.Context, form api.Form) error {
	if len(form.Files) == 0 {
		return c.invalid(model.Required("file", "Please select a file to upload"))
	}

	c.mu.Lock()
	if c.uploading {
		c.mu.Unlock()
		return ErrBusy
	}
	c.uploading = true
	c.mu.Unlock()
	c.doc.SetDisabled(ElemUploadSubmit, true)
	defer func() {
		c.mu.Lock()
		c.uploading = false
		c.mu.Unlock()
		c.doc.SetDisabled(ElemUploadSubmit, false)
	}()

	env, err := c.api.Call(ctx, api.UploadDocument, api.Request{Form: &form})
	if err != nil {
		c.log.WarnContext(ctx, "upload document", slog.String("error", err.Error()))
		c.alerts.Error(api.UserMessage(err))
		return err
	}
	c.alerts.Success(messageOr(env, "Document uploaded successfully"))
	c.doc.Hide(ElemUploadModal)
	_ = c.LoadDocuments(ctx)
	_, _ = c.LoadStats(ctx)
	return nil
}

// ViewDocument opens the stored file in a new tab, falling back to the
// backend download link when no pre-signed URL is known.
func (c *Controller) ViewDocument(ctx context.Context, id string) error {
	d, err := c.fetch(ctx, id)
	if err != nil {
		c.alerts.Error(api.UserMessage(err))
		return err
	}
	target := d.FileURL
	if target == "" {
		target, err = c.api.URL(api.DownloadDocument, map[string]string{"id": id})
		if err != nil {
			c.alerts.Error(api.UserMessage(err))
			return err
		}
	}
	if c.win != nil {
		c.win.Open(target)
	}
	return nil
}

// EditDocument fills the edit form from the document's metadata and
// opens the edit modal.
func (c *Controller) EditDocument(ctx context.Context, id string) error {
	d, err := c.fetch(ctx, id)
	if err != nil {
		c.alerts.Error(api.UserMessage(err))
		return err
	}

	c.doc.SetValue(ElemEditTitle, d.Title)
	c.doc.SetValue(ElemEditCategory, d.Category)
	c.doc.SetOptions(ElemEditCategory, categoryOptions(SelectCategoryLabel))
	c.doc.SetValue(ElemEditDepartment, d.Department)
	c.doc.SetValue(ElemEditDocumentNumber, d.DocumentNumber)
	c.doc.SetValue(ElemEditIssueDate, shortDate(d.IssueDate))
	c.doc.SetValue(ElemEditExpiryDate, shortDate(d.ExpiryDate))
	c.doc.SetValue(ElemEditDescription, d.Description)
	c.doc.SetValue(ElemEditTags, strings.Join(d.Tags, ", "))
	c.doc.SetDisabled(ElemEditSubmit, false)
	c.doc.Show(ElemEditModal)

	c.mu.Lock()
	c.editID = d.ID
	if c.editID == "" {
		c.editID = id
	}
	c.mu.Unlock()
	return nil
}

// CancelEdit closes the edit modal and ends the edit session.
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	c.editID = ""
	c.mu.Unlock()
	c.doc.Hide(ElemEditModal)
}

// UpdateDocument saves the edit form of the document being edited.
func (c *Controller) UpdateDocument(ctx context.Context) error {
	c.mu.Lock()
	id := c.editID
	if id == "" {
		c.mu.Unlock()
		return c.invalid(model.Required("document", "No document is being edited"))
	}
	if c.updating {
		c.mu.Unlock()
		return ErrBusy
	}
	c.updating = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.updating = false
		c.mu.Unlock()
		c.doc.SetDisabled(ElemEditSubmit, false)
	}()

	title := strings.TrimSpace(c.doc.Value(ElemEditTitle))
	if title == "" {
		return c.invalid(model.Required("title", "Please enter a title"))
	}
	c.doc.SetDisabled(ElemEditSubmit, true)

	body := map[string]any{
		"title":          title,
		"category":       c.doc.Value(ElemEditCategory),
		"department":     c.doc.Value(ElemEditDepartment),
		"documentNumber": c.doc.Value(ElemEditDocumentNumber),
		"issueDate":      c.doc.Value(ElemEditIssueDate),
		"expiryDate":     c.doc.Value(ElemEditExpiryDate),
		"description":    c.doc.Value(ElemEditDescription),
		"tags":           SplitTags(c.doc.Value(ElemEditTags)),
	}
	env, err := c.api.Call(ctx, api.UpdateDocument, api.Request{
		Params: map[string]string{"id": id},
		Body:   body,
	})
	if err != nil {
		c.log.WarnContext(ctx, "update document", slog.String("id", id), slog.String("error", err.Error()))
		c.alerts.Error(api.UserMessage(err))
		return err
	}

	c.alerts.Success(messageOr(env, "Document updated successfully"))
	c.CancelEdit()
	_ = c.LoadDocuments(ctx)
	return nil
}

const deletePrompt = "Are you sure you want to delete this document? This action cannot be undone."

// DeleteDocument removes a document after the user confirms. It
// returns false without error when the user backs out.
func (c *Controller) DeleteDocument(ctx context.Context, id string) (bool, error) {
	if c.win != nil && !c.win.Confirm(deletePrompt) {
		return false, nil
	}
	env, err := c.api.Call(ctx, api.DeleteDocument, api.Request{Params: map[string]string{"id": id}})
	if err != nil {
		c.log.WarnContext(ctx, "delete document", slog.String("id", id), slog.String("error", err.Error()))
		c.alerts.Error(api.UserMessage(err))
		return false, err
	}
	c.alerts.Success(messageOr(env, "Document deleted successfully"))
	_ = c.LoadDocuments(ctx)
	_, _ = c.LoadStats(ctx)
	return true, nil
}

func (c *Controller) fetch(ctx context.Context, id string) (model.Document, error) {
	var d model.Document
	if strings.TrimSpace(id) == "" {
		return d, model.Required("id", "Missing document id")
	}
	env, err := c.api.Call(ctx, api.GetDocument, api.Request{Params: map[string]string{"id": id}})
	if err != nil {
		c.log.WarnContext(ctx, "fetch document", slog.String("id", id), slog.String("error", err.Error()))
		return d, err
	}
	ok, err := env.Decode("document", &d)
	if err != nil {
		return d, err
	}
	if !ok {
		return d, errors.New("document not found in response")
	}
	return d, nil
}

func (c *Controller) invalid(err *model.ValidationError) error {
	c.alerts.Error(err.Message)
	return err
}

// SplitTags parses a comma-separated tag list, dropping blanks.
func SplitTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func messageOr(env *model.Envelope, fallback string) string {
	if env != nil && env.Message != "" {
		return env.Message
	}
	return fallback
}
