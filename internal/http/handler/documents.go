package handler

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	"familyvault/internal/api"
	"familyvault/internal/documents"
)

const documentsPath = "/documents"

// uploadFields are the text inputs forwarded with an upload.
var uploadFields = []string{"title", "category", "department", "documentNumber", "issueDate", "expiryDate", "description", "tags"}

// editFields maps edit form inputs to the widgets UpdateDocument reads.
var editFields = map[string]string{
	"title":          documents.ElemEditTitle,
	"category":       documents.ElemEditCategory,
	"department":     documents.ElemEditDepartment,
	"documentNumber": documents.ElemEditDocumentNumber,
	"issueDate":      documents.ElemEditIssueDate,
	"expiryDate":     documents.ElemEditExpiryDate,
	"description":    documents.ElemEditDescription,
	"tags":           documents.ElemEditTags,
}

// DocumentsPage renders the dashboard. ?page=N switches page; the list
// and stats are otherwise fetched on the first visit and on ?refresh=1.
func DocumentsPage() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ws := workspace(c)
		ctx := c.UserContext()
		first := ws.FirstVisit("documents")
		if p := c.QueryInt("page"); p > 0 {
			_ = ws.Documents.ChangePage(ctx, p)
		} else if first || c.QueryBool("refresh") {
			_ = ws.Documents.LoadDocuments(ctx)
		}
		if first || c.QueryBool("refresh") {
			_, _ = ws.Documents.LoadStats(ctx)
		}
		return render(c, "documents", view{Title: "Documents", Nav: "documents", Docs: ws.Documents.State()})
	}
}

// ApplyFilters sets every filter from the filter form with one reload.
func ApplyFilters() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ws := workspace(c)
		_ = ws.Documents.SetFilters(c.UserContext(), documents.Filters{
			documents.FilterSearch:     c.FormValue(documents.FilterSearch),
			documents.FilterCategory:   c.FormValue(documents.FilterCategory),
			documents.FilterDepartment: c.FormValue(documents.FilterDepartment),
			documents.FilterStatus:     c.FormValue(documents.FilterStatus),
		})
		return c.Redirect(documentsPath, fiber.StatusSeeOther)
	}
}

// Search feeds live search input through the debounce. The list is
// refreshed in the background, so the caller only gets 202.
func Search() fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspace(c).Documents.Search(c.UserContext(), c.FormValue("q"))
		return c.SendStatus(fiber.StatusAccepted)
	}
}

func ClearFilters() fiber.Handler {
	return func(c *fiber.Ctx) error {
		_ = workspace(c).Documents.ClearFilters(c.UserContext())
		return c.Redirect(documentsPath, fiber.StatusSeeOther)
	}
}

func SetView() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := workspace(c).Documents.SetView(documents.View(c.FormValue("view"))); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.Redirect(documentsPath, fiber.StatusSeeOther)
	}
}

func OpenUpload() fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspace(c).Documents.OpenUpload()
		return c.Redirect(documentsPath, fiber.StatusSeeOther)
	}
}

func CancelUpload() fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspace(c).Page.Hide(documents.ElemUploadModal)
		return c.Redirect(documentsPath, fiber.StatusSeeOther)
	}
}

// Upload forwards the multipart upload form to the backend.
func Upload() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ws := workspace(c)
		form, err := uploadForm(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := ws.Documents.Upload(c.UserContext(), form); errors.Is(err, documents.ErrBusy) {
			ws.Alerts.Warn("An upload is already in progress")
		}
		return c.Redirect(documentsPath, fiber.StatusSeeOther)
	}
}

func uploadForm(c *fiber.Ctx) (api.Form, error) {
	var form api.Form
	mf, err := c.MultipartForm()
	if err != nil {
		return form, err
	}
	for _, name := range uploadFields {
		if vs := mf.Value[name]; len(vs) > 0 && vs[0] != "" {
			form.Fields = append(form.Fields, api.Field{Name: name, Value: vs[0]})
		}
	}
	for _, fh := range mf.File["file"] {
		if fh.Filename == "" {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return form, err
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return form, err
		}
		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}
		form.Files = append(form.Files, api.File{Field: "file", Filename: fh.Filename, ContentType: ct, Content: content})
	}
	return form, nil
}

// ViewDocument sends the browser to the stored file.
func ViewDocument() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ws := workspace(c)
		if err := ws.Documents.ViewDocument(c.UserContext(), c.Params("id")); err != nil {
			return c.Redirect(documentsPath, fiber.StatusSeeOther)
		}
		opened := ws.Browser.TakeOpened()
		if len(opened) == 0 {
			return c.Redirect(documentsPath, fiber.StatusSeeOther)
		}
		return c.Redirect(opened[len(opened)-1], fiber.StatusFound)
	}
}

func EditDocument() fiber.Handler {
	return func(c *fiber.Ctx) error {
		_ = workspace(c).Documents.EditDocument(c.UserContext(), c.Params("id"))
		return c.Redirect(documentsPath, fiber.StatusSeeOther)
	}
}

func CancelEdit() fiber.Handler {
	return func(c *fiber.Ctx) error {
		workspace(c).Documents.CancelEdit()
		return c.Redirect(documentsPath, fiber.StatusSeeOther)
	}
}

// UpdateDocument saves the edit form. A document other than the one in
// the edit session is loaded into the form first.
func UpdateDocument() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ws := workspace(c)
		ctx := c.UserContext()
		id := c.Params("id")
		if ws.Documents.State().EditID != id {
			if err := ws.Documents.EditDocument(ctx, id); err != nil {
				return c.Redirect(documentsPath, fiber.StatusSeeOther)
			}
		}
		for field, elem := range editFields {
			ws.Page.SetValue(elem, c.FormValue(field))
		}
		_ = ws.Documents.UpdateDocument(ctx)
		return c.Redirect(documentsPath, fiber.StatusSeeOther)
	}
}

func DeleteDocument() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ws := workspace(c)
		ws.Browser.SetConfirm(c.FormValue("confirm") == "yes")
		_, _ = ws.Documents.DeleteDocument(c.UserContext(), c.Params("id"))
		return c.Redirect(documentsPath, fiber.StatusSeeOther)
	}
}
