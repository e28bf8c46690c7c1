package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/gofiber/fiber/v2"

	"familyvault/internal/documents"
	"familyvault/internal/dom"
	"familyvault/internal/model"
	"familyvault/internal/notify"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = map[string]*template.Template{}

func init() {
	for _, name := range []string{"login", "family", "documents", "invitation"} {
		pages[name] = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
}

// relationships offered by the invite form. The backend accepts any
// label, these are just the common ones.
var relationships = []string{
	model.RoleMember, "parent", "spouse", "child", "sibling", "grandparent", "guardian", "other",
}

// view is the data every page template renders from. Element accessors
// read the workspace's page, so templates show exactly what the
// controllers last rendered.
type view struct {
	Title   string
	Nav     string
	User    *model.User
	Alerts  []notify.Message
	Refresh string
	Next    string
	OAuth   bool
	Docs    documents.State

	page *dom.Page
}

func (v view) Render(id string) template.HTML {
	if v.page == nil {
		return ""
	}
	// Controllers escape every dynamic value they render.
	return template.HTML(v.page.Render(id))
}

func (v view) Visible(id string) bool  { return v.page != nil && v.page.Visible(id) }
func (v view) Disabled(id string) bool { return v.page != nil && v.page.Disabled(id) }
func (v view) Value(id string) string  { return pageValue(v.page, id) }
func (v view) Options(id string) []dom.Option {
	if v.page == nil {
		return nil
	}
	return v.page.Options(id)
}
func (v view) Roles() []string { return relationships }

func pageValue(p *dom.Page, id string) string {
	if p == nil {
		return ""
	}
	return p.Value(id)
}

// render executes the named page. Alerts are drained so each one is
// shown exactly once.
func render(c *fiber.Ctx, name string, v view) error {
	t, ok := pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	if ws := workspace(c); ws != nil {
		v.page = ws.Page
		v.Alerts = ws.Alerts.Drain()
		if v.User == nil {
			v.User = ws.User(c.UserContext())
		}
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", v); err != nil {
		return err
	}
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}
