// Package dom is the thin binding between controllers and whatever
// paints the page. Controllers only read form values, replace container
// markup and toggle visibility through these interfaces.
package dom

import (
	"html"
	"sort"
	"strings"
	"sync"
)

// Element is a child row appended to a container, e.g. one invitation.
type Element struct {
	ID    string
	Attrs map[string]string
	HTML  string
}

// Option is one entry of a select widget.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// Document is the mutable page a controller owns.
type Document interface {
	SetHTML(id, markup string)
	HTML(id string) string
	Append(parentID string, el Element)
	// RemoveWhere drops the children of parentID whose attr equals
	// value and returns how many were removed.
	RemoveWhere(parentID, attr, value string) int
	Children(parentID string) []Element
	Show(id string)
	Hide(id string)
	Visible(id string) bool
	SetDisabled(id string, disabled bool)
	Disabled(id string) bool
	Value(id string) string
	SetValue(id, value string)
	SetOptions(id string, opts []Option)
	Options(id string) []Option
}

// Window is the browser chrome around the page.
type Window interface {
	Confirm(message string) bool
	// Open shows url in a new tab.
	Open(url string)
	// Redirect navigates the current tab.
	Redirect(url string)
}

// Text escapes s for inclusion in markup.
func Text(s string) string { return html.EscapeString(s) }

type node struct {
	markup   string
	children []Element
	visible  bool
	disabled bool
	value    string
	options  []Option
}

// Page is an in-memory Document safe for concurrent use.
type Page struct {
	mu    sync.RWMutex
	nodes map[string]*node
}

var _ Document = (*Page)(nil)

func NewPage() *Page {
	return &Page{nodes: make(map[string]*node)}
}

func (p *Page) get(id string) *node {
	n, ok := p.nodes[id]
	if !ok {
		n = &node{}
		p.nodes[id] = n
	}
	return n
}

// SetHTML replaces the markup of id and drops its children.
func (p *Page) SetHTML(id, markup string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.get(id)
	n.markup = markup
	n.children = nil
}

func (p *Page) HTML(id string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if n, ok := p.nodes[id]; ok {
		return n.markup
	}
	return ""
}

func (p *Page) Append(parentID string, el Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.get(parentID)
	n.children = append(n.children, el)
}

func (p *Page) RemoveWhere(parentID, attr, value string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[parentID]
	if !ok {
		return 0
	}
	kept := n.children[:0]
	removed := 0
	for _, el := range n.children {
		if el.Attrs[attr] == value {
			removed++
			continue
		}
		kept = append(kept, el)
	}
	n.children = kept
	return removed
}

func (p *Page) Children(parentID string) []Element {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, ok := p.nodes[parentID]
	if !ok {
		return nil
	}
	out := make([]Element, len(n.children))
	copy(out, n.children)
	return out
}

func (p *Page) Show(id string) { p.setVisible(id, true) }
func (p *Page) Hide(id string) { p.setVisible(id, false) }

func (p *Page) setVisible(id string, v bool) {
	p.mu.Lock()
	p.get(id).visible = v
	p.mu.Unlock()
}

func (p *Page) Visible(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, ok := p.nodes[id]
	return ok && n.visible
}

func (p *Page) SetDisabled(id string, disabled bool) {
	p.mu.Lock()
	p.get(id).disabled = disabled
	p.mu.Unlock()
}

func (p *Page) Disabled(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, ok := p.nodes[id]
	return ok && n.disabled
}

func (p *Page) Value(id string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if n, ok := p.nodes[id]; ok {
		return n.value
	}
	return ""
}

func (p *Page) SetValue(id, value string) {
	p.mu.Lock()
	p.get(id).value = value
	p.mu.Unlock()
}

// SetOptions replaces the options of a select and keeps its current
// value selected when it is still offered.
func (p *Page) SetOptions(id string, opts []Option) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.get(id)
	n.options = make([]Option, len(opts))
	for i, o := range opts {
		o.Selected = o.Value == n.value
		n.options[i] = o
	}
}

func (p *Page) Options(id string) []Option {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, ok := p.nodes[id]
	if !ok {
		return nil
	}
	out := make([]Option, len(n.options))
	copy(out, n.options)
	return out
}

// Render returns the markup of id followed by its children, each
// wrapped in a div carrying its attributes.
func (p *Page) Render(id string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, ok := p.nodes[id]
	if !ok {
		return ""
	}
	var b strings.Builder
	b.WriteString(n.markup)
	for _, el := range n.children {
		b.WriteString("<div")
		if el.ID != "" {
			b.WriteString(` id="` + Text(el.ID) + `"`)
		}
		keys := make([]string, 0, len(el.Attrs))
		for k := range el.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(" " + Text(k) + `="` + Text(el.Attrs[k]) + `"`)
		}
		b.WriteString(">")
		b.WriteString(el.HTML)
		b.WriteString("</div>")
	}
	return b.String()
}
