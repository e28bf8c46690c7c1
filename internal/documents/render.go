package documents

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"familyvault/internal/dom"
	"familyvault/internal/model"
)

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatFileSize renders a byte count at base 1024 with at most two
// decimals, e.g. 1258291 -> "1.2 MB". Zero is "0 Bytes".
func FormatFileSize(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	return trimDecimals(v) + " " + sizeUnits[i]
}

func trimDecimals(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// FileIcon picks an icon class from the MIME type.
func FileIcon(mimeType string) string {
	m := strings.ToLower(mimeType)
	switch {
	case strings.Contains(m, "pdf"):
		return "fa-file-pdf"
	case strings.Contains(m, "image"):
		return "fa-file-image"
	case strings.Contains(m, "word"):
		return "fa-file-word"
	case strings.Contains(m, "excel"):
		return "fa-file-excel"
	default:
		return "fa-file"
	}
}

// StatusBadge renders the verification status of a document.
func StatusBadge(status string) string {
	if status == "" {
		status = model.StatusPending
	}
	return fmt.Sprintf(`<span class="status-badge status-%s">%s</span>`, dom.Text(status), dom.Text(capitalize(status)))
}

// RenderPagination renders previous, a window of two pages around the
// current one with the first and last pages behind ellipses, and next.
// A single page renders nothing.
func RenderPagination(p model.Pagination) string {
	if p.Pages <= 1 {
		return ""
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	if page > p.Pages {
		page = p.Pages
	}
	start := max(1, page-2)
	end := min(p.Pages, page+2)

	var b strings.Builder
	b.WriteString(`<nav class="pagination">`)
	b.WriteString(pageButton("prev", page-1, "&laquo; Previous", page == 1))
	if start > 1 {
		b.WriteString(pageButton("", 1, "1", false))
		if start > 2 {
			b.WriteString(`<span class="ellipsis">&hellip;</span>`)
		}
	}
	for i := start; i <= end; i++ {
		if i == page {
			fmt.Fprintf(&b, `<button class="page-btn active" aria-current="page" disabled>%d</button>`, i)
			continue
		}
		b.WriteString(pageButton("", i, strconv.Itoa(i), false))
	}
	if end < p.Pages {
		if end < p.Pages-1 {
			b.WriteString(`<span class="ellipsis">&hellip;</span>`)
		}
		b.WriteString(pageButton("", p.Pages, strconv.Itoa(p.Pages), false))
	}
	b.WriteString(pageButton("next", page+1, "Next &raquo;", page == p.Pages))
	fmt.Fprintf(&b, `<span class="page-info">%d documents</span>`, p.Total)
	b.WriteString(`</nav>`)
	return b.String()
}

func pageButton(kind string, target int, label string, disabled bool) string {
	class := "page-btn"
	if kind != "" {
		class += " " + kind
	}
	attr := ""
	if disabled {
		attr = " disabled"
	}
	return fmt.Sprintf(`<button type="submit" name="page" value="%d" class="%s"%s>%s</button>`, target, class, attr, label)
}

func (c *Controller) renderDocuments(docs []model.Document, view View) string {
	if len(docs) == 0 {
		return emptyState("No documents found", "Upload your first document or adjust the filters.")
	}
	var b strings.Builder
	if view == ViewList {
		b.WriteString(`<table class="documents-list"><thead><tr><th>Title</th><th>Category</th><th>Size</th><th>Uploaded</th><th>Status</th><th></th></tr></thead><tbody>`)
		for _, d := range docs {
			fmt.Fprintf(&b, `<tr data-id="%s"><td><i class="fa %s"></i> %s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				dom.Text(d.ID), FileIcon(d.MimeType), dom.Text(d.Title), dom.Text(c.CategoryLabel(d.Category)),
				FormatFileSize(d.FileSize), dom.Text(shortDate(d.UploadDate)), StatusBadge(d.VerificationStatus), actions(d.ID))
		}
		b.WriteString(`</tbody></table>`)
		return b.String()
	}

	b.WriteString(`<div class="documents-grid">`)
	for _, d := range docs {
		fmt.Fprintf(&b, `<div class="document-card" data-id="%s">`, dom.Text(d.ID))
		fmt.Fprintf(&b, `<div class="document-icon"><i class="fa %s"></i></div>`, FileIcon(d.MimeType))
		fmt.Fprintf(&b, `<h4>%s</h4>`, dom.Text(d.Title))
		fmt.Fprintf(&b, `<p class="category">%s</p>`, dom.Text(c.CategoryLabel(d.Category)))
		if d.Department != "" {
			fmt.Fprintf(&b, `<p class="department">%s</p>`, dom.Text(d.Department))
		}
		fmt.Fprintf(&b, `<p class="meta">%s &middot; %s</p>`, FormatFileSize(d.FileSize), dom.Text(shortDate(d.UploadDate)))
		if len(d.Tags) > 0 {
			b.WriteString(`<div class="tags">`)
			for _, tag := range d.Tags {
				fmt.Fprintf(&b, `<span class="tag">%s</span>`, dom.Text(tag))
			}
			b.WriteString(`</div>`)
		}
		b.WriteString(StatusBadge(d.VerificationStatus))
		b.WriteString(actions(d.ID))
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func actions(id string) string {
	base := "/documents/" + url.PathEscape(id)
	return fmt.Sprintf(`<div class="actions"><a href="%[1]s/view" target="_blank">View</a> <a href="%[1]s/edit">Edit</a> <form method="post" action="%[1]s/delete" onsubmit="return confirm('%[2]s')"><button class="btn-danger" name="confirm" value="yes">Delete</button></form></div>`,
		dom.Text(base), dom.Text(deletePrompt))
}

func emptyState(title, detail string) string {
	return fmt.Sprintf(`<div class="empty-state"><h3>%s</h3><p>%s</p></div>`, dom.Text(title), dom.Text(detail))
}

// shortDate truncates an ISO timestamp to its YYYY-MM-DD prefix.
func shortDate(s string) string {
	if len(s) >= 10 && s[4] == '-' && s[7] == '-' {
		return s[:10]
	}
	return s
}
