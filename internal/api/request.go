package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strings"
)

// Request carries the variable parts of a call.
type Request struct {
	// Params fill the {placeholders} of the operation's paths.
	Params map[string]string
	Query  url.Values
	// Body is sent as JSON when non-nil.
	Body any
	// Form is sent as multipart/form-data when non-nil. Body is ignored.
	Form *Form
}

// Form is a multipart payload: plain fields plus attached files.
type Form struct {
	Fields []Field
	Files  []File
}

// Field is one text input of a form.
type Field struct {
	Name  string
	Value string
}

// File is one file input of a form.
type File struct {
	Field       string
	Filename    string
	ContentType string
	Content     []byte
}

// encode renders the body once so every candidate sends identical bytes.
func (r Request) encode() ([]byte, string, error) {
	switch {
	case r.Form != nil:
		return r.Form.encode()
	case r.Body != nil:
		b, err := json.Marshal(r.Body)
		if err != nil {
			return nil, "", fmt.Errorf("encode body: %w", err)
		}
		return b, "application/json", nil
	default:
		return nil, "", nil
	}
}

func (f *Form) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, field := range f.Fields {
		if err := w.WriteField(field.Name, field.Value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", field.Name, err)
		}
	}
	for _, file := range f.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Filename))
		ct := file.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", file.Field, err)
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", file.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// expand fills the {placeholders} of a path template.
func expand(tmpl string, params map[string]string) (string, error) {
	var b strings.Builder
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return "", fmt.Errorf("unterminated placeholder in %q", tmpl)
		}
		name := rest[open+1 : open+closing]
		v, ok := params[name]
		if !ok || v == "" {
			return "", fmt.Errorf("missing path parameter %q for %q", name, tmpl)
		}
		b.WriteString(rest[:open])
		b.WriteString(url.PathEscape(v))
		rest = rest[open+closing+1:]
	}
}
