package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"

	"studio/internal/domain/event"
)

//go:embed templates/*.html
var templateFS embed.FS

// Message is a rendered email.
type Message struct {
	Subject string
	HTML    string
}

// Renderer renders the embedded email templates. Each template file defines
// a "subject" and a "body" block; the body is wrapped in layout.html.
type Renderer struct {
	siteURL string
	sets    map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	"pounds": func(v any) string {
		switch p := v.(type) {
		case int64:
			return "£" + event.FormatPence(p)
		case int:
			return "£" + event.FormatPence(int64(p))
		}
		return ""
	},
}

// NewRenderer parses every email template.
// POST: Render works for each file name in templates/ minus the .html suffix
func NewRenderer(siteURL string) (*Renderer, error) {
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	r := &Renderer{siteURL: strings.TrimRight(siteURL, "/"), sets: make(map[string]*template.Template)}
	for _, path := range names {
		if path == "templates/layout.html" {
			continue
		}
		set, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", path)
		if err != nil {
			return nil, fmt.Errorf("parse email template %s: %w", path, err)
		}
		name := strings.TrimSuffix(strings.TrimPrefix(path, "templates/"), ".html")
		r.sets[name] = set
	}
	return r, nil
}

// Render executes the named template. SiteURL is added to data.
func (r *Renderer) Render(name string, data map[string]any) (Message, error) {
	set, ok := r.sets[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown email template %q", name)
	}
	merged := make(map[string]any, len(data)+1)
	for k, v := range data {
		merged[k] = v
	}
	merged["SiteURL"] = r.siteURL

	var subject, body bytes.Buffer
	if err := set.ExecuteTemplate(&subject, "subject", merged); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := set.ExecuteTemplate(&body, "layout", merged); err != nil {
		return Message{}, fmt.Errorf("render %s body: %w", name, err)
	}
	return Message{
		Subject: strings.TrimSpace(htmlUnescape(subject.String())),
		HTML:    body.String(),
	}, nil
}

// htmlUnescape undoes the entity escaping html/template applies to the subject line.
func htmlUnescape(s string) string {
	return strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&#39;", "'", "&#34;", `"`).Replace(s)
}
