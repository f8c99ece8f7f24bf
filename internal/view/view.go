// Package view renders the HTML pages from embedded templates.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/diewo77/nexusbilling/internal/config"
	"github.com/diewo77/nexusbilling/internal/models"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

// Renderer holds the parsed pages. It is safe for concurrent use.
type Renderer struct {
	company config.Company
	pages   map[string]*template.Template
}

// New parses every page together with the layout. The company profile is
// available to all templates as .Company.
func New(company config.Company) (*Renderer, error) {
	v := &Renderer{company: company, pages: map[string]*template.Template{}}
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f == layoutFile {
			continue
		}
		t, err := template.New(path.Base(f)).Funcs(v.Funcs()).ParseFS(templateFS, layoutFile, f)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		v.pages[path.Base(f)] = t
	}
	return v, nil
}

// Company returns the profile the renderer was built with.
func (v *Renderer) Company() config.Company { return v.company }

// Funcs returns the helpers available in templates.
func (v *Renderer) Funcs() template.FuncMap {
	return template.FuncMap{
		"money": v.Money,
		"num":   func(d decimal.Decimal) string { return d.StringFixed(2) },
		"date": func(d models.Date) string {
			if d.IsZero() {
				return "-"
			}
			return d.Format("Jan 02, 2006")
		},
		"lower": strings.ToLower,
		"statusClass": func(s models.InvoiceStatus) string {
			return "status-" + strings.ToLower(string(s))
		},
		"year": func() int { return time.Now().Year() },
	}
}

// Money formats an amount with the company currency symbol.
func (v *Renderer) Money(d decimal.Decimal) string {
	return v.company.CurrencySymbol + d.StringFixed(2)
}

// Render executes page inside the layout. data may be nil.
func (v *Renderer) Render(w http.ResponseWriter, status int, page string, data map[string]any) error {
	t, ok := v.pages[page]
	if !ok {
		return fmt.Errorf("view: unknown page %q", page)
	}
	if data == nil {
		data = map[string]any{}
	}
	data["Company"] = v.company
	// render to a buffer first so a template error does not leave half a page
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("view: render %s: %w", page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
