// Package views renders the server-side HTML pages.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/manageconsole/manage/cmd/manage/internal/session"
)

//go:embed templates
var templateFS embed.FS

// Page names.
const (
	NotAuthorised      = "errors/notAuthorised"
	NotFound           = "errors/notFound"
	Forbidden          = "errors/forbidden"
	Error              = "errors/error"
	SelectService      = "services/selectService"
	Dashboard          = "services/dashboard"
	ServiceConfig      = "services/serviceConfig"
	ServiceBanners     = "services/serviceBanners"
	EditBanner         = "services/editBanner"
	UsersSearch        = "services/usersSearch"
	UserOrganisations  = "services/userOrganisations"
	EditService        = "services/editService"
	ConfirmEditService = "services/confirmEditService"
)

// Page is the data every template receives.
type Page struct {
	Title       string
	User        *session.Principal
	DisplayName string
	CSRFToken   string
	Flashes     []session.Flash
	ServiceID   string

	// ValidationMessages maps form field names to errors.
	ValidationMessages map[string]string

	// Data is the page specific model.
	Data any
}

// Renderer executes the embedded templates.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"formatDate": func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format("2 Jan 2006")
	},
	"formatDateTime": func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return "Never"
		}
		return t.Format("2 Jan 2006 15:04")
	},
	"inputDate": func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	},
	"join": strings.Join,
	"contains": func(list []string, v string) bool {
		for _, s := range list {
			if s == v {
				return true
			}
		}
		return false
	},
	"add": func(a, b int) int { return a + b },
}

// New parses every page together with the shared layout.
func New() (*Renderer, error) {
	r := &Renderer{pages: map[string]*template.Template{}}

	err := fs.WalkDir(templateFS, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || path == "templates/layout.html" {
			return err
		}
		name := strings.TrimSuffix(strings.TrimPrefix(path, "templates/"), ".html")
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[name] = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Has reports whether a page is defined.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Render writes the named page with the given status. Output is buffered so
// that a template failure never produces a partial page.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, page Page) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown view %q", name)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", page); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
