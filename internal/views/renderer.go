package views

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// Renderer is an html/template renderer for Echo.
// Uses per-page template cloning to allow each page to define its own blocks.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer parses the layouts and partials once and clones them for every page
func NewRenderer(fsys fs.FS) (*Renderer, error) {
	templates := make(map[string]*template.Template)

	baseTemplate, err := template.New("").Funcs(funcMap).ParseFS(fsys, "templates/layouts/*.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse layouts: %w", err)
	}

	pages, err := fs.Glob(fsys, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	for _, page := range pages {
		pageTemplate, err := baseTemplate.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := pageTemplate.ParseFS(fsys, page); err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		templates[path.Base(page)] = pageTemplate
	}

	// Standalone templates (like login) that don't use the base layout
	standalone, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, err
	}
	for _, page := range standalone {
		name := path.Base(page)
		if _, exists := templates[name]; exists {
			continue
		}
		tmpl, err := template.New(name).Funcs(funcMap).ParseFS(fsys, page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		templates[name] = tmpl
	}

	return &Renderer{templates: templates}, nil
}

// Component returns the named page as a templ component
func (r *Renderer) Component(name string, data interface{}) (templ.Component, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("template not found: %s", name)
	}
	if base := tmpl.Lookup("base"); base != nil {
		return templ.FromGoHTML(base, data), nil
	}
	return templ.FromGoHTML(tmpl, data), nil
}

// Render implements echo.Renderer
func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	component, err := r.Component(name, data)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return component.Render(c.Request().Context(), w)
}

var funcMap = template.FuncMap{
	"initials": Initials,
	"inc":      func(i int) int { return i + 1 },
	"datetime": formatDateTime,
	"contains": func(list []string, s string) bool {
		for _, v := range list {
			if v == s {
				return true
			}
		}
		return false
	},
}

// Initials is the avatar text: the first two characters of the local part, upper-cased
func Initials(email string) string {
	local, _, _ := strings.Cut(email, "@")
	runes := []rune(local)
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return strings.ToUpper(string(runes))
}

var saoPaulo = time.FixedZone("BRT", -3*60*60)

func formatDateTime(v interface{}) string {
	var t time.Time
	switch tv := v.(type) {
	case time.Time:
		t = tv
	case *time.Time:
		if tv != nil {
			t = *tv
		}
	}
	if t.IsZero() {
		return "—"
	}
	return t.In(saoPaulo).Format("02/01/2006 15:04:05")
}
