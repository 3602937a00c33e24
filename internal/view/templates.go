package view

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/learnjournal/journal/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CurrentPath string
	Version     string
	Data        any
}

// Page is a navigable HTML page.
type Page struct {
	Path     string
	Template string
	Title    string
	InNav    bool
}

// Pages lists every page the server renders, in navigation order.
var Pages = []Page{
	{Path: "/", Template: "pages/index.html", Title: "Home"},
	{Path: "/index.html", Template: "pages/index.html", Title: "Home", InNav: true},
	{Path: "/journal.html", Template: "pages/journal.html", Title: "Journal", InNav: true},
	{Path: "/projects.html", Template: "pages/projects.html", Title: "Projects", InNav: true},
	{Path: "/canvas.html", Template: "pages/canvas.html", Title: "Canvas", InNav: true},
	{Path: "/about.html", Template: "pages/about.html", Title: "About", InNav: true},
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"navPages": func() []Page {
			out := make([]Page, 0, len(Pages))
			for _, p := range Pages {
				if p.InNav {
					out = append(out, p)
				}
			}
			return out
		},
		"isCurrent": func(current, path string) bool {
			return current == path || (current == "/" && path == "/index.html")
		},
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}
