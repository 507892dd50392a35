package view

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/roommend/roommend/internal/shared"
	"github.com/roommend/roommend/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
	decorate  func(r *http.Request, data *TemplateData)
}

// NavItem is a sidebar entry.
type NavItem struct {
	Label  string
	Href   string
	Icon   string
	Active bool
}

// Viewer summarises the signed-in user for the page chrome.
type Viewer struct {
	Name     string
	Email    string
	RoleName string
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Viewer      *Viewer
	Nav         []NavItem
	Data        any
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
		"join": strings.Join,
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, web.TemplatePatterns...)
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// SetDecorator installs the hook filling per-request chrome (navigation,
// viewer, CSRF token, flash) before a page renders.
func (e *Engine) SetDecorator(fn func(r *http.Request, data *TemplateData)) {
	e.decorate = fn
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

// RenderPage decorates data for r and renders it with the given status.
// Template errors produce a 500 instead of a half-written page.
func (e *Engine) RenderPage(w http.ResponseWriter, r *http.Request, status int, name string, data TemplateData) error {
	if e == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return fmt.Errorf("template engine not initialised")
	}
	data.CurrentPath = r.URL.Path
	if e.decorate != nil {
		e.decorate(r, &data)
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
