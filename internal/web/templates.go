package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
)

//go:embed templates
var files embed.FS

var templates map[string]*template.Template

// Page is the data every page template receives. Data carries the
// page-specific view model. CSRF tokens are single use, so the logout form
// in the navigation gets its own.
type Page struct {
	Title       string
	Nonce       string
	CSRFToken   string
	LogoutToken string
	User        string
	Worksheets  []string
	Active      string
	Error       string
	Flash       string
	Data        interface{}
}

// InitTemplates loads all HTML templates
func InitTemplates() error {
	templates = make(map[string]*template.Template)

	funcMap := template.FuncMap{
		"formatDate":    formatDate,
		"formatDecimal": formatDecimal,
		"formatDays":    formatDays,
		"severityClass": severityClass,
		"cellName":      cellName,
	}

	pages, err := fs.Glob(files, "templates/pages/*.html")
	if err != nil {
		return err
	}

	for _, page := range pages {
		pageName := path.Base(page)

		// Parse the base layout first so the page can fill its blocks
		tmpl, err := template.New(pageName).Funcs(funcMap).ParseFS(files, "templates/layouts/base.html", page)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", pageName, err)
		}

		templates[pageName] = tmpl
	}

	return nil
}

// Render renders a template with data
// The name should be the page template name (e.g., "login.html")
// This will execute base.html which includes the page's content block
func Render(w io.Writer, name string, data interface{}) error {
	tmpl, ok := templates[name]
	if !ok {
		return fmt.Errorf("template not found: %s", name)
	}
	return tmpl.ExecuteTemplate(w, "base.html", data)
}
