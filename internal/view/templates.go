package view

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/campusdesk/campusdesk/internal/rbac"
	"github.com/campusdesk/campusdesk/internal/shared"
	"github.com/campusdesk/campusdesk/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flashes     []shared.FlashMessage
	CurrentPath string
	Principal   *rbac.Principal
	Data        any
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	tpl, err := template.New("root").Funcs(funcMap()).ParseFS(web.Templates, "templates/partials/*.html", "templates/pages/*.html")
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

func funcMap() template.FuncMap {
	title := cases.Title(language.English)
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		// humanize turns enum values such as event_space into "Event Space".
		"humanize": func(v any) string {
			return title.String(strings.ReplaceAll(fmt.Sprint(v), "_", " "))
		},
		"roleLabel": func(r rbac.Role) string {
			return r.Label()
		},
		"roles": func() []rbac.Role {
			return rbac.AllRoles
		},
		"same": func(a, b any) bool {
			return fmt.Sprint(a) == fmt.Sprint(b)
		},
		"coord": func(v *float64) string {
			if v == nil {
				return ""
			}
			return fmt.Sprintf("%.6f", *v)
		},
	}
}
