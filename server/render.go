package server

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"

	"github.com/poiesic/docsift/core"
)

//go:embed templates/*.html
var templateFS embed.FS

type templateRenderer struct {
	templates *template.Template
}

func newTemplateRenderer() (*templateRenderer, error) {
	funcs := template.FuncMap{
		"score": func(f float64) string { return fmt.Sprintf("%.2f", f) },
		"favorite": func(name string, on bool) favoriteButton {
			return favoriteButton{Name: name, Favorite: on}
		},
	}
	t, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &templateRenderer{templates: t}, nil
}

func (r *templateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

// homePage is the data for the search page.
type homePage struct {
	Session     *core.Session
	Documents   []string
	Flash       *flash
	Query       string
	Searched    bool
	Response    *core.QueryResponse
	SearchError string
	MaxUpload   int64
}

type documentPage struct {
	Session  *core.Session
	Document *core.Document
	Favorite bool
}

type favoriteButton struct {
	Name     string
	Favorite bool
}

type errorPage struct {
	Status  int
	Message string
}
