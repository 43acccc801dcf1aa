// Package render turns view-models and boundary fallbacks into HTML pages.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/kjstillabower/weather-page/internal/boundary"
	"github.com/kjstillabower/weather-page/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Renderer executes the page and fallback templates.
type Renderer struct {
	page     *template.Template
	fallback *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	funcs := template.FuncMap{"temperature": FormatTemperature}

	page, err := template.New("page.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/page.html")
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	fallback, err := template.New("fallback.html").ParseFS(templateFS, "templates/layout.html", "templates/fallback.html")
	if err != nil {
		return nil, fmt.Errorf("parse fallback template: %w", err)
	}
	return &Renderer{page: page, fallback: fallback}, nil
}

// Page writes the weather page for vm. Output is buffered so a template error
// never leaves a half-written page behind.
func (r *Renderer) Page(w io.Writer, vm models.ViewModel) error {
	return execute(w, r.page, vm)
}

type fallbackData struct {
	Title       string
	Description string
	Route       bool
	Generic     bool
	Status      int
	StatusText  string
	Data        string
	Message     string
}

// Fallback writes the error boundary page for fb.
func (r *Renderer) Fallback(w io.Writer, fb boundary.Fallback) error {
	data := fallbackData{
		Title:       "Weather App",
		Description: "Get current weather information!",
		Route:       fb.Kind == boundary.KindRoute,
		Generic:     fb.Kind == boundary.KindGeneric,
		Status:      fb.Status,
		StatusText:  fb.StatusText,
		Data:        fb.Data,
		Message:     fb.Message,
	}
	switch fb.Kind {
	case boundary.KindRoute:
		data.Title = fmt.Sprintf("%d %s", fb.Status, fb.StatusText)
	case boundary.KindGeneric:
		data.Title = "Error"
	default:
		data.Title = "Unknown Error"
	}
	return execute(w, r.fallback, data)
}

func execute(w io.Writer, t *template.Template, data any) error {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Errorf("execute %s: %w", t.Name(), err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// FormatTemperature prints t in its shortest exact decimal form: 18.5, 20, -3.25.
func FormatTemperature(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}

// StaticHandler serves the embedded assets under /static/.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServerFS(sub))
}
