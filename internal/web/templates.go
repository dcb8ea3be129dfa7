package web

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/justestif/go-spotify-genome/internal/genome"
	"github.com/justestif/go-spotify-genome/internal/spotify"
)

// Templates manages HTML template rendering.
type Templates struct {
	templates map[string]*template.Template
	funcs     template.FuncMap
}

// NewTemplates creates a new template manager by loading templates from the given filesystem.
func NewTemplates(templatesFS fs.FS) (*Templates, error) {
	if templatesFS == nil {
		return nil, fmt.Errorf("no templates filesystem")
	}

	t := &Templates{
		templates: make(map[string]*template.Template),
		funcs:     defaultFuncs(),
	}

	if err := t.load(templatesFS); err != nil {
		return nil, err
	}

	return t, nil
}

// Render renders a page template with the given data.
func (t *Templates) Render(w io.Writer, page string, data any) error {
	tmpl, ok := t.templates[page]
	if !ok {
		return fmt.Errorf("template %q not found", page)
	}

	// Execute the "base" template which includes the page content
	return tmpl.ExecuteTemplate(w, "base", data)
}

// load parses every page together with the layouts and partials.
func (t *Templates) load(templatesFS fs.FS) error {
	layouts, err := fs.Glob(templatesFS, "layouts/*.html")
	if err != nil {
		return fmt.Errorf("finding layouts: %w", err)
	}

	partials, err := fs.Glob(templatesFS, "partials/*.html")
	if err != nil {
		return fmt.Errorf("finding partials: %w", err)
	}

	pages, err := fs.Glob(templatesFS, "pages/*.html")
	if err != nil {
		return fmt.Errorf("finding pages: %w", err)
	}
	if len(pages) == 0 {
		return fmt.Errorf("no page templates found")
	}

	commonFiles := append(layouts, partials...)

	for _, page := range pages {
		name := strings.TrimSuffix(path.Base(page), ".html")
		files := append([]string{page}, commonFiles...)

		tmpl, err := template.New(name).Funcs(t.funcs).ParseFS(templatesFS, files...)
		if err != nil {
			return fmt.Errorf("parsing template %s: %w", name, err)
		}
		t.templates[name] = tmpl
	}

	return nil
}

// defaultFuncs returns the default template functions.
func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		// percent formats an optional audio feature in [0, 1] as "42%".
		"percent": func(v *float32) string {
			if v == nil {
				return "n/a"
			}
			return fmt.Sprintf("%.0f%%", *v*100)
		},

		// geneView pairs a gene with the name of its strand for the gene partial.
		"geneView": func(g genome.Gene, strands []genome.Strand) GeneView {
			v := GeneView{Gene: g}
			if g.Strand >= 0 && g.Strand < len(strands) {
				v.Strand = strands[g.Strand].Name
			}
			return v
		},

		// safeCSS marks a generated colour as a trusted CSS value.
		"safeCSS": func(s string) template.CSS {
			return template.CSS(s) //nolint:gosec // Generated by genome.Color
		},
	}
}

// PageData contains common data passed to all page templates.
type PageData struct {
	Title       string
	User        *UserData
	CurrentPath string
}

// UserData contains authenticated user information.
type UserData struct {
	ID   string
	Name string
}

// HomePageData contains data for the home page template.
type HomePageData struct {
	PageData
	Authenticated bool
}

// ProfilePageData contains data for the profile page template.
type ProfilePageData struct {
	PageData
	Identity *spotify.Identity
	Genome   genome.Genome
}

// GeneView is the data of the gene partial.
type GeneView struct {
	Gene   genome.Gene
	Strand string
}

// ErrorPageData contains data for the error page template.
type ErrorPageData struct {
	PageData
	Status  int
	Heading string
	Message string
}
