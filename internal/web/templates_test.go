package web

import (
	"bytes"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/justestif/go-spotify-genome/internal/genome"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"layouts/base.html":  {Data: []byte(`{{define "base"}}<title>{{.Title}}</title>{{template "content" .}}{{end}}`)},
		"partials/item.html": {Data: []byte(`{{define "item"}}<li>{{.}}</li>{{end}}`)},
		"pages/list.html":    {Data: []byte(`{{define "content"}}<ul>{{range .Items}}{{template "item" .}}{{end}}</ul>{{end}}`)},
	}
}

func TestTemplates_Render(t *testing.T) {
	tmpl, err := NewTemplates(testFS())
	if err != nil {
		t.Fatalf("NewTemplates() error = %v", err)
	}

	var buf bytes.Buffer
	data := struct {
		Title string
		Items []string
	}{Title: "T", Items: []string{"a", "<b>"}}

	if err := tmpl.Render(&buf, "list", data); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	want := "<title>T</title><ul><li>a</li><li>&lt;b&gt;</li></ul>"
	if got := buf.String(); got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestTemplates_UnknownPage(t *testing.T) {
	tmpl, err := NewTemplates(testFS())
	if err != nil {
		t.Fatalf("NewTemplates() error = %v", err)
	}
	if err := tmpl.Render(&bytes.Buffer{}, "missing", nil); err == nil {
		t.Error("Render() of unknown page should fail")
	}
}

func TestTemplates_NoPages(t *testing.T) {
	if _, err := NewTemplates(fstest.MapFS{}); err == nil {
		t.Error("NewTemplates() with no pages should fail")
	}
}

func TestFuncs(t *testing.T) {
	funcs := defaultFuncs()

	percent := funcs["percent"].(func(*float32) string)
	v := float32(0.42)
	if got := percent(&v); got != "42%" {
		t.Errorf("percent(0.42) = %q, want 42%%", got)
	}
	if got := percent(nil); got != "n/a" {
		t.Errorf("percent(nil) = %q, want n/a", got)
	}

	geneView := funcs["geneView"].(func(genome.Gene, []genome.Strand) GeneView)
	strands := []genome.Strand{{Name: "Euphoric"}}
	if got := geneView(genome.Gene{Strand: 0}, strands).Strand; got != "Euphoric" {
		t.Errorf("geneView strand = %q, want Euphoric", got)
	}
	if got := geneView(genome.Gene{Strand: -1}, strands).Strand; got != "" {
		t.Errorf("unassigned gene strand = %q, want empty", got)
	}
	if !strings.HasPrefix(genome.Color(1, 1), "hsl(") {
		t.Error("genome.Color should return an hsl() value")
	}
}
