package server

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/livetemplate/codelesson"
	"github.com/livetemplate/codelesson/internal/assets"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

type indexPage struct {
	Title       string
	Description string
	Lessons     []codelesson.Summary
}

type viewerPage struct {
	Lesson      *codelesson.Lesson
	Step        *StepView
	DisplayHTML template.HTML
	CodeHTML    template.HTML
}

// serveIndex lists the published lessons.
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	data := indexPage{
		Title:       s.config.Title,
		Description: s.config.Description,
	}
	for _, l := range s.Lessons(false) {
		data.Lessons = append(data.Lessons, l.Summary())
	}
	s.render(w, "index", data)
}

// serveLesson renders the viewer shell with the first step in place. The
// client replaces it with the viewer's saved step once connected.
func (s *Server) serveLesson(w http.ResponseWriter, r *http.Request) {
	lesson, err := s.Lesson(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Lesson not found", http.StatusNotFound)
		return
	}

	nav := codelesson.NewNavigator(lesson)
	tree, err := s.Tree(lesson, nav.Position())
	if errors.Is(err, codelesson.ErrStepOutOfRange) {
		http.Error(w, "Lesson has no steps", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("lesson", lesson.ID).Msg("failed to build step")
		http.Error(w, "Failed to render lesson", http.StatusInternalServerError)
		return
	}

	s.render(w, "viewer", viewerPage{
		Lesson:      lesson,
		Step:        stepView(nav, tree),
		DisplayHTML: tree.DisplayHTML,
		CodeHTML:    tree.CodeHTML,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.log.Error().Err(err).Str("template", name).Msg("failed to render page")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// assetHandler serves the embedded browser client.
func assetHandler() http.Handler {
	return http.FileServerFS(assets.ClientFS())
}
