package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/livetemplate/codelesson"
	"github.com/livetemplate/codelesson/internal/progress"
)

// maxRequestBodySize limits the size of incoming request bodies (64KB)
const maxRequestBodySize = 64 << 10

func sortLessons(lessons []*codelesson.Lesson) {
	slices.SortFunc(lessons, func(a, b *codelesson.Lesson) int { return strings.Compare(a.ID, b.ID) })
}

// handleListLessons returns the summaries of published lessons, or of all
// lessons with ?all=true.
func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	lessons := s.Lessons(all)

	summaries := make([]codelesson.Summary, 0, len(lessons))
	for _, l := range lessons {
		summaries = append(summaries, l.Summary())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"lessons": summaries,
		"count":   len(summaries),
	})
}

// handleGetLesson returns a whole lesson as JSON.
func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	lesson, ok := s.lessonOr404(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

// handleGetStep returns the rendered step at /steps/{big}/{small}, both
// 1-based.
func (s *Server) handleGetStep(w http.ResponseWriter, r *http.Request) {
	lesson, ok := s.lessonOr404(w, r)
	if !ok {
		return
	}
	big, err1 := strconv.Atoi(r.PathValue("big"))
	small, err2 := strconv.Atoi(r.PathValue("small"))
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "step indices must be numbers")
		return
	}

	tree, err := s.Tree(lesson, codelesson.Position{BigIndex: big - 1, SmallIndex: small - 1})
	switch {
	case errors.Is(err, codelesson.ErrStepOutOfRange):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		s.log.Error().Err(err).Str("lesson", lesson.ID).Msg("failed to build step")
		writeError(w, http.StatusInternalServerError, "failed to render step")
	default:
		writeJSON(w, http.StatusOK, tree)
	}
}

func viewerParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	viewer := r.URL.Query().Get("viewer")
	if viewer == "" {
		writeError(w, http.StatusBadRequest, "viewer is required")
		return "", false
	}
	if len(viewer) > maxViewerLen {
		writeError(w, http.StatusBadRequest, "viewer id too long")
		return "", false
	}
	return viewer, true
}

// handleGetProgress returns the saved position of a viewer in a lesson.
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	lesson, ok := s.lessonOr404(w, r)
	if !ok {
		return
	}
	viewer, ok := viewerParam(w, r)
	if !ok {
		return
	}

	rec, found, err := s.progress.Load(r.Context(), lesson.ID, viewer)
	if err != nil {
		s.log.Error().Err(err).Str("lesson", lesson.ID).Msg("failed to load progress")
		writeError(w, http.StatusInternalServerError, "failed to load progress")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no progress saved")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handlePutProgress saves a position, clamped to the lesson.
func (s *Server) handlePutProgress(w http.ResponseWriter, r *http.Request) {
	lesson, ok := s.lessonOr404(w, r)
	if !ok {
		return
	}
	viewer, ok := viewerParam(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var pos codelesson.Position
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	pos = codelesson.NewNavigator(lesson).Restore(pos)
	rec := progress.Record{LessonID: lesson.ID, Viewer: viewer, BigIndex: pos.BigIndex, SmallIndex: pos.SmallIndex}
	if err := s.progress.Save(r.Context(), rec); err != nil {
		s.log.Error().Err(err).Str("lesson", lesson.ID).Msg("failed to save progress")
		writeError(w, http.StatusInternalServerError, "failed to save progress")
		return
	}

	saved, _, err := s.progress.Load(r.Context(), lesson.ID, viewer)
	if err != nil {
		saved = rec
	}
	writeJSON(w, http.StatusOK, saved)
}

// handleListProgress returns every saved position of a viewer.
func (s *Server) handleListProgress(w http.ResponseWriter, r *http.Request) {
	viewer, ok := viewerParam(w, r)
	if !ok {
		return
	}
	records, err := s.progress.List(r.Context(), viewer)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list progress")
		writeError(w, http.StatusInternalServerError, "failed to list progress")
		return
	}
	if records == nil {
		records = []progress.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"progress": records})
}

func (s *Server) lessonOr404(w http.ResponseWriter, r *http.Request) (*codelesson.Lesson, bool) {
	lesson, err := s.Lesson(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return lesson, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
