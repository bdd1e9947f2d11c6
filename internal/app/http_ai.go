package app

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *HTTPServer) mountAI(r chi.Router) {
	r.Get("/api/search", s.handleSearch)
}

func (s *HTTPServer) mountBoardAI(r chi.Router) {
	r.Get("/chat", s.handleListChat)
	r.Post("/chat", s.handleAsk)
	r.Delete("/chat", s.handleClearChat)
	r.Post("/analysis", s.handleAnalyze)
	r.Post("/annotations", s.handleAnnotate)
	r.Post("/summary", s.handleSummarize)

	r.Get("/reports", s.handleListReports)
	r.Get("/reports/{reportID}", s.handleGetReport)
	r.Delete("/reports/{reportID}", s.handleDeleteReport)
	r.Get("/reports/{reportID}/export", s.handleExportReport)
}

func (s *HTTPServer) handleListChat(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultChatLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	messages, err := s.service.ListChat(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), limit)
	s.respond(w, r, http.StatusOK, map[string]any{"messages": messages}, err)
}

func (s *HTTPServer) handleAsk(w http.ResponseWriter, r *http.Request) {
	var body AskInput
	if !bind(w, r, &body) {
		return
	}
	reply, err := s.service.Ask(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), body)
	s.respond(w, r, http.StatusOK, reply, err)
}

func (s *HTTPServer) handleClearChat(w http.ResponseWriter, r *http.Request) {
	err := s.service.ClearChat(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"))
	s.respond(w, r, http.StatusOK, okPayload, err)
}

func (s *HTTPServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var body AnalysisInput
	if !bind(w, r, &body) {
		return
	}
	analysis, err := s.service.Analyze(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), body)
	s.respond(w, r, http.StatusCreated, analysis, err)
}

func (s *HTTPServer) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	annotations, err := s.service.Annotate(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"))
	s.respond(w, r, http.StatusCreated, annotations, err)
}

func (s *HTTPServer) handleSummarize(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.Summarize(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"))
	s.respond(w, r, http.StatusOK, summary, err)
}

func (s *HTTPServer) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.service.ListReports(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"))
	s.respond(w, r, http.StatusOK, map[string]any{"reports": reports}, err)
}

func (s *HTTPServer) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.GetReport(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "reportID"))
	s.respond(w, r, http.StatusOK, report, err)
}

func (s *HTTPServer) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteReport(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "reportID"))
	s.respond(w, r, http.StatusOK, okPayload, err)
}

func (s *HTTPServer) handleExportReport(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.ExportReport(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "reportID"), r.URL.Query().Get("format"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultSearchLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	query := r.URL.Query()
	response, err := s.service.Search(r.Context(), sessionFrom(r), query.Get("q"), query.Get("type"), limit)
	s.respond(w, r, http.StatusOK, response, err)
}
