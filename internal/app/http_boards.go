package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *HTTPServer) mountBoards(r chi.Router) {
	r.Route("/api/boards", func(r chi.Router) {
		r.Get("/", s.handleListBoards)
		r.Post("/", s.handleCreateBoard)
		r.Route("/{boardID}", func(r chi.Router) {
			r.Get("/", s.handleGetBoard)
			r.Put("/", s.handleUpdateBoard)
			r.Delete("/", s.handleDeleteBoard)
			r.Post("/clone", s.handleCloneBoard)
			r.Post("/proposals/apply", s.handleApplyProposals)
			r.Get("/versions", s.handleBoardVersions)
			r.Get("/compare", s.handleCompareBoards)

			s.mountGraph(r)
			s.mountComments(r)
			s.mountBoardMedia(r)
			s.mountImprovements(r)
			s.mountBoardAI(r)
		})
	})
}

func (s *HTTPServer) handleListBoards(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("archived") == "true"
	boards, err := s.service.ListBoards(r.Context(), sessionFrom(r), includeArchived)
	s.respond(w, r, http.StatusOK, map[string]any{"boards": boards}, err)
}

func (s *HTTPServer) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var body CreateBoardInput
	if !bind(w, r, &body) {
		return
	}
	board, err := s.service.CreateBoard(r.Context(), sessionFrom(r), body)
	s.respond(w, r, http.StatusCreated, board, err)
}

func (s *HTTPServer) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	detail, err := s.service.GetBoard(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"))
	s.respond(w, r, http.StatusOK, detail, err)
}

func (s *HTTPServer) handleUpdateBoard(w http.ResponseWriter, r *http.Request) {
	var body UpdateBoardInput
	if !bind(w, r, &body) {
		return
	}
	board, err := s.service.UpdateBoard(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), body)
	s.respond(w, r, http.StatusOK, board, err)
}

func (s *HTTPServer) handleDeleteBoard(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteBoard(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"))
	s.respond(w, r, http.StatusOK, okPayload, err)
}

func (s *HTTPServer) handleCloneBoard(w http.ResponseWriter, r *http.Request) {
	var body CloneBoardInput
	if !bind(w, r, &body) {
		return
	}
	board, err := s.service.CloneBoard(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), body)
	s.respond(w, r, http.StatusCreated, board, err)
}

func (s *HTTPServer) handleApplyProposals(w http.ResponseWriter, r *http.Request) {
	var body ApplyProposalsInput
	if !bind(w, r, &body) {
		return
	}
	result, err := s.service.ApplyProposals(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), body)
	s.respond(w, r, http.StatusCreated, result, err)
}

func (s *HTTPServer) handleBoardVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.service.BoardVersions(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"))
	s.respond(w, r, http.StatusOK, map[string]any{"versions": versions}, err)
}

func (s *HTTPServer) handleCompareBoards(w http.ResponseWriter, r *http.Request) {
	diff, err := s.service.CompareBoards(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), r.URL.Query().Get("to"))
	s.respond(w, r, http.StatusOK, diff, err)
}
