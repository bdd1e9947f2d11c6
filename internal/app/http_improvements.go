package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *HTTPServer) mountImprovements(r chi.Router) {
	r.Route("/improvements", func(r chi.Router) {
		r.Get("/", s.handleListImprovements)
		r.Post("/", s.handleCreateImprovement)
		r.Route("/{improvementID}", func(r chi.Router) {
			r.Get("/", s.handleGetImprovement)
			r.Put("/", s.handleUpdateImprovement)
			r.Delete("/", s.handleDeleteImprovement)
			r.Post("/status", s.handleImprovementStatus)

			r.Get("/todos", s.handleListTodos)
			r.Post("/todos", s.handleCreateTodo)
			r.Put("/todos/{todoID}", s.handleUpdateTodo)
			r.Delete("/todos/{todoID}", s.handleDeleteTodo)

			r.Get("/comments", s.handleListImprovementComments)
			r.Post("/comments", s.handleCreateImprovementComment)
			r.Delete("/comments/{commentID}", s.handleDeleteImprovementComment)
		})
	})
}

func (s *HTTPServer) handleListImprovements(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListImprovements(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"))
	s.respond(w, r, http.StatusOK, map[string]any{"improvements": items}, err)
}

func (s *HTTPServer) handleCreateImprovement(w http.ResponseWriter, r *http.Request) {
	var body CreateImprovementInput
	if !bind(w, r, &body) {
		return
	}
	item, err := s.service.CreateImprovement(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), body)
	s.respond(w, r, http.StatusCreated, item, err)
}

func (s *HTTPServer) handleGetImprovement(w http.ResponseWriter, r *http.Request) {
	detail, err := s.service.GetImprovement(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "improvementID"))
	s.respond(w, r, http.StatusOK, detail, err)
}

func (s *HTTPServer) handleUpdateImprovement(w http.ResponseWriter, r *http.Request) {
	var body UpdateImprovementInput
	if !bind(w, r, &body) {
		return
	}
	item, err := s.service.UpdateImprovement(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "improvementID"), body)
	s.respond(w, r, http.StatusOK, item, err)
}

func (s *HTTPServer) handleDeleteImprovement(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteImprovement(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "improvementID"))
	s.respond(w, r, http.StatusOK, okPayload, err)
}

func (s *HTTPServer) handleImprovementStatus(w http.ResponseWriter, r *http.Request) {
	var body ImprovementStatusInput
	if !bind(w, r, &body) {
		return
	}
	item, err := s.service.SetImprovementStatus(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "improvementID"), body)
	s.respond(w, r, http.StatusOK, item, err)
}

func (s *HTTPServer) handleListTodos(w http.ResponseWriter, r *http.Request) {
	todos, err := s.service.ListTodos(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "improvementID"))
	s.respond(w, r, http.StatusOK, map[string]any{"todos": todos}, err)
}

func (s *HTTPServer) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	var body TodoInput
	if !bind(w, r, &body) {
		return
	}
	todo, err := s.service.CreateTodo(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "improvementID"), body)
	s.respond(w, r, http.StatusCreated, todo, err)
}

func (s *HTTPServer) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	var body UpdateTodoInput
	if !bind(w, r, &body) {
		return
	}
	todo, err := s.service.UpdateTodo(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "improvementID"), chi.URLParam(r, "todoID"), body)
	s.respond(w, r, http.StatusOK, todo, err)
}

func (s *HTTPServer) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteTodo(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "improvementID"), chi.URLParam(r, "todoID"))
	s.respond(w, r, http.StatusOK, okPayload, err)
}

func (s *HTTPServer) handleListImprovementComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.service.ListImprovementComments(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "improvementID"))
	s.respond(w, r, http.StatusOK, map[string]any{"comments": comments}, err)
}

func (s *HTTPServer) handleCreateImprovementComment(w http.ResponseWriter, r *http.Request) {
	var body ImprovementCommentInput
	if !bind(w, r, &body) {
		return
	}
	comment, err := s.service.CreateImprovementComment(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "improvementID"), body)
	s.respond(w, r, http.StatusCreated, comment, err)
}

func (s *HTTPServer) handleDeleteImprovementComment(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteImprovementComment(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "improvementID"), chi.URLParam(r, "commentID"))
	s.respond(w, r, http.StatusOK, okPayload, err)
}
