package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *HTTPServer) mountGraph(r chi.Router) {
	r.Get("/nodes", s.handleListNodes)
	r.Post("/nodes", s.handleCreateNode)
	r.Put("/nodes/positions", s.handleNodePositions)
	r.Put("/nodes/{nodeID}", s.handleUpdateNode)
	r.Delete("/nodes/{nodeID}", s.handleDeleteNode)

	r.Get("/edges", s.handleListEdges)
	r.Post("/edges", s.handleCreateEdge)
	r.Put("/edges/{edgeID}", s.handleUpdateEdge)
	r.Delete("/edges/{edgeID}", s.handleDeleteEdge)

	r.Get("/personas", s.handleListPersonas)
	r.Post("/personas", s.handleCreatePersona)
	r.Put("/personas/{personaID}", s.handleUpdatePersona)
	r.Delete("/personas/{personaID}", s.handleDeletePersona)
	r.Get("/persona-nodes", s.handleListPersonaNodes)
	r.Post("/personas/{personaID}/nodes", s.handleAssignPersona)
	r.Delete("/personas/{personaID}/nodes/{nodeID}", s.handleUnassignPersona)
}

func (s *HTTPServer) handleListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.service.ListNodes(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"))
	s.respond(w, r, http.StatusOK, map[string]any{"nodes": nodes}, err)
}

func (s *HTTPServer) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	var body CreateNodeInput
	if !bind(w, r, &body) {
		return
	}
	node, err := s.service.CreateNode(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), body)
	s.respond(w, r, http.StatusCreated, node, err)
}

func (s *HTTPServer) handleNodePositions(w http.ResponseWriter, r *http.Request) {
	var body NodePositionsInput
	if !bind(w, r, &body) {
		return
	}
	err := s.service.UpdateNodePositions(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), body)
	s.respond(w, r, http.StatusOK, okPayload, err)
}

func (s *HTTPServer) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	var body UpdateNodeInput
	if !bind(w, r, &body) {
		return
	}
	node, err := s.service.UpdateNode(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "nodeID"), body)
	s.respond(w, r, http.StatusOK, node, err)
}

func (s *HTTPServer) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteNode(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "nodeID"))
	s.respond(w, r, http.StatusOK, okPayload, err)
}

func (s *HTTPServer) handleListEdges(w http.ResponseWriter, r *http.Request) {
	edges, err := s.service.ListEdges(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"))
	s.respond(w, r, http.StatusOK, map[string]any{"edges": edges}, err)
}

func (s *HTTPServer) handleCreateEdge(w http.ResponseWriter, r *http.Request) {
	var body CreateEdgeInput
	if !bind(w, r, &body) {
		return
	}
	edge, err := s.service.CreateEdge(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), body)
	s.respond(w, r, http.StatusCreated, edge, err)
}

func (s *HTTPServer) handleUpdateEdge(w http.ResponseWriter, r *http.Request) {
	var body UpdateEdgeInput
	if !bind(w, r, &body) {
		return
	}
	edge, err := s.service.UpdateEdge(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "edgeID"), body)
	s.respond(w, r, http.StatusOK, edge, err)
}

func (s *HTTPServer) handleDeleteEdge(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteEdge(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "edgeID"))
	s.respond(w, r, http.StatusOK, okPayload, err)
}

func (s *HTTPServer) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	personas, err := s.service.ListPersonas(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"))
	s.respond(w, r, http.StatusOK, map[string]any{"personas": personas}, err)
}

func (s *HTTPServer) handleCreatePersona(w http.ResponseWriter, r *http.Request) {
	var body PersonaInput
	if !bind(w, r, &body) {
		return
	}
	persona, err := s.service.CreatePersona(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), body)
	s.respond(w, r, http.StatusCreated, persona, err)
}

func (s *HTTPServer) handleUpdatePersona(w http.ResponseWriter, r *http.Request) {
	var body UpdatePersonaInput
	if !bind(w, r, &body) {
		return
	}
	persona, err := s.service.UpdatePersona(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "personaID"), body)
	s.respond(w, r, http.StatusOK, persona, err)
}

func (s *HTTPServer) handleDeletePersona(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeletePersona(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "personaID"))
	s.respond(w, r, http.StatusOK, okPayload, err)
}

func (s *HTTPServer) handleListPersonaNodes(w http.ResponseWriter, r *http.Request) {
	links, err := s.service.ListPersonaNodes(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"))
	s.respond(w, r, http.StatusOK, map[string]any{"personaNodes": links}, err)
}

func (s *HTTPServer) handleAssignPersona(w http.ResponseWriter, r *http.Request) {
	var body AssignPersonaInput
	if !bind(w, r, &body) {
		return
	}
	link, err := s.service.AssignPersona(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "personaID"), body)
	s.respond(w, r, http.StatusOK, link, err)
}

func (s *HTTPServer) handleUnassignPersona(w http.ResponseWriter, r *http.Request) {
	err := s.service.UnassignPersona(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "personaID"), chi.URLParam(r, "nodeID"))
	s.respond(w, r, http.StatusOK, okPayload, err)
}

func (s *HTTPServer) mountComments(r chi.Router) {
	r.Get("/comments", s.handleListComments)
	r.Post("/comments", s.handleCreateComment)
	r.Put("/comments/{commentID}", s.handleUpdateComment)
	r.Delete("/comments/{commentID}", s.handleDeleteComment)
	r.Post("/comments/{commentID}/resolve", s.handleResolveComment)
}

func (s *HTTPServer) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.service.ListComments(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), r.URL.Query().Get("nodeId"))
	s.respond(w, r, http.StatusOK, map[string]any{"comments": comments}, err)
}

func (s *HTTPServer) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var body CreateCommentInput
	if !bind(w, r, &body) {
		return
	}
	comment, err := s.service.CreateComment(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), body)
	s.respond(w, r, http.StatusCreated, comment, err)
}

func (s *HTTPServer) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	var body UpdateCommentInput
	if !bind(w, r, &body) {
		return
	}
	comment, err := s.service.UpdateComment(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "commentID"), body)
	s.respond(w, r, http.StatusOK, comment, err)
}

func (s *HTTPServer) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteComment(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "commentID"))
	s.respond(w, r, http.StatusOK, okPayload, err)
}

func (s *HTTPServer) handleResolveComment(w http.ResponseWriter, r *http.Request) {
	var body ResolveCommentInput
	if !bind(w, r, &body) {
		return
	}
	comment, err := s.service.ResolveComment(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "commentID"), body)
	s.respond(w, r, http.StatusOK, comment, err)
}
