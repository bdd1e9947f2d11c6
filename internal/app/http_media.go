package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *HTTPServer) mountMedia(r chi.Router) {
	r.Post("/api/uploads", s.handleUpload)
	r.Get("/api/files", s.handleFile)

	r.Route("/api/library", func(r chi.Router) {
		r.Get("/", s.handleListLibrary)
		r.Post("/", s.handleCreateLibrary)
		r.Put("/{globalID}", s.handleUpdateLibrary)
		r.Delete("/{globalID}", s.handleDeleteLibrary)
	})
}

func (s *HTTPServer) mountBoardMedia(r chi.Router) {
	r.Get("/screenshots", s.handleListScreenshots)
	r.Post("/screenshots", s.handleCreateScreenshot)
	r.Delete("/screenshots/{screenshotID}", s.handleDeleteScreenshot)

	r.Get("/library", s.handleListBoardLibrary)
	r.Post("/library", s.handleLinkLibrary)
	r.Delete("/library/{globalID}", s.handleUnlinkLibrary)
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	var body UploadInput
	if !bind(w, r, &body) {
		return
	}
	upload, err := s.service.Upload(r.Context(), sessionFrom(r), body)
	s.respond(w, r, http.StatusOK, upload, err)
}

// handleFile redirects to a short-lived signed URL for the stored object.
func (s *HTTPServer) handleFile(w http.ResponseWriter, r *http.Request) {
	url, err := s.service.FileURL(r.Context(), r.URL.Query().Get("key"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *HTTPServer) handleListScreenshots(w http.ResponseWriter, r *http.Request) {
	shots, err := s.service.ListScreenshots(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"))
	s.respond(w, r, http.StatusOK, map[string]any{"screenshots": shots}, err)
}

func (s *HTTPServer) handleCreateScreenshot(w http.ResponseWriter, r *http.Request) {
	var body CreateScreenshotInput
	if !bind(w, r, &body) {
		return
	}
	shot, err := s.service.CreateScreenshot(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), body)
	s.respond(w, r, http.StatusCreated, shot, err)
}

func (s *HTTPServer) handleDeleteScreenshot(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteScreenshot(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "screenshotID"))
	s.respond(w, r, http.StatusOK, okPayload, err)
}

func (s *HTTPServer) handleListLibrary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	shots, err := s.service.ListLibrary(r.Context(), sessionFrom(r), query.Get("folder"), query.Get("tag"))
	s.respond(w, r, http.StatusOK, map[string]any{"screenshots": shots}, err)
}

func (s *HTTPServer) handleCreateLibrary(w http.ResponseWriter, r *http.Request) {
	var body CreateLibraryInput
	if !bind(w, r, &body) {
		return
	}
	shot, err := s.service.CreateLibraryScreenshot(r.Context(), sessionFrom(r), body)
	s.respond(w, r, http.StatusCreated, shot, err)
}

func (s *HTTPServer) handleUpdateLibrary(w http.ResponseWriter, r *http.Request) {
	var body UpdateLibraryInput
	if !bind(w, r, &body) {
		return
	}
	shot, err := s.service.UpdateLibraryScreenshot(r.Context(), sessionFrom(r), chi.URLParam(r, "globalID"), body)
	s.respond(w, r, http.StatusOK, shot, err)
}

func (s *HTTPServer) handleDeleteLibrary(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteLibraryScreenshot(r.Context(), sessionFrom(r), chi.URLParam(r, "globalID"))
	s.respond(w, r, http.StatusOK, okPayload, err)
}

func (s *HTTPServer) handleListBoardLibrary(w http.ResponseWriter, r *http.Request) {
	shots, err := s.service.ListBoardLibrary(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"))
	s.respond(w, r, http.StatusOK, map[string]any{"screenshots": shots}, err)
}

func (s *HTTPServer) handleLinkLibrary(w http.ResponseWriter, r *http.Request) {
	var body LinkLibraryInput
	if !bind(w, r, &body) {
		return
	}
	link, err := s.service.LinkLibraryScreenshot(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), body)
	s.respond(w, r, http.StatusCreated, link, err)
}

func (s *HTTPServer) handleUnlinkLibrary(w http.ResponseWriter, r *http.Request) {
	err := s.service.UnlinkLibraryScreenshot(r.Context(), sessionFrom(r), chi.URLParam(r, "boardID"), chi.URLParam(r, "globalID"))
	s.respond(w, r, http.StatusOK, okPayload, err)
}
