package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bassamadnan/xmail/mailapi"
	"github.com/bassamadnan/xmail/storage"
)

// errorResponse is the JSON error body. Clients read the Message field.
type errorResponse struct {
	Message string `json:"Message"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(errorResponse{Message: err.Error()}); encErr != nil {
		s.logger.Error("encoding error response", "error", encErr)
	}
}

func (s *Server) handleListMail(w http.ResponseWriter, r *http.Request) {
	mails, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("listing mail", "error", err)
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(mails); err != nil {
		s.logger.Error("encoding mail list", "error", err)
	}
}

func (s *Server) handleMailContent(w http.ResponseWriter, r *http.Request) {
	id, err := storage.ParseID(mux.Vars(r)["mailID"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	body, err := s.store.Body(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		s.logger.Error("loading mail content", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	if mailapi.IsHTMLContentType(body.ContentType) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := w.Write(body.Data); err != nil {
		s.logger.Warn("writing mail content", "id", id, "error", err)
	}
}
