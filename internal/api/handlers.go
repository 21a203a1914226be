package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"

	"apt-archive/internal/core"
	"apt-archive/internal/types"
)

// ErrorBody is the JSON shape of every non-2xx response.
type ErrorBody struct {
	Kind       types.ErrorKind            `json:"kind"`
	Repository string                     `json:"repo,omitempty"`
	Message    string                     `json:"message"`
	Violations []core.ValidationViolation `json:"violations,omitempty"`
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.backend.Configuration())
}

func (s *Server) listRepositories(w http.ResponseWriter, r *http.Request) {
	repos := s.backend.Repositories()
	if repos == nil {
		repos = []types.RepositoryDefinition{}
	}
	writeJSON(w, r, http.StatusOK, repos)
}

func (s *Server) getRepository(w http.ResponseWriter, r *http.Request) {
	repo, err := s.backend.Repository(mux.Vars(r)["name"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, repo)
}

func (s *Server) publishRepositories(w http.ResponseWriter, r *http.Request) {
	mode, ok := core.ParseValidationMode(r.URL.Query().Get("validation"), "")
	if !ok {
		writeJSON(w, r, http.StatusBadRequest, ErrorBody{
			Kind:    types.ErrorKindMalformedRequest,
			Message: fmt.Sprintf("unknown validation mode %q", r.URL.Query().Get("validation")),
		})
		return
	}

	var requested []types.RepositoryDefinition
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(&requested); err != nil {
		writeJSON(w, r, http.StatusBadRequest, ErrorBody{
			Kind:    types.ErrorKindMalformedRequest,
			Message: "request body must be a JSON array of repository definitions",
		})
		return
	}

	outcomes, err := s.backend.PublishBatch(r.Context(), requested, mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if outcomes == nil {
		outcomes = []types.PublishOutcome{}
	}
	writeJSON(w, r, http.StatusOK, outcomes)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *core.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, r, http.StatusBadRequest, ErrorBody{
			Kind:       validationErr.Kind,
			Repository: validationErr.Repository,
			Message:    validationErr.Error(),
			Violations: validationErr.Violations,
		})
		return
	}

	switch errbuilder.CodeOf(err) {
	case errbuilder.CodeNotFound:
		writeJSON(w, r, http.StatusNotFound, ErrorBody{Kind: types.ErrorKindNotFound, Message: err.Error()})
	case errbuilder.CodeInvalidArgument:
		writeJSON(w, r, http.StatusBadRequest, ErrorBody{Kind: types.ErrorKindMalformedRequest, Message: err.Error()})
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		writeJSON(w, r, http.StatusInternalServerError, ErrorBody{Kind: types.ErrorKindInternal, Message: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("writing response failed")
	}
}
