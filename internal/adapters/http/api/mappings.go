package api

import (
	"fmt"
	"net/http"

	"github.com/ceejiggy/shinycounter/internal/domain/mirror"
	"github.com/ceejiggy/shinycounter/internal/domain/model"
)

func (s *Server) handleListMappings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Mappings.Mappings())
}

func (s *Server) handleAddMapping(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, s.deps.Mappings.AddMapping())
}

func (s *Server) handleUpdateMapping(w http.ResponseWriter, r *http.Request) {
	id := model.ID(r.PathValue("id"))
	var patch mirror.MappingPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if patch.CounterID != nil && *patch.CounterID != "" {
		if _, ok := s.deps.Store.Counter(*patch.CounterID); !ok {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: unknown counter %s", ErrBadRequest, *patch.CounterID))
			return
		}
	}
	m, ok := s.deps.Mappings.UpdateMapping(id, patch)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: mapping %s", ErrNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleRemoveMapping(w http.ResponseWriter, r *http.Request) {
	id := model.ID(r.PathValue("id"))
	if !s.deps.Mappings.RemoveMapping(id) {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: mapping %s", ErrNotFound, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
