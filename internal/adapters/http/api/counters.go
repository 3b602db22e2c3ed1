package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ceejiggy/shinycounter/internal/domain/counter"
	"github.com/ceejiggy/shinycounter/internal/domain/model"
)

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	snap := s.deps.Store.Snapshot()
	writeJSON(w, http.StatusOK, stateResponse{
		Revision: snap.Revision,
		Counters: viewsOf(snap),
		Selected: snap.Selected,
		Home:     snap.Home,
		Settings: snap.Settings,
	})
}

func (s *Server) handleAddCounter(w http.ResponseWriter, _ *http.Request) {
	c := s.deps.Store.AddCounter()
	snap := s.deps.Store.Snapshot()
	index := len(snap.Counters) - 1
	for i := range snap.Counters {
		if snap.Counters[i].ID == c.ID {
			index = i
			break
		}
	}
	writeJSON(w, http.StatusCreated, newCounterView(c, index, snap.Home))
}

func (s *Server) handleRemoveCounter(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if !s.deps.Store.RemoveCounter(index) {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: counter %d", ErrNotFound, index))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type nameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleSetCounterName(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	var req nameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	snap := s.deps.Store.Snapshot()
	if index < 0 || index >= len(snap.Counters) {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: counter %d", ErrNotFound, index))
		return
	}
	s.deps.Store.SetCounterName(index, strings.TrimSpace(req.Name))
	s.writeCounterAt(w, index)
}

type countRequest struct {
	Count looseValue `json:"count"`
}

func (s *Server) handleSetCountByID(w http.ResponseWriter, r *http.Request) {
	id := model.ID(r.PathValue("id"))
	var req countRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if _, ok := s.deps.Store.Counter(id); !ok {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: counter %s", ErrNotFound, id))
		return
	}
	s.deps.Store.SetCountFor(id, counter.CoerceCount(req.Count.raw))
	snap := s.deps.Store.Snapshot()
	for i, c := range snap.Counters {
		if c.ID == id {
			writeJSON(w, http.StatusOK, newCounterView(c, i, snap.Home))
			return
		}
	}
	writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: counter %s", ErrNotFound, id))
}

type selectionRequest struct {
	Index *int `json:"index"`
}

type selectionResponse struct {
	Selected int `json:"selected"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Index == nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("index is required"))
		return
	}
	writeJSON(w, http.StatusOK, selectionResponse{Selected: s.deps.Store.SetSelectedIndex(*req.Index)})
}

func (s *Server) writeCounterAt(w http.ResponseWriter, index int) {
	snap := s.deps.Store.Snapshot()
	if index < 0 || index >= len(snap.Counters) {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: counter %d", ErrNotFound, index))
		return
	}
	writeJSON(w, http.StatusOK, newCounterView(snap.Counters[index], index, snap.Home))
}
