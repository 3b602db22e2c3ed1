package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ceejiggy/shinycounter/internal/adapters/catalog"
	"github.com/ceejiggy/shinycounter/internal/domain/counter"
)

// withCurrent runs fn only when the cursor points at a counter, then writes
// the counter as it stands afterwards.
func (s *Server) withCurrent(w http.ResponseWriter, fn func()) {
	_, index, ok := s.deps.Store.Current()
	if !ok {
		writeError(w, http.StatusConflict, "no_selection", ErrNoSelection)
		return
	}
	fn()
	s.writeCounterAt(w, index)
}

func (s *Server) handleCurrent(w http.ResponseWriter, _ *http.Request) {
	s.withCurrent(w, func() {})
}

func (s *Server) handleIncrement(w http.ResponseWriter, _ *http.Request) {
	s.withCurrent(w, func() { s.deps.Store.Increment() })
}

func (s *Server) handleDecrement(w http.ResponseWriter, _ *http.Request) {
	s.withCurrent(w, func() { s.deps.Store.Decrement() })
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.withCurrent(w, func() { s.deps.Store.Reset() })
}

func (s *Server) handleSetCount(w http.ResponseWriter, r *http.Request) {
	var req countRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	s.withCurrent(w, func() { s.deps.Store.SetCount(counter.CoerceCount(req.Count.raw)) })
}

type oddsRequest struct {
	Interval    looseValue `json:"interval"`
	Numerator   looseValue `json:"numerator"`
	Denominator looseValue `json:"denominator"`
}

// handleSetOdds coerces each supplied field; omitted fields keep their value.
func (s *Server) handleSetOdds(w http.ResponseWriter, r *http.Request) {
	var req oddsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	s.withCurrent(w, func() {
		cur, _, ok := s.deps.Store.Current()
		if !ok {
			return
		}
		interval, num, den := cur.Interval, cur.ProbabilityNumerator, cur.ProbabilityDenominator
		if req.Interval.set {
			interval = counter.CoerceInterval(req.Interval.raw)
		}
		if req.Numerator.set {
			num = counter.CoerceNumerator(req.Numerator.raw)
		}
		if req.Denominator.set {
			den = counter.CoerceDenominator(req.Denominator.raw)
		}
		s.deps.Store.SetOdds(interval, num, den)
	})
}

type pokemonRequest struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

func (s *Server) handleSetPokemon(w http.ResponseWriter, r *http.Request) {
	var req pokemonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	s.withCurrent(w, func() { s.deps.Store.SetPokemon(strings.TrimSpace(req.Name), req.Image) })
}

type lookupResponse struct {
	CounterID string `json:"counterId"`
	Status    string `json:"status"`
}

// handleLookupPokemon starts a catalog lookup for the current counter and
// returns before it finishes.
func (s *Server) handleLookupPokemon(w http.ResponseWriter, r *http.Request) {
	if s.deps.Selector == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", ErrUnavailable)
		return
	}
	var req catalog.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	cur, _, ok := s.deps.Store.Current()
	if !ok {
		writeError(w, http.StatusConflict, "no_selection", ErrNoSelection)
		return
	}
	if err := s.deps.Selector.SelectPokemon(r.Context(), cur.ID, req); err != nil {
		status, code := http.StatusInternalServerError, "internal"
		if errors.Is(err, catalog.ErrNoName) {
			status, code = http.StatusBadRequest, "bad_request"
		}
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusAccepted, lookupResponse{CounterID: string(cur.ID), Status: "pending"})
}
