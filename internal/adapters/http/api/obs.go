package api

import (
	"net/http"
)

type sinkStatus struct {
	Enabled   bool   `json:"enabled"`
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleSinkStatus(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Sink == nil {
		writeJSON(w, http.StatusOK, sinkStatus{})
		return
	}
	writeJSON(w, http.StatusOK, sinkStatus{Enabled: true, Connected: s.deps.Sink.Connected()})
}

func (s *Server) handleSinkConnect(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sink == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", ErrUnavailable)
		return
	}
	if err := s.deps.Sink.Connect(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, sinkStatus{Enabled: true, Connected: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sinkStatus{Enabled: true, Connected: s.deps.Sink.Connected()})
}

func (s *Server) handleSinkDisconnect(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Sink == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", ErrUnavailable)
		return
	}
	if err := s.deps.Sink.Disconnect(); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	writeJSON(w, http.StatusOK, sinkStatus{Enabled: true, Connected: s.deps.Sink.Connected()})
}
