package api

import (
	"fmt"
	"net/http"

	"github.com/ceejiggy/shinycounter/internal/domain/model"
)

type homeResponse struct {
	Counters    []counterView         `json:"counters"`
	DisplayMode model.HomeDisplayMode `json:"displayMode"`
	Changed     *int                  `json:"changed,omitempty"`
}

func (s *Server) homeView(changed *int) homeResponse {
	snap := s.deps.Store.Snapshot()
	all := viewsOf(snap)
	out := homeResponse{Counters: []counterView{}, DisplayMode: snap.Settings.HomeCounterDisplayMode, Changed: changed}
	for _, v := range all {
		if v.Home {
			out.Counters = append(out.Counters, v)
		}
	}
	return out
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.homeView(nil))
}

func (s *Server) handleHomeIncrement(w http.ResponseWriter, _ *http.Request) {
	n := s.deps.Store.IncrementHomeCounters()
	writeJSON(w, http.StatusOK, s.homeView(&n))
}

func (s *Server) handleHomeDecrement(w http.ResponseWriter, _ *http.Request) {
	n := s.deps.Store.DecrementHomeCounters()
	writeJSON(w, http.StatusOK, s.homeView(&n))
}

func (s *Server) handleHomeAdd(w http.ResponseWriter, r *http.Request) {
	id := model.ID(r.PathValue("id"))
	if _, ok := s.deps.Store.Counter(id); !ok {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: counter %s", ErrNotFound, id))
		return
	}
	s.deps.Store.AddCounterToHome(id)
	writeJSON(w, http.StatusOK, s.homeView(nil))
}

// handleHomeRemove is idempotent; removing an absent id succeeds.
func (s *Server) handleHomeRemove(w http.ResponseWriter, r *http.Request) {
	s.deps.Store.RemoveCounterFromHome(model.ID(r.PathValue("id")))
	writeJSON(w, http.StatusOK, s.homeView(nil))
}
