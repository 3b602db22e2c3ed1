package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ceejiggy/shinycounter/internal/domain/model"
	"github.com/ceejiggy/shinycounter/internal/domain/probability"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Store.Settings())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch model.SettingsPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if patch.HomeCounterDisplayMode != nil {
		if _, ok := model.ParseHomeDisplayMode(*patch.HomeCounterDisplayMode); !ok {
			writeError(w, http.StatusBadRequest, "bad_request",
				fmt.Errorf("%w: unknown display mode %q", ErrBadRequest, *patch.HomeCounterDisplayMode))
			return
		}
	}
	writeJSON(w, http.StatusOK, s.deps.Store.UpdateSettings(patch))
}

type oddsResponse struct {
	Trials      int     `json:"trials"`
	Numerator   int     `json:"numerator"`
	Denominator int     `json:"denominator"`
	Probability float64 `json:"probability"`
	Text        string  `json:"text"`
}

// handleOdds evaluates the estimator for query parameters. Missing numerator
// and denominator default to 1/4096.
func (s *Server) handleOdds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ints := map[string]int{"trials": 0, "numerator": model.DefaultNumerator, "denominator": model.DefaultDenominator}
	for key := range ints {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %s must be an integer", ErrBadRequest, key))
			return
		}
		ints[key] = v
	}
	p := probability.Cumulative(ints["trials"], ints["numerator"], ints["denominator"])
	writeJSON(w, http.StatusOK, oddsResponse{
		Trials:      ints["trials"],
		Numerator:   ints["numerator"],
		Denominator: ints["denominator"],
		Probability: p,
		Text:        probability.FormatPercent(p),
	})
}
