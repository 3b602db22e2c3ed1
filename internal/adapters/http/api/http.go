// Package api exposes the counter store, mapping registry and sink control
// over JSON HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"slices"
	"strconv"

	"github.com/ceejiggy/shinycounter/internal/adapters/catalog"
	"github.com/ceejiggy/shinycounter/internal/domain/mirror"
	"github.com/ceejiggy/shinycounter/internal/domain/model"
	"github.com/ceejiggy/shinycounter/internal/domain/probability"
)

const maxBodyBytes = 1 << 20

// Counters is the store surface the handlers use.
type Counters interface {
	Snapshot() model.Snapshot
	Current() (model.Counter, int, bool)
	Counter(id model.ID) (model.Counter, bool)
	SetSelectedIndex(v int) int
	AddCounter() model.Counter
	RemoveCounter(index int) bool
	SetCount(n int) bool
	SetCountFor(id model.ID, n int) bool
	Increment() bool
	Decrement() bool
	Reset() bool
	IncrementHomeCounters() int
	DecrementHomeCounters() int
	SetOdds(interval, numerator, denominator int) bool
	SetPokemon(name, image string) bool
	SetCounterName(index int, name string) bool
	AddCounterToHome(id model.ID) bool
	RemoveCounterFromHome(id model.ID) bool
	Settings() model.Settings
	UpdateSettings(patch model.SettingsPatch) model.Settings
}

// Mappings is the source-mapping registry.
type Mappings interface {
	Mappings() []model.Mapping
	AddMapping() model.Mapping
	RemoveMapping(id model.ID) bool
	UpdateMapping(id model.ID, patch mirror.MappingPatch) (model.Mapping, bool)
}

// SinkControl connects and disconnects the mirroring sink.
type SinkControl interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Connected() bool
}

// PokemonSelector runs a catalog lookup and applies it to a counter later.
type PokemonSelector interface {
	SelectPokemon(ctx context.Context, id model.ID, req catalog.Request) error
}

// Dependencies bundles what the handlers need. Sink and Selector may be nil
// when the feature is disabled.
type Dependencies struct {
	Store    Counters
	Mappings Mappings
	Sink     SinkControl
	Selector PokemonSelector
	Stats    StatsProvider
}

// Server wires HTTP routes for the API.
type Server struct {
	deps Dependencies

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// NewServer creates a new API server.
func NewServer(deps Dependencies) *Server {
	return &Server{
		deps:          deps,
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(deps.Stats),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	routes := []struct {
		pattern  string
		endpoint string
		handler  http.HandlerFunc
	}{
		{"GET /healthz", "healthz", s.healthHandler.HandleHealth},
		{"GET /metrics", "metrics", s.healthHandler.HandleHealth},
		{"GET /stats", "stats", s.statsHandler.HandleStats},
		{"GET /state", "state", s.handleState},

		{"POST /counters", "counters", s.handleAddCounter},
		{"DELETE /counters/{index}", "counters", s.handleRemoveCounter},
		{"PUT /counters/{index}/name", "counters_name", s.handleSetCounterName},
		{"PUT /counters/id/{id}/count", "counters_count", s.handleSetCountByID},
		{"PUT /selection", "selection", s.handleSelect},

		{"GET /current", "current", s.handleCurrent},
		{"POST /current/increment", "current_increment", s.handleIncrement},
		{"POST /current/decrement", "current_decrement", s.handleDecrement},
		{"POST /current/reset", "current_reset", s.handleReset},
		{"PUT /current/count", "current_count", s.handleSetCount},
		{"PUT /current/odds", "current_odds", s.handleSetOdds},
		{"PUT /current/pokemon", "current_pokemon", s.handleSetPokemon},
		{"POST /current/pokemon/lookup", "current_pokemon_lookup", s.handleLookupPokemon},

		{"GET /home", "home", s.handleHome},
		{"POST /home/increment", "home_increment", s.handleHomeIncrement},
		{"POST /home/decrement", "home_decrement", s.handleHomeDecrement},
		{"PUT /home/{id}", "home_member", s.handleHomeAdd},
		{"DELETE /home/{id}", "home_member", s.handleHomeRemove},

		{"GET /settings", "settings", s.handleGetSettings},
		{"PUT /settings", "settings", s.handleUpdateSettings},
		{"GET /odds", "odds", s.handleOdds},

		{"GET /mappings", "mappings", s.handleListMappings},
		{"POST /mappings", "mappings", s.handleAddMapping},
		{"PUT /mappings/{id}", "mappings_item", s.handleUpdateMapping},
		{"DELETE /mappings/{id}", "mappings_item", s.handleRemoveMapping},

		{"GET /obs", "obs", s.handleSinkStatus},
		{"POST /obs/connect", "obs_connect", s.handleSinkConnect},
		{"POST /obs/disconnect", "obs_disconnect", s.handleSinkDisconnect},
	}
	for _, r := range routes {
		mux.HandleFunc(r.pattern, MetricsMiddleware(r.handler, r.endpoint))
	}
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// counterView is a counter plus the values derived for display.
type counterView struct {
	model.Counter
	Index           int     `json:"index"`
	DisplayName     string  `json:"displayName"`
	Probability     float64 `json:"probability"`
	ProbabilityText string  `json:"probabilityText"`
	Home            bool    `json:"home"`
}

func newCounterView(c model.Counter, index int, home []model.ID) counterView { //nolint:gocritic // value in, value out
	p := probability.Cumulative(c.Count, c.ProbabilityNumerator, c.ProbabilityDenominator)
	return counterView{
		Counter:         c,
		Index:           index,
		DisplayName:     c.DisplayName(index),
		Probability:     p,
		ProbabilityText: probability.FormatPercent(p),
		Home:            slices.Contains(home, c.ID),
	}
}

func viewsOf(s model.Snapshot) []counterView { //nolint:gocritic // snapshot is a value
	out := make([]counterView, 0, len(s.Counters))
	for i, c := range s.Counters {
		out = append(out, newCounterView(c, i, s.Home))
	}
	return out
}

type stateResponse struct {
	Revision uint64         `json:"revision"`
	Counters []counterView  `json:"counters"`
	Selected int            `json:"selected"`
	Home     []model.ID     `json:"home"`
	Settings model.Settings `json:"settings"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads one JSON object from the body. An empty body leaves v as is.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

func pathIndex(r *http.Request) (int, error) {
	raw := r.PathValue("index")
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: index %q is not an integer", ErrBadRequest, raw)
	}
	return i, nil
}

// looseValue accepts a JSON number or string and keeps its text for coercion.
type looseValue struct {
	raw string
	set bool
}

func (v *looseValue) UnmarshalJSON(b []byte) error {
	v.set = true
	switch {
	case string(b) == "null":
		v.raw = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		return json.Unmarshal(b, &v.raw)
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected a number or string: %w", err)
	}
	v.raw = numberText(n)
	return nil
}

// numberText renders a JSON number as plain integer digits so exponent and
// fractional forms ("1e3", "12.7") truncate toward zero instead of being read
// up to the first non-digit.
func numberText(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	f, err := n.Float64()
	switch {
	case math.IsInf(f, 1):
		return strconv.FormatInt(math.MaxInt64, 10)
	case math.IsInf(f, -1):
		return strconv.FormatInt(math.MinInt64, 10)
	case err != nil:
		return n.String()
	}
	return strconv.FormatFloat(math.Trunc(f), 'f', 0, 64)
}
