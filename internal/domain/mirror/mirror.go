// Package mirror pushes mapped counter values to an external text/image sink.
package mirror

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/ceejiggy/shinycounter/internal/domain/model"
	"github.com/ceejiggy/shinycounter/internal/domain/probability"
	"github.com/ceejiggy/shinycounter/pkg/logger"
	"github.com/ceejiggy/shinycounter/pkg/metrics"
)

// Target name suffixes appended to a mapping prefix.
const (
	SuffixCount       = "Count"
	SuffixImage       = "Image"
	SuffixProbability = "Probability"

	defaultPrefix = "Source"
)

// Sink receives mirrored values. Calls are best-effort.
type Sink interface {
	SetText(ctx context.Context, target, value string) error
	SetImage(ctx context.Context, target, ref string) error
}

// connectivity is implemented by sinks that can be offline.
type connectivity interface {
	Connected() bool
}

// MappingPatch carries optional mapping updates. An empty CounterID clears
// the binding.
type MappingPatch struct {
	CounterID    *model.ID `json:"counterId,omitempty"`
	SourcePrefix *string   `json:"sourcePrefix,omitempty"`
}

// Mirror keeps the mapping registry and syncs the latest store snapshot.
type Mirror struct {
	sink   Sink
	logger logger.Logger
	newID  func() model.ID

	mu       sync.Mutex
	mappings []model.Mapping
	lastKey  string
	latest   model.Snapshot
	pending  chan struct{}
}

// Option applies a configuration option to the Mirror.
type Option func(*Mirror)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Mirror) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithIDGenerator replaces the random mapping id source.
func WithIDGenerator(fn func() model.ID) Option {
	return func(m *Mirror) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// New creates a mirror with one unbound mapping.
func New(sink Sink, opts ...Option) *Mirror {
	m := &Mirror{
		sink:    sink,
		logger:  logger.Nop(),
		newID:   model.NewID,
		pending: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.mappings = []model.Mapping{{ID: m.newID(), SourcePrefix: defaultPrefix + "1"}}
	return m
}

// Mappings returns a copy of the registry.
func (m *Mirror) Mappings() []model.Mapping {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.mappings)
}

// AddMapping appends an unbound mapping named after its position.
func (m *Mirror) AddMapping() model.Mapping {
	m.mu.Lock()
	mp := model.Mapping{ID: m.newID(), SourcePrefix: defaultPrefix + strconv.Itoa(len(m.mappings)+1)}
	m.mappings = append(m.mappings, mp)
	m.mu.Unlock()
	return mp
}

// RemoveMapping deletes the mapping with id.
func (m *Mirror) RemoveMapping(id model.ID) bool {
	m.mu.Lock()
	before := len(m.mappings)
	m.mappings = slices.DeleteFunc(m.mappings, func(mp model.Mapping) bool { return mp.ID == id })
	removed := len(m.mappings) != before
	m.mu.Unlock()
	if removed {
		m.Invalidate()
	}
	return removed
}

// UpdateMapping applies patch to the mapping with id.
func (m *Mirror) UpdateMapping(id model.ID, patch MappingPatch) (model.Mapping, bool) {
	m.mu.Lock()
	i := slices.IndexFunc(m.mappings, func(mp model.Mapping) bool { return mp.ID == id })
	if i < 0 {
		m.mu.Unlock()
		return model.Mapping{}, false
	}
	if patch.CounterID != nil {
		m.mappings[i].CounterID = *patch.CounterID
	}
	if patch.SourcePrefix != nil {
		m.mappings[i].SourcePrefix = strings.TrimSpace(*patch.SourcePrefix)
	}
	mp := m.mappings[i]
	m.mu.Unlock()

	m.Invalidate()
	return mp, true
}

// Notify records s as the latest state and wakes Run. Older revisions are
// ignored and bursts coalesce into one pass.
func (m *Mirror) Notify(s model.Snapshot) { //nolint:gocritic // snapshot is a value
	m.mu.Lock()
	if s.Revision < m.latest.Revision {
		m.mu.Unlock()
		return
	}
	m.latest = s
	m.mu.Unlock()
	m.wake()
}

// Invalidate forgets what was last pushed so the next pass pushes everything.
func (m *Mirror) Invalidate() {
	m.mu.Lock()
	m.lastKey = ""
	m.mu.Unlock()
	m.wake()
}

func (m *Mirror) wake() {
	select {
	case m.pending <- struct{}{}:
	default:
	}
}

// Run syncs after every wake-up until ctx is done.
func (m *Mirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.pending:
			m.mu.Lock()
			counters := m.latest.Counters
			m.mu.Unlock()
			m.Sync(ctx, counters)
		}
	}
}

type binding struct {
	prefix  string
	counter model.Counter
}

// Sync pushes the mapped counters' values when they differ from the last
// pass and returns the number of successful pushes.
func (m *Mirror) Sync(ctx context.Context, counters []model.Counter) int {
	if c, ok := m.sink.(connectivity); ok && !c.Connected() {
		metrics.RecordMirrorSync("disconnected")
		return 0
	}

	m.mu.Lock()
	bindings := resolve(m.mappings, counters)
	key := diffKey(bindings)
	if key == m.lastKey {
		m.mu.Unlock()
		metrics.RecordMirrorSync("unchanged")
		return 0
	}
	m.lastKey = key
	m.mu.Unlock()

	pushed := 0
	for _, b := range bindings {
		pushed += m.push(ctx, b)
	}
	metrics.RecordMirrorSync("synced")
	m.logger.Debug(ctx, "mirror synced", logger.Int("bindings", len(bindings)), logger.Int("pushed", pushed))
	return pushed
}

func (m *Mirror) push(ctx context.Context, b binding) int {
	pushed := 0
	try := func(field, target string, fn func() error) {
		if err := fn(); err != nil {
			metrics.RecordSinkError(field)
			m.logger.Warn(ctx, "sink push failed",
				logger.String("target", target),
				logger.Error(err),
			)
			return
		}
		metrics.RecordSinkPush(field)
		pushed++
	}

	c := b.counter
	countTarget := b.prefix + SuffixCount
	try("count", countTarget, func() error {
		return m.sink.SetText(ctx, countTarget, strconv.Itoa(c.Count))
	})

	if c.PokemonImage != "" {
		imageTarget := b.prefix + SuffixImage
		try("image", imageTarget, func() error {
			return m.sink.SetImage(ctx, imageTarget, c.PokemonImage)
		})
	}

	if c.HasOdds() {
		probTarget := b.prefix + SuffixProbability
		value := probability.FormatPercent(probability.Cumulative(c.Count, c.ProbabilityNumerator, c.ProbabilityDenominator))
		try("probability", probTarget, func() error {
			return m.sink.SetText(ctx, probTarget, value)
		})
	}
	return pushed
}

// resolve pairs active mappings with their counters, skipping unbound
// mappings and counters that no longer exist.
func resolve(mappings []model.Mapping, counters []model.Counter) []binding {
	out := make([]binding, 0, len(mappings))
	for _, mp := range mappings {
		if mp.CounterID == "" || mp.SourcePrefix == "" {
			continue
		}
		i := slices.IndexFunc(counters, func(c model.Counter) bool { return c.ID == mp.CounterID })
		if i < 0 {
			continue
		}
		out = append(out, binding{prefix: mp.SourcePrefix, counter: counters[i]})
	}
	return out
}

func diffKey(bindings []binding) string {
	var sb strings.Builder
	for _, b := range bindings {
		c := b.counter
		fmt.Fprintf(&sb, "%s\x1f%s\x1f%d\x1f%s\x1f%d/%d\x1e",
			b.prefix, c.ID, c.Count, c.PokemonImage, c.ProbabilityNumerator, c.ProbabilityDenominator)
	}
	return sb.String()
}
