// Package counter owns the counter collection, the selection cursor and the
// home aggregate set.
//
// Every mutation runs under one lock, bumps the revision and publishes a
// deep-copied snapshot to the persistence queue and to subscribers. In-memory
// state never waits on a write.
package counter

import (
	"context"
	"slices"
	"sync"

	"github.com/ceejiggy/shinycounter/internal/domain/model"
	"github.com/ceejiggy/shinycounter/pkg/logger"
	"github.com/ceejiggy/shinycounter/pkg/metrics"
)

// Enqueuer accepts snapshots without blocking. It returns false when the
// snapshot was dropped.
type Enqueuer interface {
	Enqueue(ctx context.Context, s model.Snapshot) bool
}

// Observer is called with each committed snapshot, outside the store lock.
type Observer func(model.Snapshot)

// Store is the single owner of counter state.
type Store struct {
	mu        sync.Mutex
	counters  []model.Counter
	selected  int
	home      []model.ID
	settings  model.Settings
	revision  uint64
	loaded    bool
	observers []Observer

	persistence *Persistence
	enqueuer    Enqueuer
	newID       func() model.ID
	logger      logger.Logger
}

// New creates an empty store positioned on the home view.
func New(opts ...Option) *Store {
	s := &Store{
		counters: []model.Counter{},
		selected: model.HomeIndex,
		home:     []model.ID{},
		settings: model.DefaultSettings(),
		newID:    model.NewID,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the state with what persistence holds. Until Load has run,
// mutations are not scheduled for persistence.
func (s *Store) Load(ctx context.Context) {
	var r Restored
	if s.persistence != nil {
		r = s.persistence.Read(ctx)
	} else {
		r = Restored{Selected: model.HomeIndex, Settings: model.DefaultSettings()}
	}

	s.mu.Lock()
	s.counters = slices.Clone(r.Counters)
	if s.counters == nil {
		s.counters = []model.Counter{}
	}
	s.home = s.home[:0]
	for _, id := range r.Home {
		if s.indexOf(id) >= 0 && !slices.Contains(s.home, id) {
			s.home = append(s.home, id)
		}
	}
	s.selected = s.clampCursor(r.Selected)
	s.settings = r.Settings
	s.loaded = true
	total, home := len(s.counters), len(s.home)
	s.mu.Unlock()

	metrics.UpdateCounters(total, home)
	s.logger.Info(ctx, "counter state loaded",
		logger.Int("counters", total),
		logger.Int("home", home),
		logger.Int("issues", len(r.Issues)),
	)
}

// Loaded reports whether Load has completed.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Flush writes the current snapshot synchronously.
func (s *Store) Flush(ctx context.Context) error {
	if s.persistence == nil {
		return nil
	}
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return nil
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return s.persistence.Write(ctx, snap)
}

// Subscribe registers fn for every committed mutation.
func (s *Store) Subscribe(fn Observer) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// commit runs fn under the lock. When fn reports a change the revision is
// bumped and the new snapshot is published.
func (s *Store) commit(op string, fn func() bool) bool {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return false
	}
	s.revision++
	snap := s.snapshotLocked()
	observers := slices.Clone(s.observers)
	loaded := s.loaded
	s.mu.Unlock()

	metrics.RecordCounterMutation(op)
	metrics.UpdateCounters(len(snap.Counters), len(snap.Home))

	if loaded && s.enqueuer != nil && !s.enqueuer.Enqueue(context.Background(), snap) {
		s.logger.Warn(context.Background(), "snapshot not scheduled for persistence",
			logger.String("op", op),
			logger.Uint64("revision", snap.Revision),
		)
	}
	for _, o := range observers {
		o(snap)
	}
	return true
}

func (s *Store) snapshotLocked() model.Snapshot {
	return model.Snapshot{
		Revision: s.revision,
		Counters: slices.Clone(s.counters),
		Selected: s.selected,
		Home:     slices.Clone(s.home),
		Settings: s.settings,
	}
}

func (s *Store) indexOf(id model.ID) int {
	return slices.IndexFunc(s.counters, func(c model.Counter) bool { return c.ID == id })
}

func (s *Store) currentLocked() (*model.Counter, bool) {
	if s.selected < 0 || s.selected >= len(s.counters) {
		return nil, false
	}
	return &s.counters[s.selected], true
}

// clampCursor maps v onto the nearest valid cursor state.
func (s *Store) clampCursor(v int) int {
	switch {
	case v < model.SettingsIndex:
		return model.SettingsIndex
	case v < 0:
		return v
	case len(s.counters) == 0:
		return model.HomeIndex
	case v >= len(s.counters):
		return len(s.counters) - 1
	default:
		return v
	}
}

// Snapshot returns a copy of the whole state.
func (s *Store) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Counters returns a copy of the collection in order.
func (s *Store) Counters() []model.Counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.counters)
}

// Counter looks a counter up by id.
func (s *Store) Counter(id model.ID) (model.Counter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.counters[i], true
	}
	return model.Counter{}, false
}

// Current returns the counter under the cursor and its index.
func (s *Store) Current() (model.Counter, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.currentLocked()
	if !ok {
		return model.Counter{}, s.selected, false
	}
	return *c, s.selected, true
}

// SelectedIndex returns the cursor.
func (s *Store) SelectedIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// SetSelectedIndex moves the cursor, clamping invalid values to the nearest
// valid state, and returns where it landed.
func (s *Store) SetSelectedIndex(v int) int {
	var landed int
	s.commit("select", func() bool {
		landed = s.clampCursor(v)
		if landed == s.selected {
			return false
		}
		s.selected = landed
		return true
	})
	return landed
}

// AddCounter appends a default counter and selects it.
func (s *Store) AddCounter() model.Counter {
	var added model.Counter
	s.commit("add", func() bool {
		added = model.NewCounter(s.newID())
		s.counters = append(s.counters, added)
		s.selected = len(s.counters) - 1
		return true
	})
	return added
}

// RemoveCounter deletes the counter at index. Out-of-range indexes are ignored.
func (s *Store) RemoveCounter(index int) bool {
	return s.commit("remove", func() bool {
		if index < 0 || index >= len(s.counters) {
			return false
		}
		id := s.counters[index].ID
		s.counters = slices.Delete(s.counters, index, index+1)
		s.home = slices.DeleteFunc(s.home, func(h model.ID) bool { return h == id })

		switch {
		case len(s.counters) == 0:
			s.selected = model.HomeIndex
		case s.selected >= index:
			s.selected = max(0, s.selected-1)
		}
		return true
	})
}

// SetCount sets the count of the current counter, clamped to [0, MaxValue].
func (s *Store) SetCount(n int) bool {
	return s.commit("set_count", func() bool {
		c, ok := s.currentLocked()
		if !ok {
			return false
		}
		return setCount(c, n)
	})
}

// SetCountFor sets the count of the counter with id. The cursor is unchanged.
func (s *Store) SetCountFor(id model.ID, n int) bool {
	return s.commit("set_count", func() bool {
		i := s.indexOf(id)
		if i < 0 {
			return false
		}
		return setCount(&s.counters[i], n)
	})
}

func setCount(c *model.Counter, n int) bool {
	n = ClampCount(n)
	if c.Count == n {
		return false
	}
	c.Count = n
	return true
}

// Increment adds the current counter's interval to its count.
func (s *Store) Increment() bool {
	return s.step("increment", 1)
}

// Decrement subtracts the current counter's interval from its count.
func (s *Store) Decrement() bool {
	return s.step("decrement", -1)
}

func (s *Store) step(op string, dir int) bool {
	return s.commit(op, func() bool {
		c, ok := s.currentLocked()
		if !ok {
			return false
		}
		return setCount(c, stepCount(c.Count, c.Step(), dir))
	})
}

// stepCount moves count by step in dir and saturates at [0, MaxValue]
// without ever forming count+step, which can overflow for huge intervals.
func stepCount(count, step, dir int) int {
	count = ClampCount(count)
	if dir > 0 {
		if step >= MaxValue-count {
			return MaxValue
		}
		return count + step
	}
	if step >= count {
		return 0
	}
	return count - step
}

// IncrementHomeCounters steps every home counter up by its own interval and
// returns how many changed.
func (s *Store) IncrementHomeCounters() int {
	return s.stepHome("home_increment", 1)
}

// DecrementHomeCounters steps every home counter down by its own interval.
func (s *Store) DecrementHomeCounters() int {
	return s.stepHome("home_decrement", -1)
}

func (s *Store) stepHome(op string, dir int) int {
	changed := 0
	s.commit(op, func() bool {
		for i := range s.counters {
			c := &s.counters[i]
			if !slices.Contains(s.home, c.ID) {
				continue
			}
			if setCount(c, stepCount(c.Count, c.Step(), dir)) {
				changed++
			}
		}
		return changed > 0
	})
	return changed
}

// SetInterval stores v on the current counter as given.
func (s *Store) SetInterval(v int) bool {
	return s.updateCurrent("set_interval", func(c *model.Counter) bool {
		return assign(&c.Interval, v)
	})
}

// SetProbabilityNumerator stores v on the current counter as given.
func (s *Store) SetProbabilityNumerator(v int) bool {
	return s.updateCurrent("set_numerator", func(c *model.Counter) bool {
		return assign(&c.ProbabilityNumerator, v)
	})
}

// SetProbabilityDenominator stores v on the current counter as given.
func (s *Store) SetProbabilityDenominator(v int) bool {
	return s.updateCurrent("set_denominator", func(c *model.Counter) bool {
		return assign(&c.ProbabilityDenominator, v)
	})
}

// SetOdds stores interval and odds on the current counter in one mutation.
func (s *Store) SetOdds(interval, numerator, denominator int) bool {
	return s.updateCurrent("set_odds", func(c *model.Counter) bool {
		a := assign(&c.Interval, interval)
		b := assign(&c.ProbabilityNumerator, numerator)
		d := assign(&c.ProbabilityDenominator, denominator)
		return a || b || d
	})
}

// SetPokemon sets the target of the current counter.
func (s *Store) SetPokemon(name, image string) bool {
	return s.updateCurrent("set_pokemon", func(c *model.Counter) bool {
		a := assign(&c.PokemonName, name)
		b := assign(&c.PokemonImage, image)
		return a || b
	})
}

// SetPokemonFor sets the target of the counter with id. It reports false when
// the counter no longer exists, so late lookups are discarded.
func (s *Store) SetPokemonFor(id model.ID, name, image string) bool {
	found := false
	s.commit("set_pokemon", func() bool {
		i := s.indexOf(id)
		if i < 0 {
			return false
		}
		found = true
		c := &s.counters[i]
		a := assign(&c.PokemonName, name)
		b := assign(&c.PokemonImage, image)
		return a || b
	})
	return found
}

// SetCounterName sets the custom name of the counter at index.
func (s *Store) SetCounterName(index int, name string) bool {
	return s.commit("set_name", func() bool {
		if index < 0 || index >= len(s.counters) {
			return false
		}
		return assign(&s.counters[index].CustomName, name)
	})
}

// Reset zeroes the current counter.
func (s *Store) Reset() bool {
	return s.updateCurrent("reset", func(c *model.Counter) bool {
		return setCount(c, 0)
	})
}

func (s *Store) updateCurrent(op string, fn func(*model.Counter) bool) bool {
	return s.commit(op, func() bool {
		c, ok := s.currentLocked()
		if !ok {
			return false
		}
		return fn(c)
	})
}

func assign[T comparable](dst *T, v T) bool {
	if *dst == v {
		return false
	}
	*dst = v
	return true
}

// AddCounterToHome adds id to the home set. Unknown ids are ignored.
func (s *Store) AddCounterToHome(id model.ID) bool {
	return s.commit("home_add", func() bool {
		if s.indexOf(id) < 0 || slices.Contains(s.home, id) {
			return false
		}
		s.home = append(s.home, id)
		return true
	})
}

// RemoveCounterFromHome removes id from the home set.
func (s *Store) RemoveCounterFromHome(id model.ID) bool {
	return s.commit("home_remove", func() bool {
		before := len(s.home)
		s.home = slices.DeleteFunc(s.home, func(h model.ID) bool { return h == id })
		return len(s.home) != before
	})
}

// HomeIDs returns the home set.
func (s *Store) HomeIDs() []model.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.home)
}

// HomeCounters returns the counters in the home set in collection order.
func (s *Store) HomeCounters() []model.Counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Counter, 0, len(s.home))
	for _, c := range s.counters {
		if slices.Contains(s.home, c.ID) {
			out = append(out, c)
		}
	}
	return out
}

// Settings returns the display preferences.
func (s *Store) Settings() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings applies patch and returns the resulting preferences.
func (s *Store) UpdateSettings(patch model.SettingsPatch) model.Settings {
	var out model.Settings
	s.commit("settings", func() bool {
		next := patch.Apply(s.settings)
		out = next
		if next == s.settings {
			return false
		}
		s.settings = next
		return true
	})
	return out
}
