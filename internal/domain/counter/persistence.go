package counter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ceejiggy/shinycounter/internal/domain/model"
	"github.com/ceejiggy/shinycounter/pkg/logger"
	"github.com/ceejiggy/shinycounter/pkg/metrics"
)

// KV is the string key-value contract persistence is written against.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// BatchKV is a KV that can set several keys as one atomic write. Persistence
// uses it when available so a failed write never leaves a mixed snapshot.
type BatchKV interface {
	KV
	SetMany(ctx context.Context, values map[string]string) error
}

// Restored is the state recovered from storage. Fields that were missing or
// unreadable hold their defaults; Issues lists what was reset and why.
type Restored struct {
	Counters []model.Counter
	Selected int
	Home     []model.ID
	Settings model.Settings
	Issues   []error
}

// Persistence maps store snapshots onto fixed KV keys.
type Persistence struct {
	kv     KV
	logger logger.Logger

	mu          sync.Mutex
	lastWritten uint64
}

// PersistenceOption configures a Persistence.
type PersistenceOption func(*Persistence)

// WithPersistenceLogger sets the logger used for read and write problems.
func WithPersistenceLogger(l logger.Logger) PersistenceOption {
	return func(p *Persistence) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPersistence wraps kv.
func NewPersistence(kv KV, opts ...PersistenceOption) *Persistence {
	p := &Persistence{kv: kv, logger: logger.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LastWritten returns the newest revision written so far.
func (p *Persistence) LastWritten() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastWritten
}

// Read loads every key independently. It never fails as a whole.
func (p *Persistence) Read(ctx context.Context) Restored {
	r := Restored{
		Counters: []model.Counter{},
		Selected: model.HomeIndex,
		Home:     []model.ID{},
		Settings: model.DefaultSettings(),
	}

	if raw, ok := p.get(ctx, KeyCounters, &r); ok {
		var counters []model.Counter
		if err := json.Unmarshal([]byte(raw), &counters); err != nil {
			r.issue(KeyCounters, ErrCorruptValue, err)
		} else {
			r.Counters = normalizeCounters(counters)
		}
	}

	if raw, ok := p.get(ctx, KeySelectedCounter, &r); ok {
		if v, err := strconv.Atoi(raw); err != nil {
			r.issue(KeySelectedCounter, ErrCorruptValue, err)
		} else {
			r.Selected = v
		}
	}

	if raw, ok := p.get(ctx, KeyHomeCounters, &r); ok {
		var ids []model.ID
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			r.issue(KeyHomeCounters, ErrCorruptValue, err)
		} else {
			r.Home = ids
		}
	}

	p.readBool(ctx, KeyShowProbability, &r.Settings.ShowProbability, &r)
	p.readBool(ctx, KeyShowHomeCounterControls, &r.Settings.ShowHomeCounterControls, &r)
	p.readBool(ctx, KeyShowHomeProbability, &r.Settings.ShowHomeProbability, &r)

	if raw, ok := p.get(ctx, KeyHomeCounterDisplayMode, &r); ok {
		mode, valid := model.ParseHomeDisplayMode(raw)
		if !valid {
			r.issue(KeyHomeCounterDisplayMode, ErrCorruptValue, fmt.Errorf("unknown mode %q", raw))
		}
		r.Settings.HomeCounterDisplayMode = mode
	}

	for _, err := range r.Issues {
		p.logger.Warn(ctx, "persisted value reset to default", logger.Error(err))
	}
	return r
}

func (p *Persistence) get(ctx context.Context, key string, r *Restored) (string, bool) {
	raw, ok, err := p.kv.Get(ctx, key)
	if err != nil {
		r.issue(key, ErrReadFailed, err)
		return "", false
	}
	return raw, ok
}

func (p *Persistence) readBool(ctx context.Context, key string, dst *bool, r *Restored) {
	raw, ok := p.get(ctx, key, r)
	if !ok {
		return
	}
	switch raw {
	case "true":
		*dst = true
	case "false":
		*dst = false
	default:
		r.issue(key, ErrCorruptValue, fmt.Errorf("not a boolean: %q", raw))
	}
}

func (r *Restored) issue(key string, kind, cause error) {
	r.Issues = append(r.Issues, fmt.Errorf("%s: %w: %w", key, kind, cause))
}

// normalizeCounters drops counters without an id or with a duplicate id and
// bounds counts.
func normalizeCounters(in []model.Counter) []model.Counter {
	out := make([]model.Counter, 0, len(in))
	seen := make(map[model.ID]struct{}, len(in))
	for _, c := range in {
		if c.ID == "" {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		c.Count = ClampCount(c.Count)
		if c.Interval < 1 {
			c.Interval = model.DefaultInterval
		}
		out = append(out, c)
	}
	return out
}

// Write stores every key of s. Snapshots not newer than the last written
// revision are skipped, so the newest state wins regardless of arrival order.
func (p *Persistence) Write(ctx context.Context, s model.Snapshot) error { //nolint:gocritic // snapshot is a value
	p.mu.Lock()
	defer p.mu.Unlock()

	if s.Revision <= p.lastWritten {
		metrics.RecordPersistStale()
		return nil
	}

	start := time.Now()
	counters := s.Counters
	if counters == nil {
		counters = []model.Counter{}
	}
	countersJSON, err := json.Marshal(counters)
	if err != nil {
		return fmt.Errorf("encode counters: %w", err)
	}
	home := s.Home
	if home == nil {
		home = []model.ID{}
	}
	homeJSON, err := json.Marshal(home)
	if err != nil {
		return fmt.Errorf("encode home counters: %w", err)
	}

	values := []struct{ key, value string }{
		{KeyCounters, string(countersJSON)},
		{KeySelectedCounter, strconv.Itoa(s.Selected)},
		{KeyHomeCounters, string(homeJSON)},
		{KeyShowProbability, strconv.FormatBool(s.Settings.ShowProbability)},
		{KeyShowHomeCounterControls, strconv.FormatBool(s.Settings.ShowHomeCounterControls)},
		{KeyHomeCounterDisplayMode, string(s.Settings.HomeCounterDisplayMode)},
		{KeyShowHomeProbability, strconv.FormatBool(s.Settings.ShowHomeProbability)},
	}
	if batch, ok := p.kv.(BatchKV); ok {
		m := make(map[string]string, len(values))
		for _, v := range values {
			m[v.key] = v.value
		}
		if err := batch.SetMany(ctx, m); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	} else {
		for _, v := range values {
			if err := p.kv.Set(ctx, v.key, v.value); err != nil {
				return fmt.Errorf("write %s: %w", v.key, err)
			}
		}
	}

	p.lastWritten = s.Revision
	metrics.RecordPersistWrite(float64(time.Since(start).Microseconds()) / 1000)
	return nil
}

// Clear removes every persisted key. The revision guard is reset with it.
func (p *Persistence) Clear(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, key := range []string{
		KeyCounters, KeySelectedCounter, KeyHomeCounters,
		KeyShowProbability, KeyShowHomeCounterControls,
		KeyHomeCounterDisplayMode, KeyShowHomeProbability,
	} {
		if err := p.kv.Remove(ctx, key); err != nil {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	p.lastWritten = 0
	return nil
}
