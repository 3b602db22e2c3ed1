package counter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ceejiggy/shinycounter/internal/adapters/repository"
	"github.com/ceejiggy/shinycounter/internal/domain/counter"
	"github.com/ceejiggy/shinycounter/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type failingKV struct {
	*repository.MemoryKV
	failGet map[string]bool
	failSet bool
}

func (f *failingKV) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGet[key] {
		return "", false, errors.New("io error")
	}
	return f.MemoryKV.Get(ctx, key)
}

func (f *failingKV) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errors.New("quota exceeded")
	}
	return f.MemoryKV.Set(ctx, key, value)
}

func (f *failingKV) SetMany(ctx context.Context, values map[string]string) error {
	if f.failSet {
		return errors.New("quota exceeded")
	}
	return f.MemoryKV.SetMany(ctx, values)
}

// singleKeyKV hides SetMany and fails the nth Set.
type singleKeyKV struct {
	mem    *repository.MemoryKV
	sets   int
	failAt int
}

func (k *singleKeyKV) Get(ctx context.Context, key string) (string, bool, error) {
	return k.mem.Get(ctx, key)
}

func (k *singleKeyKV) Set(ctx context.Context, key, value string) error {
	k.sets++
	if k.sets == k.failAt {
		return errors.New("disk full")
	}
	return k.mem.Set(ctx, key, value)
}

func (k *singleKeyKV) Remove(ctx context.Context, key string) error {
	return k.mem.Remove(ctx, key)
}

func TestPersistenceRoundTrip(t *testing.T) {
	Convey("Given a store backed by a key-value store", t, func() {
		ctx := context.Background()
		kv := repository.NewMemoryKV()
		p := counter.NewPersistence(kv)
		s := counter.New(counter.WithPersistence(p), counter.WithIDGenerator(sequentialIDs()))
		s.Load(ctx)

		a := s.AddCounter()
		s.SetCount(321)
		s.SetPokemon("mr-mime", "https://img/122.png")
		s.AddCounter()
		s.AddCounterToHome(a.ID)
		mode := "less"
		s.UpdateSettings(model.SettingsPatch{HomeCounterDisplayMode: &mode})

		Convey("When the state is flushed and loaded into a fresh store", func() {
			So(s.Flush(ctx), ShouldBeNil)

			fresh := counter.New(counter.WithPersistence(counter.NewPersistence(kv)))
			fresh.Load(ctx)

			Convey("Then everything is restored", func() {
				So(fresh.Counters(), ShouldResemble, s.Counters())
				So(fresh.SelectedIndex(), ShouldEqual, 1)
				So(fresh.HomeIDs(), ShouldResemble, []model.ID{a.ID})
				So(fresh.Settings().HomeCounterDisplayMode, ShouldEqual, model.HomeDisplayLess)
			})
		})

		Convey("When writing raw keys", func() {
			So(s.Flush(ctx), ShouldBeNil)

			sel, ok, _ := kv.Get(ctx, counter.KeySelectedCounter)
			So(ok, ShouldBeTrue)
			So(sel, ShouldEqual, "1")
			show, _, _ := kv.Get(ctx, counter.KeyShowProbability)
			So(show, ShouldEqual, "true")
			home, _, _ := kv.Get(ctx, counter.KeyHomeCounters)
			So(home, ShouldEqual, `["c1"]`)
		})

		Convey("When an older snapshot arrives after a newer one", func() {
			newer := s.Snapshot()
			So(p.Write(ctx, newer), ShouldBeNil)
			older := newer
			older.Revision--
			older.Counters = nil
			So(p.Write(ctx, older), ShouldBeNil)

			Convey("Then the newer state is kept", func() {
				So(p.LastWritten(), ShouldEqual, newer.Revision)
				r := counter.NewPersistence(kv).Read(ctx)
				So(len(r.Counters), ShouldEqual, 2)
			})
		})

		Convey("When the saved state is cleared", func() {
			So(s.Flush(ctx), ShouldBeNil)
			So(p.Clear(ctx), ShouldBeNil)
			So(kv.Len(), ShouldEqual, 0)
			So(p.LastWritten(), ShouldEqual, 0)
		})
	})
}

func TestPersistenceRead(t *testing.T) {
	Convey("Given nothing persisted", t, func() {
		r := counter.NewPersistence(repository.NewMemoryKV()).Read(context.Background())

		So(r.Counters, ShouldBeEmpty)
		So(r.Selected, ShouldEqual, model.HomeIndex)
		So(r.Settings, ShouldResemble, model.DefaultSettings())
		So(r.Issues, ShouldBeEmpty)
	})

	Convey("Given corrupt values", t, func() {
		ctx := context.Background()
		kv := repository.NewMemoryKV()
		_ = kv.Set(ctx, counter.KeyCounters, `[{"id":"a","count":3},`)
		_ = kv.Set(ctx, counter.KeySelectedCounter, "two")
		_ = kv.Set(ctx, counter.KeyHomeCounters, `["a"]`)
		_ = kv.Set(ctx, counter.KeyShowProbability, "yes")
		_ = kv.Set(ctx, counter.KeyShowHomeProbability, "false")
		_ = kv.Set(ctx, counter.KeyHomeCounterDisplayMode, "giant")

		r := counter.NewPersistence(kv).Read(ctx)

		Convey("Then only the broken fields fall back to defaults", func() {
			So(r.Counters, ShouldBeEmpty)
			So(r.Selected, ShouldEqual, model.HomeIndex)
			So(r.Home, ShouldResemble, []model.ID{"a"})
			So(r.Settings.ShowProbability, ShouldBeTrue)
			So(r.Settings.ShowHomeProbability, ShouldBeFalse)
			So(r.Settings.HomeCounterDisplayMode, ShouldEqual, model.HomeDisplayFull)
			So(len(r.Issues), ShouldEqual, 4)
			for _, err := range r.Issues {
				So(errors.Is(err, counter.ErrCorruptValue), ShouldBeTrue)
			}
		})

		Convey("Then a store loading it prunes stale home ids", func() {
			s := counter.New(counter.WithPersistence(counter.NewPersistence(kv)))
			s.Load(ctx)
			So(s.HomeIDs(), ShouldBeEmpty)
			So(s.SelectedIndex(), ShouldEqual, model.HomeIndex)
		})
	})

	Convey("Given legacy and irregular counters", t, func() {
		ctx := context.Background()
		kv := repository.NewMemoryKV()
		_ = kv.Set(ctx, counter.KeyCounters, `[
			{"id":1712345678901,"count":12,"interval":0,"probabilityNumerator":1,"probabilityDenominator":8192},
			{"id":1712345678901,"count":1},
			{"count":4},
			{"id":"b","count":1234567,"interval":2}
		]`)
		_ = kv.Set(ctx, counter.KeySelectedCounter, "9")
		_ = kv.Set(ctx, counter.KeyHomeCounters, `[1712345678901,"b","b"]`)

		s := counter.New(counter.WithPersistence(counter.NewPersistence(kv)))
		s.Load(ctx)

		Convey("Then the collection is normalized", func() {
			cs := s.Counters()
			So(len(cs), ShouldEqual, 2)
			So(cs[0].ID, ShouldEqual, model.ID("1712345678901"))
			So(cs[0].Interval, ShouldEqual, 1)
			So(cs[1].Count, ShouldEqual, counter.MaxValue)
			So(s.SelectedIndex(), ShouldEqual, 1)
			So(s.HomeIDs(), ShouldResemble, []model.ID{"1712345678901", "b"})
		})
	})

	Convey("Given a key that cannot be read", t, func() {
		ctx := context.Background()
		kv := &failingKV{MemoryKV: repository.NewMemoryKV(), failGet: map[string]bool{counter.KeyCounters: true}}
		_ = kv.MemoryKV.Set(ctx, counter.KeySelectedCounter, "-2")

		r := counter.NewPersistence(kv).Read(ctx)

		So(r.Counters, ShouldBeEmpty)
		So(r.Selected, ShouldEqual, model.SettingsIndex)
		So(len(r.Issues), ShouldEqual, 1)
		So(errors.Is(r.Issues[0], counter.ErrReadFailed), ShouldBeTrue)
	})
}

func TestPersistenceWriteFailure(t *testing.T) {
	Convey("Given a key-value store that rejects writes", t, func() {
		ctx := context.Background()
		kv := &failingKV{MemoryKV: repository.NewMemoryKV(), failSet: true}
		p := counter.NewPersistence(kv)
		s := counter.New(counter.WithPersistence(p))
		s.Load(ctx)
		s.AddCounter()

		Convey("When flushing", func() {
			err := s.Flush(ctx)

			Convey("Then the error surfaces and memory stays authoritative", func() {
				So(err, ShouldNotBeNil)
				So(p.LastWritten(), ShouldEqual, 0)
				So(len(s.Counters()), ShouldEqual, 1)
			})
		})
	})
}

func TestPersistenceBatching(t *testing.T) {
	Convey("Given a batch-capable store that rejects the write", t, func() {
		ctx := context.Background()
		kv := &failingKV{MemoryKV: repository.NewMemoryKV()}
		p := counter.NewPersistence(kv)
		So(p.Write(ctx, model.Snapshot{Revision: 1, Selected: 0}), ShouldBeNil)

		kv.failSet = true
		err := p.Write(ctx, model.Snapshot{Revision: 2, Selected: 4})

		Convey("Then no key of the new snapshot lands", func() {
			So(err, ShouldNotBeNil)
			So(p.LastWritten(), ShouldEqual, 1)
			v, _, _ := kv.MemoryKV.Get(ctx, counter.KeySelectedCounter)
			So(v, ShouldEqual, "0")
		})
	})

	Convey("Given a store without batching", t, func() {
		ctx := context.Background()
		kv := &singleKeyKV{mem: repository.NewMemoryKV()}
		p := counter.NewPersistence(kv)

		Convey("When every key writes", func() {
			So(p.Write(ctx, model.Snapshot{Revision: 1, Selected: 2}), ShouldBeNil)
			So(kv.sets, ShouldEqual, 7)
			v, _, _ := kv.mem.Get(ctx, counter.KeySelectedCounter)
			So(v, ShouldEqual, "2")
		})

		Convey("When a key fails part way", func() {
			kv.failAt = 3
			So(p.Write(ctx, model.Snapshot{Revision: 1}), ShouldNotBeNil)
			So(p.LastWritten(), ShouldEqual, 0)
		})
	})
}
