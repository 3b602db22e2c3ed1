package counter_test

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/ceejiggy/shinycounter/internal/domain/counter"
	"github.com/ceejiggy/shinycounter/internal/domain/model"
	"github.com/ceejiggy/shinycounter/internal/domain/probability"
	. "github.com/smartystreets/goconvey/convey"
)

type recordingEnqueuer struct {
	mu        sync.Mutex
	snapshots []model.Snapshot
	reject    bool
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, s model.Snapshot) bool { //nolint:gocritic // interface signature
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reject {
		return false
	}
	r.snapshots = append(r.snapshots, s)
	return true
}

func (r *recordingEnqueuer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func sequentialIDs() func() model.ID {
	n := 0
	return func() model.ID {
		n++
		return model.ID(fmt.Sprintf("c%d", n))
	}
}

func newLoadedStore(opts ...counter.Option) *counter.Store {
	s := counter.New(append([]counter.Option{counter.WithIDGenerator(sequentialIDs())}, opts...)...)
	s.Load(context.Background())
	return s
}

func TestStoreAddAndSelect(t *testing.T) {
	Convey("Given an empty store", t, func() {
		s := newLoadedStore()

		So(s.SelectedIndex(), ShouldEqual, model.HomeIndex)
		So(s.Counters(), ShouldBeEmpty)

		Convey("When a counter is added", func() {
			c := s.AddCounter()

			Convey("Then it has default fields and is selected", func() {
				So(c.ID, ShouldEqual, model.ID("c1"))
				So(c.Count, ShouldEqual, 0)
				So(c.Interval, ShouldEqual, 1)
				So(c.ProbabilityNumerator, ShouldEqual, 1)
				So(c.ProbabilityDenominator, ShouldEqual, 4096)
				So(s.SelectedIndex(), ShouldEqual, 0)

				cur, idx, ok := s.Current()
				So(ok, ShouldBeTrue)
				So(idx, ShouldEqual, 0)
				So(cur.ID, ShouldEqual, c.ID)
			})

			Convey("And another is added", func() {
				s.AddCounter()
				So(s.SelectedIndex(), ShouldEqual, 1)
				So(len(s.Counters()), ShouldEqual, 2)
			})
		})

		Convey("When the cursor is moved out of range", func() {
			s.AddCounter()
			s.AddCounter()

			So(s.SetSelectedIndex(7), ShouldEqual, 1)
			So(s.SetSelectedIndex(-9), ShouldEqual, model.SettingsIndex)
			So(s.SetSelectedIndex(model.HomeIndex), ShouldEqual, model.HomeIndex)
			So(s.SetSelectedIndex(0), ShouldEqual, 0)
		})

		Convey("When the cursor is moved past an empty collection", func() {
			So(s.SetSelectedIndex(3), ShouldEqual, model.HomeIndex)
		})
	})
}

func TestStoreRemove(t *testing.T) {
	Convey("Given three counters", t, func() {
		s := newLoadedStore()
		a := s.AddCounter()
		s.AddCounter()
		c := s.AddCounter()
		s.AddCounterToHome(a.ID)
		s.AddCounterToHome(c.ID)

		Convey("When the index is out of range", func() {
			So(s.RemoveCounter(3), ShouldBeFalse)
			So(s.RemoveCounter(-1), ShouldBeFalse)
			So(len(s.Counters()), ShouldEqual, 3)
		})

		Convey("When removing below the cursor", func() {
			s.SetSelectedIndex(2)
			So(s.RemoveCounter(0), ShouldBeTrue)

			Convey("Then the cursor moves down by one", func() {
				So(s.SelectedIndex(), ShouldEqual, 1)
				cur, _, _ := s.Current()
				So(cur.ID, ShouldEqual, c.ID)
			})

			Convey("Then the removed id leaves the home set", func() {
				So(s.HomeIDs(), ShouldResemble, []model.ID{c.ID})
			})
		})

		Convey("When removing above the cursor", func() {
			s.SetSelectedIndex(0)
			s.RemoveCounter(2)
			So(s.SelectedIndex(), ShouldEqual, 0)
		})

		Convey("When removing the selected counter at index zero", func() {
			s.SetSelectedIndex(0)
			s.RemoveCounter(0)
			So(s.SelectedIndex(), ShouldEqual, 0)
		})

		Convey("When the cursor is on a sentinel", func() {
			s.SetSelectedIndex(model.SettingsIndex)
			s.RemoveCounter(1)
			So(s.SelectedIndex(), ShouldEqual, model.SettingsIndex)
		})

		Convey("When every counter is removed", func() {
			s.RemoveCounter(0)
			s.RemoveCounter(0)
			s.RemoveCounter(0)

			Convey("Then the cursor returns home", func() {
				So(s.Counters(), ShouldBeEmpty)
				So(s.SelectedIndex(), ShouldEqual, model.HomeIndex)
				So(s.HomeIDs(), ShouldBeEmpty)
			})
		})
	})
}

func TestStoreCounting(t *testing.T) {
	Convey("Given a selected counter", t, func() {
		s := newLoadedStore()
		c := s.AddCounter()

		Convey("When incrementing then decrementing", func() {
			s.SetCount(10)
			s.SetInterval(3)
			s.Increment()
			So(current(s).Count, ShouldEqual, 13)
			s.Decrement()
			So(current(s).Count, ShouldEqual, 10)
		})

		Convey("When at the upper bound", func() {
			s.SetCount(counter.MaxValue)
			So(s.Increment(), ShouldBeFalse)
			So(current(s).Count, ShouldEqual, counter.MaxValue)
		})

		Convey("When a step would overshoot the upper bound", func() {
			s.SetCount(counter.MaxValue - 1)
			s.SetInterval(5)
			s.Increment()
			So(current(s).Count, ShouldEqual, counter.MaxValue)
		})

		Convey("When the interval is near the int limit", func() {
			s.SetCount(500)
			s.SetInterval(math.MaxInt)

			Convey("Then incrementing saturates at the upper bound", func() {
				So(s.Increment(), ShouldBeTrue)
				So(current(s).Count, ShouldEqual, counter.MaxValue)
			})

			Convey("Then decrementing floors at zero", func() {
				So(s.Decrement(), ShouldBeTrue)
				So(current(s).Count, ShouldEqual, 0)
			})
		})

		Convey("When at zero", func() {
			So(s.Decrement(), ShouldBeFalse)
			So(current(s).Count, ShouldEqual, 0)
		})

		Convey("When setting out-of-range counts", func() {
			s.SetCount(-4)
			So(current(s).Count, ShouldEqual, 0)
			s.SetCount(counter.MaxValue + 10)
			So(current(s).Count, ShouldEqual, counter.MaxValue)
		})

		Convey("When setting the count by id from the home view", func() {
			s.AddCounter()
			s.SetSelectedIndex(model.HomeIndex)
			So(s.SetCountFor(c.ID, 42), ShouldBeTrue)

			Convey("Then the cursor is untouched", func() {
				So(s.SelectedIndex(), ShouldEqual, model.HomeIndex)
				got, ok := s.Counter(c.ID)
				So(ok, ShouldBeTrue)
				So(got.Count, ShouldEqual, 42)
			})

			Convey("Then unknown ids are ignored", func() {
				So(s.SetCountFor("nope", 1), ShouldBeFalse)
			})
		})

		Convey("When resetting", func() {
			s.SetCount(77)
			So(s.Reset(), ShouldBeTrue)
			So(current(s).Count, ShouldEqual, 0)
		})

		Convey("When the cursor is a sentinel", func() {
			s.SetSelectedIndex(model.SettingsIndex)
			So(s.Increment(), ShouldBeFalse)
			So(s.SetCount(5), ShouldBeFalse)
			So(s.SetPokemon("eevee", ""), ShouldBeFalse)
			got, _ := s.Counter(c.ID)
			So(got.Count, ShouldEqual, 0)
		})

		Convey("When odds are stored as given", func() {
			s.SetProbabilityNumerator(5)
			s.SetProbabilityDenominator(4)
			So(current(s).ProbabilityNumerator, ShouldEqual, 5)
			So(current(s).ProbabilityDenominator, ShouldEqual, 4)

			So(s.SetOdds(2, 1, 1365), ShouldBeTrue)
			So(s.SetOdds(2, 1, 1365), ShouldBeFalse)
			cur := current(s)
			So(cur.Interval, ShouldEqual, 2)
			So(cur.ProbabilityDenominator, ShouldEqual, 1365)
		})
	})
}

func TestStoreTargets(t *testing.T) {
	Convey("Given two counters", t, func() {
		s := newLoadedStore()
		first := s.AddCounter()
		s.AddCounter()

		Convey("When setting the target of the selected counter", func() {
			s.SetPokemon("ralts", "https://img/280.png")
			cur := current(s)
			So(cur.PokemonName, ShouldEqual, "ralts")
			So(cur.PokemonImage, ShouldEqual, "https://img/280.png")
			So(cur.DisplayName(1), ShouldEqual, "Ralts")
		})

		Convey("When a lookup finishes for a known counter", func() {
			So(s.SetPokemonFor(first.ID, "nidoran-female", "data:image/png;base64,AA=="), ShouldBeTrue)
			got, _ := s.Counter(first.ID)
			So(got.PokemonName, ShouldEqual, "nidoran-female")
		})

		Convey("When a lookup finishes after its counter was removed", func() {
			s.RemoveCounter(0)
			So(s.SetPokemonFor(first.ID, "ralts", "x"), ShouldBeFalse)
			for _, c := range s.Counters() {
				So(c.PokemonName, ShouldBeEmpty)
			}
		})

		Convey("When naming by index", func() {
			So(s.SetCounterName(0, "Shiny Charm hunt"), ShouldBeTrue)
			So(s.SetCounterName(5, "x"), ShouldBeFalse)
			So(s.Counters()[0].CustomName, ShouldEqual, "Shiny Charm hunt")
			So(s.SelectedIndex(), ShouldEqual, 1)
		})
	})
}

func TestStoreHome(t *testing.T) {
	Convey("Given three counters with two on the home view", t, func() {
		s := newLoadedStore()
		a := s.AddCounter()
		b := s.AddCounter()
		c := s.AddCounter()

		s.SetSelectedIndex(1)
		s.SetInterval(3)
		s.SetCount(10)
		s.SetSelectedIndex(2)
		s.SetCount(50)

		So(s.AddCounterToHome(b.ID), ShouldBeTrue)
		So(s.AddCounterToHome(a.ID), ShouldBeTrue)

		Convey("When adding twice or adding an unknown id", func() {
			So(s.AddCounterToHome(a.ID), ShouldBeFalse)
			So(s.AddCounterToHome("ghost"), ShouldBeFalse)
			So(len(s.HomeIDs()), ShouldEqual, 2)
		})

		Convey("When reading home counters", func() {
			home := s.HomeCounters()
			So(len(home), ShouldEqual, 2)
			So(home[0].ID, ShouldEqual, a.ID)
			So(home[1].ID, ShouldEqual, b.ID)
		})

		Convey("When incrementing the home set", func() {
			So(s.IncrementHomeCounters(), ShouldEqual, 2)

			Convey("Then each moves by its own interval", func() {
				ga, _ := s.Counter(a.ID)
				gb, _ := s.Counter(b.ID)
				gc, _ := s.Counter(c.ID)
				So(ga.Count, ShouldEqual, 1)
				So(gb.Count, ShouldEqual, 13)
				So(gc.Count, ShouldEqual, 50)
			})

			Convey("Then home counters reflect the change", func() {
				So(s.HomeCounters()[1].Count, ShouldEqual, 13)
			})
		})

		Convey("When decrementing the home set", func() {
			So(s.DecrementHomeCounters(), ShouldEqual, 1)
			gb, _ := s.Counter(b.ID)
			So(gb.Count, ShouldEqual, 7)
		})

		Convey("When a home counter has a huge interval", func() {
			s.SetSelectedIndex(1)
			s.SetInterval(math.MaxInt)
			So(s.IncrementHomeCounters(), ShouldEqual, 2)

			gb, _ := s.Counter(b.ID)
			So(gb.Count, ShouldEqual, counter.MaxValue)
		})

		Convey("When removing from the home set", func() {
			So(s.RemoveCounterFromHome(a.ID), ShouldBeTrue)
			So(s.RemoveCounterFromHome(a.ID), ShouldBeFalse)
			So(s.HomeIDs(), ShouldResemble, []model.ID{b.ID})
		})
	})
}

func TestStoreProbabilityScenarios(t *testing.T) {
	Convey("Given a new counter", t, func() {
		s := newLoadedStore()
		s.AddCounter()

		Convey("When odds are set and 1000 encounters are counted", func() {
			s.SetProbabilityNumerator(1)
			s.SetProbabilityDenominator(4096)
			s.SetCount(1000)
			c := current(s)
			got := probability.Cumulative(c.Count, c.ProbabilityNumerator, c.ProbabilityDenominator)
			So(got, ShouldAlmostEqual, 21.66, 0.1)
		})

		Convey("When 5000 encounters are counted at default odds", func() {
			s.SetCount(5000)
			c := current(s)
			got := probability.Cumulative(c.Count, c.ProbabilityNumerator, c.ProbabilityDenominator)
			So(got, ShouldAlmostEqual, 70.50, 0.1)
		})
	})
}

func TestStorePublishing(t *testing.T) {
	Convey("Given a store with an enqueuer and an observer", t, func() {
		enq := &recordingEnqueuer{}
		s := counter.New(counter.WithEnqueuer(enq), counter.WithIDGenerator(sequentialIDs()))

		var seen []uint64
		s.Subscribe(func(snap model.Snapshot) { seen = append(seen, snap.Revision) })

		Convey("When mutating before Load", func() {
			s.AddCounter()

			Convey("Then nothing is scheduled for persistence", func() {
				So(enq.count(), ShouldEqual, 0)
				So(seen, ShouldResemble, []uint64{1})
			})
		})

		Convey("When mutating after Load", func() {
			s.Load(context.Background())
			s.AddCounter()
			s.Increment()
			s.Decrement()
			s.Decrement()

			Convey("Then each change is published once with growing revisions", func() {
				So(enq.count(), ShouldEqual, 3)
				So(seen, ShouldResemble, []uint64{1, 2, 3})
			})

			Convey("Then published snapshots are independent copies", func() {
				first := enq.snapshots[0]
				So(first.Counters[0].Count, ShouldEqual, 0)
				So(current(s).Count, ShouldEqual, 0)
				s.SetCount(9)
				So(first.Counters[0].Count, ShouldEqual, 0)
			})
		})

		Convey("When the enqueuer rejects", func() {
			s.Load(context.Background())
			enq.reject = true
			s.AddCounter()

			Convey("Then in-memory state still changes", func() {
				So(len(s.Counters()), ShouldEqual, 1)
			})
		})
	})
}

func TestStoreSettings(t *testing.T) {
	Convey("Given default settings", t, func() {
		s := newLoadedStore()
		So(s.Settings(), ShouldResemble, model.DefaultSettings())

		Convey("When updating one field", func() {
			off := false
			got := s.UpdateSettings(model.SettingsPatch{ShowHomeProbability: &off})
			So(got.ShowHomeProbability, ShouldBeFalse)
			So(s.Settings().ShowHomeProbability, ShouldBeFalse)
			So(s.Settings().ShowProbability, ShouldBeTrue)
		})
	})
}

func TestStoreConcurrentMutations(t *testing.T) {
	s := newLoadedStore()
	s.AddCounter()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Increment()
		}()
	}
	wg.Wait()

	if got := current(s).Count; got != 50 {
		t.Fatalf("expected 50 increments, got %d", got)
	}
	if rev := s.Snapshot().Revision; rev != 51 {
		t.Fatalf("expected revision 51, got %d", rev)
	}
}

func current(s *counter.Store) model.Counter {
	c, _, _ := s.Current()
	return c
}
