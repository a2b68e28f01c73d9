package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/circolo-dev/fantacircolo/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new in-memory deduper", t, func() {
		Convey("When recording a new request id", func() {
			d := dedupe.NewInMemoryDeduper()
			seen := d.SeenAndRecord(context.Background(), "req-1")

			Convey("Then it reports unseen and records it", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And a replay of the same id reports seen", func() {
				So(d.SeenAndRecord(context.Background(), "req-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When unrecording after a failed commit", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(context.Background(), "req-1")
			d.Unrecord(context.Background(), "req-1")

			Convey("Then the id can be retried", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(context.Background(), "req-1"), ShouldBeFalse)
			})
		})

		Convey("When unrecording an unknown id", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(context.Background(), "req-1")
			d.Unrecord(context.Background(), "req-2")

			Convey("Then the tracked set is unchanged", func() {
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the seen set is bounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
			So(d.SeenAndRecord(context.Background(), "req-1"), ShouldBeFalse)
			So(d.SeenAndRecord(context.Background(), "req-2"), ShouldBeFalse)
			So(d.SeenAndRecord(context.Background(), "req-3"), ShouldBeFalse)

			Convey("Then the oldest entry is evicted first", func() {
				So(d.Size(), ShouldEqual, 2)
				So(d.SeenAndRecord(context.Background(), "req-1"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 2)
			})

			Convey("Then the newest entries are still seen", func() {
				So(d.SeenAndRecord(context.Background(), "req-3"), ShouldBeTrue)
			})
		})

		Convey("When max size is zero", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			for i := 0; i < 500; i++ {
				So(d.SeenAndRecord(context.Background(), fmt.Sprintf("req-%d", i)), ShouldBeFalse)
			}

			Convey("Then the set is unbounded", func() {
				So(d.Size(), ShouldEqual, 500)
			})
		})
	})
}

func TestDeduperConcurrency(t *testing.T) {
	Convey("Given a deduper under concurrent access", t, func() {
		d := dedupe.NewInMemoryDeduper()
		const goroutines = 8
		const perGoroutine = 100

		Convey("When many goroutines record distinct ids", func() {
			var wg sync.WaitGroup
			for g := 0; g < goroutines; g++ {
				wg.Add(1)
				go func(g int) {
					defer wg.Done()
					for i := 0; i < perGoroutine; i++ {
						d.SeenAndRecord(context.Background(), fmt.Sprintf("req-%d-%d", g, i))
					}
				}(g)
			}
			wg.Wait()

			Convey("Then every id is tracked exactly once", func() {
				So(d.Size(), ShouldEqual, goroutines*perGoroutine)
			})
		})

		Convey("When many goroutines race on the same id", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			unseen := 0
			for g := 0; g < goroutines; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if !d.SeenAndRecord(context.Background(), "req-shared") {
						mu.Lock()
						unseen++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one caller wins the record", func() {
				So(unseen, ShouldEqual, 1)
				So(d.Size(), ShouldEqual, 1)
			})
		})
	})
}
