package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/workpulse/internal/adapters/mq/queue"
	worker "github.com/okian/workpulse/internal/adapters/mq/worker"
	model "github.com/okian/workpulse/internal/domain/model"
	logging "github.com/okian/workpulse/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logging.Init()
}

type mockApplier struct {
	mu      sync.Mutex
	applied []string
	fail    map[string]error
}

func newMockApplier() *mockApplier {
	return &mockApplier{fail: make(map[string]error)}
}

func (m *mockApplier) Apply(_ context.Context, e queue.Event) error { //nolint:gocritic // hugeParam: mirrors the Applier signature
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.fail[e.EventID]; ok {
		return err
	}
	m.applied = append(m.applied, e.EventID)
	return nil
}

func (m *mockApplier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.applied)
}

func event(id string) model.ClickEvent {
	return model.ClickEvent{EventID: id, Kind: "primary", At: time.Now()}
}

func TestWorker(t *testing.T) {
	convey.Convey("Given a worker over a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		applier := newMockApplier()
		w := worker.NewInMemoryWorker(q, applier, worker.WithName("w-test"))
		ctx := context.Background()

		convey.Convey("When events are queued and the queue is closed", func() {
			for _, id := range []string{"a", "b", "c"} {
				convey.So(q.Enqueue(ctx, event(id)), convey.ShouldBeNil)
			}
			convey.So(q.Close(), convey.ShouldBeNil)
			w.Run(ctx)

			convey.Convey("Then every buffered event should be applied in order", func() {
				convey.So(applier.applied, convey.ShouldResemble, []string{"a", "b", "c"})
				convey.So(w.Processed(), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the applier fails for one event", func() {
			applier.fail["bad"] = model.ErrStoreUnavailable
			convey.So(q.Enqueue(ctx, event("bad")), convey.ShouldBeNil)
			convey.So(q.Enqueue(ctx, event("good")), convey.ShouldBeNil)
			convey.So(q.Close(), convey.ShouldBeNil)
			w.Run(ctx)

			convey.Convey("Then the failure should be counted and the next event applied", func() {
				convey.So(w.Failed(), convey.ShouldEqual, 1)
				convey.So(applier.applied, convey.ShouldResemble, []string{"good"})
			})
		})

		convey.Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				w.Run(cctx)
				close(done)
			}()
			cancel()

			convey.Convey("Then Run should return without the queue closing", func() {
				select {
				case <-done:
				case <-time.After(time.Second):
					t.Fatal("worker did not stop")
				}
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool with no explicit worker count", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		applier := newMockApplier()
		p := worker.NewPool(0, q, applier)
		ctx := context.Background()

		convey.Convey("When events flow through and the queue closes", func() {
			p.Start(ctx)
			p.Start(ctx)
			for i := 0; i < 50; i++ {
				convey.So(q.Enqueue(ctx, event(string(rune('A'+i%26)))), convey.ShouldBeNil)
			}
			convey.So(q.Close(), convey.ShouldBeNil)

			waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			convey.So(p.Wait(waitCtx), convey.ShouldBeNil)

			convey.Convey("Then a single worker should have applied everything", func() {
				convey.So(applier.count(), convey.ShouldEqual, 50)
				stats := p.Stats()
				convey.So(stats["workers"], convey.ShouldEqual, 1)
				convey.So(stats["processed"], convey.ShouldEqual, int64(50))
			})
		})

		convey.Convey("When waiting past the deadline", func() {
			p.Start(ctx)
			waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
			defer cancel()
			err := p.Wait(waitCtx)
			_ = q.Close()

			convey.Convey("Then Wait should report the timeout", func() {
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})
}
