package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/okian/workpulse/internal/domain/model"
	"github.com/okian/workpulse/internal/domain/types"
	"github.com/okian/workpulse/pkg/logger"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

// stubObserver records deliveries and can be made to fail or hang.
type stubObserver struct {
	id    string
	err   error
	block bool

	mu   sync.Mutex
	seen []types.Notification
}

func (s *stubObserver) ID() string { return s.id }

func (s *stubObserver) Deliver(ctx context.Context, n types.Notification) (types.ObserverAck, error) {
	if s.block {
		<-ctx.Done()
		return types.ObserverAck{}, ctx.Err()
	}
	if s.err != nil {
		return types.ObserverAck{}, s.err
	}
	s.mu.Lock()
	s.seen = append(s.seen, n)
	s.mu.Unlock()
	return types.ObserverAck{Success: true}, nil
}

func (s *stubObserver) Ping(context.Context) (types.PingResponse, error) {
	if s.err != nil {
		return types.PingResponse{}, s.err
	}
	return types.PingResponse{Status: "alive"}, nil
}

func (s *stubObserver) received() []types.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Notification(nil), s.seen...)
}

func TestHub(t *testing.T) {
	ctx := context.Background()

	Convey("Given a hub with three observers", t, func() {
		h := NewHub(WithDeliveryTimeout(50 * time.Millisecond))
		ok1 := &stubObserver{id: "a"}
		ok2 := &stubObserver{id: "b"}
		bad := &stubObserver{id: "c", err: errors.New("tab closed")}
		So(h.Register(ctx, ok1), ShouldBeNil)
		So(h.Register(ctx, ok2), ShouldBeNil)
		So(h.Register(ctx, bad), ShouldBeNil)

		Convey("When a notification is sent", func() {
			report := h.Notify(ctx, types.Notification{Action: types.ActionStartTracking})

			Convey("Then one failure should not stop the others", func() {
				So(report, ShouldResemble, types.DeliveryReport{
					Action: types.ActionStartTracking, Attempted: 3, Delivered: 2, Failed: 1,
				})
				So(len(ok1.received()), ShouldEqual, 1)
				So(len(ok2.received()), ShouldEqual, 1)
			})
		})

		Convey("When an observer hangs", func() {
			So(h.Register(ctx, &stubObserver{id: "d", block: true}), ShouldBeNil)
			start := time.Now()
			report := h.Notify(ctx, types.Notification{Action: types.ActionStopTracking})

			Convey("Then the delivery timeout should bound the broadcast", func() {
				So(time.Since(start), ShouldBeLessThan, time.Second)
				So(report.Failed, ShouldEqual, 2)
				So(report.Delivered, ShouldEqual, 2)
			})
		})

		Convey("When delivering to a failing observer directly", func() {
			err := h.DeliverTo(ctx, bad, types.Notification{Action: types.ActionStopTracking})

			Convey("Then the error should be a delivery failure", func() {
				So(errors.Is(err, model.ErrDeliveryFailure), ShouldBeTrue)
			})
		})

		Convey("When the same id registers twice", func() {
			err := h.Register(ctx, &stubObserver{id: "a"})

			Convey("Then registration should be refused", func() {
				So(errors.Is(err, ErrDuplicateObserver), ShouldBeTrue)
			})
		})

		Convey("When an observer leaves", func() {
			h.Unregister(ctx, "b")
			h.Unregister(ctx, "missing")

			Convey("Then it should no longer be listed", func() {
				So(h.Observers(), ShouldResemble, []string{"a", "c"})
			})
		})

		Convey("When pinging", func() {
			resp, err := h.Ping(ctx, "a")
			_, errBad := h.Ping(ctx, "c")
			_, errMissing := h.Ping(ctx, "zzz")

			Convey("Then live, failing and unknown observers should be told apart", func() {
				So(err, ShouldBeNil)
				So(resp.Status, ShouldEqual, "alive")
				So(errors.Is(errBad, model.ErrDeliveryFailure), ShouldBeTrue)
				So(errors.Is(errMissing, ErrUnknownObserver), ShouldBeTrue)
			})
		})
	})

	Convey("Given a hub without observers", t, func() {
		h := NewHub()

		Convey("Then a notification should be a no-op", func() {
			report := h.Notify(ctx, types.Notification{Action: types.ActionStatsUpdated})
			So(report.Attempted, ShouldEqual, 0)
			So(report.Failed, ShouldEqual, 0)
		})
	})

	Convey("Given a hub with a join hook", t, func() {
		var joined []string
		h := NewHub(WithJoinHook(func(_ context.Context, o Observer) {
			joined = append(joined, o.ID())
		}))

		Convey("When an observer registers", func() {
			So(h.Register(ctx, &stubObserver{id: "late"}), ShouldBeNil)

			Convey("Then the hook should see it", func() {
				So(joined, ShouldResemble, []string{"late"})
			})
		})
	})
}

func TestStreamObserver(t *testing.T) {
	ctx := context.Background()

	Convey("Given a stream observer with a buffer of two", t, func() {
		s := NewStreamObserver("https://example.com/page", 2)

		Convey("When start is delivered", func() {
			ack, err := s.Deliver(ctx, types.Notification{Action: types.ActionStartTracking})

			Convey("Then it should mirror the tracking flag", func() {
				So(err, ShouldBeNil)
				So(ack, ShouldResemble, types.ObserverAck{Success: true, Tracking: true})
				resp, err := s.Ping(ctx)
				So(err, ShouldBeNil)
				So(resp.Tracking, ShouldBeTrue)
				So(resp.URL, ShouldEqual, "https://example.com/page")
				So((<-s.Events()).Action, ShouldEqual, types.ActionStartTracking)
			})
		})

		Convey("When the buffer overflows", func() {
			_, _ = s.Deliver(ctx, types.Notification{Action: types.ActionStatsUpdated})
			_, _ = s.Deliver(ctx, types.Notification{Action: types.ActionStatsUpdated})
			_, err := s.Deliver(ctx, types.Notification{Action: types.ActionStatsUpdated})

			Convey("Then delivery should fail", func() {
				So(errors.Is(err, ErrBufferFull), ShouldBeTrue)
			})
		})

		Convey("When clicks are credited through the hub", func() {
			h := NewHub()
			So(h.Register(ctx, s), ShouldBeNil)
			h.Credit(s.ID())
			h.Credit(s.ID())
			h.Credit("")

			Convey("Then ping should report them", func() {
				resp, err := h.Ping(ctx, s.ID())
				So(err, ShouldBeNil)
				So(resp.ClickCount, ShouldEqual, 2)
			})
		})

		Convey("When the stream is closed", func() {
			s.Close()
			s.Close()
			_, err := s.Deliver(ctx, types.Notification{Action: types.ActionStopTracking})

			Convey("Then later deliveries should fail", func() {
				So(errors.Is(err, ErrObserverClosed), ShouldBeTrue)
				_, open := <-s.Events()
				So(open, ShouldBeFalse)
			})
		})
	})
}

type countingNotifier struct{ report types.DeliveryReport }

func (c countingNotifier) Notify(_ context.Context, n types.Notification) types.DeliveryReport {
	r := c.report
	r.Action = n.Action
	return r
}

func TestFanout(t *testing.T) {
	Convey("Given a fanout over two notifiers and a nil", t, func() {
		f := Fanout{
			countingNotifier{types.DeliveryReport{Attempted: 2, Delivered: 2}},
			nil,
			countingNotifier{types.DeliveryReport{Attempted: 1, Failed: 1}},
		}

		Convey("Then reports should be merged", func() {
			r := f.Notify(context.Background(), types.Notification{Action: types.ActionStatsUpdated})
			So(r.Action, ShouldEqual, types.ActionStatsUpdated)
			So(r.Attempted, ShouldEqual, 3)
			So(r.Delivered, ShouldEqual, 2)
			So(r.Failed, ShouldEqual, 1)
		})
	})
}

func TestRedisRelay(t *testing.T) {
	Convey("Given two processes sharing a redis channel", t, func() {
		mr := miniredis.RunT(t)
		clientA := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		clientB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer clientA.Close()
		defer clientB.Close()

		hubA, hubB := NewHub(), NewHub()
		obsA := &stubObserver{id: "a"}
		obsB := &stubObserver{id: "b"}
		So(hubA.Register(context.Background(), obsA), ShouldBeNil)
		So(hubB.Register(context.Background(), obsB), ShouldBeNil)

		pubA := NewRedisPublisher(clientA, "")
		pubB := NewRedisPublisher(clientB, "")
		So(pubA.Origin(), ShouldNotEqual, pubB.Origin())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		var wg sync.WaitGroup
		for _, r := range []*RedisRelay{pubA.Relay(hubA), pubB.Relay(hubB)} {
			wg.Add(1)
			go func(r *RedisRelay) {
				defer wg.Done()
				_ = r.Run(ctx)
			}(r)
		}
		waitSubscribers(t, clientA, 2)

		Convey("When process A publishes a lifecycle change and then new stats", func() {
			stop := pubA.Notify(ctx, types.Notification{Action: types.ActionStopTracking})
			update := pubA.Notify(ctx, types.Notification{Action: types.ActionStatsUpdated})

			Convey("Then only process B's observers should receive the stats", func() {
				So(stop.Delivered, ShouldEqual, 1)
				So(update.Delivered, ShouldEqual, 1)
				So(eventually(func() bool { return len(obsB.received()) == 1 }), ShouldBeTrue)
				So(obsB.received()[0].Action, ShouldEqual, types.ActionStatsUpdated)
				So(obsA.received(), ShouldBeEmpty)
			})
		})

		Convey("When redis fails", func() {
			mr.SetError("LOADING redis is loading the dataset")
			report := pubA.Notify(context.Background(), types.Notification{Action: types.ActionStartTracking})

			Convey("Then the publish should count as a failed delivery", func() {
				So(report.Attempted, ShouldEqual, 1)
				So(report.Failed, ShouldEqual, 1)
			})
		})

		cancel()
		wg.Wait()
	})
}

func waitSubscribers(t *testing.T, c *redis.Client, n int64) {
	t.Helper()
	ok := eventually(func() bool {
		counts, err := c.PubSubNumSub(context.Background(), DefaultChannel).Result()
		return err == nil && counts[DefaultChannel] == n
	})
	if !ok {
		t.Fatalf("relays did not subscribe")
	}
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
