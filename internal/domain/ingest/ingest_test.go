package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/okian/workpulse/internal/domain/dedupe"
	"github.com/okian/workpulse/internal/domain/model"
	"github.com/okian/workpulse/internal/domain/types"
	"github.com/okian/workpulse/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

type fakeTracking struct{ on bool }

func (f *fakeTracking) IsTracking() bool { return f.on }

type fakeQueue struct {
	events []model.ClickEvent
	err    error
}

func (f *fakeQueue) Enqueue(_ context.Context, e model.ClickEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

type fakeCounter struct {
	at   []time.Time
	err  error
	snap model.Snapshot
}

func (f *fakeCounter) RecordClick(_ context.Context, at time.Time) (model.Snapshot, error) {
	if f.err != nil {
		return model.Snapshot{}, f.err
	}
	f.at = append(f.at, at)
	return f.snap, nil
}

type fakeNotifier struct{ sent []types.Notification }

func (f *fakeNotifier) Notify(_ context.Context, n types.Notification) types.DeliveryReport {
	f.sent = append(f.sent, n)
	return types.DeliveryReport{Action: n.Action, Attempted: 1, Failed: 1}
}

func TestRecord(t *testing.T) {
	ctx := context.Background()

	Convey("Given an ingestor", t, func() {
		tr := &fakeTracking{}
		q := &fakeQueue{}
		clock := quartz.NewMock(t)
		now := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
		clock.Set(now)
		in, err := New(tr, q, WithClock(clock), WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(16))))
		So(err, ShouldBeNil)

		Convey("When a click arrives while idle", func() {
			res := in.Record(ctx, types.ClickDetected{})

			Convey("Then it should be refused without side effects", func() {
				So(res, ShouldResemble, types.ClickResult{Accepted: false, Reason: types.ReasonNotTracking})
				So(q.events, ShouldBeEmpty)
			})
		})

		Convey("When clicks arrive while tracking", func() {
			tr.on = true
			first := in.Record(ctx, types.ClickDetected{Kind: "scroll", ObserverID: "tab-1"})
			second := in.Record(ctx, types.ClickDetected{})

			Convey("Then both should be queued with the coordinator time", func() {
				So(first.Accepted, ShouldBeTrue)
				So(second.Accepted, ShouldBeTrue)
				So(len(q.events), ShouldEqual, 2)
				So(q.events[0].Kind, ShouldEqual, "scroll")
				So(q.events[0].ObserverID, ShouldEqual, "tab-1")
				So(q.events[1].Kind, ShouldEqual, "primary")
				So(q.events[0].At.Equal(now), ShouldBeTrue)
			})
		})

		Convey("When a retry repeats an event id", func() {
			tr.on = true
			first := in.Record(ctx, types.ClickDetected{EventID: "e-1"})
			retry := in.Record(ctx, types.ClickDetected{EventID: "e-1"})

			Convey("Then it should be counted once", func() {
				So(first.Accepted, ShouldBeTrue)
				So(retry.Reason, ShouldEqual, types.ReasonDuplicate)
				So(len(q.events), ShouldEqual, 1)
			})
		})

		Convey("When the queue is full", func() {
			tr.on = true
			q.err = errors.New("queue full")
			res := in.Record(ctx, types.ClickDetected{EventID: "e-2"})

			Convey("Then the click should be refused and the id released", func() {
				So(res.Reason, ShouldEqual, types.ReasonBackpressure)
				q.err = nil
				So(in.Record(ctx, types.ClickDetected{EventID: "e-2"}).Accepted, ShouldBeTrue)
			})
		})

		Convey("When the kind is unknown", func() {
			tr.on = true
			res := in.Record(ctx, types.ClickDetected{Kind: "wheel"})

			Convey("Then it should be refused", func() {
				So(res.Reason, ShouldEqual, types.ReasonInvalidKind)
				So(q.events, ShouldBeEmpty)
			})
		})
	})

	Convey("Given missing dependencies", t, func() {
		_, err := New(nil, &fakeQueue{})
		_, err2 := NewApplier(nil, &fakeNotifier{})

		Convey("Then construction should fail", func() {
			So(errors.Is(err, ErrNilDependency), ShouldBeTrue)
			So(errors.Is(err2, ErrNilDependency), ShouldBeTrue)
		})
	})
}

func TestApplier(t *testing.T) {
	ctx := context.Background()

	Convey("Given an applier", t, func() {
		counter := &fakeCounter{snap: model.Snapshot{
			DailyStats:  model.DailyStats{"Mon Mar 03 2025": {Clicks: 1}},
			WeeklyStats: model.WeeklyStats{"10": 1},
		}}
		notifier := &fakeNotifier{}
		a, err := NewApplier(counter, notifier)
		So(err, ShouldBeNil)
		at := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)

		Convey("When an event is applied", func() {
			err := a.Apply(ctx, model.ClickEvent{At: at})

			Convey("Then the click should be counted at its acceptance time and broadcast", func() {
				So(err, ShouldBeNil)
				So(counter.at, ShouldResemble, []time.Time{at})
				So(len(notifier.sent), ShouldEqual, 1)
				So(notifier.sent[0].Action, ShouldEqual, types.ActionStatsUpdated)
				So(notifier.sent[0].Stats.DailyStats["Mon Mar 03 2025"].Clicks, ShouldEqual, 1)
			})
		})

		Convey("When the store fails", func() {
			counter.err = errors.New("boom")
			err := a.Apply(ctx, model.ClickEvent{At: at})

			Convey("Then nothing should be broadcast", func() {
				So(errors.Is(err, model.ErrStoreUnavailable), ShouldBeTrue)
				So(notifier.sent, ShouldBeEmpty)
			})
		})
	})
}
