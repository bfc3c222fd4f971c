package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/okian/workpulse/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

func init() {
	_ = logger.Init()
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func counter(name string, n *atomic.Int32, err error) Job {
	return Func{JobName: name, Fn: func(context.Context) error {
		n.Add(1)
		return err
	}}
}

func TestScheduler(t *testing.T) {
	ctx := context.Background()

	Convey("Given an evaluate job every minute that also runs on start", t, func() {
		clock := quartz.NewMock(t)
		s := New(WithClock(clock))
		var evals atomic.Int32
		So(s.Every(time.Minute, counter("evaluate", &evals, nil), true), ShouldBeNil)

		So(s.Start(ctx), ShouldBeNil)
		defer func() { So(s.Stop(), ShouldBeNil) }()

		Convey("Then it should run immediately", func() {
			So(evals.Load(), ShouldEqual, 1)
		})

		Convey("When three minutes pass", func() {
			for i := 0; i < 3; i++ {
				clock.Advance(time.Minute).MustWait(ctx)
			}

			Convey("Then it should have run once per minute", func() {
				So(evals.Load(), ShouldEqual, 4)
				stats := s.GetStats()["evaluate"].(map[string]interface{})
				So(stats["runs"], ShouldEqual, int64(4))
			})
		})

		Convey("When it is started twice", func() {
			Convey("Then the second start should be refused", func() {
				So(errors.Is(s.Start(ctx), ErrAlreadyStarted), ShouldBeTrue)
			})
		})
	})

	Convey("Given a weekly cleanup job that fails", t, func() {
		clock := quartz.NewMock(t)
		s := New(WithClock(clock))
		var cleanups atomic.Int32
		So(s.Every(7*24*time.Hour, counter("cleanup", &cleanups, errors.New("store down")), false), ShouldBeNil)
		So(s.Start(ctx), ShouldBeNil)
		defer func() { So(s.Stop(), ShouldBeNil) }()

		Convey("When less than a week passes", func() {
			clock.Advance(6 * 24 * time.Hour).MustWait(ctx)

			Convey("Then it should not have run", func() {
				So(cleanups.Load(), ShouldEqual, 0)
			})
		})

		Convey("When two weeks pass", func() {
			clock.Advance(7 * 24 * time.Hour).MustWait(ctx)
			clock.Advance(7 * 24 * time.Hour).MustWait(ctx)

			Convey("Then every failure should be counted and the ticker kept alive", func() {
				So(cleanups.Load(), ShouldEqual, 2)
				stats := s.GetStats()["cleanup"].(map[string]interface{})
				So(stats["failures"], ShouldEqual, int64(2))
				So(stats["last_error"], ShouldEqual, "store down")
			})
		})

		Convey("When the job is run by hand", func() {
			ok := s.RunNow(ctx, "cleanup")
			missing := s.RunNow(ctx, "nope")

			Convey("Then only known jobs should run", func() {
				So(ok, ShouldBeTrue)
				So(missing, ShouldBeFalse)
				So(cleanups.Load(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given invalid registrations", t, func() {
		s := New()
		var n atomic.Int32

		Convey("Then they should be refused", func() {
			So(errors.Is(s.Every(time.Minute, nil, false), ErrNilJob), ShouldBeTrue)
			So(errors.Is(s.Every(0, counter("x", &n, nil), false), ErrInvalidInterval), ShouldBeTrue)
			So(s.Every(time.Minute, counter("x", &n, nil), false), ShouldBeNil)
			So(errors.Is(s.Every(time.Minute, counter("x", &n, nil), false), ErrDuplicateJob), ShouldBeTrue)
		})
	})

	Convey("Given a scheduler that was never started", t, func() {
		Convey("Then stopping should be a no-op", func() {
			So(New().Stop(), ShouldBeNil)
		})
	})
}
