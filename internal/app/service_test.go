package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/coder/quartz"
	service "github.com/okian/workpulse/internal/app"
	"github.com/okian/workpulse/internal/adapters/repository"
	"github.com/okian/workpulse/internal/domain/model"
	"github.com/okian/workpulse/internal/domain/schedule"
	"github.com/okian/workpulse/internal/domain/types"
	"github.com/okian/workpulse/pkg/logger"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var monday = time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

func at(hh, mm int) time.Time {
	return monday.Add(time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute)
}

func officeHours() *schedule.Schedule {
	return &schedule.Schedule{StartWork: 9 * 60, LunchStart: 12 * 60, LunchEnd: 13 * 60, EndWork: 18 * 60}
}

func newTestService(t *testing.T, now time.Time, opts ...service.Option) (*service.Service, *quartz.Mock, repository.Store) {
	clock := quartz.NewMock(t)
	clock.Set(now)
	store := repository.NewMemoryStore()
	base := []service.Option{
		service.WithClock(clock),
		service.WithLocation(time.UTC),
		service.WithStore(store),
	}
	return service.New(append(base, opts...)...), clock, store
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

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should not be started", func() {
			So(svc, ShouldNotBeNil)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})

		Convey("Then state queries should fail until it is opened", func() {
			_, err := svc.TrackingStatus(context.Background())
			So(errors.Is(err, service.ErrNotOpen), ShouldBeTrue)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(2),
			service.WithQueueSize(64),
			service.WithDedupeSize(128),
			service.WithRetentionDays(7),
		)

		Convey("Then the options should be reported", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 2)
			So(stats["queueSize"], ShouldEqual, 64)
			So(stats["retentionDays"], ShouldEqual, 7)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service outside working hours", t, func() {
		svc, _, _ := newTestService(t, at(20, 0), service.WithSeedSchedule(officeHours()))

		Convey("When it starts", func() {
			So(svc.Start(ctx), ShouldBeNil)
			defer func() { So(svc.Stop(ctx), ShouldBeNil) }()

			Convey("Then the seed schedule should be installed and tracking off", func() {
				st, err := svc.TrackingStatus(ctx)
				So(err, ShouldBeNil)
				So(st.IsTracking, ShouldBeFalse)
				So(st.Schedule, ShouldResemble, officeHours())
				So(svc.GetStats()["started"], ShouldEqual, true)
			})

			Convey("Then starting again should be a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})
		})
	})

	Convey("Given a store that already holds a schedule", t, func() {
		svc, _, store := newTestService(t, at(20, 0), service.WithSeedSchedule(officeHours()))
		stored := &schedule.Schedule{StartWork: 8 * 60, LunchStart: 11 * 60, LunchEnd: 12 * 60, EndWork: 16 * 60}
		So(store.Set(ctx, model.KeySchedule, stored), ShouldBeNil)

		Convey("When it opens", func() {
			So(svc.Open(ctx), ShouldBeNil)
			defer func() { _ = svc.Close() }()

			Convey("Then the stored schedule should win over the seed", func() {
				st, err := svc.TrackingStatus(ctx)
				So(err, ShouldBeNil)
				So(st.Schedule, ShouldResemble, stored)
			})
		})
	})

	Convey("Given a force-started session", t, func() {
		svc, clock, store := newTestService(t, at(20, 0))
		So(svc.Start(ctx), ShouldBeNil)
		st, err := svc.ForceStart(ctx)
		So(err, ShouldBeNil)
		So(st.IsTracking, ShouldBeTrue)

		Convey("When thirty minutes pass without a schedule and the service stops", func() {
			for i := 0; i < 30; i++ {
				clock.Advance(time.Minute).MustWait(ctx)
			}
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then the session should survive the ticks and be credited on shutdown", func() {
				var daily model.DailyStats
				So(store.Get(ctx, model.KeyDailyStats, &daily), ShouldBeNil)
				So(daily[model.DateKey(at(20, 30))].WorkMinutes, ShouldEqual, 30)

				var tracking bool
				So(store.Get(ctx, model.KeyIsTracking, &tracking), ShouldBeNil)
				So(tracking, ShouldBeFalse)
			})
		})
	})
}

func TestService_Handle(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service", t, func() {
		svc, _, _ := newTestService(t, at(10, 0))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { So(svc.Stop(ctx), ShouldBeNil) }()

		Convey("When a click arrives before any schedule", func() {
			res, err := svc.Handle(ctx, types.ClickDetected{})

			Convey("Then it should be refused as not tracking", func() {
				So(err, ShouldBeNil)
				So(res, ShouldResemble, types.ClickResult{Accepted: false, Reason: types.ReasonNotTracking})
			})
		})

		Convey("When the schedule is updated", func() {
			res, err := svc.Handle(ctx, types.ScheduleUpdated{Schedule: officeHours()})

			Convey("Then it should be acknowledged without a transition", func() {
				So(err, ShouldBeNil)
				So(res, ShouldResemble, types.ScheduleAck{Acknowledged: true})
				st, _ := svc.Handle(ctx, types.GetTrackingStatus{})
				So(st.(types.TrackingStatus).IsTracking, ShouldBeFalse)
			})
		})

		Convey("When a nil schedule is sent", func() {
			_, err := svc.Handle(ctx, types.ScheduleUpdated{})

			Convey("Then it should be rejected", func() {
				So(errors.Is(err, service.ErrNilSchedule), ShouldBeTrue)
			})
		})

		Convey("When tracking is forced and a click arrives", func() {
			st, err := svc.Handle(ctx, types.ForceStartTracking{})
			So(err, ShouldBeNil)
			So(st.(types.TrackingStatus).IsTracking, ShouldBeTrue)
			res, err := svc.Handle(ctx, types.ClickDetected{EventID: "e-1"})
			So(err, ShouldBeNil)
			dup, _ := svc.Handle(ctx, types.ClickDetected{EventID: "e-1"})

			Convey("Then the click should be counted once", func() {
				So(res.(types.ClickResult).Accepted, ShouldBeTrue)
				So(dup.(types.ClickResult).Reason, ShouldEqual, types.ReasonDuplicate)
				So(eventually(func() bool {
					snap, err := svc.Snapshot(ctx)
					return err == nil && snap.DailyStats[model.DateKey(at(10, 0))].Clicks == 1
				}), ShouldBeTrue)

				sum, err := svc.Summary(ctx)
				So(err, ShouldBeNil)
				So(sum.Clicks, ShouldEqual, 1)
			})
		})

		Convey("When stats are reset", func() {
			_, _ = svc.ForceStart(ctx)
			_ = svc.Click(ctx, types.ClickDetected{})
			So(eventually(func() bool {
				snap, _ := svc.Snapshot(ctx)
				return len(snap.DailyStats) == 1
			}), ShouldBeTrue)
			So(svc.ResetStats(ctx), ShouldBeNil)

			Convey("Then the snapshot should be empty", func() {
				snap, err := svc.Snapshot(ctx)
				So(err, ShouldBeNil)
				So(snap.DailyStats, ShouldBeEmpty)
				So(snap.WeeklyStats, ShouldBeEmpty)
			})
		})
	})
}

func TestService_Observers(t *testing.T) {
	ctx := context.Background()

	Convey("Given a tracking service", t, func() {
		svc, _, _ := newTestService(t, at(10, 0), service.WithSeedSchedule(officeHours()))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { So(svc.Stop(ctx), ShouldBeNil) }()

		Convey("When an observer connects mid-session", func() {
			o, err := svc.ConnectObserver(ctx, "https://example.com")
			So(err, ShouldBeNil)

			Convey("Then it should be told to start tracking right away", func() {
				n := <-o.Events()
				So(n.Action, ShouldEqual, types.ActionStartTracking)
				So(svc.Observers(), ShouldResemble, []string{o.ID()})
			})

			Convey("Then its accepted clicks should show in ping", func() {
				res := svc.Click(ctx, types.ClickDetected{ObserverID: o.ID()})
				So(res.Accepted, ShouldBeTrue)
				resp, err := svc.PingObserver(ctx, o.ID())
				So(err, ShouldBeNil)
				So(resp.ClickCount, ShouldEqual, 1)
				So(resp.Tracking, ShouldBeTrue)
			})

			Convey("Then disconnecting should remove it", func() {
				svc.DisconnectObserver(ctx, o)
				So(svc.Observers(), ShouldBeEmpty)
			})
		})
	})
}

func TestService_Cleanup(t *testing.T) {
	ctx := context.Background()

	Convey("Given stats from 40 days ago and today", t, func() {
		svc, _, store := newTestService(t, at(10, 0), service.WithRetentionDays(30))
		old := model.DateKey(at(10, 0).AddDate(0, 0, -40))
		today := model.DateKey(at(10, 0))
		So(store.Set(ctx, model.KeyDailyStats, model.DailyStats{
			old:   {Clicks: 4},
			today: {Clicks: 2},
		}), ShouldBeNil)
		So(svc.Open(ctx), ShouldBeNil)
		defer func() { _ = svc.Close() }()

		Convey("When cleanup runs", func() {
			removed, err := svc.Cleanup(ctx)

			Convey("Then only the old day should go", func() {
				So(err, ShouldBeNil)
				So(removed, ShouldEqual, 1)
				snap, _ := svc.Snapshot(ctx)
				So(snap.DailyStats, ShouldContainKey, today)
			})
		})
	})
}

func TestService_ClickDuringRestart(t *testing.T) {
	ctx := context.Background()

	Convey("Given a tracking service taking clicks from several observers", t, func() {
		svc, _, _ := newTestService(t, at(20, 0))
		So(svc.Start(ctx), ShouldBeNil)
		_, err := svc.ForceStart(ctx)
		So(err, ShouldBeNil)

		stop := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
						_ = svc.Click(ctx, types.ClickDetected{})
					}
				}
			}()
		}

		Convey("When the service is stopped and started again", func() {
			errStop := svc.Stop(ctx)
			errStart := svc.Start(ctx)
			close(stop)
			wg.Wait()
			defer func() { So(svc.Stop(ctx), ShouldBeNil) }()

			Convey("Then clicks should keep working against the new queue", func() {
				So(errStop, ShouldBeNil)
				So(errStart, ShouldBeNil)
				_, _ = svc.ForceStart(ctx)
				So(svc.Click(ctx, types.ClickDetected{}).Accepted, ShouldBeTrue)
			})
		})
	})
}

func TestService_CleanupSchedule(t *testing.T) {
	ctx := context.Background()

	Convey("Given stats 40 and 25 days old with daily ticks and weekly cleanup", t, func() {
		svc, clock, store := newTestService(t, at(10, 0),
			service.WithRetentionDays(30),
			service.WithIntervals(24*time.Hour, 7*24*time.Hour),
		)
		expired := model.DateKey(at(10, 0).AddDate(0, 0, -40))
		aging := model.DateKey(at(10, 0).AddDate(0, 0, -25))
		today := model.DateKey(at(10, 0))
		So(store.Set(ctx, model.KeyDailyStats, model.DailyStats{
			expired: {Clicks: 4},
			aging:   {Clicks: 3},
			today:   {Clicks: 2},
		}), ShouldBeNil)
		So(store.Set(ctx, model.KeyWeeklyStats, model.WeeklyStats{"1": 9}), ShouldBeNil)

		So(svc.Start(ctx), ShouldBeNil)
		defer func() { So(svc.Stop(ctx), ShouldBeNil) }()

		Convey("When the service starts", func() {
			snap, err := svc.Snapshot(ctx)
			So(err, ShouldBeNil)

			Convey("Then retention should already have run once", func() {
				So(snap.DailyStats, ShouldNotContainKey, expired)
				So(snap.DailyStats, ShouldContainKey, aging)
				So(snap.DailyStats, ShouldContainKey, today)
			})
		})

		Convey("When a week passes", func() {
			for i := 0; i < 7; i++ {
				clock.Advance(24 * time.Hour).MustWait(ctx)
			}
			snap, err := svc.Snapshot(ctx)
			So(err, ShouldBeNil)

			Convey("Then the weekly run should prune the day that aged out", func() {
				So(snap.DailyStats, ShouldNotContainKey, aging)
				So(snap.DailyStats, ShouldContainKey, today)
			})

			Convey("Then weekly stats should be untouched", func() {
				So(snap.WeeklyStats["1"], ShouldEqual, 9)
			})
		})
	})
}

func TestService_RedisBroadcast(t *testing.T) {
	ctx := context.Background()

	Convey("Given two coordinators sharing redis", t, func() {
		mr := miniredis.RunT(t)
		settings := repository.Settings{Backend: repository.BackendRedis, RedisAddr: mr.Addr()}

		newSvc := func() *service.Service {
			clock := quartz.NewMock(t)
			clock.Set(at(20, 0))
			return service.New(
				service.WithClock(clock),
				service.WithLocation(time.UTC),
				service.WithStoreSettings(settings),
				service.WithRedisBroadcast(nil, ""),
			)
		}
		a, b := newSvc(), newSvc()
		So(a.Start(ctx), ShouldBeNil)
		So(b.Start(ctx), ShouldBeNil)
		defer func() { So(b.Stop(ctx), ShouldBeNil) }()
		defer func() { So(a.Stop(ctx), ShouldBeNil) }()

		probe := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer probe.Close()
		So(eventually(func() bool {
			n, err := probe.PubSubNumSub(ctx, "workpulse:notifications").Result()
			return err == nil && n["workpulse:notifications"] == 2
		}), ShouldBeTrue)

		Convey("When an observer on B listens and A force-starts and counts a click", func() {
			o, err := b.ConnectObserver(ctx, "")
			So(err, ShouldBeNil)
			_, err = a.ForceStart(ctx)
			So(err, ShouldBeNil)
			So(a.Click(ctx, types.ClickDetected{}).Accepted, ShouldBeTrue)

			Convey("Then B's observer should get the new stats but not A's session start", func() {
				select {
				case n := <-o.Events():
					So(n.Action, ShouldEqual, types.ActionStatsUpdated)
					So(n.Stats.DailyStats[model.DateKey(at(20, 0))].Clicks, ShouldEqual, 1)
				case <-time.After(2 * time.Second):
					t.Fatal("notification was not relayed")
				}
				st, err := b.TrackingStatus(ctx)
				So(err, ShouldBeNil)
				So(st.IsTracking, ShouldBeFalse)
				So(a.GetStats()["redisRelay"], ShouldEqual, true)
			})
		})
	})
}
