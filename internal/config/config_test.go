package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/workpulse/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.TickInterval, convey.ShouldEqual, time.Minute)
			convey.So(cfg.CleanupInterval, convey.ShouldEqual, 7*24*time.Hour)
			convey.So(cfg.RetentionDays, convey.ShouldEqual, 30)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 1)
			convey.So(cfg.StoreBackend, convey.ShouldEqual, "sqlite")
			convey.So(cfg.Validate(context.Background()), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given configs with a single bad value", t, func() {
		cases := map[string]func(c *config.Config){
			"empty addr":       func(c *config.Config) { c.Addr = "" },
			"zero tick":        func(c *config.Config) { c.TickInterval = 0 },
			"negative cleanup": func(c *config.Config) { c.CleanupInterval = -time.Hour },
			"zero retention":   func(c *config.Config) { c.RetentionDays = 0 },
			"unknown backend":  func(c *config.Config) { c.StoreBackend = "etcd" },
			"unknown timezone": func(c *config.Config) { c.Timezone = "Mars/Olympus" },
			"half a schedule":  func(c *config.Config) { c.Schedule.StartWork = "09:00" },
			"malformed clock": func(c *config.Config) {
				c.Schedule = config.ScheduleConfig{StartWork: "9", LunchStart: "12:00", LunchEnd: "13:00", EndWork: "18:00"}
			},
		}

		for name, mutate := range cases {
			convey.Convey("When the config has "+name, func() {
				cfg := config.New()
				mutate(cfg)

				convey.Convey("Then validation should fail", func() {
					convey.So(errors.Is(cfg.Validate(ctx), config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}
	})

	convey.Convey("Given a full seed schedule", t, func() {
		cfg := config.New()
		cfg.Schedule = config.ScheduleConfig{
			StartWork: "09:00", LunchStart: "12:00", LunchEnd: "13:00", EndWork: "18:00",
		}

		convey.Convey("Then it should parse into minutes", func() {
			s, err := cfg.SeedSchedule()
			convey.So(err, convey.ShouldBeNil)
			convey.So(s.StartWork, convey.ShouldEqual, 540)
			convey.So(s.EndWork, convey.ShouldEqual, 1080)
		})
	})

	convey.Convey("Given no seed schedule", t, func() {
		s, err := config.New().SeedSchedule()

		convey.Convey("Then nothing should be seeded", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(s, convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a named timezone", t, func() {
		cfg := config.New()
		cfg.Timezone = "UTC"

		convey.Convey("Then it should resolve", func() {
			loc, err := cfg.Location()
			convey.So(err, convey.ShouldBeNil)
			convey.So(loc, convey.ShouldEqual, time.UTC)
		})
	})
}
