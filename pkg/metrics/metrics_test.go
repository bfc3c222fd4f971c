package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating a manager with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithMetricPrefix("pre"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(false),
				WithRefreshInterval(5*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options should be applied", func() {
				So(manager.namespace, ShouldEqual, "test_namespace")
				So(manager.subsystem, ShouldEqual, "test_subsystem")
				So(manager.enabled, ShouldBeFalse)
				So(manager.refreshInterval, ShouldEqual, 5*time.Second)
				So(manager.customLabels["env"], ShouldEqual, "test")
			})

			Convey("Then metric names should carry the prefix", func() {
				manager.eventsDuplicate.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				found := false
				for _, f := range families {
					if f.GetName() == "test_namespace_test_subsystem_pre_events_duplicate_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When options receive empty values", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithRefreshInterval(0),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults should be kept", func() {
				So(manager.namespace, ShouldEqual, "workpulse")
				So(manager.subsystem, ShouldEqual, "coordinator")
				So(manager.refreshInterval, ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording ingestion metrics", func() {
			before := testutil.ToFloat64(globalManager.eventsAccepted.WithLabelValues("click"))
			RecordEventAccepted("click")
			RecordEventAccepted("click")
			RecordEventSuppressed("not tracking")
			RecordEventDuplicate()

			Convey("Then the counters should move", func() {
				So(testutil.ToFloat64(globalManager.eventsAccepted.WithLabelValues("click")), ShouldEqual, before+2)
				So(testutil.ToFloat64(globalManager.eventsSuppressed.WithLabelValues("not tracking")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When recording tracking transitions", func() {
			RecordTrackingTransition("start", "tick")

			Convey("Then the active gauge should follow the direction", func() {
				So(testutil.ToFloat64(globalManager.trackingActive), ShouldEqual, 1)
				RecordTrackingTransition("stop", "tick")
				So(testutil.ToFloat64(globalManager.trackingActive), ShouldEqual, 0)
				UpdateTrackingActive(true)
				So(testutil.ToFloat64(globalManager.trackingActive), ShouldEqual, 1)
				UpdateTrackingActive(false)
			})
		})

		Convey("When recording work minutes", func() {
			before := testutil.ToFloat64(globalManager.workMinutesAdded)
			RecordWorkMinutes(175)
			RecordWorkMinutes(0)
			RecordWorkMinutes(-3)

			Convey("Then only positive amounts should be added", func() {
				So(testutil.ToFloat64(globalManager.workMinutesAdded), ShouldEqual, before+175)
			})
		})

		Convey("When recording operational metrics", func() {
			So(func() {
				UpdateQueueSize(10)
				UpdateQueueCapacity(1000)
				RecordQueueEnqueueError()
				UpdateWorkerCount(1)
				RecordWorkerProcessingLatency(0.4)
				RecordWorkerError()
				RecordStoreError("record_click")
				RecordStoreLatency("record_click", 1.5)
				RecordCleanupRemovals(3)
				RecordBroadcastDelivery("statsUpdated", "delivered")
				UpdateObserversConnected(2)
				RecordSchedulerTick("evaluate")
				RecordHTTPRequest("/v1/clicks", "POST", "200")
				RecordHTTPRequestDuration("/v1/clicks", "POST", "200", 3)
				RecordErrorByEndpoint("/v1/schedule", "PUT", "invalid_schedule")
				UpdateSystemMetrics()
			}, ShouldNotPanic)

			Convey("Then gauges should hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 1000)
				So(testutil.ToFloat64(globalManager.observersConnected), ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.systemGoroutineCount), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When reading the registry", func() {
			Convey("Then it should be the custom one", func() {
				So(GetRegistry(), ShouldEqual, customRegistry)
				So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}
