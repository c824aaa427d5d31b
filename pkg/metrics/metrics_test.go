package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should use the service namespace", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "tastebud")
				So(manager.subsystem, ShouldEqual, "matcher")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options should be applied", func() {
				So(manager.namespace, ShouldEqual, "test_namespace")
				So(manager.subsystem, ShouldEqual, "test_subsystem")
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
			})

			Convey("Then empty options should keep defaults", func() {
				m := NewManager(WithNamespace(""), WithHistogramBuckets(nil), WithPrometheusRegistry(prometheus.NewRegistry()))
				So(m.namespace, ShouldEqual, "tastebud")
				So(m.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics", t, func() {
		Convey("When recording resolutions by tier", func() {
			before := testutil.ToFloat64(globalManager.resolutions.WithLabelValues("exact"))
			RecordResolution("exact")
			RecordResolution("exact")

			Convey("Then the tier counter should grow", func() {
				So(testutil.ToFloat64(globalManager.resolutions.WithLabelValues("exact")), ShouldEqual, before+2)
			})
		})

		Convey("When recording cache activity", func() {
			hits := testutil.ToFloat64(globalManager.cacheHits)
			RecordCacheHit()
			RecordCacheMiss()
			RecordCacheEviction()
			UpdateCacheSize(42)

			Convey("Then hits and size should be visible", func() {
				So(testutil.ToFloat64(globalManager.cacheHits), ShouldEqual, hits+1)
				So(testutil.ToFloat64(globalManager.cacheSize), ShouldEqual, 42)
			})
		})

		Convey("When recording aggregation and matching", func() {
			So(func() {
				RecordAggregationLatency(12.5)
				RecordCoverageRatio(0.8)
				RecordEmbeddingGenerated()
				RecordEmbeddingDegenerate()
				RecordStageTransition("fetching")
				UpdateInFlightRegenerations(3)
				RecordMatchQuery("ok")
				RecordMatchLatency(4)
				RecordIndexLatency("query", 2)
				RecordDependencyError("vector_index", "timeout")
				UpdateBreakerState("vector_index", BreakerOpen)
				UpdateProfileCount("synthetic", 100)
				RecordGhostCreated("niche")
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.breakerState.WithLabelValues("vector_index")), ShouldEqual, BreakerOpen)
		})

		Convey("When recording HTTP, queue, worker and system metrics", func() {
			So(func() {
				RecordHTTPRequest("matches", "GET", "200")
				RecordHTTPRequestDuration("matches", "GET", "200", 5.0)
				UpdateQueueSize(10)
				UpdateQueueCapacity(100)
				UpdateQueueUtilization(0.1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(1)
				UpdateWorkerCount(4)
				UpdateWorkerActiveCount(2)
				RecordWorkerProcessingLatency(30)
				RecordWorkerError()
				RecordErrorByComponent("lastfm", "timeout")
				RecordErrorByType("server_error", "high")
				RecordErrorByEndpoint("matches", "GET", "server_error")
				RecordErrorLatency("http", "server_error", 10)
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
		})

		Convey("When reading the registry", func() {
			So(GetRegistry(), ShouldNotBeNil)
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})
}
