package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithRefreshInterval(5*time.Second),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.RefreshInterval(), ShouldEqual, 5*time.Second)
			})
		})

		Convey("When options carry zero values", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithRefreshInterval(0),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults should be preserved", func() {
				So(manager, ShouldNotBeNil)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestRecordingHelpers(t *testing.T) {
	Convey("Given the package-level recording helpers", t, func() {
		Convey("When recording ingest metrics", func() {
			So(func() {
				RecordBatchIngested()
				RecordBatchDuplicate()
				RecordBatchRejected()
				RecordFrameMalformed()
			}, ShouldNotPanic)
		})

		Convey("When recording engine metrics", func() {
			So(func() {
				RecordFrameProcessed()
				RecordObservations(3)
				RecordRiskResult("low")
				RecordRiskResult("critical")
				RecordRiskScore(42.5)
				RecordBehaviorEvent("pacing")
				RecordBehaviorEvent("loitering")
				RecordCycleLatency(1.5)
				UpdateSubjectsTracked(12)
				RecordSubjectEvicted(2)
				UpdateFeedTrust("cam-01", 88.3)
				UpdateSuspiciousFeeds(1)
				RecordSuspiciousTransition()
				RecordStreamReset()
			}, ShouldNotPanic)
		})

		Convey("When recording queue and worker metrics", func() {
			So(func() {
				UpdateQueueDepth(100)
				UpdateQueueCapacity(4096)
				UpdateQueueUtilization(0.024)
				UpdateQueueShardDepth("0", 25)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueRejection()
				UpdateWorkerActiveCount(4)
				RecordWorkerProcessingLatency(3.2)
				RecordWorkerError()
			}, ShouldNotPanic)
		})

		Convey("When recording board, HTTP and WebSocket metrics", func() {
			So(func() {
				UpdateBoardSubjects(7)
				RecordBoardUpdateLatency(0.2)
				RecordBoardQueryLatency(0.1)
				RecordHTTPRequest("/v1/observations", "POST", "202")
				RecordHTTPRequestDuration("/v1/risks", "GET", "200", 4.0)
				UpdateWSClients(2)
				RecordWSMessageSent()
				RecordWSMessageDropped()
				RecordErrorByComponent("fusion", "malformed_frame")
			}, ShouldNotPanic)
		})

		Convey("When recording system metrics", func() {
			So(func() {
				UpdateSystemMemoryUsage(64 << 20)
				UpdateSystemGoroutineCount(42)
				RecordSystemGCPauseTime(0.8)
			}, ShouldNotPanic)
		})

		Convey("When recording edge values", func() {
			So(func() {
				UpdateSubjectsTracked(0)
				UpdateQueueDepth(0)
				RecordRiskScore(0)
				RecordRiskScore(100)
				RecordObservations(0)
				UpdateFeedTrust("", 0)
				RecordHTTPRequest("", "", "500")
			}, ShouldNotPanic)
		})
	})
}

func TestRecordingConcurrency(t *testing.T) {
	Convey("Given concurrent recorders", t, func() {
		done := make(chan bool, 8)

		for i := 0; i < 8; i++ {
			go func() {
				for j := 0; j < 100; j++ {
					RecordFrameProcessed()
					RecordRiskScore(float64(j))
					UpdateQueueDepth(j)
					RecordHTTPRequest("/v1/risks", "GET", "200")
				}
				done <- true
			}()
		}

		for i := 0; i < 8; i++ {
			<-done
		}

		Convey("Then concurrent access should not panic", func() {
			So(true, ShouldBeTrue)
		})
	})
}
