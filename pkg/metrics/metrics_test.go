package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			constLabelsOpt := WithConstLabels(map[string]string{"mode": "training"})

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
				So(constLabelsOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"mode": "prediction"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metrics are registered under the custom names", func() {
				So(manager, ShouldNotBeNil)
				manager.rowsAssembled.Add(3)
				count, err := testutil.GatherAndCount(registry, "test_namespace_test_subsystem_rows_assembled_total")
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 1)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording pipeline metrics", func() {
			before := testutil.ToFloat64(globalManager.rowsAssembled)
			RecordRaceAssembled(20)
			RecordRaceAssembled(18)

			Convey("Then the row counter accumulates", func() {
				So(testutil.ToFloat64(globalManager.rowsAssembled)-before, ShouldEqual, 38)
			})
		})

		Convey("When recording sentinel and data-quality notes", func() {
			before := testutil.ToFloat64(globalManager.sentinels.WithLabelValues("MATE LAST POSITION"))
			RecordSentinel("MATE LAST POSITION")
			RecordDataQuality("teammate_ambiguous")
			RecordRowDropped("duplicate_qualifying")
			RecordRowsDropped("unparsable_key", 3)

			Convey("Then the labelled counters move", func() {
				after := testutil.ToFloat64(globalManager.sentinels.WithLabelValues("MATE LAST POSITION"))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When recording weather and worker metrics", func() {
			So(func() {
				RecordWeatherFetch("ok")
				RecordWeatherFetch("budget_exhausted")
				RecordWeatherCacheHit()
				RecordWeatherFetchLatency(120)
				UpdateWorkerCount(8)
				RecordWorkerProcessingLatency(4)
				RecordWorkerError()
				RecordErrorByComponent("source", "schema")
				RecordIndexBuild(12)
				UpdateRunDuration(1500)
			}, ShouldNotPanic)
		})
	})
}

func TestWriteTextfile(t *testing.T) {
	Convey("Given a textfile destination", t, func() {
		path := filepath.Join(t.TempDir(), "pitwall.prom")
		RecordRaceAssembled(1)

		Convey("When writing the registry", func() {
			err := WriteTextfile(path)

			Convey("Then the exposition contains pipeline metrics", func() {
				So(err, ShouldBeNil)
				data, readErr := os.ReadFile(path)
				So(readErr, ShouldBeNil)
				So(strings.Contains(string(data), "pitwall_features_rows_assembled_total"), ShouldBeTrue)
			})
		})

		Convey("When the directory does not exist", func() {
			err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))

			Convey("Then an export error is returned", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
