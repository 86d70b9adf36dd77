package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()
	var m dto.Metric
	if err := ImportDuration.Write(&m); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestRecordImportUpdatesCountersAndHistogram(t *testing.T) {
	rowsBefore := testutil.ToFloat64(RowsImported)
	errorsBefore := testutil.ToFloat64(ImportErrors)
	samplesBefore := histogramSampleCount(t)

	RecordImport(42, 3, 1.5)

	if got := histogramSampleCount(t); got != samplesBefore+1 {
		t.Errorf("ImportDuration sample count = %d, want %d", got, samplesBefore+1)
	}

	if got := testutil.ToFloat64(RowsImported); got != rowsBefore+42 {
		t.Errorf("RowsImported = %v, want %v", got, rowsBefore+42)
	}
	if got := testutil.ToFloat64(ImportErrors); got != errorsBefore+3 {
		t.Errorf("ImportErrors = %v, want %v", got, errorsBefore+3)
	}
}

func TestRecordQueryIncrementsByKind(t *testing.T) {
	before := testutil.ToFloat64(QueriesServed.WithLabelValues("grouped"))
	RecordQuery("grouped")
	if got := testutil.ToFloat64(QueriesServed.WithLabelValues("grouped")); got != before+1 {
		t.Errorf("QueriesServed[grouped] = %v, want %v", got, before+1)
	}
}
