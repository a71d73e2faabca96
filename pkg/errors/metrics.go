package errors

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Error count metrics by module, code, and category
	errorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signatory_errors_total",
			Help: "Total number of errors by module, code, and category",
		},
		[]string{"module", "code", "category", "severity"},
	)

	// Panic recovery metrics
	panicCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signatory_panics_recovered_total",
			Help: "Total number of panics recovered by context",
		},
		[]string{"context"},
	)
)

// RecordError records an error occurrence in metrics.
// Non-coded errors are recorded under the internal category.
func RecordError(err error) {
	if err == nil {
		return
	}

	var coded *CodedError
	if As(err, &coded) {
		errorCount.WithLabelValues(
			coded.Module,
			fmt.Sprintf("%d", coded.Code),
			string(coded.Category),
			string(coded.Severity),
		).Inc()
		return
	}

	errorCount.WithLabelValues("", "0", string(CategoryInternal), string(SeverityError)).Inc()
}

// RecordPanic records a recovered panic in metrics.
func RecordPanic(context string) {
	panicCount.WithLabelValues(context).Inc()
}
