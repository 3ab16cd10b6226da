package observability

import (
	"os"
	"testing"

	"github.com/iort-labs/qtrust/observability"
	testlogr "github.com/iort-labs/qtrust/testutils/logger"
)

/*
NOPObservability creates observability implementation where everything is no-op.
Use it for tests for which it absolutely doesn't make sense to create any logs, traces or metrics.
*/
func NOPObservability() *observability.Observability {
	return observability.NOP()
}

/*
Default creates observability with test logger and no-op metrics and traces.
The QT_TEST_METRICS and QT_TEST_TRACER environment variables may be used to
select exporters.
*/
func Default(t testing.TB) *observability.Observability {
	o, err := observability.New(os.Getenv("QT_TEST_METRICS"), os.Getenv("QT_TEST_TRACER"), testlogr.New(t))
	if err != nil {
		t.Fatalf("creating observability: %v", err)
	}
	t.Cleanup(func() {
		if err := o.Shutdown(); err != nil {
			t.Logf("shutting down observability: %v", err)
		}
	})
	return o
}
