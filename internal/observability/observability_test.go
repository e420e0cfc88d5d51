package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsForTesting(t *testing.T) {
	m := NewMetricsForTesting()
	m.StationsProcessed.WithLabelValues("Fish").Add(3)
	m.StationsSkipped.WithLabelValues("Fish", "no_coordinates").Inc()

	assert.InDelta(t, 3, testutil.ToFloat64(m.StationsProcessed.WithLabelValues("Fish")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.StationsSkipped.WithLabelValues("Fish", "no_coordinates")), 0)

	// A second instance must not collide.
	assert.NotPanics(t, func() { NewMetricsForTesting() })
}
