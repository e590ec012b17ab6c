package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRedisCollector(t *testing.T) {
	t.Run("creates collector", func(t *testing.T) {
		collector := NewRedisCollector(nil)
		assert.NotNil(t, collector)
	})
}

func TestMetrics_Struct(t *testing.T) {
	t.Run("carries counts per concern", func(t *testing.T) {
		m := Metrics{
			EventCounts: map[string]int64{
				"received":  10,
				"processed": 42,
			},
			ExecutionCounts: map[string]int64{
				"pending":  3,
				"retrying": 1,
			},
			DeliveryCounts: map[string]int64{
				"delivered": 7,
			},
			QueueDepth:    4,
			OpenBreakers:  1,
			ActiveWorkers: 2,
		}

		assert.Equal(t, int64(42), m.EventCounts["processed"])
		assert.Equal(t, int64(1), m.ExecutionCounts["retrying"])
		assert.Equal(t, int64(7), m.DeliveryCounts["delivered"])
		assert.Equal(t, int64(4), m.QueueDepth)
		assert.Equal(t, int64(1), m.OpenBreakers)
		assert.Equal(t, int64(2), m.ActiveWorkers)
	})
}
