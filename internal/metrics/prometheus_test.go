package metrics

import (
	"testing"
)

func TestPrometheusObserver(t *testing.T) {
	obs := NewPrometheusObserver()

	// Just call methods to ensure no panic
	obs.RecordProcessorSuccess()
	obs.RecordProcessorFailure()
	obs.RecordItemsClaimed(3)
	obs.ObserveBatchDuration(0.25)
	obs.UpdateQueueDepth("pending", 12)
}
