package metrics

// DispatchObserver receives dispatch loop measurements.
type DispatchObserver interface {
	RecordProcessorSuccess()
	RecordProcessorFailure()
	RecordItemsClaimed(n int)
	ObserveBatchDuration(seconds float64)
	UpdateQueueDepth(status string, depth int64)
}

// NoopObserver discards all measurements. Used by the one-shot CLI and in
// tests.
type NoopObserver struct{}

func (NoopObserver) RecordProcessorSuccess()        {}
func (NoopObserver) RecordProcessorFailure()        {}
func (NoopObserver) RecordItemsClaimed(int)         {}
func (NoopObserver) ObserveBatchDuration(float64)   {}
func (NoopObserver) UpdateQueueDepth(string, int64) {}
