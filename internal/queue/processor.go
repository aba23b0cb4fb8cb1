package queue

import (
	"context"

	"shopflow/internal/model"
)

// Processor is one independently registered unit of logic that must run for
// a work type. Process reports failure through its error return; a failing
// processor never affects its siblings. Name is the tracking-row identity
// and must be unique among processors sharing a work type.
type Processor interface {
	Process(ctx context.Context, item *model.QueueItem) error
	WorkType() string
	Name() string
}
