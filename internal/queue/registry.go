package queue

import (
	"errors"
	"fmt"
)

var (
	ErrWorkTypeNotRegistered = errors.New("work type not registered")
	ErrProcessorNotFound     = errors.New("processor not found")
)

// Registry maps a work type to the ordered set of processors that must run
// for it. All registration happens at process startup, before any enqueue
// or dispatch; the registry is read-only afterwards.
type Registry struct {
	processors map[string][]Processor
	workTypes  []string
}

func NewRegistry() *Registry {
	return &Registry{processors: make(map[string][]Processor)}
}

// Register appends p to the processor list for its declared work type.
// Multiple processors may share a work type; dispatch runs them in
// registration order.
func (r *Registry) Register(p Processor) {
	workType := p.WorkType()
	if _, ok := r.processors[workType]; !ok {
		r.workTypes = append(r.workTypes, workType)
	}
	r.processors[workType] = append(r.processors[workType], p)
}

func (r *Registry) Processors(workType string) ([]Processor, error) {
	processors, ok := r.processors[workType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkTypeNotRegistered, workType)
	}
	return processors, nil
}

func (r *Registry) ProcessorByName(name string) (Processor, error) {
	for _, workType := range r.workTypes {
		for _, p := range r.processors[workType] {
			if p.Name() == name {
				return p, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProcessorNotFound, name)
}

func (r *Registry) Has(workType string) bool {
	_, ok := r.processors[workType]
	return ok
}

func (r *Registry) WorkTypes() []string {
	out := make([]string, len(r.workTypes))
	copy(out, r.workTypes)
	return out
}

func (r *Registry) ProcessorNames(workType string) ([]string, error) {
	processors, err := r.Processors(workType)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(processors))
	for _, p := range processors {
		names = append(names, p.Name())
	}
	return names, nil
}
