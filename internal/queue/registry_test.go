package queue

import (
	"errors"
	"testing"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	a := &stubProcessor{name: "a", workType: "NEW_ITEM"}
	b := &stubProcessor{name: "b", workType: "NEW_ITEM"}
	c := &stubProcessor{name: "c", workType: "PRICE_CHANGE"}
	r.Register(a)
	r.Register(b)
	r.Register(c)

	processors, err := r.Processors("NEW_ITEM")
	if err != nil {
		t.Fatalf("Processors: %v", err)
	}
	if len(processors) != 2 || processors[0].Name() != "a" || processors[1].Name() != "b" {
		t.Fatalf("expected [a b] in registration order, got %d processors", len(processors))
	}

	if !r.Has("PRICE_CHANGE") {
		t.Error("Has(PRICE_CHANGE) = false")
	}
	if r.Has("UNKNOWN") {
		t.Error("Has(UNKNOWN) = true")
	}

	workTypes := r.WorkTypes()
	if len(workTypes) != 2 || workTypes[0] != "NEW_ITEM" || workTypes[1] != "PRICE_CHANGE" {
		t.Errorf("WorkTypes = %v", workTypes)
	}

	names, err := r.ProcessorNames("NEW_ITEM")
	if err != nil {
		t.Fatalf("ProcessorNames: %v", err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("ProcessorNames = %v", names)
	}
}

func TestRegistryUnknownWorkType(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Processors("NOPE"); !errors.Is(err, ErrWorkTypeNotRegistered) {
		t.Errorf("Processors(NOPE) err = %v, want ErrWorkTypeNotRegistered", err)
	}
	if _, err := r.ProcessorNames("NOPE"); !errors.Is(err, ErrWorkTypeNotRegistered) {
		t.Errorf("ProcessorNames(NOPE) err = %v, want ErrWorkTypeNotRegistered", err)
	}
}

func TestRegistryProcessorByName(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProcessor{name: "announce", workType: "NEW_ITEM"})

	p, err := r.ProcessorByName("announce")
	if err != nil {
		t.Fatalf("ProcessorByName: %v", err)
	}
	if p.Name() != "announce" {
		t.Errorf("Name = %q", p.Name())
	}

	if _, err := r.ProcessorByName("ghost"); !errors.Is(err, ErrProcessorNotFound) {
		t.Errorf("ProcessorByName(ghost) err = %v, want ErrProcessorNotFound", err)
	}
}
