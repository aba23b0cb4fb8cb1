package queue

import (
	"context"
	"errors"
	"strings"
	"testing"

	"shopflow/internal/model"
)

func newTestDispatcher(registry *Registry, notifier *recordingNotifier) (*Dispatcher, *Service, *fakeItemRepo, *fakeTrackingRepo) {
	svc, items, tracking := newTestService(registry)
	d := NewDispatcher(svc, registry, notifier, nil, 0, 100)
	return d, svc, items, tracking
}

func TestDispatchAllProcessorsSucceed(t *testing.T) {
	a := &stubProcessor{name: "announce", workType: "NEW_ITEM"}
	b := &stubProcessor{name: "price-refresh", workType: "NEW_ITEM"}
	registry := newRegistryWith(a, b)
	notifier := &recordingNotifier{}
	d, svc, items, tracking := newTestDispatcher(registry, notifier)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, 42, "NEW_ITEM"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	sum, err := d.RunOnce(ctx, Options{Limit: 10})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if sum.ItemsClaimed != 1 || sum.Succeeded != 2 || sum.Failed != 0 {
		t.Errorf("summary = %+v, want 1 item, 2 succeeded, 0 failed", sum)
	}
	if items.count() != 0 {
		t.Errorf("item count = %d, want 0 after full completion", items.count())
	}
	if tracking.count() != 0 {
		t.Errorf("tracking row count = %d, want 0", tracking.count())
	}
	if len(a.seen) != 1 || len(b.seen) != 1 {
		t.Errorf("processor invocations = %d/%d, want 1/1", len(a.seen), len(b.seen))
	}
	if notifier.count() != 0 {
		t.Errorf("notifications = %d, want 0", notifier.count())
	}
}

func TestDispatchPartialFailureKeepsItem(t *testing.T) {
	a := &stubProcessor{name: "announce", workType: "NEW_ITEM", err: errors.New("webhook down")}
	b := &stubProcessor{name: "price-refresh", workType: "NEW_ITEM"}
	registry := newRegistryWith(a, b)
	notifier := &recordingNotifier{}
	d, svc, items, tracking := newTestDispatcher(registry, notifier)
	ctx := context.Background()

	item, err := svc.Enqueue(ctx, 42, "NEW_ITEM")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	sum, err := d.RunOnce(ctx, Options{Limit: 10})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if sum.ItemsClaimed != 1 || sum.Succeeded != 1 || sum.Failed != 1 {
		t.Errorf("summary = %+v, want 1 item, 1 succeeded, 1 failed", sum)
	}

	got := items.get(item.ID)
	if got == nil {
		t.Fatal("item deleted despite a failed processor")
	}
	if got.Status != model.StatusProcessing {
		t.Errorf("item status = %d, want processing", got.Status)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
	if s := tracking.statusFor(item.ID, "announce"); s != model.StatusFailed {
		t.Errorf("announce row status = %d, want failed", s)
	}
	if s := tracking.statusFor(item.ID, "price-refresh"); s != model.StatusCompleted {
		t.Errorf("price-refresh row status = %d, want completed", s)
	}
	if notifier.count() != 1 {
		t.Fatalf("notifications = %d, want 1", notifier.count())
	}
	if !strings.Contains(notifier.messages[0], "announce") || !strings.Contains(notifier.messages[0], "webhook down") {
		t.Errorf("notification = %q, want processor name and error", notifier.messages[0])
	}
}

func TestDispatchFailureDoesNotBlockNextItem(t *testing.T) {
	p := &stubProcessor{name: "announce", workType: "NEW_ITEM"}
	registry := newRegistryWith(p)
	notifier := &recordingNotifier{}
	d, svc, items, _ := newTestDispatcher(registry, notifier)
	ctx := context.Background()

	first, err := svc.Enqueue(ctx, 1, "NEW_ITEM")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := svc.Enqueue(ctx, 2, "NEW_ITEM"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// The stub fails every call; the point is that a failing first item
	// still lets the second item be attempted.
	p.err = errors.New("flaky")
	sum, err := d.RunOnce(ctx, Options{Limit: 10})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if sum.ItemsClaimed != 2 || sum.Failed != 2 {
		t.Errorf("summary = %+v, want 2 items claimed, 2 failed", sum)
	}
	if len(p.seen) != 2 {
		t.Fatalf("processor saw %d items, want 2", len(p.seen))
	}
	if p.seen[0] != first.ID {
		t.Errorf("first dispatched item = %d, want %d (FIFO)", p.seen[0], first.ID)
	}
	if items.count() != 2 {
		t.Errorf("item count = %d, both failed items must remain", items.count())
	}
}

func TestDispatchFIFOOrder(t *testing.T) {
	p := &stubProcessor{name: "announce", workType: "NEW_ITEM"}
	registry := newRegistryWith(p)
	d, svc, _, _ := newTestDispatcher(registry, &recordingNotifier{})
	ctx := context.Background()

	var ids []int64
	for subject := uint64(1); subject <= 25; subject++ {
		item, err := svc.Enqueue(ctx, subject, "NEW_ITEM")
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		ids = append(ids, item.ID)
	}

	sum, err := d.RunOnce(ctx, Options{Limit: 25})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if sum.ItemsClaimed != 25 {
		t.Fatalf("claimed = %d, want 25", sum.ItemsClaimed)
	}
	if len(p.seen) != 25 {
		t.Fatalf("processor saw %d items, want 25", len(p.seen))
	}
	for i, id := range ids {
		if p.seen[i] != id {
			t.Fatalf("dispatch order broken at position %d: got %d, want %d", i, p.seen[i], id)
		}
	}
}

func TestDispatchRespectsLimit(t *testing.T) {
	p := &stubProcessor{name: "announce", workType: "NEW_ITEM"}
	registry := newRegistryWith(p)
	d, svc, items, _ := newTestDispatcher(registry, &recordingNotifier{})
	ctx := context.Background()

	for subject := uint64(1); subject <= 5; subject++ {
		if _, err := svc.Enqueue(ctx, subject, "NEW_ITEM"); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	sum, err := d.RunOnce(ctx, Options{Limit: 3})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if sum.ItemsClaimed != 3 {
		t.Errorf("claimed = %d, want 3", sum.ItemsClaimed)
	}
	if items.count() != 2 {
		t.Errorf("remaining items = %d, want 2", items.count())
	}
}

func TestDispatchEmptyQueue(t *testing.T) {
	registry := newRegistryWith(&stubProcessor{name: "announce", workType: "NEW_ITEM"})
	notifier := &recordingNotifier{}
	d, _, _, _ := newTestDispatcher(registry, notifier)

	sum, err := d.RunOnce(context.Background(), Options{Limit: 10})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if sum.ItemsClaimed != 0 || sum.Succeeded != 0 || sum.Failed != 0 {
		t.Errorf("summary = %+v, want all zero", sum)
	}
	if notifier.count() != 0 {
		t.Errorf("notifications = %d, want 0", notifier.count())
	}
}

func TestDispatchUnregisteredWorkTypeFailsItem(t *testing.T) {
	good := &stubProcessor{name: "announce", workType: "NEW_ITEM"}
	registry := newRegistryWith(good)
	notifier := &recordingNotifier{}
	d, svc, items, _ := newTestDispatcher(registry, notifier)
	ctx := context.Background()

	// Orphan enqueued before any processor registered for its type.
	orphan, err := svc.Enqueue(ctx, 1, "LEGACY_TYPE")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := svc.Enqueue(ctx, 2, "NEW_ITEM"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	sum, err := d.RunOnce(ctx, Options{Limit: 10})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	got := items.get(orphan.ID)
	if got == nil || got.Status != model.StatusFailed {
		t.Fatalf("orphan item not marked failed: %+v", got)
	}
	if got.ErrorMessage == "" {
		t.Error("orphan item has no error message")
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}
	// The registered item behind it still ran to completion.
	if sum.Succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", sum.Succeeded)
	}
	if len(good.seen) != 1 {
		t.Errorf("announce saw %d items, want 1", len(good.seen))
	}
}

func TestDispatchWorkTypeFilter(t *testing.T) {
	a := &stubProcessor{name: "announce", workType: "NEW_ITEM"}
	b := &stubProcessor{name: "price-refresh", workType: "PRICE_CHANGE"}
	registry := newRegistryWith(a, b)
	d, svc, items, _ := newTestDispatcher(registry, &recordingNotifier{})
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, 1, "NEW_ITEM"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := svc.Enqueue(ctx, 2, "PRICE_CHANGE"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	sum, err := d.RunOnce(ctx, Options{Limit: 10, WorkType: "PRICE_CHANGE"})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if sum.ItemsClaimed != 1 {
		t.Errorf("claimed = %d, want 1", sum.ItemsClaimed)
	}
	if len(a.seen) != 0 || len(b.seen) != 1 {
		t.Errorf("invocations = %d/%d, want 0/1", len(a.seen), len(b.seen))
	}
	if items.count() != 1 {
		t.Errorf("remaining items = %d, want the filtered-out one", items.count())
	}
}

func TestDispatchNotifierErrorSwallowed(t *testing.T) {
	p := &stubProcessor{name: "announce", workType: "NEW_ITEM", err: errors.New("boom")}
	registry := newRegistryWith(p)
	notifier := &recordingNotifier{err: errors.New("sink offline")}
	d, svc, _, _ := newTestDispatcher(registry, notifier)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, 1, "NEW_ITEM"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	sum, err := d.RunOnce(ctx, Options{Limit: 10})
	if err != nil {
		t.Fatalf("RunOnce must not surface notifier errors: %v", err)
	}
	if sum.Failed != 1 {
		t.Errorf("failed = %d, want 1", sum.Failed)
	}
	if notifier.count() != 1 {
		t.Errorf("notifications attempted = %d, want 1", notifier.count())
	}
}

func TestDispatchSecondEnqueueAfterRetire(t *testing.T) {
	p := &stubProcessor{name: "announce", workType: "NEW_ITEM"}
	registry := newRegistryWith(p)
	d, svc, items, _ := newTestDispatcher(registry, &recordingNotifier{})
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, 42, "NEW_ITEM"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := d.RunOnce(ctx, Options{Limit: 10}); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if items.count() != 0 {
		t.Fatalf("item not retired")
	}

	// The subject is no longer live, so a fresh enqueue goes through.
	item, err := svc.Enqueue(ctx, 42, "NEW_ITEM")
	if err != nil {
		t.Fatalf("re-Enqueue: %v", err)
	}
	if item == nil {
		t.Fatal("re-Enqueue after retire returned nil")
	}
}
