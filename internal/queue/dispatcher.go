package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopflow/internal/metrics"
	"shopflow/internal/model"
	"shopflow/internal/notify"
	"shopflow/pkg/logger"

	"go.uber.org/zap"
)

// fetchPageSize bounds how many pending rows are held in memory at once.
// Claimed items leave the pending query, so each page picks up where the
// previous one stopped.
const fetchPageSize = 10

// Dispatcher drains pending queue items and drives each through every
// processor registered for its work type. One invocation is strictly
// sequential; throughput comes from frequent short runs, not parallelism.
type Dispatcher struct {
	svc      *Service
	registry *Registry
	notifier notify.Notifier
	observer metrics.DispatchObserver
	interval time.Duration
	limit    int
}

type Options struct {
	Limit    int
	WorkType string
	Verbose  bool
}

// Summary counts processor invocations, not items: one item may partially
// succeed.
type Summary struct {
	ItemsClaimed int
	Succeeded    int
	Failed       int
}

func NewDispatcher(svc *Service, registry *Registry, notifier notify.Notifier, observer metrics.DispatchObserver, interval time.Duration, limit int) *Dispatcher {
	if observer == nil {
		observer = metrics.NoopObserver{}
	}
	return &Dispatcher{
		svc:      svc,
		registry: registry,
		notifier: notifier,
		observer: observer,
		interval: interval,
		limit:    limit,
	}
}

// Run wraps RunOnce in a ticker loop for server mode.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	logger.Info("queue dispatcher started",
		zap.Duration("interval", d.interval),
		zap.Int("limit", d.limit))

	for {
		select {
		case <-ctx.Done():
			logger.Info("queue dispatcher stopped")
			return
		case <-ticker.C:
			if _, err := d.RunOnce(ctx, Options{Limit: d.limit}); err != nil {
				logger.Error("dispatch run failed", zap.Error(err))
			}
		}
	}
}

// RunOnce claims up to opts.Limit pending items FIFO and dispatches them.
// An empty queue is a silent success. Processor failures are isolated per
// tracking row; only infrastructure errors abort the run.
func (d *Dispatcher) RunOnce(ctx context.Context, opts Options) (Summary, error) {
	var sum Summary
	limit := opts.Limit
	if limit <= 0 {
		limit = d.limit
	}

	start := time.Now()
	for remaining := limit; remaining > 0; {
		page := fetchPageSize
		if page > remaining {
			page = remaining
		}
		items, err := d.svc.FetchPending(ctx, page, opts.WorkType)
		if err != nil {
			return sum, err
		}
		if len(items) == 0 {
			break
		}
		for i := range items {
			if err := d.dispatchItem(ctx, &items[i], opts.Verbose, &sum); err != nil {
				return sum, err
			}
		}
		remaining -= len(items)
		if len(items) < page {
			break
		}
	}

	d.observer.ObserveBatchDuration(time.Since(start).Seconds())
	d.observer.RecordItemsClaimed(sum.ItemsClaimed)
	d.updateQueueDepth(ctx)

	if sum.ItemsClaimed > 0 {
		logger.Info("dispatch batch finished",
			zap.Int("items", sum.ItemsClaimed),
			zap.Int("succeeded", sum.Succeeded),
			zap.Int("failed", sum.Failed))
	}
	return sum, nil
}

func (d *Dispatcher) dispatchItem(ctx context.Context, item *model.QueueItem, verbose bool, sum *Summary) error {
	sum.ItemsClaimed++
	if err := d.svc.MarkProcessing(ctx, item); err != nil {
		return err
	}

	processors, err := d.registry.Processors(item.WorkType)
	if err != nil {
		logger.Error("queue item has no registered processors",
			zap.Int64("item_id", item.ID),
			zap.Uint64("subject_id", item.SubjectID),
			zap.String("work_type", item.WorkType))
		if ferr := d.svc.MarkItemFailed(ctx, item, err.Error()); ferr != nil {
			return ferr
		}
		d.notifyFailure(ctx, fmt.Sprintf("queue item %d (subject %d, work type %s) cannot be dispatched: %v",
			item.ID, item.SubjectID, item.WorkType, err))
		return nil
	}

	for _, p := range processors {
		if err := d.svc.MarkProcessorProcessing(ctx, item, p.Name()); err != nil {
			if !errors.Is(err, ErrTrackingRowMissing) {
				return err
			}
			// Registry grew since enqueue; the item predates this processor.
			sum.Failed++
			d.observer.RecordProcessorFailure()
			logger.Error("tracking row missing for registered processor",
				zap.Int64("item_id", item.ID),
				zap.String("processor", p.Name()))
			d.notifyFailure(ctx, fmt.Sprintf("queue item %d: %v", item.ID, err))
			continue
		}

		if perr := p.Process(ctx, item); perr != nil {
			sum.Failed++
			d.observer.RecordProcessorFailure()
			if err := d.svc.MarkProcessorFailed(ctx, item, p.Name(), perr.Error()); err != nil {
				return err
			}
			d.logAttempt(verbose, "processor failed", item, p.Name(), perr)
			d.notifyFailure(ctx, fmt.Sprintf("processor %s failed on item %d (subject %d, work type %s): %v",
				p.Name(), item.ID, item.SubjectID, item.WorkType, perr))
			continue
		}

		if _, err := d.svc.MarkProcessorComplete(ctx, item, p.Name()); err != nil {
			return err
		}
		sum.Succeeded++
		d.observer.RecordProcessorSuccess()
		d.logAttempt(verbose, "processor succeeded", item, p.Name(), nil)
	}
	return nil
}

func (d *Dispatcher) logAttempt(verbose bool, msg string, item *model.QueueItem, processorName string, err error) {
	fields := []zap.Field{
		zap.Int64("item_id", item.ID),
		zap.Uint64("subject_id", item.SubjectID),
		zap.String("work_type", item.WorkType),
		zap.String("processor", processorName),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if verbose {
		logger.Info(msg, fields...)
	} else {
		logger.Debug(msg, fields...)
	}
}

// notifyFailure is fire-and-forget; sink errors are logged and swallowed.
func (d *Dispatcher) notifyFailure(ctx context.Context, message string) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Notify(ctx, message); err != nil {
		logger.Warn("failure notification not delivered", zap.Error(err))
	}
}

func (d *Dispatcher) updateQueueDepth(ctx context.Context) {
	counts, err := d.svc.Stats(ctx)
	if err != nil {
		logger.Debug("queue depth read failed", zap.Error(err))
		return
	}
	for _, status := range []int{model.StatusPending, model.StatusProcessing, model.StatusFailed} {
		d.observer.UpdateQueueDepth(model.StatusName(status), counts[status])
	}
}
