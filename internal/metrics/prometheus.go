package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type prometheusObserver struct {
	processorResults *prometheus.CounterVec
	itemsClaimed     prometheus.Counter
	batchDuration    prometheus.Summary
	queueDepth       *prometheus.GaugeVec
}

var (
	processorResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopflow_dispatch_processor_total",
		Help: "Processor invocations by result",
	}, []string{"result"})
	itemsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopflow_dispatch_items_claimed_total",
		Help: "Queue items claimed by the dispatcher",
	})
	batchDuration = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "shopflow_dispatch_batch_duration_seconds",
		Help: "Duration of one dispatch batch",
	})
	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "shopflow_queue_depth",
		Help: "Queue items by status",
	}, []string{"status"})
)

func NewPrometheusObserver() DispatchObserver {
	return &prometheusObserver{
		processorResults: processorResults,
		itemsClaimed:     itemsClaimed,
		batchDuration:    batchDuration,
		queueDepth:       queueDepth,
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func (p *prometheusObserver) RecordProcessorSuccess() {
	p.processorResults.WithLabelValues("success").Inc()
}

func (p *prometheusObserver) RecordProcessorFailure() {
	p.processorResults.WithLabelValues("failure").Inc()
}

func (p *prometheusObserver) RecordItemsClaimed(n int) {
	p.itemsClaimed.Add(float64(n))
}

func (p *prometheusObserver) ObserveBatchDuration(seconds float64) {
	p.batchDuration.Observe(seconds)
}

func (p *prometheusObserver) UpdateQueueDepth(status string, depth int64) {
	p.queueDepth.WithLabelValues(status).Set(float64(depth))
}
