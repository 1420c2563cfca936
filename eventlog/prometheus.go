package eventlog

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every exported metric.
const DefaultNamespace = "audiostream"

// PrometheusObserver exports events as Prometheus metrics.
type PrometheusObserver struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	bytesSent *prometheus.CounterVec
	cache     *prometheus.CounterVec
}

// NewPrometheusObserver registers the request metrics on reg. Metrics that
// are already registered, for example by an earlier observer in tests, are
// reused.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var err error
	o := &PrometheusObserver{}
	if o.requests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Stream, chunk and resolve requests by outcome.",
	}, []string{"type", "status"})); err != nil {
		return nil, err
	}
	if o.duration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "Time from request to last byte.",
		Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30, 120, 600},
	}, []string{"type"})); err != nil {
		return nil, err
	}
	if o.bytesSent, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bytes_sent_total",
		Help:      "Body bytes written to clients.",
	}, []string{"type"})); err != nil {
		return nil, err
	}
	if o.cache, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunk_cache_lookups_total",
		Help:      "Chunk zero cache lookups by result.",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	return o, nil
}

// Record implements Sink.
func (o *PrometheusObserver) Record(e Event) {
	if o == nil {
		return
	}
	typ := string(e.Type)
	o.requests.WithLabelValues(typ, strconv.Itoa(e.Status)).Inc()
	o.duration.WithLabelValues(typ).Observe(e.Duration.Seconds())
	if e.BytesSent > 0 {
		o.bytesSent.WithLabelValues(typ).Add(float64(e.BytesSent))
	}
	if e.CacheStatus == CacheHit || e.CacheStatus == CacheMiss {
		o.cache.WithLabelValues(string(e.CacheStatus)).Inc()
	}
}

// RegisterGauge exports the value of fn as a gauge, e.g. the number of
// in-flight streams.
func RegisterGauge(reg prometheus.Registerer, namespace, name, help string, fn func() float64) error {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	_, err := register(reg, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
	return err
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}
