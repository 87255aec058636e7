// Package metrics expõe os contadores do motor de pedidos em formato Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder agrupa os coletores registrados em um registry próprio.
type Recorder struct {
	registry *prometheus.Registry

	recomputations   prometheus.Counter
	computeDuration  prometheus.Histogram
	orders           prometheus.Gauge
	unassignableRows prometheus.Counter
	formulaErrors    prometheus.Counter
	importedRows     *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
}

// New cria o Recorder com os coletores de processo e de runtime Go.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		recomputations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orders",
			Name:      "recomputations_total",
			Help:      "Recálculos completos do snapshot de pedidos.",
		}),
		computeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "orders",
			Name:      "compute_duration_seconds",
			Help:      "Duração de cada recálculo.",
			Buckets:   prometheus.DefBuckets,
		}),
		orders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "orders",
			Name:      "groups",
			Help:      "Pedidos consolidados no último recálculo.",
		}),
		unassignableRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orders",
			Name:      "unassignable_rows_total",
			Help:      "Linhas descartadas por não terem código de pedido.",
		}),
		formulaErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orders",
			Name:      "formula_errors_total",
			Help:      "Falhas de avaliação de colunas calculadas.",
		}),
		importedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orders",
			Name:      "imported_rows_total",
			Help:      "Linhas importadas por tipo de planilha.",
		}, []string{"kind"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orders",
			Name:      "config_cache_lookups_total",
			Help:      "Consultas ao cache de configuração.",
		}, []string{"result"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.recomputations,
		r.computeDuration,
		r.orders,
		r.unassignableRows,
		r.formulaErrors,
		r.importedRows,
		r.cacheLookups,
	)
	return r
}

// ObserveCompute registra um recálculo.
func (r *Recorder) ObserveCompute(d time.Duration, orders, unassignable, formulaErrors int) {
	if r == nil {
		return
	}
	r.recomputations.Inc()
	r.computeDuration.Observe(d.Seconds())
	r.orders.Set(float64(orders))
	r.unassignableRows.Add(float64(unassignable))
	r.formulaErrors.Add(float64(formulaErrors))
}

// AddImported soma linhas importadas de um tipo de planilha.
func (r *Recorder) AddImported(kind string, rows int) {
	if r == nil {
		return
	}
	r.importedRows.WithLabelValues(kind).Add(float64(rows))
}

// CacheHit e CacheMiss contam consultas ao cache de configuração.
func (r *Recorder) CacheHit() {
	if r == nil {
		return
	}
	r.cacheLookups.WithLabelValues("hit").Inc()
}

func (r *Recorder) CacheMiss() {
	if r == nil {
		return
	}
	r.cacheLookups.WithLabelValues("miss").Inc()
}

// Handler serve /metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
