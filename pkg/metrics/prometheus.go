package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	forecastsTotal   *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	trainingDuration *prometheus.HistogramVec
	modelMAPE        *prometheus.GaugeVec
	activeModel      *prometheus.GaugeVec
	latency          *prometheus.HistogramVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	ratesIngested    *prometheus.CounterVec
	lastRate         *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		forecastsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratecast_forecasts_total",
				Help: "Total number of forecasts served",
			},
			[]string{"currency", "family"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratecast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		trainingDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ratecast_training_duration_seconds",
				Help:    "Duration of model training runs in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"family"},
		),
		modelMAPE: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ratecast_model_mape",
				Help: "Validation MAPE of the most recently trained model",
			},
			[]string{"currency", "family"},
		),
		activeModel: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ratecast_active_model",
				Help: "Set to 1 for the currently active model version",
			},
			[]string{"currency", "family", "model_id"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ratecast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		cacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratecast_cache_hits_total",
				Help: "Total cache hits by cache name",
			},
			[]string{"cache"},
		),
		cacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratecast_cache_misses_total",
				Help: "Total cache misses by cache name",
			},
			[]string{"cache"},
		),
		ratesIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratecast_rates_ingested_total",
				Help: "Total rate observations ingested",
			},
			[]string{"currency"},
		),
		lastRate: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ratecast_last_rate",
				Help: "Last observed exchange rate for a currency",
			},
			[]string{"currency"},
		),
	}
}

// RecordForecast records one served forecast.
func (r *Recorder) RecordForecast(currency, family string) {
	r.forecastsTotal.WithLabelValues(currency, family).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordTrainingDuration records the wall time of a training run.
func (r *Recorder) RecordTrainingDuration(family string, seconds float64) {
	r.trainingDuration.WithLabelValues(family).Observe(seconds)
}

// RecordModelMAPE records the validation MAPE of a freshly trained model.
func (r *Recorder) RecordModelMAPE(currency, family string, mape float64) {
	r.modelMAPE.WithLabelValues(currency, family).Set(mape)
}

// RecordActiveModel marks the active model version for a currency.
func (r *Recorder) RecordActiveModel(currency, family, modelID string) {
	r.activeModel.WithLabelValues(currency, family, modelID).Set(1)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordCacheHit records a hit against a named cache.
func (r *Recorder) RecordCacheHit(cache string) {
	r.cacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss records a miss against a named cache.
func (r *Recorder) RecordCacheMiss(cache string) {
	r.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordRateIngested records one ingested rate observation.
func (r *Recorder) RecordRateIngested(currency string, rate float64) {
	r.ratesIngested.WithLabelValues(currency).Inc()
	r.lastRate.WithLabelValues(currency).Set(rate)
}
