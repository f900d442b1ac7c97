package usecase

import (
	"context"
	"encoding/json"
	"time"

	"RateCast/internal/domain/models"
	domrepo "RateCast/internal/domain/repository"
)

// KafkaRatesHandler consumes rate-update messages and writes them to the
// history store.
type KafkaRatesHandler struct {
	topic   string
	sink    domrepo.RateSink
	metrics domrepo.Metrics
}

func NewKafkaRatesHandler(topic string, sink domrepo.RateSink, metrics domrepo.Metrics) *KafkaRatesHandler {
	return &KafkaRatesHandler{topic: topic, sink: sink, metrics: metrics}
}

func (h *KafkaRatesHandler) Topic() string { return h.topic }

// incoming message schema: {currency, t, rate}
func (h *KafkaRatesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Currency string  `json:"currency"`
		T        int64   `json:"t"`
		Rate     float64 `json:"rate"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(m.T, 0)).Seconds())

	start := time.Now()
	err := h.sink.Store(ctx, &models.RatePoint{
		Currency: m.Currency,
		Date:     time.Unix(m.T, 0).UTC(),
		Rate:     m.Rate,
	})
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordLatency("consumer_store", time.Since(start).Seconds())
	return nil
}
