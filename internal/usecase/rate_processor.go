package usecase

import (
	"context"
	"fmt"
	"time"

	"RateCast/internal/domain/models"
	domrepo "RateCast/internal/domain/repository"
)

// RateProcessor routes rate observations to the configured backend:
// Kafka for asynchronous ingestion or ClickHouse for direct writes.
type RateProcessor struct {
	pub     domrepo.RatePublisher
	sink    domrepo.RateSink
	metrics domrepo.Metrics
	backend string
}

func NewRateProcessor(pub domrepo.RatePublisher, sink domrepo.RateSink, metrics domrepo.Metrics, backend string) *RateProcessor {
	return &RateProcessor{pub: pub, sink: sink, metrics: metrics, backend: backend}
}

func (p *RateProcessor) Process(ctx context.Context, pt *models.RatePoint) error {
	if pt == nil {
		return fmt.Errorf("rate point is nil")
	}
	start := time.Now()
	var err error
	switch p.backend {
	case "kafka":
		err = p.pub.Publish(ctx, pt)
	case "clickhouse":
		err = p.sink.Store(ctx, pt)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}
	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process rate: %w", err)
	}
	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	return nil
}

// ProcessBatch routes multiple observations at once.
func (p *RateProcessor) ProcessBatch(ctx context.Context, points []*models.RatePoint) error {
	if len(points) == 0 {
		return nil
	}
	var err error
	switch p.backend {
	case "kafka":
		err = p.pub.PublishBatch(ctx, points)
	case "clickhouse":
		err = p.sink.StoreBatch(ctx, points)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}
	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}
	return nil
}

// Close closes underlying resources if available.
func (p *RateProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.sink != nil {
		_ = p.sink.Close()
	}
}
