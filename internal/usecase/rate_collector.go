package usecase

import (
	"context"

	"RateCast/internal/domain/models"
	domrepo "RateCast/internal/domain/repository"
	mid "RateCast/internal/middleware"
)

// RateCollector consumes the live rate stream and feeds observations to
// the processor, reconnecting on stream errors.
type RateCollector struct {
	stream  domrepo.RateStream
	proc    *RateProcessor
	metrics domrepo.Metrics
	pipe    *mid.IngestPipeline
}

func NewRateCollector(stream domrepo.RateStream, proc *RateProcessor, metrics domrepo.Metrics, pipe *mid.IngestPipeline) *RateCollector {
	return &RateCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe}
}

// Processor exposes the downstream processor so the app can close its
// resources on shutdown.
func (c *RateCollector) Processor() *RateProcessor { return c.proc }

// IsConnected reports the upstream connection state.
func (c *RateCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *RateCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	ptCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, ptCh, errCh)
	return nil
}

func (c *RateCollector) consume(ctx context.Context, ptCh <-chan *models.RatePoint, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case p := <-ptCh:
			if p == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, p)
			} else {
				_ = c.proc.Process(ctx, p)
			}
			c.metrics.RecordRateIngested(p.Currency, p.Rate)
		}
	}
}

func (c *RateCollector) Stop() error { return c.stream.Close() }

// Shutdown stops the pipeline and closes the stream.
func (c *RateCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
