package repository

import (
	"context"
	"time"

	"RateCast/internal/domain/models"
)

// RateHistory provides read access to cleaned historical rate series.
// Series come back chronologically ascending with no duplicate dates.
type RateHistory interface {
	GetHistory(ctx context.Context, currency string, from, to time.Time) ([]models.RatePoint, error)
	GetLatestN(ctx context.Context, currency string, n int) ([]models.RatePoint, error)
	Health(ctx context.Context) error
}

// RateSink persists incoming rate observations from the ingestion path.
type RateSink interface {
	Store(ctx context.Context, p *models.RatePoint) error
	StoreBatch(ctx context.Context, points []*models.RatePoint) error
	Close() error
}

// RatePublisher forwards rate observations onto the message bus for
// asynchronous ingestion.
type RatePublisher interface {
	Publish(ctx context.Context, p *models.RatePoint) error
	PublishBatch(ctx context.Context, points []*models.RatePoint) error
	Close() error
}

// RateStream is a live feed of rate updates from an upstream provider.
type RateStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.RatePoint, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// CatalogStore persists the registry catalog as one document. The registry
// is the only writer; everything else reads through the registry.
type CatalogStore interface {
	ReadCatalog(ctx context.Context) (models.Catalog, error)
	WriteCatalog(ctx context.Context, c models.Catalog) error
}

// ArtifactStore persists serialized model artifacts as opaque blobs.
type ArtifactStore interface {
	WriteArtifact(ctx context.Context, path string, data []byte) error
	ReadArtifact(ctx context.Context, path string) ([]byte, error)
	DeleteArtifact(ctx context.Context, path string) error
}

// EventPublisher emits model lifecycle events. Implementations must treat
// publish failures as non-fatal.
type EventPublisher interface {
	Publish(ctx context.Context, ev *models.ModelEvent) error
	Close() error
}

// Metrics records operational telemetry.
type Metrics interface {
	RecordForecast(currency, family string)
	RecordLatency(op string, seconds float64)
	RecordTrainingDuration(family string, seconds float64)
	RecordModelMAPE(currency, family string, mape float64)
	RecordActiveModel(currency, family, modelID string)
	RecordError(kind string)
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)
	RecordRateIngested(currency string, rate float64)
}
