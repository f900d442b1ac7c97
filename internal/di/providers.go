package di

import (
	"context"
	"fmt"
	"net"
	"time"

	"RateCast/internal/domain/repository"
	"RateCast/internal/handler/api"
	mid "RateCast/internal/middleware"
	"RateCast/internal/registry"
	internalrepo "RateCast/internal/repository"
	"RateCast/internal/service/ratelimit"
	"RateCast/internal/service/rates"
	"RateCast/internal/usecase"
	xcache "RateCast/pkg/cache"
	pkgch "RateCast/pkg/clickhouse"
	"RateCast/pkg/config"
	xhttp "RateCast/pkg/http"
	pkgkafka "RateCast/pkg/kafka"
	applogger "RateCast/pkg/logger"
	"RateCast/pkg/metrics"
	"RateCast/pkg/server"
	xutil "RateCast/pkg/util"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", cfg.ClickHouse.Database),
		fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (currency String, date DateTime, rate Float64, source String, event_id String) ENGINE=ReplacingMergeTree ORDER BY (currency, date)",
			cfg.ClickHouse.RatesTable,
		),
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if cfg.Backend.Type != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRateStore creates the ClickHouse rate store.
func ProvideRateStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) *internalrepo.ClickHouseRateStore {
	store := internalrepo.NewClickHouseRateStore(chClient, cfg.ClickHouse.RatesTable)
	store.SetLogger(l)
	return store
}

// ProvideRateHistory exposes the rate store as read-only history.
func ProvideRateHistory(store *internalrepo.ClickHouseRateStore) repository.RateHistory {
	return store
}

// ProvideRateSink exposes the rate store as an ingestion sink.
func ProvideRateSink(store *internalrepo.ClickHouseRateStore) repository.RateSink {
	return store
}

// ProvideRatePublisher creates the Kafka rate publisher.
func ProvideRatePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.RatePublisher {
	return internalrepo.NewKafkaRatePublisher(producer, cfg.Kafka.Topic)
}

// ProvideEventPublisher creates the model lifecycle event publisher.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.EventPublisher {
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
}

// ProvideFSStore creates the on-disk catalog and artifact store.
func ProvideFSStore(cfg *config.Config) (*internalrepo.FSStore, error) {
	return internalrepo.NewFSStore(cfg.Forecast.ModelDir)
}

// ProvideCatalogStore exposes the fs store as the registry catalog.
func ProvideCatalogStore(store *internalrepo.FSStore) repository.CatalogStore {
	return store
}

// ProvideArtifactStore exposes the fs store as artifact storage.
func ProvideArtifactStore(store *internalrepo.FSStore) repository.ArtifactStore {
	return store
}

// ProvideRegistry creates the model registry.
func ProvideRegistry(store repository.CatalogStore, events repository.EventPublisher, l *applogger.Logger) *registry.ModelRegistry {
	return registry.New(store, events, l)
}

// ProvideForecastService creates the forecast serving use case.
func ProvideForecastService(
	reg *registry.ModelRegistry,
	artifacts repository.ArtifactStore,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.ForecastService {
	return usecase.NewForecastService(reg, artifacts, m, l)
}

// ProvideRateStream creates the provider WebSocket stream.
func ProvideRateStream(cfg *config.Config) repository.RateStream {
	return rates.NewStream(
		cfg.Provider.APIKey,
		cfg.Provider.WebSocketURL,
		cfg.Provider.Currencies,
		cfg.Provider.ReconnectDelay,
		cfg.Provider.PingInterval,
	)
}

// ProvideRateProcessor creates the ingestion processor.
func ProvideRateProcessor(
	pub repository.RatePublisher,
	sink repository.RateSink,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.RateProcessor {
	return usecase.NewRateProcessor(pub, sink, m, cfg.Backend.Type)
}

// ProvideRateCollector creates the stream collector with its pipeline.
func ProvideRateCollector(
	stream repository.RateStream,
	processor *usecase.RateProcessor,
	m repository.Metrics,
) *usecase.RateCollector {
	pipe := mid.NewIngestPipeline(processor, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewRateCollector(stream, processor, m, pipe)
}

// ProvideKafkaRatesHandler registers the handler for the rates topic.
func ProvideKafkaRatesHandler(sink repository.RateSink, m repository.Metrics, cfg *config.Config) *usecase.KafkaRatesHandler {
	return usecase.NewKafkaRatesHandler(cfg.Kafka.Topic, sink, m)
}

// ProvideCache creates the forecast response cache. Redis when configured,
// otherwise an in-process cache.
func ProvideCache(cfg *config.Config) (xcache.Service, error) {
	if !cfg.Forecast.Redis.Enabled {
		return xcache.NewMemoryCache(), nil
	}
	host, port := splitHostPort(cfg.Forecast.Redis.Addr)
	c, err := xcache.NewRedisCache(
		xcache.WithRedisHost(host),
		xcache.WithRedisPort(port),
		xcache.WithRedisPassword(cfg.Forecast.Redis.Password),
		xcache.WithRedisDB(cfg.Forecast.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	// Layer a small in-process cache over Redis so repeat forecast
	// lookups skip the network round trip.
	return xcache.NewLayeredCache(c, xcache.WithLayeredMemorySize(512)), nil
}

func splitHostPort(addr string) (string, int) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	return host, xutil.ParseIntDefault(port, 6379)
}

// ProvideLimiter creates the API rate limiter.
func ProvideLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideForecastHandler creates the HTTP handler surface.
func ProvideForecastHandler(
	l *applogger.Logger,
	svc *usecase.ForecastService,
	reg *registry.ModelRegistry,
	history repository.RateHistory,
	cache xcache.Service,
	limiter *ratelimit.Limiter,
	m repository.Metrics,
) xhttp.Handler {
	return api.NewForecastEchoHandler(l, svc, reg, history, cache, limiter, m)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	producer *pkgkafka.Producer,
	collector *usecase.RateCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaRatesHandler,
	chClient *pkgch.Client,
	handler xhttp.Handler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	if cfg.Backend.Type == "kafka" && producer != nil {
		// Aggregate repeated error logs and ship them alongside the
		// rate traffic instead of flooding stdout.
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.Topic + ".app-logs",
			Publisher:      logPublisher{producer: producer},
		})
	}
	app := server.New(cfg, collector, consumer, kh, chClient)
	app.SetHTTPHandler(handler)
	if collector != nil {
		app.RateProc = collector.Processor()
	}
	return app
}

// logPublisher adapts the Kafka producer to the log collector's
// Publisher contract. Aggregated logs are not keyed; partition order
// does not matter for them.
type logPublisher struct {
	producer *pkgkafka.Producer
}

func (p logPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}
