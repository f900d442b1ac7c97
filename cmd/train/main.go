package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"RateCast/internal/di"
	"RateCast/internal/domain/models"
	"RateCast/internal/registry"
	internalrepo "RateCast/internal/repository"
	"RateCast/internal/service/rates"
	"RateCast/internal/services/training"
	"RateCast/internal/usecase"
	"RateCast/pkg/config"
	xhttp "RateCast/pkg/http"
	applogger "RateCast/pkg/logger"
	xutil "RateCast/pkg/util"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	mode := flag.String("mode", "train", "train | compare | train-all | cleanup | schedule | backfill")
	currency := flag.String("currency", "", "currency code (train, compare, backfill)")
	family := flag.String("family", "", "model family override: trend | ar | lagreg | ensemble")
	activate := flag.Bool("activate", true, "activate the trained model")
	keep := flag.Int("keep", 5, "model versions to keep per currency (cleanup)")
	days := flag.Int("days", 0, "history window override in days")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}

	ctx := context.Background()
	deps, err := buildDeps(cfg, logger)
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}

	if *days > 0 {
		cfg.Forecast.LookbackDays = *days
	}
	orch := newOrchestrator(cfg, deps, logger, *family)

	switch *mode {
	case "train":
		requireCurrency(*currency)
		runTrain(ctx, cfg, orch, deps, *currency, *activate)
	case "compare":
		requireCurrency(*currency)
		runCompare(ctx, cfg, orch, deps, *currency)
	case "train-all":
		trained, failures := orch.TrainAllCurrencies(ctx, cfg.Provider.Currencies, *activate)
		fmt.Printf("trained %d/%d currencies\n", trained, len(cfg.Provider.Currencies))
		if len(failures) > 0 {
			os.Exit(1)
		}
	case "cleanup":
		removed, err := deps.registry.CleanupOldModels(ctx, deps.fs, *keep)
		if err != nil {
			log.Fatalf("cleanup failed: %v", err)
		}
		fmt.Printf("removed %d model versions\n", removed)
	case "schedule":
		runSchedule(ctx, cfg, orch, logger)
	case "backfill":
		runBackfill(ctx, cfg, deps, *currency, logger)
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
}

type deps struct {
	store    *internalrepo.ClickHouseRateStore
	fs       *internalrepo.FSStore
	registry *registry.ModelRegistry
}

func buildDeps(cfg *config.Config, logger *applogger.Logger) (*deps, error) {
	chClient, err := di.ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	store := di.ProvideRateStore(chClient, cfg, logger)

	fs, err := di.ProvideFSStore(cfg)
	if err != nil {
		return nil, err
	}

	// lifecycle events are best effort from the CLI
	var reg *registry.ModelRegistry
	if producer, err := di.ProvideKafkaProducer(cfg); err == nil {
		reg = registry.New(fs, di.ProvideEventPublisher(producer, cfg), logger)
	} else {
		logger.Warn("kafka unavailable, lifecycle events disabled", applogger.Error(err))
		reg = registry.New(fs, nil, logger)
	}

	return &deps{store: store, fs: fs, registry: reg}, nil
}

func newOrchestrator(cfg *config.Config, d *deps, logger *applogger.Logger, familyOverride string) *usecase.TrainingOrchestrator {
	ocfg := usecase.OrchestratorConfig{
		Family:       models.FamilyEnsemble,
		Weighting:    training.WeightingMode(cfg.Forecast.Ensemble.Weighting),
		TrainRatio:   cfg.Forecast.TrainRatio,
		LookbackDays: cfg.Forecast.LookbackDays,
	}
	if familyOverride != "" {
		ocfg.Family = models.ModelFamily(familyOverride)
	} else if cfg.Scheduler.Family != "" {
		ocfg.Family = models.ModelFamily(cfg.Scheduler.Family)
	}
	for _, m := range cfg.Forecast.Ensemble.Members {
		ocfg.EnsembleMembers = append(ocfg.EnsembleMembers, models.ModelFamily(m))
	}
	return usecase.NewTrainingOrchestrator(ocfg, d.registry, d.fs, d.store, di.ProvideMetrics(), logger)
}

func runTrain(ctx context.Context, cfg *config.Config, orch *usecase.TrainingOrchestrator, d *deps, currency string, activate bool) {
	history, err := fetchHistory(ctx, cfg, d, currency)
	if err != nil {
		log.Fatalf("history fetch failed: %v", err)
	}

	m, err := orch.Train(ctx, history, currency, cfg.Forecast.TrainRatio)
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}
	artifactPath, err := orch.Save(ctx, activate)
	if err != nil {
		log.Fatalf("save failed: %v", err)
	}

	fmt.Printf("trained %s/%s: mape=%.2f%% rmse=%.6f da=%.2f%% -> %s\n",
		currency, m.Family, m.MAPE, m.RMSE, m.DirectionalAccuracy*100, artifactPath)
}

func runCompare(ctx context.Context, cfg *config.Config, orch *usecase.TrainingOrchestrator, d *deps, currency string) {
	history, err := fetchHistory(ctx, cfg, d, currency)
	if err != nil {
		log.Fatalf("history fetch failed: %v", err)
	}

	families := []models.ModelFamily{models.FamilyTrend, models.FamilyAR, models.FamilyLagReg, models.FamilyEnsemble}
	results, best, err := orch.CompareModels(ctx, history, currency, families)
	if err != nil {
		log.Fatalf("comparison failed: %v", err)
	}

	fmt.Printf("%-10s %10s %12s %10s\n", "family", "mape", "rmse", "dir.acc")
	for _, f := range families {
		m, ok := results[f]
		if !ok {
			fmt.Printf("%-10s %10s\n", f, "failed")
			continue
		}
		marker := ""
		if f == best {
			marker = "  <- best"
		}
		fmt.Printf("%-10s %9.2f%% %12.6f %9.2f%%%s\n", f, m.MAPE, m.RMSE, m.DirectionalAccuracy*100, marker)
	}
}

func runSchedule(ctx context.Context, cfg *config.Config, orch *usecase.TrainingOrchestrator, logger *applogger.Logger) {
	spec := cfg.Scheduler.Cron
	if spec == "" {
		spec = "0 2 * * *"
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		logger.Info("scheduled retraining started",
			applogger.Strings("currencies", cfg.Provider.Currencies),
		)
		trained, failures := orch.TrainAllCurrencies(ctx, cfg.Provider.Currencies, cfg.Scheduler.SetActive)
		logger.Info("scheduled retraining finished",
			applogger.Int("trained", trained),
			applogger.Int("failed", len(failures)),
		)
	})
	if err != nil {
		log.Fatalf("invalid cron spec %q: %v", spec, err)
	}

	c.Start()
	logger.Info("retraining scheduler started", applogger.String("cron", spec))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	stopCtx := c.Stop()
	<-stopCtx.Done()
	logger.Info("retraining scheduler stopped")
}

func runBackfill(ctx context.Context, cfg *config.Config, d *deps, currency string, logger *applogger.Logger) {
	client := xhttp.NewClient(xhttp.WithTimeout(cfg.Provider.RequestTimeout))
	bf := rates.NewBackfiller(client, cfg.Provider.RESTBaseURL, cfg.Provider.APIKey, d.store, logger)

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -cfg.Forecast.LookbackDays)

	currencies := cfg.Provider.Currencies
	if currency != "" {
		currencies = strings.Split(currency, ",")
	}
	total, failures := bf.BackfillAll(ctx, currencies, from, to)
	fmt.Printf("backfilled %d points across %d currencies\n", total, len(currencies)-len(failures))
	if len(failures) > 0 {
		os.Exit(1)
	}
}

func fetchHistory(ctx context.Context, cfg *config.Config, d *deps, currency string) ([]models.RatePoint, error) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -cfg.Forecast.LookbackDays)
	from, to = xutil.AlignDayRange(from, to)
	return d.store.GetHistory(ctx, currency, from, to)
}

func requireCurrency(currency string) {
	if currency == "" {
		log.Fatal("-currency is required for this mode")
	}
}
