package rates

import (
	"context"
	"fmt"
	"time"

	"RateCast/internal/domain/models"
	drepo "RateCast/internal/domain/repository"
	pkghttp "RateCast/pkg/http"
	applogger "RateCast/pkg/logger"
	xutil "RateCast/pkg/util"
)

// Backfiller pulls historical daily rates over the provider REST API and
// loads them into the rate sink. Used to seed a currency before its first
// training run or to repair gaps after stream downtime.
type Backfiller struct {
	client  *pkghttp.Client
	baseURL string
	apiKey  string
	sink    drepo.RateSink
	logger  *applogger.Logger
}

func NewBackfiller(client *pkghttp.Client, baseURL, apiKey string, sink drepo.RateSink, logger *applogger.Logger) *Backfiller {
	return &Backfiller{
		client:  client,
		baseURL: baseURL,
		apiKey:  apiKey,
		sink:    sink,
		logger:  logger,
	}
}

type historyResponse struct {
	Currency string `json:"currency"`
	Rates    []struct {
		Date string  `json:"date"` // 2006-01-02
		Rate float64 `json:"rate"`
	} `json:"rates"`
}

// Backfill fetches the [from, to] daily series for one currency and stores
// it in a single batch. Returns the number of points stored.
func (b *Backfiller) Backfill(ctx context.Context, currency string, from, to time.Time) (int, error) {
	from, to = xutil.AlignDayRange(from, to)

	var resp historyResponse
	err := b.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    fmt.Sprintf("%s/v1/rates/%s/history", b.baseURL, currency),
		Headers: map[string]string{
			"X-Api-Key": b.apiKey,
		},
		QueryParams: map[string][]string{
			"from": {from.UTC().Format("2006-01-02")},
			"to":   {to.UTC().Format("2006-01-02")},
		},
	}, &resp)
	if err != nil {
		return 0, fmt.Errorf("fetch history %s: %w", currency, err)
	}

	points := make([]*models.RatePoint, 0, len(resp.Rates))
	for _, r := range resp.Rates {
		d, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			b.logger.Warn("backfill skipping unparsable date",
				applogger.String("currency", currency),
				applogger.String("date", r.Date),
			)
			continue
		}
		if r.Rate <= 0 {
			continue
		}
		points = append(points, &models.RatePoint{Currency: currency, Date: d, Rate: r.Rate})
	}

	if len(points) == 0 {
		return 0, nil
	}
	if err := b.sink.StoreBatch(ctx, points); err != nil {
		return 0, fmt.Errorf("store backfill %s: %w", currency, err)
	}

	b.logger.Info("backfill complete",
		applogger.String("currency", currency),
		applogger.Int("points", len(points)),
	)
	return len(points), nil
}

// BackfillAll runs Backfill for each currency, continuing past per-currency
// failures and reporting them in the returned map.
func (b *Backfiller) BackfillAll(ctx context.Context, currencies []string, from, to time.Time) (int, map[string]error) {
	total := 0
	failures := make(map[string]error)
	for _, c := range currencies {
		n, err := b.Backfill(ctx, c, from, to)
		if err != nil {
			failures[c] = err
			b.logger.Error("backfill failed",
				applogger.String("currency", c),
				applogger.Error(err),
			)
			continue
		}
		total += n
	}
	return total, failures
}
