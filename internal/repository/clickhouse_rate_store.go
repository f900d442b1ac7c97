package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"RateCast/internal/domain/models"
	domrepo "RateCast/internal/domain/repository"
	pkgch "RateCast/pkg/clickhouse"
	applogger "RateCast/pkg/logger"
)

// ClickHouseRateStore implements RateHistory and RateSink backed by a
// single rates table. History reads come back chronologically ascending.
type ClickHouseRateStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewClickHouseRateStore(ch *pkgch.Client, table string) *ClickHouseRateStore {
	return &ClickHouseRateStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *ClickHouseRateStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *ClickHouseRateStore) GetHistory(ctx context.Context, currency string, from, to time.Time) ([]models.RatePoint, error) {
	q := fmt.Sprintf(`
        SELECT currency, date, rate
        FROM %s
        WHERE currency = ? AND date >= ? AND date <= ?
        ORDER BY date ASC
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, currency, from, to)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_history query error",
				applogger.String("currency", currency),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get history: %w", err)
	}
	defer rows.Close()

	out := make([]models.RatePoint, 0, 512)
	for rows.Next() {
		var p models.RatePoint
		if err := rows.Scan(&p.Currency, &p.Date, &p.Rate); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *ClickHouseRateStore) GetLatestN(ctx context.Context, currency string, n int) ([]models.RatePoint, error) {
	q := fmt.Sprintf(`
        SELECT currency, date, rate
        FROM %s
        WHERE currency = ?
        ORDER BY date DESC
        LIMIT ?
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, currency, n)
	if err != nil {
		return nil, fmt.Errorf("get latest n: %w", err)
	}
	defer rows.Close()

	out := make([]models.RatePoint, 0, n)
	for rows.Next() {
		var p models.RatePoint
		if err := rows.Scan(&p.Currency, &p.Date, &p.Rate); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// reverse to ascending
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *ClickHouseRateStore) Store(ctx context.Context, p *models.RatePoint) error {
	q := fmt.Sprintf("INSERT INTO %s (currency, date, rate, source, event_id) VALUES (?, ?, ?, ?, ?)", s.table)
	eventID := fmt.Sprintf("%s-%d", p.Currency, p.Date.Unix())
	_, err := s.db.ExecContext(ctx, q, p.Currency, p.Date, p.Rate, "stream", eventID)
	return err
}

func (s *ClickHouseRateStore) StoreBatch(ctx context.Context, points []*models.RatePoint) error {
	if len(points) == 0 {
		return nil
	}
	// multi-row VALUES to reduce round-trips, chunked
	const chunkSize = 2000
	for start := 0; start < len(points); start += chunkSize {
		end := start + chunkSize
		if end > len(points) {
			end = len(points)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*5)
		for _, p := range points[start:end] {
			if p == nil || p.Currency == "" || p.Date.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?)")
			args = append(args, p.Currency, p.Date, p.Rate, "stream", fmt.Sprintf("%s-%d", p.Currency, p.Date.Unix()))
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (currency, date, rate, source, event_id) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseRateStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseRateStore) Close() error {
	return nil // connection pool managed by pkg
}

var (
	_ domrepo.RateHistory = (*ClickHouseRateStore)(nil)
	_ domrepo.RateSink    = (*ClickHouseRateStore)(nil)
)
