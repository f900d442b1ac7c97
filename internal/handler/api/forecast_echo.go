package api

import (
	"errors"
	"fmt"
	"time"

	models "RateCast/internal/domain/models"
	domrepo "RateCast/internal/domain/repository"
	"RateCast/internal/registry"
	"RateCast/internal/service/ratelimit"
	"RateCast/internal/usecase"
	xcache "RateCast/pkg/cache"
	xhttp "RateCast/pkg/http"
	xlogger "RateCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

const (
	forecastCacheTTL  = 5 * time.Minute
	historyContextLen = 90

	rateLimitBurst     = 20.0
	rateLimitPerSecond = 5.0
)

// ForecastEchoHandler exposes forecast and model catalog endpoints.
type ForecastEchoHandler struct {
	logger   *xlogger.Logger
	svc      *usecase.ForecastService
	reg      *registry.ModelRegistry
	history  domrepo.RateHistory
	cache    xcache.Service
	limiter  *ratelimit.Limiter
	observer domrepo.Metrics
}

func NewForecastEchoHandler(
	logger *xlogger.Logger,
	svc *usecase.ForecastService,
	reg *registry.ModelRegistry,
	history domrepo.RateHistory,
	cache xcache.Service,
	limiter *ratelimit.Limiter,
	observer domrepo.Metrics,
) *ForecastEchoHandler {
	return &ForecastEchoHandler{
		logger:   logger,
		svc:      svc,
		reg:      reg,
		history:  history,
		cache:    cache,
		limiter:  limiter,
		observer: observer,
	}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/forecast", h.Forecast)
	g.GET("/models", h.Models)
	g.GET("/models/active", h.ActiveModel)
	g.POST("/cache/clear", h.ClearCache)
	e.GET("/healthz", h.Health)
}

func (h *ForecastEchoHandler) Forecast(c echo.Context) error {
	if !h.limiter.Allow(c.RealIP(), rateLimitBurst, rateLimitPerSecond) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("rate_limited", "", "too many requests", 429))
	}

	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	cacheKey := xcache.GenerateKeyWithParams("forecast", req.Currency, req.Horizon, req.Confidence)
	var cached models.ForecastResult
	if err := h.cache.Get(ctx, cacheKey, &cached); err == nil {
		h.observer.RecordCacheHit("forecast")
		return xhttp.SuccessResponse(c, cached)
	}
	h.observer.RecordCacheMiss("forecast")

	history, err := h.history.GetLatestN(ctx, req.Currency, historyContextLen)
	if err != nil {
		h.logger.Error("forecast history fetch error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	res, err := h.svc.GenerateForecast(ctx, req.Currency, req.Horizon, req.Confidence, history)
	if err != nil {
		var notFound *models.ModelNotFoundError
		if errors.As(err, &notFound) {
			return xhttp.NotFoundResponse(c, map[string]string{"error": notFound.Error()})
		}
		h.logger.Error("forecast usecase error",
			xlogger.String("currency", req.Currency),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, err)
	}

	if err := h.cache.Set(ctx, cacheKey, res, forecastCacheTTL); err != nil {
		h.logger.Warn("forecast cache set error", xlogger.Error(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) Models(c echo.Context) error {
	req := &models.ModelsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	list, err := h.reg.ListModels(c.Request().Context(), req.Currency)
	if err != nil {
		h.logger.Error("list models error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, list, int64(len(list)))
}

func (h *ForecastEchoHandler) ActiveModel(c echo.Context) error {
	req := &models.ActiveModelRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	meta, err := h.reg.GetActiveModel(c.Request().Context(), req.Currency)
	if err != nil {
		h.logger.Error("active model error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if meta == nil {
		return xhttp.NotFoundResponse(c, map[string]string{
			"error": fmt.Sprintf("no models registered for %s", req.Currency),
		})
	}
	return xhttp.SuccessResponse(c, meta)
}

// ClearCache drops hot loaded models and cached responses. Operators call
// this after replacing artifacts out of band.
func (h *ForecastEchoHandler) ClearCache(c echo.Context) error {
	h.svc.ClearCache()
	if err := h.cache.DeleteByPattern(c.Request().Context(), xcache.BuildPattern("forecast:")); err != nil {
		h.logger.Warn("response cache clear error", xlogger.Error(err))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "cleared"})
}

func (h *ForecastEchoHandler) Health(c echo.Context) error {
	if err := h.history.Health(c.Request().Context()); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalError("storage unavailable"))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
