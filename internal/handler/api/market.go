package api

import (
	"encoding/json"
	"errors"
	"time"

	"TrendPulse/internal/domain/models"
	domservice "TrendPulse/internal/domain/service"
	"TrendPulse/internal/service/cache"
	xhttp "TrendPulse/pkg/http"
	xlogger "TrendPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// MarketHandler serves the read-side API over the live analytic state.
type MarketHandler struct {
	logger      *xlogger.Logger
	reader      domservice.MarketReader
	history     domservice.SignalHistory // nil when storage is disabled
	snapshots   cache.BytesCache
	snapshotTTL time.Duration
}

// NewMarketHandler creates the handler. history may be nil; snapshots may be
// nil to disable response caching.
func NewMarketHandler(
	logger *xlogger.Logger,
	reader domservice.MarketReader,
	history domservice.SignalHistory,
	snapshots cache.BytesCache,
	snapshotTTL time.Duration,
) *MarketHandler {
	return &MarketHandler{
		logger:      logger,
		reader:      reader,
		history:     history,
		snapshots:   snapshots,
		snapshotTTL: snapshotTTL,
	}
}

// RegisterRoutes mounts the API.
func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/symbols", h.Symbols)
	g.GET("/profile/:symbol", h.Profile)
	g.GET("/trend/:symbol", h.Trend)
	g.GET("/state/:symbol", h.SignalState)
	g.GET("/signals/recent", h.RecentSignals)
	e.GET("/healthz", h.Health)
}

func (h *MarketHandler) Symbols(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.reader.Symbols())
}

type profileRequest struct {
	Timeframe string `query:"tf" validate:"omitempty,oneof=1m 5m 15m 1h"`
}

func (h *MarketHandler) Profile(c echo.Context) error {
	req := &profileRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := c.Param("symbol")

	key := "profile:" + symbol + ":" + req.Timeframe
	if b, ok := h.cached(key); ok {
		return c.JSONBlob(200, b)
	}

	prof, err := h.reader.Profile(symbol, req.Timeframe)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientData) {
			return xhttp.AppErrorResponse(c, xhttp.NewAppError(
				"ERR_WARMING_UP", "", "profile window not yet filled", 425).WithError(err))
		}
		h.logger.Error("profile read error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("profile: %v", err))
	}
	return h.respondCached(c, key, prof)
}

func (h *MarketHandler) Trend(c echo.Context) error {
	symbol := c.Param("symbol")

	key := "trend:" + symbol
	if b, ok := h.cached(key); ok {
		return c.JSONBlob(200, b)
	}

	trend, err := h.reader.Trend(symbol)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("trend: %v", err))
	}
	return h.respondCached(c, key, trend)
}

func (h *MarketHandler) SignalState(c echo.Context) error {
	state, err := h.reader.SignalState(c.Param("symbol"))
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("state: %v", err))
	}
	return xhttp.SuccessResponse(c, map[string]string{"state": state})
}

type recentSignalsRequest struct {
	Symbol string `query:"symbol" validate:"required"`
	Since  string `query:"since"`
	Limit  int    `query:"limit" default:"50" validate:"gt=0,lte=500"`
}

func (h *MarketHandler) RecentSignals(c echo.Context) error {
	req := &recentSignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.history == nil {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError(
			"ERR_UNAVAILABLE", "", "signal history storage is disabled", 503))
	}

	since := xhttp.ParseTimeDefault(req.Since, time.Now().Add(-24*time.Hour))
	// Minute-aligned bounds keep repeated polls of the moving window on
	// identical queries.
	since, _ = xhttp.AlignRange(since, time.Now(), time.Minute)
	sigs, err := h.history.RecentSignals(c.Request().Context(), req.Symbol, since, req.Limit)
	if err != nil {
		h.logger.Error("recent signals read error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("recent signals: %v", err))
	}
	return xhttp.ListResponse(c, sigs, int64(len(sigs)))
}

func (h *MarketHandler) Health(c echo.Context) error {
	status := map[string]interface{}{
		"streaming": h.reader.IsStreaming(),
		"symbols":   len(h.reader.Symbols()),
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *MarketHandler) cached(key string) ([]byte, bool) {
	if h.snapshots == nil {
		return nil, false
	}
	b, ok, err := h.snapshots.GetBytes(key)
	if err != nil || !ok {
		return nil, false
	}
	return b, true
}

// respondCached writes the standard envelope and caches the rendered bytes
// so hot polling endpoints skip recomputing snapshots.
func (h *MarketHandler) respondCached(c echo.Context, key string, data interface{}) error {
	body := xhttp.APIResponse{Status: 200, Message: "OK", Data: data}
	b, err := json.Marshal(body)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("encode response: %v", err))
	}
	if h.snapshots != nil {
		_ = h.snapshots.SetBytes(key, b, h.snapshotTTL)
	}
	return c.JSONBlob(200, b)
}
