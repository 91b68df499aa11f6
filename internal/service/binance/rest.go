package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"TrendPulse/internal/domain/models"
	drepo "TrendPulse/internal/domain/repository"
	"TrendPulse/internal/service/gateway"
	httpclient "TrendPulse/pkg/http"
	applogger "TrendPulse/pkg/logger"
)

// RestClient fetches historical klines from the Binance futures REST API.
// Every request goes through the gateway under the "klines" endpoint class,
// so warm-up traffic shares the rate budget with everything else that talks
// to the exchange.
type RestClient struct {
	baseURL string
	http    *httpclient.Client
	gateway *gateway.Gateway
	logger  *applogger.Logger
}

// NewRestClient creates a REST client for kline warm-up.
func NewRestClient(baseURL string, timeout time.Duration, gw *gateway.Gateway, l *applogger.Logger) *RestClient {
	return &RestClient{
		baseURL: baseURL,
		http:    httpclient.NewClient(httpclient.WithTimeout(timeout)),
		gateway: gw,
		logger:  l,
	}
}

// Klines returns up to limit closed candles for symbol/timeframe, oldest
// first. The result seeds indicator and profile windows before live ticks
// start flowing; callers degrade to cold-start when it fails.
func (c *RestClient) Klines(ctx context.Context, symbol string, tf drepo.Timeframe, limit int) ([]*models.Candle, error) {
	var raw [][]interface{}
	err := c.gateway.Call(ctx, "klines", func(ctx context.Context) error {
		resp, err := c.http.SendRequest(ctx, &httpclient.RequestOptions{
			Method: httpclient.MethodGet,
			URL:    c.baseURL + "/fapi/v1/klines",
			QueryParams: map[string][]string{
				"symbol":   {symbol},
				"interval": {string(tf)},
				"limit":    {strconv.Itoa(limit)},
			},
		})
		if err != nil {
			return fmt.Errorf("klines request: %w: %v", models.ErrRateLimited, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != 200 {
			body, _ := io.ReadAll(resp.Body)
			return classifyStatus(resp.StatusCode, body)
		}
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return fmt.Errorf("decode klines: %w: %v", models.ErrUpstreamPermanent, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The exchange includes the still-forming interval as the last element;
	// only closed candles may seed the windows.
	if len(raw) > 0 {
		raw = raw[:len(raw)-1]
	}

	candles := make([]*models.Candle, 0, len(raw))
	for _, k := range raw {
		candle, err := parseKline(symbol, tf, k)
		if err != nil {
			c.logger.Warn("binance: skipping malformed kline",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
			continue
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// classifyStatus maps Binance HTTP statuses onto the gateway error taxonomy:
// 429/418 and 5xx are transient, everything else 4xx is a caller bug and not
// worth retrying.
func classifyStatus(status int, body []byte) error {
	switch {
	case status == 429 || status == 418:
		return fmt.Errorf("%w: status %d: %s", models.ErrRateLimited, status, body)
	case status >= 500:
		return fmt.Errorf("%w: status %d: %s", models.ErrRateLimited, status, body)
	default:
		return fmt.Errorf("%w: status %d: %s", models.ErrUpstreamPermanent, status, body)
	}
}

// parseKline converts one Binance kline array into a closed Candle. The
// array layout is positional: openTime, open, high, low, close, volume, ...
func parseKline(symbol string, tf drepo.Timeframe, k []interface{}) (*models.Candle, error) {
	if len(k) < 6 {
		return nil, fmt.Errorf("kline has %d fields, want >= 6", len(k))
	}
	openMs, ok := k[0].(float64)
	if !ok {
		return nil, fmt.Errorf("open time is %T, want number", k[0])
	}
	vals := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := k[i].(string)
		if !ok {
			return nil, fmt.Errorf("field %d is %T, want string", i, k[i])
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		vals[i-1] = v
	}
	return &models.Candle{
		Symbol:    symbol,
		Timeframe: string(tf),
		OpenTime:  time.UnixMilli(int64(openMs)).UTC(),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
		Closed:    true,
	}, nil
}
