package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"TrendPulse/internal/domain/models"
	"TrendPulse/internal/service/gateway"
	httpclient "TrendPulse/pkg/http"
	applogger "TrendPulse/pkg/logger"
)

// TelegramSender delivers emitted signals as Telegram messages. Requests run
// through the gateway under the "notify" endpoint class so a flapping bot API
// cannot starve exchange traffic of retries.
type TelegramSender struct {
	botToken string
	chatID   string
	http     *httpclient.Client
	gateway  *gateway.Gateway
	logger   *applogger.Logger
}

// NewTelegramSender creates a Telegram signal sink.
func NewTelegramSender(botToken, chatID string, timeout time.Duration, gw *gateway.Gateway, l *applogger.Logger) *TelegramSender {
	return &TelegramSender{
		botToken: botToken,
		chatID:   chatID,
		http:     httpclient.NewClient(httpclient.WithTimeout(timeout)),
		gateway:  gw,
		logger:   l,
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Deliver formats and sends one signal.
func (t *TelegramSender) Deliver(ctx context.Context, s *models.Signal) error {
	text := FormatSignal(s)
	return t.gateway.Call(ctx, "notify", func(ctx context.Context) error {
		var resp telegramResponse
		err := t.http.SendAndParse(ctx, &httpclient.RequestOptions{
			Method: httpclient.MethodPost,
			URL:    fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken),
			Body: map[string]interface{}{
				"chat_id":    t.chatID,
				"text":       text,
				"parse_mode": "HTML",
			},
		}, &resp)
		if err != nil {
			return fmt.Errorf("telegram send: %w: %v", models.ErrRateLimited, err)
		}
		if !resp.OK {
			if resp.ErrorCode == 429 || resp.ErrorCode >= 500 {
				return fmt.Errorf("telegram: %w: %d %s", models.ErrRateLimited, resp.ErrorCode, resp.Description)
			}
			return fmt.Errorf("telegram: %w: %d %s", models.ErrUpstreamPermanent, resp.ErrorCode, resp.Description)
		}
		return nil
	})
}

// FormatSignal renders the message body for one signal.
func FormatSignal(s *models.Signal) string {
	var b strings.Builder
	emoji := "🟢"
	action := "BUY"
	if s.Kind == models.SignalSell {
		emoji = "🔴"
		action = "SELL"
	}
	fmt.Fprintf(&b, "%s <b>%s %s</b>\n", emoji, action, s.Symbol)
	fmt.Fprintf(&b, "Price: %.4f\n", s.Price)
	fmt.Fprintf(&b, "Confidence: %.0f%%\n", s.Confidence*100)
	if s.Trend != nil && len(s.Trend.ContributingTimeframes) > 0 {
		fmt.Fprintf(&b, "Timeframes: %s\n", strings.Join(s.Trend.ContributingTimeframes, ", "))
	}
	if s.Profile != nil {
		poc := s.Profile.PointOfControl
		fmt.Fprintf(&b, "POC: %.4f (vol %.2f)\n", poc.Low+s.Profile.BucketWidth/2, poc.Volume)
	}
	fmt.Fprintf(&b, "At: %s", s.EmittedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	return b.String()
}
