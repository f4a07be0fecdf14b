package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cowblue-git/farm-telegram-bot/internal/dispatch"
)

// secretHeader carries the token configured with setWebhook.
const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// maxUpdateBytes caps the body of one webhook delivery.
const maxUpdateBytes = 1 << 20

// Dispatcher handles one decoded update.
type Dispatcher interface {
	Dispatch(ctx context.Context, upd tgbotapi.Update) dispatch.Report
}

// WebhookHandler receives Telegram updates.  It answers 200 for every
// delivery that carries the right secret, including malformed ones and
// ones whose handling failed, so Telegram never retries or disables the
// webhook.
type WebhookHandler struct {
	Dispatcher Dispatcher
	Secret     string
	Timeout    time.Duration
	Log        *zap.Logger
}

func (h *WebhookHandler) Handle(c echo.Context) error {
	if h.Secret != "" {
		got := c.Request().Header.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
			h.Log.Warn("webhook: bad secret token", zap.String("ip", c.RealIP()))
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
	}

	var upd tgbotapi.Update
	if err := json.NewDecoder(io.LimitReader(c.Request().Body, maxUpdateBytes)).Decode(&upd); err != nil {
		h.Log.Info("webhook: malformed update ignored", zap.Error(err))
		return c.JSON(http.StatusOK, echo.Map{"ok": true})
	}

	h.dispatch(c.Request().Context(), upd)
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// dispatch runs one update.  A panic is logged and swallowed so the
// delivery is still acknowledged.
func (h *WebhookHandler) dispatch(parent context.Context, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			h.Log.Error("webhook: panic while handling update",
				zap.Int("update_id", upd.UpdateID), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	// detached from the request so a client hang-up does not abort
	// half-applied store writes
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), h.Timeout)
	defer cancel()

	start := time.Now()
	rep := h.Dispatcher.Dispatch(ctx, upd)
	h.Log.Debug("webhook: update handled",
		zap.Int("update_id", upd.UpdateID),
		zap.String("route", string(rep.Route)),
		zap.Int("delivered", rep.Delivered),
		zap.Int("failed", len(rep.Failures)),
		zap.Duration("took", time.Since(start)),
	)
}
