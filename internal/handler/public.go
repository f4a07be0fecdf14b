// Package handler exposes the HTTP surface of the bot: the Telegram
// webhook, the operator API and the public catalog.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cowblue-git/farm-telegram-bot/internal/admin"
)

// Summarizer reports per-event capacity.
type Summarizer interface {
	Summary(ctx context.Context) ([]admin.EventSummary, error)
}

// PublicHandler serves unauthenticated catalog browsing.  Responses omit
// exact seat counts.
type PublicHandler struct {
	Events      Summarizer
	BotUsername string // used for deep links; empty omits them
}

// PublicEvent is an event as shown to the public.
type PublicEvent struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Date  string `json:"date"`
	Title string `json:"title"`
	Open  bool   `json:"open"`
	Link  string `json:"link,omitempty"`
}

// ListEvents returns the catalog with an open/closed flag per event.
func (h *PublicHandler) ListEvents(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Events.Summary(ctx)
	if err != nil {
		c.Logger().Errorf("public events: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "events unavailable"})
	}
	out := make([]PublicEvent, 0, len(rows))
	for _, r := range rows {
		pe := PublicEvent{ID: r.Event.ID, Label: r.Event.Label, Date: r.Event.Date, Title: r.Event.Title, Open: r.Open}
		if h.BotUsername != "" && r.Open {
			pe.Link = "https://t.me/" + h.BotUsername + "?start=event_" + r.Event.ID
		}
		out = append(out, pe)
	}
	return c.JSON(http.StatusOK, echo.Map{"events": out})
}
