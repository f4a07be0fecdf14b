package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cowblue-git/farm-telegram-bot/internal/admin"
	"github.com/cowblue-git/farm-telegram-bot/internal/catalog"
	"github.com/cowblue-git/farm-telegram-bot/internal/model"
	"github.com/cowblue-git/farm-telegram-bot/internal/repository"
	"github.com/cowblue-git/farm-telegram-bot/internal/utils"
)

// Projections are the read-only operator views.
type Projections interface {
	Summary(ctx context.Context) ([]admin.EventSummary, error)
	Roster(ctx context.Context, eventID string) (model.Event, []model.Booking, error)
}

// AdminHandler serves the operator HTTP API.
type AdminHandler struct {
	Views        Projections
	OperatorID   int64
	PasswordHash string // bcrypt; empty disables login
	JWTSecret    string
	AccessTTLMin int
}

type loginReq struct {
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// bookingView is a roster row as returned by the API.
type bookingView struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	StatusRU  string     `json:"status_ru"`
	Name      string     `json:"name"`
	People    int        `json:"people"`
	Contact   string     `json:"contact"`
	Username  string     `json:"username,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
}

// Login exchanges the operator password for an access token.
func (h *AdminHandler) Login(c echo.Context) error {
	if h.PasswordHash == "" {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "operator login disabled"})
	}
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Password) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password required"})
	}
	if !utils.VerifyPassword(h.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	access, err := utils.NewAccessToken(h.JWTSecret, strconv.FormatInt(h.OperatorID, 10), utils.RoleOperator, h.AccessTTLMin, time.Now())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"access": tokenPart{Token: access.Token, Expires: access.Exp}})
}

// Events returns booked/capacity for every event.
func (h *AdminHandler) Events(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Views.Summary(ctx)
	if err != nil {
		c.Logger().Errorf("summary: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "summary failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"events": rows})
}

// EventBookings returns the roster of one event.
func (h *AdminHandler) EventBookings(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev, bookings, err := h.Views.Roster(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	}
	if err != nil {
		c.Logger().Errorf("roster %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "roster failed"})
	}

	out := make([]bookingView, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, bookingView{
			ID:        b.ID,
			Status:    string(b.Status),
			StatusRU:  catalog.StatusWord(b.Status),
			Name:      b.Answers.Name,
			People:    b.People,
			Contact:   b.Answers.Contact,
			Username:  b.Answers.Username,
			CreatedAt: b.CreatedAt,
			DecidedAt: b.DecidedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"event": ev, "bookings": out})
}
