// Package dispatch routes decoded Telegram updates to the flow engine or
// the admin protocol and delivers whatever they asked to send.  It is the
// boundary where failures stop: everything is logged, nothing is returned
// to the webhook as an error.
package dispatch

import (
    "context"
    "errors"
    "time"

    tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
    "go.uber.org/zap"

    "github.com/cowblue-git/farm-telegram-bot/internal/admin"
    "github.com/cowblue-git/farm-telegram-bot/internal/flow"
    "github.com/cowblue-git/farm-telegram-bot/internal/model"
    "github.com/cowblue-git/farm-telegram-bot/internal/notify"
    "github.com/cowblue-git/farm-telegram-bot/internal/repository"
)

// MessageHandler is the requester conversation.
type MessageHandler interface {
    HandleMessage(ctx context.Context, in flow.Inbound) (flow.Result, error)
}

// OperatorHandler is the operator side.
type OperatorHandler interface {
    HandleAction(ctx context.Context, a admin.Action) (admin.Result, error)
    HandleCommand(ctx context.Context, chatID int64, text string) (admin.Result, bool, error)
    PublishDecision(ctx context.Context, r admin.Result)
}

// Route names the path an update took.
type Route string

const (
    RouteMessage Route = "message"
    RouteCommand Route = "command"
    RouteAction  Route = "action"
    RouteIgnored Route = "ignored"
)

// Report summarizes one dispatched update for logging and tests.
type Report struct {
    Route     Route
    Outcome   string // admin outcome for actions and commands
    Delivered int
    Failures  []notify.Failure
    Err       error // handler error, already logged
}

// Dispatcher wires the handlers to a Notifier.
type Dispatcher struct {
    Flow          MessageHandler
    Admin         OperatorHandler
    Notifier      notify.Notifier
    NotifyTimeout time.Duration
    Log           *zap.Logger
}

// Dispatch handles one update end to end.
func (d *Dispatcher) Dispatch(ctx context.Context, upd tgbotapi.Update) Report {
    switch {
    case upd.CallbackQuery != nil:
        return d.action(ctx, upd.UpdateID, upd.CallbackQuery)
    case upd.Message != nil && upd.Message.Chat != nil:
        return d.message(ctx, upd.UpdateID, upd.Message)
    }
    d.Log.Debug("update ignored", zap.Int("update_id", upd.UpdateID))
    return Report{Route: RouteIgnored}
}

func (d *Dispatcher) message(ctx context.Context, updateID int, m *tgbotapi.Message) Report {
    chatID := m.Chat.ID
    if res, handled, err := d.Admin.HandleCommand(ctx, chatID, m.Text); handled {
        rep := d.deliver(ctx, updateID, res.Messages)
        rep.Route, rep.Outcome, rep.Err = RouteCommand, res.Outcome.String(), err
        d.logErr(updateID, rep)
        return rep
    }

    in := flow.Inbound{ChatID: chatID, Text: m.Text, From: identity(m.From)}
    if in.From.ID == 0 {
        in.From.ID = chatID
    }
    res, err := d.Flow.HandleMessage(ctx, in)
    rep := d.deliver(ctx, updateID, res.Messages)
    rep.Route, rep.Err = RouteMessage, err
    d.logErr(updateID, rep)
    return rep
}

func (d *Dispatcher) action(ctx context.Context, updateID int, cq *tgbotapi.CallbackQuery) Report {
    a := admin.Action{ID: cq.ID, Actor: identity(cq.From), Data: cq.Data}
    if cq.Message != nil && cq.Message.Chat != nil {
        a.Origin = admin.Origin{ChatID: cq.Message.Chat.ID, MessageID: cq.Message.MessageID, Text: cq.Message.Text}
    }
    res, err := d.Admin.HandleAction(ctx, a)
    rep := d.deliver(ctx, updateID, res.Messages)
    rep.Route, rep.Outcome, rep.Err = RouteAction, res.Outcome.String(), err
    d.logErr(updateID, rep)
    d.Admin.PublishDecision(ctx, res)
    d.Log.Info("operator action",
        zap.Int("update_id", updateID),
        zap.Int64("actor_id", a.Actor.ID),
        zap.String("data", a.Data),
        zap.String("outcome", rep.Outcome),
    )
    return rep
}

func (d *Dispatcher) deliver(ctx context.Context, updateID int, msgs []notify.Message) Report {
    failures := notify.Deliver(ctx, d.Notifier, d.NotifyTimeout, msgs)
    for _, f := range failures {
        d.Log.Warn("notification failed",
            zap.Int("update_id", updateID),
            zap.String("kind", f.Message.Kind.String()),
            zap.Int64("chat_id", f.Message.ChatID),
            zap.Error(f.Err),
        )
    }
    return Report{Delivered: len(msgs) - len(failures), Failures: failures}
}

func (d *Dispatcher) logErr(updateID int, rep Report) {
    switch {
    case rep.Err == nil:
    case errors.Is(rep.Err, repository.ErrForbidden):
        d.Log.Warn("update from non-operator",
            zap.Int("update_id", updateID), zap.String("route", string(rep.Route)), zap.Error(rep.Err))
    default:
        d.Log.Error("update handling failed",
            zap.Int("update_id", updateID), zap.String("route", string(rep.Route)), zap.Error(rep.Err))
    }
}

func identity(u *tgbotapi.User) model.Identity {
    if u == nil {
        return model.Identity{}
    }
    return model.Identity{ID: u.ID, Username: u.UserName, FirstName: u.FirstName, LastName: u.LastName}
}
