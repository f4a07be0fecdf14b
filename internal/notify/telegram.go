package notify

import (
    "context"
    "fmt"
    "net/http"
    "time"

    tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram delivers messages through the Bot API.
type Telegram struct {
    bot *tgbotapi.BotAPI
}

// NewTelegram connects to the Bot API with the given token.  The HTTP
// client carries timeout as a hard upper bound because the Bot API client
// does not accept a context.
func NewTelegram(token string, timeout time.Duration) (*Telegram, error) {
    client := &http.Client{Timeout: timeout}
    bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
    if err != nil {
        return nil, fmt.Errorf("telegram: connect: %w", err)
    }
    return &Telegram{bot: bot}, nil
}

// Username returns the bot's own handle, used to build deep links.
func (t *Telegram) Username() string { return t.bot.Self.UserName }

// SendText implements Notifier.
func (t *Telegram) SendText(ctx context.Context, chatID int64, text string, kb *Keyboard) error {
    msg := tgbotapi.NewMessage(chatID, text)
    if markup := replyMarkup(kb); markup != nil {
        msg.ReplyMarkup = markup
    }
    return t.do(ctx, func() error {
        _, err := t.bot.Send(msg)
        return err
    })
}

// EditText implements Notifier.  Only inline keyboards survive an edit;
// passing nil removes the inline buttons from the message.
func (t *Telegram) EditText(ctx context.Context, chatID int64, messageID int, text string, kb *Keyboard) error {
    edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
    if kb != nil && len(kb.Inline) > 0 {
        markup := inlineMarkup(kb.Inline)
        edit.ReplyMarkup = &markup
    }
    return t.do(ctx, func() error {
        _, err := t.bot.Request(edit)
        return err
    })
}

// AnswerAction implements Notifier.
func (t *Telegram) AnswerAction(ctx context.Context, actionID, text string, alert bool) error {
    cb := tgbotapi.NewCallback(actionID, text)
    if alert {
        cb = tgbotapi.NewCallbackWithAlert(actionID, text)
    }
    return t.do(ctx, func() error {
        _, err := t.bot.Request(cb)
        return err
    })
}

// do runs call unless ctx is already done and returns early when ctx
// expires; the call itself is bounded by the HTTP client timeout.
func (t *Telegram) do(ctx context.Context, call func() error) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    done := make(chan error, 1)
    go func() { done <- call() }()
    select {
    case err := <-done:
        return err
    case <-ctx.Done():
        return ctx.Err()
    }
}

// replyMarkup converts a Keyboard into the value expected by
// MessageConfig.ReplyMarkup, or nil when there is nothing to attach.
func replyMarkup(kb *Keyboard) interface{} {
    if kb == nil {
        return nil
    }
    switch {
    case len(kb.Inline) > 0:
        return inlineMarkup(kb.Inline)
    case len(kb.Reply) > 0:
        rows := make([][]tgbotapi.KeyboardButton, 0, len(kb.Reply))
        for _, r := range kb.Reply {
            buttons := make([]tgbotapi.KeyboardButton, 0, len(r))
            for _, label := range r {
                buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
            }
            rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
        }
        markup := tgbotapi.NewReplyKeyboard(rows...)
        markup.ResizeKeyboard = true
        return markup
    case kb.Remove:
        return tgbotapi.NewRemoveKeyboard(false)
    }
    return nil
}

func inlineMarkup(rows [][]Button) tgbotapi.InlineKeyboardMarkup {
    out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
    for _, r := range rows {
        buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
        for _, b := range r {
            buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
        }
        out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
    }
    return tgbotapi.NewInlineKeyboardMarkup(out...)
}
