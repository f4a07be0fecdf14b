// Package notify describes outbound chat instructions and delivers them
// through a Notifier.  The core packages only build Message values; the
// dispatcher hands them to Deliver.
package notify

import (
    "context"
    "fmt"
    "time"
)

// Button is an inline button carrying an action payload.
type Button struct {
    Text string
    Data string
}

// Keyboard describes the markup attached to a message.  Reply rows become
// a custom reply keyboard, Inline rows an inline keyboard; Remove hides a
// previously shown reply keyboard.  Only one of the three should be set.
type Keyboard struct {
    Reply  [][]string
    Inline [][]Button
    Remove bool
}

// ReplyRows lays labels out in rows of perRow buttons.
func ReplyRows(labels []string, perRow int) *Keyboard {
    if perRow < 1 {
        perRow = 1
    }
    kb := &Keyboard{}
    for i := 0; i < len(labels); i += perRow {
        end := i + perRow
        if end > len(labels) {
            end = len(labels)
        }
        row := make([]string, end-i)
        copy(row, labels[i:end])
        kb.Reply = append(kb.Reply, row)
    }
    return kb
}

// Kind selects the transport call used for a Message.
type Kind int

const (
    KindSend   Kind = iota // new message to ChatID
    KindEdit               // replace text of ChatID/MessageID
    KindAnswer             // acknowledge action ActionID
)

func (k Kind) String() string {
    switch k {
    case KindSend:
        return "send"
    case KindEdit:
        return "edit"
    case KindAnswer:
        return "answer"
    }
    return fmt.Sprintf("kind(%d)", int(k))
}

// Message is one outbound instruction.
type Message struct {
    Kind      Kind
    ChatID    int64
    MessageID int
    ActionID  string
    Text      string
    Alert     bool
    Keyboard  *Keyboard
}

// Send builds a KindSend message.
func Send(chatID int64, text string, kb *Keyboard) Message {
    return Message{Kind: KindSend, ChatID: chatID, Text: text, Keyboard: kb}
}

// Edit builds a KindEdit message.
func Edit(chatID int64, messageID int, text string, kb *Keyboard) Message {
    return Message{Kind: KindEdit, ChatID: chatID, MessageID: messageID, Text: text, Keyboard: kb}
}

// Answer builds a KindAnswer message.
func Answer(actionID, text string, alert bool) Message {
    return Message{Kind: KindAnswer, ActionID: actionID, Text: text, Alert: alert}
}

// Notifier is the transport used to talk back to chat users.
type Notifier interface {
    SendText(ctx context.Context, chatID int64, text string, kb *Keyboard) error
    EditText(ctx context.Context, chatID int64, messageID int, text string, kb *Keyboard) error
    AnswerAction(ctx context.Context, actionID, text string, alert bool) error
}

// Failure records one message that could not be delivered.
type Failure struct {
    Message Message
    Err     error
}

func (f Failure) Error() string {
    return fmt.Sprintf("%s to chat %d: %v", f.Message.Kind, f.Message.ChatID, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Deliver sends every message in order, each bounded by timeout.  A failed
// message does not stop the remaining ones; the failures are returned for
// the caller to log.
func Deliver(ctx context.Context, n Notifier, timeout time.Duration, msgs []Message) []Failure {
    var failures []Failure
    for _, m := range msgs {
        if err := deliverOne(ctx, n, timeout, m); err != nil {
            failures = append(failures, Failure{Message: m, Err: err})
        }
    }
    return failures
}

func deliverOne(ctx context.Context, n Notifier, timeout time.Duration, m Message) error {
    if timeout > 0 {
        var cancel context.CancelFunc
        ctx, cancel = context.WithTimeout(ctx, timeout)
        defer cancel()
    }
    switch m.Kind {
    case KindSend:
        return n.SendText(ctx, m.ChatID, m.Text, m.Keyboard)
    case KindEdit:
        return n.EditText(ctx, m.ChatID, m.MessageID, m.Text, m.Keyboard)
    case KindAnswer:
        return n.AnswerAction(ctx, m.ActionID, m.Text, m.Alert)
    }
    return fmt.Errorf("unknown message kind %s", m.Kind)
}
