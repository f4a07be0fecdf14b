package catalog

import (
    "fmt"
    "strings"

    "github.com/cowblue-git/farm-telegram-bot/internal/model"
)

// BookingSummary renders the operator-facing description of b, without a
// header line.
func BookingSummary(b model.Booking) string {
    var sb strings.Builder
    a := b.Answers
    if b.Type == model.BookingEvent {
        fmt.Fprintf(&sb, "Событие: %s (%s)\n", a.EventTitle, a.EventDate)
    } else {
        sb.WriteString("Экскурсия\n")
        fmt.Fprintf(&sb, "Дата: %s\nВремя: %s\n", a.Date, a.Time)
    }
    fmt.Fprintf(&sb, "Имя: %s\n", a.Name)
    fmt.Fprintf(&sb, "Человек: %s\n", a.People)
    fmt.Fprintf(&sb, "Контакт: %s", a.Contact)
    if a.Username != "" {
        fmt.Fprintf(&sb, "\nTelegram: @%s", a.Username)
    }
    return sb.String()
}

// StatusWord is the Russian past participle for a booking status.
func StatusWord(s model.BookingStatus) string {
    switch s {
    case model.StatusConfirmed:
        return StatusWordConfirmed
    case model.StatusCancelled:
        return StatusWordCancelled
    case model.StatusNew:
        return StatusWordNew
    }
    return string(s)
}
