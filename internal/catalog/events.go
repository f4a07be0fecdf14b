// Package catalog holds the compiled-in list of holiday events and the
// fixed menu texts of the bot.  Nothing in here is mutable at runtime.
package catalog

import "github.com/cowblue-git/farm-telegram-bot/internal/model"

// Catalog is a read-only, ordered set of events.
type Catalog struct {
    events  []model.Event
    byID    map[string]int
    byLabel map[string]int
}

// New builds a catalog from events in display order.  Duplicate ids or
// labels and non-positive capacities are programming errors and panic.
func New(events []model.Event) *Catalog {
    c := &Catalog{
        events:  make([]model.Event, len(events)),
        byID:    make(map[string]int, len(events)),
        byLabel: make(map[string]int, len(events)),
    }
    copy(c.events, events)
    for i, ev := range c.events {
        if ev.Capacity < 1 {
            panic("catalog: capacity must be at least 1 for " + ev.ID)
        }
        if _, dup := c.byID[ev.ID]; dup {
            panic("catalog: duplicate event id " + ev.ID)
        }
        if _, dup := c.byLabel[ev.Label]; dup {
            panic("catalog: duplicate event label " + ev.Label)
        }
        c.byID[ev.ID] = i
        c.byLabel[ev.Label] = i
    }
    return c
}

// Default returns the farm's holiday program.
func Default() *Catalog {
    return New([]model.Event{
        {ID: "ny-2812", Label: "🎄 28 декабря — Новогодняя ёлка", Date: "28 декабря, 12:00", Title: "Новогодняя ёлка на ферме", Capacity: 30},
        {ID: "ny-0301", Label: "☃️ 3 января — Зимние забавы", Date: "3 января, 11:00", Title: "Зимние забавы с Дедом Морозом", Capacity: 25},
        {ID: "xmas-0701", Label: "⭐ 7 января — Рождественская ярмарка", Date: "7 января, 13:00", Title: "Рождественская ярмарка и мастер-классы", Capacity: 40},
        {ID: "masl-0103", Label: "🥞 1 марта — Масленица", Date: "1 марта, 12:00", Title: "Масленица: блины и катание на санях", Capacity: 50},
    })
}

// All returns the events in display order.  The slice is a copy.
func (c *Catalog) All() []model.Event {
    out := make([]model.Event, len(c.events))
    copy(out, c.events)
    return out
}

// Lookup returns the event with the given id.
func (c *Catalog) Lookup(id string) (model.Event, bool) {
    i, ok := c.byID[id]
    if !ok {
        return model.Event{}, false
    }
    return c.events[i], true
}

// ByLabel returns the event whose menu label equals label exactly.
func (c *Catalog) ByLabel(label string) (model.Event, bool) {
    i, ok := c.byLabel[label]
    if !ok {
        return model.Event{}, false
    }
    return c.events[i], true
}

// Labels returns the menu labels in display order.
func (c *Catalog) Labels() []string {
    out := make([]string, 0, len(c.events))
    for _, ev := range c.events {
        out = append(out, ev.Label)
    }
    return out
}
