package model

// Event is a bookable holiday event from the compiled-in catalog.  Events
// are never persisted; only their capacity counters are.
//
// Fields:
//  ID       – stable slug, used in store keys and deep links.
//  Label    – menu button text the requester taps.
//  Date     – human readable date.
//  Title    – event title shown in confirmations.
//  Capacity – total seats, at least 1.
type Event struct {
    ID       string `json:"id"`
    Label    string `json:"label"`
    Date     string `json:"date"`
    Title    string `json:"title"`
    Capacity int    `json:"capacity"`
}

// Identity is the chat user behind an inbound update.
type Identity struct {
    ID        int64
    Username  string
    FirstName string
    LastName  string
}

// DisplayName returns the best human-readable name for the identity.
func (i Identity) DisplayName() string {
    name := i.FirstName
    if i.LastName != "" {
        if name != "" {
            name += " "
        }
        name += i.LastName
    }
    if name == "" && i.Username != "" {
        return "@" + i.Username
    }
    return name
}
