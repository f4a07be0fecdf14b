package flow

import (
    "regexp"
    "strconv"
    "strings"

    "github.com/cowblue-git/farm-telegram-bot/internal/catalog"
)

var (
    handleRe = regexp.MustCompile(`^@[A-Za-z0-9_]{4,32}$`)
    phoneRe  = regexp.MustCompile(`^[0-9+\-().\s]+$`)
    digitsRe = regexp.MustCompile(`[0-9]+`)
)

// excursionPeople maps every accepted party-size label to its stored form.
var excursionPeople = map[string]string{
    "1": "1", "2": "2", "3": "3", "4": "4", "5": "5", "6": "6",
    catalog.PeopleBand:          catalog.PeopleBandCanonical,
    catalog.PeopleBandCanonical: catalog.PeopleBandCanonical,
    catalog.PeopleMany:          catalog.PeopleManyCanonical,
    catalog.PeopleManyCanonical: catalog.PeopleManyCanonical,
}

// NormalizeExcursionPeople returns the canonical form of an excursion
// party-size label, or false for anything that is not one of the buttons.
func NormalizeExcursionPeople(s string) (string, bool) {
    v, ok := excursionPeople[strings.TrimSpace(s)]
    return v, ok
}

// ValidContact accepts a Telegram handle or a phone number with 10 to 15
// digits.
func ValidContact(s string) bool {
    s = strings.TrimSpace(s)
    if handleRe.MatchString(s) {
        return true
    }
    if !phoneRe.MatchString(s) {
        return false
    }
    n := 0
    for _, r := range s {
        if r >= '0' && r <= '9' {
            n++
        }
    }
    return n >= 10 && n <= 15
}

// PartySize extracts the largest integer in s, 0 when there is none.
// "6-10" yields 10 and "11+" yields 11.
func PartySize(s string) int {
    best := 0
    for _, m := range digitsRe.FindAllString(s, -1) {
        n, err := strconv.Atoi(m)
        if err == nil && n > best {
            best = n
        }
    }
    return best
}
