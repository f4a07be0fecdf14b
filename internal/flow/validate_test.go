package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidContact(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"+7 999 123-45-67", true},
		{"8 (999) 123.45.67", true},
		{"+441234567890123", true},
		{"12345", false},
		{"+1234567890123456", false},
		{"@john_doe", true},
		{"@abcd", true},
		{"@a", false},
		{"@abc", false},
		{"@john-doe", false},
		{"john_doe", false},
		{"call me 9991234567", false},
		{"", false},
	}
	for _, test := range tests {
		assert.Equalf(t, test.want, ValidContact(test.input), "contact %q", test.input)
	}
}

func TestNormalizeExcursionPeople(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"1", "1", true},
		{"6", "6", true},
		{"6–10", "6-10", true},
		{"6-10", "6-10", true},
		{"более 11", "11+", true},
		{"11+", "11+", true},
		{"7", "", false},
		{"0", "", false},
		{"много", "", false},
	}
	for _, test := range tests {
		got, ok := NormalizeExcursionPeople(test.input)
		assert.Equalf(t, test.ok, ok, "label %q", test.input)
		assert.Equalf(t, test.want, got, "label %q", test.input)
	}
}

func TestPartySize(t *testing.T) {
	assert.Equal(t, 3, PartySize("3"))
	assert.Equal(t, 10, PartySize("6-10"))
	assert.Equal(t, 11, PartySize("11+"))
	assert.Equal(t, 4, PartySize("нас 2 взрослых и 4 ребёнка"))
	assert.Equal(t, 0, PartySize("трое"))
}

func TestParseCommand(t *testing.T) {
	cmd, payload := parseCommand("/start@farm_bot event_ny-2812")
	assert.Equal(t, "/start", cmd)
	assert.Equal(t, "event_ny-2812", payload)

	cmd, payload = parseCommand("/START")
	assert.Equal(t, "/start", cmd)
	assert.Empty(t, payload)

	cmd, _ = parseCommand("привет")
	assert.Empty(t, cmd)
}
