package availability

import (
	"reflect"
	"testing"
	"time"

	"github.com/nmoreira/consultorio-server/cmd/models"
	"github.com/nmoreira/consultorio-server/service/settings"
)

func TestParseHM(t *testing.T) {
	cases := []struct {
		input   string
		minutes int
		wantErr bool
	}{
		{input: "00:00", minutes: 0},
		{input: "08:00", minutes: 480},
		{input: "09:05", minutes: 545},
		{input: "19:00", minutes: 1140},
		{input: "23:59", minutes: 1439},
		{input: "24:00", wantErr: true},
		{input: "12:60", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, c := range cases {
		minutes, err := parseHM(c.input)
		if c.wantErr {
			if err == nil {
				t.Fatalf("parseHM(%q): expected error, got %d", c.input, minutes)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseHM(%q): unexpected error: %v", c.input, err)
		}
		if minutes != c.minutes {
			t.Fatalf("parseHM(%q): expected %d, got %d", c.input, c.minutes, minutes)
		}
	}
}

func TestFormatHM(t *testing.T) {
	cases := map[int]string{
		0:    "00:00",
		480:  "08:00",
		545:  "09:05",
		1140: "19:00",
	}

	for minutes, expected := range cases {
		if got := formatHM(minutes); got != expected {
			t.Fatalf("formatHM(%d): expected %s, got %s", minutes, expected, got)
		}
	}
}

func TestResolveDayRule(t *testing.T) {
	rule := &models.AvailabilityRule{
		DayOfWeek:           1,
		StartTime:           "08:00",
		EndTime:             "12:00",
		SlotDurationMinutes: 60,
		IsAvailable:         true,
	}

	cases := []struct {
		name         string
		override     *settings.DayOverride
		rule         *models.AvailabilityRule
		slotInterval int
		expected     DayRule
	}{
		{
			name:     "rule only",
			rule:     rule,
			expected: DayRule{Enabled: true, Start: "08:00", End: "12:00", SlotMinutes: 60, Source: SourceRule},
		},
		{
			name:     "override beats rule",
			override: &settings.DayOverride{Enabled: true, Start: "09:00", End: "13:00"},
			rule:     rule,
			expected: DayRule{Enabled: true, Start: "09:00", End: "13:00", SlotMinutes: 60, Source: SourceOverride},
		},
		{
			name:     "disabled override beats enabled rule",
			override: &settings.DayOverride{Enabled: false, Start: "09:00", End: "13:00"},
			rule:     rule,
			expected: DayRule{Enabled: false, Start: "09:00", End: "13:00", SlotMinutes: 60, Source: SourceOverride},
		},
		{
			name:     "override without rule",
			override: &settings.DayOverride{Enabled: true, Start: "10:00", End: "14:00"},
			expected: DayRule{Enabled: true, Start: "10:00", End: "14:00", SlotMinutes: 60, Source: SourceOverride},
		},
		{
			name:     "neither override nor rule",
			expected: DayRule{Enabled: false, SlotMinutes: 60, Source: SourceNone},
		},
		{
			name:         "slot interval beats rule duration",
			rule:         rule,
			slotInterval: 30,
			expected:     DayRule{Enabled: true, Start: "08:00", End: "12:00", SlotMinutes: 30, Source: SourceRule},
		},
	}

	for _, c := range cases {
		resolved := ResolveDayRule(c.override, c.rule, c.slotInterval)
		if !reflect.DeepEqual(resolved, c.expected) {
			t.Fatalf("%s: expected %+v, got %+v", c.name, c.expected, resolved)
		}
	}
}

func mondayRule() DayRule {
	return DayRule{Enabled: true, Start: "08:00", End: "12:00", SlotMinutes: 60, Source: SourceRule}
}

func nextMonday() time.Time {
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	if date.Weekday() != time.Monday {
		panic("fixture is not a Monday")
	}
	return date
}

func TestComputeDaySlots(t *testing.T) {
	monday := nextMonday()

	cases := []struct {
		name     string
		input    DayInput
		expected []string
	}{
		{
			name:     "morning window, hourly slots",
			input:    DayInput{Rule: mondayRule(), Date: monday, Location: time.UTC},
			expected: []string{"08:00", "09:00", "10:00", "11:00"},
		},
		{
			name: "disabled rule yields empty",
			input: DayInput{
				Rule: DayRule{Enabled: false, Start: "08:00", End: "12:00", SlotMinutes: 60},
				Date: monday, Location: time.UTC,
			},
			expected: []string{},
		},
		{
			name:     "blocked date yields empty",
			input:    DayInput{Rule: mondayRule(), Blocked: true, Date: monday, Location: time.UTC},
			expected: []string{},
		},
		{
			name: "booked time excluded",
			input: DayInput{
				Rule: mondayRule(), Date: monday, Location: time.UTC,
				BookedTimes: []string{"09:00"}, BookedCount: 1,
			},
			expected: []string{"08:00", "10:00", "11:00"},
		},
		{
			name: "daily limit reached closes the whole day",
			input: DayInput{
				Rule: mondayRule(), Date: monday, Location: time.UTC,
				BookedTimes: []string{"09:00"}, BookedCount: 1, DailyLimit: 1,
			},
			expected: []string{},
		},
		{
			name: "daily limit not yet reached",
			input: DayInput{
				Rule: mondayRule(), Date: monday, Location: time.UTC,
				BookedTimes: []string{"09:00"}, BookedCount: 1, DailyLimit: 2,
			},
			expected: []string{"08:00", "10:00", "11:00"},
		},
		{
			name: "slot not fitting before close is dropped",
			input: DayInput{
				Rule: DayRule{Enabled: true, Start: "08:00", End: "12:30", SlotMinutes: 60},
				Date: monday, Location: time.UTC,
			},
			expected: []string{"08:00", "09:00", "10:00", "11:00"},
		},
		{
			name: "thirty minute slots",
			input: DayInput{
				Rule: DayRule{Enabled: true, Start: "08:00", End: "10:00", SlotMinutes: 30},
				Date: monday, Location: time.UTC,
			},
			expected: []string{"08:00", "08:30", "09:00", "09:30"},
		},
		{
			name: "busy interval removes overlapping slots",
			input: DayInput{
				Rule: mondayRule(), Date: monday, Location: time.UTC,
				Busy: []Interval{{
					Start: time.Date(2026, 9, 7, 9, 30, 0, 0, time.UTC),
					End:   time.Date(2026, 9, 7, 10, 30, 0, 0, time.UTC),
				}},
			},
			expected: []string{"08:00", "11:00"},
		},
		{
			name: "reversed window yields empty",
			input: DayInput{
				Rule: DayRule{Enabled: true, Start: "12:00", End: "08:00", SlotMinutes: 60},
				Date: monday, Location: time.UTC,
			},
			expected: []string{},
		},
		{
			name: "zero width window yields empty",
			input: DayInput{
				Rule: DayRule{Enabled: true, Start: "08:00", End: "08:00", SlotMinutes: 60},
				Date: monday, Location: time.UTC,
			},
			expected: []string{},
		},
		{
			name: "busy interval abutting a slot leaves the earlier slot",
			input: DayInput{
				Rule: mondayRule(), Date: monday, Location: time.UTC,
				Busy: []Interval{{
					Start: time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC),
					End:   time.Date(2026, 9, 7, 11, 0, 0, 0, time.UTC),
				}},
			},
			expected: []string{"08:00", "09:00", "11:00"},
		},
	}

	for _, c := range cases {
		slots := ComputeDaySlots(c.input)
		if !reflect.DeepEqual(slots, c.expected) {
			t.Fatalf("%s: expected %v, got %v", c.name, c.expected, slots)
		}
	}
}
