package settings

import (
	"reflect"
	"testing"
)

func TestParseOverrides(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		expected map[int]DayOverride
		wantErr  bool
	}{
		{
			name: "weekday overrides",
			raw:  `{"1":{"enabled":true,"start":"09:00","end":"13:00"},"6":{"enabled":false,"start":"","end":""}}`,
			expected: map[int]DayOverride{
				1: {Enabled: true, Start: "09:00", End: "13:00"},
				6: {Enabled: false},
			},
		},
		{
			name:     "out of range day keys are dropped",
			raw:      `{"7":{"enabled":true,"start":"09:00","end":"13:00"},"-1":{"enabled":true,"start":"08:00","end":"12:00"}}`,
			expected: map[int]DayOverride{},
		},
		{
			name:     "non numeric keys are dropped",
			raw:      `{"monday":{"enabled":true,"start":"09:00","end":"13:00"}}`,
			expected: map[int]DayOverride{},
		},
		{
			name:     "empty object",
			raw:      `{}`,
			expected: map[int]DayOverride{},
		},
		{
			name:    "malformed json",
			raw:     `{"1":`,
			wantErr: true,
		},
		{
			name:    "reversed window rejected",
			raw:     `{"1":{"enabled":true,"start":"12:00","end":"08:00"}}`,
			wantErr: true,
		},
		{
			name:    "zero width window rejected",
			raw:     `{"1":{"enabled":true,"start":"09:00","end":"09:00"}}`,
			wantErr: true,
		},
		{
			name:    "malformed window time rejected",
			raw:     `{"1":{"enabled":true,"start":"9am","end":"12:00"}}`,
			wantErr: true,
		},
		{
			name: "disabled override skips window check",
			raw:  `{"2":{"enabled":false,"start":"12:00","end":"08:00"}}`,
			expected: map[int]DayOverride{
				2: {Enabled: false, Start: "12:00", End: "08:00"},
			},
		},
	}

	for _, c := range cases {
		overrides, err := parseOverrides(c.raw)
		if c.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error, got %v", c.name, overrides)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.name, err)
		}
		if !reflect.DeepEqual(overrides, c.expected) {
			t.Fatalf("%s: expected %v, got %v", c.name, c.expected, overrides)
		}
	}
}

func TestParsePositiveInt(t *testing.T) {
	cases := map[string]int{
		"":    0,
		"0":   0,
		"30":  30,
		"-5":  0,
		"abc": 0,
		"1.5": 0,
	}

	for raw, expected := range cases {
		if got := parsePositiveInt(raw); got != expected {
			t.Fatalf("parsePositiveInt(%q): expected %d, got %d", raw, expected, got)
		}
	}
}

func TestCalendarConfigComplete(t *testing.T) {
	complete := CalendarConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		RefreshToken: "token",
		CalendarID:   "primary",
	}
	if !complete.Complete() {
		t.Fatal("expected complete config")
	}

	partial := complete
	partial.RefreshToken = ""
	if partial.Complete() {
		t.Fatal("expected incomplete config without refresh token")
	}

	if (CalendarConfig{}).Complete() {
		t.Fatal("expected zero config to be incomplete")
	}
}
