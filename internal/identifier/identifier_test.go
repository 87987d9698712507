package identifier

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "quotes and symbols stripped",
			input: `Someone's "device" #1-2_3`,
			want:  "someones-device-1-2-3",
		},
		{
			name:  "spaces collapse",
			input: "Living   Room",
			want:  "living-room",
		},
		{
			name:  "tabs and newlines collapse",
			input: "Main\t\nLight",
			want:  "main-light",
		},
		{
			name:  "non-breaking space becomes dash",
			input: "Front\u00a0Door",
			want:  "front-door",
		},
		{
			name:  "dashes kept",
			input: "Wall-Plug",
			want:  "wall-plug",
		},
		{
			name:  "underscore runs become one dash",
			input: "a__b _ c",
			want:  "a-b-c",
		},
		{
			name:  "non-latin letters kept",
			input: "Łazienka Górna",
			want:  "łazienka-górna",
		},
		{
			name:  "combining marks kept",
			input: "Café",
			want:  "café",
		},
		{
			name:  "digits kept",
			input: "Room 101",
			want:  "room-101",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
		{
			name:  "only symbols",
			input: "#!?",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		`Someone's "device" #1-2_3`,
		"Living Room",
		"  leading and trailing  ",
		"Łazienka Górna",
		"a__b _ c",
		"ÉCLAIRAGE Salon",
		"x́ y",
		"",
	}

	for _, input := range inputs {
		once := Normalize(input)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", input, once, twice)
		}
	}
}

func TestJoin(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{
			name:  "room category device",
			parts: []string{"Living Room", "Climate", "Temperature"},
			want:  "living-room/climate/temperature",
		},
		{
			name:  "room device",
			parts: []string{"Kitchen", "Light"},
			want:  "kitchen/light",
		},
		{
			name:  "already normalized parts",
			parts: []string{"kitchen", "light"},
			want:  "kitchen/light",
		},
		{
			name:  "single part",
			parts: []string{"Hall"},
			want:  "hall",
		},
		{
			name:  "no parts",
			parts: nil,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Join(tt.parts); got != tt.want {
				t.Errorf("Join(%v) = %q, want %q", tt.parts, got, tt.want)
			}
		})
	}
}
