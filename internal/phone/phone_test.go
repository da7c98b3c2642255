package phone

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"11 digits with extra 9", "11987654321", "551187654321" + Suffix},
		{"11 digits formatted", "(11) 98765-4321", "551187654321" + Suffix},
		{"11 digits without extra 9", "11887654321", "5511887654321" + Suffix},
		{"13 digits with extra 9", "5511987654321", "551187654321" + Suffix},
		{"13 digits with plus sign", "+55 11 98765-4321", "551187654321" + Suffix},
		{"13 digits without 9 at position 5", "5511887654321", "5511887654321" + Suffix},
		{"13 digits other country", "4411987654321", "4411987654321" + Suffix},
		{"12 digits untouched", "551187654321", "551187654321" + Suffix},
		{"10 digits untouched", "1187654321", "1187654321" + Suffix},
		{"short garbage passes through", "abc12", "12" + Suffix},
		{"legacy c.us address", "551187654321@c.us", "551187654321" + Suffix},
		{"empty", "", ""},
		{"no digits", "n/a", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"11987654321", "5511987654321", "551187654321", "1187654321", "99"}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize(Normalize(%q)) = %q, want %q", in, twice, once)
		}
	}
}

func TestDigits(t *testing.T) {
	if got := Digits("551187654321" + Suffix); got != "551187654321" {
		t.Errorf("Digits(address) = %q, want user part", got)
	}
	if got := Digits("+55 (11) 8765-4321"); got != "551187654321" {
		t.Errorf("Digits = %q", got)
	}
}
