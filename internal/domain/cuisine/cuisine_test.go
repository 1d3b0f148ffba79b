package cuisine

import "testing"

func TestCanonical(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"italian", "義大利菜"},
		{"Italian", "義大利菜"},
		{"義式", "義大利菜"},
		{"日本料理", "日式"},
		{"四川菜", "川菜"},
		{"ＫＯＲＥＡＮ", "韓式"},
		{"mexican", "mexican"},
	}
	for _, tt := range tests {
		if got := Canonical(tt.in); got != tt.want {
			t.Errorf("Canonical(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"附近有什麼好吃的日式料理？", "日式", true},
		{"我想吃義大利麵", "義大利菜", true},
		{"any good thai place nearby", "泰式", true},
		{"隨便吃什麼都好", "", false},
	}
	for _, tt := range tests {
		got, ok := Detect(tt.text)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Detect(%q) = %q,%v want %q,%v", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		have, want string
		ok         bool
	}{
		{"義大利菜", "義大利", true},
		{"義大利菜", "italian", true},
		{"日式", "日式", true},
		{"日式", "Japanese", true},
		{"川菜", "日式", false},
		{"日式", "", true},
		{"", "日式", false},
	}
	for _, tt := range tests {
		if got := Match(tt.have, tt.want); got != tt.ok {
			t.Errorf("Match(%q,%q) = %v want %v", tt.have, tt.want, got, tt.ok)
		}
	}
}
