package util

import (
	"reflect"
	"testing"
)

func TestFixEscapeQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no escapes", "adder", "adder"},
		{"one escape", `say ""hi""`, `say "hi"`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FixEscapeQuotes(tt.input)
			if result != tt.expected {
				t.Errorf("FixEscapeQuotes(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`  "ADDER" `, "ADDER"},
		{`"the ""best"" car"`, `the "best" car`},
		{"12", "12"},
		{`"say ""hi"""`, `say "hi"`},
		{`""`, ""},
	}

	for _, tt := range tests {
		if got := Unquote(tt.input); got != tt.expected {
			t.Errorf("Unquote(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestSplitArray(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"bracketed", "[12,0]", []string{"12", "0"}},
		{"bare", "12, 0", []string{"12", "0"}},
		{"quoted", `["a","b"]`, []string{"a", "b"}},
		{"empty array", "[]", nil},
		{"empty", "", nil},
		{"single", "[5]", []string{"5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitArray(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("SplitArray(%q) = %#v, want %#v", tt.input, got, tt.expected)
			}
		})
	}
}
