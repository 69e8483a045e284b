package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		if got := confirm(strings.NewReader(tt.input), &out, "sure? "); got != tt.expected {
			t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.expected)
		}
		if out.String() != "sure? " {
			t.Errorf("unexpected prompt %q", out.String())
		}
	}
}
