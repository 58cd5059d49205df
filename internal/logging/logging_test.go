package logging

import (
	"strings"
	"testing"
)

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"", "****"},
		{"short", "****"},
		{"12345678", "****"},
		{"abcdefghijklmnop", "abcd...mnop"},
	}
	for _, tc := range tests {
		if got := SanitizeToken(tc.token); got != tc.want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tc.token, got, tc.want)
		}
	}
}

func TestSanitizeToken_NeverLeaksMiddle(t *testing.T) {
	token := "aaaa-secret-middle-zzzz"
	got := SanitizeToken(token)
	if strings.Contains(got, "secret") {
		t.Errorf("SanitizeToken(%q) = %q leaks the token body", token, got)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "warning", "error", "bogus", ""} {
		if logger := NewLogger(level); logger == nil {
			t.Errorf("NewLogger(%q) returned nil", level)
		}
	}
}

func TestWithComponent(t *testing.T) {
	logger := NewLogger("info")
	if got := WithComponent(logger, "clips"); got == nil {
		t.Fatal("WithComponent returned nil")
	}
	if got := WithClipID(logger, "clip-1"); got == nil {
		t.Fatal("WithClipID returned nil")
	}
}
