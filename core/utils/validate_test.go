package utils

import (
	"strings"
	"testing"
)

func TestValidateSlug(t *testing.T) {
	cases := []struct {
		slug string
		ok   bool
	}{
		{"acme", true},
		{"acme-2", true},
		{"a", true},
		{"", false},
		{"Acme", false},
		{"acme corp", false},
		{"acme!", false},
		{strings.Repeat("a", 64), true},
		{strings.Repeat("a", 65), false},
	}
	for _, c := range cases {
		if got := ValidateSlug(c.slug); got != c.ok {
			t.Errorf("ValidateSlug(%q) = %v, want %v", c.slug, got, c.ok)
		}
	}
}

func TestValidateUsername(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
	}{
		{"alice", true},
		{"a.lice_9-x", true},
		{"a", false},
		{"", false},
		{"bad user", false},
		{"bad!user", false},
		{strings.Repeat("a", 64), true},
		{strings.Repeat("a", 65), false},
	}
	for _, c := range cases {
		if got := ValidateUsername(c.name); got != c.ok {
			t.Errorf("ValidateUsername(%q) = %v, want %v", c.name, got, c.ok)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		pw string
		ok bool
	}{
		{"short", false},
		{"longenough", true},
		{strings.Repeat("p", 8), true},
		{strings.Repeat("p", 256), true},
		{strings.Repeat("p", 257), false},
	}
	for _, c := range cases {
		if got := ValidatePassword(c.pw); got != c.ok {
			t.Errorf("ValidatePassword(len %d) = %v, want %v", len(c.pw), got, c.ok)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Acme.TEST "); got != "alice@acme.test" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}
