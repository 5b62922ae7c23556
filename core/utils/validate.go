package utils

import (
	"regexp"
	"strings"
)

var (
	slugRe     = regexp.MustCompile(`^[a-z0-9-]+$`)
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9._-]{2,64}$`)
)

// ValidateSlug accepts lowercase alphanumerics and hyphens only.
func ValidateSlug(slug string) bool {
	return slug != "" && len(slug) <= 64 && slugRe.MatchString(slug)
}

func ValidateUsername(name string) bool {
	return usernameRe.MatchString(name)
}

func ValidatePassword(pw string) bool {
	return len(pw) >= 8 && len(pw) <= 256
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
