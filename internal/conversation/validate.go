// ABOUTME: Free-text validators for conversation input
// ABOUTME: Names need two tokens; phones are +7 followed by exactly ten digits

package conversation

import (
	"regexp"
	"strings"
)

var phonePattern = regexp.MustCompile(`^\+7\d{10}$`)

// ValidName reports whether s looks like a full name: at least two
// whitespace-separated tokens.
func ValidName(s string) bool {
	return len(strings.Fields(s)) >= 2
}

// ValidPhone reports whether s is "+7" followed by exactly ten digits.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(strings.TrimSpace(s))
}
