package coupons

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// tokenSuffixBytes is the number of random bytes in the token suffix
// (3 bytes -> 6 hex chars -> ~16.7M values per year-prefix).
const tokenSuffixBytes = 3

var tokenPattern = regexp.MustCompile(`^[A-Z]+-\d{4}-[A-F0-9]{6}$`)

// GenerateToken returns a coupon token in the form PREFIX-YYYY-XXXXXX where
// XXXXXX is 6 uppercase hex characters from crypto/rand. The generator does
// not coordinate with anything; uniqueness is enforced by the store's
// unique index and the registration retry loop.
func GenerateToken(prefix string) (string, error) {
	b := make([]byte, tokenSuffixBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	suffix := strings.ToUpper(hex.EncodeToString(b))
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().Year(), suffix), nil
}

// ValidTokenFormat reports whether s looks like a coupon token.
func ValidTokenFormat(s string) bool {
	return tokenPattern.MatchString(s)
}
