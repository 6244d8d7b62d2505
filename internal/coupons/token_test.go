package coupons

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTokenFormat(t *testing.T) {
	token, err := GenerateToken("CONF")
	require.NoError(t, err)

	assert.True(t, ValidTokenFormat(token), "generated token %q must match the format", token)
	assert.True(t, strings.HasPrefix(token, fmt.Sprintf("CONF-%d-", time.Now().Year())))

	parts := strings.Split(token, "-")
	require.Len(t, parts, 3)
	assert.Len(t, parts[2], 6)
	assert.Equal(t, strings.ToUpper(parts[2]), parts[2])
}

func TestGenerateTokenDistinctness(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		token, err := GenerateToken("CONF")
		require.NoError(t, err)
		if _, dup := seen[token]; dup {
			t.Fatalf("duplicate token %q after %d generations", token, i)
		}
		seen[token] = struct{}{}
	}
}

func TestValidTokenFormat(t *testing.T) {
	valid := []string{
		"CONF-2026-A1B2C3",
		"MEAL-1999-FFFFFF",
		"X-0000-000000",
	}
	for _, s := range valid {
		assert.True(t, ValidTokenFormat(s), "%q should be valid", s)
	}

	invalid := []string{
		"",
		"CONF-2026-A1B2C",    // suffix too short
		"CONF-2026-A1B2C3D",  // suffix too long
		"conf-2026-A1B2C3",   // lowercase prefix
		"CONF-2026-a1b2c3",   // lowercase suffix
		"CONF-26-A1B2C3",     // short year
		"CONF-2026-G1B2C3",   // non-hex suffix
		"CONF2026A1B2C3",     // no separators
		" CONF-2026-A1B2C3",  // leading space
		"CONF-2026-A1B2C3 ",  // trailing space
	}
	for _, s := range invalid {
		assert.False(t, ValidTokenFormat(s), "%q should be invalid", s)
	}
}
