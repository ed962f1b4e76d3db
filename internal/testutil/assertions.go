package testutil

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsascontentcorner/guilddash/internal/models"
)

// AssertSessionEqual compares the fields a store must round-trip.
// Timestamps are compared with a small tolerance.
func AssertSessionEqual(t *testing.T, expected, actual *models.Session) {
	t.Helper()

	assert.Equal(t, expected.Token, actual.Token, "Token should match")
	assert.Equal(t, expected.User, actual.User, "User should match")
	assert.Equal(t, expected.AccessToken.Value(), actual.AccessToken.Value(), "AccessToken should match")
	assert.Equal(t, expected.Guilds, actual.Guilds, "Guilds should match")

	AssertTimeAlmostEqual(t, expected.CreatedAt, actual.CreatedAt, time.Second)
	AssertTimeAlmostEqual(t, expected.ExpiresAt, actual.ExpiresAt, time.Second)
}

// AssertAuthErrorRedirect checks that location is {dashboard}/?auth_error=<message>
// with the message percent-encoded.
func AssertAuthErrorRedirect(t *testing.T, location, dashboardURL, message string) {
	t.Helper()

	u, err := url.Parse(location)
	require.NoError(t, err, "Location should be a valid URL")

	base, err := url.Parse(dashboardURL)
	require.NoError(t, err)

	assert.Equal(t, base.Host, u.Host, "redirect should go to the dashboard host")
	assert.Equal(t, "/", u.Path)
	assert.Equal(t, message, u.Query().Get("auth_error"))
	assert.NotContains(t, u.RawQuery, "+", "spaces should be encoded as %20")
}

// AssertTimeAlmostEqual checks if two times are within a specified delta.
// Useful for timestamp comparisons where exact equality isn't expected.
func AssertTimeAlmostEqual(t *testing.T, expected, actual time.Time, delta time.Duration) {
	t.Helper()

	diff := expected.Sub(actual)
	if diff < 0 {
		diff = -diff
	}

	assert.True(t,
		diff <= delta,
		"Times should be within %v of each other. Expected: %v, Actual: %v, Diff: %v",
		delta, expected, actual, diff,
	)
}
