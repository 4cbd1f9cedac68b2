package geoip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenMissing(t *testing.T) {
	t.Parallel()

	_, err := Open(t.TempDir() + "/missing.mmdb")
	require.ErrorIs(t, err, ErrOpenDB)
}

func TestParseHost(t *testing.T) {
	t.Parallel()

	ip, err := parseHost("169.254.0.1:27005")
	require.NoError(t, err)
	require.Equal(t, "169.254.0.1", ip.String())

	ip, err = parseHost("169.254.0.1")
	require.NoError(t, err)
	require.Equal(t, "169.254.0.1", ip.String())

	_, err = parseHost("not an address")
	require.ErrorIs(t, err, ErrInvalidIP)

	// Hostnames fail fast instead of hitting the resolver.
	_, err = parseHost("stun.example.com:3478")
	require.ErrorIs(t, err, ErrInvalidIP)
}
