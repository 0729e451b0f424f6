package dns

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupReturnsIPLiterals(t *testing.T) {
	for _, host := range []string{"127.0.0.1", "::1"} {
		ip, err := Lookup(context.Background(), host)
		require.NoError(t, err)
		assert.Equal(t, host, ip)
	}
}

func TestPickPrefersIPv4(t *testing.T) {
	ip, err := pick([]string{"2001:db8::1", "192.0.2.10"})
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.10", ip)

	ip, err = pick([]string{"2001:db8::1"})
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::1", ip)

	_, err = pick(nil)
	assert.ErrorIs(t, err, errNoAddress)
}

func TestTrimBrackets(t *testing.T) {
	assert.Equal(t, "2606:4700:4700::1111", trimBrackets("[2606:4700:4700::1111]"))
	assert.Equal(t, "1.1.1.1", trimBrackets("1.1.1.1"))
}
