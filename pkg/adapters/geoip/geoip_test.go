package geoip

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMissingDatabase(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "GeoLite2-City.mmdb"))
	assert.Error(t, err)
}

func TestLookupSkipsBadAndLocalAddresses(t *testing.T) {
	r := &Resolver{}

	_, _, err := r.Lookup("not-an-ip")
	assert.ErrorIs(t, err, ErrInvalidIP)

	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "192.168.0.10", "::1"} {
		country, city, err := r.Lookup(ip)
		require.NoError(t, err, ip)
		assert.Empty(t, country)
		assert.Empty(t, city)
	}
}

func TestCloseNil(t *testing.T) {
	var r *Resolver
	assert.NoError(t, r.Close())
}
