package services

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/core/domain"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{name: "https with path", in: "https://example.com/path", want: "https://example.com/path"},
		{name: "empty path gets slash", in: "http://example.com", want: "http://example.com/"},
		{name: "host and scheme lowercased", in: "HTTPS://Example.COM/A", want: "https://example.com/A"},
		{name: "query kept", in: "https://example.com/p?q=1#frag", want: "https://example.com/p?q=1#frag"},
		{name: "port kept", in: "http://localhost:8080/x", want: "http://localhost:8080/x"},
		{name: "default http port dropped", in: "http://Example.com:80/a", want: "http://example.com/a"},
		{name: "default https port dropped", in: "https://example.com:443", want: "https://example.com/"},
		{name: "leading zero port canonicalized", in: "https://example.com:0443/", want: "https://example.com/"},
		{name: "non-default port for scheme kept", in: "http://example.com:443/", want: "http://example.com:443/"},
		{name: "ipv6 default port dropped", in: "http://[::1]:80/x", want: "http://[::1]/x"},
		{name: "idn host punycoded", in: "http://bücher.example/", want: "http://xn--bcher-kva.example/"},
		{name: "surrounding spaces trimmed", in: "  https://example.com/  ", want: "https://example.com/"},
		{name: "not a url", in: "not a url", wantErr: domain.ErrInvalidURL},
		{name: "empty", in: "", wantErr: domain.ErrInvalidURL},
		{name: "bad escape", in: "http://exa%zzmple.com", wantErr: domain.ErrInvalidURL},
		{name: "port out of range", in: "http://example.com:70000/", wantErr: domain.ErrInvalidURL},
		{name: "port zero", in: "http://example.com:0/", wantErr: domain.ErrInvalidURL},
		{name: "non-numeric port", in: "http://example.com:abc/", wantErr: domain.ErrInvalidURL},
		{name: "ftp scheme", in: "ftp://example.com/file", wantErr: domain.ErrSchemeNotAllowed},
		{name: "javascript scheme", in: "javascript:alert(1)", wantErr: domain.ErrSchemeNotAllowed},
		{name: "mailto scheme", in: "mailto:someone@example.com", wantErr: domain.ErrSchemeNotAllowed},
		{name: "no host", in: "http://", wantErr: domain.ErrMissingHost},
		{name: "triple slash", in: "https:///path/only", wantErr: domain.ErrMissingHost},
		{name: "opaque http", in: "http:example.com", wantErr: domain.ErrMissingHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateURL(tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateURLKeepsSchemeAndHost(t *testing.T) {
	inputs := []string{
		"http://a.io",
		"https://sub.domain.example.org/a/b/c?x=y",
		"https://127.0.0.1:9000/",
		"http://[::1]:8080/path",
	}
	for _, in := range inputs {
		got, err := ValidateURL(in)
		require.NoError(t, err, in)

		before, _ := url.Parse(in)
		after, err := url.Parse(got)
		require.NoError(t, err)
		assert.Equal(t, before.Scheme, after.Scheme)
		assert.True(t, strings.EqualFold(before.Host, after.Host), "%s vs %s", before.Host, after.Host)
	}
}
