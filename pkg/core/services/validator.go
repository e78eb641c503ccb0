package services

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/wadjakorntonsri/go-qr-shortener/pkg/core/domain"
	"golang.org/x/net/idna"
)

var hostProfile = idna.New(
	idna.MapForLookup(),
	idna.BidiRule(),
	idna.Transitional(false),
	idna.StrictDomainName(false),
)

var defaultPorts = map[string]string{"http": "80", "https": "443"}

// ValidateURL checks that raw is an absolute http(s) URL with a host and
// returns its normalized form. No network check is made.
func ValidateURL(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !parsed.IsAbs() {
		return "", domain.ErrInvalidURL
	}

	// url.Parse already lower-cases the scheme.
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", domain.ErrSchemeNotAllowed
	}
	if parsed.Hostname() == "" {
		return "", domain.ErrMissingHost
	}

	host, err := normalizeHost(parsed.Hostname())
	if err != nil {
		return "", err
	}

	port := parsed.Port()
	if port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return "", domain.ErrInvalidURL
		}
		port = strconv.Itoa(n)
		if port == defaultPorts[parsed.Scheme] {
			port = ""
		}
	}

	switch {
	case port != "":
		parsed.Host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		parsed.Host = "[" + host + "]"
	default:
		parsed.Host = host
	}

	if parsed.Path == "" && parsed.RawPath == "" {
		parsed.Path = "/"
	}
	return parsed.String(), nil
}

// normalizeHost lower-cases host and converts internationalized names to
// their punycode form. IP literals pass through unchanged.
func normalizeHost(host string) (string, error) {
	host = strings.ToLower(host)
	if strings.Contains(host, ":") || net.ParseIP(host) != nil {
		return host, nil
	}
	ascii, err := hostProfile.ToASCII(host)
	if err != nil {
		return "", domain.ErrInvalidURL
	}
	return ascii, nil
}
