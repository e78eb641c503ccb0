// Package geoip resolves scan IPs to a country and city using a MaxMind
// GeoLite2-City database.
package geoip

import (
	"errors"
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/ports"
)

var ErrInvalidIP = errors.New("invalid ip address")

type Resolver struct {
	db *geoip2.Reader
}

func Open(path string) (*Resolver, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &Resolver{db: db}, nil
}

// Lookup returns the English country and city names of ip. Either may be
// empty when the database has no name for it.
func (r *Resolver) Lookup(ip string) (country, city string, err error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", "", ErrInvalidIP
	}
	if parsed.IsLoopback() || parsed.IsPrivate() {
		return "", "", nil
	}

	record, err := r.db.City(parsed)
	if err != nil {
		return "", "", err
	}
	return record.Country.Names["en"], record.City.Names["en"], nil
}

func (r *Resolver) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

var _ ports.GeoResolver = (*Resolver)(nil)
