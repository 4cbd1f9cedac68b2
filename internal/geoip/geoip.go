// Package geoip resolves player addresses to countries using a maxmind
// format database such as the geoacumen country db.
package geoip

import (
	"errors"
	"net"
	"net/netip"

	"github.com/oschwald/maxminddb-golang/v2"
)

var (
	ErrOpenDB    = errors.New("failed to open geoip database")
	ErrInvalidIP = errors.New("invalid ip")
	ErrLookup    = errors.New("error trying to lookup address")
)

type Record struct {
	Country struct {
		ISOCode string            `maxminddb:"iso_code"`
		Names   map[string]string `maxminddb:"names"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
}

// Open loads the database at path. The db file is not distributed with the
// binary and must be fetched separately.
func Open(path string) (*DB, error) {
	reader, errReader := maxminddb.Open(path)
	if errReader != nil {
		return nil, errors.Join(errReader, ErrOpenDB)
	}

	return &DB{reader: reader}, nil
}

type DB struct {
	reader *maxminddb.Reader
}

func (d *DB) Close() error {
	return d.reader.Close()
}

// Lookup resolves an ip or a host:port pair to a record. Hostnames are
// rejected rather than resolved; callers run on the world owner goroutine
// and must never block on DNS.
func (d *DB) Lookup(address string) (Record, error) {
	var record Record

	ip, errParse := parseHost(address)
	if errParse != nil {
		return record, errParse
	}

	if err := d.reader.Lookup(ip).Decode(&record); err != nil {
		return record, errors.Join(err, ErrLookup)
	}

	return record, nil
}

func parseHost(address string) (netip.Addr, error) {
	if host, _, errSplit := net.SplitHostPort(address); errSplit == nil {
		address = host
	}

	ip, errParse := netip.ParseAddr(address)
	if errParse != nil {
		return netip.Addr{}, errors.Join(errParse, ErrInvalidIP)
	}

	return ip, nil
}
