package geoip

import (
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"github.com/pariz/gountries"
)

// Location is the geographic information resolved for one IP address.
type Location struct {
	City        string
	Region      string
	Country     string
	CountryCode string
	Latitude    float64
	Longitude   float64
}

// Reader resolves IP addresses against a GeoLite2/GeoIP2 City database.
// A Reader without a database is valid and resolves nothing.
type Reader struct {
	mu     sync.RWMutex
	db     *geoip2.Reader
	path   string
	logger *slog.Logger
}

var countries = gountries.New()

// Open loads the database at path. A missing or unreadable file is logged
// and leaves the reader disabled (GeoIP is optional).
func Open(path string, logger *slog.Logger) *Reader {
	r := &Reader{path: path, logger: logger}
	r.db = r.load()
	return r
}

func (r *Reader) load() *geoip2.Reader {
	if r.path == "" {
		r.logger.Debug("GeoIP database path not configured - GeoIP features disabled")
		return nil
	}

	fileInfo, err := os.Stat(r.path)
	if os.IsNotExist(err) {
		r.logger.Info("GeoLite2 database not found - GeoIP features disabled",
			slog.String("path", r.path),
			slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		return nil
	} else if err != nil {
		r.logger.Warn("Error checking GeoLite2 database file",
			slog.String("path", r.path),
			slog.Any("error", err))
		return nil
	}

	db, err := geoip2.Open(r.path)
	if err != nil {
		r.logger.Error("Failed to open GeoLite2 database",
			slog.String("path", r.path),
			slog.Any("error", err))
		return nil
	}

	r.logger.Info("GeoLite2 database initialized successfully",
		slog.String("path", r.path),
		slog.Int64("size_bytes", fileInfo.Size()))
	return db
}

// Available reports whether a database is loaded.
func (r *Reader) Available() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.db != nil
}

// Lookup resolves ip. ok is false when the address is invalid, private,
// unknown to the database or no database is loaded.
func (r *Reader) Lookup(ip string) (Location, bool) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return Location{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.db == nil {
		return Location{}, false
	}

	record, err := r.db.City(parsed)
	if err != nil {
		r.logger.Debug("GeoIP lookup failed", slog.String("ip", ip), slog.Any("error", err))
		return Location{}, false
	}

	loc := Location{
		City:        record.City.Names["en"],
		Country:     record.Country.Names["en"],
		CountryCode: strings.ToUpper(record.Country.IsoCode),
		Latitude:    record.Location.Latitude,
		Longitude:   record.Location.Longitude,
	}
	if len(record.Subdivisions) > 0 {
		loc.Region = record.Subdivisions[0].Names["en"]
	}
	if loc.Country == "" {
		loc.Country = CountryName(loc.CountryCode)
	}
	if loc.CountryCode == "" && loc.Country == "" {
		return Location{}, false
	}
	return loc, true
}

// Reload reopens the database from disk. Call this after downloading a new file.
func (r *Reader) Reload() {
	next := r.load()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db != nil {
		r.db.Close()
	}
	r.db = next

	if next != nil {
		r.logger.Info("GeoLite2 database reloaded successfully")
	}
}

// Close releases the database.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// CountryName returns the common English name for an ISO 3166 alpha-2 or
// alpha-3 code, or "" when the code is unknown.
func CountryName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	country, err := countries.FindCountryByAlpha(strings.ToUpper(code))
	if err != nil {
		return ""
	}
	return country.Name.Common
}
