package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/agritwin/cropcast/internal/httputil"
	"github.com/agritwin/cropcast/internal/metrics"
)

var nominatimURL = "https://nominatim.openstreetmap.org/search"

// GeocodeCache is the subset of the store the geocoder needs.
type GeocodeCache interface {
	GetGeocode(pincode string) (lat, lon float64, err error)
	PutGeocode(pincode string, lat, lon float64) error
}

// Geocoder resolves a postal pincode to approximate coordinates via
// Nominatim, caching results indefinitely (pincode centroids do not move).
type Geocoder struct {
	client  *http.Client
	cache   GeocodeCache
	country string
}

func NewGeocoder(cache GeocodeCache) *Geocoder {
	return &Geocoder{
		client:  httputil.NewClient(),
		cache:   cache,
		country: "India",
	}
}

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Resolve returns the coordinates for a pincode. Cache read failures are
// treated as misses, never surfaced.
func (g *Geocoder) Resolve(pincode string) (lat, lon float64, err error) {
	if g.cache != nil {
		// Any cache read failure, stale row included, is a miss.
		if lat, lon, err := g.cache.GetGeocode(pincode); err == nil {
			metrics.CacheHitsTotal.WithLabelValues("geocode").Inc()
			return lat, lon, nil
		}
	}

	params := url.Values{
		"postalcode": {pincode},
		"country":    {g.country},
		"format":     {"json"},
		"limit":      {"1"},
	}

	var body []byte
	operation := func() error {
		start := time.Now()
		resp, err := g.client.Get(nominatimURL + "?" + params.Encode())
		metrics.UpstreamLatency.WithLabelValues("nominatim").Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.UpstreamCallsTotal.WithLabelValues("nominatim", "error").Inc()
			return backoff.Permanent(fmt.Errorf("geocode: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			metrics.UpstreamCallsTotal.WithLabelValues("nominatim", "retry").Inc()
			return fmt.Errorf("geocode: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			metrics.UpstreamCallsTotal.WithLabelValues("nominatim", "error").Inc()
			return backoff.Permanent(fmt.Errorf("geocode: status %d", resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("geocode: read body: %w", err))
		}
		metrics.UpstreamCallsTotal.WithLabelValues("nominatim", "ok").Inc()
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		return 0, 0, err
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return 0, 0, fmt.Errorf("geocode: unmarshal: %w", err)
	}
	if len(results) == 0 {
		return 0, 0, fmt.Errorf("geocode: no coordinates for pincode %s", pincode)
	}

	lat, err = strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("geocode: parse lat: %w", err)
	}
	lon, err = strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("geocode: parse lon: %w", err)
	}

	if g.cache != nil {
		// Concurrent writers may race here; the value is identical either way.
		_ = g.cache.PutGeocode(pincode, lat, lon)
	}
	return lat, lon, nil
}
