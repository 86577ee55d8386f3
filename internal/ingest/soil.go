package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/agritwin/cropcast/internal/forecast"
	"github.com/agritwin/cropcast/internal/httputil"
	"github.com/agritwin/cropcast/internal/metrics"
	"github.com/agritwin/cropcast/internal/models"
)

var soilgridsURL = "https://rest.isric.org/soilgrids/v2.0/properties/query"

// SoilGrids has coverage gaps in urban areas; the client probes a ring of
// nearby points before giving up.
const (
	soilSearchMaxKM  = 20
	soilSearchStepKM = 4
	kmPerDegree      = 111.0
)

// SoilClient fetches topsoil chemistry from SoilGrids. When the upstream has
// no data for a location the client degrades to the fixed default record with
// the Degraded flag set rather than failing the forecast.
type SoilClient struct {
	client *http.Client
	geo    *Geocoder
	cache  SummaryCache
	now    func() time.Time
}

func NewSoilClient(geo *Geocoder, cache SummaryCache) *SoilClient {
	return &SoilClient{
		client: httputil.NewClient(),
		geo:    geo,
		cache:  cache,
		now:    time.Now,
	}
}

// Summary returns the soil record for a pincode, degraded-by-default on any
// upstream failure. The returned error is reserved for programming errors;
// data unavailability is expressed through the Degraded flag.
func (c *SoilClient) Summary(pincode string) (models.SoilSummary, error) {
	var cached models.SoilSummary
	if c.cache != nil {
		if err := c.cache.GetCachedSummary("soil_cache", pincode, c.now(), &cached); err == nil {
			metrics.CacheHitsTotal.WithLabelValues("soil").Inc()
			return cached, nil
		}
	}

	summary := c.fetch(pincode)
	if c.cache != nil && !summary.Degraded {
		_ = c.cache.PutCachedSummary("soil_cache", pincode, c.now(), summary)
	}
	return summary, nil
}

func (c *SoilClient) fetch(pincode string) models.SoilSummary {
	lat, lon, err := c.geo.Resolve(pincode)
	if err != nil {
		log.Printf("soil: geocode %s failed, using defaults: %v", pincode, err)
		return forecast.DefaultSoil()
	}

	// Probe outward from the exact point until a grid cell with data is hit.
	for r := 0; r <= soilSearchMaxKM; r += soilSearchStepKM {
		for angle := 0; angle < 360; angle += 90 {
			dy := float64(r) / kmPerDegree * math.Sin(float64(angle)*math.Pi/180)
			dx := float64(r) / kmPerDegree * math.Cos(float64(angle)*math.Pi/180)

			summary, ok := c.query(lat+dy, lon+dx)
			if ok {
				return summary
			}
			if r == 0 {
				break // only one probe at the centre
			}
		}
	}

	log.Printf("soil: no data within %d km of pincode %s, using defaults", soilSearchMaxKM, pincode)
	return forecast.DefaultSoil()
}

type soilgridsResponse struct {
	Properties struct {
		Layers []struct {
			Name        string `json:"name"`
			UnitMeasure struct {
				DFactor float64 `json:"d_factor"`
			} `json:"unit_measure"`
			Depths []struct {
				Values struct {
					Mean *float64 `json:"mean"`
				} `json:"values"`
			} `json:"depths"`
		} `json:"layers"`
	} `json:"properties"`
}

func (c *SoilClient) query(lat, lon float64) (models.SoilSummary, bool) {
	params := url.Values{
		"lat":   {fmt.Sprintf("%f", lat)},
		"lon":   {fmt.Sprintf("%f", lon)},
		"depth": {"0-5cm"},
		"value": {"mean"},
	}
	for _, prop := range []string{"phh2o", "soc", "sand", "silt", "clay"} {
		params.Add("property", prop)
	}

	var body []byte
	operation := func() error {
		start := time.Now()
		resp, err := c.client.Get(soilgridsURL + "?" + params.Encode())
		metrics.UpstreamLatency.WithLabelValues("soilgrids").Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.UpstreamCallsTotal.WithLabelValues("soilgrids", "error").Inc()
			return backoff.Permanent(fmt.Errorf("soil: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			metrics.UpstreamCallsTotal.WithLabelValues("soilgrids", "retry").Inc()
			return fmt.Errorf("soil: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			metrics.UpstreamCallsTotal.WithLabelValues("soilgrids", "error").Inc()
			return backoff.Permanent(fmt.Errorf("soil: status %d", resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("soil: read body: %w", err))
		}
		metrics.UpstreamCallsTotal.WithLabelValues("soilgrids", "ok").Inc()
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		return models.SoilSummary{}, false
	}

	var resp soilgridsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.SoilSummary{}, false
	}

	values := map[string]float64{}
	for _, layer := range resp.Properties.Layers {
		if len(layer.Depths) == 0 || layer.Depths[0].Values.Mean == nil {
			continue
		}
		// d_factor converts the integer-packed mean back to its unit.
		d := layer.UnitMeasure.DFactor
		if d == 0 {
			d = 1
		}
		values[layer.Name] = *layer.Depths[0].Values.Mean / d
	}
	if len(values) == 0 {
		return models.SoilSummary{}, false
	}

	return models.SoilSummary{
		PH:               values["phh2o"],
		OrganicCarbonPct: values["soc"] / 10, // g/kg -> percent by mass
		SandPct:          values["sand"],
		SiltPct:          values["silt"],
		ClayPct:          values["clay"],
	}, true
}
