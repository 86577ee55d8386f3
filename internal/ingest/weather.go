package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/montanaflynn/stats"

	"github.com/agritwin/cropcast/internal/httputil"
	"github.com/agritwin/cropcast/internal/metrics"
	"github.com/agritwin/cropcast/internal/models"
)

var powerBaseURL = "https://power.larc.nasa.gov/api/temporal/daily/point"

// NASA POWER reports -999 for days it has no reading.
const powerMissing = -999.0

// SummaryCache is the day-keyed cache the weather client writes through.
type SummaryCache interface {
	GetCachedSummary(table, pincode string, day time.Time, out any) error
	PutCachedSummary(table, pincode string, day time.Time, v any) error
}

// WeatherClient fetches 7-day weather aggregates from the NASA POWER daily
// point API, geocoding pincodes and caching one summary per pincode per day.
type WeatherClient struct {
	client *http.Client
	geo    *Geocoder
	cache  SummaryCache
	now    func() time.Time
}

func NewWeatherClient(geo *Geocoder, cache SummaryCache) *WeatherClient {
	return &WeatherClient{
		client: httputil.NewClient(),
		geo:    geo,
		cache:  cache,
		now:    time.Now,
	}
}

type cachedWeather struct {
	Summary models.WeatherSummary `json:"summary"`
	Daily   []models.DailyWeather `json:"daily"`
}

// Summary returns 7-day rainfall total and temperature/humidity means for a
// pincode. A stale or missing cache entry is a miss, never an error.
func (c *WeatherClient) Summary(pincode string) (models.WeatherSummary, error) {
	data, err := c.fetchCached(pincode)
	if err != nil {
		return models.WeatherSummary{}, err
	}
	return data.Summary, nil
}

// WeeklySeries returns the per-day records behind the summary, used for
// splitting irrigation estimates across the week.
func (c *WeatherClient) WeeklySeries(pincode string) ([]models.DailyWeather, error) {
	data, err := c.fetchCached(pincode)
	if err != nil {
		return nil, err
	}
	return data.Daily, nil
}

func (c *WeatherClient) fetchCached(pincode string) (*cachedWeather, error) {
	today := c.now()
	var cached cachedWeather
	if c.cache != nil {
		// An unreadable entry from a racing writer is a miss, same as absent.
		if err := c.cache.GetCachedSummary("weather_cache", pincode, today, &cached); err == nil {
			metrics.CacheHitsTotal.WithLabelValues("weather").Inc()
			return &cached, nil
		}
	}

	data, err := c.fetch(pincode)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		_ = c.cache.PutCachedSummary("weather_cache", pincode, today, data)
	}
	return data, nil
}

func (c *WeatherClient) fetch(pincode string) (*cachedWeather, error) {
	lat, lon, err := c.geo.Resolve(pincode)
	if err != nil {
		return nil, fmt.Errorf("weather: %w", err)
	}

	end := c.now().AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -6)

	params := url.Values{
		"parameters": {"T2M,RH2M,PRECTOTCORR"},
		"start":      {start.Format("20060102")},
		"end":        {end.Format("20060102")},
		"latitude":   {fmt.Sprintf("%f", lat)},
		"longitude":  {fmt.Sprintf("%f", lon)},
		"format":     {"JSON"},
		"community":  {"AG"},
	}

	var body []byte
	operation := func() error {
		startReq := time.Now()
		resp, err := c.client.Get(powerBaseURL + "?" + params.Encode())
		metrics.UpstreamLatency.WithLabelValues("power").Observe(time.Since(startReq).Seconds())
		if err != nil {
			metrics.UpstreamCallsTotal.WithLabelValues("power", "error").Inc()
			return backoff.Permanent(fmt.Errorf("weather: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			metrics.UpstreamCallsTotal.WithLabelValues("power", "retry").Inc()
			return fmt.Errorf("weather: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			metrics.UpstreamCallsTotal.WithLabelValues("power", "error").Inc()
			return backoff.Permanent(fmt.Errorf("weather: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("weather: read body: %w", err))
		}
		metrics.UpstreamCallsTotal.WithLabelValues("power", "ok").Inc()
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}

	return parsePower(body)
}

type powerResponse struct {
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

// parsePower flattens the POWER parameter maps (keyed by YYYYMMDD) into a
// sorted daily series and the 7-day aggregates.
func parsePower(body []byte) (*cachedWeather, error) {
	var resp powerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("weather: unmarshal: %w", err)
	}

	temps := resp.Properties.Parameter["T2M"]
	hums := resp.Properties.Parameter["RH2M"]
	rains := resp.Properties.Parameter["PRECTOTCORR"]

	days := make([]string, 0, len(temps))
	for day := range temps {
		days = append(days, day)
	}
	sort.Strings(days)
	if len(days) == 0 {
		return nil, fmt.Errorf("weather: no daily records in response")
	}

	var daily []models.DailyWeather
	var rainVals, tempVals, humVals []float64
	for _, day := range days {
		date, err := time.Parse("20060102", day)
		if err != nil {
			continue
		}
		rain := missingToZero(rains[day])
		temp := missingToZero(temps[day])
		hum := missingToZero(hums[day])

		daily = append(daily, models.DailyWeather{
			Date:       date,
			DayName:    date.Format("Mon"),
			RainfallMM: rain,
			TempC:      temp,
		})
		rainVals = append(rainVals, rain)
		tempVals = append(tempVals, temp)
		humVals = append(humVals, hum)
	}

	rainTotal, _ := stats.Sum(rainVals)
	tempAvg, _ := stats.Mean(tempVals)
	humAvg, _ := stats.Mean(humVals)

	return &cachedWeather{
		Summary: models.WeatherSummary{
			Rainfall7dTotal: rainTotal,
			Temp7dAvg:       tempAvg,
			Humidity7dAvg:   humAvg,
		},
		Daily: daily,
	}, nil
}

func missingToZero(v float64) float64 {
	if v == powerMissing {
		return 0
	}
	return v
}
