package ingest

import (
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agritwin/cropcast/internal/models"
)

func TestParsePower(t *testing.T) {
	body := []byte(`{
		"properties": {
			"parameter": {
				"T2M":         {"20260601": 30.0, "20260602": 32.0, "20260603": 28.0},
				"RH2M":        {"20260601": 70.0, "20260602": 80.0, "20260603": 60.0},
				"PRECTOTCORR": {"20260601": 5.0, "20260602": -999.0, "20260603": 10.0}
			}
		}
	}`)

	data, err := parsePower(body)
	if err != nil {
		t.Fatalf("parsePower: %v", err)
	}

	// The -999 sentinel counts as zero rainfall, not as missing data.
	if got := data.Summary.Rainfall7dTotal; math.Abs(got-15.0) > 1e-9 {
		t.Errorf("rainfall total = %v, want 15.0", got)
	}
	if got := data.Summary.Temp7dAvg; math.Abs(got-30.0) > 1e-9 {
		t.Errorf("temp avg = %v, want 30.0", got)
	}
	if got := data.Summary.Humidity7dAvg; math.Abs(got-70.0) > 1e-9 {
		t.Errorf("humidity avg = %v, want 70.0", got)
	}

	if len(data.Daily) != 3 {
		t.Fatalf("daily records = %d, want 3", len(data.Daily))
	}
	if !data.Daily[0].Date.Before(data.Daily[1].Date) || !data.Daily[1].Date.Before(data.Daily[2].Date) {
		t.Error("daily records not sorted by date")
	}
	if data.Daily[0].DayName != "Mon" {
		t.Errorf("day name for 2026-06-01 = %q, want Mon", data.Daily[0].DayName)
	}
	if data.Daily[1].RainfallMM != 0 {
		t.Errorf("missing rainfall = %v, want 0", data.Daily[1].RainfallMM)
	}
}

func TestParsePowerEmptyResponse(t *testing.T) {
	if _, err := parsePower([]byte(`{"properties":{"parameter":{}}}`)); err == nil {
		t.Error("expected error for response with no daily records")
	}
}

func TestParsePowerBadJSON(t *testing.T) {
	if _, err := parsePower([]byte(`<html>not json</html>`)); err == nil {
		t.Error("expected error for non-JSON body")
	}
}

func TestMissingToZero(t *testing.T) {
	if got := missingToZero(-999.0); got != 0 {
		t.Errorf("missingToZero(-999) = %v, want 0", got)
	}
	if got := missingToZero(12.5); got != 12.5 {
		t.Errorf("missingToZero(12.5) = %v, want 12.5", got)
	}
	if got := missingToZero(0); got != 0 {
		t.Errorf("missingToZero(0) = %v, want 0", got)
	}
}

type fakeGeoCache struct {
	lat, lon float64
	hit      bool
	puts     int
}

func (f *fakeGeoCache) GetGeocode(pincode string) (float64, float64, error) {
	if f.hit {
		return f.lat, f.lon, nil
	}
	return 0, 0, fmt.Errorf("not found")
}

func (f *fakeGeoCache) PutGeocode(pincode string, lat, lon float64) error {
	f.puts++
	f.lat, f.lon = lat, lon
	return nil
}

func TestGeocoderCacheHit(t *testing.T) {
	cache := &fakeGeoCache{lat: 18.52, lon: 73.85, hit: true}
	geo := NewGeocoder(cache)

	// A cache hit must never touch the network.
	old := nominatimURL
	nominatimURL = "http://127.0.0.1:1"
	defer func() { nominatimURL = old }()

	lat, lon, err := geo.Resolve("411001")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if lat != 18.52 || lon != 73.85 {
		t.Errorf("Resolve = (%v, %v), want (18.52, 73.85)", lat, lon)
	}
}

func TestGeocoderFetchesAndCaches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("postalcode"); got != "411001" {
			t.Errorf("postalcode = %q, want 411001", got)
		}
		if got := r.URL.Query().Get("country"); got != "India" {
			t.Errorf("country = %q, want India", got)
		}
		fmt.Fprint(w, `[{"lat":"18.52","lon":"73.85"}]`)
	}))
	defer srv.Close()

	old := nominatimURL
	nominatimURL = srv.URL
	defer func() { nominatimURL = old }()

	cache := &fakeGeoCache{}
	geo := NewGeocoder(cache)

	lat, lon, err := geo.Resolve("411001")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if lat != 18.52 || lon != 73.85 {
		t.Errorf("Resolve = (%v, %v), want (18.52, 73.85)", lat, lon)
	}
	if cache.puts != 1 {
		t.Errorf("cache puts = %d, want 1", cache.puts)
	}
}

func TestGeocoderNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	old := nominatimURL
	nominatimURL = srv.URL
	defer func() { nominatimURL = old }()

	geo := NewGeocoder(nil)
	if _, _, err := geo.Resolve("000000"); err == nil {
		t.Error("expected error for pincode with no coordinates")
	}
}

type fakeSummaryCache struct {
	stored *cachedWeather
	puts   int
}

func (f *fakeSummaryCache) GetCachedSummary(table, pincode string, day time.Time, out any) error {
	if f.stored == nil {
		return fmt.Errorf("not found")
	}
	*out.(*cachedWeather) = *f.stored
	return nil
}

func (f *fakeSummaryCache) PutCachedSummary(table, pincode string, day time.Time, v any) error {
	f.puts++
	return nil
}

func TestWeatherSummaryCacheHit(t *testing.T) {
	cache := &fakeSummaryCache{stored: &cachedWeather{
		Summary: models.WeatherSummary{Rainfall7dTotal: 12, Temp7dAvg: 29, Humidity7dAvg: 65},
		Daily:   []models.DailyWeather{{DayName: "Mon", RainfallMM: 12}},
	}}

	c := NewWeatherClient(NewGeocoder(nil), cache)

	// Cached summaries must be served without resolving the pincode.
	old := powerBaseURL
	powerBaseURL = "http://127.0.0.1:1"
	defer func() { powerBaseURL = old }()

	sum, err := c.Summary("411001")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Rainfall7dTotal != 12 || sum.Temp7dAvg != 29 {
		t.Errorf("Summary = %+v, want cached values", sum)
	}

	daily, err := c.WeeklySeries("411001")
	if err != nil {
		t.Fatalf("WeeklySeries: %v", err)
	}
	if len(daily) != 1 || daily[0].DayName != "Mon" {
		t.Errorf("WeeklySeries = %+v, want cached record", daily)
	}
}

func TestMarketPriceAveragesModalPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("commodity"); got != "Rice" {
			t.Errorf("commodity = %q, want Rice", got)
		}
		fmt.Fprint(w, `[
			{"commodity":"Rice","state":"Maharashtra","district":"Pune","modal_price":"2400"},
			{"commodity":"Rice","state":"Maharashtra","district":"Pune","modal_price":"2600"},
			{"commodity":"Rice","state":"Maharashtra","district":"Pune","modal_price":"not a number"},
			{"commodity":"Rice","state":"Maharashtra","district":"Pune","modal_price":"0"}
		]`)
	}))
	defer srv.Close()

	old := agmarknetURL
	agmarknetURL = srv.URL
	defer func() { agmarknetURL = old }()

	c := NewMarketClient()
	quote, err := c.Price("Rice", "Maharashtra", "Pune")
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if quote.Fallback {
		t.Error("quote marked fallback despite valid records")
	}
	if math.Abs(quote.AvgPrice-2500) > 1e-9 {
		t.Errorf("avg price = %v, want 2500", quote.AvgPrice)
	}
	if quote.SampleCount != 2 {
		t.Errorf("sample count = %d, want 2 (unparseable and zero prices skipped)", quote.SampleCount)
	}
}

func TestMarketPriceFallback(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html>maintenance</html>`)
		}},
		{"no records", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[]`)
		}},
		{"all prices invalid", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[{"modal_price":"-5"},{"modal_price":""}]`)
		}},
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "no report", http.StatusNotFound)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			old := agmarknetURL
			agmarknetURL = srv.URL
			defer func() { agmarknetURL = old }()

			c := NewMarketClient()
			quote, err := c.Price("Rice", "Maharashtra", "Pune")
			if err != nil {
				t.Fatalf("Price should degrade, not error: %v", err)
			}
			if !quote.Fallback {
				t.Error("quote not marked fallback")
			}
			if quote.AvgPrice != 2200 {
				t.Errorf("fallback price = %v, want rice default 2200", quote.AvgPrice)
			}
		})
	}
}

func soilGeocoder(t *testing.T) (*Geocoder, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"lat":"18.52","lon":"73.85"}]`)
	}))
	old := nominatimURL
	nominatimURL = srv.URL
	return NewGeocoder(nil), func() {
		nominatimURL = old
		srv.Close()
	}
}

func TestSoilSummaryScalesByDFactor(t *testing.T) {
	geo, cleanup := soilGeocoder(t)
	defer cleanup()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"properties":{"layers":[
			{"name":"phh2o","unit_measure":{"d_factor":10},"depths":[{"values":{"mean":65}}]},
			{"name":"soc","unit_measure":{"d_factor":10},"depths":[{"values":{"mean":120}}]},
			{"name":"sand","unit_measure":{"d_factor":1},"depths":[{"values":{"mean":40}}]},
			{"name":"silt","unit_measure":{"d_factor":1},"depths":[{"values":{"mean":30}}]},
			{"name":"clay","unit_measure":{"d_factor":1},"depths":[{"values":{"mean":30}}]}
		]}}`)
	}))
	defer srv.Close()

	old := soilgridsURL
	soilgridsURL = srv.URL
	defer func() { soilgridsURL = old }()

	c := NewSoilClient(geo, nil)
	sum, err := c.Summary("411001")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Degraded {
		t.Error("summary degraded despite upstream data")
	}
	if math.Abs(sum.PH-6.5) > 1e-9 {
		t.Errorf("pH = %v, want 6.5 (65 / d_factor 10)", sum.PH)
	}
	// SoilGrids reports SOC in dg/kg; after d_factor it is g/kg, then
	// divided by 10 into percent by mass.
	if math.Abs(sum.OrganicCarbonPct-1.2) > 1e-9 {
		t.Errorf("SOC = %v, want 1.2", sum.OrganicCarbonPct)
	}
	if sum.SandPct != 40 || sum.SiltPct != 30 || sum.ClayPct != 30 {
		t.Errorf("texture = %v/%v/%v, want 40/30/30", sum.SandPct, sum.SiltPct, sum.ClayPct)
	}
}

func TestSoilSummaryDegradesWhenNoData(t *testing.T) {
	geo, cleanup := soilGeocoder(t)
	defer cleanup()

	var probes int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes++
		// Null means signal a grid cell without data at every probe point.
		fmt.Fprint(w, `{"properties":{"layers":[
			{"name":"phh2o","unit_measure":{"d_factor":10},"depths":[{"values":{"mean":null}}]}
		]}}`)
	}))
	defer srv.Close()

	old := soilgridsURL
	soilgridsURL = srv.URL
	defer func() { soilgridsURL = old }()

	c := NewSoilClient(geo, nil)
	sum, err := c.Summary("411001")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if !sum.Degraded {
		t.Error("summary not degraded after probe exhaustion")
	}
	if sum.PH != 7.0 {
		t.Errorf("fallback pH = %v, want 7.0", sum.PH)
	}
	// One centre probe plus four directions per ring at 4, 8, 12, 16, 20 km.
	if probes != 21 {
		t.Errorf("probe count = %d, want 21", probes)
	}
}

func TestSoilSummaryCachesOnlyRealData(t *testing.T) {
	geo, cleanup := soilGeocoder(t)
	defer cleanup()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"properties":{"layers":[]}}`)
	}))
	defer srv.Close()

	old := soilgridsURL
	soilgridsURL = srv.URL
	defer func() { soilgridsURL = old }()

	cache := &fakeSummaryCache{}
	c := NewSoilClient(geo, cache)
	if _, err := c.Summary("411001"); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if cache.puts != 0 {
		t.Errorf("degraded summary was cached (%d puts), want none", cache.puts)
	}
}
