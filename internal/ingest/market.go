package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/montanaflynn/stats"

	"github.com/agritwin/cropcast/internal/forecast"
	"github.com/agritwin/cropcast/internal/httputil"
	"github.com/agritwin/cropcast/internal/metrics"
	"github.com/agritwin/cropcast/internal/models"
)

var agmarknetURL = "https://agmarknet.gov.in/api/Report/CommodityWiseDailyReport"

// MarketClient fetches recent mandi price samples for a commodity and
// averages the modal prices. The upstream is flaky, so any failure degrades
// to the crop's default price with the Fallback flag set.
type MarketClient struct {
	client *http.Client
	now    func() time.Time
}

func NewMarketClient() *MarketClient {
	return &MarketClient{client: httputil.NewClient(), now: time.Now}
}

type mandiRecord struct {
	Commodity  string `json:"commodity"`
	State      string `json:"state"`
	District   string `json:"district"`
	ModalPrice string `json:"modal_price"`
}

// Price returns the average modal price per quintal over the last 7 days of
// reports for the crop in the given state/district.
func (c *MarketClient) Price(crop, state, district string) (models.MarketQuote, error) {
	fallback := models.MarketQuote{
		Crop:     crop,
		State:    state,
		District: district,
		AvgPrice: forecast.MetaFor(crop, 0).DefaultPrice,
		Fallback: true,
	}

	today := c.now()
	params := url.Values{
		"commodity": {crop},
		"state":     {state},
		"district":  {district},
		"fromDate":  {today.AddDate(0, 0, -7).Format("02/01/2006")},
		"toDate":    {today.Format("02/01/2006")},
	}

	var body []byte
	operation := func() error {
		start := time.Now()
		resp, err := c.client.Get(agmarknetURL + "?" + params.Encode())
		metrics.UpstreamLatency.WithLabelValues("agmarknet").Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.UpstreamCallsTotal.WithLabelValues("agmarknet", "error").Inc()
			return backoff.Permanent(fmt.Errorf("market: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			metrics.UpstreamCallsTotal.WithLabelValues("agmarknet", "retry").Inc()
			return fmt.Errorf("market: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			metrics.UpstreamCallsTotal.WithLabelValues("agmarknet", "error").Inc()
			return backoff.Permanent(fmt.Errorf("market: status %d", resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("market: read body: %w", err))
		}
		metrics.UpstreamCallsTotal.WithLabelValues("agmarknet", "ok").Inc()
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		log.Printf("market: %s fetch failed, using default price: %v", crop, err)
		return fallback, nil
	}

	var records []mandiRecord
	if err := json.Unmarshal(body, &records); err != nil {
		log.Printf("market: parse failed, using default price: %v", err)
		return fallback, nil
	}

	var prices []float64
	for _, r := range records {
		p, err := strconv.ParseFloat(r.ModalPrice, 64)
		if err != nil || p <= 0 {
			continue
		}
		prices = append(prices, p)
	}
	if len(prices) == 0 {
		return fallback, nil
	}

	avg, err := stats.Mean(prices)
	if err != nil {
		return fallback, nil
	}

	return models.MarketQuote{
		Crop:        crop,
		State:       state,
		District:    district,
		AvgPrice:    avg,
		SampleCount: len(prices),
	}, nil
}
