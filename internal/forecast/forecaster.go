package forecast

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agritwin/cropcast/internal/metrics"
	"github.com/agritwin/cropcast/internal/models"
)

// ErrNoProfile is returned when no profile and no override crop resolve, so
// no meaningful forecast is possible.
var ErrNoProfile = errors.New("no active profile found")

// CropMeta carries per-crop agronomic metadata: growing duration, the usual
// season, and a default price per quintal used when no mandi quote exists.
type CropMeta struct {
	DurationDays int
	Season       string
	DefaultPrice float64
}

var cropMeta = map[string]CropMeta{
	"rice":      {120, "Kharif", 2200},
	"wheat":     {120, "Rabi", 2100},
	"maize":     {110, "Kharif", 1800},
	"cotton":    {160, "Kharif", 6000},
	"sugarcane": {300, "Annual", 300},
	"pulses":    {100, "Kharif", 5000},
	"millets":   {90, "Kharif", 2000},
}

// MetaFor looks up crop metadata case-insensitively, falling back to a
// 120-day Kharif crop at the given price.
func MetaFor(crop string, fallbackPrice float64) CropMeta {
	if m, ok := cropMeta[strings.ToLower(crop)]; ok {
		return m
	}
	if fallbackPrice == 0 {
		fallbackPrice = 2000
	}
	return CropMeta{DurationDays: 120, Season: "Kharif", DefaultPrice: fallbackPrice}
}

// fallbackYieldPerHa is the safety net for degenerate model outputs, in
// quintals per hectare. It is a guard rail, not a modeling technique.
var fallbackYieldPerHa = map[string]float64{
	"rice":      25,
	"wheat":     20,
	"maize":     18,
	"cotton":    12,
	"sugarcane": 80,
	"pulses":    10,
	"millets":   15,
}

const defaultFallbackYieldPerHa = 15.0

// FallbackYield returns the fixed per-crop yield scaled by area, used iff
// the model output is <= 0.
func FallbackYield(crop string, areaHa float64) float64 {
	perHa, ok := fallbackYieldPerHa[strings.ToLower(crop)]
	if !ok {
		perHa = defaultFallbackYieldPerHa
	}
	return perHa * areaHa
}

// Forecaster composes the feature assembler, the yield predictor, the risk
// model, and the growth simulator into the standard farm report.
type Forecaster struct {
	predictor *Predictor
	risk      *RiskModel
	sim       *Simulator
	now       func() time.Time
}

func NewForecaster(p *Predictor, risk *RiskModel, sim *Simulator) *Forecaster {
	return &Forecaster{predictor: p, risk: risk, sim: sim, now: time.Now}
}

// Forecast turns a profile and its weather/soil/market context into a yield,
// income, risk, and trajectory report. All inputs are read-only; nothing is
// persisted.
func (f *Forecaster) Forecast(p models.Profile, w models.WeatherSummary, s models.SoilSummary, market models.MarketQuote) (*models.ForecastResult, error) {
	if strings.TrimSpace(p.Crop) == "" {
		return nil, fmt.Errorf("%w: profile has no crop", ErrNoProfile)
	}

	now := f.now()
	meta := MetaFor(p.Crop, 2000)
	if p.Season == "" {
		p.Season = meta.Season
	}

	price := market.AvgPrice
	if price <= 0 {
		price = meta.DefaultPrice
		market.AvgPrice = price
		market.Fallback = true
	}

	row := Assemble(p, w, s, now.Year(), 0)
	yield := f.predictor.Predict(row)
	metrics.PredictionsTotal.WithLabelValues("forecast").Inc()

	fallbackUsed := false
	if yield <= 0 {
		yield = FallbackYield(p.Crop, p.AreaHa)
		fallbackUsed = true
		metrics.FallbackYieldTotal.Inc()
	}

	income := yield * price

	harvest := now.AddDate(0, 0, meta.DurationDays)
	harvestLabel := fmt.Sprintf("%s %d", harvest.Format("Jan"), harvest.Year())

	factors := f.risk.Score(p.Crop, w, s)
	overallPct, level := OverallRisk(factors)

	months := meta.DurationDays / 30
	curve := f.sim.MonthlyCurve(yield, months, price, now)

	return &models.ForecastResult{
		ExpectedYieldQtl:  round2(yield),
		ExpectedIncome:    round2(income),
		HarvestDateLabel:  harvestLabel,
		RiskLevel:         level,
		OverallRiskPct:    round2(overallPct),
		RiskFactors:       factors,
		YieldForecast:     curve,
		Weather:           w,
		Soil:              s,
		Market:            market,
		FallbackYieldUsed: fallbackUsed,
	}, nil
}
