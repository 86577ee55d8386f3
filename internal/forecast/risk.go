package forecast

import (
	"math"
	"strings"

	"github.com/agritwin/cropcast/internal/models"
)

// Risk category names and score ceilings.
const (
	FactorWeather    = "Weather"
	FactorMarket     = "Market Price"
	FactorPest       = "Pest/Disease"
	FactorInputCosts = "Input Costs"
	FactorLabor      = "Labor"

	maxWeatherRisk   = 40.0
	maxPestRisk      = 25.0
	maxInputCostRisk = 25.0

	// Score substituted when the crop's water requirement is unknown or zero.
	unknownWaterRisk = 10.0
	// Score substituted when soil pH is unknown.
	unknownPHRisk = 15.0
)

// cropWaterReq is the approximate weekly water requirement per crop, mm/week.
var cropWaterReq = map[string]float64{
	"rice":      50,
	"wheat":     30,
	"maize":     35,
	"sugarcane": 60,
	"cotton":    40,
	"pulses":    25,
	"millets":   20,
}

const defaultWaterReq = 30.0

// WaterRequirement returns the weekly water need for a crop in mm,
// defaulting to 30 for crops not in the table. Lookup is case-insensitive.
func WaterRequirement(crop string) float64 {
	if need, ok := cropWaterReq[strings.ToLower(crop)]; ok {
		return need
	}
	return defaultWaterReq
}

// RiskConfig holds the fixed market-price and labor scores. Both are
// placeholders until a live price-volatility feed exists; keeping them
// configurable is deliberate (see DESIGN.md).
type RiskConfig struct {
	MarketPriceRisk float64
	LaborRisk       float64
}

// DefaultRiskConfig matches the baseline model constants.
var DefaultRiskConfig = RiskConfig{MarketPriceRisk: 20, LaborRisk: 12}

// RiskModel scores the five fixed risk categories from weather and soil
// signals. It is stateless and safe for concurrent use.
type RiskModel struct {
	cfg RiskConfig
}

func NewRiskModel(cfg RiskConfig) *RiskModel {
	return &RiskModel{cfg: cfg}
}

// Score always returns exactly five factors, in a fixed order, each within
// [0, category max], even when every signal is in a no-alert state.
func (m *RiskModel) Score(crop string, w models.WeatherSummary, soil models.SoilSummary) []models.RiskFactor {
	return []models.RiskFactor{
		{Factor: FactorWeather, Risk: round1(weatherRisk(WaterRequirement(crop), w.Rainfall7dTotal))},
		{Factor: FactorMarket, Risk: m.cfg.MarketPriceRisk},
		{Factor: FactorPest, Risk: round1(pestRisk(w.Temp7dAvg, w.Humidity7dAvg))},
		{Factor: FactorInputCosts, Risk: round1(inputCostRisk(soil))},
		{Factor: FactorLabor, Risk: m.cfg.LaborRisk},
	}
}

// OverallRisk maps the mean of the factor scores onto a coarse level.
func OverallRisk(factors []models.RiskFactor) (pct float64, level string) {
	var sum float64
	for _, f := range factors {
		sum += f.Risk
	}
	pct = sum / float64(len(factors))
	switch {
	case pct < 15:
		level = "Low"
	case pct < 30:
		level = "Medium"
	default:
		level = "High"
	}
	return pct, level
}

// weatherRisk scores the unmet share of the crop's weekly water requirement.
func weatherRisk(needMMWeek, rainfall7d float64) float64 {
	if needMMWeek <= 0 {
		return unknownWaterRisk
	}
	frac := math.Max(needMMWeek-rainfall7d, 0) / needMMWeek
	return math.Min(frac*maxWeatherRisk, maxWeatherRisk)
}

// pestRisk combines a temperature factor and a humidity factor; warm, humid
// weeks favour most pests and fungal disease.
func pestRisk(temp, humidity float64) float64 {
	t := clamp((temp-20)/15, 0, 1)
	h := clamp((humidity-50)/40, 0, 1)
	return math.Min((0.6*h+0.4*t)*maxPestRisk, maxPestRisk)
}

// inputCostRisk tracks distance from neutral pH: amendment costs grow as the
// soil drifts acidic or alkaline.
func inputCostRisk(soil models.SoilSummary) float64 {
	if soil.PH == 0 {
		return unknownPHRisk
	}
	return math.Min(math.Abs(soil.PH-7.0)*5.0, maxInputCostRisk)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
