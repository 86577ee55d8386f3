package models

import (
	"time"
)

// Profile is a farmer profile record. The forecast engine only reads
// profiles; the store owns their lifecycle.
type Profile struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Crop      string    `json:"crop"`
	Season    string    `json:"season"`
	AreaHa    float64   `json:"area_ha"`
	Pincode   string    `json:"pincode"`
	State     string    `json:"state"`
	District  string    `json:"district"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// WeatherSummary holds 7-day aggregates from the weather adapter.
type WeatherSummary struct {
	Rainfall7dTotal float64 `json:"rainfall_7d_total"`
	Temp7dAvg       float64 `json:"temp_7d_avg"`
	Humidity7dAvg   float64 `json:"humidity_7d_avg"`
}

// DailyWeather is a single day from the weekly series, used when splitting
// an irrigation estimate across the week.
type DailyWeather struct {
	Date         time.Time `json:"date"`
	DayName      string    `json:"day_name"`
	RainfallMM   float64   `json:"rainfall_mm"`
	TempC        float64   `json:"temp_c"`
	IrrigationMM float64   `json:"irrigation_mm"`
}

// SoilSummary is a point-in-time soil chemistry record. Degraded is true
// when the upstream source was unavailable and fixed defaults were
// substituted; the flag is carried through to the report rather than hidden.
type SoilSummary struct {
	PH               float64 `json:"ph"`
	OrganicCarbonPct float64 `json:"organic_carbon_pct"`
	SandPct          float64 `json:"sand_pct"`
	SiltPct          float64 `json:"silt_pct"`
	ClayPct          float64 `json:"clay_pct"`
	Degraded         bool    `json:"degraded"`
}

// MarketQuote is an average mandi price for a commodity.
type MarketQuote struct {
	Crop        string  `json:"crop"`
	State       string  `json:"state"`
	District    string  `json:"district"`
	AvgPrice    float64 `json:"avg_price"`
	SampleCount int     `json:"sample_count"`
	Fallback    bool    `json:"fallback"`
}

// FeatureRow is the canonical input to the yield model. Categorical values
// are never empty ("Unknown" is substituted); numeric values are never
// unset.
type FeatureRow struct {
	Categorical map[string]string  `json:"categorical"`
	Numeric     map[string]float64 `json:"numeric"`
}

// RiskFactor is one named risk category with its score.
type RiskFactor struct {
	Factor string  `json:"factor"`
	Risk   float64 `json:"risk"`
}

// CurvePoint is one period of a growth trajectory. Month is set for the
// month-indexed baseline forecast, Week for what-if curves.
type CurvePoint struct {
	Month  string  `json:"month,omitempty"`
	Week   int     `json:"week,omitempty"`
	Yield  float64 `json:"yield"`
	Income float64 `json:"income"`
}

// ForecastResult is the full yield report for a profile.
type ForecastResult struct {
	ExpectedYieldQtl  float64        `json:"expected_yield_qtl"`
	ExpectedIncome    float64        `json:"expected_income"`
	HarvestDateLabel  string         `json:"harvest_date_label"`
	RiskLevel         string         `json:"risk_level"`
	OverallRiskPct    float64        `json:"overall_risk_pct"`
	RiskFactors       []RiskFactor   `json:"risk_factors"`
	YieldForecast     []CurvePoint   `json:"yield_forecast"`
	Weather           WeatherSummary `json:"weather"`
	Soil              SoilSummary    `json:"soil"`
	Market            MarketQuote    `json:"market"`
	FallbackYieldUsed bool           `json:"fallback_yield_used"`
}

// IrrigationEstimate is the weekly water-deficit computation. Error is set
// instead of aborting the surrounding response when the estimate fails.
type IrrigationEstimate struct {
	WaterNeededMM     float64        `json:"water_needed_mm"`
	WaterNeededLiters float64        `json:"water_needed_liters"`
	Rationale         string         `json:"rationale"`
	Weekly            []DailyWeather `json:"weekly,omitempty"`
	Error             string         `json:"error,omitempty"`
}

// WhatIfRequest carries optional overrides replayed over the active
// profile. Delay fields are whole weeks and must be >= 0.
type WhatIfRequest struct {
	Crop                 string   `json:"crop,omitempty"`
	Pincode              string   `json:"pincode,omitempty"`
	State                string   `json:"state,omitempty"`
	District             string   `json:"district,omitempty"`
	Season               string   `json:"season,omitempty"`
	AreaHa               *float64 `json:"area_ha,omitempty"`
	Rainfall7dTotal      *float64 `json:"rainfall_7d_total,omitempty"`
	Temp7dAvg            *float64 `json:"temp_7d_avg,omitempty"`
	Humidity7dAvg        *float64 `json:"humidity_7d_avg,omitempty"`
	SoilPH               *float64 `json:"soil_ph,omitempty"`
	SoilOrganicCarbon    *float64 `json:"soil_organic_carbon,omitempty"`
	SoilSand             *float64 `json:"soil_sand,omitempty"`
	SoilSilt             *float64 `json:"soil_silt,omitempty"`
	SoilClay             *float64 `json:"soil_clay,omitempty"`
	SowingDelayWeeks     int      `json:"sowing_delay_weeks,omitempty"`
	IrrigationDelayWeeks int      `json:"irrigation_delay_weeks,omitempty"`
}

// WhatIfResult is the scenario replay output. InputOverrides echoes the
// effective inputs so a caller can audit what was actually simulated.
type WhatIfResult struct {
	PredictedYield float64            `json:"predicted_yield"`
	BaselineYield  float64            `json:"baseline_yield"`
	DelayPenalty   float64            `json:"delay_penalty"`
	GrowthCurve    []CurvePoint       `json:"growth_curve"`
	Weather        WeatherSummary     `json:"weather"`
	Soil           SoilSummary        `json:"soil"`
	Irrigation     IrrigationEstimate `json:"irrigation"`
	InputOverrides map[string]any     `json:"input_overrides"`
}
