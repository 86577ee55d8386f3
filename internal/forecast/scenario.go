package forecast

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/agritwin/cropcast/internal/metrics"
	"github.com/agritwin/cropcast/internal/models"
)

// Delay penalty coefficients: each week of sowing delay costs 5% of yield,
// each week of irrigation delay 3%. The 0.2 floor guards against unrealistic
// zero or negative yields under large delays.
const (
	sowingDelayRate     = 0.05
	irrigationDelayRate = 0.03
	penaltyFloor        = 0.2
)

// DelayPenalty returns the multiplicative yield discount for late sowing and
// irrigation, clamped to [0.2, 1.0].
func DelayPenalty(sowingDelayWeeks, irrigationDelayWeeks int) float64 {
	p := 1 - sowingDelayRate*float64(sowingDelayWeeks) - irrigationDelayRate*float64(irrigationDelayWeeks)
	return math.Max(penaltyFloor, math.Min(p, 1.0))
}

// Collaborator contracts consumed by the scenario engine. Each is a plain
// synchronous function so tests can substitute stubs.
type (
	ProfileLookup func() (*models.Profile, error)
	WeatherFn     func(pincode string) (models.WeatherSummary, error)
	SoilFn        func(pincode string) (models.SoilSummary, error)
	MarketFn      func(crop, state, district string) (models.MarketQuote, error)
	IrrigationFn  func(crop string, areaHa float64, w models.WeatherSummary) (models.IrrigationEstimate, error)
)

// ScenarioEngine replays a forecast under user-supplied overrides and
// simulated operational delays. It shares the read-only predictor with the
// baseline forecaster and holds no per-request state.
type ScenarioEngine struct {
	predictor  *Predictor
	sim        *Simulator
	irrigation IrrigationFn
	curveWeeks int
	now        func() time.Time
}

func NewScenarioEngine(p *Predictor, sim *Simulator, curveWeeks int) *ScenarioEngine {
	if curveWeeks < 1 {
		curveWeeks = 10
	}
	return &ScenarioEngine{
		predictor: p,
		sim:       sim,
		irrigation: func(crop string, areaHa float64, w models.WeatherSummary) (models.IrrigationEstimate, error) {
			return EstimateIrrigation(crop, areaHa, w, nil)
		},
		curveWeeks: curveWeeks,
		now:        time.Now,
	}
}

// SetIrrigationFn replaces the irrigation collaborator, mainly for tests.
func (e *ScenarioEngine) SetIrrigationFn(fn IrrigationFn) {
	e.irrigation = fn
}

// Evaluate overlays the request onto the active profile (request values win),
// predicts a baseline yield, discounts it by the delay penalty, and expands
// the adjusted yield into a week-indexed growth curve.
//
// Missing optional fields never fail the call; the only hard error is a
// scenario with no resolvable crop at all. Adapter failures degrade: weather
// falls back to zeros, soil to the flagged default record, irrigation to an
// error payload inside the result.
func (e *ScenarioEngine) Evaluate(
	req models.WhatIfRequest,
	activeProfile ProfileLookup,
	weatherFn WeatherFn,
	soilFn SoilFn,
	marketFn MarketFn,
) (*models.WhatIfResult, error) {
	var profile models.Profile
	if activeProfile != nil {
		p, err := activeProfile()
		switch {
		case err == nil && p != nil:
			profile = *p
		case err != nil && !errors.Is(err, ErrNoProfile):
			// A broken store is not the same as an empty one; an override
			// crop must not mask it.
			return nil, fmt.Errorf("active profile lookup: %w", err)
		}
	}

	crop := firstNonEmpty(req.Crop, profile.Crop)
	if strings.TrimSpace(crop) == "" {
		return nil, fmt.Errorf("%w: no crop in request or profile", ErrNoProfile)
	}

	area := profile.AreaHa
	if req.AreaHa != nil {
		area = *req.AreaHa
	}
	if area <= 0 {
		area = 1.0
	}

	pincode := firstNonEmpty(req.Pincode, profile.Pincode)
	state := firstNonEmpty(req.State, profile.State)
	district := firstNonEmpty(req.District, profile.District)
	season := firstNonEmpty(req.Season, profile.Season, MetaFor(crop, 0).Season)

	weather := models.WeatherSummary{}
	if weatherFn != nil && pincode != "" {
		if w, err := weatherFn(pincode); err == nil {
			weather = w
		}
	}
	if req.Rainfall7dTotal != nil {
		weather.Rainfall7dTotal = *req.Rainfall7dTotal
	}
	if req.Temp7dAvg != nil {
		weather.Temp7dAvg = *req.Temp7dAvg
	}
	if req.Humidity7dAvg != nil {
		weather.Humidity7dAvg = *req.Humidity7dAvg
	}

	soil := DefaultSoil()
	if soilFn != nil && pincode != "" {
		if s, err := soilFn(pincode); err == nil {
			soil = s
		}
	}
	if req.SoilPH != nil {
		soil.PH = *req.SoilPH
	}
	if req.SoilOrganicCarbon != nil {
		soil.OrganicCarbonPct = *req.SoilOrganicCarbon
	}
	if req.SoilSand != nil {
		soil.SandPct = *req.SoilSand
	}
	if req.SoilSilt != nil {
		soil.SiltPct = *req.SoilSilt
	}
	if req.SoilClay != nil {
		soil.ClayPct = *req.SoilClay
	}

	effective := models.Profile{
		Crop: crop, Season: season, AreaHa: area,
		Pincode: pincode, State: state, District: district,
	}
	row := Assemble(effective, weather, soil, e.now().Year(), 0)

	baseline := e.predictor.Predict(row)
	metrics.PredictionsTotal.WithLabelValues("whatif").Inc()
	if baseline <= 0 {
		baseline = FallbackYield(crop, area)
		metrics.FallbackYieldTotal.Inc()
	}

	penalty := DelayPenalty(req.SowingDelayWeeks, req.IrrigationDelayWeeks)
	adjusted := baseline * penalty

	price := MetaFor(crop, 0).DefaultPrice
	if marketFn != nil {
		if q, err := marketFn(crop, state, district); err == nil && q.AvgPrice > 0 {
			price = q.AvgPrice
		}
	}

	irrigation, err := e.irrigation(crop, area, weather)
	if err != nil {
		irrigation = models.IrrigationEstimate{Error: err.Error()}
	}

	curve := e.sim.WeeklyCurve(adjusted, e.curveWeeks, price)

	return &models.WhatIfResult{
		PredictedYield: round2(adjusted),
		BaselineYield:  round2(baseline),
		DelayPenalty:   penalty,
		GrowthCurve:    curve,
		Weather:        weather,
		Soil:           soil,
		Irrigation:     irrigation,
		InputOverrides: map[string]any{
			"crop":                   crop,
			"season":                 season,
			"area_ha":                area,
			"pincode":                pincode,
			"state":                  state,
			"district":               district,
			"sowing_delay_weeks":     req.SowingDelayWeeks,
			"irrigation_delay_weeks": req.IrrigationDelayWeeks,
		},
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
