package forecast

import (
	"math"
	"testing"

	"github.com/agritwin/cropcast/internal/models"
)

func TestScore_RiceWorkedExample(t *testing.T) {
	m := NewRiskModel(DefaultRiskConfig)
	w := models.WeatherSummary{Rainfall7dTotal: 10, Temp7dAvg: 30, Humidity7dAvg: 85}
	s := models.SoilSummary{PH: 6.5}

	factors := m.Score("rice", w, s)
	if len(factors) != 5 {
		t.Fatalf("len(factors) = %d, want 5", len(factors))
	}

	byName := map[string]float64{}
	for _, f := range factors {
		byName[f.Factor] = f.Risk
	}

	// Weather: 40 * (50-10)/50 = 32.0
	if byName[FactorWeather] != 32.0 {
		t.Errorf("weather = %v, want 32.0", byName[FactorWeather])
	}
	// Pest: temp factor (30-20)/15 = 0.6667, humidity factor (85-50)/40 = 0.875
	// (0.6*0.875 + 0.4*0.6667) * 25 = 19.8 rounded to one decimal
	if byName[FactorPest] != 19.8 {
		t.Errorf("pest = %v, want 19.8", byName[FactorPest])
	}
	// Input costs: |6.5-7.0| * 5 = 2.5
	if byName[FactorInputCosts] != 2.5 {
		t.Errorf("input costs = %v, want 2.5", byName[FactorInputCosts])
	}
	if byName[FactorMarket] != 20 {
		t.Errorf("market = %v, want 20", byName[FactorMarket])
	}
	if byName[FactorLabor] != 12 {
		t.Errorf("labor = %v, want 12", byName[FactorLabor])
	}

	pct, level := OverallRisk(factors)
	want := (32.0 + 20 + 19.8 + 2.5 + 12) / 5
	if math.Abs(pct-want) > 1e-9 {
		t.Errorf("overall = %v, want %v", pct, want)
	}
	if level != "Medium" {
		t.Errorf("level = %q, want Medium", level)
	}
}

func TestScore_BoundsHoldEverywhere(t *testing.T) {
	m := NewRiskModel(DefaultRiskConfig)
	maxByFactor := map[string]float64{
		FactorWeather:    40,
		FactorMarket:     20,
		FactorPest:       25,
		FactorInputCosts: 25,
		FactorLabor:      12,
	}

	weathers := []models.WeatherSummary{
		{},
		{Rainfall7dTotal: 500, Temp7dAvg: -20, Humidity7dAvg: 0},
		{Rainfall7dTotal: 0, Temp7dAvg: 55, Humidity7dAvg: 100},
		{Rainfall7dTotal: 10, Temp7dAvg: 30, Humidity7dAvg: 85},
	}
	soils := []models.SoilSummary{
		{},
		{PH: 1},
		{PH: 14},
		{PH: 7},
	}
	crops := []string{"rice", "wheat", "sugarcane", "millets", "dragonfruit", ""}

	for _, crop := range crops {
		for _, w := range weathers {
			for _, s := range soils {
				for _, f := range m.Score(crop, w, s) {
					max, ok := maxByFactor[f.Factor]
					if !ok {
						t.Fatalf("unexpected factor %q", f.Factor)
					}
					if f.Risk < 0 || f.Risk > max {
						t.Errorf("crop=%q %s = %v, want within [0, %v]", crop, f.Factor, f.Risk, max)
					}
				}
			}
		}
	}
}

func TestScore_UnknownPHDefaultsTo15(t *testing.T) {
	m := NewRiskModel(DefaultRiskConfig)
	factors := m.Score("rice", models.WeatherSummary{}, models.SoilSummary{})
	for _, f := range factors {
		if f.Factor == FactorInputCosts && f.Risk != 15 {
			t.Errorf("input costs = %v, want 15 for unknown pH", f.Risk)
		}
	}
}

func TestWaterRequirement(t *testing.T) {
	tests := []struct {
		crop string
		want float64
	}{
		{"rice", 50},
		{"Rice", 50},
		{"wheat", 30},
		{"maize", 35},
		{"sugarcane", 60},
		{"cotton", 40},
		{"pulses", 25},
		{"millets", 20},
		{"quinoa", 30},
		{"", 30},
	}
	for _, tt := range tests {
		if got := WaterRequirement(tt.crop); got != tt.want {
			t.Errorf("WaterRequirement(%q) = %v, want %v", tt.crop, got, tt.want)
		}
	}
}

func TestOverallRisk_Thresholds(t *testing.T) {
	mk := func(v float64) []models.RiskFactor {
		return []models.RiskFactor{{Factor: "a", Risk: v}}
	}
	tests := []struct {
		mean float64
		want string
	}{
		{0, "Low"},
		{14.9, "Low"},
		{15, "Medium"},
		{29.9, "Medium"},
		{30, "High"},
		{40, "High"},
	}
	for _, tt := range tests {
		if _, level := OverallRisk(mk(tt.mean)); level != tt.want {
			t.Errorf("mean %v -> %q, want %q", tt.mean, level, tt.want)
		}
	}
}

func TestScore_ConfigurableConstants(t *testing.T) {
	m := NewRiskModel(RiskConfig{MarketPriceRisk: 5, LaborRisk: 1})
	for _, f := range m.Score("rice", models.WeatherSummary{}, models.SoilSummary{PH: 7}) {
		switch f.Factor {
		case FactorMarket:
			if f.Risk != 5 {
				t.Errorf("market = %v, want 5", f.Risk)
			}
		case FactorLabor:
			if f.Risk != 1 {
				t.Errorf("labor = %v, want 1", f.Risk)
			}
		}
	}
}
