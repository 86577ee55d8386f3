package forecast

import (
	"strings"

	"github.com/agritwin/cropcast/internal/models"
)

// Default numeric substitutions for missing soil readings. These match the
// constants baked into the training data preparation.
const (
	defaultSoilPH   = 7.0
	defaultSoilSOC  = 0.5
	defaultSoilSand = 33.0
	defaultSoilSilt = 33.0
	defaultSoilClay = 34.0
)

// DefaultSoil returns the fixed record substituted when the soil adapter has
// nothing, with the Degraded flag set so reports can surface it.
func DefaultSoil() models.SoilSummary {
	return models.SoilSummary{
		PH:               defaultSoilPH,
		OrganicCarbonPct: defaultSoilSOC,
		SandPct:          defaultSoilSand,
		SiltPct:          defaultSoilSilt,
		ClayPct:          defaultSoilClay,
		Degraded:         true,
	}
}

// Assemble merges a profile, a weather summary, and a soil summary into the
// canonical feature row. Missing categoricals become UnknownCategory; missing
// numerics get their documented defaults. No range validation happens here:
// out-of-range readings are passed through and left to the model.
func Assemble(p models.Profile, w models.WeatherSummary, s models.SoilSummary, cropYear int, production float64) models.FeatureRow {
	row := models.FeatureRow{
		Categorical: map[string]string{
			ColState:    orUnknown(p.State),
			ColDistrict: orUnknown(p.District),
			ColCrop:     orUnknown(p.Crop),
			ColSeason:   orUnknown(p.Season),
		},
		Numeric: map[string]float64{
			ColCropYear:   float64(cropYear),
			ColArea:       p.AreaHa,
			ColProduction: production,
			ColRainfall7d: w.Rainfall7dTotal,
			ColTemp7dAvg:  w.Temp7dAvg,
			ColHumidity7d: w.Humidity7dAvg,
			ColSoilPH:     numOr(s.PH, defaultSoilPH),
			ColSoilSOC:    numOr(s.OrganicCarbonPct, defaultSoilSOC),
			ColSoilSand:   numOr(s.SandPct, defaultSoilSand),
			ColSoilSilt:   numOr(s.SiltPct, defaultSoilSilt),
			ColSoilClay:   numOr(s.ClayPct, defaultSoilClay),
		},
	}
	return row
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return UnknownCategory
	}
	return s
}

// A zero soil reading means the adapter had no value for the field; the
// upstream sources never report exact zeros for these properties.
func numOr(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
