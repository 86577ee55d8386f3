package forecast

import (
	"fmt"
	"math"

	"github.com/agritwin/cropcast/internal/models"
)

// Liters of water per hectare per millimetre of depth.
const litersPerMMPerHa = 10000.0

// EstimateIrrigation computes the week's net irrigation need for a crop:
// the weekly water requirement minus the rainfall credit, converted to
// volume over the farm area. When a daily series is supplied, the weekly
// need is also split across it against each day's rainfall.
func EstimateIrrigation(crop string, areaHa float64, w models.WeatherSummary, weekly []models.DailyWeather) (models.IrrigationEstimate, error) {
	if areaHa <= 0 {
		return models.IrrigationEstimate{}, fmt.Errorf("irrigation estimate: farm area must be positive, got %.2f", areaHa)
	}

	baseNeed := WaterRequirement(crop)
	deficit := math.Max(baseNeed-w.Rainfall7dTotal, 0)
	liters := deficit * areaHa * litersPerMMPerHa

	dailyNeed := baseNeed / 7
	days := make([]models.DailyWeather, len(weekly))
	for i, day := range weekly {
		day.DayName = day.Date.Format("Mon")
		day.IrrigationMM = round2(math.Max(dailyNeed-day.RainfallMM, 0))
		days[i] = day
	}

	return models.IrrigationEstimate{
		WaterNeededMM:     round2(deficit),
		WaterNeededLiters: round2(liters),
		Rationale: fmt.Sprintf(
			"%s requires ~%.0f mm/week. Rainfall over last 7 days (%.1f mm) reduces net irrigation need.",
			crop, baseNeed, w.Rainfall7dTotal),
		Weekly: days,
	}, nil
}
