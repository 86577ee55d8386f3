package forecast

// The feature schema is the single source of truth for the column sets the
// yield model was trained on. The training exporter reads the same lists, so
// inference can never drift from training without a loud artifact-validation
// failure at startup.

// UnknownCategory is substituted for every missing categorical value. It must
// stay byte-identical to the value used during training: the model matches
// categorical levels by exact string, so a different spelling silently scores
// as an unseen level instead of erroring.
const UnknownCategory = "Unknown"

// Categorical column names.
const (
	ColState    = "State"
	ColDistrict = "District"
	ColCrop     = "Crop"
	ColSeason   = "Season"
)

// Numeric column names.
const (
	ColCropYear   = "Crop_Year"
	ColArea       = "Area"
	ColProduction = "Production"
	ColRainfall7d = "rainfall_7d_total"
	ColTemp7dAvg  = "temp_7d_avg"
	ColHumidity7d = "humidity_7d_avg"
	ColSoilPH     = "soil_ph"
	ColSoilSOC    = "soil_soc"
	ColSoilSand   = "soil_sand"
	ColSoilSilt   = "soil_silt"
	ColSoilClay   = "soil_clay"
)

// CategoricalColumns lists every categorical feature, in no significant order.
var CategoricalColumns = []string{ColState, ColDistrict, ColCrop, ColSeason}

// NumericColumns lists every numeric feature.
var NumericColumns = []string{
	ColCropYear, ColArea, ColProduction,
	ColRainfall7d, ColTemp7dAvg, ColHumidity7d,
	ColSoilPH, ColSoilSOC, ColSoilSand, ColSoilSilt, ColSoilClay,
}
