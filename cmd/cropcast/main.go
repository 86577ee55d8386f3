package main

import (
	"context"
	"database/sql"
	"log"
	"math/rand"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/agritwin/cropcast/internal/advisory"
	"github.com/agritwin/cropcast/internal/api"
	"github.com/agritwin/cropcast/internal/forecast"
	"github.com/agritwin/cropcast/internal/ingest"
	"github.com/agritwin/cropcast/internal/store"
)

var cli struct {
	DB         string  `help:"Path to SQLite database." default:"data/cropcast.db" env:"CROPCAST_DB"`
	Port       string  `help:"HTTP server port." default:"8080" env:"PORT"`
	Model      string  `help:"Path to the trained yield model artifact." default:"data/yield_model.json" env:"CROPCAST_MODEL"`
	Seed       int64   `help:"Fixed seed for growth-curve noise; 0 seeds from the clock." default:"0" env:"CROPCAST_SEED"`
	CurveWeeks int     `help:"Length of the what-if growth curve, in weeks." default:"10" env:"CROPCAST_CURVE_WEEKS"`
	MarketRisk float64 `help:"Fixed market-price risk score (placeholder pending a live feed)." default:"20"`
	LaborRisk  float64 `help:"Fixed labor risk score (placeholder pending a live feed)." default:"12"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("cropcast"),
		kong.Description("Crop yield forecasting and what-if scenario service."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	db, err := sql.Open("sqlite", cli.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("database migrated")

	// A missing or corrupt model artifact is fatal: the process must not
	// serve forecasts without one.
	artifact, err := forecast.LoadModel(cli.Model)
	if err != nil {
		log.Fatalf("load model: %v", err)
	}
	log.Printf("yield model loaded (version %s, trained %s)", artifact.Version, artifact.TrainedAt)

	var src rand.Source
	if cli.Seed != 0 {
		src = rand.NewSource(cli.Seed)
	}

	predictor := forecast.NewPredictor(artifact)
	risk := forecast.NewRiskModel(forecast.RiskConfig{
		MarketPriceRisk: cli.MarketRisk,
		LaborRisk:       cli.LaborRisk,
	})
	sim := forecast.NewSimulator(src, forecast.DefaultNoise)
	forecaster := forecast.NewForecaster(predictor, risk, sim)
	scenarios := forecast.NewScenarioEngine(predictor, sim, cli.CurveWeeks)

	geo := ingest.NewGeocoder(st)
	weather := ingest.NewWeatherClient(geo, st)
	soil := ingest.NewSoilClient(geo, st)
	market := ingest.NewMarketClient()

	var narrator *advisory.Generator
	if gen, err := advisory.NewGenerator(); err != nil {
		log.Printf("advisory narratives disabled: %v", err)
	} else {
		narrator = gen
	}

	server := api.NewServer(st, forecaster, scenarios, weather, soil, market, narrator, cli.Port)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Printf("starting server on :%s", cli.Port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
