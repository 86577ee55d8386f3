package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agritwin/cropcast/internal/advisory"
	"github.com/agritwin/cropcast/internal/forecast"
	"github.com/agritwin/cropcast/internal/ingest"
	"github.com/agritwin/cropcast/internal/store"
)

type Server struct {
	store      *store.Store
	forecaster *forecast.Forecaster
	scenarios  *forecast.ScenarioEngine
	weather    *ingest.WeatherClient
	soil       *ingest.SoilClient
	market     *ingest.MarketClient
	narrator   *advisory.Generator // nil when no API key is configured
	port       string
}

func NewServer(
	st *store.Store,
	forecaster *forecast.Forecaster,
	scenarios *forecast.ScenarioEngine,
	weather *ingest.WeatherClient,
	soil *ingest.SoilClient,
	market *ingest.MarketClient,
	narrator *advisory.Generator,
	port string,
) *Server {
	return &Server{
		store:      st,
		forecaster: forecaster,
		scenarios:  scenarios,
		weather:    weather,
		soil:       soil,
		market:     market,
		narrator:   narrator,
		port:       port,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/forecast", s.handleForecast)
	mux.HandleFunc("POST /api/whatif", s.handleWhatIf)
	mux.HandleFunc("GET /api/irrigation", s.handleIrrigation)
	mux.HandleFunc("GET /api/profiles", s.handleListProfiles)
	mux.HandleFunc("POST /api/profiles", s.handleCreateProfile)
	mux.HandleFunc("POST /api/profiles/{id}/activate", s.handleActivateProfile)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
