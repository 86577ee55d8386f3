package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/agritwin/cropcast/internal/forecast"
	"github.com/agritwin/cropcast/internal/models"
	"github.com/agritwin/cropcast/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, forecast.ErrNoProfile) || errors.Is(err, store.ErrNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func profileModel(p *store.Profile) models.Profile {
	return models.Profile{
		ID: p.ID, Name: p.Name, Phone: p.Phone,
		Crop: p.Crop, Season: p.Season, AreaHa: p.AreaHa,
		Pincode: p.Pincode, State: p.State, District: p.District,
		Active: p.Active, CreatedAt: p.CreatedAt,
	}
}

// handleForecast builds the standard farm report from the active profile and
// fresh weather/soil/market context.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	sp, err := s.store.GetActiveProfile()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, forecast.ErrNoProfile)
			return
		}
		writeError(w, err)
		return
	}
	profile := profileModel(sp)

	weather, err := s.weather.Summary(profile.Pincode)
	if err != nil {
		// Assembler defaults absorb missing weather; log and continue.
		log.Printf("forecast: weather fetch for %s: %v", profile.Pincode, err)
		weather = models.WeatherSummary{}
	}

	soil, err := s.soil.Summary(profile.Pincode)
	if err != nil {
		soil = forecast.DefaultSoil()
	}

	market, err := s.market.Price(profile.Crop, profile.State, profile.District)
	if err != nil {
		market = models.MarketQuote{Crop: profile.Crop, Fallback: true}
	}

	result, err := s.forecaster.Forecast(profile, weather, soil, market)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{
		"profile":  profile,
		"forecast": result,
	}
	if s.narrator != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
		defer cancel()
		if text, err := s.narrator.Summarize(ctx, profile.Crop, result); err == nil {
			resp["narrative"] = text
		} else {
			log.Printf("forecast: narrative skipped: %v", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleWhatIf replays a forecast under the request's overrides and delays.
func (s *Server) handleWhatIf(w http.ResponseWriter, r *http.Request) {
	var req models.WhatIfRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.SowingDelayWeeks < 0 || req.IrrigationDelayWeeks < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "delay weeks must be >= 0"})
		return
	}

	result, err := s.scenarios.Evaluate(req,
		func() (*models.Profile, error) {
			p, err := s.store.GetActiveProfile()
			if errors.Is(err, store.ErrNotFound) {
				return nil, forecast.ErrNoProfile
			}
			if err != nil {
				return nil, err
			}
			m := profileModel(p)
			return &m, nil
		},
		s.weather.Summary,
		s.soil.Summary,
		s.market.Price,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleIrrigation computes the week's irrigation need for the active
// profile, split across the daily series.
func (s *Server) handleIrrigation(w http.ResponseWriter, r *http.Request) {
	sp, err := s.store.GetActiveProfile()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, forecast.ErrNoProfile)
			return
		}
		writeError(w, err)
		return
	}

	weather, err := s.weather.Summary(sp.Pincode)
	if err != nil {
		writeError(w, err)
		return
	}
	weekly, err := s.weather.WeeklySeries(sp.Pincode)
	if err != nil {
		weekly = nil
	}

	estimate, err := forecast.EstimateIrrigation(sp.Crop, sp.AreaHa, weather, weekly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, estimate)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.store.ListProfiles()
	if err != nil {
		writeError(w, err)
		return
	}
	if profiles == nil {
		profiles = []store.Profile{}
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var p store.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	if p.Crop == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "crop is required"})
		return
	}
	if p.AreaHa <= 0 {
		p.AreaHa = 1.0
	}
	id, err := s.store.CreateProfile(p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleActivateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid profile id"})
		return
	}
	if err := s.store.ActivateProfile(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "activated"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
