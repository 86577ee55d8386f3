package forecast

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/agritwin/cropcast/internal/models"
)

// Logistic steepness constants. Downstream charts depend on the exact shape
// of both curves, not just monotonicity, so these are not tunable.
const (
	monthCurveSteepness = 6.0
	weekCurveSteepness  = 0.8
)

// NoiseConfig bounds the per-period perturbation applied to growth curves.
type NoiseConfig struct {
	// MonthlyJitterPct is the half-width of the multiplicative jitter on
	// month curves: each point is scaled by 1 ± MonthlyJitterPct.
	MonthlyJitterPct float64
	// WeeklyJitter is the half-width of the additive jitter, in yield units,
	// on week curves.
	WeeklyJitter float64
}

// DefaultNoise matches the baseline model: ±10% monthly, ±2 units weekly.
var DefaultNoise = NoiseConfig{MonthlyJitterPct: 0.10, WeeklyJitter: 2.0}

// Simulator expands a point yield estimate into a period-indexed growth
// trajectory along a logistic ramp. The random source is injected so replays
// are deterministic under a fixed seed; pass nil for an ambient time seed.
// One instance is shared across requests; rand.Rand is not concurrency-safe,
// so the generator is serialized behind mu.
type Simulator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	noise NoiseConfig
}

func NewSimulator(src rand.Source, noise NoiseConfig) *Simulator {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Simulator{rng: rand.New(src), noise: noise}
}

// MonthlyCurve produces one point per month of the growing cycle, labelled
// with the calendar month starting from the sowing date. Cumulative progress
// follows 100/(1+e^(-6(progress-0.5))); each point is jittered
// multiplicatively and clamped to >= 0.
func (s *Simulator) MonthlyCurve(totalYield float64, months int, unitPrice float64, sowing time.Time) []models.CurvePoint {
	if months < 1 {
		months = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	curve := make([]models.CurvePoint, 0, months)
	for i := 0; i < months; i++ {
		monthDate := sowing.AddDate(0, 0, i*30)

		progress := float64(i+1) / float64(months)
		pct := 100 / (1 + math.Exp(-monthCurveSteepness*(progress-0.5)))
		pct *= 1 + (s.rng.Float64()*2-1)*s.noise.MonthlyJitterPct

		y := math.Max(totalYield*pct/100, 0)
		curve = append(curve, models.CurvePoint{
			Month:  monthDate.Format("Jan"),
			Yield:  round2(y),
			Income: round2(y * unitPrice),
		})
	}
	return curve
}

// WeeklyCurve produces a week-indexed ramp for scenario replays, following
// 1/(1+e^(-0.8(week-weeks/2))) with bounded additive jitter.
func (s *Simulator) WeeklyCurve(totalYield float64, weeks int, unitPrice float64) []models.CurvePoint {
	if weeks < 1 {
		weeks = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	mid := float64(weeks) / 2
	curve := make([]models.CurvePoint, 0, weeks)
	for week := 1; week <= weeks; week++ {
		frac := 1 / (1 + math.Exp(-weekCurveSteepness*(float64(week)-mid)))
		y := totalYield*frac + (s.rng.Float64()*2-1)*s.noise.WeeklyJitter
		y = math.Max(y, 0)
		curve = append(curve, models.CurvePoint{
			Week:   week,
			Yield:  round2(y),
			Income: round2(y * unitPrice),
		})
	}
	return curve
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
