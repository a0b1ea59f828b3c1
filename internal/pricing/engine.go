package pricing

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/load-matching/internal/models"
	"github.com/example/load-matching/internal/observability"
)

// Advisor is the optional external price scorer. Its output is advisory
// only: the engine clamps it into configured bounds and absorbs every
// failure.
type Advisor interface {
	OptimizePrice(ctx context.Context, req AdvisoryRequest) (float64, error)
}

// AdvisoryRequest is everything the external scorer may consider.
type AdvisoryRequest struct {
	FinalPrice   float64
	DistanceKm   float64
	WeightKg     float64
	VolumeM3     float64
	LoadType     models.LoadType
	Requirements []models.SpecialRequirement
	PickupTime   time.Time
	DeliveryTime time.Time
}

// CalculationStore persists pricing audit records. Optional; a nil store
// skips the audit write.
type CalculationStore interface {
	SaveCalculation(ctx context.Context, c *models.PricingCalculation) error
}

// Request is one pricing run.
type Request struct {
	LoadID       string
	DistanceKm   float64
	WeightKg     float64
	VolumeM3     float64
	LoadType     models.LoadType
	Requirements []models.SpecialRequirement
	PickupTime   time.Time
	DeliveryTime time.Time
	UseAdvisory  bool
}

// Engine computes a base price plus a multiplicative factor stack, then
// optionally lets the advisory scorer nudge the result within bounds.
type Engine struct {
	cfg     Config
	advisor Advisor
	store   CalculationStore
	logger  *slog.Logger

	// now is swappable in tests; urgency depends on wall clock.
	now func() time.Time
}

func NewEngine(cfg Config, advisor Advisor, store CalculationStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, advisor: advisor, store: store, logger: logger, now: time.Now}
}

// CalculatePrice runs the factor-multiplier algorithm. Advisory failures
// never surface; the deterministic price always stands on its own.
func (e *Engine) CalculatePrice(ctx context.Context, req Request) (*models.PricingCalculation, error) {
	if req.DistanceKm <= 0 {
		return nil, models.Invalidf("distance must be greater than 0")
	}
	if req.WeightKg <= 0 {
		return nil, models.Invalidf("weight must be greater than 0")
	}

	basePrice := req.DistanceKm*e.cfg.DistanceRatePerKm + req.WeightKg*e.cfg.WeightRatePerKg
	factors := e.computeFactors(req)
	finalPrice := basePrice * factors.TotalMultiplier

	calc := &models.PricingCalculation{
		ID:               models.NewID(),
		LoadID:           req.LoadID,
		AlgorithmVersion: e.cfg.AlgorithmVersion,
		BasePrice:        basePrice,
		FinalPrice:       finalPrice,
		RecommendedPrice: finalPrice,
		Factors:          factors,
		DistanceKm:       req.DistanceKm,
		WeightKg:         req.WeightKg,
		VolumeM3:         req.VolumeM3,
		LoadType:         req.LoadType,
		CalculatedAt:     e.now().UTC(),
	}

	if req.UseAdvisory && e.advisor != nil {
		if optimized, ok := e.optimize(ctx, req, finalPrice); ok {
			calc.OptimizedPrice = &optimized
			calc.RecommendedPrice = optimized
		}
	}

	observability.PricingRuns.Inc()

	if e.store != nil {
		if err := e.store.SaveCalculation(ctx, calc); err != nil {
			// The price is still valid; the audit trail is best effort.
			e.logger.Error("pricing audit write failed", "load_id", req.LoadID, "error", err)
		}
	}
	return calc, nil
}

func (e *Engine) computeFactors(req Request) models.PriceFactors {
	f := models.PriceFactors{
		Volume:       1.0,
		Hazardous:    1.0,
		Refrigerated: 1.0,
		Weekend:      1.0,
		PeakHours:    1.0,
		Urgency:      1.0,
		Requirements: 1.0,
	}

	if req.VolumeM3 > e.cfg.VolumeThresholdM3 {
		f.Volume = e.cfg.VolumeFactor
	}

	hazardous, refrigerated := false, false
	otherReqs := 0
	for _, r := range req.Requirements {
		switch {
		case r.Hazard():
			hazardous = true
		case r.Refrigeration():
			refrigerated = true
		case r != models.ReqNone:
			otherReqs++
		}
	}
	if hazardous {
		f.Hazardous = e.cfg.HazardousFactor
	}
	if refrigerated {
		f.Refrigerated = e.cfg.RefrigeratedFactor
	}
	if otherReqs > 0 {
		f.Requirements = 1.0 + e.cfg.PerRequirementBump*float64(otherReqs)
	}

	wd := req.PickupTime.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		f.Weekend = e.cfg.WeekendFactor
	}

	h := req.PickupTime.Hour()
	if (h >= e.cfg.MorningPeakStart && h < e.cfg.MorningPeakEnd) ||
		(h >= e.cfg.EveningPeakStart && h < e.cfg.EveningPeakEnd) {
		f.PeakHours = e.cfg.PeakHoursFactor
	}

	hoursUntilPickup := req.PickupTime.Sub(e.now()).Hours()
	switch {
	case hoursUntilPickup < e.cfg.UrgentHours:
		f.Urgency = e.cfg.UrgentFactor
	case hoursUntilPickup < e.cfg.SoonHours:
		f.Urgency = e.cfg.SoonFactor
	}

	f.TotalMultiplier = f.Volume * f.Hazardous * f.Refrigerated *
		f.Weekend * f.PeakHours * f.Urgency * f.Requirements
	return f
}

// optimize calls the advisor with a bounded timeout and clamps the result.
// Returns ok=false on any failure; the caller falls back silently.
func (e *Engine) optimize(ctx context.Context, req Request, finalPrice float64) (float64, bool) {
	timeout := e.cfg.AdvisoryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	price, err := e.advisor.OptimizePrice(ctx, AdvisoryRequest{
		FinalPrice:   finalPrice,
		DistanceKm:   req.DistanceKm,
		WeightKg:     req.WeightKg,
		VolumeM3:     req.VolumeM3,
		LoadType:     req.LoadType,
		Requirements: req.Requirements,
		PickupTime:   req.PickupTime,
		DeliveryTime: req.DeliveryTime,
	})
	if err != nil {
		observability.AdvisoryFailures.Inc()
		e.logger.Warn("price advisory failed, using deterministic price",
			"load_id", req.LoadID, "error", err)
		return 0, false
	}

	min := finalPrice * e.cfg.MinAdvisoryRatio
	max := finalPrice * e.cfg.MaxAdvisoryRatio
	if price < min {
		price = min
	}
	if price > max {
		price = max
	}
	return price, true
}
