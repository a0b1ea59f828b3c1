package vehicle

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/example/load-matching/internal/models"
	"github.com/example/load-matching/internal/observability"
)

// Recommendation is one vehicle class suggestion for a load.
type Recommendation struct {
	VehicleType      string  `json:"vehicle_type"`
	SuitabilityScore int     `json:"suitability_score"` // 0..100
	Reason           string  `json:"reason"`
	MaxWeightKg      float64 `json:"max_weight_kg"`
	MaxVolumeM3      float64 `json:"max_volume_m3,omitempty"`
	EstimatedCost    float64 `json:"estimated_cost"`
}

// Advisor optionally supplies AI-generated recommendations. A failed or
// empty advisory answer falls back to the rule table.
type Advisor interface {
	RecommendVehicles(ctx context.Context, req Request) ([]Recommendation, error)
}

// Request describes the load the vehicle must carry.
type Request struct {
	WeightKg     float64
	VolumeM3     float64
	LoadType     models.LoadType
	Requirements []models.SpecialRequirement
	Dimensions   *models.Dimensions
	UseAdvisory  bool
}

// Matcher recommends vehicle classes. The rule table is always available;
// the advisory path only replaces it with a non-empty, well-formed list.
type Matcher struct {
	advisor Advisor
	timeout time.Duration
	logger  *slog.Logger
}

func NewMatcher(advisor Advisor, timeout time.Duration, logger *slog.Logger) *Matcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{advisor: advisor, timeout: timeout, logger: logger}
}

// Recommend returns candidate vehicle classes ordered by descending
// suitability. Never returns an empty list for a positive weight.
func (m *Matcher) Recommend(ctx context.Context, req Request) ([]Recommendation, error) {
	if req.WeightKg <= 0 {
		return nil, models.Invalidf("weight must be greater than 0")
	}

	recs := ruleBased(req)

	if req.UseAdvisory && m.advisor != nil {
		if advised, ok := m.advise(ctx, req); ok {
			recs = advised
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].SuitabilityScore > recs[j].SuitabilityScore
	})
	return recs, nil
}

func (m *Matcher) advise(ctx context.Context, req Request) ([]Recommendation, bool) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	advised, err := m.advisor.RecommendVehicles(ctx, req)
	if err != nil {
		observability.AdvisoryFailures.Inc()
		m.logger.Warn("vehicle advisory failed, using rule table", "error", err)
		return nil, false
	}
	if len(advised) == 0 {
		return nil, false
	}
	for _, r := range advised {
		if r.VehicleType == "" || r.SuitabilityScore < 0 || r.SuitabilityScore > 100 {
			m.logger.Warn("vehicle advisory returned malformed entry, using rule table",
				"vehicle_type", r.VehicleType, "score", r.SuitabilityScore)
			return nil, false
		}
	}
	return advised, true
}

// Per-kg cost rates by vehicle class.
const (
	vanRate           = 2.0
	mediumTruckRate   = 2.5
	refrigVanRate     = 3.5
	refrigMediumRate  = 3.0
	heavyTruckRate    = 3.5
	refrigHeavyRate   = 4.0
	flatbedHeavyRate  = 4.5
	adrHeavyTruckRate = 5.0
)

func ruleBased(req Request) []Recommendation {
	var hazardous, refrigerated, oversized bool
	for _, r := range req.Requirements {
		switch {
		case r.Hazard():
			hazardous = true
		case r.Refrigeration():
			refrigerated = true
		case r == models.ReqOversized:
			oversized = true
		}
	}

	switch {
	case hazardous:
		return []Recommendation{{
			VehicleType:      "ADR-certified heavy truck",
			SuitabilityScore: 95,
			Reason:           "hazardous cargo requires an ADR-certified vehicle",
			MaxWeightKg:      24000,
			MaxVolumeM3:      90,
			EstimatedCost:    req.WeightKg * adrHeavyTruckRate,
		}}
	case oversized:
		return []Recommendation{{
			VehicleType:      "open-flatbed heavy truck",
			SuitabilityScore: 90,
			Reason:           "oversized cargo needs an open flatbed",
			MaxWeightKg:      24000,
			EstimatedCost:    req.WeightKg * flatbedHeavyRate,
		}}
	case req.WeightKg <= 1000:
		if refrigerated {
			return []Recommendation{{
				VehicleType:      "refrigerated van",
				SuitabilityScore: 95,
				Reason:           "light cooled cargo fits a refrigerated van",
				MaxWeightKg:      1000,
				MaxVolumeM3:      7,
				EstimatedCost:    req.WeightKg * refrigVanRate,
			}}
		}
		return []Recommendation{{
			VehicleType:      "van",
			SuitabilityScore: 90,
			Reason:           "economical choice for light cargo",
			MaxWeightKg:      1000,
			MaxVolumeM3:      7,
			EstimatedCost:    req.WeightKg * vanRate,
		}}
	case req.WeightKg <= 3500:
		if refrigerated {
			return []Recommendation{{
				VehicleType:      "refrigerated medium truck",
				SuitabilityScore: 95,
				Reason:           "medium cooled cargo fits a refrigerated medium truck",
				MaxWeightKg:      3500,
				MaxVolumeM3:      15,
				EstimatedCost:    req.WeightKg * refrigMediumRate,
			}}
		}
		return []Recommendation{{
			VehicleType:      "medium truck",
			SuitabilityScore: 90,
			Reason:           "ideal for medium-weight cargo",
			MaxWeightKg:      3500,
			MaxVolumeM3:      15,
			EstimatedCost:    req.WeightKg * mediumTruckRate,
		}}
	default:
		if refrigerated {
			return []Recommendation{{
				VehicleType:      "refrigerated heavy truck",
				SuitabilityScore: 95,
				Reason:           "heavy cooled cargo needs a refrigerated heavy truck",
				MaxWeightKg:      24000,
				MaxVolumeM3:      90,
				EstimatedCost:    req.WeightKg * refrigHeavyRate,
			}}
		}
		return []Recommendation{{
			VehicleType:      "heavy truck",
			SuitabilityScore: 90,
			Reason:           "standard heavy truck for heavy cargo",
			MaxWeightKg:      24000,
			MaxVolumeM3:      90,
			EstimatedCost:    req.WeightKg * heavyTruckRate,
		}}
	}
}
