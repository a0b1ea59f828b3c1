package models

import "time"

// PriceFactors is the full multiplicative factor stack of one pricing run.
// Every factor is present even when 1.0.
type PriceFactors struct {
	Volume          float64 `json:"volume"`
	Hazardous       float64 `json:"hazardous"`
	Refrigerated    float64 `json:"refrigerated"`
	Weekend         float64 `json:"weekend"`
	PeakHours       float64 `json:"peak_hours"`
	Urgency         float64 `json:"urgency"`
	Requirements    float64 `json:"requirements"`
	TotalMultiplier float64 `json:"total_multiplier"`
}

// PricingCalculation is the audit record of one pricing run. Records are
// append-only; manual adjustment and acceptance annotate an existing row
// through dedicated store operations.
type PricingCalculation struct {
	ID               string  `json:"id"`
	LoadID           string  `json:"load_id,omitempty"`
	AlgorithmVersion string  `json:"algorithm_version"`
	BasePrice        float64 `json:"base_price"`
	FinalPrice       float64 `json:"final_price"`
	// OptimizedPrice is set only when the advisory scorer returned a
	// usable value; it is already clamped.
	OptimizedPrice   *float64     `json:"optimized_price,omitempty"`
	RecommendedPrice float64      `json:"recommended_price"`
	Factors          PriceFactors `json:"factors"`

	DistanceKm float64  `json:"distance_km"`
	WeightKg   float64  `json:"weight_kg"`
	VolumeM3   float64  `json:"volume_m3,omitempty"`
	LoadType   LoadType `json:"load_type"`

	CalculatedAt time.Time `json:"calculated_at"`

	ManuallyAdjusted bool    `json:"manually_adjusted,omitempty"`
	ManualAdjustment float64 `json:"manual_adjustment,omitempty"`
	AdjustmentReason string  `json:"adjustment_reason,omitempty"`

	Accepted    bool     `json:"accepted,omitempty"`
	AgreedPrice *float64 `json:"agreed_price,omitempty"`
	AcceptedBy  string   `json:"accepted_by,omitempty"`
}
