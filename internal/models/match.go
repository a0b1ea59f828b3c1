package models

import "time"

// ScoreBreakdown records the weighted sub-scores behind a match score so
// callers can audit why a pairing ranked where it did.
type ScoreBreakdown struct {
	Distance     float64 `json:"distance"`
	Rating       float64 `json:"rating"`
	Experience   float64 `json:"experience"`
	Availability float64 `json:"availability"`
	Requirements float64 `json:"requirements"`
}

// Match pairs one load with one driver and vehicle.
type Match struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	LoadID    string `json:"load_id"`
	DriverID  string `json:"driver_id"`
	VehicleID string `json:"vehicle_id,omitempty"`

	Score   float64        `json:"score"` // 0..100
	Factors ScoreBreakdown `json:"factors"`

	Status          MatchStatus `json:"status"`
	ProposedAt      time.Time   `json:"proposed_at"`
	NotifiedAt      *time.Time  `json:"notified_at,omitempty"`
	RespondedAt     *time.Time  `json:"responded_at,omitempty"`
	ExpiresAt       time.Time   `json:"expires_at"`
	RejectionReason string      `json:"rejection_reason,omitempty"`

	EstimatedPickupAt   *time.Time `json:"estimated_pickup_at,omitempty"`
	EstimatedDeliveryAt *time.Time `json:"estimated_delivery_at,omitempty"`

	AgreedPrice      *float64 `json:"agreed_price,omitempty"`
	DriverCommission *float64 `json:"driver_commission,omitempty"`
	PlatformFee      *float64 `json:"platform_fee,omitempty"`
	PaymentRef       string   `json:"payment_ref,omitempty"`

	LoadOwnerRating *float64 `json:"load_owner_rating,omitempty"`
	DriverRating    *float64 `json:"driver_rating,omitempty"`
}

// Expired reports whether the match's response window has closed at t and
// the sweep may still transition it.
func (m *Match) Expired(t time.Time) bool {
	return m.Status.Expirable() && !t.Before(m.ExpiresAt)
}

// MatchNotice is the payload pushed to a driver when a match is proposed
// to them.
type MatchNotice struct {
	MatchID   string    `json:"match_id"`
	MatchCode string    `json:"match_code"`
	LoadID    string    `json:"load_id"`
	Score     float64   `json:"score"`
	Price     *float64  `json:"price,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}
