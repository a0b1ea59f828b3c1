package models

import "time"

// Driver is a candidate counterpart for a load.
type Driver struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	CompanyID string `json:"company_id"`

	LicenseNumber   string     `json:"license_number"`
	LicenseCategory string     `json:"license_category"`
	LicenseExpiry   *time.Time `json:"license_expiry,omitempty"`
	ExperienceYears int        `json:"experience_years"`

	Location       *Location     `json:"location,omitempty"`
	HomeBase       *Location     `json:"home_base,omitempty"`
	Status         DriverStatus  `json:"status"`
	AvailableFrom  *time.Time    `json:"available_from,omitempty"`
	AvailableUntil *time.Time    `json:"available_until,omitempty"`
	WorkingHours   *WorkingHours `json:"working_hours,omitempty"`
	MaxDistanceKm  float64       `json:"max_distance_km"`

	CompletedLoads int     `json:"completed_loads"`
	AverageRating  float64 `json:"average_rating"` // 0..5
	TotalRatings   int     `json:"total_ratings"`
	OnTimePercent  float64 `json:"on_time_percent"`

	HasADRLicense      bool `json:"has_adr_license"`
	HasSRCLicense      bool `json:"has_src_license"`
	HasForkliftLicense bool `json:"has_forklift_license"`

	CurrentVehicleID string `json:"current_vehicle_id,omitempty"`

	LastSeenAt           time.Time `json:"last_seen_at"`
	LastLocationUpdateAt time.Time `json:"last_location_update_at"`
}

// ApplyRating folds a new 0..5 rating into the running average.
func (d *Driver) ApplyRating(rating float64) {
	total := d.AverageRating*float64(d.TotalRatings) + rating
	d.TotalRatings++
	d.AverageRating = total / float64(d.TotalRatings)
}

// AvailableDuring reports whether the driver's availability window covers
// the [from, until] span. Nil bounds are open.
func (d *Driver) AvailableDuring(from, until time.Time) bool {
	if d.AvailableFrom != nil && d.AvailableFrom.After(from) {
		return false
	}
	if d.AvailableUntil != nil && d.AvailableUntil.Before(until) {
		return false
	}
	return true
}

// DriverLocationUpdate is the event published when a driver reports a new
// position.
type DriverLocationUpdate struct {
	DriverID string       `json:"driver_id"`
	Location Location     `json:"location"`
	Status   DriverStatus `json:"status,omitempty"`
	At       time.Time    `json:"at"`
}
