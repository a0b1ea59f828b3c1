package models

import (
	"math"
	"time"
)

// weightEpsilon is the tolerance when comparing summed pickup and delivery
// weights across stops.
const weightEpsilon = 0.01

// Stop is one pickup/delivery unit in a load's itinerary. Orders form a
// contiguous 1..N sequence on the owning load.
type Stop struct {
	Order          int                  `json:"order"`
	Type           StopType             `json:"type"`
	Location       Location             `json:"location"`
	EarliestTime   time.Time            `json:"earliest_time"`
	LatestTime     time.Time            `json:"latest_time"`
	PlannedTime    time.Time            `json:"planned_time"`
	ServiceMinutes int                  `json:"service_minutes"`
	PickupKg       float64              `json:"pickup_kg"`
	DeliveryKg     float64              `json:"delivery_kg"`
	PickupM3       float64              `json:"pickup_m3"`
	DeliveryM3     float64              `json:"delivery_m3"`
	Requirements   []SpecialRequirement `json:"requirements,omitempty"`
	Status         StopStatus           `json:"status"`
	Instructions   string               `json:"instructions,omitempty"`
	ContactName    string               `json:"contact_name,omitempty"`
	ContactPhone   string               `json:"contact_phone,omitempty"`
}

func (s *Stop) IsPickup() bool   { return s.Type == StopPickup || s.Type == StopBoth }
func (s *Stop) IsDelivery() bool { return s.Type == StopDelivery || s.Type == StopBoth }

// WithinWindow reports whether t falls inside the stop's time window.
// Zero bounds are open.
func (s *Stop) WithinWindow(t time.Time) bool {
	if !s.EarliestTime.IsZero() && t.Before(s.EarliestTime) {
		return false
	}
	if !s.LatestTime.IsZero() && t.After(s.LatestTime) {
		return false
	}
	return true
}

// NetWeightChange is pickup minus delivery weight at this stop.
func (s *Stop) NetWeightChange() float64 { return s.PickupKg - s.DeliveryKg }

// Load is a shippable cargo request with one or more ordered stops.
type Load struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	CompanyID   string     `json:"company_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      LoadStatus `json:"status"`

	WeightKg     float64              `json:"weight_kg"`
	VolumeM3     float64              `json:"volume_m3,omitempty"`
	Dimensions   *Dimensions          `json:"dimensions,omitempty"`
	LoadType     LoadType             `json:"load_type"`
	Requirements []SpecialRequirement `json:"requirements,omitempty"`

	Stops []Stop `json:"stops"`

	// Aggregates recomputed from the stop list.
	TotalDistanceKm    float64   `json:"total_distance_km,omitempty"`
	EstimatedMinutes   int       `json:"estimated_minutes,omitempty"`
	EarliestPickupTime time.Time `json:"earliest_pickup_time"`
	LatestDeliveryTime time.Time `json:"latest_delivery_time"`

	FixedPrice *float64 `json:"fixed_price,omitempty"`

	MatchedDriverID  string     `json:"matched_driver_id,omitempty"`
	MatchedVehicleID string     `json:"matched_vehicle_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	PublishedAt      *time.Time `json:"published_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// HasRequirement checks the load-level requirement set.
func (l *Load) HasRequirement(r SpecialRequirement) bool {
	for _, req := range l.Requirements {
		if req == r {
			return true
		}
	}
	return false
}

// FirstPickup returns the lowest-ordered pickup stop, or nil.
func (l *Load) FirstPickup() *Stop {
	for i := range l.Stops {
		if l.Stops[i].IsPickup() {
			return &l.Stops[i]
		}
	}
	return nil
}

// LastDelivery returns the highest-ordered delivery stop, or nil.
func (l *Load) LastDelivery() *Stop {
	for i := len(l.Stops) - 1; i >= 0; i-- {
		if l.Stops[i].IsDelivery() {
			return &l.Stops[i]
		}
	}
	return nil
}

func (l *Load) TotalPickupKg() float64 {
	var sum float64
	for i := range l.Stops {
		sum += l.Stops[i].PickupKg
	}
	return sum
}

func (l *Load) TotalDeliveryKg() float64 {
	var sum float64
	for i := range l.Stops {
		sum += l.Stops[i].DeliveryKg
	}
	return sum
}

// PickupTime is the time the load must be picked up: the planned time of the
// first pickup stop, falling back to the load-level earliest pickup.
func (l *Load) PickupTime() time.Time {
	if p := l.FirstPickup(); p != nil && !p.PlannedTime.IsZero() {
		return p.PlannedTime
	}
	return l.EarliestPickupTime
}

// Deadline is the latest delivery bound across stops.
func (l *Load) Deadline() time.Time {
	if d := l.LastDelivery(); d != nil && !d.LatestTime.IsZero() {
		return d.LatestTime
	}
	return l.LatestDeliveryTime
}

// RecomputeAggregates refreshes the earliest-pickup and latest-delivery
// bounds from the stop list. Distance and duration are set by the route
// estimator.
func (l *Load) RecomputeAggregates() {
	l.EarliestPickupTime = time.Time{}
	l.LatestDeliveryTime = time.Time{}
	for i := range l.Stops {
		s := &l.Stops[i]
		if s.IsPickup() && !s.EarliestTime.IsZero() {
			if l.EarliestPickupTime.IsZero() || s.EarliestTime.Before(l.EarliestPickupTime) {
				l.EarliestPickupTime = s.EarliestTime
			}
		}
		if s.IsDelivery() && !s.LatestTime.IsZero() {
			if s.LatestTime.After(l.LatestDeliveryTime) {
				l.LatestDeliveryTime = s.LatestTime
			}
		}
	}
}

// Validate checks the structural invariants of a load before it can be
// saved or published.
func (l *Load) Validate() error {
	if l.Title == "" {
		return Invalidf("title is required")
	}
	if l.WeightKg <= 0 {
		return Invalidf("weight must be greater than 0")
	}
	if len(l.Stops) == 0 {
		return Invalidf("at least one stop is required")
	}
	for i := range l.Stops {
		s := &l.Stops[i]
		if s.Order != i+1 {
			return Invalidf("stop orders must form a contiguous 1..%d sequence", len(l.Stops))
		}
		if s.Location.Lat == 0 && s.Location.Lon == 0 && s.Location.Address == "" {
			return Invalidf("stop %d: location is required", s.Order)
		}
		if !s.EarliestTime.IsZero() && !s.LatestTime.IsZero() && !s.EarliestTime.Before(s.LatestTime) {
			return Invalidf("stop %d: earliest time must be before latest time", s.Order)
		}
		if s.PickupKg < 0 || s.DeliveryKg < 0 {
			return Invalidf("stop %d: weights cannot be negative", s.Order)
		}
		if s.Type == StopPickup && s.PickupKg <= 0 {
			return Invalidf("stop %d: pickup stops must carry pickup weight", s.Order)
		}
		if s.Type == StopDelivery && s.DeliveryKg <= 0 {
			return Invalidf("stop %d: delivery stops must carry delivery weight", s.Order)
		}
	}
	if l.FirstPickup() == nil {
		return Invalidf("a pickup stop is required")
	}
	if l.LastDelivery() == nil {
		return Invalidf("a delivery stop is required")
	}
	if math.Abs(l.TotalPickupKg()-l.TotalDeliveryKg()) > weightEpsilon {
		return Invalidf("total pickup weight %.2f does not balance delivery weight %.2f",
			l.TotalPickupKg(), l.TotalDeliveryKg())
	}
	pickup, deadline := l.PickupTime(), l.Deadline()
	if !pickup.IsZero() && !deadline.IsZero() && !pickup.Before(deadline) {
		return Invalidf("pickup time must be before the delivery deadline")
	}
	return nil
}
