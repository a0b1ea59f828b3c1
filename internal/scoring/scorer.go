package scoring

import (
	"math"
	"time"

	"github.com/example/load-matching/internal/geo"
	"github.com/example/load-matching/internal/models"
	"github.com/example/load-matching/internal/observability"
)

// Policy carries the scoring weights, brackets and proposal threshold so
// operators can tune matching without a rebuild.
type Policy struct {
	DistanceWeight     float64
	RatingWeight       float64
	ExperienceWeight   float64
	AvailabilityWeight float64
	RequirementsWeight float64

	// DistanceBrackets map a max driver-to-pickup distance to a sub-score.
	// Evaluated in order; DistanceFloor applies past the last bracket.
	DistanceBrackets []DistanceBracket
	DistanceFloor    float64

	NewDriverRatingScore float64 // drivers with zero ratings

	ExperienceBrackets []ExperienceBracket
	ExperienceFloor    float64

	NotYetAvailablePenalty  float64 // available-from after pickup
	UnavailableEarlyPenalty float64 // available-until before deadline
	OffSchedulePenalty      float64 // working hours exclude pickup

	MissingADRPenalty float64 // hazardous load, driver without ADR

	// MinScore is the proposal threshold; candidates below it are dropped.
	MinScore float64
}

type DistanceBracket struct {
	MaxKm float64
	Score float64
}

type ExperienceBracket struct {
	MinYears int
	Score    float64
}

func DefaultPolicy() Policy {
	return Policy{
		DistanceWeight:     0.30,
		RatingWeight:       0.25,
		ExperienceWeight:   0.20,
		AvailabilityWeight: 0.15,
		RequirementsWeight: 0.10,
		DistanceBrackets: []DistanceBracket{
			{10, 100}, {50, 90}, {100, 80}, {200, 70},
			{300, 60}, {400, 50}, {500, 40},
		},
		DistanceFloor:        20,
		NewDriverRatingScore: 60,
		ExperienceBrackets: []ExperienceBracket{
			{10, 100}, {5, 90}, {3, 80}, {1, 70},
		},
		ExperienceFloor:         50,
		NotYetAvailablePenalty:  30,
		UnavailableEarlyPenalty: 30,
		OffSchedulePenalty:      20,
		MissingADRPenalty:       50,
		MinScore:                50,
	}
}

// Scorer computes the compatibility score between a load and a driver.
type Scorer struct {
	policy Policy
}

func NewScorer(policy Policy) *Scorer {
	return &Scorer{policy: policy}
}

func (s *Scorer) Policy() Policy { return s.policy }

// Score returns the weighted 0..100 compatibility score rounded to two
// decimals, plus the per-factor breakdown.
func (s *Scorer) Score(load *models.Load, driver *models.Driver) (float64, models.ScoreBreakdown) {
	start := time.Now()

	b := models.ScoreBreakdown{
		Distance:     s.distanceScore(load, driver),
		Rating:       s.ratingScore(driver),
		Experience:   s.experienceScore(driver),
		Availability: s.availabilityScore(load, driver),
		Requirements: s.requirementsScore(load, driver),
	}
	total := b.Distance*s.policy.DistanceWeight +
		b.Rating*s.policy.RatingWeight +
		b.Experience*s.policy.ExperienceWeight +
		b.Availability*s.policy.AvailabilityWeight +
		b.Requirements*s.policy.RequirementsWeight
	total = math.Round(total*100) / 100

	observability.ScoringLatency.Observe(time.Since(start).Seconds())
	return total, b
}

func (s *Scorer) distanceScore(load *models.Load, driver *models.Driver) float64 {
	pickup := load.FirstPickup()
	if pickup == nil || driver.Location == nil {
		return s.policy.DistanceFloor
	}
	km := geo.DistanceKm(*driver.Location, pickup.Location)
	for _, br := range s.policy.DistanceBrackets {
		if km <= br.MaxKm {
			return br.Score
		}
	}
	return s.policy.DistanceFloor
}

func (s *Scorer) ratingScore(driver *models.Driver) float64 {
	if driver.TotalRatings == 0 {
		return s.policy.NewDriverRatingScore
	}
	return math.Min(driver.AverageRating*20, 100)
}

func (s *Scorer) experienceScore(driver *models.Driver) float64 {
	for _, br := range s.policy.ExperienceBrackets {
		if driver.ExperienceYears >= br.MinYears {
			return br.Score
		}
	}
	return s.policy.ExperienceFloor
}

func (s *Scorer) availabilityScore(load *models.Load, driver *models.Driver) float64 {
	score := 100.0
	pickup := load.PickupTime()
	deadline := load.Deadline()

	if driver.AvailableFrom != nil && driver.AvailableFrom.After(pickup) {
		score -= s.policy.NotYetAvailablePenalty
	}
	if driver.AvailableUntil != nil && driver.AvailableUntil.Before(deadline) {
		score -= s.policy.UnavailableEarlyPenalty
	}
	if driver.WorkingHours != nil && !driver.WorkingHours.AvailableAt(pickup) {
		score -= s.policy.OffSchedulePenalty
	}
	if score < 0 {
		score = 0
	}
	return score
}

func (s *Scorer) requirementsScore(load *models.Load, driver *models.Driver) float64 {
	score := 100.0
	for _, r := range load.Requirements {
		if r.Hazard() && !driver.HasADRLicense {
			score -= s.policy.MissingADRPenalty
			break
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}
