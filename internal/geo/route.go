package geo

import (
	"math"

	"github.com/example/load-matching/internal/models"
)

// roadFactor inflates straight-line distance to approximate road routing.
const roadFactor = 1.3

// averageSpeedKmh is the assumed travel speed for duration estimates.
const averageSpeedKmh = 60.0

// RouteEstimate is a deterministic itinerary estimate. Real route
// optimization is out of scope; this is the haversine fallback used for
// load aggregates and pricing input.
type RouteEstimate struct {
	TotalDistanceKm  float64
	EstimatedMinutes int
}

// EstimateRoute walks the stops in order and sums leg distances. Fewer than
// two stops yields a zero estimate.
func EstimateRoute(stops []models.Stop) RouteEstimate {
	if len(stops) < 2 {
		return RouteEstimate{}
	}
	var total float64
	for i := 0; i < len(stops)-1; i++ {
		total += DistanceKm(stops[i].Location, stops[i+1].Location) * roadFactor
	}
	minutes := int(math.Round(total / averageSpeedKmh * 60))
	for i := range stops {
		minutes += stops[i].ServiceMinutes
	}
	return RouteEstimate{
		TotalDistanceKm:  math.Round(total*100) / 100,
		EstimatedMinutes: minutes,
	}
}
