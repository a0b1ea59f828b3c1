package storage

import (
	"context"
	"time"

	"github.com/example/load-matching/internal/models"
)

// LoadStore defines persistence operations for loads.
type LoadStore interface {
	GetLoad(ctx context.Context, id string) (*models.Load, error)
	// GetAvailableLoads returns Published loads, optionally filtered to
	// those whose first pickup lies within maxDistanceKm of loc.
	GetAvailableLoads(ctx context.Context, loc *models.Location, maxDistanceKm float64) ([]*models.Load, error)
	SaveLoad(ctx context.Context, l *models.Load) error
	UpdateLoadStatus(ctx context.Context, id string, status models.LoadStatus) error
}

// DriverStore defines persistence operations for drivers.
type DriverStore interface {
	GetDriver(ctx context.Context, id string) (*models.Driver, error)
	// GetAvailableDrivers returns Available drivers whose availability
	// window covers [from, until], optionally filtered by distance to loc.
	GetAvailableDrivers(ctx context.Context, loc *models.Location, maxDistanceKm float64, from, until time.Time) ([]*models.Driver, error)
	SaveDriver(ctx context.Context, d *models.Driver) error
	UpdateDriverLocation(ctx context.Context, id string, loc models.Location, at time.Time) error
	UpdateDriverStatus(ctx context.Context, id string, status models.DriverStatus) error
	// UpdateDriverRating folds one new rating into the running average.
	UpdateDriverRating(ctx context.Context, id string, rating float64) error
}

// MatchStore defines persistence operations for matches.
type MatchStore interface {
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	GetActiveByLoad(ctx context.Context, loadID string) (*models.Match, error)
	GetActiveByDriver(ctx context.Context, driverID string) (*models.Match, error)
	SaveMatch(ctx context.Context, m *models.Match) error
	// UpdateMatchStatus is a silent no-op when the match does not exist.
	UpdateMatchStatus(ctx context.Context, id string, status models.MatchStatus) error
	GetExpired(ctx context.Context, now time.Time) ([]*models.Match, error)
}

// CalculationStore persists pricing audit records.
type CalculationStore interface {
	SaveCalculation(ctx context.Context, c *models.PricingCalculation) error
	GetCalculation(ctx context.Context, id string) (*models.PricingCalculation, error)
	GetCalculationsByLoad(ctx context.Context, loadID string) ([]*models.PricingCalculation, error)
	// UpdateCalculation covers the manual-adjustment and acceptance marks.
	UpdateCalculation(ctx context.Context, c *models.PricingCalculation) error
}
