package storage

import (
	"context"
	"sync"
	"time"

	"github.com/example/load-matching/internal/geo"
	"github.com/example/load-matching/internal/models"
)

// MemoryStore keeps every entity in process memory. Used by tests and
// single-node deployments without Postgres.
type MemoryStore struct {
	mu           sync.RWMutex
	loads        map[string]*models.Load
	drivers      map[string]*models.Driver
	matches      map[string]*models.Match
	calculations map[string]*models.PricingCalculation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		loads:        make(map[string]*models.Load),
		drivers:      make(map[string]*models.Driver),
		matches:      make(map[string]*models.Match),
		calculations: make(map[string]*models.PricingCalculation),
	}
}

func (m *MemoryStore) GetLoad(ctx context.Context, id string) (*models.Load, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.loads[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return l, nil
}

func (m *MemoryStore) GetAvailableLoads(ctx context.Context, loc *models.Location, maxDistanceKm float64) ([]*models.Load, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Load
	for _, l := range m.loads {
		if l.Status != models.LoadPublished {
			continue
		}
		if loc != nil && maxDistanceKm > 0 {
			pickup := l.FirstPickup()
			if pickup == nil || geo.DistanceKm(*loc, pickup.Location) > maxDistanceKm {
				continue
			}
		}
		out = append(out, l)
	}
	return out, nil
}

func (m *MemoryStore) SaveLoad(ctx context.Context, l *models.Load) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads[l.ID] = l
	return nil
}

func (m *MemoryStore) UpdateLoadStatus(ctx context.Context, id string, status models.LoadStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.loads[id]; ok {
		l.Status = status
		l.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MemoryStore) GetDriver(ctx context.Context, id string) (*models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return d, nil
}

func (m *MemoryStore) GetAvailableDrivers(ctx context.Context, loc *models.Location, maxDistanceKm float64, from, until time.Time) ([]*models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Driver
	for _, d := range m.drivers {
		if d.Status != models.DriverAvailable {
			continue
		}
		if !d.AvailableDuring(from, until) {
			continue
		}
		if loc != nil && maxDistanceKm > 0 {
			if d.Location == nil || geo.DistanceKm(*loc, *d.Location) > maxDistanceKm {
				continue
			}
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *MemoryStore) SaveDriver(ctx context.Context, d *models.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[d.ID] = d
	return nil
}

func (m *MemoryStore) UpdateDriverLocation(ctx context.Context, id string, loc models.Location, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return models.ErrNotFound
	}
	d.Location = &loc
	d.LastLocationUpdateAt = at
	d.LastSeenAt = at
	return nil
}

func (m *MemoryStore) UpdateDriverStatus(ctx context.Context, id string, status models.DriverStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return models.ErrNotFound
	}
	d.Status = status
	return nil
}

func (m *MemoryStore) UpdateDriverRating(ctx context.Context, id string, rating float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return models.ErrNotFound
	}
	d.ApplyRating(rating)
	return nil
}

func (m *MemoryStore) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mt, ok := m.matches[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return mt, nil
}

func (m *MemoryStore) GetActiveByLoad(ctx context.Context, loadID string) (*models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mt := range m.matches {
		if mt.LoadID == loadID && mt.Status.Active() {
			return mt, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MemoryStore) GetActiveByDriver(ctx context.Context, driverID string) (*models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mt := range m.matches {
		if mt.DriverID == driverID && mt.Status.Active() {
			return mt, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MemoryStore) SaveMatch(ctx context.Context, mt *models.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[mt.ID] = mt
	return nil
}

func (m *MemoryStore) UpdateMatchStatus(ctx context.Context, id string, status models.MatchStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mt, ok := m.matches[id]; ok {
		mt.Status = status
	}
	return nil
}

func (m *MemoryStore) GetExpired(ctx context.Context, now time.Time) ([]*models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Match
	for _, mt := range m.matches {
		if mt.Expired(now) {
			out = append(out, mt)
		}
	}
	return out, nil
}

func (m *MemoryStore) SaveCalculation(ctx context.Context, c *models.PricingCalculation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calculations[c.ID] = c
	return nil
}

func (m *MemoryStore) GetCalculation(ctx context.Context, id string) (*models.PricingCalculation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.calculations[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return c, nil
}

func (m *MemoryStore) GetCalculationsByLoad(ctx context.Context, loadID string) ([]*models.PricingCalculation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.PricingCalculation
	for _, c := range m.calculations {
		if c.LoadID == loadID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateCalculation(ctx context.Context, c *models.PricingCalculation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.calculations[c.ID]; !ok {
		return models.ErrNotFound
	}
	m.calculations[c.ID] = c
	return nil
}
