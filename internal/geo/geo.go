package geo

import (
	"math"
	"sync"
	"time"

	"github.com/example/load-matching/internal/models"
)

// DriverIndex is the minimal geo lookup needed by the driver store and the
// HTTP layer.
type DriverIndex interface {
	Nearby(lat, lon, radiusKm float64, limit int) []models.DriverLocationUpdate
	Upsert(u models.DriverLocationUpdate)
}

// Index is an in-memory DriverIndex. Suitable for single-process
// deployments and tests; production uses RedisIndex.
type Index struct {
	mu      sync.RWMutex
	drivers map[string]models.DriverLocationUpdate
}

func NewIndex() *Index {
	return &Index{drivers: make(map[string]models.DriverLocationUpdate)}
}

func (g *Index) Upsert(u models.DriverLocationUpdate) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if u.At.IsZero() {
		u.At = time.Now()
	}
	g.drivers[u.DriverID] = u
}

// naive scan; in prod use geo-hash or the Redis GEO index
func (g *Index) Nearby(lat, lon, radiusKm float64, limit int) []models.DriverLocationUpdate {
	g.mu.RLock()
	defer g.mu.RUnlock()
	type pair struct {
		u    models.DriverLocationUpdate
		dist float64
	}
	arr := make([]pair, 0, len(g.drivers))
	for _, u := range g.drivers {
		if u.Status == models.DriverOffline {
			continue
		}
		d := DistanceKm(models.Location{Lat: lat, Lon: lon}, u.Location)
		if radiusKm > 0 && d > radiusKm {
			continue
		}
		arr = append(arr, pair{u, d})
	}
	n := limit
	if n <= 0 || n > len(arr) {
		n = len(arr)
	}
	// partial selection sort for top-N
	for i := 0; i < n; i++ {
		minIdx := i
		for j := i + 1; j < len(arr); j++ {
			if arr[j].dist < arr[minIdx].dist {
				minIdx = j
			}
		}
		arr[i], arr[minIdx] = arr[minIdx], arr[i]
	}
	out := make([]models.DriverLocationUpdate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, arr[i].u)
	}
	return out
}

const earthRadiusKm = 6371.0

// DistanceKm is the great-circle (haversine) distance in kilometers between
// two points in decimal degrees. Symmetric, zero for identical points.
func DistanceKm(a, b models.Location) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
