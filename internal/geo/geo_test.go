package geo

import (
	"math"
	"testing"

	"github.com/example/load-matching/internal/models"
)

func TestDistanceKmZeroForSamePoint(t *testing.T) {
	p := models.Location{Lat: 41.0082, Lon: 28.9784}
	if d := DistanceKm(p, p); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestDistanceKmSymmetric(t *testing.T) {
	a := models.Location{Lat: 41.0082, Lon: 28.9784} // Istanbul
	b := models.Location{Lat: 39.9334, Lon: 32.8597} // Ankara
	if DistanceKm(a, b) != DistanceKm(b, a) {
		t.Fatalf("distance is not symmetric")
	}
}

func TestDistanceKmKnownPair(t *testing.T) {
	a := models.Location{Lat: 41.0082, Lon: 28.9784}
	b := models.Location{Lat: 39.9334, Lon: 32.8597}
	d := DistanceKm(a, b)
	// Great-circle Istanbul-Ankara is ~350km.
	if d < 340 || d > 360 {
		t.Fatalf("expected ~350km, got %f", d)
	}
}

func TestDistanceKmMonotonicAlongMeridian(t *testing.T) {
	origin := models.Location{Lat: 0, Lon: 0}
	prev := 0.0
	for lat := 1.0; lat <= 10; lat++ {
		d := DistanceKm(origin, models.Location{Lat: lat, Lon: 0})
		if d <= prev {
			t.Fatalf("expected monotonic growth, got %f after %f", d, prev)
		}
		prev = d
	}
	// One degree of latitude is ~111km everywhere.
	if one := DistanceKm(origin, models.Location{Lat: 1, Lon: 0}); math.Abs(one-111.19) > 0.5 {
		t.Fatalf("expected ~111.19km per degree, got %f", one)
	}
}

func TestIndexNearbyOrdersByDistance(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(models.DriverLocationUpdate{DriverID: "far", Location: models.Location{Lat: 2, Lon: 2}, Status: models.DriverAvailable})
	idx.Upsert(models.DriverLocationUpdate{DriverID: "near", Location: models.Location{Lat: 0.1, Lon: 0.1}, Status: models.DriverAvailable})
	idx.Upsert(models.DriverLocationUpdate{DriverID: "offline", Location: models.Location{Lat: 0, Lon: 0}, Status: models.DriverOffline})

	got := idx.Nearby(0, 0, 0, 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 drivers, got %d", len(got))
	}
	if got[0].DriverID != "near" || got[1].DriverID != "far" {
		t.Fatalf("unexpected order: %s, %s", got[0].DriverID, got[1].DriverID)
	}
}

func TestIndexNearbyRespectsRadius(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(models.DriverLocationUpdate{DriverID: "d1", Location: models.Location{Lat: 5, Lon: 5}, Status: models.DriverAvailable})
	if got := idx.Nearby(0, 0, 100, 10); len(got) != 0 {
		t.Fatalf("expected radius filter to drop far driver, got %d", len(got))
	}
}

func TestEstimateRoute(t *testing.T) {
	stops := []models.Stop{
		{Order: 1, Location: models.Location{Lat: 0, Lon: 0}, ServiceMinutes: 30},
		{Order: 2, Location: models.Location{Lat: 1, Lon: 0}, ServiceMinutes: 30},
	}
	est := EstimateRoute(stops)
	want := 111.19 * roadFactor
	if math.Abs(est.TotalDistanceKm-want) > 1 {
		t.Fatalf("expected ~%.1fkm, got %f", want, est.TotalDistanceKm)
	}
	if est.EstimatedMinutes <= 60 {
		t.Fatalf("expected drive plus service time, got %d minutes", est.EstimatedMinutes)
	}
	if got := EstimateRoute(stops[:1]); got.TotalDistanceKm != 0 {
		t.Fatalf("single stop should estimate zero, got %f", got.TotalDistanceKm)
	}
}
