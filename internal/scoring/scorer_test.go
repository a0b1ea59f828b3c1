package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/example/load-matching/internal/models"
)

var (
	pickupAt   = time.Date(2024, time.March, 6, 11, 0, 0, 0, time.UTC) // Wednesday
	deadlineAt = pickupAt.Add(48 * time.Hour)
	pickupLoc  = models.Location{Lat: 41.0, Lon: 29.0, City: "Istanbul"}
)

func testLoad(reqs ...models.SpecialRequirement) *models.Load {
	return &models.Load{
		ID:           "load-1",
		Title:        "pallets",
		Status:       models.LoadPublished,
		WeightKg:     1200,
		Requirements: reqs,
		Stops: []models.Stop{
			{Order: 1, Type: models.StopPickup, Location: pickupLoc, PlannedTime: pickupAt, PickupKg: 1200},
			{Order: 2, Type: models.StopDelivery, Location: models.Location{Lat: 39.9, Lon: 32.8}, LatestTime: deadlineAt, DeliveryKg: 1200},
		},
	}
}

// nearbyDriver sits about 5 km north of the pickup with no history and an
// open availability window.
func nearbyDriver() *models.Driver {
	return &models.Driver{
		ID:       "driver-1",
		Status:   models.DriverAvailable,
		Location: &models.Location{Lat: 41.045, Lon: 29.0},
	}
}

func TestScoreNewNearbyDriver(t *testing.T) {
	s := NewScorer(DefaultPolicy())
	score, b := s.Score(testLoad(), nearbyDriver())
	// 100*.30 + 60*.25 + 50*.20 + 100*.15 + 100*.10
	if score != 80 {
		t.Fatalf("expected 80, got %f (breakdown %+v)", score, b)
	}
	if b.Distance != 100 || b.Rating != 60 || b.Experience != 50 ||
		b.Availability != 100 || b.Requirements != 100 {
		t.Fatalf("unexpected breakdown %+v", b)
	}
}

func TestDistanceBrackets(t *testing.T) {
	s := NewScorer(DefaultPolicy())
	cases := []struct {
		latOffset float64 // degrees north of pickup, ~111.19 km each
		want      float64
	}{
		{0.04, 100}, // ~4.4 km
		{0.30, 90},  // ~33 km
		{0.80, 80},  // ~89 km
		{1.60, 70},  // ~178 km
		{2.50, 60},  // ~278 km
		{3.50, 50},  // ~389 km
		{4.40, 40},  // ~489 km
		{6.00, 20},  // ~667 km, past the last bracket
	}
	for _, c := range cases {
		d := nearbyDriver()
		d.Location = &models.Location{Lat: pickupLoc.Lat + c.latOffset, Lon: pickupLoc.Lon}
		_, b := s.Score(testLoad(), d)
		if b.Distance != c.want {
			t.Fatalf("offset=%f: expected distance score %f, got %f", c.latOffset, c.want, b.Distance)
		}
	}
}

func TestRatingScore(t *testing.T) {
	s := NewScorer(DefaultPolicy())
	d := nearbyDriver()
	d.TotalRatings = 12
	d.AverageRating = 4.5
	_, b := s.Score(testLoad(), d)
	if b.Rating != 90 {
		t.Fatalf("expected rating score 90, got %f", b.Rating)
	}

	d.AverageRating = 5.0
	if _, b = s.Score(testLoad(), d); b.Rating != 100 {
		t.Fatalf("rating score must cap at 100, got %f", b.Rating)
	}
}

func TestExperienceBrackets(t *testing.T) {
	s := NewScorer(DefaultPolicy())
	cases := map[int]float64{0: 50, 1: 70, 2: 70, 3: 80, 4: 80, 5: 90, 9: 90, 10: 100, 25: 100}
	for years, want := range cases {
		d := nearbyDriver()
		d.ExperienceYears = years
		if _, b := s.Score(testLoad(), d); b.Experience != want {
			t.Fatalf("years=%d: expected %f, got %f", years, want, b.Experience)
		}
	}
}

func TestAvailabilityPenalties(t *testing.T) {
	s := NewScorer(DefaultPolicy())

	late := pickupAt.Add(2 * time.Hour)
	early := deadlineAt.Add(-2 * time.Hour)

	d := nearbyDriver()
	d.AvailableFrom = &late
	if _, b := s.Score(testLoad(), d); b.Availability != 70 {
		t.Fatalf("late start: expected 70, got %f", b.Availability)
	}

	d = nearbyDriver()
	d.AvailableUntil = &early
	if _, b := s.Score(testLoad(), d); b.Availability != 70 {
		t.Fatalf("early end: expected 70, got %f", b.Availability)
	}

	nights := &models.WorkingHours{}
	for i := range nights.Days {
		nights.Days[i] = models.TimeSlot{StartMinute: 22 * 60, EndMinute: 23*60 + 59, Working: true}
	}
	d = nearbyDriver()
	d.WorkingHours = nights
	if _, b := s.Score(testLoad(), d); b.Availability != 80 {
		t.Fatalf("off schedule: expected 80, got %f", b.Availability)
	}

	// All three penalties stack: 100 - 30 - 30 - 20.
	d = nearbyDriver()
	d.AvailableFrom = &late
	d.AvailableUntil = &early
	d.WorkingHours = nights
	if _, b := s.Score(testLoad(), d); b.Availability != 20 {
		t.Fatalf("stacked penalties: expected 20, got %f", b.Availability)
	}
}

func TestHazardousNeedsADR(t *testing.T) {
	s := NewScorer(DefaultPolicy())
	load := testLoad(models.ReqHazardous)

	d := nearbyDriver()
	if _, b := s.Score(load, d); b.Requirements != 50 {
		t.Fatalf("missing ADR: expected 50, got %f", b.Requirements)
	}

	d.HasADRLicense = true
	if _, b := s.Score(load, d); b.Requirements != 100 {
		t.Fatalf("ADR present: expected 100, got %f", b.Requirements)
	}
}

func TestScoreRounding(t *testing.T) {
	s := NewScorer(DefaultPolicy())
	d := nearbyDriver()
	d.TotalRatings = 3
	d.AverageRating = 3.333
	score, _ := s.Score(testLoad(), d)
	if score != math.Round(score*100)/100 {
		t.Fatalf("score not rounded to 2 decimals: %v", score)
	}
}

func TestScoreAllFiltersAndSorts(t *testing.T) {
	s := NewScorer(DefaultPolicy())
	load := testLoad(models.ReqHazardous)

	veteran := nearbyDriver()
	veteran.ID = "veteran"
	veteran.ExperienceYears = 12
	veteran.TotalRatings = 40
	veteran.AverageRating = 4.8
	veteran.HasADRLicense = true

	rookie := nearbyDriver()
	rookie.ID = "rookie"
	rookie.HasADRLicense = true

	// Far away, no ADR license and not free until after pickup: lands
	// below the 50-point threshold (6 + 15 + 10 + 10.5 + 5 = 46.5).
	lateStart := pickupAt.Add(6 * time.Hour)
	outclassed := &models.Driver{
		ID:            "outclassed",
		Status:        models.DriverAvailable,
		Location:      &models.Location{Lat: 52.5, Lon: 13.4},
		AvailableFrom: &lateStart,
	}

	got := s.ScoreAll(load, []*models.Driver{rookie, outclassed, veteran})
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates above threshold, got %d", len(got))
	}
	if got[0].Driver.ID != "veteran" || got[1].Driver.ID != "rookie" {
		t.Fatalf("unexpected ordering: %s, %s", got[0].Driver.ID, got[1].Driver.ID)
	}
	if got[0].Score <= got[1].Score {
		t.Fatalf("expected descending scores, got %f then %f", got[0].Score, got[1].Score)
	}
}

func TestScoreAllEmpty(t *testing.T) {
	s := NewScorer(DefaultPolicy())
	if got := s.ScoreAll(testLoad(), nil); got != nil {
		t.Fatalf("expected nil for no drivers, got %v", got)
	}
}
