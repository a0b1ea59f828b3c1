package pricing

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/example/load-matching/internal/models"
)

// fixedNow is a Tuesday at noon; pickups built from it sit far in the
// future unless a test says otherwise.
var fixedNow = time.Date(2024, time.January, 2, 12, 0, 0, 0, time.UTC)

// weekday midday pickup well beyond the urgency horizon
var calmPickup = fixedNow.Add(31 * 24 * time.Hour)

func newTestEngine(advisor Advisor) *Engine {
	e := NewEngine(DefaultConfig(), advisor, nil, nil)
	e.now = func() time.Time { return fixedNow }
	return e
}

func baseRequest() Request {
	return Request{
		DistanceKm:   100,
		WeightKg:     1000,
		LoadType:     models.LoadTypeGeneralCargo,
		PickupTime:   calmPickup,
		DeliveryTime: calmPickup.Add(48 * time.Hour),
	}
}

func TestCalculatePriceBaseline(t *testing.T) {
	e := newTestEngine(nil)
	calc, err := e.CalculatePrice(context.Background(), baseRequest())
	if err != nil {
		t.Fatal(err)
	}
	if calc.BasePrice != 500 {
		t.Fatalf("expected base 500, got %f", calc.BasePrice)
	}
	if calc.Factors.TotalMultiplier != 1.0 {
		t.Fatalf("expected multiplier 1.0, got %f", calc.Factors.TotalMultiplier)
	}
	if calc.RecommendedPrice != 500 {
		t.Fatalf("expected recommended 500, got %f", calc.RecommendedPrice)
	}
	if calc.OptimizedPrice != nil {
		t.Fatal("advisory disabled, optimized price must be nil")
	}
}

func TestCalculatePriceHazardous(t *testing.T) {
	e := newTestEngine(nil)
	req := baseRequest()
	req.Requirements = []models.SpecialRequirement{models.ReqHazardous}
	calc, err := e.CalculatePrice(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if calc.Factors.Hazardous != 1.5 {
		t.Fatalf("expected hazardous factor 1.5, got %f", calc.Factors.Hazardous)
	}
	if calc.RecommendedPrice != 750 {
		t.Fatalf("expected 750, got %f", calc.RecommendedPrice)
	}
}

func TestCalculatePriceHazardousPlusOversized(t *testing.T) {
	e := newTestEngine(nil)
	req := baseRequest()
	req.Requirements = []models.SpecialRequirement{models.ReqHazardous, models.ReqOversized}
	calc, err := e.CalculatePrice(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	// Oversized is an "other" requirement: 1.05 on top of the 1.5 hazard.
	if calc.Factors.Requirements != 1.05 {
		t.Fatalf("expected requirements factor 1.05, got %f", calc.Factors.Requirements)
	}
	if math.Abs(calc.RecommendedPrice-787.5) > 1e-9 {
		t.Fatalf("expected 787.5, got %f", calc.RecommendedPrice)
	}
}

func TestFactorsAlwaysPresent(t *testing.T) {
	e := newTestEngine(nil)
	calc, err := e.CalculatePrice(context.Background(), baseRequest())
	if err != nil {
		t.Fatal(err)
	}
	f := calc.Factors
	for name, v := range map[string]float64{
		"volume": f.Volume, "hazardous": f.Hazardous, "refrigerated": f.Refrigerated,
		"weekend": f.Weekend, "peak_hours": f.PeakHours, "urgency": f.Urgency,
		"requirements": f.Requirements,
	} {
		if v != 1.0 {
			t.Fatalf("factor %s should default to 1.0, got %f", name, v)
		}
	}
}

func TestWeekendAndPeakFactors(t *testing.T) {
	e := newTestEngine(nil)
	req := baseRequest()
	// Saturday 08:30, weekend and morning peak stack.
	req.PickupTime = time.Date(2024, time.February, 3, 8, 30, 0, 0, time.UTC)
	calc, err := e.CalculatePrice(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if calc.Factors.Weekend != 1.25 || calc.Factors.PeakHours != 1.15 {
		t.Fatalf("unexpected factors: %+v", calc.Factors)
	}
}

func TestUrgencyBrackets(t *testing.T) {
	e := newTestEngine(nil)
	cases := []struct {
		until time.Duration
		want  float64
	}{
		{12 * time.Hour, 1.4},
		{36 * time.Hour, 1.2},
		{72 * time.Hour, 1.0},
	}
	for _, c := range cases {
		req := baseRequest()
		// fixedNow is a Tuesday noon, so these pickups land on midweek
		// midnights and middays, clear of peak and weekend windows.
		req.PickupTime = fixedNow.Add(c.until)
		calc, err := e.CalculatePrice(context.Background(), req)
		if err != nil {
			t.Fatal(err)
		}
		if calc.Factors.Urgency != c.want {
			t.Fatalf("until=%v: expected urgency %f, got %f", c.until, c.want, calc.Factors.Urgency)
		}
	}
}

func TestVolumeFactor(t *testing.T) {
	e := newTestEngine(nil)
	req := baseRequest()
	req.VolumeM3 = 25
	calc, err := e.CalculatePrice(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if calc.Factors.Volume != 1.15 {
		t.Fatalf("expected volume factor 1.15, got %f", calc.Factors.Volume)
	}
}

func TestInvalidInput(t *testing.T) {
	e := newTestEngine(nil)
	req := baseRequest()
	req.DistanceKm = 0
	if _, err := e.CalculatePrice(context.Background(), req); !models.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	req = baseRequest()
	req.WeightKg = -1
	if _, err := e.CalculatePrice(context.Background(), req); !models.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type stubAdvisor struct {
	price float64
	err   error
}

func (s *stubAdvisor) OptimizePrice(ctx context.Context, req AdvisoryRequest) (float64, error) {
	return s.price, s.err
}

func TestAdvisoryClamped(t *testing.T) {
	cases := []struct {
		returned float64
		want     float64
	}{
		{10, 250},     // clamped up to 0.5*500
		{600, 600},    // in range, trusted
		{99999, 1000}, // clamped down to 2.0*500
		{-50, 250},    // negative treated like any low value
	}
	for _, c := range cases {
		e := newTestEngine(&stubAdvisor{price: c.returned})
		req := baseRequest()
		req.UseAdvisory = true
		calc, err := e.CalculatePrice(context.Background(), req)
		if err != nil {
			t.Fatal(err)
		}
		if calc.OptimizedPrice == nil || *calc.OptimizedPrice != c.want {
			t.Fatalf("returned=%f: expected %f, got %+v", c.returned, c.want, calc.OptimizedPrice)
		}
		if calc.RecommendedPrice != c.want {
			t.Fatalf("recommended should follow optimized, got %f", calc.RecommendedPrice)
		}
	}
}

func TestAdvisoryFailureFallsBack(t *testing.T) {
	e := newTestEngine(&stubAdvisor{err: errors.New("model unavailable")})
	req := baseRequest()
	req.UseAdvisory = true
	calc, err := e.CalculatePrice(context.Background(), req)
	if err != nil {
		t.Fatalf("advisory failure must not surface: %v", err)
	}
	if calc.OptimizedPrice != nil {
		t.Fatal("failed advisory must not set optimized price")
	}
	if calc.RecommendedPrice != calc.FinalPrice {
		t.Fatalf("expected fallback to final price, got %f", calc.RecommendedPrice)
	}
}

type slowAdvisor struct{}

func (slowAdvisor) OptimizePrice(ctx context.Context, req AdvisoryRequest) (float64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(time.Second):
		return req.FinalPrice * 1.1, nil
	}
}

func TestAdvisoryTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdvisoryTimeout = 10 * time.Millisecond
	e := NewEngine(cfg, slowAdvisor{}, nil, nil)
	e.now = func() time.Time { return fixedNow }
	req := baseRequest()
	req.UseAdvisory = true
	calc, err := e.CalculatePrice(context.Background(), req)
	if err != nil {
		t.Fatalf("timeout must not surface: %v", err)
	}
	if calc.RecommendedPrice != calc.FinalPrice {
		t.Fatalf("expected deterministic fallback, got %f", calc.RecommendedPrice)
	}
}

type captureStore struct{ saved *models.PricingCalculation }

func (c *captureStore) SaveCalculation(ctx context.Context, calc *models.PricingCalculation) error {
	c.saved = calc
	return nil
}

func TestAuditRecordPersisted(t *testing.T) {
	store := &captureStore{}
	e := NewEngine(DefaultConfig(), nil, store, nil)
	e.now = func() time.Time { return fixedNow }
	req := baseRequest()
	req.LoadID = "load-1"
	if _, err := e.CalculatePrice(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if store.saved == nil || store.saved.LoadID != "load-1" {
		t.Fatalf("expected audit record for load-1, got %+v", store.saved)
	}
	if store.saved.AlgorithmVersion == "" {
		t.Fatal("audit record must carry the algorithm version")
	}
}
