package models

import (
	"encoding/json"
	"testing"
	"time"
)

func validLoad() *Load {
	pickup := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	return &Load{
		ID:       NewID(),
		Title:    "pallets of electronics",
		Status:   LoadDraft,
		WeightKg: 1800,
		VolumeM3: 12,
		LoadType: LoadTypeElectronics,
		Requirements: []SpecialRequirement{
			ReqGPSTracking, ReqInsuranceRequired,
		},
		Stops: []Stop{
			{
				Order: 1, Type: StopPickup,
				Location:     Location{Lat: 41.01, Lon: 28.98, City: "Istanbul"},
				EarliestTime: pickup, LatestTime: pickup.Add(4 * time.Hour),
				PlannedTime: pickup.Add(time.Hour),
				PickupKg:    1800, PickupM3: 12,
			},
			{
				Order: 2, Type: StopDelivery,
				Location:   Location{Lat: 39.93, Lon: 32.86, City: "Ankara"},
				LatestTime: pickup.Add(30 * time.Hour),
				DeliveryKg: 1800, DeliveryM3: 12,
			},
		},
	}
}

func TestLoadValidate(t *testing.T) {
	if err := validLoad().Validate(); err != nil {
		t.Fatalf("expected valid load, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Load)
	}{
		{"missing title", func(l *Load) { l.Title = "" }},
		{"zero weight", func(l *Load) { l.WeightKg = 0 }},
		{"no stops", func(l *Load) { l.Stops = nil }},
		{"gap in stop order", func(l *Load) { l.Stops[1].Order = 3 }},
		{"missing location", func(l *Load) { l.Stops[0].Location = Location{} }},
		{"inverted window", func(l *Load) {
			l.Stops[0].EarliestTime = l.Stops[0].LatestTime.Add(time.Hour)
		}},
		{"negative weight", func(l *Load) { l.Stops[0].DeliveryKg = -1 }},
		{"pickup without weight", func(l *Load) { l.Stops[0].PickupKg = 0 }},
		{"unbalanced weights", func(l *Load) { l.Stops[1].DeliveryKg = 1700 }},
		{"deadline before pickup", func(l *Load) {
			l.Stops[1].LatestTime = l.Stops[0].PlannedTime.Add(-time.Hour)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := validLoad()
			tc.mutate(l)
			err := l.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestLoadValidateToleratesRoundingDrift(t *testing.T) {
	l := validLoad()
	l.Stops[1].DeliveryKg = 1800.005
	if err := l.Validate(); err != nil {
		t.Fatalf("sub-epsilon imbalance must pass, got %v", err)
	}
}

func TestLoadPickupAndDeadline(t *testing.T) {
	l := validLoad()
	if got := l.PickupTime(); !got.Equal(l.Stops[0].PlannedTime) {
		t.Fatalf("pickup time: got %v", got)
	}
	if got := l.Deadline(); !got.Equal(l.Stops[1].LatestTime) {
		t.Fatalf("deadline: got %v", got)
	}

	// Without stop-level times the load-level bounds win.
	l.Stops[0].PlannedTime = time.Time{}
	l.Stops[1].LatestTime = time.Time{}
	l.EarliestPickupTime = time.Date(2024, 3, 7, 8, 0, 0, 0, time.UTC)
	l.LatestDeliveryTime = time.Date(2024, 3, 9, 18, 0, 0, 0, time.UTC)
	if got := l.PickupTime(); !got.Equal(l.EarliestPickupTime) {
		t.Fatalf("fallback pickup time: got %v", got)
	}
	if got := l.Deadline(); !got.Equal(l.LatestDeliveryTime) {
		t.Fatalf("fallback deadline: got %v", got)
	}
}

func TestRecomputeAggregates(t *testing.T) {
	l := validLoad()
	l.RecomputeAggregates()
	if !l.EarliestPickupTime.Equal(l.Stops[0].EarliestTime) {
		t.Fatalf("earliest pickup: got %v", l.EarliestPickupTime)
	}
	if !l.LatestDeliveryTime.Equal(l.Stops[1].LatestTime) {
		t.Fatalf("latest delivery: got %v", l.LatestDeliveryTime)
	}
}

func TestLoadJSONRoundTrip(t *testing.T) {
	orig := validLoad()
	orig.FixedPrice = ptr(2450.0)

	b, err := json.Marshal(orig)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Load
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}

	if len(decoded.Stops) != 2 || decoded.Stops[0].Order != 1 || decoded.Stops[1].Order != 2 {
		t.Fatalf("stop itinerary not preserved: %+v", decoded.Stops)
	}
	if !decoded.HasRequirement(ReqGPSTracking) || !decoded.HasRequirement(ReqInsuranceRequired) {
		t.Fatalf("requirements not preserved: %v", decoded.Requirements)
	}
	if decoded.FixedPrice == nil || *decoded.FixedPrice != 2450.0 {
		t.Fatalf("fixed price not preserved: %v", decoded.FixedPrice)
	}
	if decoded.Stops[0].PickupKg != 1800 || decoded.Stops[1].DeliveryKg != 1800 {
		t.Fatal("stop weights not preserved")
	}
}

func TestRequirementFamilies(t *testing.T) {
	for _, r := range []SpecialRequirement{ReqHazardous, ReqFlammableLiquid, ReqCorrosiveMaterial} {
		if !r.Hazard() {
			t.Fatalf("%s must be hazardous", r)
		}
	}
	for _, r := range []SpecialRequirement{ReqRefrigerated, ReqColdChain, ReqTemperatureControlled} {
		if !r.Refrigeration() {
			t.Fatalf("%s must need refrigeration", r)
		}
	}
	if ReqGPSTracking.Hazard() || ReqGPSTracking.Refrigeration() {
		t.Fatal("gps_tracking is neither hazardous nor refrigerated")
	}
}

func ptr[T any](v T) *T { return &v }
