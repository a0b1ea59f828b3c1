package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/load-matching/internal/dispatch"
	"github.com/example/load-matching/internal/geo"
	"github.com/example/load-matching/internal/match"
	"github.com/example/load-matching/internal/models"
	"github.com/example/load-matching/internal/pricing"
	"github.com/example/load-matching/internal/scoring"
	"github.com/example/load-matching/internal/storage"
	"github.com/example/load-matching/internal/vehicle"
)

func newTestServer() (*Server, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	scorer := scoring.NewScorer(scoring.DefaultPolicy())
	orch := match.NewOrchestrator(match.DefaultConfig(), store, store, store, scorer, nil, nil, nil)
	srv := NewServer(Deps{
		Loads:    store,
		Drivers:  store,
		Matches:  store,
		Calcs:    store,
		Pricer:   pricing.NewEngine(pricing.DefaultConfig(), nil, store, nil),
		Vehicles: vehicle.NewMatcher(nil, time.Second, nil),
		Orch:     orch,
		GeoIndex: geo.NewIndex(),
		WSReg:    dispatch.NewWSRegistry(),
	})
	return srv, store
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func loadPayload() map[string]any {
	pickup := time.Now().Add(72 * time.Hour).UTC()
	return map[string]any{
		"title":     "machine parts",
		"weight_kg": 1200,
		"load_type": "general_cargo",
		"stops": []map[string]any{
			{"order": 1, "type": "pickup", "location": map[string]any{"lat": 41.0, "lon": 29.0},
				"planned_time": pickup, "pickup_kg": 1200},
			{"order": 2, "type": "delivery", "location": map[string]any{"lat": 39.9, "lon": 32.8},
				"latest_time": pickup.Add(48 * time.Hour), "delivery_kg": 1200},
		},
	}
}

func TestCreateAndPublishLoad(t *testing.T) {
	srv, _ := newTestServer()

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/loads", loadPayload())
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var created models.Load
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Status != models.LoadDraft || created.ID == "" {
		t.Fatalf("unexpected created load: %+v", created)
	}
	if created.TotalDistanceKm <= 0 {
		t.Fatal("route estimate must set total distance")
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/loads/"+created.ID+"/publish", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("publish: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var published models.Load
	json.Unmarshal(rec.Body.Bytes(), &published)
	if published.Status != models.LoadPublished || published.PublishedAt == nil {
		t.Fatalf("unexpected published load: %+v", published)
	}
	if published.FixedPrice == nil || *published.FixedPrice <= 0 {
		t.Fatalf("publish must price an unpriced load, got %v", published.FixedPrice)
	}

	// Publishing twice is a conflict.
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/loads/"+created.ID+"/publish", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("double publish: expected 409, got %d", rec.Code)
	}
}

func TestCreateLoadValidation(t *testing.T) {
	srv, _ := newTestServer()
	payload := loadPayload()
	payload["weight_kg"] = 0
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/loads", payload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetLoadNotFound(t *testing.T) {
	srv, _ := newTestServer()
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/loads/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCalculatePriceEndpoint(t *testing.T) {
	srv, _ := newTestServer()
	body := map[string]any{
		"DistanceKm": 100, "WeightKg": 1000, "LoadType": "general_cargo",
		"PickupTime":   time.Now().Add(31 * 24 * time.Hour).UTC(),
		"DeliveryTime": time.Now().Add(33 * 24 * time.Hour).UTC(),
	}
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/pricing/calculate", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var calc models.PricingCalculation
	json.Unmarshal(rec.Body.Bytes(), &calc)
	if calc.BasePrice != 500 {
		t.Fatalf("expected base 500, got %f", calc.BasePrice)
	}
}

func TestRecommendVehiclesEndpoint(t *testing.T) {
	srv, _ := newTestServer()
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/vehicles/recommend", map[string]any{
		"WeightKg":     900,
		"Requirements": []string{"hazardous"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Recommendations []vehicle.Recommendation `json:"recommendations"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Recommendations) != 1 || resp.Recommendations[0].SuitabilityScore != 95 {
		t.Fatalf("unexpected recommendations: %+v", resp.Recommendations)
	}
}

func TestMatchLifecycleEndpoints(t *testing.T) {
	srv, store := newTestServer()

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/loads", loadPayload())
	var load models.Load
	json.Unmarshal(rec.Body.Bytes(), &load)
	doJSON(t, srv, http.MethodPost, "/api/v1/loads/"+load.ID+"/publish", nil)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/drivers", map[string]any{
		"id":       "driver-1",
		"location": map[string]any{"lat": 41.01, "lon": 29.0},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("driver create: expected 201, got %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/loads/%s/matches?max=5", load.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("find matches: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var found struct {
		Matches []*models.Match `json:"matches"`
	}
	json.Unmarshal(rec.Body.Bytes(), &found)
	if len(found.Matches) != 1 {
		t.Fatalf("expected one candidate, got %d", len(found.Matches))
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/matches", map[string]any{
		"load_id": load.ID, "driver_id": "driver-1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create match: expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var m models.Match
	json.Unmarshal(rec.Body.Bytes(), &m)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/matches/"+m.ID+"/accept", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	stored, err := store.GetLoad(context.Background(), load.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.LoadDriverAccepted {
		t.Fatalf("load must follow accept, got %s", stored.Status)
	}

	// A second match against the now-claimed load conflicts.
	doJSON(t, srv, http.MethodPost, "/api/v1/drivers", map[string]any{
		"id": "driver-2", "location": map[string]any{"lat": 41.02, "lon": 29.0},
	})
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/matches", map[string]any{
		"load_id": load.ID, "driver_id": "driver-2",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for claimed load, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/matches/"+m.ID+"/confirm", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/matches/"+m.ID+"/complete", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	stored, err = store.GetLoad(context.Background(), load.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.LoadCompleted {
		t.Fatalf("load must be Completed, got %s", stored.Status)
	}
}

func TestNearbyDriversEndpoint(t *testing.T) {
	srv, _ := newTestServer()
	doJSON(t, srv, http.MethodPost, "/api/v1/drivers", map[string]any{"id": "driver-1"})
	doJSON(t, srv, http.MethodPost, "/internal/driver/locations", map[string]any{
		"driver_id": "driver-1",
		"location":  map[string]any{"lat": 40.0, "lon": 28.5},
	})

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/drivers/nearby?lat=40.0&lon=28.5&radius_km=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Drivers []models.DriverLocationUpdate `json:"drivers"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Drivers) != 1 || resp.Drivers[0].DriverID != "driver-1" {
		t.Fatalf("unexpected nearby drivers: %+v", resp.Drivers)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/drivers/nearby?lat=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad coordinates, got %d", rec.Code)
	}
}

func TestDriverLocationIngest(t *testing.T) {
	srv, store := newTestServer()
	doJSON(t, srv, http.MethodPost, "/api/v1/drivers", map[string]any{"id": "driver-1"})

	rec := doJSON(t, srv, http.MethodPost, "/internal/driver/locations", map[string]any{
		"driver_id": "driver-1",
		"location":  map[string]any{"lat": 40.0, "lon": 28.5},
		"status":    "available",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body)
	}
	d, err := store.GetDriver(context.Background(), "driver-1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Location == nil || d.Location.Lat != 40.0 {
		t.Fatalf("location not applied: %+v", d.Location)
	}
}
