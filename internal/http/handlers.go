package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/example/load-matching/internal/geo"
	"github.com/example/load-matching/internal/models"
	"github.com/example/load-matching/internal/observability"
	"github.com/example/load-matching/internal/pricing"
	"github.com/example/load-matching/internal/vehicle"
)

func (s *Server) handleCreateLoad(w http.ResponseWriter, r *http.Request) {
	var l models.Load
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if l.ID == "" {
		l.ID = models.NewID()
	}
	if l.Code == "" {
		l.Code = models.NewCode("LDT")
	}
	l.Status = models.LoadDraft
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now

	if err := l.Validate(); err != nil {
		s.writeError(w, err)
		return
	}
	l.RecomputeAggregates()
	est := geo.EstimateRoute(l.Stops)
	l.TotalDistanceKm = est.TotalDistanceKm
	l.EstimatedMinutes = est.EstimatedMinutes

	if err := s.loads.SaveLoad(r.Context(), &l); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, &l)
}

func (s *Server) handleGetLoad(w http.ResponseWriter, r *http.Request) {
	l, err := s.loads.GetLoad(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, l)
}

func (s *Server) handlePublishLoad(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	l, err := s.loads.GetLoad(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if l.Status != models.LoadDraft {
		s.writeError(w, &models.StateError{Entity: "load", Status: string(l.Status), Op: "publish"})
		return
	}
	if err := l.Validate(); err != nil {
		s.writeError(w, err)
		return
	}
	// Loads published without an asking price get the engine's recommendation.
	if l.FixedPrice == nil && s.pricer != nil && l.TotalDistanceKm > 0 {
		calc, err := s.pricer.CalculatePrice(r.Context(), pricing.Request{
			LoadID:       l.ID,
			DistanceKm:   l.TotalDistanceKm,
			WeightKg:     l.WeightKg,
			VolumeM3:     l.VolumeM3,
			LoadType:     l.LoadType,
			Requirements: l.Requirements,
			PickupTime:   l.PickupTime(),
			DeliveryTime: l.Deadline(),
		})
		if err != nil {
			s.writeError(w, err)
			return
		}
		l.FixedPrice = &calc.RecommendedPrice
	}
	now := time.Now().UTC()
	l.Status = models.LoadPublished
	l.PublishedAt = &now
	l.UpdatedAt = now
	if err := s.loads.SaveLoad(r.Context(), l); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleCancelLoad(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	l, err := s.loads.GetLoad(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if l.Status.Terminal() {
		s.writeError(w, &models.StateError{Entity: "load", Status: string(l.Status), Op: "cancel"})
		return
	}
	if err := s.loads.UpdateLoadStatus(r.Context(), id, models.LoadCancelled); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLoadMatches(w http.ResponseWriter, r *http.Request) {
	max, _ := strconv.Atoi(r.URL.Query().Get("max"))
	matches, err := s.orch.FindMatchesForLoad(r.Context(), mux.Vars(r)["id"], max)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (s *Server) handleSaveDriver(w http.ResponseWriter, r *http.Request) {
	var d models.Driver
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if d.ID == "" {
		d.ID = models.NewID()
	}
	if d.Code == "" {
		d.Code = models.NewCode("DRV")
	}
	if d.Status == "" {
		d.Status = models.DriverAvailable
	}
	if err := s.drivers.SaveDriver(r.Context(), &d); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, &d)
}

func (s *Server) handleGetDriver(w http.ResponseWriter, r *http.Request) {
	d, err := s.drivers.GetDriver(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDriverMatches(w http.ResponseWriter, r *http.Request) {
	max, _ := strconv.Atoi(r.URL.Query().Get("max"))
	matches, err := s.orch.FindMatchesForDriver(r.Context(), mux.Vars(r)["id"], max)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

// handleNearbyDrivers queries the live geo index, not the driver store, so
// results reflect the latest position reports.
func (s *Server) handleNearbyDrivers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil {
		s.writeError(w, models.Invalidf("lat and lon are required"))
		return
	}
	radiusKm, _ := strconv.ParseFloat(q.Get("radius_km"), 64)
	limit, _ := strconv.Atoi(q.Get("limit"))

	drivers := s.geoIndex.Nearby(lat, lon, radiusKm, limit)
	s.writeJSON(w, http.StatusOK, map[string]any{"drivers": drivers})
}

func (s *Server) handleRateDriver(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rating float64 `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.Rating < 0 || body.Rating > 5 {
		s.writeError(w, models.Invalidf("rating must be within 0..5"))
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.drivers.UpdateDriverRating(r.Context(), id, body.Rating); err != nil {
		s.writeError(w, err)
		return
	}
	d, err := s.drivers.GetDriver(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleCalculatePrice(w http.ResponseWriter, r *http.Request) {
	var req pricing.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	calc, err := s.pricer.CalculatePrice(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, calc)
}

func (s *Server) handlePricingHistory(w http.ResponseWriter, r *http.Request) {
	calcs, err := s.calcs.GetCalculationsByLoad(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"calculations": calcs})
}

func (s *Server) handleAdjustPrice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Adjustment float64 `json:"adjustment"`
		Reason     string  `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.Adjustment <= 0 {
		s.writeError(w, models.Invalidf("adjustment must be greater than 0"))
		return
	}
	calc, err := s.calcs.GetCalculation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	calc.ManuallyAdjusted = true
	calc.ManualAdjustment = body.Adjustment
	calc.AdjustmentReason = body.Reason
	calc.RecommendedPrice = body.Adjustment
	if err := s.calcs.UpdateCalculation(r.Context(), calc); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, calc)
}

func (s *Server) handleAcceptPrice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AgreedPrice float64 `json:"agreed_price"`
		AcceptedBy  string  `json:"accepted_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	calc, err := s.calcs.GetCalculation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	price := body.AgreedPrice
	if price <= 0 {
		price = calc.RecommendedPrice
	}
	calc.Accepted = true
	calc.AgreedPrice = &price
	calc.AcceptedBy = body.AcceptedBy
	if err := s.calcs.UpdateCalculation(r.Context(), calc); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, calc)
}

func (s *Server) handleRecommendVehicles(w http.ResponseWriter, r *http.Request) {
	var req vehicle.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	recs, err := s.vehicles.Recommend(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
}

func (s *Server) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		LoadID    string `json:"load_id"`
		DriverID  string `json:"driver_id"`
		VehicleID string `json:"vehicle_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m, err := s.orch.CreateMatch(r.Context(), body.LoadID, body.DriverID, body.VehicleID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.matches.GetMatch(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleNotifyMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.orch.NotifyDriver(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleAcceptMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.orch.Accept(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleRejectMatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m, err := s.orch.Reject(r.Context(), mux.Vars(r)["id"], body.Reason)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleConfirmMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.orch.Confirm(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleCompleteMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.orch.Complete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleCancelMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.orch.Cancel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

// handleDriverLocation ingests a position report: publish to Kafka when
// configured, refresh the geo index, and update the driver record.
func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var u models.DriverLocationUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if u.DriverID == "" {
		s.writeError(w, models.Invalidf("driver_id is required"))
		return
	}
	if u.At.IsZero() {
		u.At = time.Now().UTC()
	}

	if s.kafka != nil {
		if err := s.kafka.PublishLocation(u); err != nil {
			s.logger.Warn("location publish failed", "driver_id", u.DriverID, "error", err)
		}
	}
	if s.geoIndex != nil {
		s.geoIndex.Upsert(u)
		observability.LocationReports.Inc()
	}
	if err := s.drivers.UpdateDriverLocation(r.Context(), u.DriverID, u.Location, u.At); err != nil &&
		!errors.Is(err, models.ErrNotFound) {
		s.writeError(w, err)
		return
	}
	if u.Status != "" {
		if err := s.drivers.UpdateDriverStatus(r.Context(), u.DriverID, u.Status); err != nil &&
			!errors.Is(err, models.ErrNotFound) {
			s.writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["driver_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.wsReg.Add(id, conn)

	// Drain the connection; drivers only receive. Deregister on close.
	go func() {
		defer s.wsReg.Remove(id)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case models.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrConflict), models.IsStateError(err):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.logger.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
