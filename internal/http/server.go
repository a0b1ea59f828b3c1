package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/load-matching/internal/dispatch"
	"github.com/example/load-matching/internal/geo"
	"github.com/example/load-matching/internal/ingest"
	"github.com/example/load-matching/internal/match"
	"github.com/example/load-matching/internal/pricing"
	"github.com/example/load-matching/internal/storage"
	"github.com/example/load-matching/internal/vehicle"
)

// Server is the HTTP API over the matching and pricing core.
type Server struct {
	loads    storage.LoadStore
	drivers  storage.DriverStore
	matches  storage.MatchStore
	calcs    storage.CalculationStore
	pricer   *pricing.Engine
	vehicles *vehicle.Matcher
	orch     *match.Orchestrator
	geoIndex geo.DriverIndex
	kafka    *ingest.KafkaProducer
	wsReg    *dispatch.WSRegistry
	logger   *slog.Logger
	mux      *mux.Router
}

// Deps carries the wired collaborators; nil optional members (kafka,
// websocket registry) disable their features.
type Deps struct {
	Loads    storage.LoadStore
	Drivers  storage.DriverStore
	Matches  storage.MatchStore
	Calcs    storage.CalculationStore
	Pricer   *pricing.Engine
	Vehicles *vehicle.Matcher
	Orch     *match.Orchestrator
	GeoIndex geo.DriverIndex
	Kafka    *ingest.KafkaProducer
	WSReg    *dispatch.WSRegistry
	Logger   *slog.Logger
}

func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		loads:    d.Loads,
		drivers:  d.Drivers,
		matches:  d.Matches,
		calcs:    d.Calcs,
		pricer:   d.Pricer,
		vehicles: d.Vehicles,
		orch:     d.Orch,
		geoIndex: d.GeoIndex,
		kafka:    d.Kafka,
		wsReg:    d.WSReg,
		logger:   logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/loads", s.handleCreateLoad).Methods("POST")
	api.HandleFunc("/loads/{id}", s.handleGetLoad).Methods("GET")
	api.HandleFunc("/loads/{id}/publish", s.handlePublishLoad).Methods("POST")
	api.HandleFunc("/loads/{id}/cancel", s.handleCancelLoad).Methods("POST")
	api.HandleFunc("/loads/{id}/matches", s.handleLoadMatches).Methods("GET")

	api.HandleFunc("/drivers", s.handleSaveDriver).Methods("POST")
	// Registered before the {id} route so "nearby" is not taken as an id.
	api.HandleFunc("/drivers/nearby", s.handleNearbyDrivers).Methods("GET")
	api.HandleFunc("/drivers/{id}", s.handleGetDriver).Methods("GET")
	api.HandleFunc("/drivers/{id}/matches", s.handleDriverMatches).Methods("GET")
	api.HandleFunc("/drivers/{id}/rating", s.handleRateDriver).Methods("POST")

	api.HandleFunc("/pricing/calculate", s.handleCalculatePrice).Methods("POST")
	api.HandleFunc("/pricing/loads/{id}", s.handlePricingHistory).Methods("GET")
	api.HandleFunc("/pricing/{id}/adjust", s.handleAdjustPrice).Methods("POST")
	api.HandleFunc("/pricing/{id}/accept", s.handleAcceptPrice).Methods("POST")

	api.HandleFunc("/vehicles/recommend", s.handleRecommendVehicles).Methods("POST")

	api.HandleFunc("/matches", s.handleCreateMatch).Methods("POST")
	api.HandleFunc("/matches/{id}", s.handleGetMatch).Methods("GET")
	api.HandleFunc("/matches/{id}/notify", s.handleNotifyMatch).Methods("POST")
	api.HandleFunc("/matches/{id}/accept", s.handleAcceptMatch).Methods("POST")
	api.HandleFunc("/matches/{id}/reject", s.handleRejectMatch).Methods("POST")
	api.HandleFunc("/matches/{id}/confirm", s.handleConfirmMatch).Methods("POST")
	api.HandleFunc("/matches/{id}/complete", s.handleCompleteMatch).Methods("POST")
	api.HandleFunc("/matches/{id}/cancel", s.handleCancelMatch).Methods("POST")

	s.mux.HandleFunc("/internal/driver/locations", s.handleDriverLocation).Methods("POST")
	s.mux.HandleFunc("/ws/{driver_id}", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }
