package match

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/example/load-matching/internal/geo"
	"github.com/example/load-matching/internal/models"
	"github.com/example/load-matching/internal/observability"
	"github.com/example/load-matching/internal/scoring"
	"github.com/example/load-matching/internal/storage"
)

// Notifier pushes a match proposal to a driver. Fire-and-forget: a failed
// notification never rolls back the match transition.
type Notifier interface {
	NotifyDriver(ctx context.Context, driverID string, notice models.MatchNotice) error
}

// PaymentProcessor places, captures and releases payment holds around the
// confirm/complete/cancel transitions.
type PaymentProcessor interface {
	Hold(ctx context.Context, m *models.Match) (ref string, err error)
	Capture(ctx context.Context, m *models.Match) error
	Release(ctx context.Context, m *models.Match) error
}

// Config bounds the candidate search and the proposal lifetime.
type Config struct {
	MatchExpiry time.Duration // response window on a proposal
	// SearchPadding widens the driver availability window on both sides
	// of the load's pickup..deadline span.
	SearchPadding        time.Duration
	DefaultMaxDistanceKm float64 // used when the driver sets no limit
	MaxMatches           int     // default result cap
}

func DefaultConfig() Config {
	return Config{
		MatchExpiry:          24 * time.Hour,
		SearchPadding:        2 * time.Hour,
		DefaultMaxDistanceKm: 500,
		MaxMatches:           10,
	}
}

// Orchestrator drives the match lifecycle: candidate search, scoring,
// proposal, notification and the accept/reject/confirm/cancel state
// machine.
type Orchestrator struct {
	cfg      Config
	loads    storage.LoadStore
	drivers  storage.DriverStore
	matches  storage.MatchStore
	scorer   *scoring.Scorer
	notifier Notifier
	payments PaymentProcessor
	logger   *slog.Logger
	locks    *pairLocks

	now func() time.Time
}

func NewOrchestrator(cfg Config, loads storage.LoadStore, drivers storage.DriverStore,
	matches storage.MatchStore, scorer *scoring.Scorer, notifier Notifier,
	payments PaymentProcessor, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:      cfg,
		loads:    loads,
		drivers:  drivers,
		matches:  matches,
		scorer:   scorer,
		notifier: notifier,
		payments: payments,
		logger:   logger,
		locks:    newPairLocks(),
		now:      time.Now,
	}
}

// FindMatchesForLoad scores available drivers against a Published load and
// returns unsaved proposals sorted by descending score. A load in any
// other status yields an empty list.
func (o *Orchestrator) FindMatchesForLoad(ctx context.Context, loadID string, maxMatches int) ([]*models.Match, error) {
	load, err := o.loads.GetLoad(ctx, loadID)
	if err != nil {
		return nil, err
	}
	if load.Status != models.LoadPublished {
		return nil, nil
	}

	pickup := load.FirstPickup()
	var searchLoc *models.Location
	if pickup != nil {
		searchLoc = &pickup.Location
	}
	from := load.PickupTime().Add(-o.cfg.SearchPadding)
	until := load.Deadline().Add(o.cfg.SearchPadding)

	drivers, err := o.drivers.GetAvailableDrivers(ctx, searchLoc, o.cfg.DefaultMaxDistanceKm, from, until)
	if err != nil {
		return nil, err
	}

	free := drivers[:0]
	for _, d := range drivers {
		if d.MaxDistanceKm > 0 && searchLoc != nil && d.Location != nil &&
			geo.DistanceKm(*d.Location, *searchLoc) > d.MaxDistanceKm {
			continue
		}
		if o.hasActiveMatchForDriver(ctx, d.ID) {
			continue
		}
		free = append(free, d)
	}

	candidates := o.scorer.ScoreAll(load, free)
	if maxMatches <= 0 {
		maxMatches = o.cfg.MaxMatches
	}
	if len(candidates) > maxMatches {
		candidates = candidates[:maxMatches]
	}

	out := make([]*models.Match, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, o.newProposal(load, c.Driver, c.Score, c.Breakdown))
	}
	return out, nil
}

// FindMatchesForDriver is the symmetric search: published loads scored
// against one Available driver.
func (o *Orchestrator) FindMatchesForDriver(ctx context.Context, driverID string, maxMatches int) ([]*models.Match, error) {
	driver, err := o.drivers.GetDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if driver.Status != models.DriverAvailable {
		return nil, nil
	}

	maxKm := driver.MaxDistanceKm
	if maxKm <= 0 {
		maxKm = o.cfg.DefaultMaxDistanceKm
	}
	loads, err := o.loads.GetAvailableLoads(ctx, driver.Location, maxKm)
	if err != nil {
		return nil, err
	}

	type scored struct {
		load      *models.Load
		score     float64
		breakdown models.ScoreBreakdown
	}
	var candidates []scored
	for _, l := range loads {
		if o.hasActiveMatchForLoad(ctx, l.ID) {
			continue
		}
		score, breakdown := o.scorer.Score(l, driver)
		if score < o.scorer.Policy().MinScore {
			continue
		}
		candidates = append(candidates, scored{l, score, breakdown})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if maxMatches <= 0 {
		maxMatches = o.cfg.MaxMatches
	}
	if len(candidates) > maxMatches {
		candidates = candidates[:maxMatches]
	}

	out := make([]*models.Match, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, o.newProposal(c.load, driver, c.score, c.breakdown))
	}
	return out, nil
}

// CreateMatch is the manual override: both entities must exist, the score
// is recorded regardless of threshold, and the proposal is persisted. The
// per-load and per-driver locks close the read-then-write race on the
// at-most-one-active-match rule.
func (o *Orchestrator) CreateMatch(ctx context.Context, loadID, driverID, vehicleID string) (*models.Match, error) {
	load, err := o.loads.GetLoad(ctx, loadID)
	if err != nil {
		return nil, err
	}
	driver, err := o.drivers.GetDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	// Load before driver, always, so two creations cannot deadlock.
	unlockLoad := o.locks.lock("load:" + loadID)
	defer unlockLoad()
	unlockDriver := o.locks.lock("driver:" + driverID)
	defer unlockDriver()

	if o.hasActiveMatchForLoad(ctx, loadID) || o.hasActiveMatchForDriver(ctx, driverID) {
		observability.MatchConflicts.Inc()
		return nil, models.ErrConflict
	}

	score, breakdown := o.scorer.Score(load, driver)
	m := o.newProposal(load, driver, score, breakdown)
	m.VehicleID = vehicleID
	if err := o.matches.SaveMatch(ctx, m); err != nil {
		return nil, err
	}
	observability.MatchesProposed.Inc()
	o.logger.Info("match created", "match_id", m.ID, "load_id", loadID, "driver_id", driverID, "score", score)
	return m, nil
}

// Accept transitions a proposal to DriverAccepted and moves the load with
// it. Valid from Proposed or DriverNotified.
func (o *Orchestrator) Accept(ctx context.Context, matchID string) (*models.Match, error) {
	m, err := o.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.Status.Expirable() {
		return nil, &models.StateError{Entity: "match", Status: string(m.Status), Op: "accept"}
	}
	if m.Expired(o.now()) {
		return nil, &models.StateError{Entity: "match", Status: string(models.MatchExpired), Op: "accept"}
	}

	// Acceptance claims the driver and load; guard it like creation.
	unlockLoad := o.locks.lock("load:" + m.LoadID)
	defer unlockLoad()
	unlockDriver := o.locks.lock("driver:" + m.DriverID)
	defer unlockDriver()

	if active, err := o.matches.GetActiveByLoad(ctx, m.LoadID); err == nil && active.ID != m.ID {
		observability.MatchConflicts.Inc()
		return nil, models.ErrConflict
	}
	if active, err := o.matches.GetActiveByDriver(ctx, m.DriverID); err == nil && active.ID != m.ID {
		observability.MatchConflicts.Inc()
		return nil, models.ErrConflict
	}

	now := o.now().UTC()
	m.Status = models.MatchDriverAccepted
	m.RespondedAt = &now
	if err := o.matches.SaveMatch(ctx, m); err != nil {
		return nil, err
	}
	if err := o.loads.UpdateLoadStatus(ctx, m.LoadID, models.LoadDriverAccepted); err != nil {
		o.logger.Error("load status update failed after accept", "match_id", m.ID, "error", err)
	}
	observability.MatchesAccepted.Inc()
	return m, nil
}

// Reject records the driver's refusal with a reason.
func (o *Orchestrator) Reject(ctx context.Context, matchID, reason string) (*models.Match, error) {
	m, err := o.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.Status.Expirable() {
		return nil, &models.StateError{Entity: "match", Status: string(m.Status), Op: "reject"}
	}

	now := o.now().UTC()
	m.Status = models.MatchDriverRejected
	m.RejectionReason = reason
	m.RespondedAt = &now
	if err := o.matches.SaveMatch(ctx, m); err != nil {
		return nil, err
	}
	observability.MatchesRejected.Inc()
	return m, nil
}

// NotifyDriver transitions Proposed to DriverNotified and pushes the
// proposal out. Dispatch failures are logged, not surfaced.
func (o *Orchestrator) NotifyDriver(ctx context.Context, matchID string) (*models.Match, error) {
	m, err := o.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MatchProposed {
		return nil, &models.StateError{Entity: "match", Status: string(m.Status), Op: "notify"}
	}

	now := o.now().UTC()
	m.Status = models.MatchDriverNotified
	m.NotifiedAt = &now
	if err := o.matches.SaveMatch(ctx, m); err != nil {
		return nil, err
	}

	if o.notifier != nil {
		notice := models.MatchNotice{
			MatchID:   m.ID,
			MatchCode: m.Code,
			LoadID:    m.LoadID,
			Score:     m.Score,
			Price:     m.AgreedPrice,
			ExpiresAt: m.ExpiresAt,
		}
		if err := o.notifier.NotifyDriver(ctx, m.DriverID, notice); err != nil {
			o.logger.Warn("driver notification failed", "match_id", m.ID, "driver_id", m.DriverID, "error", err)
		}
	}
	return m, nil
}

// Confirm finalizes an accepted match and places the payment hold.
func (o *Orchestrator) Confirm(ctx context.Context, matchID string) (*models.Match, error) {
	m, err := o.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MatchDriverAccepted {
		return nil, &models.StateError{Entity: "match", Status: string(m.Status), Op: "confirm"}
	}

	if o.payments != nil {
		ref, err := o.payments.Hold(ctx, m)
		if err != nil {
			return nil, err
		}
		m.PaymentRef = ref
	}

	m.Status = models.MatchConfirmed
	if err := o.matches.SaveMatch(ctx, m); err != nil {
		return nil, err
	}
	if err := o.loads.UpdateLoadStatus(ctx, m.LoadID, models.LoadMatched); err != nil {
		o.logger.Error("load status update failed after confirm", "match_id", m.ID, "error", err)
	}
	return m, nil
}

// Complete closes out a confirmed match after delivery: the payment hold
// is captured, the load is completed and the driver's tally grows.
func (o *Orchestrator) Complete(ctx context.Context, matchID string) (*models.Match, error) {
	m, err := o.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MatchConfirmed {
		return nil, &models.StateError{Entity: "match", Status: string(m.Status), Op: "complete"}
	}

	if m.PaymentRef != "" && o.payments != nil {
		if err := o.payments.Capture(ctx, m); err != nil {
			return nil, err
		}
	}

	m.Status = models.MatchCompleted
	if err := o.matches.SaveMatch(ctx, m); err != nil {
		return nil, err
	}
	if err := o.loads.UpdateLoadStatus(ctx, m.LoadID, models.LoadCompleted); err != nil {
		o.logger.Error("load status update failed after complete", "match_id", m.ID, "error", err)
	}
	if driver, err := o.drivers.GetDriver(ctx, m.DriverID); err == nil {
		driver.CompletedLoads++
		if err := o.drivers.SaveDriver(ctx, driver); err != nil {
			o.logger.Error("driver tally update failed", "driver_id", driver.ID, "error", err)
		}
	}
	return m, nil
}

// Cancel tears down any non-terminal match and releases a payment hold if
// one was placed.
func (o *Orchestrator) Cancel(ctx context.Context, matchID string) (*models.Match, error) {
	m, err := o.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.Status.Terminal() {
		return nil, &models.StateError{Entity: "match", Status: string(m.Status), Op: "cancel"}
	}

	if m.PaymentRef != "" && o.payments != nil {
		if err := o.payments.Release(ctx, m); err != nil {
			o.logger.Error("payment release failed", "match_id", m.ID, "payment_ref", m.PaymentRef, "error", err)
		}
	}

	wasActive := m.Status.Active()
	m.Status = models.MatchCancelled
	if err := o.matches.SaveMatch(ctx, m); err != nil {
		return nil, err
	}
	if wasActive {
		// The load goes back on the board.
		if err := o.loads.UpdateLoadStatus(ctx, m.LoadID, models.LoadPublished); err != nil {
			o.logger.Error("load status update failed after cancel", "match_id", m.ID, "error", err)
		}
	}
	return m, nil
}

// ProcessExpiredMatches sweeps proposals whose response window has closed.
// The Expirable guard keeps it safe against concurrent accepts: a match
// that moved on since the query is re-checked before the transition.
func (o *Orchestrator) ProcessExpiredMatches(ctx context.Context) (int, error) {
	now := o.now().UTC()
	expired, err := o.matches.GetExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, m := range expired {
		if !m.Expired(now) {
			continue
		}
		if err := o.matches.UpdateMatchStatus(ctx, m.ID, models.MatchExpired); err != nil {
			o.logger.Error("match expiry failed", "match_id", m.ID, "error", err)
			continue
		}
		observability.MatchesExpired.Inc()
		count++
	}
	if count > 0 {
		o.logger.Info("expired matches swept", "count", count)
	}
	return count, nil
}

func (o *Orchestrator) newProposal(load *models.Load, driver *models.Driver, score float64, breakdown models.ScoreBreakdown) *models.Match {
	now := o.now().UTC()
	return &models.Match{
		ID:          models.NewID(),
		Code:        models.NewCode("MTC"),
		LoadID:      load.ID,
		DriverID:    driver.ID,
		VehicleID:   driver.CurrentVehicleID,
		Score:       score,
		Factors:     breakdown,
		Status:      models.MatchProposed,
		ProposedAt:  now,
		ExpiresAt:   now.Add(o.cfg.MatchExpiry),
		AgreedPrice: load.FixedPrice,
	}
}

func (o *Orchestrator) hasActiveMatchForLoad(ctx context.Context, loadID string) bool {
	_, err := o.matches.GetActiveByLoad(ctx, loadID)
	return err == nil
}

func (o *Orchestrator) hasActiveMatchForDriver(ctx context.Context, driverID string) bool {
	_, err := o.matches.GetActiveByDriver(ctx, driverID)
	return err == nil
}
