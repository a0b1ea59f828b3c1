package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/example/load-matching/internal/geo"
	"github.com/example/load-matching/internal/models"
)

// PostgresStore persists loads, drivers, matches and pricing calculations
// in Postgres. Distance filters run in process over candidate rows; the
// hot-path nearest-driver query belongs to the Redis geo index.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) GetLoad(ctx context.Context, id string) (*models.Load, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, code, company_id, title, description, status, weight_kg, volume_m3,
		       load_type, requirements, fixed_price, matched_driver_id, matched_vehicle_id,
		       earliest_pickup, latest_delivery, total_distance_km, estimated_minutes,
		       created_at, updated_at
		FROM loads WHERE id=$1`, id)
	l, err := scanLoad(row)
	if err != nil {
		return nil, err
	}
	if l.Stops, err = p.loadStops(ctx, id); err != nil {
		return nil, err
	}
	return l, nil
}

func (p *PostgresStore) GetAvailableLoads(ctx context.Context, loc *models.Location, maxDistanceKm float64) ([]*models.Load, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, code, company_id, title, description, status, weight_kg, volume_m3,
		       load_type, requirements, fixed_price, matched_driver_id, matched_vehicle_id,
		       earliest_pickup, latest_delivery, total_distance_km, estimated_minutes,
		       created_at, updated_at
		FROM loads WHERE status=$1`, models.LoadPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Load
	for rows.Next() {
		l, err := scanLoad(rows)
		if err != nil {
			return nil, err
		}
		if l.Stops, err = p.loadStops(ctx, l.ID); err != nil {
			return nil, err
		}
		if loc != nil && maxDistanceKm > 0 {
			pickup := l.FirstPickup()
			if pickup == nil || geo.DistanceKm(*loc, pickup.Location) > maxDistanceKm {
				continue
			}
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SaveLoad(ctx context.Context, l *models.Load) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO loads(id, code, company_id, title, description, status, weight_kg,
		                  volume_m3, load_type, requirements, fixed_price,
		                  matched_driver_id, matched_vehicle_id, earliest_pickup,
		                  latest_delivery, total_distance_km, estimated_minutes,
		                  created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (id) DO UPDATE SET
		  title=EXCLUDED.title, description=EXCLUDED.description, status=EXCLUDED.status,
		  weight_kg=EXCLUDED.weight_kg, volume_m3=EXCLUDED.volume_m3,
		  load_type=EXCLUDED.load_type, requirements=EXCLUDED.requirements,
		  fixed_price=EXCLUDED.fixed_price, matched_driver_id=EXCLUDED.matched_driver_id,
		  matched_vehicle_id=EXCLUDED.matched_vehicle_id,
		  earliest_pickup=EXCLUDED.earliest_pickup, latest_delivery=EXCLUDED.latest_delivery,
		  total_distance_km=EXCLUDED.total_distance_km,
		  estimated_minutes=EXCLUDED.estimated_minutes, updated_at=EXCLUDED.updated_at`,
		l.ID, l.Code, l.CompanyID, l.Title, l.Description, l.Status, l.WeightKg,
		l.VolumeM3, l.LoadType, pq.Array(requirementStrings(l.Requirements)), l.FixedPrice,
		nullString(l.MatchedDriverID), nullString(l.MatchedVehicleID),
		nullTime(l.EarliestPickupTime), nullTime(l.LatestDeliveryTime),
		l.TotalDistanceKm, l.EstimatedMinutes, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM load_stops WHERE load_id=$1`, l.ID); err != nil {
		return err
	}
	for i := range l.Stops {
		s := &l.Stops[i]
		locJSON, err := json.Marshal(s.Location)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO load_stops(load_id, stop_order, stop_type, location, earliest_time,
			                       latest_time, planned_time, service_minutes, pickup_kg,
			                       delivery_kg, pickup_m3, delivery_m3, requirements, status,
			                       instructions, contact_name, contact_phone)
			VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
			l.ID, s.Order, s.Type, locJSON, nullTime(s.EarliestTime), nullTime(s.LatestTime),
			nullTime(s.PlannedTime), s.ServiceMinutes, s.PickupKg, s.DeliveryKg,
			s.PickupM3, s.DeliveryM3, pq.Array(requirementStrings(s.Requirements)),
			s.Status, s.Instructions, s.ContactName, s.ContactPhone)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *PostgresStore) UpdateLoadStatus(ctx context.Context, id string, status models.LoadStatus) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE loads SET status=$1, updated_at=$2 WHERE id=$3`, status, time.Now().UTC(), id)
	return err
}

func (p *PostgresStore) loadStops(ctx context.Context, loadID string) ([]models.Stop, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT stop_order, stop_type, location, earliest_time, latest_time, planned_time,
		       service_minutes, pickup_kg, delivery_kg, pickup_m3, delivery_m3,
		       requirements, status, instructions, contact_name, contact_phone
		FROM load_stops WHERE load_id=$1 ORDER BY stop_order`, loadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []models.Stop
	for rows.Next() {
		var (
			s        models.Stop
			locJSON  []byte
			earliest sql.NullTime
			latest   sql.NullTime
			planned  sql.NullTime
			reqs     pq.StringArray
		)
		if err := rows.Scan(&s.Order, &s.Type, &locJSON, &earliest, &latest, &planned,
			&s.ServiceMinutes, &s.PickupKg, &s.DeliveryKg, &s.PickupM3, &s.DeliveryM3,
			&reqs, &s.Status, &s.Instructions, &s.ContactName, &s.ContactPhone); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(locJSON, &s.Location); err != nil {
			return nil, err
		}
		s.EarliestTime, s.LatestTime, s.PlannedTime = earliest.Time, latest.Time, planned.Time
		s.Requirements = requirementValues(reqs)
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

func (p *PostgresStore) GetDriver(ctx context.Context, id string) (*models.Driver, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, code, company_id, license_number, license_category, experience_years,
		       location, status, available_from, available_until, working_hours,
		       max_distance_km, completed_loads, average_rating, total_ratings,
		       on_time_percent, has_adr_license, has_src_license, has_forklift_license,
		       current_vehicle_id, last_seen_at, last_location_update_at
		FROM drivers WHERE id=$1`, id)
	return scanDriver(row)
}

func (p *PostgresStore) GetAvailableDrivers(ctx context.Context, loc *models.Location, maxDistanceKm float64, from, until time.Time) ([]*models.Driver, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, code, company_id, license_number, license_category, experience_years,
		       location, status, available_from, available_until, working_hours,
		       max_distance_km, completed_loads, average_rating, total_ratings,
		       on_time_percent, has_adr_license, has_src_license, has_forklift_license,
		       current_vehicle_id, last_seen_at, last_location_update_at
		FROM drivers
		WHERE status=$1
		  AND (available_from IS NULL OR available_from <= $2)
		  AND (available_until IS NULL OR available_until >= $3)`,
		models.DriverAvailable, from, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		if loc != nil && maxDistanceKm > 0 {
			if d.Location == nil || geo.DistanceKm(*loc, *d.Location) > maxDistanceKm {
				continue
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SaveDriver(ctx context.Context, d *models.Driver) error {
	locJSON, err := marshalNullable(d.Location)
	if err != nil {
		return err
	}
	whJSON, err := marshalNullable(d.WorkingHours)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO drivers(id, code, company_id, license_number, license_category,
		                    experience_years, location, status, available_from,
		                    available_until, working_hours, max_distance_km,
		                    completed_loads, average_rating, total_ratings,
		                    on_time_percent, has_adr_license, has_src_license,
		                    has_forklift_license, current_vehicle_id, last_seen_at,
		                    last_location_update_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		ON CONFLICT (id) DO UPDATE SET
		  license_number=EXCLUDED.license_number, license_category=EXCLUDED.license_category,
		  experience_years=EXCLUDED.experience_years, location=EXCLUDED.location,
		  status=EXCLUDED.status, available_from=EXCLUDED.available_from,
		  available_until=EXCLUDED.available_until, working_hours=EXCLUDED.working_hours,
		  max_distance_km=EXCLUDED.max_distance_km, completed_loads=EXCLUDED.completed_loads,
		  average_rating=EXCLUDED.average_rating, total_ratings=EXCLUDED.total_ratings,
		  on_time_percent=EXCLUDED.on_time_percent, has_adr_license=EXCLUDED.has_adr_license,
		  has_src_license=EXCLUDED.has_src_license,
		  has_forklift_license=EXCLUDED.has_forklift_license,
		  current_vehicle_id=EXCLUDED.current_vehicle_id,
		  last_seen_at=EXCLUDED.last_seen_at,
		  last_location_update_at=EXCLUDED.last_location_update_at`,
		d.ID, d.Code, d.CompanyID, d.LicenseNumber, d.LicenseCategory, d.ExperienceYears,
		locJSON, d.Status, d.AvailableFrom, d.AvailableUntil, whJSON, d.MaxDistanceKm,
		d.CompletedLoads, d.AverageRating, d.TotalRatings, d.OnTimePercent,
		d.HasADRLicense, d.HasSRCLicense, d.HasForkliftLicense,
		nullString(d.CurrentVehicleID), d.LastSeenAt, d.LastLocationUpdateAt)
	return err
}

func (p *PostgresStore) UpdateDriverLocation(ctx context.Context, id string, loc models.Location, at time.Time) error {
	locJSON, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE drivers SET location=$1, last_location_update_at=$2, last_seen_at=$2
		WHERE id=$3`, locJSON, at, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *PostgresStore) UpdateDriverStatus(ctx context.Context, id string, status models.DriverStatus) error {
	res, err := p.db.ExecContext(ctx, `UPDATE drivers SET status=$1 WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *PostgresStore) UpdateDriverRating(ctx context.Context, id string, rating float64) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE drivers SET
		  average_rating = (average_rating * total_ratings + $1) / (total_ratings + 1),
		  total_ratings = total_ratings + 1
		WHERE id=$2`, rating, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *PostgresStore) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	row := p.db.QueryRowContext(ctx, matchSelect+` WHERE id=$1`, id)
	return scanMatch(row)
}

func (p *PostgresStore) GetActiveByLoad(ctx context.Context, loadID string) (*models.Match, error) {
	row := p.db.QueryRowContext(ctx,
		matchSelect+` WHERE load_id=$1 AND status = ANY($2) LIMIT 1`,
		loadID, pq.Array(activeStatuses()))
	return scanMatch(row)
}

func (p *PostgresStore) GetActiveByDriver(ctx context.Context, driverID string) (*models.Match, error) {
	row := p.db.QueryRowContext(ctx,
		matchSelect+` WHERE driver_id=$1 AND status = ANY($2) LIMIT 1`,
		driverID, pq.Array(activeStatuses()))
	return scanMatch(row)
}

func (p *PostgresStore) SaveMatch(ctx context.Context, m *models.Match) error {
	factorsJSON, err := json.Marshal(m.Factors)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO matches(id, code, load_id, driver_id, vehicle_id, score, factors,
		                    status, proposed_at, notified_at, responded_at, expires_at,
		                    rejection_reason, agreed_price, payment_ref)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
		  status=EXCLUDED.status, notified_at=EXCLUDED.notified_at,
		  responded_at=EXCLUDED.responded_at, rejection_reason=EXCLUDED.rejection_reason,
		  agreed_price=EXCLUDED.agreed_price, payment_ref=EXCLUDED.payment_ref`,
		m.ID, m.Code, m.LoadID, m.DriverID, nullString(m.VehicleID), m.Score, factorsJSON,
		m.Status, m.ProposedAt, m.NotifiedAt, m.RespondedAt, m.ExpiresAt,
		nullString(m.RejectionReason), m.AgreedPrice, nullString(m.PaymentRef))
	if isUniqueViolation(err) {
		// Another process activated a match for this load or driver first.
		return models.ErrConflict
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (p *PostgresStore) UpdateMatchStatus(ctx context.Context, id string, status models.MatchStatus) error {
	// Missing rows are skipped on purpose.
	_, err := p.db.ExecContext(ctx, `UPDATE matches SET status=$1 WHERE id=$2`, status, id)
	return err
}

func (p *PostgresStore) GetExpired(ctx context.Context, now time.Time) ([]*models.Match, error) {
	rows, err := p.db.QueryContext(ctx,
		matchSelect+` WHERE expires_at <= $1 AND status = ANY($2)`,
		now, pq.Array([]string{string(models.MatchProposed), string(models.MatchDriverNotified)}))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SaveCalculation(ctx context.Context, c *models.PricingCalculation) error {
	factorsJSON, err := json.Marshal(c.Factors)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO pricing_calculations(id, load_id, algorithm_version, base_price,
		                                 final_price, optimized_price, recommended_price,
		                                 factors, distance_km, weight_kg, volume_m3,
		                                 load_type, calculated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		c.ID, nullString(c.LoadID), c.AlgorithmVersion, c.BasePrice, c.FinalPrice,
		c.OptimizedPrice, c.RecommendedPrice, factorsJSON, c.DistanceKm, c.WeightKg,
		c.VolumeM3, c.LoadType, c.CalculatedAt)
	return err
}

func (p *PostgresStore) GetCalculation(ctx context.Context, id string) (*models.PricingCalculation, error) {
	row := p.db.QueryRowContext(ctx, calcSelect+` WHERE id=$1`, id)
	return scanCalculation(row)
}

func (p *PostgresStore) GetCalculationsByLoad(ctx context.Context, loadID string) ([]*models.PricingCalculation, error) {
	rows, err := p.db.QueryContext(ctx, calcSelect+` WHERE load_id=$1 ORDER BY calculated_at`, loadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.PricingCalculation
	for rows.Next() {
		c, err := scanCalculation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdateCalculation(ctx context.Context, c *models.PricingCalculation) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE pricing_calculations SET
		  manually_adjusted=$1, manual_adjustment=$2, adjustment_reason=$3,
		  accepted=$4, agreed_price=$5, accepted_by=$6
		WHERE id=$7`,
		c.ManuallyAdjusted, c.ManualAdjustment, nullString(c.AdjustmentReason),
		c.Accepted, c.AgreedPrice, nullString(c.AcceptedBy), c.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

const matchSelect = `
	SELECT id, code, load_id, driver_id, vehicle_id, score, factors, status,
	       proposed_at, notified_at, responded_at, expires_at, rejection_reason,
	       agreed_price, payment_ref
	FROM matches`

const calcSelect = `
	SELECT id, load_id, algorithm_version, base_price, final_price, optimized_price,
	       recommended_price, factors, distance_km, weight_kg, volume_m3, load_type,
	       calculated_at, manually_adjusted, manual_adjustment, adjustment_reason,
	       accepted, agreed_price, accepted_by
	FROM pricing_calculations`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoad(row rowScanner) (*models.Load, error) {
	var (
		l         models.Load
		reqs      pq.StringArray
		driverID  sql.NullString
		vehicleID sql.NullString
		earliest  sql.NullTime
		latest    sql.NullTime
	)
	err := row.Scan(&l.ID, &l.Code, &l.CompanyID, &l.Title, &l.Description, &l.Status,
		&l.WeightKg, &l.VolumeM3, &l.LoadType, &reqs, &l.FixedPrice, &driverID,
		&vehicleID, &earliest, &latest, &l.TotalDistanceKm, &l.EstimatedMinutes,
		&l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	l.Requirements = requirementValues(reqs)
	l.MatchedDriverID, l.MatchedVehicleID = driverID.String, vehicleID.String
	l.EarliestPickupTime, l.LatestDeliveryTime = earliest.Time, latest.Time
	return &l, nil
}

func scanDriver(row rowScanner) (*models.Driver, error) {
	var (
		d         models.Driver
		locJSON   []byte
		whJSON    []byte
		vehicleID sql.NullString
	)
	err := row.Scan(&d.ID, &d.Code, &d.CompanyID, &d.LicenseNumber, &d.LicenseCategory,
		&d.ExperienceYears, &locJSON, &d.Status, &d.AvailableFrom, &d.AvailableUntil,
		&whJSON, &d.MaxDistanceKm, &d.CompletedLoads, &d.AverageRating, &d.TotalRatings,
		&d.OnTimePercent, &d.HasADRLicense, &d.HasSRCLicense, &d.HasForkliftLicense,
		&vehicleID, &d.LastSeenAt, &d.LastLocationUpdateAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(locJSON) > 0 {
		d.Location = new(models.Location)
		if err := json.Unmarshal(locJSON, d.Location); err != nil {
			return nil, err
		}
	}
	if len(whJSON) > 0 {
		d.WorkingHours = new(models.WorkingHours)
		if err := json.Unmarshal(whJSON, d.WorkingHours); err != nil {
			return nil, err
		}
	}
	d.CurrentVehicleID = vehicleID.String
	return &d, nil
}

func scanMatch(row rowScanner) (*models.Match, error) {
	var (
		m           models.Match
		vehicleID   sql.NullString
		factorsJSON []byte
		reason      sql.NullString
		paymentRef  sql.NullString
	)
	err := row.Scan(&m.ID, &m.Code, &m.LoadID, &m.DriverID, &vehicleID, &m.Score,
		&factorsJSON, &m.Status, &m.ProposedAt, &m.NotifiedAt, &m.RespondedAt,
		&m.ExpiresAt, &reason, &m.AgreedPrice, &paymentRef)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(factorsJSON, &m.Factors); err != nil {
		return nil, err
	}
	m.VehicleID, m.RejectionReason, m.PaymentRef = vehicleID.String, reason.String, paymentRef.String
	return &m, nil
}

func scanCalculation(row rowScanner) (*models.PricingCalculation, error) {
	var (
		c           models.PricingCalculation
		loadID      sql.NullString
		factorsJSON []byte
		reason      sql.NullString
		acceptedBy  sql.NullString
	)
	err := row.Scan(&c.ID, &loadID, &c.AlgorithmVersion, &c.BasePrice, &c.FinalPrice,
		&c.OptimizedPrice, &c.RecommendedPrice, &factorsJSON, &c.DistanceKm, &c.WeightKg,
		&c.VolumeM3, &c.LoadType, &c.CalculatedAt, &c.ManuallyAdjusted,
		&c.ManualAdjustment, &reason, &c.Accepted, &c.AgreedPrice, &acceptedBy)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(factorsJSON, &c.Factors); err != nil {
		return nil, err
	}
	c.LoadID, c.AdjustmentReason, c.AcceptedBy = loadID.String, reason.String, acceptedBy.String
	return &c, nil
}

func activeStatuses() []string {
	return []string{string(models.MatchDriverAccepted), string(models.MatchConfirmed)}
}

func requirementStrings(reqs []models.SpecialRequirement) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = string(r)
	}
	return out
}

func requirementValues(ss []string) []models.SpecialRequirement {
	if len(ss) == 0 {
		return nil
	}
	out := make([]models.SpecialRequirement, len(ss))
	for i, s := range ss {
		out[i] = models.SpecialRequirement(s)
	}
	return out
}

func marshalNullable(v any) ([]byte, error) {
	switch x := v.(type) {
	case *models.Location:
		if x == nil {
			return nil, nil
		}
	case *models.WorkingHours:
		if x == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
