/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists the reference tables the calculator reads (activity tiers, KPI
  definitions, task targets) and the launches the lifecycle writes, with
  their approval events.

INTERFACES IMPLEMENTED:
  compensation.ReferenceData: Tier and KPI lookups
  launch.Store:               Launch and approval event persistence

KEY TABLES:
  activity_tiers:  Productivity thresholds and unit values per activity
  kpis:            KPI definitions by role and shift
  task_targets:    Target seconds per WMS task type
  launches:        One row per daily submission (JSON input and result)
  approval_events: Append-only audit trail of every launch transition

DAILY LIMIT:
  idx_unique_active_launch is a partial unique index on (worker_id, date)
  over non-rejected rows. Two concurrent submissions for the same slot
  cannot both commit; the loser gets launch.ErrDuplicateActiveLaunch.

JSON COLUMNS:
  calculation_input_json and calculation_result_json hold the payload and
  breakdown exactly as encoding/json writes them. Optional members are
  omitted, so key presence survives a round trip.

DRIVERS:
  "sqlite3" (github.com/mattn/go-sqlite3, cgo) is the default. "sqlite"
  (modernc.org/sqlite, pure Go) serves builds without cgo.

WAL MODE:
  File databases are opened with WAL so readers do not block the writer.

USAGE:
  store, err := sqlite.New("./data/incentive.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := launch.NewService(store, calculator)

SEE ALSO:
  - launch/store.go: Store contract
  - launch/memory.go: In-memory implementation for tests
  - factory/catalog.go: Seeds the reference tables
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/warp/incentive-engine/compensation"
	"github.com/warp/incentive-engine/launch"
	"github.com/warp/incentive-engine/tasklog"
	"github.com/warp/incentive-engine/textfold"
)

const (
	// DriverCGO is the mattn/go-sqlite3 driver name.
	DriverCGO = "sqlite3"
	// DriverPureGo is the modernc.org/sqlite driver name.
	DriverPureGo = "sqlite"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements compensation.ReferenceData and launch.Store.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens a database with the default driver.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	return Open(DriverCGO, dbPath)
}

// Open opens a database with the named driver ("sqlite3" or "sqlite").
func Open(driver, dbPath string) (*Store, error) {
	dsn, err := buildDSN(driver, dbPath)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func buildDSN(driver, dbPath string) (string, error) {
	switch driver {
	case DriverCGO:
		return dbPath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", nil
	case DriverPureGo:
		return dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q (want %q or %q)", driver, DriverCGO, DriverPureGo)
	}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Reference data (owned by the admin catalog)
	CREATE TABLE IF NOT EXISTS activity_tiers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		activity_name TEXT NOT NULL,
		activity_key TEXT NOT NULL,
		level_label TEXT NOT NULL,
		unit_value TEXT NOT NULL,
		minimum_productivity TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		UNIQUE(activity_key, minimum_productivity)
	);

	CREATE INDEX IF NOT EXISTS idx_activity_tiers_key
		ON activity_tiers(activity_key);

	CREATE TABLE IF NOT EXISTS kpis (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		target_value TEXT NOT NULL,
		bonus_weight TEXT NOT NULL,
		shift TEXT NOT NULL,
		role TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS task_targets (
		type_key TEXT PRIMARY KEY,
		task_type TEXT NOT NULL,
		target_seconds INTEGER NOT NULL
	);

	-- Launches
	CREATE TABLE IF NOT EXISTS launches (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		date TEXT NOT NULL,
		role TEXT NOT NULL,
		shift TEXT NOT NULL DEFAULT '',
		calculation_input_json TEXT NOT NULL,
		calculation_result_json TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'approved', 'rejected', 'edited_approved')),
		activities_subtotal TEXT NOT NULL,
		kpi_bonus TEXT NOT NULL,
		total_compensation TEXT NOT NULL,
		reviewed_by TEXT,
		reviewed_at TEXT,
		edited_by TEXT,
		edited_at TEXT,
		observations TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one non-rejected launch per worker per day
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_active_launch
		ON launches(worker_id, date)
		WHERE status != 'rejected';

	CREATE INDEX IF NOT EXISTS idx_launches_status
		ON launches(status, created_at);
	CREATE INDEX IF NOT EXISTS idx_launches_worker
		ON launches(worker_id, date);

	-- Approval events (append-only)
	CREATE TABLE IF NOT EXISTS approval_events (
		id TEXT PRIMARY KEY,
		launch_id TEXT NOT NULL REFERENCES launches(id),
		action TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		observations TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_approval_events_launch
		ON approval_events(launch_id, timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REFERENCE DATA (compensation.ReferenceData interface)
// =============================================================================

// TiersFor returns the tiers of an activity, matched ignoring accents and case.
func (s *Store) TiersFor(ctx context.Context, activityName string) ([]compensation.ActivityTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryTiers(ctx, `
		SELECT activity_name, level_label, unit_value, minimum_productivity, unit
		FROM activity_tiers WHERE activity_key = ?
		ORDER BY CAST(minimum_productivity AS REAL) DESC
	`, textfold.Key(activityName))
}

// ListTiers returns every tier, grouped by activity.
func (s *Store) ListTiers(ctx context.Context) ([]compensation.ActivityTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryTiers(ctx, `
		SELECT activity_name, level_label, unit_value, minimum_productivity, unit
		FROM activity_tiers
		ORDER BY activity_key, CAST(minimum_productivity AS REAL)
	`)
}

func (s *Store) queryTiers(ctx context.Context, query string, args ...any) ([]compensation.ActivityTier, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tiers: %w", err)
	}
	defer rows.Close()

	tiers := []compensation.ActivityTier{}
	for rows.Next() {
		var t compensation.ActivityTier
		var unitValue, minimum string
		if err := rows.Scan(&t.ActivityName, &t.LevelLabel, &unitValue, &minimum, &t.Unit); err != nil {
			return nil, err
		}
		if t.UnitValue, err = decimal.NewFromString(unitValue); err != nil {
			return nil, fmt.Errorf("tier %s/%s unit value: %w", t.ActivityName, t.LevelLabel, err)
		}
		if t.MinimumProductivity, err = decimal.NewFromString(minimum); err != nil {
			return nil, fmt.Errorf("tier %s/%s minimum productivity: %w", t.ActivityName, t.LevelLabel, err)
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// KPIs returns every KPI definition ordered by name.
func (s *Store) KPIs(ctx context.Context) ([]compensation.KPIDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, target_value, bonus_weight, shift, role, active
		FROM kpis ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query kpis: %w", err)
	}
	defer rows.Close()

	kpis := []compensation.KPIDefinition{}
	for rows.Next() {
		var k compensation.KPIDefinition
		var target, weight string
		if err := rows.Scan(&k.ID, &k.Name, &target, &weight, &k.Shift, &k.Role, &k.Active); err != nil {
			return nil, err
		}
		if k.TargetValue, err = decimal.NewFromString(target); err != nil {
			return nil, fmt.Errorf("kpi %s target: %w", k.ID, err)
		}
		if k.BonusWeight, err = decimal.NewFromString(weight); err != nil {
			return nil, fmt.Errorf("kpi %s weight: %w", k.ID, err)
		}
		kpis = append(kpis, k)
	}
	return kpis, rows.Err()
}

// TaskTargets returns the stored target table.
func (s *Store) TaskTargets(ctx context.Context) (tasklog.TargetTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT task_type, target_seconds FROM task_targets`)
	if err != nil {
		return tasklog.TargetTable{}, fmt.Errorf("failed to query task targets: %w", err)
	}
	defer rows.Close()

	targets := make(map[string]time.Duration)
	for rows.Next() {
		var name string
		var seconds int64
		if err := rows.Scan(&name, &seconds); err != nil {
			return tasklog.TargetTable{}, err
		}
		targets[name] = time.Duration(seconds) * time.Second
	}
	if err := rows.Err(); err != nil {
		return tasklog.TargetTable{}, err
	}
	return tasklog.NewTargetTable(targets), nil
}

// ReplaceCatalog swaps all reference tables in one transaction.
func (s *Store) ReplaceCatalog(ctx context.Context, tiers []compensation.ActivityTier, kpis []compensation.KPIDefinition, targets tasklog.TargetTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"activity_tiers", "kpis", "task_targets"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, t := range tiers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO activity_tiers (activity_name, activity_key, level_label, unit_value, minimum_productivity, unit)
			VALUES (?, ?, ?, ?, ?, ?)
		`, t.ActivityName, textfold.Key(t.ActivityName), t.LevelLabel, t.UnitValue.String(), t.MinimumProductivity.String(), t.Unit)
		if err != nil {
			return fmt.Errorf("failed to insert tier %s/%s: %w", t.ActivityName, t.LevelLabel, err)
		}
	}

	for _, k := range kpis {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO kpis (id, name, target_value, bonus_weight, shift, role, active)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, k.ID, k.Name, k.TargetValue.String(), k.BonusWeight.String(), k.Shift, k.Role, k.Active)
		if err != nil {
			return fmt.Errorf("failed to insert kpi %s: %w", k.ID, err)
		}
	}

	for _, tt := range targets.Targets() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO task_targets (type_key, task_type, target_seconds) VALUES (?, ?, ?)
		`, textfold.Key(tt.Type), tt.Type, int64(tt.Target/time.Second))
		if err != nil {
			return fmt.Errorf("failed to insert task target %s: %w", tt.Type, err)
		}
	}

	return tx.Commit()
}

// =============================================================================
// LAUNCH STORE (launch.Store interface)
// =============================================================================

const launchColumns = `
	id, worker_id, date, role, shift, calculation_input_json, calculation_result_json,
	status, activities_subtotal, kpi_bonus, total_compensation,
	reviewed_by, reviewed_at, edited_by, edited_at, observations, created_at, updated_at
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// FindActiveLaunch returns the non-rejected launch of a (worker, date), or nil.
func (s *Store) FindActiveLaunch(ctx context.Context, workerID, date string) (*launch.Launch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+launchColumns+` FROM launches
		WHERE worker_id = ? AND date = ? AND status != 'rejected'
		LIMIT 1
	`, workerID, date)
	l, err := scanLaunch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateLaunch inserts a launch and its first event in one transaction.
func (s *Store) CreateLaunch(ctx context.Context, l launch.Launch, ev launch.ApprovalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	input, result, err := encodeDocuments(l)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO launches (`+launchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		l.ID, l.WorkerID, l.Date, l.Role, l.Shift, input, result,
		string(l.Status), l.ActivitiesSubtotal.String(), l.KPIBonus.String(), l.TotalCompensation.String(),
		l.ReviewedBy, formatTimePtr(l.ReviewedAt), l.EditedBy, formatTimePtr(l.EditedAt), l.Observations,
		formatTime(l.CreatedAt), formatTime(l.UpdatedAt),
	)
	if err != nil {
		if isActiveLaunchConflict(err) {
			return launch.ErrDuplicateActiveLaunch
		}
		return fmt.Errorf("failed to insert launch: %w", err)
	}

	if err := insertEvent(ctx, tx, ev); err != nil {
		return err
	}
	return tx.Commit()
}

// GetLaunch returns launch.ErrLaunchNotFound for an unknown ID.
func (s *Store) GetLaunch(ctx context.Context, id string) (launch.Launch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+launchColumns+` FROM launches WHERE id = ?`, id)
	l, err := scanLaunch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return launch.Launch{}, fmt.Errorf("%w: %s", launch.ErrLaunchNotFound, id)
	}
	return l, err
}

// UpdateLaunch rewrites a launch only while its status is still expected,
// and appends the event in the same transaction.
func (s *Store) UpdateLaunch(ctx context.Context, l launch.Launch, expected launch.Status, ev launch.ApprovalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	input, result, err := encodeDocuments(l)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE launches SET
			role = ?, shift = ?, calculation_input_json = ?, calculation_result_json = ?,
			status = ?, activities_subtotal = ?, kpi_bonus = ?, total_compensation = ?,
			reviewed_by = ?, reviewed_at = ?, edited_by = ?, edited_at = ?, observations = ?,
			updated_at = ?
		WHERE id = ? AND status = ?
	`,
		l.Role, l.Shift, input, result,
		string(l.Status), l.ActivitiesSubtotal.String(), l.KPIBonus.String(), l.TotalCompensation.String(),
		l.ReviewedBy, formatTimePtr(l.ReviewedAt), l.EditedBy, formatTimePtr(l.EditedAt), l.Observations,
		formatTime(l.UpdatedAt),
		l.ID, string(expected),
	)
	if err != nil {
		if isActiveLaunchConflict(err) {
			return launch.ErrDuplicateActiveLaunch
		}
		return fmt.Errorf("failed to update launch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM launches WHERE id = ?`, l.ID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", launch.ErrLaunchNotFound, l.ID)
		}
		return launch.ErrConcurrentModification
	}

	if err := insertEvent(ctx, tx, ev); err != nil {
		return err
	}
	return tx.Commit()
}

// ListLaunches returns matching launches, oldest first.
func (s *Store) ListLaunches(ctx context.Context, f launch.Filter) ([]launch.Launch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.WorkerID != "" {
		where = append(where, "worker_id = ?")
		args = append(args, f.WorkerID)
	}
	if f.Date != "" {
		where = append(where, "date = ?")
		args = append(args, f.Date)
	}
	query := `SELECT ` + launchColumns + ` FROM launches`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query launches: %w", err)
	}
	defer rows.Close()

	launches := []launch.Launch{}
	for rows.Next() {
		l, err := scanLaunch(rows)
		if err != nil {
			return nil, err
		}
		launches = append(launches, l)
	}
	return launches, rows.Err()
}

// ListEvents returns the audit trail of a launch, oldest first.
func (s *Store) ListEvents(ctx context.Context, launchID string) ([]launch.ApprovalEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, launch_id, action, actor_id, timestamp, observations
		FROM approval_events WHERE launch_id = ?
		ORDER BY timestamp, rowid
	`, launchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query approval events: %w", err)
	}
	defer rows.Close()

	events := []launch.ApprovalEvent{}
	for rows.Next() {
		var ev launch.ApprovalEvent
		var action, ts string
		var observations sql.NullString
		if err := rows.Scan(&ev.ID, &ev.LaunchID, &action, &ev.ActorID, &ts, &observations); err != nil {
			return nil, err
		}
		ev.Action = launch.Action(action)
		ev.Timestamp = parseTime(ts)
		ev.Observations = nullStringPtr(observations)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func insertEvent(ctx context.Context, db execer, ev launch.ApprovalEvent) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO approval_events (id, launch_id, action, actor_id, timestamp, observations)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.LaunchID, string(ev.Action), ev.ActorID, formatTime(ev.Timestamp), ev.Observations)
	if err != nil {
		return fmt.Errorf("failed to append approval event: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLaunch(row rowScanner) (launch.Launch, error) {
	var l launch.Launch
	var input, result, status, subtotal, bonus, total, createdAt, updatedAt string
	var reviewedBy, reviewedAt, editedBy, editedAt, observations sql.NullString

	err := row.Scan(
		&l.ID, &l.WorkerID, &l.Date, &l.Role, &l.Shift, &input, &result,
		&status, &subtotal, &bonus, &total,
		&reviewedBy, &reviewedAt, &editedBy, &editedAt, &observations, &createdAt, &updatedAt,
	)
	if err != nil {
		return launch.Launch{}, err
	}

	if err := json.Unmarshal([]byte(input), &l.Input); err != nil {
		return launch.Launch{}, fmt.Errorf("launch %s: decode calculation input: %w", l.ID, err)
	}
	if err := json.Unmarshal([]byte(result), &l.Result); err != nil {
		return launch.Launch{}, fmt.Errorf("launch %s: decode calculation result: %w", l.ID, err)
	}

	l.Status = launch.Status(status)
	if l.ActivitiesSubtotal, err = decimal.NewFromString(subtotal); err != nil {
		return launch.Launch{}, fmt.Errorf("launch %s: invalid activities_subtotal %q: %w", l.ID, subtotal, err)
	}
	if l.KPIBonus, err = decimal.NewFromString(bonus); err != nil {
		return launch.Launch{}, fmt.Errorf("launch %s: invalid kpi_bonus %q: %w", l.ID, bonus, err)
	}
	if l.TotalCompensation, err = decimal.NewFromString(total); err != nil {
		return launch.Launch{}, fmt.Errorf("launch %s: invalid total_compensation %q: %w", l.ID, total, err)
	}
	l.ReviewedBy = nullStringPtr(reviewedBy)
	l.ReviewedAt = nullTimePtr(reviewedAt)
	l.EditedBy = nullStringPtr(editedBy)
	l.EditedAt = nullTimePtr(editedAt)
	l.Observations = nullStringPtr(observations)
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	return l, nil
}

func encodeDocuments(l launch.Launch) (string, string, error) {
	input, err := json.Marshal(l.Input)
	if err != nil {
		return "", "", fmt.Errorf("encode calculation input: %w", err)
	}
	result, err := json.Marshal(l.Result)
	if err != nil {
		return "", "", fmt.Errorf("encode calculation result: %w", err)
	}
	return string(input), string(result), nil
}

// =============================================================================
// UTILITIES
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

// isActiveLaunchConflict matches a violation of idx_unique_active_launch.
// SQLite reports the indexed columns, not the index name.
func isActiveLaunchConflict(err error) bool {
	return isUniqueConstraintError(err) && strings.Contains(err.Error(), "launches.worker_id")
}
