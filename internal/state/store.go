package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/omtobe/go-controller/internal/cycle"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id     TEXT PRIMARY KEY,
	timezone    TEXT NOT NULL DEFAULT 'UTC',
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cycle_states (
	user_id             TEXT PRIMARY KEY,
	cycle_start         TEXT NOT NULL,
	cooling_active      INTEGER NOT NULL DEFAULT 0,
	cooling_start       TEXT,
	locked_event_id     TEXT,
	pending_event_id    TEXT,
	last_brake_display  TEXT,
	updated_at          TEXT NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(user_id)
);

CREATE TABLE IF NOT EXISTS decision_logs (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	timestamp      TEXT NOT NULL,
	decision_type  TEXT NOT NULL,
	day            INTEGER NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(user_id)
);
CREATE INDEX IF NOT EXISTS ix_decision_user_ts ON decision_logs(user_id, timestamp);

CREATE TABLE IF NOT EXISTS reflection_logs (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	timestamp    TEXT NOT NULL,
	response     TEXT NOT NULL,
	cycle_start  TEXT NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(user_id)
);
CREATE INDEX IF NOT EXISTS ix_reflection_user_cycle ON reflection_logs(user_id, cycle_start);
`
// #endregion schema

// #region errors
var (
	// ErrNotFound indicates the requested user or state row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUserExists indicates a duplicate user registration.
	ErrUserExists = errors.New("user already exists")
)

// #endregion errors

// #region store-struct
// Store persists users, per-user cycle state, and the two append-only logs
// in SQLite. The logs hold only timestamps, types, and cycle markers; no
// vitals values or event content ever reach these tables.
type Store struct {
	db *sql.DB
}

// UserRecord is a registered user.
type UserRecord struct {
	ID        string
	Timezone  string
	CreatedAt time.Time
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by inspection tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region users

// CreateUser registers a user and seeds their cycle state with day 1
// starting at now.
func (s *Store) CreateUser(id, timezone string, now time.Time) (UserRecord, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return UserRecord{}, fmt.Errorf("timezone %q: %w", timezone, err)
	}

	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE user_id = ?`, id).Scan(&exists); err != nil {
		return UserRecord{}, fmt.Errorf("check user: %w", err)
	}
	if exists > 0 {
		return UserRecord{}, ErrUserExists
	}

	tx, err := s.db.Begin()
	if err != nil {
		return UserRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO users (user_id, timezone, created_at) VALUES (?, ?, ?)`,
		id, timezone, fmtTime(now),
	)
	if err != nil {
		return UserRecord{}, fmt.Errorf("insert user: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO cycle_states (user_id, cycle_start, updated_at) VALUES (?, ?, ?)`,
		id, fmtTime(now), fmtTime(now),
	)
	if err != nil {
		return UserRecord{}, fmt.Errorf("insert cycle state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return UserRecord{}, fmt.Errorf("commit: %w", err)
	}

	return UserRecord{ID: id, Timezone: timezone, CreatedAt: now}, nil
}

// GetUser retrieves a user record.
func (s *Store) GetUser(id string) (UserRecord, error) {
	var rec UserRecord
	var createdStr string
	err := s.db.QueryRow(
		`SELECT user_id, timezone, created_at FROM users WHERE user_id = ?`, id,
	).Scan(&rec.ID, &rec.Timezone, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, ErrNotFound
	}
	if err != nil {
		return UserRecord{}, fmt.Errorf("get user %s: %w", id, err)
	}
	rec.CreatedAt = parseTime(createdStr)
	return rec, nil
}

// ListUsers returns all registered users ordered by id.
func (s *Store) ListUsers() ([]UserRecord, error) {
	rows, err := s.db.Query(`SELECT user_id, timezone, created_at FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []UserRecord
	for rows.Next() {
		var rec UserRecord
		var createdStr string
		if err := rows.Scan(&rec.ID, &rec.Timezone, &createdStr); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		rec.CreatedAt = parseTime(createdStr)
		users = append(users, rec)
	}
	return users, rows.Err()
}

// #endregion users

// #region cycle-state

// GetCycleState reads the persisted cycle state for a user.
func (s *Store) GetCycleState(userID string) (cycle.State, error) {
	var st cycle.State
	var cycleStart string
	var coolingActive int
	var coolingStart, lockedEvent, pendingEvent, lastBrake sql.NullString

	err := s.db.QueryRow(
		`SELECT cycle_start, cooling_active, cooling_start, locked_event_id, pending_event_id, last_brake_display
		 FROM cycle_states WHERE user_id = ?`, userID,
	).Scan(&cycleStart, &coolingActive, &coolingStart, &lockedEvent, &pendingEvent, &lastBrake)
	if errors.Is(err, sql.ErrNoRows) {
		return cycle.State{}, ErrNotFound
	}
	if err != nil {
		return cycle.State{}, fmt.Errorf("get cycle state %s: %w", userID, err)
	}

	st.CycleStart = parseTime(cycleStart)
	st.CoolingActive = coolingActive != 0
	if coolingStart.Valid {
		st.CoolingStart = parseTime(coolingStart.String)
	}
	if lockedEvent.Valid {
		st.LockedEventID = lockedEvent.String
	}
	if pendingEvent.Valid {
		st.PendingEventID = pendingEvent.String
	}
	if lastBrake.Valid {
		st.LastBrakeDisplay = parseTime(lastBrake.String)
	}
	return st, nil
}

// SaveCycleState upserts the cycle state row for a user.
func (s *Store) SaveCycleState(userID string, st cycle.State, now time.Time) error {
	coolingActive := 0
	if st.CoolingActive {
		coolingActive = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO cycle_states (user_id, cycle_start, cooling_active, cooling_start, locked_event_id, pending_event_id, last_brake_display, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			cycle_start = excluded.cycle_start,
			cooling_active = excluded.cooling_active,
			cooling_start = excluded.cooling_start,
			locked_event_id = excluded.locked_event_id,
			pending_event_id = excluded.pending_event_id,
			last_brake_display = excluded.last_brake_display,
			updated_at = excluded.updated_at`,
		userID, fmtTime(st.CycleStart), coolingActive,
		nullTime(st.CoolingStart), nullIfEmpty(st.LockedEventID), nullIfEmpty(st.PendingEventID),
		nullTime(st.LastBrakeDisplay), fmtTime(now),
	)
	if err != nil {
		return fmt.Errorf("save cycle state %s: %w", userID, err)
	}
	return nil
}

// #endregion cycle-state

// #region logs

// AppendDecision writes one decision log entry. Entries are never updated
// or deleted.
func (s *Store) AppendDecision(userID string, rec cycle.DecisionRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO decision_logs (id, user_id, timestamp, decision_type, day) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), userID, fmtTime(rec.Timestamp), string(rec.Type), rec.Day,
	)
	if err != nil {
		return fmt.Errorf("append decision: %w", err)
	}
	return nil
}

// AppendReflection writes one reflection log entry.
func (s *Store) AppendReflection(userID string, rec cycle.ReflectionRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO reflection_logs (id, user_id, timestamp, response, cycle_start) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), userID, fmtTime(rec.Timestamp), string(rec.Response), fmtTime(rec.CycleStart),
	)
	if err != nil {
		return fmt.Errorf("append reflection: %w", err)
	}
	return nil
}

// ListDecisions returns the most recent decision entries, newest first.
func (s *Store) ListDecisions(userID string, limit int) ([]cycle.DecisionRecord, error) {
	rows, err := s.db.Query(
		`SELECT timestamp, decision_type, day FROM decision_logs
		 WHERE user_id = ? ORDER BY timestamp DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var records []cycle.DecisionRecord
	for rows.Next() {
		var rec cycle.DecisionRecord
		var ts, dtype string
		if err := rows.Scan(&ts, &dtype, &rec.Day); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		rec.Timestamp = parseTime(ts)
		rec.Type = cycle.DecisionType(dtype)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListReflections returns the most recent reflection entries, newest first.
func (s *Store) ListReflections(userID string, limit int) ([]cycle.ReflectionRecord, error) {
	rows, err := s.db.Query(
		`SELECT timestamp, response, cycle_start FROM reflection_logs
		 WHERE user_id = ? ORDER BY timestamp DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list reflections: %w", err)
	}
	defer rows.Close()

	var records []cycle.ReflectionRecord
	for rows.Next() {
		var rec cycle.ReflectionRecord
		var ts, resp, cs string
		if err := rows.Scan(&ts, &resp, &cs); err != nil {
			return nil, fmt.Errorf("scan reflection: %w", err)
		}
		rec.Timestamp = parseTime(ts)
		rec.Response = cycle.ReflectionResponse(resp)
		rec.CycleStart = parseTime(cs)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion logs

// #region helpers

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return fmtTime(t)
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
