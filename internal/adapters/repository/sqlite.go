package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/circolo-dev/fantacircolo/internal/domain/model"
)

// migrations holds the schema, one statement per string (SQLite executes one
// at a time).
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS allowed_users (
		email TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id           TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		email        TEXT NOT NULL,
		photo_url    TEXT NOT NULL DEFAULT '',
		credits      INTEGER NOT NULL,
		role         TEXT NOT NULL DEFAULT 'user',
		team         TEXT,
		fanta_score  INTEGER NOT NULL DEFAULT 0,
		created_at   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS market (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		category    TEXT NOT NULL,
		price       INTEGER NOT NULL,
		fanta_score INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id             TEXT PRIMARY KEY,
		character_id   TEXT NOT NULL,
		character_name TEXT NOT NULL,
		action_key     TEXT NOT NULL,
		action_label   TEXT NOT NULL,
		points         INTEGER NOT NULL,
		timestamp      TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_character ON events(character_id)`,
}

// SQLiteStore is a Store backed by an embedded SQLite database. A staged
// batch maps to one SQL transaction, which carries the all-or-nothing
// guarantee.
type SQLiteStore struct {
	db       *sql.DB
	notifier *userNotifier
}

// NewSQLiteStore opens (creating if needed) the database at path and runs
// the schema migrations.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrPersistence, path, err)
	}
	// The driver is not safe for concurrent writers on one connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: %s: %w", ErrPersistence, pragma, err)
		}
	}
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: migrate: %w", ErrPersistence, err)
		}
	}

	return &SQLiteStore{db: db, notifier: newUserNotifier()}, nil
}

// IsAllowed checks the allow-list entry keyed by email.
func (s *SQLiteStore) IsAllowed(ctx context.Context, email string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM allowed_users WHERE email = ?`, email).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return true, nil
}

// Allow adds an email to the allow-list.
func (s *SQLiteStore) Allow(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO allowed_users (email) VALUES (?)`, email)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	var team sql.NullString
	var createdAt string
	err := row.Scan(&u.ID, &u.DisplayName, &u.Email, &u.PhotoURL,
		&u.Credits, (*string)(&u.Role), &team, &u.FantaScore, &createdAt)
	if err != nil {
		return model.User{}, err
	}
	if team.Valid && team.String != "" {
		if err := json.Unmarshal([]byte(team.String), &u.Team); err != nil {
			return model.User{}, err
		}
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		u.CreatedAt = ts
	}
	return u, nil
}

const userColumns = `id, display_name, email, photo_url, credits, role, team, fanta_score, created_at`

// GetUser returns a user document.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return u, nil
}

// CreateUser inserts a new user document.
func (s *SQLiteStore) CreateUser(ctx context.Context, u model.User) error {
	team, err := marshalTeam(u.Team)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.DisplayName, u.Email, u.PhotoURL, u.Credits, string(u.Role),
		team, u.FantaScore, u.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", u.ID, ErrExists)
	}
	s.notifier.notify(u)
	return nil
}

// ListUsers returns every user document in insertion order.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return out, nil
}

// GetCharacter returns a market item.
func (s *SQLiteStore) GetCharacter(ctx context.Context, id string) (model.Character, error) {
	var ch model.Character
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, category, price, fanta_score FROM market WHERE id = ?`, id).
		Scan(&ch.ID, &ch.Name, (*string)(&ch.Category), &ch.Price, &ch.FantaScore)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Character{}, fmt.Errorf("character %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Character{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return ch, nil
}

// PutCharacter creates or replaces a market item.
func (s *SQLiteStore) PutCharacter(ctx context.Context, ch model.Character) (model.Character, error) {
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO market (id, name, category, price, fanta_score)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name, category = excluded.category,
		   price = excluded.price, fanta_score = excluded.fanta_score`,
		ch.ID, ch.Name, string(ch.Category), ch.Price, ch.FantaScore)
	if err != nil {
		return model.Character{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return ch, nil
}

// ListCharacters returns the market ordered by name.
func (s *SQLiteStore) ListCharacters(ctx context.Context) ([]model.Character, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, category, price, fanta_score FROM market ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	defer rows.Close()

	var out []model.Character
	for rows.Next() {
		var ch model.Character
		if err := rows.Scan(&ch.ID, &ch.Name, (*string)(&ch.Category), &ch.Price, &ch.FantaScore); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return out, nil
}

func (s *SQLiteStore) queryEvents(ctx context.Context, where string, args ...any) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, character_id, character_name, action_key, action_label, points, timestamp FROM events`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var ev model.Event
		var ts string
		if err := rows.Scan(&ev.ID, &ev.CharacterID, &ev.CharacterName,
			&ev.ActionKey, &ev.ActionLabel, &ev.Points, &ts); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ev.Timestamp = parsed
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return out, nil
}

// ListEvents returns the whole event log, unordered.
func (s *SQLiteStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.queryEvents(ctx, ``)
}

// ListCharacterEvents returns the events for one character, unordered.
func (s *SQLiteStore) ListCharacterEvents(ctx context.Context, characterID string) ([]model.Event, error) {
	return s.queryEvents(ctx, ` WHERE character_id = ?`, characterID)
}

// Apply commits a staged batch in one transaction.
func (s *SQLiteStore) Apply(ctx context.Context, b *Batch) error {
	if b == nil || b.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	for id, score := range b.CharacterScores {
		if err := execOne(ctx, tx,
			`UPDATE market SET fanta_score = ? WHERE id = ?`, score, id); err != nil {
			return fmt.Errorf("character %s: %w", id, err)
		}
	}
	for _, ev := range b.Events {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (id, character_id, character_name, action_key, action_label, points, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, ev.CharacterID, ev.CharacterName, ev.ActionKey,
			ev.ActionLabel, ev.Points, ev.Timestamp.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("%w: append event: %w", ErrPersistence, err)
		}
	}
	for id, delta := range b.UserScoreDeltas {
		if err := execOne(ctx, tx,
			`UPDATE users SET fanta_score = fanta_score + ? WHERE id = ?`, delta, id); err != nil {
			return fmt.Errorf("user %s: %w", id, err)
		}
	}
	for id, score := range b.UserScoreSets {
		if err := execOne(ctx, tx,
			`UPDATE users SET fanta_score = ? WHERE id = ?`, score, id); err != nil {
			return fmt.Errorf("user %s: %w", id, err)
		}
	}
	for id, patch := range b.UserPatches {
		if patch.SetTeam {
			team, err := marshalTeam(patch.Team)
			if err != nil {
				return err
			}
			if err := execOne(ctx, tx,
				`UPDATE users SET team = ? WHERE id = ?`, team, id); err != nil {
				return fmt.Errorf("user %s: %w", id, err)
			}
		}
		if patch.SetCredits {
			if err := execOne(ctx, tx,
				`UPDATE users SET credits = ? WHERE id = ?`, patch.Credits, id); err != nil {
				return fmt.Errorf("user %s: %w", id, err)
			}
		}
		if patch.SetScore {
			if err := execOne(ctx, tx,
				`UPDATE users SET fanta_score = ? WHERE id = ?`, patch.Score, id); err != nil {
				return fmt.Errorf("user %s: %w", id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrPersistence, err)
	}

	// Deliver post-commit states to subscribers.
	touched := make(map[string]struct{})
	for id := range b.UserScoreDeltas {
		touched[id] = struct{}{}
	}
	for id := range b.UserScoreSets {
		touched[id] = struct{}{}
	}
	for id := range b.UserPatches {
		touched[id] = struct{}{}
	}
	for id := range touched {
		if u, err := s.GetUser(ctx, id); err == nil {
			s.notifier.notify(u)
		}
	}
	return nil
}

// WatchUser subscribes to a user's own document.
func (s *SQLiteStore) WatchUser(ctx context.Context, id string) (<-chan model.User, func(), error) {
	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.notifier.subscribe(id)
	return ch, cancel, nil
}

// Close releases store resources.
func (s *SQLiteStore) Close() error {
	s.notifier.close()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// execOne runs an update that must touch exactly one row; zero rows maps to
// ErrNotFound so the surrounding transaction rolls back.
func execOne(ctx context.Context, tx *sql.Tx, stmt string, args ...any) error {
	res, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalTeam(t model.Team) (any, error) {
	if t == nil {
		return nil, nil
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal team: %w", ErrPersistence, err)
	}
	return string(raw), nil
}
