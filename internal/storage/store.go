package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	"cardwise/internal/core"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists card accounts and billing events in SQLite. It implements
// both the ledger's entity Store and its FlagStore: the seed flag lives in a
// separate key-value table, independent of the entity tables.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// foreign_keys must be on for ON DELETE SET NULL to detach events.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := applyMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// applyMigrations brings the schema up to date from the embedded SQL files.
// It opens its own short-lived connection, keeping the migration driver off
// the main pool.
func applyMigrations(dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer db.Close()

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ListCards returns all cards ordered by creation time descending, each with
// its owned events attached (sorted by event date).
func (s *Store) ListCards(ctx context.Context) ([]core.CardAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, issuer, network, currency_code, last4,
		       statement_close_day, due_day, billing_window_days, notes,
		       created_at, updated_at
		FROM cards
		ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	defer rows.Close()

	var cards []core.CardAccount
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		index[card.ID] = len(cards)
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}

	events, err := s.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		if e.CardID == nil {
			continue
		}
		if i, ok := index[*e.CardID]; ok {
			cards[i].Events = append(cards[i].Events, e)
		}
	}
	return cards, nil
}

// ListEvents returns every billing event, attached or standalone, ordered by
// event date ascending.
func (s *Store) ListEvents(ctx context.Context) ([]core.BillingEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, card_id, event_date, kind, note, created_at, updated_at
		FROM billing_events
		ORDER BY event_date, id`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []core.BillingEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// InsertCard persists a card together with any events it already owns, in
// one transaction.
func (s *Store) InsertCard(ctx context.Context, card core.CardAccount) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertCardTx(ctx, tx, card); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert card: %w", err)
	}
	return nil
}

// InsertCards persists a batch of cards and their owned events in a single
// transaction. Either every card lands or none does.
func (s *Store) InsertCards(ctx context.Context, cards []core.CardAccount) error {
	if len(cards) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, card := range cards {
		if err := insertCardTx(ctx, tx, card); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert cards: %w", err)
	}
	return nil
}

func insertCardTx(ctx context.Context, tx *sql.Tx, card core.CardAccount) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO cards (id, name, issuer, network, currency_code, last4,
		                   statement_close_day, due_day, billing_window_days,
		                   notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		card.ID.String(), card.Name, card.Issuer, card.Network,
		card.CurrencyCode, card.Last4, card.StatementCloseDay, card.DueDay,
		card.BillingWindowDays, card.Notes,
		formatTime(card.CreatedAt), formatTime(card.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}

	for _, e := range card.Events {
		if err := insertEventTx(ctx, tx, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) UpdateCard(ctx context.Context, card core.CardAccount) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cards
		SET name = ?, issuer = ?, network = ?, currency_code = ?, last4 = ?,
		    statement_close_day = ?, due_day = ?, billing_window_days = ?,
		    notes = ?, updated_at = ?
		WHERE id = ?`,
		card.Name, card.Issuer, card.Network, card.CurrencyCode, card.Last4,
		card.StatementCloseDay, card.DueDay, card.BillingWindowDays,
		card.Notes, formatTime(card.UpdatedAt), card.ID.String())
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update card rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update card: card %s not found", card.ID)
	}
	return nil
}

// DeleteCard removes a card. Its events are detached (card_id set to NULL by
// the foreign key), never deleted.
func (s *Store) DeleteCard(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete card rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete card: card %s not found", id)
	}
	return nil
}

func (s *Store) InsertEvent(ctx context.Context, event core.BillingEvent) error {
	return insertEventTx(ctx, s.db, event)
}

func (s *Store) UpdateEvent(ctx context.Context, event core.BillingEvent) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE billing_events
		SET event_date = ?, kind = ?, note = ?, updated_at = ?
		WHERE id = ?`,
		formatTime(event.Date), string(event.Kind), event.Note,
		formatTime(event.UpdatedAt), event.ID.String())
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update event rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update event: event %s not found", event.ID)
	}
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM billing_events WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// Bool implements the ledger's FlagStore over the app_flags table.
func (s *Store) Bool(ctx context.Context, key string) (bool, error) {
	var value int
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM app_flags WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read flag %s: %w", key, err)
	}
	return value != 0, nil
}

// SetBool implements the ledger's FlagStore.
func (s *Store) SetBool(ctx context.Context, key string, value bool) error {
	v := 0
	if value {
		v = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_flags (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, v)
	if err != nil {
		return fmt.Errorf("write flag %s: %w", key, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEventTx(ctx context.Context, db execer, e core.BillingEvent) error {
	var cardID any
	if e.CardID != nil {
		cardID = e.CardID.String()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO billing_events (id, card_id, event_date, kind, note,
		                            created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), cardID, formatTime(e.Date), string(e.Kind), e.Note,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (core.CardAccount, error) {
	var card core.CardAccount
	var id, createdAt, updatedAt string
	err := row.Scan(&id, &card.Name, &card.Issuer, &card.Network,
		&card.CurrencyCode, &card.Last4, &card.StatementCloseDay,
		&card.DueDay, &card.BillingWindowDays, &card.Notes,
		&createdAt, &updatedAt)
	if err != nil {
		return core.CardAccount{}, fmt.Errorf("scan card: %w", err)
	}
	if card.ID, err = uuid.Parse(id); err != nil {
		return core.CardAccount{}, fmt.Errorf("parse card id: %w", err)
	}
	if card.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.CardAccount{}, fmt.Errorf("parse card created_at: %w", err)
	}
	if card.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.CardAccount{}, fmt.Errorf("parse card updated_at: %w", err)
	}
	return card, nil
}

func scanEvent(row rowScanner) (core.BillingEvent, error) {
	var e core.BillingEvent
	var id, date, kind, createdAt, updatedAt string
	var cardID sql.NullString
	err := row.Scan(&id, &cardID, &date, &kind, &e.Note, &createdAt, &updatedAt)
	if err != nil {
		return core.BillingEvent{}, fmt.Errorf("scan event: %w", err)
	}
	if e.ID, err = uuid.Parse(id); err != nil {
		return core.BillingEvent{}, fmt.Errorf("parse event id: %w", err)
	}
	if cardID.Valid {
		parsed, err := uuid.Parse(cardID.String)
		if err != nil {
			return core.BillingEvent{}, fmt.Errorf("parse event card id: %w", err)
		}
		e.CardID = &parsed
	}
	e.Kind = core.EventKind(kind)
	if e.Date, err = parseTime(date); err != nil {
		return core.BillingEvent{}, fmt.Errorf("parse event date: %w", err)
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.BillingEvent{}, fmt.Errorf("parse event created_at: %w", err)
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.BillingEvent{}, fmt.Errorf("parse event updated_at: %w", err)
	}
	return e, nil
}

// Timestamps are stored as RFC 3339 UTC strings so that lexicographic and
// chronological ordering agree.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
