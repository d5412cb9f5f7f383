// Package ledger owns the canonical in-memory list of card accounts and
// their billing events. All mutations go through the Repository, which
// persists to the backing store first and republishes a fresh snapshot only
// after the store accepted the change. A failed mutation leaves the visible
// snapshot exactly as it was.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cardwise/internal/core"
	"cardwise/internal/log"
)

// Store is the entity persistence collaborator. ListCards must return cards
// ordered by creation time descending with their owned events attached;
// InsertCard must persist any events the card already owns; InsertCards must
// persist all cards and their events or none of them; DeleteCard must detach
// (not delete) the card's events.
type Store interface {
	ListCards(ctx context.Context) ([]core.CardAccount, error)
	ListEvents(ctx context.Context) ([]core.BillingEvent, error)
	InsertCard(ctx context.Context, card core.CardAccount) error
	InsertCards(ctx context.Context, cards []core.CardAccount) error
	UpdateCard(ctx context.Context, card core.CardAccount) error
	DeleteCard(ctx context.Context, id uuid.UUID) error
	InsertEvent(ctx context.Context, event core.BillingEvent) error
	UpdateEvent(ctx context.Context, event core.BillingEvent) error
}

// FlagStore persists the has-seeded marker outside the entity tables.
type FlagStore interface {
	Bool(ctx context.Context, key string) (bool, error)
	SetBool(ctx context.Context, key string, value bool) error
}

// SeedProvider builds the starter data inserted on first run.
type SeedProvider func(now time.Time) []core.CardAccount

// PersistenceError wraps any store failure surfaced by a mutation. The
// snapshot visible before the failed call remains valid.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("unable to save changes (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrNotFound marks lookups of cards or events that are not in the ledger.
var ErrNotFound = errors.New("not found")

const seedFlagKey = "has_seeded"

// CardParams carries the caller-supplied fields for a new card.
type CardParams struct {
	Name              string
	Issuer            string
	Network           string
	CurrencyCode      string
	Last4             string
	StatementCloseDay int
	DueDay            int
	BillingWindowDays int
	Notes             string
}

// Repository mediates all card and event mutations. Every mutating
// operation holds writeMu end to end, so concurrent read-modify-write
// cycles cannot lose each other's changes; mu guards only the snapshot,
// and reads hand out copies.
type Repository struct {
	writeMu sync.Mutex
	mu      sync.Mutex
	store   Store
	flags   FlagStore
	seed    SeedProvider
	now     func() time.Time
	strict  bool
	logger  *log.Logger

	cards  []core.CardAccount
	events []core.BillingEvent
}

type Option func(*Repository)

// WithStrictCycleDays makes AddCard and Upsert reject statement-close and
// due days outside [1, 31] instead of clamping them at projection time.
func WithStrictCycleDays() Option {
	return func(r *Repository) { r.strict = true }
}

// WithSeedProvider overrides the default sample data.
func WithSeedProvider(seed SeedProvider) Option {
	return func(r *Repository) { r.seed = seed }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// New seeds the store on first run and loads the initial snapshot.
func New(ctx context.Context, store Store, flags FlagStore, logger *log.Logger, opts ...Option) *Repository {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	r := &Repository{
		store:  store,
		flags:  flags,
		seed:   SampleCards,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentLedger),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.seedIfNeeded(ctx)
	r.Refresh(ctx)
	return r
}

// Cards returns the current snapshot, ordered by creation time descending.
// The returned slice and the nested event slices are copies.
func (r *Repository) Cards() []core.CardAccount {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyCards(r.cards)
}

// Card returns a single card from the snapshot.
func (r *Repository) Card(id uuid.UUID) (core.CardAccount, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cards {
		if c.ID == id {
			out := c
			out.Events = append([]core.BillingEvent(nil), c.Events...)
			return out, true
		}
	}
	return core.CardAccount{}, false
}

// Events returns every billing event, attached or standalone, ordered by
// date ascending.
func (r *Repository) Events() []core.BillingEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.BillingEvent(nil), r.events...)
}

// Refresh reloads the snapshot from the store. On a read failure the
// previous snapshot stays visible: stale but available, never a crash.
func (r *Repository) Refresh(ctx context.Context) {
	cards, err := r.store.ListCards(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to fetch cards, keeping previous snapshot",
			log.FieldOperation, log.OpRefresh, log.FieldError, err)
		return
	}
	events, err := r.store.ListEvents(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to fetch events, keeping previous snapshot",
			log.FieldOperation, log.OpRefresh, log.FieldError, err)
		return
	}
	r.mu.Lock()
	r.cards = cards
	r.events = events
	r.mu.Unlock()
}

// AddCard constructs a card from params, persists it and refreshes the
// snapshot. The created entity is returned.
func (r *Repository) AddCard(ctx context.Context, p CardParams) (core.CardAccount, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if r.strict {
		if err := core.ValidateCycleDay(p.StatementCloseDay); err != nil {
			return core.CardAccount{}, fmt.Errorf("statement close day %d: %w", p.StatementCloseDay, err)
		}
		if err := core.ValidateCycleDay(p.DueDay); err != nil {
			return core.CardAccount{}, fmt.Errorf("due day %d: %w", p.DueDay, err)
		}
	}

	now := r.now()
	card := core.CardAccount{
		ID:                uuid.New(),
		Name:              p.Name,
		Issuer:            p.Issuer,
		Network:           p.Network,
		CurrencyCode:      p.CurrencyCode,
		Last4:             p.Last4,
		StatementCloseDay: core.ClampCycleDay(p.StatementCloseDay),
		DueDay:            core.ClampCycleDay(p.DueDay),
		BillingWindowDays: p.BillingWindowDays,
		Notes:             p.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := card.Validate(); err != nil {
		return core.CardAccount{}, err
	}

	if err := r.store.InsertCard(ctx, card); err != nil {
		r.logger.ErrorContext(ctx, "Failed to save card",
			log.FieldOperation, log.OpCreate, log.FieldCardName, card.DisplayName(), log.FieldError, err)
		return core.CardAccount{}, &PersistenceError{Op: "add card", Err: err}
	}
	r.Refresh(ctx)
	r.logger.InfoContext(ctx, "Card added",
		log.FieldCardID, card.ID, log.FieldCardName, card.DisplayName())
	return card, nil
}

// DeleteCard removes a card; its events detach and live on as standalone
// notes.
func (r *Repository) DeleteCard(ctx context.Context, id uuid.UUID) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if _, ok := r.Card(id); !ok {
		return fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	if err := r.store.DeleteCard(ctx, id); err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete card",
			log.FieldOperation, log.OpDelete, log.FieldCardID, id, log.FieldError, err)
		return &PersistenceError{Op: "delete card", Err: err}
	}
	r.Refresh(ctx)
	r.logger.InfoContext(ctx, "Card deleted", log.FieldCardID, id)
	return nil
}

// Upsert applies a mutation callback to the card, bumps its last-updated
// timestamp, persists and refreshes. The updated entity is returned.
func (r *Repository) Upsert(ctx context.Context, id uuid.UUID, apply func(*core.CardAccount)) (core.CardAccount, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	card, ok := r.Card(id)
	if !ok {
		return core.CardAccount{}, fmt.Errorf("card %s: %w", id, ErrNotFound)
	}

	apply(&card)
	card.UpdatedAt = r.now()
	if r.strict {
		if err := core.ValidateCycleDay(card.StatementCloseDay); err != nil {
			return core.CardAccount{}, fmt.Errorf("statement close day %d: %w", card.StatementCloseDay, err)
		}
		if err := core.ValidateCycleDay(card.DueDay); err != nil {
			return core.CardAccount{}, fmt.Errorf("due day %d: %w", card.DueDay, err)
		}
	}
	card.StatementCloseDay = core.ClampCycleDay(card.StatementCloseDay)
	card.DueDay = core.ClampCycleDay(card.DueDay)
	if err := card.Validate(); err != nil {
		return core.CardAccount{}, err
	}

	if err := r.store.UpdateCard(ctx, card); err != nil {
		r.logger.ErrorContext(ctx, "Failed to update card",
			log.FieldOperation, log.OpUpdate, log.FieldCardID, id, log.FieldError, err)
		return core.CardAccount{}, &PersistenceError{Op: "update card", Err: err}
	}
	r.Refresh(ctx)
	return card, nil
}

// AddEvent attaches a billing event to a card, or records it standalone when
// cardID is nil.
func (r *Repository) AddEvent(ctx context.Context, cardID *uuid.UUID, date time.Time, kind core.EventKind, note string) (core.BillingEvent, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	now := r.now()
	event := core.BillingEvent{
		ID:        uuid.New(),
		CardID:    cardID,
		Date:      date,
		Kind:      kind,
		Note:      note,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := event.Validate(); err != nil {
		return core.BillingEvent{}, err
	}
	if cardID != nil {
		if _, ok := r.Card(*cardID); !ok {
			return core.BillingEvent{}, fmt.Errorf("card %s: %w", *cardID, ErrNotFound)
		}
	}

	if err := r.store.InsertEvent(ctx, event); err != nil {
		r.logger.ErrorContext(ctx, "Failed to save event",
			log.FieldOperation, log.OpCreate, log.FieldEventKind, kind, log.FieldError, err)
		return core.BillingEvent{}, &PersistenceError{Op: "add event", Err: err}
	}
	r.Refresh(ctx)
	return event, nil
}

// UpdateEventNote replaces an event's note text and bumps its last-updated
// timestamp.
func (r *Repository) UpdateEventNote(ctx context.Context, id uuid.UUID, note string) (core.BillingEvent, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	event, ok := r.event(id)
	if !ok {
		return core.BillingEvent{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}

	event.Note = note
	event.UpdatedAt = r.now()
	if err := r.store.UpdateEvent(ctx, event); err != nil {
		r.logger.ErrorContext(ctx, "Failed to update event",
			log.FieldOperation, log.OpUpdate, log.FieldEventID, id, log.FieldError, err)
		return core.BillingEvent{}, &PersistenceError{Op: "update event", Err: err}
	}
	r.Refresh(ctx)
	return event, nil
}

func (r *Repository) event(id uuid.UUID) (core.BillingEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			return e, true
		}
	}
	return core.BillingEvent{}, false
}

// seedIfNeeded inserts the starter data once per installation. The cards go
// in as one atomic batch: a persistence failure leaves nothing behind and
// the flag unset, so the retry on next start cannot duplicate cards. The
// failure itself is logged only.
func (r *Repository) seedIfNeeded(ctx context.Context) {
	seeded, err := r.flags.Bool(ctx, seedFlagKey)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to read seed flag, skipping seeding",
			log.FieldOperation, log.OpSeed, log.FieldError, err)
		return
	}
	if seeded {
		return
	}

	if err := r.store.InsertCards(ctx, r.seed(r.now())); err != nil {
		r.logger.ErrorContext(ctx, "Failed to seed sample data, will retry on next start",
			log.FieldOperation, log.OpSeed, log.FieldError, err)
		return
	}
	if err := r.flags.SetBool(ctx, seedFlagKey, true); err != nil {
		r.logger.ErrorContext(ctx, "Failed to set seed flag",
			log.FieldOperation, log.OpSeed, log.FieldError, err)
		return
	}
	r.logger.InfoContext(ctx, "Sample data seeded", log.FieldOperation, log.OpSeed)
}

func copyCards(cards []core.CardAccount) []core.CardAccount {
	out := make([]core.CardAccount, len(cards))
	for i, c := range cards {
		out[i] = c
		out[i].Events = append([]core.BillingEvent(nil), c.Events...)
	}
	return out
}
