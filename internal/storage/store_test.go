package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardwise/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testCard(name string, createdAt time.Time) core.CardAccount {
	return core.CardAccount{
		ID:                uuid.New(),
		Name:              name,
		Issuer:            "North Bank",
		Network:           "Visa",
		CurrencyCode:      "USD",
		Last4:             "1234",
		StatementCloseDay: 10,
		DueDay:            5,
		BillingWindowDays: 30,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
}

func TestListCards_OrderedByCreationDescending(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	older := testCard("older", base)
	newer := testCard("newer", base.Add(time.Hour))
	require.NoError(t, store.InsertCard(ctx, older))
	require.NoError(t, store.InsertCard(ctx, newer))

	cards, err := store.ListCards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "newer", cards[0].Name)
	assert.Equal(t, "older", cards[1].Name)
	assert.True(t, cards[0].CreatedAt.Equal(base.Add(time.Hour)))
}

func TestInsertCard_PersistsOwnedEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	card := testCard("with events", now)
	id := card.ID
	card.Events = []core.BillingEvent{
		{
			ID:        uuid.New(),
			CardID:    &id,
			Date:      time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
			Kind:      core.StatementClose,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:        uuid.New(),
			CardID:    &id,
			Date:      time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			Kind:      core.PaymentDue,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	require.NoError(t, store.InsertCard(ctx, card))

	cards, err := store.ListCards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	require.Len(t, cards[0].Events, 2)
	// Events attach sorted by date.
	assert.Equal(t, core.PaymentDue, cards[0].Events[0].Kind)
	assert.Equal(t, core.StatementClose, cards[0].Events[1].Kind)
}

func TestInsertCards_Batch(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	batch := []core.CardAccount{
		testCard("first", base),
		testCard("second", base.Add(time.Hour)),
	}
	id := batch[0].ID
	batch[0].Events = []core.BillingEvent{{
		ID:        uuid.New(),
		CardID:    &id,
		Date:      time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Kind:      core.StatementClose,
		CreatedAt: base,
		UpdatedAt: base,
	}}
	require.NoError(t, store.InsertCards(ctx, batch))

	cards, err := store.ListCards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "second", cards[0].Name)
	assert.Len(t, cards[1].Events, 1)
}

func TestInsertCards_AllOrNothing(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first := testCard("first", base)
	dupe := testCard("dupe", base.Add(time.Hour))
	dupe.ID = first.ID // primary key collision on the second insert

	err := store.InsertCards(ctx, []core.CardAccount{first, dupe})
	require.Error(t, err)

	cards, listErr := store.ListCards(ctx)
	require.NoError(t, listErr)
	assert.Empty(t, cards, "a failed batch must roll back every card")
}

func TestDeleteCard_DetachesEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	card := testCard("doomed", now)
	require.NoError(t, store.InsertCard(ctx, card))

	id := card.ID
	event := core.BillingEvent{
		ID:        uuid.New(),
		CardID:    &id,
		Date:      time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Kind:      core.CustomNote,
		Note:      "call the bank",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.InsertEvent(ctx, event))

	require.NoError(t, store.DeleteCard(ctx, card.ID))

	cards, err := store.ListCards(ctx)
	require.NoError(t, err)
	assert.Empty(t, cards)

	events, err := store.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ID, events[0].ID)
	assert.Nil(t, events[0].CardID, "event must be detached, not deleted")
	assert.Equal(t, "call the bank", events[0].Note)
}

func TestUpdateCard(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	card := testCard("before", now)
	require.NoError(t, store.InsertCard(ctx, card))

	card.Name = "after"
	card.DueDay = 21
	card.UpdatedAt = now.Add(time.Hour)
	require.NoError(t, store.UpdateCard(ctx, card))

	cards, err := store.ListCards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "after", cards[0].Name)
	assert.Equal(t, 21, cards[0].DueDay)
	assert.True(t, cards[0].UpdatedAt.Equal(now.Add(time.Hour)))
}

func TestUpdateCard_NotFound(t *testing.T) {
	store := openTestStore(t)
	err := store.UpdateCard(context.Background(), testCard("ghost", time.Now()))
	assert.ErrorContains(t, err, "not found")
}

func TestDeleteCard_NotFound(t *testing.T) {
	store := openTestStore(t)
	err := store.DeleteCard(context.Background(), uuid.New())
	assert.ErrorContains(t, err, "not found")
}

func TestEventLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	event := core.BillingEvent{
		ID:        uuid.New(),
		Date:      time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC),
		Kind:      core.CustomNote,
		Note:      "original",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.InsertEvent(ctx, event))

	event.Note = "updated"
	event.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, store.UpdateEvent(ctx, event))

	events, err := store.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "updated", events[0].Note)
	assert.Nil(t, events[0].CardID)

	require.NoError(t, store.DeleteEvent(ctx, event.ID))
	events, err = store.ListEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestUpdateEvent_NotFound(t *testing.T) {
	store := openTestStore(t)
	err := store.UpdateEvent(context.Background(), core.BillingEvent{
		ID:   uuid.New(),
		Date: time.Now(),
		Kind: core.CustomNote,
	})
	assert.ErrorContains(t, err, "not found")
}

func TestFlags(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	v, err := store.Bool(ctx, "has_seeded")
	require.NoError(t, err)
	assert.False(t, v, "unknown flag reads as false")

	require.NoError(t, store.SetBool(ctx, "has_seeded", true))
	v, err = store.Bool(ctx, "has_seeded")
	require.NoError(t, err)
	assert.True(t, v)

	require.NoError(t, store.SetBool(ctx, "has_seeded", false))
	v, err = store.Bool(ctx, "has_seeded")
	require.NoError(t, err)
	assert.False(t, v)
}

func TestOpen_RunsMigrationsIdempotently(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening must not fail on already-applied migrations.
	store, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}
