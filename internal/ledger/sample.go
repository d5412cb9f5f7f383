package ledger

import (
	"time"

	"github.com/google/uuid"

	"cardwise/internal/core"
)

// SampleCards is the default seed: two starter cards with a pair of cycle
// events each, anchored to the seeding day.
func SampleCards(now time.Time) []core.CardAccount {
	day := core.DayStart(now)

	travel := core.CardAccount{
		ID:                uuid.New(),
		Name:              "Flagship Travel",
		Issuer:            "Voyage Bank",
		Network:           "Visa Infinite",
		CurrencyCode:      "USD",
		Last4:             "4831",
		StatementCloseDay: 18,
		DueDay:            13,
		BillingWindowDays: 30,
		Notes:             "Best for flights + hotels",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	travel.Events = []core.BillingEvent{
		newSampleEvent(travel.ID, day, core.StatementClose, "Cycle closes for October", now),
		newSampleEvent(travel.ID, day.AddDate(0, 0, 25), core.PaymentDue, "Payment due", now),
	}

	cashback := core.CardAccount{
		ID:                uuid.New(),
		Name:              "Metro Rewards",
		Issuer:            "Metro Credit Union",
		Network:           "Mastercard World",
		CurrencyCode:      "CAD",
		Last4:             "9024",
		StatementCloseDay: 7,
		DueDay:            2,
		BillingWindowDays: 31,
		Notes:             "Groceries & subscriptions",
		CreatedAt:         now.Add(time.Millisecond),
		UpdatedAt:         now.Add(time.Millisecond),
	}
	cashback.Events = []core.BillingEvent{
		newSampleEvent(cashback.ID, day.AddDate(0, 0, 5), core.StatementClose, "Statement cycle ends", now),
		newSampleEvent(cashback.ID, day.AddDate(0, 0, 28), core.PaymentDue, "Due date reminder", now),
	}

	return []core.CardAccount{travel, cashback}
}

func newSampleEvent(cardID uuid.UUID, date time.Time, kind core.EventKind, note string, now time.Time) core.BillingEvent {
	id := cardID
	return core.BillingEvent{
		ID:        uuid.New(),
		CardID:    &id,
		Date:      date,
		Kind:      kind,
		Note:      note,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
