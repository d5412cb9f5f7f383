// Package worker scans the ledger and publishes due-date reminders for cards
// whose next cycle date falls within the lead window.
package worker

import (
	"context"
	"time"

	"cardwise/internal/amqp"
	"cardwise/internal/core"
	"cardwise/internal/log"
)

// Publisher sends reminder messages downstream.
type Publisher interface {
	PublishReminder(ctx context.Context, msg *amqp.ReminderMessage) error
}

// CardSource is the ledger surface the worker needs.
type CardSource interface {
	Refresh(ctx context.Context)
	Cards() []core.CardAccount
}

type ReminderWorker struct {
	cards     CardSource
	publisher Publisher
	leadDays  int
	interval  time.Duration
	now       func() time.Time
	logger    *log.Logger
}

func NewReminderWorker(cards CardSource, publisher Publisher, leadDays int, interval time.Duration, logger *log.Logger) *ReminderWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ReminderWorker{
		cards:     cards,
		publisher: publisher,
		leadDays:  leadDays,
		interval:  interval,
		now:       time.Now,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// Run scans immediately, then on every tick until ctx is cancelled.
func (w *ReminderWorker) Run(ctx context.Context) error {
	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce refreshes the ledger and publishes a reminder for every card whose
// statement close or payment due date is within the lead window. Publish
// failures are logged per card; the scan continues.
func (w *ReminderWorker) RunOnce(ctx context.Context) {
	w.cards.Refresh(ctx)
	now := w.now()

	published := 0
	for _, card := range w.cards.Cards() {
		if days := card.DaysUntilStatementClose(now); days <= w.leadDays {
			if w.publish(ctx, card, core.StatementClose, card.NextStatementClose(now), days) {
				published++
			}
		}
		if days := card.DaysUntilDue(now); days <= w.leadDays {
			if w.publish(ctx, card, core.PaymentDue, card.NextDueDate(now), days) {
				published++
			}
		}
	}

	w.logger.InfoContext(ctx, "Reminder scan completed",
		log.FieldOperation, log.OpPublish, "published", published)
}

func (w *ReminderWorker) publish(ctx context.Context, card core.CardAccount, kind core.EventKind, date time.Time, daysLeft int) bool {
	msg := amqp.NewReminderMessage(card.ID, card.DisplayName(), string(kind), date, daysLeft)
	if err := w.publisher.PublishReminder(ctx, msg); err != nil {
		w.logger.ErrorContext(ctx, "Failed to publish reminder",
			log.FieldCardID, card.ID,
			log.FieldEventKind, kind,
			log.FieldError, err)
		return false
	}
	return true
}
