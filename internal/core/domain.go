package core

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	StatementClose EventKind = "statement_close"
	PaymentDue     EventKind = "payment_due"
	CustomNote     EventKind = "custom_note"
)

type (
	// EventKind tags a billing event. System-generated kinds (statement
	// close, payment due) are distinguished from free-form notes for
	// display purposes only.
	EventKind string

	// CardAccount is a tracked credit card with its recurring cycle days
	// and owned billing events. Event order in Events is not meaningful;
	// consumers sort by date.
	CardAccount struct {
		ID                uuid.UUID      `json:"id"`
		Name              string         `json:"name"`
		Issuer            string         `json:"issuer"`
		Network           string         `json:"network"`
		CurrencyCode      string         `json:"currency_code"`
		Last4             string         `json:"last4"`
		StatementCloseDay int            `json:"statement_close_day"`
		DueDay            int            `json:"due_day"`
		BillingWindowDays int            `json:"billing_window_days"`
		Notes             string         `json:"notes"`
		CreatedAt         time.Time      `json:"created_at"`
		UpdatedAt         time.Time      `json:"updated_at"`
		Events            []BillingEvent `json:"events,omitempty"`
	}

	// BillingEvent is a dated annotation on a card. CardID is a back
	// reference, not an owning pointer; a nil CardID means the event is a
	// standalone note.
	BillingEvent struct {
		ID        uuid.UUID  `json:"id"`
		CardID    *uuid.UUID `json:"card_id,omitempty"`
		Date      time.Time  `json:"date"`
		Kind      EventKind  `json:"kind"`
		Note      string     `json:"note"`
		CreatedAt time.Time  `json:"created_at"`
		UpdatedAt time.Time  `json:"updated_at"`
	}
)

var (
	ErrInvalidCycleDay      = errors.New("cycle day out of range")
	ErrEmptyIssuer          = errors.New("empty issuer")
	ErrInvalidLast4         = errors.New("last four digits must be 4 digits")
	ErrInvalidCurrency      = errors.New("invalid currency code")
	ErrInvalidBillingWindow = errors.New("invalid billing window length")
	ErrInvalidEventKind     = errors.New("invalid event kind")
	ErrEmptyEventDate       = errors.New("event date cannot be zero")
)

func (k EventKind) Valid() bool {
	switch k {
	case StatementClose, PaymentDue, CustomNote:
		return true
	}
	return false
}

// SystemGenerated reports whether the kind is a cycle marker rather than a
// free-form note.
func (k EventKind) SystemGenerated() bool {
	return k == StatementClose || k == PaymentDue
}

func (k EventKind) DisplayName() string {
	switch k {
	case StatementClose:
		return "Statement Close"
	case PaymentDue:
		return "Payment Due"
	default:
		return "Note"
	}
}

// DisplayName falls back to the issuer when the card has no name.
func (c CardAccount) DisplayName() string {
	if strings.TrimSpace(c.Name) == "" {
		return c.Issuer
	}
	return c.Name
}

// MaskedNumber renders the card number for display, e.g. "•••• 4831".
func (c CardAccount) MaskedNumber() string {
	return "•••• " + c.Last4
}

// NextStatementClose projects the next statement-close date from ref.
func (c CardAccount) NextStatementClose(ref time.Time) time.Time {
	return NextOccurrence(c.StatementCloseDay, ref)
}

// NextDueDate projects the next payment-due date from ref.
func (c CardAccount) NextDueDate(ref time.Time) time.Time {
	return NextOccurrence(c.DueDay, ref)
}

func (c CardAccount) DaysUntilStatementClose(ref time.Time) int {
	return DaysUntil(c.StatementCloseDay, ref)
}

func (c CardAccount) DaysUntilDue(ref time.Time) int {
	return DaysUntil(c.DueDay, ref)
}

// Validate checks the descriptive fields. Cycle days are deliberately not
// validated here: they clamp at projection time, and strict rejection is an
// opt-in mode on the ledger (see ValidateCycleDay).
func (c CardAccount) Validate() error {
	if strings.TrimSpace(c.Issuer) == "" {
		return ErrEmptyIssuer
	}
	if len(c.Last4) != 4 {
		return ErrInvalidLast4
	}
	for _, r := range c.Last4 {
		if !unicode.IsDigit(r) {
			return ErrInvalidLast4
		}
	}
	if len(c.CurrencyCode) != 3 {
		return ErrInvalidCurrency
	}
	for _, r := range c.CurrencyCode {
		if r < 'A' || r > 'Z' {
			return ErrInvalidCurrency
		}
	}
	if c.BillingWindowDays < 1 || c.BillingWindowDays > 62 {
		return ErrInvalidBillingWindow
	}
	if len(c.Notes) > 500 {
		return errors.New("notes too long (max 500 characters)")
	}
	return nil
}

func (e BillingEvent) SystemGenerated() bool {
	return e.Kind.SystemGenerated()
}

// Day returns the event's day of month.
func (e BillingEvent) Day() int {
	return e.Date.Day()
}

func (e BillingEvent) Validate() error {
	if !e.Kind.Valid() {
		return ErrInvalidEventKind
	}
	if e.Date.IsZero() {
		return ErrEmptyEventDate
	}
	return nil
}

// ClampCycleDay forces a day-of-month target into [1, 31].
func ClampCycleDay(day int) int {
	if day < 1 {
		return 1
	}
	if day > 31 {
		return 31
	}
	return day
}

// ValidateCycleDay rejects day-of-month targets outside [1, 31]. Used only
// when strict cycle-day checking is enabled; the default contract clamps.
func ValidateCycleDay(day int) error {
	if day < 1 || day > 31 {
		return ErrInvalidCycleDay
	}
	return nil
}
