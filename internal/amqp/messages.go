package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ReminderMessage tells a downstream notifier that a card's cycle date is
// coming up. Kind mirrors the billing event kinds: statement_close or
// payment_due.
type ReminderMessage struct {
	CardID    uuid.UUID `json:"card_id"`
	CardName  string    `json:"card_name"`
	Kind      string    `json:"kind"`
	Date      time.Time `json:"date"`
	DaysLeft  int       `json:"days_left"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReminderMessage(cardID uuid.UUID, cardName, kind string, date time.Time, daysLeft int) *ReminderMessage {
	return &ReminderMessage{
		CardID:    cardID,
		CardName:  cardName,
		Kind:      kind,
		Date:      date,
		DaysLeft:  daysLeft,
		Timestamp: time.Now(),
	}
}

func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
