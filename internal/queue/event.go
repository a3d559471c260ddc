// Package queue carries library domain events over RabbitMQ.
package queue

import (
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// Event types published after a mutating operation commits.
const (
	LoanCreated          = "loan.created"
	LoanExtended         = "loan.extended"
	LoanReturned         = "loan.returned"
	ReservationCreated   = "reservation.created"
	ReservationCancelled = "reservation.cancelled"
	ReservationFulfilled = "reservation.fulfilled"
	PenaltyCreated       = "penalty.created"
	PenaltyPaid          = "penalty.paid"
)

var codec = jsoniter.ConfigFastest

// Event is the single envelope for every library event.  Only the ids that
// apply to Type are set.
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	OccurredAt    time.Time `json:"occurred_at"`
	UserID        uint64    `json:"user_id,omitempty"`
	BookID        uint64    `json:"book_id,omitempty"`
	LoanID        uint64    `json:"loan_id,omitempty"`
	ReservationID uint64    `json:"reservation_id,omitempty"`
	PenaltyID     uint64    `json:"penalty_id,omitempty"`
	Detail        string    `json:"detail,omitempty"`
}

// NewEvent stamps a fresh id and the occurrence time.
func NewEvent(typ string, at time.Time) Event {
	return Event{ID: uuid.NewString(), Type: typ, OccurredAt: at.UTC()}
}

func (e Event) Marshal() ([]byte, error) { return codec.Marshal(e) }

func UnmarshalEvent(body []byte) (Event, error) {
	var e Event
	err := codec.Unmarshal(body, &e)
	return e, err
}
