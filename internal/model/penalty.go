package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Penalty states.
const (
	PenaltyOpen = "OPEN"
	PenaltyPaid = "PAID"
)

// Penalty is a monetary charge against a user, optionally tied to a loan.
type Penalty struct {
	ID         uint64          // penalty.id
	UserID     uint64          // penalty.user_id
	LoanID     *uint64         // penalty.loan_id (nullable)
	Amount     decimal.Decimal // penalty.amount DECIMAL(10,2)
	Reason     string          // penalty.reason
	Status     string          // penalty.status
	CreatedAt  time.Time       // penalty.created_at
	ResolvedAt *time.Time      // penalty.resolved_at (nullable)
}
