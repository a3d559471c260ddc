package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/queue"
	"github.com/iliyamo/library-service/internal/repository"
)

// maxPenalty is the largest value DECIMAL(10,2) holds.
var maxPenalty = decimal.RequireFromString("99999999.99")

// PenaltyLedger is the monetary bookkeeping.  It never touches loans or
// copies.
type PenaltyLedger struct{ base }

func NewPenaltyLedger(d Deps) *PenaltyLedger { return &PenaltyLedger{base: newBase(d)} }

type NewPenalty struct {
	UserID uint64
	LoanID *uint64
	Amount decimal.Decimal
	Reason string
}

// CreatePenalty issues an OPEN penalty.  The optional loan must belong to
// the same user.
func (s *PenaltyLedger) CreatePenalty(ctx context.Context, in NewPenalty) (model.Penalty, error) {
	amount := in.Amount.Round(2)
	if !amount.IsPositive() {
		return model.Penalty{}, invalid("amount must be greater than zero")
	}
	if amount.GreaterThan(maxPenalty) {
		return model.Penalty{}, invalid("amount must not exceed %s", maxPenalty.StringFixed(2))
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return model.Penalty{}, invalid("reason is required")
	}

	var out model.Penalty
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		if _, err := tx.Users().GetByID(ctx, in.UserID); err != nil {
			return classify(err, entity("user", in.UserID))
		}
		// A penalty may cite a loan, but only one of the same user's.
		if in.LoanID != nil {
			l, err := tx.Loans().GetByID(ctx, *in.LoanID)
			if err != nil {
				return classify(err, entity("loan", *in.LoanID))
			}
			if l.UserID != in.UserID {
				return invalid("loan %d does not belong to user %d", l.ID, in.UserID)
			}
		}
		out = model.Penalty{
			UserID:    in.UserID,
			LoanID:    in.LoanID,
			Amount:    amount,
			Reason:    reason,
			Status:    model.PenaltyOpen,
			CreatedAt: s.now(),
		}
		return tx.Penalties().Create(ctx, &out)
	})
	if err != nil {
		return model.Penalty{}, err
	}
	s.metrics.PenaltyCreated()
	ev := s.event(queue.PenaltyCreated)
	ev.UserID, ev.PenaltyID = out.UserID, out.ID
	if out.LoanID != nil {
		ev.LoanID = *out.LoanID
	}
	ev.Detail = out.Amount.StringFixed(2) + " " + out.Reason
	s.publish(ctx, ev)
	return out, nil
}

// MarkPaid settles a penalty.  Paying a PAID penalty returns it unchanged.
func (s *PenaltyLedger) MarkPaid(ctx context.Context, id uint64) (model.Penalty, error) {
	var (
		out     model.Penalty
		changed bool
	)
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		p, err := tx.Penalties().GetByIDForUpdate(ctx, id)
		if err != nil {
			return classify(err, entity("penalty", id))
		}
		if p.Status == model.PenaltyPaid {
			out = p
			return nil
		}
		now := s.now()
		p.Status = model.PenaltyPaid
		p.ResolvedAt = &now
		if err := tx.Penalties().Update(ctx, p); err != nil {
			return err
		}
		out, changed = p, true
		return nil
	})
	if err != nil {
		return model.Penalty{}, err
	}
	if changed {
		ev := s.event(queue.PenaltyPaid)
		ev.UserID, ev.PenaltyID = out.UserID, out.ID
		s.publish(ctx, ev)
	}
	return out, nil
}

func (s *PenaltyLedger) ListPenalties(ctx context.Context, f repository.PenaltyFilter, p repository.PageRequest) (Page[model.Penalty], error) {
	f.Status = strings.ToUpper(strings.TrimSpace(f.Status))
	if f.Status != "" && f.Status != model.PenaltyOpen && f.Status != model.PenaltyPaid {
		return Page[model.Penalty]{}, invalid("unknown penalty status %q", f.Status)
	}
	items, total, err := s.store.Penalties().List(ctx, f, p)
	if err != nil {
		return Page[model.Penalty]{}, err
	}
	return newPage(items, total, p), nil
}
