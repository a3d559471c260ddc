// Package service holds the library's business rules: the loan state
// machine, copy accounting, reservations, penalties, statistics, accounts
// and the catalog.  Every mutating operation runs inside one
// repository.Store transaction and publishes its event after commit.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/observability"
	"github.com/iliyamo/library-service/internal/queue"
	"github.com/iliyamo/library-service/internal/repository"
)

// EventPublisher hands domain events to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// Deps are the collaborators shared by every service.  Zero-valued optional
// fields get defaults: no-op events, the default logger and time.Now.
type Deps struct {
	Store   repository.Store
	Events  EventPublisher
	Metrics *observability.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

type base struct {
	store   repository.Store
	events  EventPublisher
	metrics *observability.Metrics
	logger  *slog.Logger
	clock   func() time.Time
}

func newBase(d Deps) base {
	b := base{store: d.Store, events: d.Events, metrics: d.Metrics, logger: d.Logger, clock: d.Now}
	if b.events == nil {
		b.events = queue.NopPublisher{}
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.clock == nil {
		b.clock = time.Now
	}
	return b
}

// now is truncated to whole seconds to match DATETIME precision, so values
// read back from MySQL compare equal to the ones written.
func (b base) now() time.Time { return b.clock().UTC().Truncate(time.Second) }

// publish is best effort: the state change is already committed.
func (b base) publish(ctx context.Context, ev queue.Event) {
	err := b.events.Publish(ctx, ev)
	b.metrics.EventPublished(err == nil)
	if err != nil {
		b.logger.Warn("event publish failed", "type", ev.Type, "id", ev.ID, "err", err)
	}
}

func (b base) event(typ string) queue.Event { return queue.NewEvent(typ, b.now()) }

// Actor is the authenticated caller.
type Actor struct {
	UserID uint64
	Role   string
}

func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// Page is one slice of a paginated listing.
type Page[T any] struct {
	Items []T
	Page  int
	Size  int
	Total int64
}

func (p Page[T]) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Size) - 1) / int64(p.Size))
}

func newPage[T any](items []T, total int64, req repository.PageRequest) Page[T] {
	req = req.Normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Page: req.Page, Size: req.Size, Total: total}
}

func entity(kind string, id uint64) string { return fmt.Sprintf("%s %d", kind, id) }

// checkBorrower rejects accounts that may no longer borrow or reserve.  An
// access token issued before a block or delete stays valid until it
// expires, so the status is re-checked against the stored row.
func checkBorrower(u model.User, now time.Time) error {
	if u.Status == model.UserDeleted {
		return notFound("user %d not found", u.ID)
	}
	if !u.CanSignIn(now) {
		return forbidden("account is blocked")
	}
	return nil
}
