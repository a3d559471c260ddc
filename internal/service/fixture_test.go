package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/observability"
	"github.com/iliyamo/library-service/internal/queue"
	"github.com/iliyamo/library-service/internal/repository/memory"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *clock) Advance(d time.Duration) { c.Set(c.Now().Add(d)) }

type recorder struct {
	mu     sync.Mutex
	events []queue.Event
}

func (r *recorder) Publish(_ context.Context, ev queue.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	ctx     context.Context
	store   *memory.Store
	clock   *clock
	events  *recorder
	metrics *observability.Metrics

	copies       *CopyInventory
	reservations *ReservationLedger
	loans        *LoanLedger
	penalties    *PenaltyLedger
	stats        *StatsAggregator
	catalog      *Catalog
	auth         *AuthService
	users        *UserAdmin

	seq int
}

var epoch = time.Date(2024, time.January, 10, 9, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:     context.Background(),
		store:   memory.NewStore(),
		clock:   &clock{t: epoch},
		events:  &recorder{},
		metrics: observability.NewMetrics(),
	}
	f.store.Now = f.clock.Now
	d := Deps{Store: f.store, Events: f.events, Metrics: f.metrics, Logger: observability.Discard(), Now: f.clock.Now}
	policy := DefaultLoanPolicy()
	f.copies = NewCopyInventory(d)
	f.reservations = NewReservationLedger(d, policy)
	f.loans = NewLoanLedger(d, policy, f.copies, f.reservations)
	f.penalties = NewPenaltyLedger(d)
	f.stats = NewStatsAggregator(d)
	f.catalog = NewCatalog(d, f.copies)
	f.auth = NewAuthService(d, AuthConfig{JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost})
	f.users = NewUserAdmin(d, bcrypt.MinCost)
	return f
}

// reader registers a new READER and returns it.
func (f *fixture) reader(t *testing.T) model.User {
	t.Helper()
	f.seq++
	u, err := f.auth.Register(f.ctx, RegisterInput{
		Email:     fmt.Sprintf("reader%d@library.test", f.seq),
		Password:  "secret-pw",
		FirstName: "Ada",
		LastName:  fmt.Sprintf("Reader%d", f.seq),
	})
	require.NoError(t, err)
	return u
}

// book creates an active book with n copies.
func (f *fixture) book(t *testing.T, n int) model.Book {
	t.Helper()
	f.seq++
	b, err := f.catalog.CreateBook(f.ctx, BookInput{
		Title:         fmt.Sprintf("Book %d", f.seq),
		InitialCopies: &n,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) copyStatus(t *testing.T, id uint64) string {
	t.Helper()
	c, err := f.store.Copies().GetByID(f.ctx, id)
	require.NoError(t, err)
	return c.Status
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
