// Package memory is an in-process implementation of the repository
// contracts.  It backs the service and handler tests and lets the server
// run without MySQL (STORE_DRIVER=memory).  A transaction holds the store
// lock for its whole duration and restores a snapshot on error, which gives
// the same all-or-nothing behaviour as the MySQL store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/repository"
)

type tokenRow struct {
	userID    uint64
	expiresAt time.Time
	revoked   bool
}

// data is the full store state.  Every value is kept by value so clone is
// a cheap map copy.
type data struct {
	seq          map[string]uint64
	users        map[uint64]model.User
	tokens       map[string]tokenRow
	authors      map[uint64]model.Author
	categories   map[uint64]model.Category
	books        map[uint64]model.Book
	bookAuthors  map[uint64][]uint64
	copies       map[uint64]model.Copy
	loans        map[uint64]model.Loan
	reservations map[uint64]model.Reservation
	penalties    map[uint64]model.Penalty
}

func newData() *data {
	return &data{
		seq:          map[string]uint64{},
		users:        map[uint64]model.User{},
		tokens:       map[string]tokenRow{},
		authors:      map[uint64]model.Author{},
		categories:   map[uint64]model.Category{},
		books:        map[uint64]model.Book{},
		bookAuthors:  map[uint64][]uint64{},
		copies:       map[uint64]model.Copy{},
		loans:        map[uint64]model.Loan{},
		reservations: map[uint64]model.Reservation{},
		penalties:    map[uint64]model.Penalty{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *data) clone() *data {
	ba := make(map[uint64][]uint64, len(d.bookAuthors))
	for k, v := range d.bookAuthors {
		ba[k] = append([]uint64(nil), v...)
	}
	return &data{
		seq:          cloneMap(d.seq),
		users:        cloneMap(d.users),
		tokens:       cloneMap(d.tokens),
		authors:      cloneMap(d.authors),
		categories:   cloneMap(d.categories),
		books:        cloneMap(d.books),
		bookAuthors:  ba,
		copies:       cloneMap(d.copies),
		loans:        cloneMap(d.loans),
		reservations: cloneMap(d.reservations),
		penalties:    cloneMap(d.penalties),
	}
}

func (d *data) next(table string) uint64 {
	d.seq[table]++
	return d.seq[table]
}

// Store is the in-memory repository.Store.
type Store struct {
	mu sync.Mutex
	d  *data
	// Now stamps refresh-token validation; defaults to time.Now.
	Now func() time.Time
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store { return &Store{d: newData()} }

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// view is a Repos bound either to the locked store (inside WithTx) or to
// the store with per-call locking.
type view struct {
	s    *Store
	inTx bool
}

// do runs fn against the current state, taking the lock unless the caller
// already holds it through WithTx.
func (v view) do(fn func(d *data) error) error {
	if v.inTx {
		return fn(v.s.d)
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return fn(v.s.d)
}

func (s *Store) root() view { return view{s: s} }

func (s *Store) Users() repository.UserRepository               { return userRepo{s.root()} }
func (s *Store) Tokens() repository.TokenRepository             { return tokenRepo{s.root()} }
func (s *Store) Authors() repository.AuthorRepository           { return authorRepo{s.root()} }
func (s *Store) Categories() repository.CategoryRepository      { return categoryRepo{s.root()} }
func (s *Store) Books() repository.BookRepository               { return bookRepo{s.root()} }
func (s *Store) Copies() repository.CopyRepository              { return copyRepo{s.root()} }
func (s *Store) Loans() repository.LoanRepository               { return loanRepo{s.root()} }
func (s *Store) Reservations() repository.ReservationRepository { return reservationRepo{s.root()} }
func (s *Store) Penalties() repository.PenaltyRepository        { return penaltyRepo{s.root()} }
func (s *Store) Stats() repository.StatsRepository              { return statsRepo{s.root()} }

func (s *Store) Ping(context.Context) error { return nil }

// WithTx serializes fn against every other store access and rolls the
// state back when fn fails or panics.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Repos) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d.clone()
	committed := false
	defer func() {
		if !committed {
			s.d = snapshot
		}
	}()

	if err := fn(txRepos{view{s: s, inTx: true}}); err != nil {
		return err
	}
	committed = true
	return nil
}

type txRepos struct{ v view }

func (t txRepos) Users() repository.UserRepository               { return userRepo{t.v} }
func (t txRepos) Tokens() repository.TokenRepository             { return tokenRepo{t.v} }
func (t txRepos) Authors() repository.AuthorRepository           { return authorRepo{t.v} }
func (t txRepos) Categories() repository.CategoryRepository      { return categoryRepo{t.v} }
func (t txRepos) Books() repository.BookRepository               { return bookRepo{t.v} }
func (t txRepos) Copies() repository.CopyRepository              { return copyRepo{t.v} }
func (t txRepos) Loans() repository.LoanRepository               { return loanRepo{t.v} }
func (t txRepos) Reservations() repository.ReservationRepository { return reservationRepo{t.v} }
func (t txRepos) Penalties() repository.PenaltyRepository        { return penaltyRepo{t.v} }

// page slices items for p after sorting by less.
func page[T any](items []T, p repository.PageRequest, less func(a, b T) bool) ([]T, int64) {
	p = p.Normalize()
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
	total := int64(len(items))
	start := p.Offset()
	if start >= len(items) {
		return nil, total
	}
	end := start + p.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], total
}

// contains is a case-insensitive substring match, like LIKE '%s%' under
// MySQL's default collation.
func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
