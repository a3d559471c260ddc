package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/library-service/internal/handler"
	"github.com/iliyamo/library-service/internal/observability"
	"github.com/iliyamo/library-service/internal/repository/memory"
	"github.com/iliyamo/library-service/internal/service"
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

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var epoch = time.Date(2024, time.January, 10, 9, 30, 0, 0, time.UTC)

type testAPI struct {
	t     *testing.T
	e     *echo.Echo
	clock *clock
	admin string
	seq   int
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	clk := &clock{t: epoch}
	store := memory.NewStore()
	store.Now = clk.Now
	d := service.Deps{Store: store, Logger: observability.Discard(), Now: clk.Now}
	policy := service.DefaultLoanPolicy()
	copies := service.NewCopyInventory(d)
	reservations := service.NewReservationLedger(d, policy)
	loans := service.NewLoanLedger(d, policy, copies, reservations)
	catalog := service.NewCatalog(d, copies)
	auth := service.NewAuthService(d, service.AuthConfig{
		JWTSecret:      "router-secret",
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		BcryptCost:     bcrypt.MinCost,
	})

	_, _, err := auth.EnsureAdmin(context.Background(), "admin@library.test", "admin-pw")
	require.NoError(t, err)

	e := New(Handlers{
		Auth:         handler.NewAuthHandler(auth),
		Catalog:      handler.NewCatalogHandler(catalog, copies),
		Loans:        handler.NewLoanHandler(loans),
		Reservations: handler.NewReservationHandler(reservations),
		Penalties:    handler.NewPenaltyHandler(service.NewPenaltyLedger(d)),
		Users:        handler.NewUserHandler(service.NewUserAdmin(d, bcrypt.MinCost)),
		Stats:        handler.NewStatsHandler(service.NewStatsAggregator(d)),
	}, Options{
		JWTSecret: "router-secret",
		Store:     store,
		Logger:    observability.Discard(),
		Metrics:   observability.NewMetrics(),
	})

	a := &testAPI{t: t, e: e, clock: clk}
	a.admin = a.login("admin@library.test", "admin-pw").Access.Token
	return a
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type session struct {
	User struct {
		ID    uint64 `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
	Access struct {
		Token string `json:"token"`
	} `json:"access"`
	Refresh struct {
		Token string `json:"token"`
	} `json:"refresh"`
}

type page[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

type book struct {
	ID              uint64 `json:"id"`
	Title           string `json:"title"`
	TotalCopies     int64  `json:"totalCopies"`
	AvailableCopies int64  `json:"availableCopies"`
	IsActive        bool   `json:"isActive"`
	Authors         []struct {
		FullName string `json:"fullName"`
	} `json:"authors"`
	Category *struct {
		Name string `json:"name"`
	} `json:"category"`
}

type loan struct {
	ID              uint64    `json:"id"`
	UserID          uint64    `json:"userId"`
	BookID          uint64    `json:"bookId"`
	BookCopyID      uint64    `json:"bookCopyId"`
	DueDate         time.Time `json:"dueDate"`
	Status          string    `json:"status"`
	Overdue         bool      `json:"overdue"`
	ExtensionsCount int       `json:"extensionsCount"`
}

type reservation struct {
	ID     uint64 `json:"id"`
	BookID uint64 `json:"bookId"`
	Status string `json:"status"`
}

type penalty struct {
	ID     uint64          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Status string          `json:"status"`
}

func (a *testAPI) login(email, password string) session {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/auth/login", "", echo.Map{"email": email, "password": password})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[session](a.t, rec)
}

// reader registers a new reader and returns its session.
func (a *testAPI) reader() session {
	a.t.Helper()
	a.seq++
	rec := a.do(http.MethodPost, "/api/auth/register", "", echo.Map{
		"email":     fmt.Sprintf("reader%d@library.test", a.seq),
		"password":  "secret-pw",
		"firstName": "Ada",
		"lastName":  fmt.Sprintf("Reader%d", a.seq),
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[session](a.t, rec)
}

func (a *testAPI) book(title string, copies int) book {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/admin/books", a.admin, echo.Map{"title": title, "initialCopies": copies})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[book](a.t, rec)
}

func TestHealthAndMetrics(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = a.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `library_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestAuthEndpoints(t *testing.T) {
	a := newTestAPI(t)
	s := a.reader()
	assert.Equal(t, "READER", s.User.Role)
	assert.NotEmpty(t, s.Access.Token)
	assert.NotEmpty(t, s.Refresh.Token)

	t.Run("duplicate email", func(t *testing.T) {
		rec := a.do(http.MethodPost, "/api/auth/register", "", echo.Map{
			"email": s.User.Email, "password": "secret-pw", "firstName": "A", "lastName": "B",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("bad credentials", func(t *testing.T) {
		rec := a.do(http.MethodPost, "/api/auth/login", "", echo.Map{"email": s.User.Email, "password": "nope-nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"invalid credentials"}`, rec.Body.String())
	})

	t.Run("me", func(t *testing.T) {
		rec := a.do(http.MethodGet, "/api/auth/me", s.Access.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		me := decode[struct {
			Email string `json:"email"`
		}](t, rec)
		assert.Equal(t, s.User.Email, me.Email)
		assert.NotContains(t, rec.Body.String(), "password")

		rec = a.do(http.MethodGet, "/api/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("refresh rotates", func(t *testing.T) {
		rec := a.do(http.MethodPost, "/api/auth/refresh", "", echo.Map{"refreshToken": s.Refresh.Token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		next := decode[session](t, rec)
		assert.NotEqual(t, s.Refresh.Token, next.Refresh.Token)

		rec = a.do(http.MethodPost, "/api/auth/refresh", "", echo.Map{"refreshToken": s.Refresh.Token})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = a.do(http.MethodPost, "/api/auth/logout", "", echo.Map{"refreshToken": next.Refresh.Token})
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = a.do(http.MethodPost, "/api/auth/refresh", "", echo.Map{"refreshToken": next.Refresh.Token})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("change password", func(t *testing.T) {
		rec := a.do(http.MethodPatch, "/api/auth/change-password", s.Access.Token,
			echo.Map{"currentPassword": "wrong-pw", "newPassword": "another-pw"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = a.do(http.MethodPatch, "/api/auth/change-password", s.Access.Token,
			echo.Map{"currentPassword": "secret-pw", "newPassword": "another-pw"})
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		a.login(s.User.Email, "another-pw")
	})

	t.Run("profile", func(t *testing.T) {
		rec := a.do(http.MethodPut, "/api/me/profile", s.Access.Token, echo.Map{"firstName": "Grace", "lastName": "Hopper"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"firstName":"Grace"`)

		rec = a.do(http.MethodGet, "/api/me/profile", s.Access.Token, nil)
		assert.Contains(t, rec.Body.String(), `"lastName":"Hopper"`)
	})
}

func TestRoleEnforcement(t *testing.T) {
	a := newTestAPI(t)
	s := a.reader()

	rec := a.do(http.MethodGet, "/api/admin/users", s.Access.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodGet, "/api/admin/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodGet, "/api/me/loans", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodPost, "/api/admin/authors", a.admin, echo.Map{"firstName": "Ursula", "lastName": "Le Guin"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	author := decode[struct {
		ID uint64 `json:"id"`
	}](t, rec)

	rec = a.do(http.MethodPost, "/api/admin/categories", a.admin, echo.Map{"name": "Fiction"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cat := decode[struct {
		ID uint64 `json:"id"`
	}](t, rec)

	rec = a.do(http.MethodPost, "/api/admin/books", a.admin, echo.Map{
		"title":           "The Dispossessed",
		"isbn":            "978-0061054884",
		"publicationYear": 1974,
		"categoryId":      cat.ID,
		"authorIds":       []uint64{author.ID},
		"initialCopies":   2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	b := decode[book](t, rec)
	assert.Equal(t, int64(2), b.AvailableCopies)
	require.Len(t, b.Authors, 1)
	assert.Equal(t, "Ursula Le Guin", b.Authors[0].FullName)
	require.NotNil(t, b.Category)
	assert.Equal(t, "Fiction", b.Category.Name)

	a.book("Unrelated", 1)

	rec = a.do(http.MethodGet, "/api/books?author=guin", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[page[book]](t, rec)
	assert.Equal(t, int64(1), list.TotalElements)
	assert.Equal(t, 20, list.Size)
	require.Len(t, list.Content, 1)
	assert.Equal(t, b.ID, list.Content[0].ID)

	rec = a.do(http.MethodGet, "/api/books?size=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(http.MethodGet, "/api/books?categoryId=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/api/categories", "", nil)
	assert.JSONEq(t, fmt.Sprintf(`[{"id":%d,"name":"Fiction"}]`, cat.ID), rec.Body.String())

	rec = a.do(http.MethodGet, "/api/admin/books/"+fmt.Sprint(b.ID)+"/copies", a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	copies := decode[[]struct {
		ID            uint64 `json:"id"`
		InventoryCode string `json:"inventoryCode"`
		Status        string `json:"status"`
	}](t, rec)
	require.Len(t, copies, 2)
	assert.Equal(t, "AVAILABLE", copies[0].Status)

	rec = a.do(http.MethodPatch, fmt.Sprintf("/api/admin/copies/%d", copies[0].ID), a.admin, echo.Map{"status": "DAMAGED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = a.do(http.MethodPatch, fmt.Sprintf("/api/admin/copies/%d", copies[0].ID), a.admin, echo.Map{"status": "BORROWED"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodDelete, fmt.Sprintf("/api/admin/authors/%d", author.ID), a.admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodDelete, fmt.Sprintf("/api/admin/books/%d", b.ID), a.admin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(http.MethodGet, fmt.Sprintf("/api/books/%d", b.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = a.do(http.MethodGet, fmt.Sprintf("/api/admin/books/%d", b.ID), a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[book](t, rec).IsActive)

	rec = a.do(http.MethodGet, "/api/books/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBorrowExtendReturn(t *testing.T) {
	a := newTestAPI(t)
	s := a.reader()
	b := a.book("Dune", 1)

	rec := a.do(http.MethodPost, "/api/loans", s.Access.Token, echo.Map{"bookId": b.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	l := decode[loan](t, rec)
	assert.Equal(t, "ACTIVE", l.Status)
	assert.Equal(t, b.ID, l.BookID)
	assert.True(t, epoch.AddDate(0, 0, 30).Equal(l.DueDate))

	other := a.reader()
	rec = a.do(http.MethodPost, "/api/loans", other.Access.Token, echo.Map{"bookId": b.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodPost, fmt.Sprintf("/api/loans/%d/extend", l.ID), s.Access.Token, echo.Map{"additionalDays": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	l = decode[loan](t, rec)
	assert.Equal(t, 1, l.ExtensionsCount)
	assert.True(t, epoch.AddDate(0, 0, 33).Equal(l.DueDate))

	rec = a.do(http.MethodPost, fmt.Sprintf("/api/loans/%d/extend", l.ID), s.Access.Token, echo.Map{"additionalDays": 31})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, fmt.Sprintf("/api/loans/%d/return", l.ID), other.Access.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPost, fmt.Sprintf("/api/loans/%d/return", l.ID), s.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "RETURNED", decode[loan](t, rec).Status)

	rec = a.do(http.MethodPost, fmt.Sprintf("/api/loans/%d/return", l.ID), s.Access.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodGet, "/api/me/loans/history", s.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[page[loan]](t, rec).TotalElements)

	rec = a.do(http.MethodGet, "/api/me/loans?status=active", s.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decode[page[loan]](t, rec).TotalElements)

	rec = a.do(http.MethodGet, "/api/me/loans?status=bogus", s.Access.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReserveThenBorrow(t *testing.T) {
	a := newTestAPI(t)
	s := a.reader()
	b := a.book("Solaris", 0)

	rec := a.do(http.MethodPost, "/api/loans", s.Access.Token, echo.Map{"bookId": b.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodPost, "/api/reservations", s.Access.Token, echo.Map{"bookId": b.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[reservation](t, rec)
	assert.Equal(t, "ACTIVE", res.Status)

	rec = a.do(http.MethodPost, "/api/reservations", s.Access.Token, echo.Map{"bookId": b.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodPost, fmt.Sprintf("/api/admin/books/%d/copies", b.ID), a.admin, echo.Map{"count": 1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/api/loans", s.Access.Token, echo.Map{"bookId": b.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(http.MethodGet, "/api/me/reservations", s.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[page[reservation]](t, rec)
	require.Len(t, mine.Content, 1)
	assert.Equal(t, "FULFILLED", mine.Content[0].Status)

	rec = a.do(http.MethodDelete, fmt.Sprintf("/api/reservations/%d", res.ID), s.Access.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelReservation(t *testing.T) {
	a := newTestAPI(t)
	s := a.reader()
	other := a.reader()
	b := a.book("Ubik", 0)

	rec := a.do(http.MethodPost, "/api/reservations", s.Access.Token, echo.Map{"bookId": b.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	res := decode[reservation](t, rec)

	rec = a.do(http.MethodDelete, fmt.Sprintf("/api/reservations/%d", res.ID), other.Access.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodDelete, fmt.Sprintf("/api/admin/reservations/%d", res.ID), a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "CANCELLED", decode[reservation](t, rec).Status)

	rec = a.do(http.MethodGet, "/api/admin/reservations?status=CANCELLED", a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[page[reservation]](t, rec).TotalElements)
}

func TestOverdueAndPenalties(t *testing.T) {
	a := newTestAPI(t)
	s := a.reader()
	b := a.book("Neuromancer", 1)

	rec := a.do(http.MethodPost, "/api/loans", s.Access.Token, echo.Map{"bookId": b.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	l := decode[loan](t, rec)
	assert.False(t, l.Overdue)

	a.clock.Advance(31 * 24 * time.Hour)

	rec = a.do(http.MethodGet, "/api/admin/loans/overdue", a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	overdue := decode[page[loan]](t, rec)
	require.Len(t, overdue.Content, 1)
	assert.Equal(t, l.ID, overdue.Content[0].ID)
	assert.True(t, overdue.Content[0].Overdue)
	assert.Equal(t, "ACTIVE", overdue.Content[0].Status)

	rec = a.do(http.MethodPost, fmt.Sprintf("/api/loans/%d/extend", l.ID), s.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/api/admin/penalties", a.admin, echo.Map{
		"userId": s.User.ID, "loanId": l.ID, "amount": "2.50", "reason": "late return",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[penalty](t, rec)
	assert.True(t, decimal.RequireFromString("2.5").Equal(p.Amount))
	assert.Equal(t, "OPEN", p.Status)

	rec = a.do(http.MethodPost, "/api/admin/penalties", a.admin, echo.Map{
		"userId": s.User.ID, "amount": 0, "reason": "nothing",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/api/me/penalties", s.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[page[penalty]](t, rec).TotalElements)

	for i := 0; i < 2; i++ {
		rec = a.do(http.MethodPost, fmt.Sprintf("/api/admin/penalties/%d/paid", p.ID), a.admin, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "PAID", decode[penalty](t, rec).Status)
	}

	rec = a.do(http.MethodGet, "/api/admin/penalties?status=OPEN", a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decode[page[penalty]](t, rec).TotalElements)
}

func TestAdminLoans(t *testing.T) {
	a := newTestAPI(t)
	s := a.reader()
	b := a.book("Foundation", 2)

	rec := a.do(http.MethodGet, fmt.Sprintf("/api/admin/books/%d/copies", b.ID), a.admin, nil)
	copies := decode[[]struct {
		ID uint64 `json:"id"`
	}](t, rec)
	require.Len(t, copies, 2)

	rec = a.do(http.MethodPost, "/api/admin/loans", a.admin, echo.Map{
		"userId": s.User.ID, "bookCopyId": copies[1].ID, "dueDate": "2024-02-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	l := decode[loan](t, rec)
	assert.Equal(t, copies[1].ID, l.BookCopyID)
	assert.True(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).Equal(l.DueDate))

	rec = a.do(http.MethodPost, "/api/admin/loans", a.admin, echo.Map{"userId": s.User.ID, "bookCopyId": copies[1].ID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodGet, fmt.Sprintf("/api/admin/loans?userId=%d&from=2024-01-10&to=2024-01-10", s.User.ID), a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[page[loan]](t, rec).TotalElements)

	rec = a.do(http.MethodPut, fmt.Sprintf("/api/admin/loans/%d", l.ID), a.admin, echo.Map{"status": "LOST"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "LOST", decode[loan](t, rec).Status)

	rec = a.do(http.MethodGet, fmt.Sprintf("/api/admin/loans/%d", l.ID), a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodDelete, fmt.Sprintf("/api/admin/loans/%d", l.ID), a.admin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = a.do(http.MethodGet, fmt.Sprintf("/api/admin/loans/%d", l.ID), a.admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminUsers(t *testing.T) {
	a := newTestAPI(t)
	s := a.reader()
	path := fmt.Sprintf("/api/admin/users/%d", s.User.ID)

	rec := a.do(http.MethodGet, "/api/admin/users?role=READER", a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[page[struct {
		ID uint64 `json:"id"`
	}]](t, rec).TotalElements)

	rec = a.do(http.MethodPatch, path+"/status", a.admin, echo.Map{"status": "BLOCKED", "blockedReason": "unpaid"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"blockedReason":"unpaid"`)

	rec = a.do(http.MethodPost, "/api/auth/login", "", echo.Map{"email": s.User.Email, "password": "secret-pw"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"account is blocked"}`, rec.Body.String())

	// the access token issued before the block is still signed and unexpired
	b := a.book("Dune", 1)
	rec = a.do(http.MethodPost, "/api/loans", s.Access.Token, echo.Map{"bookId": b.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	rec = a.do(http.MethodPost, "/api/reservations", s.Access.Token, echo.Map{"bookId": b.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPatch, path+"/status", a.admin, echo.Map{"status": "ACTIVE"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "blockedReason")

	rec = a.do(http.MethodPost, path+"/reset-password", a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	temp := decode[struct {
		TemporaryPassword string `json:"temporaryPassword"`
	}](t, rec).TemporaryPassword
	require.NotEmpty(t, temp)
	a.login(s.User.Email, temp)

	rec = a.do(http.MethodPut, path+"/password", a.admin, echo.Map{"password": "brand-new-pw"})
	require.Equal(t, http.StatusNoContent, rec.Code)
	a.login(s.User.Email, "brand-new-pw")

	rec = a.do(http.MethodPut, path, a.admin, echo.Map{"role": "wizard"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodDelete, path, a.admin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(http.MethodGet, path, a.admin, nil)
	assert.Contains(t, rec.Body.String(), `"status":"DELETED"`)
}

func TestStatsEndpoints(t *testing.T) {
	a := newTestAPI(t)
	s := a.reader()
	b := a.book("Hyperion", 2)
	rec := a.do(http.MethodPost, "/api/loans", s.Access.Token, echo.Map{"bookId": b.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(http.MethodGet, "/api/admin/stats/summary?from=2024-01-01&to=2024-01-31", a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := decode[struct {
		From             string `json:"from"`
		TotalLoans       int64  `json:"totalLoans"`
		NewUsers         int64  `json:"newUsers"`
		MostPopularBooks []struct {
			BookID     uint64 `json:"bookId"`
			LoansCount int64  `json:"loansCount"`
		} `json:"mostPopularBooks"`
	}](t, rec)
	assert.Equal(t, "2024-01-01", sum.From)
	assert.Equal(t, int64(1), sum.TotalLoans)
	assert.Equal(t, int64(2), sum.NewUsers)
	require.Len(t, sum.MostPopularBooks, 1)
	assert.Equal(t, b.ID, sum.MostPopularBooks[0].BookID)

	rec = a.do(http.MethodGet, "/api/admin/stats/summary?from=2024-01-01", a.admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(http.MethodGet, "/api/admin/stats/summary?from=2024-02-01&to=2024-01-01", a.admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/api/admin/stats/loans-per-day?from=2024-01-09&to=2024-01-11", a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"date":"2024-01-09","count":0},
		{"date":"2024-01-10","count":1},
		{"date":"2024-01-11","count":0}
	]`, rec.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "Not Found"))
}
