package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/queue"
	"github.com/iliyamo/library-service/internal/repository"
)

func TestCreateReservation(t *testing.T) {
	f := newFixture(t)
	u := f.reader(t)
	b := f.book(t, 0)

	res, err := f.reservations.CreateReservation(f.ctx, u.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationActive, res.Status)
	assert.Equal(t, epoch, res.CreatedAt)
	require.NotNil(t, res.ExpiresAt)
	assert.Equal(t, epoch.Add(14*24*time.Hour), *res.ExpiresAt)
	assert.Equal(t, b.Title, res.BookTitle)

	_, err = f.reservations.CreateReservation(f.ctx, u.ID, b.ID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.reservations.CreateReservation(f.ctx, u.ID, 999)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.reservations.CreateReservation(f.ctx, 999, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{queue.ReservationCreated}, f.events.types())
}

func TestCancelReservation(t *testing.T) {
	f := newFixture(t)
	owner := f.reader(t)
	other := f.reader(t)
	b := f.book(t, 1)
	res, err := f.reservations.CreateReservation(f.ctx, owner.ID, b.ID)
	require.NoError(t, err)

	_, err = f.reservations.CancelReservation(f.ctx, res.ID, Actor{UserID: other.ID, Role: model.RoleReader})
	assert.ErrorIs(t, err, ErrForbidden)

	f.clock.Advance(time.Hour)
	got, err := f.reservations.CancelReservation(f.ctx, res.ID, Actor{UserID: owner.ID, Role: model.RoleReader})
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, got.Status)
	require.NotNil(t, got.CancelledAt)
	assert.Equal(t, epoch.Add(time.Hour), *got.CancelledAt)

	_, err = f.reservations.CancelReservation(f.ctx, res.ID, Actor{UserID: owner.ID, Role: model.RoleReader})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.reservations.CancelReservation(f.ctx, 999, Actor{UserID: owner.ID})
	assert.ErrorIs(t, err, ErrNotFound)

	again, err := f.reservations.CreateReservation(f.ctx, owner.ID, b.ID)
	require.NoError(t, err, "a cancelled reservation does not block a new one")
	_, err = f.reservations.CancelReservation(f.ctx, again.ID, Actor{UserID: other.ID, Role: model.RoleAdmin})
	assert.NoError(t, err)
}

func TestListReservations(t *testing.T) {
	f := newFixture(t)
	u := f.reader(t)
	other := f.reader(t)
	first := f.book(t, 0)
	second := f.book(t, 0)

	_, err := f.reservations.CreateReservation(f.ctx, u.ID, first.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	newest, err := f.reservations.CreateReservation(f.ctx, u.ID, second.ID)
	require.NoError(t, err)
	_, err = f.reservations.CreateReservation(f.ctx, other.ID, first.ID)
	require.NoError(t, err)

	page, err := f.reservations.ListReservations(f.ctx, repository.ReservationFilter{UserID: &u.ID}, repository.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, newest.ID, page.Items[0].ID)

	page, err = f.reservations.ListReservations(f.ctx, repository.ReservationFilter{BookID: &first.ID, Status: "active"}, repository.PageRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	_, err = f.reservations.ListReservations(f.ctx, repository.ReservationFilter{Status: "expired"}, repository.PageRequest{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateReservation_RejectsBlockedAndDeletedAccounts(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, 0)

	deleted := f.reader(t)
	_, err := f.users.SetStatus(f.ctx, deleted.ID, model.UserDeleted, nil, nil)
	require.NoError(t, err)
	_, err = f.reservations.CreateReservation(f.ctx, deleted.ID, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	blocked := f.reader(t)
	_, err = f.users.SetStatus(f.ctx, blocked.ID, model.UserBlocked, strPtr("fines"), nil)
	require.NoError(t, err)
	_, err = f.reservations.CreateReservation(f.ctx, blocked.ID, b.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	page, err := f.reservations.ListReservations(f.ctx, repository.ReservationFilter{BookID: &b.ID}, repository.PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}
