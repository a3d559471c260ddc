// Package repository defines the storage contracts used by the service
// layer together with the sentinel errors every implementation returns.
// These sentinel values allow higher layers to distinguish between
// different failure scenarios without knowing which store is in use.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist.  The
// MySQL implementation maps sql.ErrNoRows to it.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as a second ACTIVE reservation for the same
// user and book, or deleting an author who still has books.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when inserting or updating a user would
// duplicate an email address.
var ErrEmailExists = errors.New("email already exists")

// ErrDuplicate is returned for any other unique key violation (ISBN,
// category name, inventory code).
var ErrDuplicate = errors.New("duplicate key")
