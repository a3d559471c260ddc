package mysql

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	drivermysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/library-service/internal/repository"
)

func TestErrorClassification(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &drivermysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	ref := &drivermysql.MySQLError{Number: 1451, Message: "Cannot delete or update a parent row"}

	assert.True(t, isDuplicate(dup))
	assert.False(t, isReferenced(dup))
	assert.True(t, isReferenced(ref))
	assert.False(t, isDuplicate(errors.New("boom")))
	assert.Equal(t, uint16(0), mysqlErrNo(nil))

	assert.ErrorIs(t, notFound(sql.ErrNoRows), repository.ErrNotFound)
	other := errors.New("timeout")
	assert.Equal(t, other, notFound(other))
}

func TestRequireAffected(t *testing.T) {
	assert.ErrorIs(t, requireAffected(driver.RowsAffected(0)), repository.ErrNotFound)
	assert.NoError(t, requireAffected(driver.RowsAffected(1)))
}

func TestNullableConversions(t *testing.T) {
	assert.Nil(t, strPtr(sql.NullString{}))
	assert.Equal(t, "A1", *strPtr(sql.NullString{String: "A1", Valid: true}))

	local := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))
	got := timePtr(sql.NullTime{Time: local, Valid: true})
	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, local.Equal(*got))
	assert.Nil(t, timePtr(sql.NullTime{}))

	assert.Equal(t, uint64(7), *u64Ptr(sql.NullInt64{Int64: 7, Valid: true}))
	assert.Nil(t, intPtr(sql.NullInt64{}))
}
