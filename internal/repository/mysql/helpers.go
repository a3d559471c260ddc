package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql" // register the mysql dialect
	"github.com/doug-martin/goqu/v9/exp"
	drivermysql "github.com/go-sql-driver/mysql"

	"github.com/iliyamo/library-service/internal/repository"
)

const (
	errDuplicateEntry  = 1062 // ER_DUP_ENTRY
	errRowIsReferenced = 1451 // ER_ROW_IS_REFERENCED_2
)

var dialect = goqu.Dialect("mysql")

// mysqlErrNo returns the server error number, or 0 for other errors.
func mysqlErrNo(err error) uint16 {
	var me *drivermysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicate(err error) bool { return mysqlErrNo(err) == errDuplicateEntry }

func isReferenced(err error) bool { return mysqlErrNo(err) == errRowIsReferenced }

// notFound maps sql.ErrNoRows onto the shared sentinel.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}

// requireAffected turns a zero-row update into ErrNotFound.  The DSN sets
// clientFoundRows=true so matched-but-unchanged rows still count.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func insertID(res sql.Result) (uint64, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// countAndList runs the COUNT(*) form of ds, then the page of rows,
// handing each row to scan.
func countAndList(ctx context.Context, db DBTX, ds *goqu.SelectDataset, cols any, order []exp.OrderedExpression, p repository.PageRequest, scan func(*sql.Rows) error) (int64, error) {
	p = p.Normalize()

	countSQL, countArgs, err := ds.Select(goqu.COUNT(goqu.Star())).Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var total int64
	if err := db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}

	dataSQL, dataArgs, err := ds.Select(cols).
		Order(order...).
		Limit(uint(p.Size)).
		Offset(uint(p.Offset())).
		Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build list query: %w", err)
	}
	rows, err := db.QueryContext(ctx, dataSQL, dataArgs...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return 0, err
		}
	}
	return total, rows.Err()
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func u64Ptr(ni sql.NullInt64) *uint64 {
	if !ni.Valid {
		return nil
	}
	v := uint64(ni.Int64)
	return &v
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
