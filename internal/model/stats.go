package model

import "time"

// PopularBook is one row of the most-borrowed ranking.
type PopularBook struct {
	BookID     uint64 `db:"book_id"`
	Title      string `db:"title"`
	LoansCount int64  `db:"loans_count"`
}

// DayCount is the number of loans created on one calendar day (UTC).
type DayCount struct {
	Day   time.Time `db:"day"`
	Count int64     `db:"loans_count"`
}

// Summary aggregates library activity over a date range.
type Summary struct {
	From             time.Time
	To               time.Time
	TotalLoans       int64
	OverdueLoans     int64
	NewUsers         int64
	ActiveUsers      int64
	MostPopularBooks []PopularBook
}
