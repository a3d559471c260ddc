package mysql

import (
	"context"
	"database/sql"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/repository"
)

// bookCols selects a book with its category name and copy counters.  The
// counters are correlated subqueries so filtering and paging stay on book.
const bookCols = `b.id, b.title, b.isbn, b.publication_year, b.description, b.category_id, b.is_active,
	b.created_at, b.updated_at, c.name,
	(SELECT COUNT(*) FROM book_copy bc WHERE bc.book_id = b.id) AS total_copies,
	(SELECT COUNT(*) FROM book_copy bc WHERE bc.book_id = b.id AND bc.status = 'AVAILABLE') AS available_copies`

// BookRepo persists catalog titles and their author links.
type BookRepo struct{ db DBTX }

func NewBookRepo(db DBTX) *BookRepo { return &BookRepo{db: db} }

func bookBase() *goqu.SelectDataset {
	return dialect.From(goqu.T("book").As("b")).
		LeftJoin(goqu.T("category").As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("b.category_id"))))
}

func scanBook(row rowScanner) (model.Book, error) {
	var (
		b        model.Book
		isbn     sql.NullString
		year     sql.NullInt64
		desc     sql.NullString
		category sql.NullInt64
		catName  sql.NullString
	)
	err := row.Scan(&b.ID, &b.Title, &isbn, &year, &desc, &category, &b.IsActive,
		&b.CreatedAt, &b.UpdatedAt, &catName, &b.TotalCopies, &b.AvailableCopies)
	if err != nil {
		return model.Book{}, err
	}
	b.ISBN = strPtr(isbn)
	b.PublicationYear = intPtr(year)
	b.Description = strPtr(desc)
	b.CategoryID = u64Ptr(category)
	b.CategoryName = strPtr(catName)
	return b, nil
}

func (r *BookRepo) Create(ctx context.Context, b *model.Book) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO book (title, isbn, publication_year, description, category_id, is_active, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		b.Title, b.ISBN, b.PublicationYear, b.Description, b.CategoryID, b.IsActive, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	b.ID, err = insertID(res)
	return err
}

// GetByID loads the book with authors and counters.
func (r *BookRepo) GetByID(ctx context.Context, id uint64) (model.Book, error) {
	q, args, err := bookBase().Select(goqu.L(bookCols)).Where(goqu.I("b.id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return model.Book{}, err
	}
	b, err := scanBook(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return model.Book{}, notFound(err)
	}
	books := []model.Book{b}
	if err := r.attachAuthors(ctx, books); err != nil {
		return model.Book{}, err
	}
	return books[0], nil
}

func (r *BookRepo) Update(ctx context.Context, b model.Book) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE book SET title=?, isbn=?, publication_year=?, description=?, category_id=?, is_active=?, updated_at=?
		 WHERE id=?`,
		b.Title, b.ISBN, b.PublicationYear, b.Description, b.CategoryID, b.IsActive, b.UpdatedAt, b.ID)
	if err != nil {
		if isDuplicate(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return requireAffected(res)
}

// SetAuthors replaces the book's author links.
func (r *BookRepo) SetAuthors(ctx context.Context, bookID uint64, authorIDs []uint64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM book_author WHERE book_id=?", bookID); err != nil {
		return err
	}
	if len(authorIDs) == 0 {
		return nil
	}
	query := "INSERT INTO book_author (book_id, author_id) VALUES "
	args := make([]any, 0, len(authorIDs)*2)
	for i, id := range authorIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, bookID, id)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// Search returns one page of the catalog ordered by title.
func (r *BookRepo) Search(ctx context.Context, f repository.BookFilter, p repository.PageRequest) ([]model.Book, int64, error) {
	ds := bookBase()
	if t := strings.TrimSpace(f.Title); t != "" {
		ds = ds.Where(goqu.I("b.title").Like("%" + t + "%"))
	}
	if a := strings.TrimSpace(f.Author); a != "" {
		ds = ds.Where(goqu.L(`EXISTS (SELECT 1 FROM book_author ba JOIN author a ON a.id = ba.author_id
			WHERE ba.book_id = b.id AND CONCAT(a.first_name, ' ', a.last_name) LIKE ?)`, "%"+a+"%"))
	}
	if f.CategoryID != nil {
		ds = ds.Where(goqu.I("b.category_id").Eq(*f.CategoryID))
	}
	if f.YearFrom != nil {
		ds = ds.Where(goqu.I("b.publication_year").Gte(*f.YearFrom))
	}
	if f.YearTo != nil {
		ds = ds.Where(goqu.I("b.publication_year").Lte(*f.YearTo))
	}
	if f.ActiveOnly {
		ds = ds.Where(goqu.I("b.is_active").IsTrue())
	}
	if f.AvailableOnly {
		ds = ds.Where(goqu.L("EXISTS (SELECT 1 FROM book_copy bc WHERE bc.book_id = b.id AND bc.status = 'AVAILABLE')"))
	}

	var out []model.Book
	total, err := countAndList(ctx, r.db, ds, goqu.L(bookCols),
		[]exp.OrderedExpression{goqu.I("b.title").Asc(), goqu.I("b.id").Asc()}, p,
		func(rows *sql.Rows) error {
			b, err := scanBook(rows)
			if err != nil {
				return err
			}
			out = append(out, b)
			return nil
		})
	if err != nil {
		return nil, 0, err
	}
	if err := r.attachAuthors(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// attachAuthors loads the authors of all given books with one query.
func (r *BookRepo) attachAuthors(ctx context.Context, books []model.Book) error {
	if len(books) == 0 {
		return nil
	}
	ids := make([]uint64, len(books))
	index := make(map[uint64]int, len(books))
	for i, b := range books {
		ids[i] = b.ID
		index[b.ID] = i
	}
	q, args, err := dialect.From(goqu.T("book_author").As("ba")).
		Join(goqu.T("author").As("a"), goqu.On(goqu.I("a.id").Eq(goqu.I("ba.author_id")))).
		Select("ba.book_id", "a.id", "a.first_name", "a.last_name", "a.created_at").
		Where(goqu.I("ba.book_id").In(ids)).
		Order(goqu.I("a.last_name").Asc(), goqu.I("a.first_name").Asc(), goqu.I("a.id").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return err
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			bookID uint64
			a      model.Author
		)
		if err := rows.Scan(&bookID, &a.ID, &a.FirstName, &a.LastName, &a.CreatedAt); err != nil {
			return err
		}
		if i, ok := index[bookID]; ok {
			books[i].Authors = append(books[i].Authors, a)
		}
	}
	return rows.Err()
}
