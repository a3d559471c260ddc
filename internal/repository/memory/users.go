package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/repository"
)

type userRepo struct{ v view }

func emailTaken(d *data, email string, except uint64) bool {
	for _, u := range d.users {
		if u.ID != except && u.Email == email {
			return true
		}
	}
	return false
}

func (r userRepo) Create(_ context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return r.v.do(func(d *data) error {
		if emailTaken(d, u.Email, 0) {
			return repository.ErrEmailExists
		}
		u.ID = d.next("app_user")
		d.users[u.ID] = *u
		return nil
	})
}

func (r userRepo) GetByID(_ context.Context, id uint64) (model.User, error) {
	var out model.User
	err := r.v.do(func(d *data) error {
		u, ok := d.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = u
		return nil
	})
	return out, err
}

func (r userRepo) GetByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var out model.User
	err := r.v.do(func(d *data) error {
		for _, u := range d.users {
			if u.Email == email {
				out = u
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r userRepo) Update(_ context.Context, u model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return r.v.do(func(d *data) error {
		cur, ok := d.users[u.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if emailTaken(d, u.Email, u.ID) {
			return repository.ErrEmailExists
		}
		u.PasswordHash = cur.PasswordHash
		u.CreatedAt = cur.CreatedAt
		d.users[u.ID] = u
		return nil
	})
}

func (r userRepo) UpdatePassword(_ context.Context, id uint64, hash string) error {
	return r.v.do(func(d *data) error {
		u, ok := d.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		u.PasswordHash = hash
		u.UpdatedAt = time.Now().UTC()
		d.users[id] = u
		return nil
	})
}

func (r userRepo) List(_ context.Context, f repository.UserFilter, p repository.PageRequest) ([]model.User, int64, error) {
	var (
		out   []model.User
		total int64
	)
	err := r.v.do(func(d *data) error {
		var all []model.User
		search := strings.TrimSpace(f.Search)
		for _, u := range d.users {
			if f.Role != "" && u.Role != f.Role {
				continue
			}
			if f.Status != "" && u.Status != f.Status {
				continue
			}
			if search != "" && !contains(u.Email, search) && !contains(u.FirstName, search) && !contains(u.LastName, search) {
				continue
			}
			all = append(all, u)
		}
		out, total = page(all, p, func(a, b model.User) bool { return a.ID < b.ID })
		return nil
	})
	return out, total, err
}

type tokenRepo struct{ v view }

func (r tokenRepo) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	return r.v.do(func(d *data) error {
		d.tokens[tokenHash] = tokenRow{userID: userID, expiresAt: exp}
		return nil
	})
}

func (r tokenRepo) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	var uid uint64
	err := r.v.do(func(d *data) error {
		t, ok := d.tokens[tokenHash]
		if !ok || t.revoked || r.v.s.now().After(t.expiresAt) {
			return repository.ErrNotFound
		}
		uid = t.userID
		return nil
	})
	return uid, err
}

func (r tokenRepo) RevokeByHash(_ context.Context, tokenHash string) error {
	return r.v.do(func(d *data) error {
		t, ok := d.tokens[tokenHash]
		if !ok || t.revoked {
			return repository.ErrNotFound
		}
		t.revoked = true
		d.tokens[tokenHash] = t
		return nil
	})
}

func (r tokenRepo) RevokeAllForUser(_ context.Context, userID uint64) error {
	return r.v.do(func(d *data) error {
		for h, t := range d.tokens {
			if t.userID == userID {
				t.revoked = true
				d.tokens[h] = t
			}
		}
		return nil
	})
}

type authorRepo struct{ v view }

func (r authorRepo) Create(_ context.Context, a *model.Author) error {
	return r.v.do(func(d *data) error {
		a.ID = d.next("author")
		d.authors[a.ID] = *a
		return nil
	})
}

func (r authorRepo) GetByID(_ context.Context, id uint64) (model.Author, error) {
	var out model.Author
	err := r.v.do(func(d *data) error {
		a, ok := d.authors[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = a
		return nil
	})
	return out, err
}

func (r authorRepo) Update(_ context.Context, a model.Author) error {
	return r.v.do(func(d *data) error {
		cur, ok := d.authors[a.ID]
		if !ok {
			return repository.ErrNotFound
		}
		cur.FirstName, cur.LastName = a.FirstName, a.LastName
		d.authors[a.ID] = cur
		return nil
	})
}

func (r authorRepo) Delete(_ context.Context, id uint64) error {
	return r.v.do(func(d *data) error {
		if _, ok := d.authors[id]; !ok {
			return repository.ErrNotFound
		}
		for _, ids := range d.bookAuthors {
			for _, aid := range ids {
				if aid == id {
					return repository.ErrConflict
				}
			}
		}
		delete(d.authors, id)
		return nil
	})
}

func (r authorRepo) List(_ context.Context, p repository.PageRequest) ([]model.Author, int64, error) {
	var (
		out   []model.Author
		total int64
	)
	err := r.v.do(func(d *data) error {
		all := make([]model.Author, 0, len(d.authors))
		for _, a := range d.authors {
			all = append(all, a)
		}
		out, total = page(all, p, authorLess)
		return nil
	})
	return out, total, err
}

func authorLess(a, b model.Author) bool {
	if a.LastName != b.LastName {
		return a.LastName < b.LastName
	}
	if a.FirstName != b.FirstName {
		return a.FirstName < b.FirstName
	}
	return a.ID < b.ID
}

func (r authorRepo) CountExisting(_ context.Context, ids []uint64) (int, error) {
	n := 0
	err := r.v.do(func(d *data) error {
		seen := map[uint64]bool{}
		for _, id := range ids {
			if _, ok := d.authors[id]; ok && !seen[id] {
				seen[id] = true
				n++
			}
		}
		return nil
	})
	return n, err
}

type categoryRepo struct{ v view }

func (r categoryRepo) Create(_ context.Context, c *model.Category) error {
	return r.v.do(func(d *data) error {
		for _, existing := range d.categories {
			if strings.EqualFold(existing.Name, c.Name) {
				return repository.ErrDuplicate
			}
		}
		c.ID = d.next("category")
		d.categories[c.ID] = *c
		return nil
	})
}

func (r categoryRepo) GetByID(_ context.Context, id uint64) (model.Category, error) {
	var out model.Category
	err := r.v.do(func(d *data) error {
		c, ok := d.categories[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = c
		return nil
	})
	return out, err
}

func (r categoryRepo) List(_ context.Context) ([]model.Category, error) {
	var out []model.Category
	err := r.v.do(func(d *data) error {
		for _, c := range d.categories {
			out = append(out, c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}
