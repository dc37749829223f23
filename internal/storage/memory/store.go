// Package memory is a process-local storage.UserStore used by tests and by the
// "memory" store driver for local development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hongminglow/portal-be/internal/models"
	"github.com/hongminglow/portal-be/internal/storage"
)

var _ storage.UserStore = (*Store)(nil)

// Store keeps users in a map guarded by a single mutex. WithinTx holds the
// mutex for the whole callback and restores a snapshot when it fails.
type Store struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]models.User
	now    func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users: make(map[int64]models.User),
		now:   time.Now,
	}
}

// WithinTx serialises fn against every other store operation.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Users) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[int64]models.User, len(s.users))
	for id, u := range s.users {
		snapshot[id] = u
	}
	nextID := s.nextID

	if err := fn(ctx, locked{s}); err != nil {
		s.users = snapshot
		s.nextID = nextID
		return err
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return locked{s}.CreateUser(ctx, user)
}

func (s *Store) FindByID(ctx context.Context, id int64) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return locked{s}.FindByID(ctx, id)
}

func (s *Store) LockByID(ctx context.Context, id int64) (models.User, error) {
	return s.FindByID(ctx, id)
}

func (s *Store) FindByUsername(ctx context.Context, username string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return locked{s}.FindByUsername(ctx, username)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return locked{s}.FindByEmail(ctx, email)
}

func (s *Store) FindByUsernameOrEmail(ctx context.Context, identifier string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return locked{s}.FindByUsernameOrEmail(ctx, identifier)
}

func (s *Store) ListUsers(ctx context.Context, filter storage.Filter) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return locked{s}.ListUsers(ctx, filter)
}

func (s *Store) CountUsers(ctx context.Context, filter storage.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return locked{s}.CountUsers(ctx, filter)
}

func (s *Store) UpdateUser(ctx context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return locked{s}.UpdateUser(ctx, user)
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return locked{s}.DeleteUser(ctx, id)
}

func (s *Store) TouchLastLogin(ctx context.Context, id int64, at time.Time) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return locked{s}.TouchLastLogin(ctx, id, at)
}

// locked implements storage.Users assuming the caller holds s.mu.
type locked struct {
	s *Store
}

func (l locked) CreateUser(_ context.Context, user models.User) (models.User, error) {
	user.Email = strings.ToLower(user.Email)
	for _, existing := range l.s.users {
		if existing.Username == user.Username {
			return models.User{}, storage.ErrDuplicateUsername
		}
		if existing.Email == user.Email {
			return models.User{}, storage.ErrDuplicateEmail
		}
	}
	l.s.nextID++
	user.ID = l.s.nextID
	user.CreatedAt = l.s.now().UTC()
	user.LastLogin = nil
	l.s.users[user.ID] = user
	return user, nil
}

func (l locked) FindByID(_ context.Context, id int64) (models.User, error) {
	user, ok := l.s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return user, nil
}

func (l locked) LockByID(ctx context.Context, id int64) (models.User, error) {
	return l.FindByID(ctx, id)
}

func (l locked) FindByUsername(_ context.Context, username string) (models.User, error) {
	return l.first(func(u models.User) bool { return u.Username == username })
}

func (l locked) FindByEmail(_ context.Context, email string) (models.User, error) {
	email = strings.ToLower(email)
	return l.first(func(u models.User) bool { return u.Email == email })
}

func (l locked) FindByUsernameOrEmail(_ context.Context, identifier string) (models.User, error) {
	email := strings.ToLower(identifier)
	return l.first(func(u models.User) bool { return u.Username == identifier || u.Email == email })
}

func (l locked) ListUsers(_ context.Context, filter storage.Filter) ([]models.User, error) {
	users := make([]models.User, 0, len(l.s.users))
	for _, u := range l.sorted() {
		if filter.Matches(u) {
			users = append(users, u)
		}
	}
	return users, nil
}

func (l locked) CountUsers(_ context.Context, filter storage.Filter) (int64, error) {
	var n int64
	for _, u := range l.s.users {
		if filter.Matches(u) {
			n++
		}
	}
	return n, nil
}

func (l locked) UpdateUser(_ context.Context, user models.User) (models.User, error) {
	current, ok := l.s.users[user.ID]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	email := strings.ToLower(user.Email)
	for id, existing := range l.s.users {
		if id != user.ID && existing.Email == email {
			return models.User{}, storage.ErrDuplicateEmail
		}
	}
	current.Email = email
	current.PasswordHash = user.PasswordHash
	current.IsAdmin = user.IsAdmin
	current.IsApproved = user.IsApproved
	current.LastLogin = user.LastLogin
	l.s.users[user.ID] = current
	return current, nil
}

func (l locked) DeleteUser(_ context.Context, id int64) error {
	if _, ok := l.s.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(l.s.users, id)
	return nil
}

func (l locked) TouchLastLogin(_ context.Context, id int64, at time.Time) (models.User, error) {
	user, ok := l.s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	stamp := at.UTC()
	user.LastLogin = &stamp
	l.s.users[id] = user
	return user, nil
}

func (l locked) first(match func(models.User) bool) (models.User, error) {
	for _, u := range l.sorted() {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

func (l locked) sorted() []models.User {
	users := make([]models.User, 0, len(l.s.users))
	for _, u := range l.s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}
