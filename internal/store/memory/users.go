package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"milktrack/internal/auth"
)

// UserStore is the in-memory account backend, paired with Store for
// zero-config local runs.
type UserStore struct {
	mu      sync.Mutex
	seq     int
	byEmail map[string]auth.User
	byID    map[string]auth.User

	now func() time.Time
}

var _ auth.UserStore = (*UserStore)(nil)

func NewUserStore() *UserStore {
	return &UserStore{
		byEmail: make(map[string]auth.User),
		byID:    make(map[string]auth.User),
		now:     time.Now,
	}
}

func (s *UserStore) CreateUser(_ context.Context, email, passwordHash, displayName string) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return auth.User{}, auth.ErrUserExists
	}

	s.seq++
	now := s.now()
	u := auth.User{
		UID:          fmt.Sprintf("mem-user:%d", s.seq),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byEmail[email] = u
	s.byID[u.UID] = u
	return u, nil
}

func (s *UserStore) UserByEmail(_ context.Context, email string) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byEmail[email]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, nil
}

func (s *UserStore) UserByID(_ context.Context, uid string) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[uid]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, nil
}

func (s *UserStore) UpdateProfile(_ context.Context, uid string, upd auth.ProfileUpdate) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[uid]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	if upd.DisplayName != nil {
		u.DisplayName = *upd.DisplayName
	}
	if upd.PhotoURL != nil {
		u.PhotoURL = *upd.PhotoURL
	}
	u.UpdatedAt = s.now()
	s.byID[uid] = u
	s.byEmail[u.Email] = u
	return u, nil
}
