package store

import (
	"context"
	"sync"
	"time"

	"github.com/jordanmellermagic/Sensus-API/internal/domain"
)

// MemoryStore is an in-process Store used by tests and by the original
// prototype's map-backed mode. A single mutex serializes all writes, which
// trivially satisfies the per-record serialization the notifier relies on.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	passwords map[string]string
	subs      map[string][]domain.Subscription
	prefs     map[string]map[string]bool
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]domain.User),
		passwords: make(map[string]string),
		subs:      make(map[string][]domain.Subscription),
		prefs:     make(map[string]map[string]bool),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) GetUser(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *MemoryStore) EnsureUser(_ context.Context, userID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		now := time.Now().UTC()
		u = domain.User{
			ID:        userID,
			Data:      domain.Data{UpdatedAt: now},
			Note:      domain.Note{UpdatedAt: now},
			Screen:    domain.Screen{UpdatedAt: now},
			Command:   domain.Command{UpdatedAt: now},
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.users[userID] = u
	}
	return cloneUser(u), nil
}

func (s *MemoryStore) SaveUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = *cloneUser(*u)
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return ErrNotFound
	}
	delete(s.users, userID)
	delete(s.passwords, userID)
	delete(s.subs, userID)
	delete(s.prefs, userID)
	return nil
}

func (s *MemoryStore) SetPassword(_ context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return ErrNotFound
	}
	s.passwords[userID] = hash
	return nil
}

func (s *MemoryStore) PasswordHash(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.users[userID]; !ok {
		return "", ErrNotFound
	}
	return s.passwords[userID], nil
}

func (s *MemoryStore) AddSubscription(_ context.Context, sub *domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.UserID] = append(s.subs[sub.UserID], *sub)
	return nil
}

func (s *MemoryStore) ListSubscriptions(_ context.Context, userID string) ([]domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Subscription, len(s.subs[userID]))
	copy(out, s.subs[userID])
	return out, nil
}

func (s *MemoryStore) DeleteSubscription(_ context.Context, userID, subID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.subs[userID]
	for i, sub := range list {
		if sub.ID == subID {
			s.subs[userID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) Preferences(_ context.Context, userID string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.prefs[userID]))
	for k, v := range s.prefs[userID] {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) SetPreference(_ context.Context, userID, channel string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prefs[userID] == nil {
		s.prefs[userID] = make(map[string]bool)
	}
	s.prefs[userID][channel] = enabled
	return nil
}

func cloneUser(u domain.User) *domain.User {
	out := u
	if u.Data.Birthday != nil {
		b := *u.Data.Birthday
		out.Data.Birthday = &b
	}
	return &out
}
