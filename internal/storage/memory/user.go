package memory

import (
	"context"
	"sync"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/user"
)

var (
	_ user.Repository = (*UserStore)(nil)
	_ auth.Repository = (*APIKeyStore)(nil)
)

// UserStore keeps accounts in a map keyed by id, with an email index.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]user.User
	byEmail map[string]string
}

// NewUserStore returns an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[string]user.User),
		byEmail: make(map[string]string),
	}
}

func (s *UserStore) Create(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[u.Email]; taken {
		return user.ErrEmailTaken
	}
	s.byID[u.ID] = *u
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *UserStore) GetByID(_ context.Context, id string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	s.mu.RLock()
	id, ok := s.byEmail[email]
	s.mu.RUnlock()
	if !ok {
		return nil, user.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

// APIKeyStore keeps API keys keyed by hash.
type APIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]auth.APIKeyInfo
}

// NewAPIKeyStore returns an empty APIKeyStore.
func NewAPIKeyStore() *APIKeyStore {
	return &APIKeyStore{keys: make(map[string]auth.APIKeyInfo)}
}

func (s *APIKeyStore) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.keys[hash]
	if !ok {
		return nil, auth.ErrUnauthorized
	}
	return &k, nil
}

func (s *APIKeyStore) Create(_ context.Context, k *auth.APIKeyInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys[k.KeyHash] = *k
	return nil
}
