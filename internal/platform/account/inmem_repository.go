package account

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"campus/internal/database"
	"campus/pkg/utils"
)

// InMemStore keeps accounts in process memory. It backs the demo server
// mode and the test suites; the mutex gives it the same atomicity for
// counter updates that the SQL store gets from single UPDATE statements.
type InMemStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]database.Account
	authKeys map[string]uuid.UUID
}

func NewInMemStore() *InMemStore {
	return &InMemStore{
		accounts: make(map[uuid.UUID]database.Account),
		authKeys: make(map[string]uuid.UUID),
	}
}

func (s *InMemStore) FindByHandle(ctx context.Context, handle string) (*database.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.DisplayName == handle {
			return copyOf(acct), nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemStore) FindByID(ctx context.Context, id uuid.UUID) (*database.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOf(acct), nil
}

func (s *InMemStore) FindByEmail(ctx context.Context, email string) (*database.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(email)
	for _, acct := range s.accounts {
		if acct.Email == email {
			return copyOf(acct), nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemStore) FindByAuthKey(ctx context.Context, key string) (*database.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.authKeys[key]
	if !ok {
		return nil, ErrNotFound
	}
	acct, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOf(acct), nil
}

func (s *InMemStore) List(ctx context.Context, limit, offset int) ([]database.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]database.Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		all = append(all, acct)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []database.Account{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *InMemStore) Create(ctx context.Context, acct *database.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.Email == acct.Email {
			return ErrDuplicateEmail
		}
		if existing.DisplayName == acct.DisplayName {
			return ErrDuplicateHandle
		}
	}
	if acct.ID == uuid.Nil {
		acct.ID = uuid.New()
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now()
	}
	s.accounts[acct.ID] = *acct
	return nil
}

func (s *InMemStore) Update(ctx context.Context, acct *database.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acct.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range s.accounts {
		if id == acct.ID {
			continue
		}
		if existing.Email == acct.Email {
			return ErrDuplicateEmail
		}
		if existing.DisplayName == acct.DisplayName {
			return ErrDuplicateHandle
		}
	}
	s.accounts[acct.ID] = *acct
	return nil
}

func (s *InMemStore) CreateAuthKey(ctx context.Context, accountID uuid.UUID) (*database.AuthKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[accountID]; !ok {
		return nil, ErrNotFound
	}
	authKey := database.AuthKey{
		Key:       fmt.Sprintf("%s.%s", authKeyPrefix, utils.GenerateRandomString(32)),
		AccountID: accountID,
	}
	s.authKeys[authKey.Key] = accountID
	return &authKey, nil
}

func (s *InMemStore) RecordFailure(ctx context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return 0, ErrNotFound
	}
	acct.FailedLoginAttempts++
	if acct.FailedLoginAttempts >= MaxFailedAttempts {
		until := time.Now().Add(LockoutDuration)
		acct.LockedUntil = &until
	}
	s.accounts[id] = acct
	return acct.FailedLoginAttempts, nil
}

func (s *InMemStore) RecordSuccess(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	acct.FailedLoginAttempts = 0
	acct.LockedUntil = nil
	acct.LastLogin = &now
	s.accounts[id] = acct
	return nil
}

func (s *InMemStore) SetPassword(ctx context.Context, id uuid.UUID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	acct.PasswordHash = hash
	acct.ForcePasswordChange = false
	s.accounts[id] = acct
	return nil
}

func (s *InMemStore) ResetPassword(ctx context.Context, id uuid.UUID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	acct.PasswordHash = hash
	acct.ForcePasswordChange = true
	acct.FailedLoginAttempts = 0
	acct.LockedUntil = nil
	s.accounts[id] = acct
	return nil
}

func (s *InMemStore) ClearLockout(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	acct.FailedLoginAttempts = 0
	acct.LockedUntil = nil
	s.accounts[id] = acct
	return nil
}

func copyOf(acct database.Account) *database.Account {
	out := acct
	return &out
}
