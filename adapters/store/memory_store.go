package store

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/coffeemasters/authcore/core"
	"github.com/coffeemasters/authcore/ports"
)

// MemoryAccountStore is an in-memory implementation of the AccountStore
// interface. Accounts are lost on restart; use the gorm store for durable
// deployments. All operations take the store lock, which serializes
// concurrent mutations of the same account.
type MemoryAccountStore struct {
	mu         sync.RWMutex
	byEmail    map[string]*core.Account
	byID       map[string]*core.Account
	credOwners map[string]string // hex credential ID -> account ID
}

// NewMemoryAccountStore creates a new in-memory account store.
func NewMemoryAccountStore() ports.AccountStore {
	return &MemoryAccountStore{
		byEmail:    make(map[string]*core.Account),
		byID:       make(map[string]*core.Account),
		credOwners: make(map[string]string),
	}
}

// FindAccount returns the account registered under an email.
func (s *MemoryAccountStore) FindAccount(ctx context.Context, email string) (*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byEmail[email]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	return copyAccount(account), nil
}

// FindAccountByID returns the account for an account ID.
func (s *MemoryAccountStore) FindAccountByID(ctx context.Context, id string) (*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byID[id]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	return copyAccount(account), nil
}

// FindAccountByCredential resolves a credential ID to its credential and
// owning account.
func (s *MemoryAccountStore) FindAccountByCredential(ctx context.Context, credentialID []byte) (*core.Account, *core.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accountID, ok := s.credOwners[hex.EncodeToString(credentialID)]
	if !ok {
		return nil, nil, core.ErrUnknownCredential
	}
	account := s.byID[accountID]

	for i := range account.Credentials {
		if hex.EncodeToString(account.Credentials[i].ID) == hex.EncodeToString(credentialID) {
			cred := account.Credentials[i]
			return copyAccount(account), &cred, nil
		}
	}
	return nil, nil, core.ErrUnknownCredential
}

// CreateAccount persists a new account.
func (s *MemoryAccountStore) CreateAccount(ctx context.Context, account *core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[account.Email]; ok {
		return core.ErrAccountExists
	}

	stored := copyAccount(account)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.byEmail[stored.Email] = stored
	s.byID[stored.ID] = stored
	return nil
}

// AddCredential attaches a credential to an account. The uniqueness check is
// global: the same credential ID cannot be registered twice even on a
// different account.
func (s *MemoryAccountStore) AddCredential(ctx context.Context, accountID string, cred core.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byID[accountID]
	if !ok {
		return core.ErrAccountNotFound
	}

	key := hex.EncodeToString(cred.ID)
	if _, taken := s.credOwners[key]; taken {
		return core.ErrCredentialExists
	}

	cred.AccountID = accountID
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now().UTC()
	}
	account.Credentials = append(account.Credentials, cred)
	s.credOwners[key] = accountID
	return nil
}

// UpdateCredentialCounter records the signature counter after a successful
// assertion.
func (s *MemoryAccountStore) UpdateCredentialCounter(ctx context.Context, credentialID []byte, counter uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hex.EncodeToString(credentialID)
	accountID, ok := s.credOwners[key]
	if !ok {
		return core.ErrUnknownCredential
	}

	account := s.byID[accountID]
	for i := range account.Credentials {
		if hex.EncodeToString(account.Credentials[i].ID) == key {
			account.Credentials[i].SignCount = counter
			account.Credentials[i].LastUsedAt = time.Now().UTC()
			return nil
		}
	}
	return core.ErrUnknownCredential
}

// ListCredentials returns the credentials registered to an account.
func (s *MemoryAccountStore) ListCredentials(ctx context.Context, accountID string) ([]core.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byID[accountID]
	if !ok {
		return nil, core.ErrAccountNotFound
	}

	creds := make([]core.Credential, len(account.Credentials))
	copy(creds, account.Credentials)
	return creds, nil
}

// copyAccount returns a deep copy so callers cannot mutate stored state
// outside the lock.
func copyAccount(a *core.Account) *core.Account {
	dup := *a
	dup.PasswordHash = append([]byte(nil), a.PasswordHash...)
	dup.Credentials = make([]core.Credential, len(a.Credentials))
	copy(dup.Credentials, a.Credentials)
	return &dup
}
