// Package memory provides an in-process account store for development and
// tests.
package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/dtroode/srplogin/internal/model"
)

var (
	_ model.AccountStore  = (*AccountRepository)(nil)
	_ model.AccountBanner = (*AccountRepository)(nil)
)

// AccountRepository keeps accounts and online markers in maps.
type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]model.Account
	online   map[string]model.ConnectionHandle
	now      func() time.Time
}

// NewAccountRepository creates an empty repository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts: make(map[string]model.Account),
		online:   make(map[string]model.ConnectionHandle),
		now:      time.Now,
	}
}

func (r *AccountRepository) Lookup(_ context.Context, name string) (model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[name]
	if !ok {
		return model.Account{}, model.ErrNotFound
	}
	return clone(account), nil
}

func (r *AccountRepository) Create(_ context.Context, account model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.Name]; ok {
		return model.ErrAccountExists
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = r.now()
	}
	r.accounts[account.Name] = clone(account)
	return nil
}

func (r *AccountRepository) IsOnline(_ context.Context, name string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.online[name]
	return ok, nil
}

func (r *AccountRepository) MarkOnline(_ context.Context, name string, conn model.ConnectionHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[name]
	if !ok {
		return model.ErrNotFound
	}
	if _, ok := r.online[name]; ok {
		return model.ErrAlreadyOnline
	}
	r.online[name] = conn
	account.LastLogin = r.now()
	r.accounts[name] = account
	return nil
}

func (r *AccountRepository) MarkOffline(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.online, name)
	return nil
}

// SetBanned changes the ban flag of an account.
func (r *AccountRepository) SetBanned(_ context.Context, name string, banned bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[name]
	if !ok {
		return model.ErrNotFound
	}
	account.Banned = banned
	r.accounts[name] = account
	return nil
}

func clone(a model.Account) model.Account {
	a.Salt = bytes.Clone(a.Salt)
	a.Verifier = bytes.Clone(a.Verifier)
	return a
}
