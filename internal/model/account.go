package model

import (
	"context"
	"regexp"
	"time"
)

const (
	// AccountNameMinLength is the shortest accepted account name.
	AccountNameMinLength = 3
	// AccountNameMaxLength is the longest accepted account name.
	AccountNameMaxLength = 32
)

var accountNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// IsAllowedAccountName reports whether name satisfies the account naming rules.
func IsAllowedAccountName(name string) bool {
	return len(name) >= AccountNameMinLength &&
		len(name) <= AccountNameMaxLength &&
		accountNamePattern.MatchString(name)
}

// AccessLevel is the privilege level of an account.
type AccessLevel uint8

const (
	// AccessLevelPlayer is a regular account.
	AccessLevelPlayer AccessLevel = iota
	// AccessLevelGuardian is a moderator account.
	AccessLevelGuardian
	// AccessLevelAdministrator is an administrator account.
	AccessLevelAdministrator
)

func (l AccessLevel) String() string {
	switch l {
	case AccessLevelPlayer:
		return "player"
	case AccessLevelGuardian:
		return "guardian"
	case AccessLevelAdministrator:
		return "administrator"
	default:
		return "unknown"
	}
}

// AccountStore is the persistent account collaborator used by the login
// handshake.
type AccountStore interface {
	// Lookup returns the account or ErrNotFound.
	Lookup(ctx context.Context, name string) (Account, error)
	// Create stores a new account or returns ErrAccountExists.
	Create(ctx context.Context, account Account) error
	// IsOnline reports whether any session for the account is marked online.
	IsOnline(ctx context.Context, name string) (bool, error)
	// MarkOnline records the account as online on the given connection or
	// returns ErrAlreadyOnline.
	MarkOnline(ctx context.Context, name string, conn ConnectionHandle) error
	// MarkOffline clears the online marker for the account.
	MarkOffline(ctx context.Context, name string) error
}

// AccountBanner changes the ban flag of an account. It returns ErrNotFound
// for unknown accounts.
type AccountBanner interface {
	SetBanned(ctx context.Context, name string, banned bool) error
}

// Account represents a stored account with its SRP material.
type Account struct {
	Name        string
	Salt        []byte
	Verifier    []byte
	AccessLevel AccessLevel
	Banned      bool
	CreatedAt   time.Time
	LastLogin   time.Time
}
