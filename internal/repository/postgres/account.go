package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dtroode/srplogin/internal/model"
)

const uniqueViolation = "23505"

var (
	_ model.AccountStore  = (*AccountRepository)(nil)
	_ model.AccountBanner = (*AccountRepository)(nil)
)

// AccountRepository stores accounts and the online markers of one login
// server.
type AccountRepository struct {
	db         *Connection
	serverName string
}

func NewAccountRepository(db *Connection, serverName string) *AccountRepository {
	return &AccountRepository{
		db:         db,
		serverName: serverName,
	}
}

func (r *AccountRepository) Lookup(ctx context.Context, name string) (model.Account, error) {
	const query = `
        SELECT name, salt, verifier, access_level, banned, created_at, last_login
        FROM accounts
        WHERE name = $1
    `

	var (
		account   model.Account
		level     int16
		lastLogin *time.Time
	)
	err := r.db.QueryRow(ctx, query, name).Scan(
		&account.Name, &account.Salt, &account.Verifier, &level, &account.Banned,
		&account.CreatedAt, &lastLogin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, model.ErrNotFound
		}
		return model.Account{}, fmt.Errorf("failed to get account by name: %w", err)
	}

	account.AccessLevel = model.AccessLevel(level)
	if lastLogin != nil {
		account.LastLogin = *lastLogin
	}
	return account, nil
}

func (r *AccountRepository) Create(ctx context.Context, account model.Account) error {
	const query = `
        INSERT INTO accounts (name, salt, verifier, access_level, banned, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `

	createdAt := account.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.Exec(ctx, query,
		account.Name, account.Salt, account.Verifier, int16(account.AccessLevel), account.Banned, createdAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.ErrAccountExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *AccountRepository) IsOnline(ctx context.Context, name string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM online_accounts WHERE account_name = $1)`

	var online bool
	if err := r.db.QueryRow(ctx, query, name).Scan(&online); err != nil {
		return false, fmt.Errorf("failed to check online state: %w", err)
	}
	return online, nil
}

// MarkOnline records the login time and claims the online marker. Both
// happen in one transaction so a refused claim leaves no trace.
func (r *AccountRepository) MarkOnline(ctx context.Context, name string, conn model.ConnectionHandle) error {
	const (
		touch = `UPDATE accounts SET last_login = now() WHERE name = $1`
		claim = `
            INSERT INTO online_accounts (account_name, server_name, connection_id)
            VALUES ($1, $2, $3)
            ON CONFLICT (account_name) DO NOTHING
        `
	)

	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, touch, name)
		if err != nil {
			return fmt.Errorf("failed to update last login: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrNotFound
		}

		tag, err = tx.Exec(ctx, claim, name, r.serverName, uuid.UUID(conn))
		if err != nil {
			return fmt.Errorf("failed to mark account online: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrAlreadyOnline
		}
		return nil
	})
}

// MarkOffline drops the marker if this server owns it.
func (r *AccountRepository) MarkOffline(ctx context.Context, name string) error {
	const query = `DELETE FROM online_accounts WHERE account_name = $1 AND server_name = $2`

	if _, err := r.db.Exec(ctx, query, name, r.serverName); err != nil {
		return fmt.Errorf("failed to mark account offline: %w", err)
	}
	return nil
}

// SetBanned changes the banned flag of an account.
func (r *AccountRepository) SetBanned(ctx context.Context, name string, banned bool) error {
	const query = `UPDATE accounts SET banned = $2 WHERE name = $1`

	tag, err := r.db.Exec(ctx, query, name, banned)
	if err != nil {
		return fmt.Errorf("failed to update banned flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
