package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prn-tf/graphrag-portal/internal/domain"
	"github.com/prn-tf/graphrag-portal/internal/repository"
)

// accountRepository implements repository.AccountRepository for SQLite.
type accountRepository struct {
	db *DB
}

// NewAccountRepository creates a new SQLite account repository.
func NewAccountRepository(db *DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

// Create persists a new account.
func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (username, email, password_hash, active, created_at, last_login_at, workspace)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		account.Username,
		account.Email,
		account.PasswordHash,
		boolToInt(account.Active),
		account.CreatedAt.Format(time.RFC3339),
		formatNullableTime(account.LastLoginAt),
		account.Workspace,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateUsername, account.Username)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// Get retrieves an account by username.
func (r *accountRepository) Get(ctx context.Context, username string) (*domain.Account, error) {
	query := `
		SELECT username, email, password_hash, active, created_at, last_login_at, workspace
		FROM accounts
		WHERE username = ?
	`

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// Update replaces an existing account record.
func (r *accountRepository) Update(ctx context.Context, account *domain.Account) error {
	query := `
		UPDATE accounts
		SET email = ?, password_hash = ?, active = ?, last_login_at = ?
		WHERE username = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		account.Email,
		account.PasswordHash,
		boolToInt(account.Active),
		formatNullableTime(account.LastLoginAt),
		account.Username,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes an account by username.
func (r *accountRepository) Delete(ctx context.Context, username string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// List returns all accounts in insertion order.
func (r *accountRepository) List(ctx context.Context) ([]*domain.Account, error) {
	query := `
		SELECT username, email, password_hash, active, created_at, last_login_at, workspace
		FROM accounts
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}

// Close closes the underlying database.
func (r *accountRepository) Close() error {
	return r.db.Close()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanAccount decodes one account row.
func scanAccount(row scanner) (*domain.Account, error) {
	account := &domain.Account{}
	var active int
	var createdAt string
	var lastLoginAt sql.NullString

	err := row.Scan(
		&account.Username,
		&account.Email,
		&account.PasswordHash,
		&active,
		&createdAt,
		&lastLoginAt,
		&account.Workspace,
	)
	if err != nil {
		return nil, err
	}

	account.Active = active != 0
	account.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	if lastLoginAt.Valid {
		t, err := time.Parse(time.RFC3339, lastLoginAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid last_login_at %q: %w", lastLoginAt.String, err)
		}
		account.LastLoginAt = &t
	}

	return account, nil
}

// boolToInt converts a bool to SQLite's integer representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// formatNullableTime formats an optional timestamp for storage.
func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
