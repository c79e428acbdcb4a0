// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/platform/dberr"
	"github.com/taibuivan/fitclub/internal/platform/postgres"
	"github.com/taibuivan/fitclub/internal/users/role"
	"github.com/taibuivan/fitclub/pkg/pagination"
)

// # User Repository

// UserColumns is the column list [ScanUser] expects, in order.
const UserColumns = `id, username, email, passwordhash, role, nickname, introduction, externalid, createdat, updatedat`

// PostgresUserRepository implements [UserRepository] on users.account.
type PostgresUserRepository struct {
	db postgres.DBTX
}

// NewUserRepository creates a user repository over a pool or a transaction.
func NewUserRepository(db postgres.DBTX) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

/*
Create persists a new member account into the users.account table.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist)

Returns:
  - error: apperr.Conflict on a taken username/email, or connectivity errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	const query = `
		INSERT INTO users.account (
			id, username, email, passwordhash, role, nickname, introduction, externalid, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := repository.db.Exec(context, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Nickname,
		user.Introduction,
		nullable(user.ExternalID),
		user.CreatedAt,
		user.UpdatedAt,
	)

	switch {
	case err == nil:
		return nil
	case dberr.IsUniqueViolation(err, "uq_account_username"):
		return apperr.Conflict("Username is already taken")
	case dberr.IsUniqueViolation(err, "uq_account_email"):
		return apperr.Conflict("Email is already registered")
	case dberr.IsUniqueViolation(err, ""):
		return apperr.Conflict("Account already exists")
	}

	return fmt.Errorf("postgres_user_repo_create_failed: %w", err)
}

// FindByID retrieves a member by primary key.
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	return repository.findOne(context, "id", id, "find_by_id")
}

// FindByUsername retrieves a member by canonical username.
func (repository *PostgresUserRepository) FindByUsername(context context.Context, username string) (*User, error) {
	return repository.findOne(context, "username", username, "find_by_username")
}

// FindByEmail retrieves a member by canonical email.
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	return repository.findOne(context, "email", email, "find_by_email")
}

// FindByExternalID retrieves a member by linked social login subject.
func (repository *PostgresUserRepository) FindByExternalID(context context.Context, externalID string) (*User, error) {
	return repository.findOne(context, "externalid", externalID, "find_by_external_id")
}

// findOne runs a single-row lookup; column is always one of the constants above.
func (repository *PostgresUserRepository) findOne(context context.Context, column, value, action string) (*User, error) {
	query := `SELECT ` + UserColumns + ` FROM users.account WHERE ` + column + ` = $1`

	user, err := ScanUser(repository.db.QueryRow(context, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_%s_failed: %w", action, err)
	}

	return user, nil
}

// LinkExternalID attaches a social login subject to an existing account.
func (repository *PostgresUserRepository) LinkExternalID(context context.Context, userID, externalID string) error {
	const query = `UPDATE users.account SET externalid = $2, updatedat = now() WHERE id = $1`

	tag, err := repository.db.Exec(context, query, userID, externalID)
	if err != nil {
		if dberr.IsUniqueViolation(err, "uq_account_externalid") {
			return apperr.Conflict("Social account is already linked")
		}
		return fmt.Errorf("postgres_user_repo_link_external_id_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User")
	}

	return nil
}

// UpdatePassword replaces only the user's password hash.
func (repository *PostgresUserRepository) UpdatePassword(context context.Context, userID, passwordHash string) error {
	const query = `UPDATE users.account SET passwordhash = $2, updatedat = now() WHERE id = $1`

	tag, err := repository.db.Exec(context, query, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_password_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User")
	}

	return nil
}

/*
LockByID loads a member and holds its row lock until the surrounding transaction ends.

Only meaningful when the repository was built over a [pgx.Tx].
*/
func (repository *PostgresUserRepository) LockByID(context context.Context, id string) (*User, error) {
	query := `SELECT ` + UserColumns + ` FROM users.account WHERE id = $1 FOR UPDATE`

	user, err := ScanUser(repository.db.QueryRow(context, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_user_repo_lock_failed: %w", err)
	}

	return user, nil
}

// UpdateRole stores a new role together with the trainer introduction.
func (repository *PostgresUserRepository) UpdateRole(context context.Context, userID string, to role.Role, introduction string) error {
	const query = `UPDATE users.account SET role = $2, introduction = $3, updatedat = now() WHERE id = $1`

	tag, err := repository.db.Exec(context, query, userID, to, introduction)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_role_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User")
	}

	return nil
}

/*
Delete removes the account row.

Promotion requests and trainer likes go with it through ON DELETE CASCADE.
*/
func (repository *PostgresUserRepository) Delete(context context.Context, id string) error {
	tag, err := repository.db.Exec(context, `DELETE FROM users.account WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_delete_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User")
	}

	return nil
}

/*
ListByRole pages the accounts holding a role.

Parameters:
  - context: context.Context
  - r: role.Role
  - params: pagination.Params (Sort picks createdat ASC or DESC)

Returns:
  - []*User: The page
  - int: Total matching rows
  - error: Query failures
*/
func (repository *PostgresUserRepository) ListByRole(context context.Context, r role.Role, params pagination.Params) ([]*User, int, error) {
	var total int
	if err := repository.db.QueryRow(context, `SELECT count(*) FROM users.account WHERE role = $1`, r).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_user_repo_count_by_role_failed: %w", err)
	}

	order := "createdat ASC, id ASC"
	if params.Descending() {
		order = "createdat DESC, id DESC"
	}

	query := `SELECT ` + UserColumns + ` FROM users.account WHERE role = $1 ORDER BY ` + order + ` LIMIT $2 OFFSET $3`

	rows, err := repository.db.Query(context, query, r, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_user_repo_list_by_role_failed: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := ScanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres_user_repo_scan_failed: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_user_repo_rows_failed: %w", err)
	}

	return users, total, nil
}

// ScanUser hydrates a [User] from a row selected with [UserColumns].
func ScanUser(row pgx.Row) (*User, error) {
	user := &User{}
	var externalID *string

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Nickname,
		&user.Introduction,
		&externalID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if externalID != nil {
		user.ExternalID = *externalID
	}

	return user, nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// # Admin Repository

const adminColumns = `id, username, email, passwordhash, createdat, updatedat`

// PostgresAdminRepository implements [AdminRepository] on users.admin.
type PostgresAdminRepository struct {
	db postgres.DBTX
}

// NewAdminRepository creates an admin repository over a pool or a transaction.
func NewAdminRepository(db postgres.DBTX) *PostgresAdminRepository {
	return &PostgresAdminRepository{db: db}
}

// Create persists a new administrator account.
func (repository *PostgresAdminRepository) Create(context context.Context, admin *Admin) error {
	const query = `
		INSERT INTO users.admin (id, username, email, passwordhash, createdat, updatedat)
		VALUES ($1, $2, $3, $4, $5, $6)`

	now := time.Now().UTC()
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = now
	}
	admin.UpdatedAt = now

	_, err := repository.db.Exec(context, query,
		admin.ID, admin.Username, admin.Email, admin.PasswordHash, admin.CreatedAt, admin.UpdatedAt)

	switch {
	case err == nil:
		return nil
	case dberr.IsUniqueViolation(err, "uq_admin_username"):
		return apperr.Conflict("Username is already taken")
	case dberr.IsUniqueViolation(err, "uq_admin_email"):
		return apperr.Conflict("Email is already registered")
	}

	return dberr.Wrap(err, "Admin", "postgres_admin_repo_create_failed")
}

func (repository *PostgresAdminRepository) FindByID(context context.Context, id string) (*Admin, error) {
	return repository.findOne(context, "id", id, "find_by_id")
}

func (repository *PostgresAdminRepository) FindByUsername(context context.Context, username string) (*Admin, error) {
	return repository.findOne(context, "username", username, "find_by_username")
}

func (repository *PostgresAdminRepository) FindByEmail(context context.Context, email string) (*Admin, error) {
	return repository.findOne(context, "email", email, "find_by_email")
}

func (repository *PostgresAdminRepository) findOne(context context.Context, column, value, action string) (*Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM users.admin WHERE ` + column + ` = $1`

	admin := &Admin{}
	err := repository.db.QueryRow(context, query, value).Scan(
		&admin.ID,
		&admin.Username,
		&admin.Email,
		&admin.PasswordHash,
		&admin.CreatedAt,
		&admin.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Admin")
		}
		return nil, fmt.Errorf("postgres_admin_repo_%s_failed: %w", action, err)
	}

	return admin, nil
}

// UpdatePassword replaces only the administrator's password hash.
func (repository *PostgresAdminRepository) UpdatePassword(context context.Context, adminID, passwordHash string) error {
	tag, err := repository.db.Exec(context,
		`UPDATE users.admin SET passwordhash = $2, updatedat = now() WHERE id = $1`, adminID, passwordHash)
	if err != nil {
		return fmt.Errorf("postgres_admin_repo_update_password_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Admin")
	}

	return nil
}

// # Session Store

// PostgresSessionStore implements [SessionStore] on users.refreshsession.
type PostgresSessionStore struct {
	db postgres.DBTX
}

// NewSessionStore creates a Postgres-backed refresh session store.
func NewSessionStore(db postgres.DBTX) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

/*
Save upserts the principal's session.

The primary key is (principalkind, principalid), so concurrent logins of the
same principal serialize on the row and the last statement wins.
*/
func (store *PostgresSessionStore) Save(context context.Context, session RefreshSession) error {
	const query = `
		INSERT INTO users.refreshsession (principalkind, principalid, tokendigest, expiresat, createdat)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (principalkind, principalid) DO UPDATE
		SET tokendigest = EXCLUDED.tokendigest,
		    expiresat   = EXCLUDED.expiresat,
		    createdat   = EXCLUDED.createdat`

	_, err := store.db.Exec(context, query,
		session.Principal.Kind,
		session.Principal.ID,
		session.TokenDigest,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_session_store_save_failed: %w", err)
	}

	return nil
}

// FindByValue looks a session up by token digest.
func (store *PostgresSessionStore) FindByValue(context context.Context, digest string) (*RefreshSession, error) {
	const query = `
		SELECT principalkind, principalid, tokendigest, expiresat, createdat
		FROM users.refreshsession
		WHERE tokendigest = $1`

	session := &RefreshSession{}
	err := store.db.QueryRow(context, query, digest).Scan(
		&session.Principal.Kind,
		&session.Principal.ID,
		&session.TokenDigest,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Refresh session")
		}
		return nil, fmt.Errorf("postgres_session_store_find_failed: %w", err)
	}

	return session, nil
}

// Rotate replaces the digest only if the live session still holds previousDigest.
func (store *PostgresSessionStore) Rotate(context context.Context, previousDigest string, next RefreshSession) error {
	const query = `
		UPDATE users.refreshsession
		SET tokendigest = $4, expiresat = $5, createdat = $6
		WHERE principalkind = $1 AND principalid = $2 AND tokendigest = $3`

	tag, err := store.db.Exec(context, query,
		next.Principal.Kind,
		next.Principal.ID,
		previousDigest,
		next.TokenDigest,
		next.ExpiresAt,
		next.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_session_store_rotate_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.InvalidSession()
	}

	return nil
}

// Invalidate deletes the principal's session, if any.
func (store *PostgresSessionStore) Invalidate(context context.Context, principal PrincipalRef) error {
	const query = `DELETE FROM users.refreshsession WHERE principalkind = $1 AND principalid = $2`

	if _, err := store.db.Exec(context, query, principal.Kind, principal.ID); err != nil {
		return fmt.Errorf("postgres_session_store_invalidate_failed: %w", err)
	}

	return nil
}
