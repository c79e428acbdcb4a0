// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package promotion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/platform/dberr"
	"github.com/taibuivan/fitclub/internal/platform/postgres"
	"github.com/taibuivan/fitclub/internal/users/auth"
	"github.com/taibuivan/fitclub/internal/users/role"
	"github.com/taibuivan/fitclub/pkg/pagination"
)

// PostgresStore implements [Store] on the users schema.
type PostgresStore struct {
	pool *pgxpool.Pool
	db   postgres.DBTX

	// accounts runs the shared account statements on the same connection or transaction.
	accounts *auth.PostgresUserRepository
}

// NewPostgresStore creates a store backed by the pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, db: pool, accounts: auth.NewUserRepository(pool)}
}

// InTx implements [Store] with a read committed transaction.
func (store *PostgresStore) InTx(context context.Context, fn func(repository Repository) error) error {
	return postgres.InTx(context, store.pool, func(tx pgx.Tx) error {
		return fn(&PostgresStore{pool: store.pool, db: tx, accounts: auth.NewUserRepository(tx)})
	})
}

// # Requests

const requestColumns = `r.id, r.userid, a.username, r.introduction, r.createdat`

// CreateRequest inserts a pending request. The unique constraint on userid backs the duplicate check.
func (store *PostgresStore) CreateRequest(context context.Context, request *Request) error {
	const query = `
		INSERT INTO users.promotionrequest (id, userid, introduction, createdat)
		VALUES ($1, $2, $3, $4)`

	_, err := store.db.Exec(context, query, request.ID, request.UserID, request.Introduction, request.CreatedAt)

	switch {
	case err == nil:
		return nil
	case dberr.IsUniqueViolation(err, "uq_promotionrequest_userid"):
		return apperr.DuplicateRequest("A promotion request is already pending")
	}

	return dberr.Wrap(err, "Promotion request", "create")
}

// FindRequest returns a request by id with a plain read.
func (store *PostgresStore) FindRequest(context context.Context, requestID string) (*Request, error) {
	return store.findOne(context, "id", requestID, "find")
}

// FindRequestByUser returns the pending request of a member.
func (store *PostgresStore) FindRequestByUser(context context.Context, userID string) (*Request, error) {
	return store.findOne(context, "userid", userID, "find_by_user")
}

func (store *PostgresStore) findOne(context context.Context, column, value, action string) (*Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM users.promotionrequest r
		JOIN users.account a ON a.id = r.userid
		WHERE r.` + column + ` = $1`

	request, err := scanRequest(store.db.QueryRow(context, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Promotion request")
		}
		return nil, fmt.Errorf("postgres_promotion_repo_%s_failed: %w", action, err)
	}

	return request, nil
}

/*
DeleteRequest removes a request by id and returns it.

DELETE ... RETURNING takes the row lock, so a concurrent approval waits for this
transaction and then finds no row. Callers inside a transaction lock the member
first with LockUser so every path takes account before request.
*/
func (store *PostgresStore) DeleteRequest(context context.Context, requestID string) (*Request, error) {
	return store.deleteOne(context, "id", requestID, "delete")
}

// DeleteRequestByUser removes the request of a member and returns it.
func (store *PostgresStore) DeleteRequestByUser(context context.Context, userID string) (*Request, error) {
	return store.deleteOne(context, "userid", userID, "delete_by_user")
}

func (store *PostgresStore) deleteOne(context context.Context, column, value, action string) (*Request, error) {
	query := `
		WITH removed AS (
			DELETE FROM users.promotionrequest WHERE ` + column + ` = $1
			RETURNING id, userid, introduction, createdat
		)
		SELECT r.id, r.userid, a.username, r.introduction, r.createdat
		FROM removed r
		JOIN users.account a ON a.id = r.userid`

	request, err := scanRequest(store.db.QueryRow(context, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Promotion request")
		}
		return nil, fmt.Errorf("postgres_promotion_repo_%s_failed: %w", action, err)
	}

	return request, nil
}

// ListPending pages the requests by insertion order.
func (store *PostgresStore) ListPending(context context.Context, params pagination.Params) ([]*Request, int, error) {
	var total int
	if err := store.db.QueryRow(context, `SELECT count(*) FROM users.promotionrequest`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_promotion_repo_count_failed: %w", err)
	}

	order := "r.createdat ASC, r.id ASC"
	if params.Descending() {
		order = "r.createdat DESC, r.id DESC"
	}

	query := `
		SELECT ` + requestColumns + `
		FROM users.promotionrequest r
		JOIN users.account a ON a.id = r.userid
		ORDER BY ` + order + `
		LIMIT $1 OFFSET $2`

	rows, err := store.db.Query(context, query, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_promotion_repo_list_failed: %w", err)
	}
	defer rows.Close()

	var requests []*Request
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres_promotion_repo_scan_failed: %w", err)
		}
		requests = append(requests, request)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_promotion_repo_rows_failed: %w", err)
	}

	return requests, total, nil
}

func scanRequest(row pgx.Row) (*Request, error) {
	request := &Request{Status: StatusPending}
	err := row.Scan(&request.ID, &request.UserID, &request.Username, &request.Introduction, &request.CreatedAt)
	if err != nil {
		return nil, err
	}
	return request, nil
}

// # Accounts

// LockUser selects the member row FOR UPDATE.
func (store *PostgresStore) LockUser(context context.Context, userID string) (*auth.User, error) {
	return store.accounts.LockByID(context, userID)
}

// UpdateRole implements [Repository].
func (store *PostgresStore) UpdateRole(context context.Context, userID string, to role.Role, introduction string) error {
	return store.accounts.UpdateRole(context, userID, to, introduction)
}

// # Likes

// AddLike inserts a like; a second like of the same trainer is a Conflict.
func (store *PostgresStore) AddLike(context context.Context, userID, trainerID string) error {
	const query = `INSERT INTO users.trainerlike (userid, trainerid) VALUES ($1, $2)`

	_, err := store.db.Exec(context, query, userID, trainerID)
	if err != nil {
		return dberr.Wrap(err, "Trainer like", "create")
	}
	return nil
}

// RemoveLike deletes a like.
func (store *PostgresStore) RemoveLike(context context.Context, userID, trainerID string) error {
	tag, err := store.db.Exec(context, `DELETE FROM users.trainerlike WHERE userid = $1 AND trainerid = $2`, userID, trainerID)
	if err != nil {
		return fmt.Errorf("postgres_promotion_repo_remove_like_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Trainer like")
	}

	return nil
}

// DeleteLikesOf removes every like pointing at a trainer.
func (store *PostgresStore) DeleteLikesOf(context context.Context, trainerID string) error {
	if _, err := store.db.Exec(context, `DELETE FROM users.trainerlike WHERE trainerid = $1`, trainerID); err != nil {
		return fmt.Errorf("postgres_promotion_repo_delete_likes_failed: %w", err)
	}
	return nil
}

// ListLikedTrainers pages the trainers a member likes in the order they were liked.
func (store *PostgresStore) ListLikedTrainers(context context.Context, userID string, params pagination.Params) ([]*auth.User, int, error) {
	var total int
	if err := store.db.QueryRow(context, `SELECT count(*) FROM users.trainerlike WHERE userid = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_promotion_repo_count_likes_failed: %w", err)
	}

	order := "l.createdat ASC, l.trainerid ASC"
	if params.Descending() {
		order = "l.createdat DESC, l.trainerid DESC"
	}

	query := `
		SELECT ` + prefixed("a.", auth.UserColumns) + `
		FROM users.trainerlike l
		JOIN users.account a ON a.id = l.trainerid
		WHERE l.userid = $1
		ORDER BY ` + order + `
		LIMIT $2 OFFSET $3`

	rows, err := store.db.Query(context, query, userID, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_promotion_repo_list_likes_failed: %w", err)
	}
	defer rows.Close()

	var trainers []*auth.User
	for rows.Next() {
		trainer, err := auth.ScanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres_promotion_repo_scan_failed: %w", err)
		}
		trainers = append(trainers, trainer)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_promotion_repo_rows_failed: %w", err)
	}

	return trainers, total, nil
}

// prefixed qualifies every column of a comma separated list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, column := range parts {
		parts[i] = alias + strings.TrimSpace(column)
	}
	return strings.Join(parts, ", ")
}
