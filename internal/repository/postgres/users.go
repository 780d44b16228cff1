package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/repository"
)

const userColumns = `id, username, role, status, balance, owner_id, quarantined, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&role,
		&u.Status,
		&u.Balance,
		&u.OwnerID,
		&u.Quarantined,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if u.Role, err = model.ParseRole(role); err != nil {
		return nil, err
	}
	return &u, nil
}

func collectUsers(rows pgx.Rows) ([]*model.User, error) {
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// CreateUser inserts a user with a zero balance.
func (q *queries) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	const query = `
		INSERT INTO users (username, role, status, balance, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, NOW(), NOW())
		RETURNING ` + userColumns

	status := u.Status
	if status == "" {
		status = model.UserActive
	}
	user, err := scanUser(q.db.QueryRow(ctx, query, u.Username, u.Role.String(), status, u.OwnerID))
	if err != nil {
		return nil, mapError(err, "create user")
	}
	return user, nil
}

// GetUser retrieves a user by id.
func (q *queries) GetUser(ctx context.Context, id int64) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(q.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "get user")
	}
	return user, nil
}

// GetUserForUpdate retrieves a user and locks its row for the rest of the transaction.
func (q *queries) GetUserForUpdate(ctx context.Context, id int64) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`

	user, err := scanUser(q.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "lock user")
	}
	return user, nil
}

// ListUsersByOwner returns the players owned by a subadmin.
func (q *queries) ListUsersByOwner(ctx context.Context, ownerID int64) ([]*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE owner_id = $1 ORDER BY id`

	rows, err := q.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, mapError(err, "list users")
	}
	return collectUsers(rows)
}

// SetUserStatus updates the account status.
func (q *queries) SetUserStatus(ctx context.Context, id int64, status model.UserStatus) error {
	const query = `UPDATE users SET status = $2, updated_at = NOW() WHERE id = $1`

	tag, err := q.db.Exec(ctx, query, id, status)
	if err != nil {
		return mapError(err, "set user status")
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AddBalance adds delta to the balance in a single statement.
// The balance >= 0 check constraint rejects overdrafts.
func (q *queries) AddBalance(ctx context.Context, id int64, delta int64) (int64, error) {
	const query = `
		UPDATE users
		SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING balance
	`

	var balance int64
	if err := q.db.QueryRow(ctx, query, id, delta).Scan(&balance); err != nil {
		return 0, mapError(err, "update balance")
	}
	return balance, nil
}

// SetBalance sets the cached balance to an exact value.
func (q *queries) SetBalance(ctx context.Context, id int64, balance int64) error {
	const query = `UPDATE users SET balance = $2, updated_at = NOW() WHERE id = $1`

	tag, err := q.db.Exec(ctx, query, id, balance)
	if err != nil {
		return mapError(err, "set balance")
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetQuarantined records whether balance mutations for the user are halted.
func (q *queries) SetQuarantined(ctx context.Context, id int64, quarantined bool) error {
	const query = `UPDATE users SET quarantined = $2, updated_at = NOW() WHERE id = $1`

	tag, err := q.db.Exec(ctx, query, id, quarantined)
	if err != nil {
		return mapError(err, "set quarantine")
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListQuarantined returns the ids of quarantined users.
func (q *queries) ListQuarantined(ctx context.Context) ([]int64, error) {
	const query = `SELECT id FROM users WHERE quarantined ORDER BY id`

	rows, err := q.db.Query(ctx, query)
	if err != nil {
		return nil, mapError(err, "list quarantined users")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("error iterating quarantined users: %w", err)
	}
	return ids, nil
}
