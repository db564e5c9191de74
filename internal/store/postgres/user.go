package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/quizshare/internal/domain"
)

const userColumns = `user_id, username, email, password_hash, first_name, last_name, create_time`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.UserID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.CreateTime)
	return u, err
}

func (t *pgTx) InsertUser(ctx context.Context, u domain.User) error {
	const stmt = `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7);`

	_, err := t.tx.Exec(ctx, stmt, u.UserID, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.CreateTime)
	return mapErr("insert user", err)
}

func (t *pgTx) GetUser(ctx context.Context, userID string) (domain.User, error) {
	const stmt = `SELECT ` + userColumns + ` FROM users WHERE user_id = $1;`

	u, err := scanUser(t.tx.QueryRow(ctx, stmt, userID))
	return u, mapErr("get user", err)
}

func (t *pgTx) FindUser(ctx context.Context, identifier string) (domain.User, error) {
	stmt := `SELECT ` + userColumns + ` FROM users WHERE lower(username) = lower($1);`
	if strings.Contains(identifier, "@") {
		stmt = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1);`
	}

	u, err := scanUser(t.tx.QueryRow(ctx, stmt, identifier))
	return u, mapErr("find user", err)
}

func (t *pgTx) UpdateUser(ctx context.Context, u domain.User) error {
	const stmt = `
UPDATE users
SET email = $2, password_hash = $3, first_name = $4, last_name = $5
WHERE user_id = $1;`

	return t.exec(ctx, "update user", stmt, u.UserID, u.Email, u.PasswordHash, u.FirstName, u.LastName)
}
