package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/quizshare/internal/domain"
	"github.com/victornm/quizshare/internal/store"
)

const shareColumns = `share_id, quiz_id, granter_id, grantee_id, permission, share_time`

func scanShare(row pgx.Row) (domain.Share, error) {
	var s domain.Share
	err := row.Scan(&s.ShareID, &s.QuizID, &s.GranterID, &s.GranteeID, &s.Permission, &s.ShareTime)
	return s, err
}

func (t *pgTx) UpsertShare(ctx context.Context, s domain.Share) (domain.Share, error) {
	const stmt = `
INSERT INTO shares (` + shareColumns + `)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (quiz_id, grantee_id) DO UPDATE SET permission = EXCLUDED.permission
RETURNING ` + shareColumns + `;`

	res, err := scanShare(t.tx.QueryRow(ctx, stmt, s.ShareID, s.QuizID, s.GranterID, s.GranteeID, string(s.Permission), s.ShareTime))
	return res, mapErr("upsert share", err)
}

func (t *pgTx) GetShare(ctx context.Context, quizID, granteeID string) (domain.Share, error) {
	const stmt = `SELECT ` + shareColumns + ` FROM shares WHERE quiz_id = $1 AND grantee_id = $2;`

	s, err := scanShare(t.tx.QueryRow(ctx, stmt, quizID, granteeID))
	return s, mapErr("get share", err)
}

func (t *pgTx) ListShares(ctx context.Context, f store.ShareFilter) ([]domain.Share, error) {
	const stmt = `
SELECT ` + shareColumns + `
FROM shares
WHERE ($1 = '' OR quiz_id = $1)
	AND ($2 = '' OR granter_id = $2)
	AND ($3 = '' OR grantee_id = $3)
ORDER BY share_time DESC, share_id DESC;`

	rows, err := t.tx.Query(ctx, stmt, f.QuizID, f.GranterID, f.GranteeID)
	if err != nil {
		return nil, mapErr("list shares", err)
	}

	ss, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Share, error) {
		return scanShare(r)
	})
	return ss, mapErr("list shares", err)
}
