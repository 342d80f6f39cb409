// Package boiledrepos implements the ledger repository on postgres with sqlboiler raw queries.
package boiledrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/vidyalaya/core"
	"github.com/trezcool/vidyalaya/core/ledger"
)

type ledgerRow struct {
	StudentID string    `boil:"student_id"`
	Year      int       `boil:"year"`
	Data      null.JSON `boil:"data"`
	UpdatedAt null.Time `boil:"updated_at"`
}

type ledgerRepository struct {
	exec core.DBExecutor
}

var _ ledger.Repository = (*ledgerRepository)(nil) // interface compliance check

func NewLedgerRepository(exec core.DBExecutor) *ledgerRepository {
	return &ledgerRepository{exec: exec}
}

func (repo ledgerRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	return core.ExecOrDefault(repo.exec, svcExec)
}

func (repo ledgerRepository) GetLedgerDocument(ctx context.Context, studentID string, year int, exec ...core.DBExecutor) ([]byte, error) {
	if _, err := uuid.Parse(studentID); err != nil {
		return nil, ledger.ErrNoDocument
	}

	var row ledgerRow
	err := queries.Raw(
		"SELECT student_id, year, data, updated_at FROM ledgers WHERE student_id = $1 AND year = $2",
		studentID, year,
	).Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return nil, ledger.ErrNoDocument
		}
		return nil, errors.Wrap(err, "finding ledger")
	}
	if !row.Data.Valid {
		return nil, nil
	}
	return row.Data.JSON, nil
}

func (repo ledgerRepository) SaveLedgerDocument(ctx context.Context, studentID string, year int, doc []byte, exec ...core.DBExecutor) error {
	_, err := queries.Raw(
		"INSERT INTO ledgers (student_id, year, data, updated_at) VALUES ($1, $2, $3::jsonb, $4) "+
			"ON CONFLICT (student_id, year) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at",
		studentID, year, string(doc), null.TimeFrom(time.Now().UTC()),
	).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return errors.Wrap(err, "saving ledger")
	}
	return nil
}
