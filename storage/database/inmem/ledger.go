package inmemdb

import (
	"context"

	"github.com/trezcool/vidyalaya/core"
	"github.com/trezcool/vidyalaya/core/ledger"
)

type ledgerRepository struct {
	db *ledgerTable
}

var _ ledger.Repository = (*ledgerRepository)(nil) // interface compliance check

func NewLedgerRepository(db *DB) *ledgerRepository {
	return &ledgerRepository{db: db.ledger}
}

func (repo *ledgerRepository) GetLedgerDocument(ctx context.Context, studentID string, year int, _ ...core.DBExecutor) ([]byte, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	doc, ok := repo.db.table[ledgerKey{studentID, year}]
	if !ok {
		return nil, ledger.ErrNoDocument
	}
	out := make([]byte, len(doc))
	copy(out, doc)
	return out, nil
}

func (repo *ledgerRepository) SaveLedgerDocument(ctx context.Context, studentID string, year int, doc []byte, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored := make([]byte, len(doc))
	copy(stored, doc)
	repo.db.table[ledgerKey{studentID, year}] = stored
	return nil
}
