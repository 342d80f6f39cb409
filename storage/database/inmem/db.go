package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/vidyalaya/core"
	"github.com/trezcool/vidyalaya/core/student"
)

type (
	// DB is a process-local store for tests and demos.
	DB struct {
		student *studentTable
		ledger  *ledgerTable
	}

	studentTable struct {
		mutex sync.RWMutex
		table map[string]*student.Student
	}

	ledgerKey struct {
		studentID string
		year      int
	}

	ledgerTable struct {
		mutex sync.RWMutex
		table map[ledgerKey][]byte
	}
)

var _ core.Transactor = (*DB)(nil)

func NewDB() *DB {
	return &DB{
		student: &studentTable{table: make(map[string]*student.Student)},
		ledger:  &ledgerTable{table: make(map[ledgerKey][]byte)},
	}
}

// WithinTx runs fn with a nil executor; every repository call is individually atomic.
func (db *DB) WithinTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(nil)
}
