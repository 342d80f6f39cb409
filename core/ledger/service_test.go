package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/vidyalaya/core"
	"github.com/trezcool/vidyalaya/core/grade"
	"github.com/trezcool/vidyalaya/core/ledger"
	"github.com/trezcool/vidyalaya/core/student"
	logsvc "github.com/trezcool/vidyalaya/services/logger"
	inmemdb "github.com/trezcool/vidyalaya/storage/database/inmem"
	testutil "github.com/trezcool/vidyalaya/tests"
)

type fixedRates map[grade.Level]ledger.Rates

func (f fixedRates) Rates(_ context.Context, lvl grade.Level) (ledger.Rates, error) {
	return f[lvl], nil
}

func setup(t *testing.T) (*ledger.Service, ledger.Repository, student.Student) {
	t.Helper()
	db := inmemdb.NewDB()
	students := inmemdb.NewStudentRepository(db)
	repo := inmemdb.NewLedgerRepository(db)
	fees := fixedRates{
		grade.Three: {
			AdmissionFee: decimal.NewFromInt(5000),
			MonthlyFee:   decimal.NewFromInt(1500),
			ComputerFee:  decimal.NewFromInt(300),
		},
	}
	svc := ledger.NewService(repo, students, fees, logsvc.NewNopLogger(), core.NewTestConfig())
	st := testutil.CreateStudent(t, students, "Ram Thapa", grade.Three, "A", "9800000001")
	return svc, repo, st
}

func amounts(admission, monthly, computer int64) ledger.Entry {
	return ledger.Entry{
		AdmissionFee: decimal.NewFromInt(admission),
		MonthlyFee:   decimal.NewFromInt(monthly),
		ComputerFee:  decimal.NewFromInt(computer),
	}
}

func TestService_GetLedger(t *testing.T) {
	svc, repo, st := setup(t)
	ctx := context.Background()

	t.Run("missing ledger is all zero and not persisted", func(t *testing.T) {
		led, err := svc.GetLedger(ctx, st.ID, 2081)
		require.NoError(t, err)
		assert.Equal(t, st.ID, led.StudentID)
		for _, e := range led.Months {
			assert.True(t, e.IsZero())
		}
		_, err = repo.GetLedgerDocument(ctx, st.ID, 2081)
		assert.Equal(t, ledger.ErrNoDocument, err)
	})

	t.Run("unknown student", func(t *testing.T) {
		_, err := svc.GetLedger(ctx, "nope", 2081)
		assert.Equal(t, student.ErrNotFound, errors.Cause(err))
	})

	t.Run("bad year", func(t *testing.T) {
		_, err := svc.GetLedger(ctx, st.ID, 81)
		assert.True(t, core.IsValidationError(err))
	})

	t.Run("corrupt document is repaired on read", func(t *testing.T) {
		require.NoError(t, repo.SaveLedgerDocument(ctx, st.ID, 2080, []byte(`["{","}"]`)))
		led, err := svc.GetLedger(ctx, st.ID, 2080)
		require.NoError(t, err)
		for _, e := range led.Months {
			assert.True(t, e.IsZero())
		}
	})
}

func TestService_UpdateMonth(t *testing.T) {
	svc, repo, st := setup(t)
	ctx := context.Background()

	_, err := svc.UpdateMonth(ctx, st.ID, 2081, 0, amounts(5000, 1500, 300))
	require.NoError(t, err)

	led, err := svc.UpdateMonth(ctx, st.ID, 2081, 2, amounts(0, 1500, 300))
	require.NoError(t, err)
	assert.True(t, amounts(5000, 1500, 300).Equal(led.Months[0]), "other months are carried over")
	assert.True(t, amounts(0, 1500, 300).Equal(led.Months[2]))

	stored, err := svc.GetLedger(ctx, st.ID, 2081)
	require.NoError(t, err)
	for i := range led.Months {
		assert.True(t, led.Months[i].Equal(stored.Months[i]))
	}

	t.Run("corrupt document keeps only the update", func(t *testing.T) {
		require.NoError(t, repo.SaveLedgerDocument(ctx, st.ID, 2079, []byte(`{"0":"x","1":"y"}`)))
		led, err := svc.UpdateMonth(ctx, st.ID, 2079, 5, amounts(0, 1000, 0))
		require.NoError(t, err)
		for i, e := range led.Months {
			if i == 5 {
				assert.True(t, amounts(0, 1000, 0).Equal(e))
			} else {
				assert.True(t, e.IsZero())
			}
		}
		doc, err := repo.GetLedgerDocument(ctx, st.ID, 2079)
		require.NoError(t, err)
		assert.False(t, ledger.Decode(doc).Repaired)
	})

	t.Run("legacy keys of other months are kept", func(t *testing.T) {
		require.NoError(t, repo.SaveLedgerDocument(ctx, st.ID, 2078,
			[]byte(`{"Baishakh":{"admissionFee":1000,"monthlyFee":500,"comp_fee":100}}`)))
		bhadra, err := ledger.ParseMonth("Bhadra")
		require.NoError(t, err)

		led, err := svc.UpdateMonth(ctx, st.ID, 2078, bhadra, amounts(0, 500, 100))
		require.NoError(t, err)
		assert.True(t, amounts(1000, 500, 100).Equal(led.Months[0]))
		assert.True(t, amounts(0, 500, 100).Equal(led.Months[bhadra]))

		stored, err := svc.GetLedger(ctx, st.ID, 2078)
		require.NoError(t, err)
		assert.True(t, amounts(1000, 500, 100).Equal(stored.Months[0]))
		assert.True(t, amounts(0, 500, 100).Equal(stored.Months[bhadra]))
	})

	t.Run("negative amount", func(t *testing.T) {
		_, err := svc.UpdateMonth(ctx, st.ID, 2081, 1, amounts(0, -1, 0))
		assert.True(t, core.IsValidationError(err))
	})

	t.Run("unknown month", func(t *testing.T) {
		_, err := svc.UpdateMonth(ctx, st.ID, 2081, 12, amounts(0, 1, 0))
		assert.Equal(t, ledger.ErrUnknownMonth, err)
	})

	t.Run("unknown student", func(t *testing.T) {
		_, err := svc.UpdateMonth(ctx, "nope", 2081, 1, amounts(0, 1, 0))
		assert.Equal(t, student.ErrNotFound, errors.Cause(err))
	})
}

func TestService_PatchMonth(t *testing.T) {
	svc, _, st := setup(t)
	ctx := context.Background()

	_, err := svc.UpdateMonth(ctx, st.ID, 2081, 4, amounts(5000, 1500, 0))
	require.NoError(t, err)

	computer := decimal.NewFromInt(300)
	led, err := svc.PatchMonth(ctx, st.ID, 2081, 4, ledger.EntryPatch{ComputerFee: &computer})
	require.NoError(t, err)
	assert.True(t, amounts(5000, 1500, 300).Equal(led.Months[4]))

	negative := decimal.NewFromInt(-300)
	_, err = svc.PatchMonth(ctx, st.ID, 2081, 4, ledger.EntryPatch{ComputerFee: &negative})
	assert.True(t, core.IsValidationError(err))
}

func TestService_ConcurrentUpdatesKeepEveryMonth(t *testing.T) {
	svc, _, st := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for m := 0; m < ledger.MonthsInYear; m++ {
		wg.Add(1)
		go func(m int) {
			defer wg.Done()
			_, err := svc.UpdateMonth(ctx, st.ID, 2081, ledger.Month(m), amounts(0, int64(100+m), 0))
			assert.NoError(t, err)
		}(m)
	}
	wg.Wait()

	led, err := svc.GetLedger(ctx, st.ID, 2081)
	require.NoError(t, err)
	for m, e := range led.Months {
		assert.True(t, decimal.NewFromInt(int64(100+m)).Equal(e.MonthlyFee), ledger.Month(m).String())
	}
}

func TestService_LockTimeout(t *testing.T) {
	db := inmemdb.NewDB()
	students := inmemdb.NewStudentRepository(db)
	conf := core.NewTestConfig()
	conf.Ledger.LockTimeout = 20 * time.Millisecond
	repo := &slowRepository{
		Repository: inmemdb.NewLedgerRepository(db),
		delay:      200 * time.Millisecond,
		saving:     make(chan struct{}),
	}
	svc := ledger.NewService(repo, students, fixedRates{}, logsvc.NewNopLogger(), conf)
	st := testutil.CreateStudent(t, students, "Sita Rai", grade.One, "B", "9800000002")

	ctx := context.Background()
	done := make(chan error)
	go func() {
		_, err := svc.UpdateMonth(ctx, st.ID, 2081, 0, amounts(0, 1, 0))
		done <- err
	}()
	<-repo.saving // first update holds the lock

	_, err := svc.UpdateMonth(ctx, st.ID, 2081, 1, amounts(0, 2, 0))
	assert.Equal(t, ledger.ErrInProgress, err)
	assert.NoError(t, <-done)
}

type slowRepository struct {
	ledger.Repository
	delay  time.Duration
	once   sync.Once
	saving chan struct{}
}

func (r *slowRepository) SaveLedgerDocument(ctx context.Context, studentID string, year int, doc []byte, exec ...core.DBExecutor) error {
	r.once.Do(func() { close(r.saving) })
	time.Sleep(r.delay)
	return r.Repository.SaveLedgerDocument(ctx, studentID, year, doc, exec...)
}

func TestService_Summary(t *testing.T) {
	svc, _, st := setup(t)
	ctx := context.Background()

	_, err := svc.UpdateMonth(ctx, st.ID, 2081, 0, amounts(5000, 1500, 300))
	require.NoError(t, err)
	_, err = svc.UpdateMonth(ctx, st.ID, 2081, 1, amounts(0, 1500, 300))
	require.NoError(t, err)

	sum, err := svc.Summary(ctx, st.ID, 2081)
	require.NoError(t, err)
	assert.Equal(t, "3", sum.Grade)
	assert.True(t, decimal.NewFromInt(8600).Equal(sum.TotalPaid))
	// 5000 + 1500*12 + 300*12 - 8600
	assert.True(t, decimal.NewFromInt(18000).Equal(sum.Due))
}
