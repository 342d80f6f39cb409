package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/vidyalaya/core"
	"github.com/trezcool/vidyalaya/core/grade"
	"github.com/trezcool/vidyalaya/core/student"
)

const (
	MinYear = 2000
	MaxYear = 2200
)

var (
	ErrInProgress = errors.New("another update of this ledger is in progress")

	// ErrNoDocument is returned by repositories when no ledger was ever saved.
	ErrNoDocument = errors.New("ledger document not found")
)

type (
	Repository interface {
		GetLedgerDocument(ctx context.Context, studentID string, year int, exec ...core.DBExecutor) ([]byte, error)
		SaveLedgerDocument(ctx context.Context, studentID string, year int, doc []byte, exec ...core.DBExecutor) error
	}

	// FeeSchedule knows what each grade is charged.
	FeeSchedule interface {
		Rates(ctx context.Context, lvl grade.Level) (Rates, error)
	}

	ServiceInterface interface {
		GetLedger(ctx context.Context, studentID string, year int) (Ledger, error)
		UpdateMonth(ctx context.Context, studentID string, year int, month Month, entry Entry) (Ledger, error)
		PatchMonth(ctx context.Context, studentID string, year int, month Month, patch EntryPatch) (Ledger, error)
		Summary(ctx context.Context, studentID string, year int) (Summary, error)
	}

	Service struct {
		repo        Repository
		students    student.Repository
		fees        FeeSchedule
		logger      core.Logger
		locks       *keyedLocker
		lockTimeout time.Duration
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, students student.Repository, fees FeeSchedule, logger core.Logger, conf *core.Config) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(students, "students"),
		vala.IsNotNil(fees, "fees"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &Service{
		repo:        repo,
		students:    students,
		fees:        fees,
		logger:      logger,
		locks:       newKeyedLocker(),
		lockTimeout: conf.Ledger.LockTimeout,
	}
}

func lockKey(studentID string, year int) string {
	return studentID + "/" + strconv.Itoa(year)
}

func validateYear(year int) error {
	if year < MinYear || year > MaxYear {
		return core.NewValidationError(nil, core.FieldError{
			Field: "year",
			Error: fmt.Sprintf("year must be a Bikram Sambat year between %d and %d", MinYear, MaxYear),
		})
	}
	return nil
}

func validateEntry(e Entry) error {
	var flds []core.FieldError
	for _, f := range []struct {
		name string
		val  decimal.Decimal
	}{
		{"admissionFee", e.AdmissionFee},
		{"monthlyFee", e.MonthlyFee},
		{"computerFee", e.ComputerFee},
	} {
		if f.val.IsNegative() {
			flds = append(flds, core.FieldError{Field: f.name, Error: "amount cannot be negative"})
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

// load reads and decodes a ledger. A missing document is an all-zero ledger.
func (svc *Service) load(ctx context.Context, studentID string, year int) (Ledger, error) {
	led := Ledger{StudentID: studentID, Year: year}

	doc, err := svc.repo.GetLedgerDocument(ctx, studentID, year)
	if err != nil {
		if errors.Cause(err) == ErrNoDocument {
			return led, nil
		}
		return Ledger{}, errors.Wrap(err, "getting ledger document")
	}

	res := Decode(doc)
	if res.Repaired {
		svc.logger.Warn("CorruptionDetected", map[string]interface{}{
			"studentId": studentID,
			"year":      year,
			"reason":    res.Reason(),
		})
	}
	led.Months = res.Months
	return led, nil
}

func (svc *Service) checkStudent(ctx context.Context, studentID string) (student.Student, error) {
	st, err := svc.students.GetStudentByID(ctx, studentID)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "getting student")
	}
	return st, nil
}

// GetLedger returns the student's ledger for `year`. It is never persisted by a read.
func (svc *Service) GetLedger(ctx context.Context, studentID string, year int) (Ledger, error) {
	if err := validateYear(year); err != nil {
		return Ledger{}, err
	}
	if _, err := svc.checkStudent(ctx, studentID); err != nil {
		return Ledger{}, err
	}
	return svc.load(ctx, studentID, year)
}

// UpdateMonth replaces one month's entry. Every other month is saved back untouched.
func (svc *Service) UpdateMonth(ctx context.Context, studentID string, year int, month Month, entry Entry) (Ledger, error) {
	if err := validateEntry(entry); err != nil {
		return Ledger{}, err
	}
	return svc.modifyMonth(ctx, studentID, year, month, func(Entry) Entry { return entry })
}

// PatchMonth changes the set fields of one month's entry.
func (svc *Service) PatchMonth(ctx context.Context, studentID string, year int, month Month, patch EntryPatch) (Ledger, error) {
	if err := validateEntry(patch.Apply(Entry{})); err != nil {
		return Ledger{}, err
	}
	return svc.modifyMonth(ctx, studentID, year, month, patch.Apply)
}

func (svc *Service) modifyMonth(ctx context.Context, studentID string, year int, month Month, modify func(Entry) Entry) (Ledger, error) {
	if !month.Valid() {
		return Ledger{}, ErrUnknownMonth
	}
	if err := validateYear(year); err != nil {
		return Ledger{}, err
	}
	if _, err := svc.checkStudent(ctx, studentID); err != nil {
		return Ledger{}, err
	}

	unlock, err := svc.locks.Lock(ctx, lockKey(studentID, year), svc.lockTimeout)
	if err != nil {
		return Ledger{}, err
	}
	defer unlock()

	led, err := svc.load(ctx, studentID, year)
	if err != nil {
		return Ledger{}, err
	}
	led.Months[month] = modify(led.Months[month])

	doc, err := Encode(led.Months)
	if err != nil {
		return Ledger{}, errors.Wrap(err, "encoding ledger")
	}
	if err = svc.repo.SaveLedgerDocument(ctx, studentID, year, doc); err != nil {
		return Ledger{}, errors.Wrap(err, "saving ledger document")
	}
	return led, nil
}

// Summary totals what was paid and what remains due for the year, at the rates of the student's grade.
func (svc *Service) Summary(ctx context.Context, studentID string, year int) (Summary, error) {
	if err := validateYear(year); err != nil {
		return Summary{}, err
	}
	st, err := svc.checkStudent(ctx, studentID)
	if err != nil {
		return Summary{}, err
	}
	led, err := svc.load(ctx, studentID, year)
	if err != nil {
		return Summary{}, err
	}
	rates, err := svc.fees.Rates(ctx, st.Grade)
	if err != nil {
		return Summary{}, errors.Wrap(err, "getting fee rates")
	}

	paid := led.Months.TotalPaid()
	return Summary{
		StudentID: studentID,
		Year:      year,
		Grade:     st.Grade.String(),
		Rates:     rates,
		TotalPaid: paid,
		Due:       rates.YearlyDue().Sub(paid),
	}, nil
}
