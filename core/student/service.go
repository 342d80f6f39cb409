package student

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/vidyalaya/core"
	"github.com/trezcool/vidyalaya/core/grade"
)

var ErrNotFound = errors.New("student not found")

type (
	Repository interface {
		CreateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		// UpsertStudent inserts s, or updates the student sharing its natural key.
		// An existing student keeps its ID, Email and CreatedAt.
		UpsertStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (st Student, created bool, err error)
		GetStudentByID(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		// QueryStudents applies AND operation on available QueryFilter fields.
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Student, error)
		UpdateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		// LockClass returns the students of `lvl` in default order and locks their rows
		// until the transaction of `exec` ends.
		LockClass(ctx context.Context, lvl grade.Level, exec ...core.DBExecutor) ([]Student, error)
		DeleteStudentsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error
		CountStudentsByGrade(ctx context.Context, exec ...core.DBExecutor) (map[grade.Level]int, error)
		// SetGrade moves every student in `from` to `to` and returns how many moved.
		SetGrade(ctx context.Context, from, to grade.Level, exec ...core.DBExecutor) (int, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, ns NewStudent) (Student, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		GetByID(ctx context.Context, id string) (Student, error)
		Update(ctx context.Context, id string, us UpdateStudent) (Student, error)
		Delete(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo        Repository
		emailDomain string
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{repo: repo, emailDomain: conf.School.EmailDomain}
}

// Create expects a validated NewStudent.
func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	now := time.Now().UTC()
	st := Student{
		Name:        ns.Name,
		Grade:       grade.Level(ns.Grade),
		Section:     ns.Section,
		Address:     ns.Address,
		FatherName:  ns.FatherName,
		MotherName:  ns.MotherName,
		FatherPhone: ns.FatherPhone,
		MotherPhone: ns.MotherPhone,
		Email:       GenerateEmail(ns.Name, svc.emailDomain),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateStudent(ctx, st)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	if len(ordering) == 0 {
		ordering = DefaultOrdering
	}
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

// Update expects an UpdateStudent validated against the current record.
func (svc *Service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	st := Student{
		ID:          id,
		Name:        us.Name,
		Grade:       grade.Level(us.Grade),
		Section:     us.Section,
		Address:     us.Address,
		FatherName:  us.FatherName,
		MotherName:  us.MotherName,
		FatherPhone: us.FatherPhone,
		MotherPhone: us.MotherPhone,
		UpdatedAt:   time.Now().UTC(),
	}
	return svc.repo.UpdateStudent(ctx, st)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteStudentsByID(ctx, ids)
}
