package promotion

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/vidyalaya/core"
	"github.com/trezcool/vidyalaya/core/access"
	"github.com/trezcool/vidyalaya/core/grade"
	"github.com/trezcool/vidyalaya/core/roster"
	"github.com/trezcool/vidyalaya/core/student"
)

type (
	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		Students   student.Repository
		Transactor core.Transactor
		Archives   ArchiveStore
		Codec      core.SpreadsheetCodec
		Authorizer access.Authorizer
		MailSvc    core.EmailService // optional
	}

	ServiceInterface interface {
		ClassSummary(ctx context.Context) ([]ClassSummary, error)
		StudentsInClass(ctx context.Context, className string) ([]student.Student, error)
		PromoteClass(ctx context.Context, actor access.Principal, secret, className string) (Outcome, error)
		PromoteAll(ctx context.Context, actor access.Principal, secret string) (AllOutcome, error)
		ListArchives(ctx context.Context) ([]ArchiveInfo, error)
		FetchArchive(ctx context.Context, name string) (ArchiveInfo, []byte, error)
	}

	// Engine runs promotions one at a time for the whole process.
	Engine struct {
		conf     *core.Config
		logger   core.Logger
		students student.Repository
		tx       core.Transactor
		archives ArchiveStore
		codec    core.SpreadsheetCodec
		auth     access.Authorizer
		mailSvc  core.EmailService
		now      func() time.Time

		mu sync.Mutex
	}
)

var _ ServiceInterface = (*Engine)(nil)

func NewEngine(deps Deps) *Engine {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "Conf"),
		vala.IsNotNil(deps.Logger, "Logger"),
		vala.IsNotNil(deps.Students, "Students"),
		vala.IsNotNil(deps.Transactor, "Transactor"),
		vala.IsNotNil(deps.Archives, "Archives"),
		vala.IsNotNil(deps.Codec, "Codec"),
		vala.IsNotNil(deps.Authorizer, "Authorizer"),
	).CheckAndPanic()

	return &Engine{
		conf:     deps.Conf,
		logger:   deps.Logger,
		students: deps.Students,
		tx:       deps.Transactor,
		archives: deps.Archives,
		codec:    deps.Codec,
		auth:     deps.Authorizer,
		mailSvc:  deps.MailSvc,
		now:      time.Now,
	}
}

// SetClock replaces the engine clock.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// ClassSummary lists every class that has students, lowest first.
func (e *Engine) ClassSummary(ctx context.Context) ([]ClassSummary, error) {
	counts, err := e.students.CountStudentsByGrade(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "counting students by grade")
	}
	summary := make([]ClassSummary, 0, len(grade.Active))
	for _, lvl := range grade.Active {
		n := counts[lvl]
		if n == 0 {
			continue
		}
		summary = append(summary, ClassSummary{
			CurrentClass: lvl,
			NextClass:    lvl.Next(),
			StudentCount: n,
			CanPromote:   n > 0,
		})
	}
	return summary, nil
}

func (e *Engine) StudentsInClass(ctx context.Context, className string) ([]student.Student, error) {
	lvl, err := grade.ParseActive(className)
	if err != nil {
		return nil, err
	}
	return e.cohort(ctx, lvl)
}

func (e *Engine) cohort(ctx context.Context, lvl grade.Level) ([]student.Student, error) {
	students, err := e.students.QueryStudents(ctx, &student.QueryFilter{Grade: lvl.String()}, student.DefaultOrdering)
	if err != nil {
		return nil, errors.Wrapf(err, "querying class %s", lvl)
	}
	return students, nil
}

// PromoteClass moves every student of `className` to the next class.
// Promoting the pre-graduation class graduates its students into a new archive.
func (e *Engine) PromoteClass(ctx context.Context, actor access.Principal, secret, className string) (Outcome, error) {
	lvl, err := grade.ParseActive(className)
	if err != nil {
		return Outcome{}, err
	}
	if err = e.auth.Authorize(ctx, actor, secret); err != nil {
		e.logger.Warn("promotion denied", map[string]interface{}{"class": lvl.String()}, actor)
		return Outcome{}, err
	}
	if !e.mu.TryLock() {
		return Outcome{}, ErrInProgress
	}
	defer e.mu.Unlock()

	return e.promote(ctx, actor, lvl)
}

// PromoteAll promotes every class, highest first, so nobody moves up twice in one run.
// A failure stops the run; the levels not yet promoted are returned in Remaining.
func (e *Engine) PromoteAll(ctx context.Context, actor access.Principal, secret string) (AllOutcome, error) {
	if err := e.auth.Authorize(ctx, actor, secret); err != nil {
		e.logger.Warn("promotion denied", map[string]interface{}{"class": "all"}, actor)
		return AllOutcome{}, err
	}
	if !e.mu.TryLock() {
		return AllOutcome{}, ErrInProgress
	}
	defer e.mu.Unlock()

	levels := grade.Descending()
	res := AllOutcome{Outcomes: make([]Outcome, 0, len(levels))}
	var promoted int
	for i, lvl := range levels {
		err := ctx.Err()
		var out Outcome
		if err == nil {
			out, err = e.promote(ctx, actor, lvl)
		}
		if err != nil {
			res.Remaining = levels[i:]
			res.Message = fmt.Sprintf("Promotion stopped at class %s: %d students promoted, classes %v remain", lvl, promoted, res.Remaining)
			return res, errors.Wrapf(err, "promoting class %s", lvl)
		}
		promoted += out.PromotedCount
		res.Outcomes = append(res.Outcomes, out)
	}
	res.Success = true
	res.Message = fmt.Sprintf("Promoted %d students", promoted)
	return res, nil
}

// promote expects the engine lock to be held.
func (e *Engine) promote(ctx context.Context, actor access.Principal, lvl grade.Level) (Outcome, error) {
	if lvl == grade.PreGraduation {
		return e.graduate(ctx, actor, lvl)
	}

	out := Outcome{Success: true, CurrentClass: lvl, NextClass: lvl.Next()}
	err := e.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		n, err := e.students.SetGrade(ctx, lvl, out.NextClass, exec)
		out.PromotedCount = n
		return err
	})
	if err != nil {
		return Outcome{}, errors.Wrapf(err, "moving class %s to %s", lvl, out.NextClass)
	}

	if out.PromotedCount == 0 {
		out.Message = fmt.Sprintf("No students in class %s", lvl)
		return out, nil
	}
	out.Message = fmt.Sprintf("Promoted %d students from class %s to class %s", out.PromotedCount, lvl, out.NextClass)
	e.logger.Info(out.Message, map[string]interface{}{"class": lvl.String(), "count": out.PromotedCount}, actor)
	return out, nil
}

// graduate archives the cohort, then removes it from the active store.
// The cohort is read with its rows locked, so exactly the archived students are removed.
// The archive is discarded when the removal does not commit.
func (e *Engine) graduate(ctx context.Context, actor access.Principal, lvl grade.Level) (Outcome, error) {
	out := Outcome{Success: true, CurrentClass: lvl, NextClass: grade.Graduated}

	var cohort []student.Student
	var info ArchiveInfo
	var content []byte
	err := e.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if cohort, err = e.students.LockClass(ctx, lvl, exec); err != nil {
			return errors.Wrapf(err, "querying class %s", lvl)
		}
		if len(cohort) == 0 {
			return nil
		}

		now := e.now()
		year := e.conf.School.CurrentAcademicYear(now)
		content, err = e.codec.Encode(fmt.Sprintf("Graduated %d", year), roster.ExportHeaders, roster.StudentRows(cohort))
		if err != nil {
			return errors.Wrap(err, "encoding graduation archive")
		}

		info, err = e.archives.Create(ctx, ArchiveName(year), content)
		if errors.Cause(err) == ErrArchiveExists {
			info, err = e.archives.Create(ctx, TimestampedArchiveName(year, now), content)
		}
		if err != nil {
			return errors.Wrap(err, "creating graduation archive")
		}

		ids := make([]string, 0, len(cohort))
		for _, s := range cohort {
			ids = append(ids, s.ID)
		}
		return errors.Wrap(e.students.DeleteStudentsByID(ctx, ids, exec), "removing graduated students")
	})
	if err != nil {
		if info.Name != "" {
			if dErr := e.archives.Discard(context.Background(), info.Name); dErr != nil {
				e.logger.Error("discarding graduation archive", dErr, map[string]interface{}{"archive": info.Name})
			}
		}
		return Outcome{}, err
	}
	if len(cohort) == 0 {
		out.Message = fmt.Sprintf("No students in class %s", lvl)
		return out, nil
	}

	out.PromotedCount = len(cohort)
	out.Archive = &info
	out.Message = fmt.Sprintf("Graduated %d students from class %s; archived in %s", len(cohort), lvl, info.Name)
	e.logger.Info(out.Message, map[string]interface{}{"archive": info.Name, "count": len(cohort)}, actor)

	e.notifyGraduation(info, content)
	return out, nil
}

func (e *Engine) notifyGraduation(info ArchiveInfo, content []byte) {
	if e.mailSvc == nil || e.conf.Mail.AdminEmail == "" {
		return
	}
	msg := &core.EmailMessage{
		To:      []mail.Address{{Address: e.conf.Mail.AdminEmail}},
		Subject: fmt.Sprintf("[%s] Graduation archive %s", e.conf.School.Name, info.Name),
		BodyStr: fmt.Sprintf("The graduating class of %d has been archived in %s. The archive is attached.", info.Year, info.Name),
	}
	if err := msg.Attach(bytes.NewReader(content), info.Name, ArchiveContentType); err != nil {
		e.logger.Error("attaching graduation archive", err)
		return
	}
	if err := msg.Render(); err != nil {
		e.logger.Error("rendering graduation email", err)
		return
	}
	e.mailSvc.SendMessages(msg)
}

func (e *Engine) ListArchives(ctx context.Context) ([]ArchiveInfo, error) {
	archives, err := e.archives.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing archives")
	}
	return archives, nil
}

func (e *Engine) FetchArchive(ctx context.Context, name string) (ArchiveInfo, []byte, error) {
	if _, err := ParseArchiveName(name); err != nil {
		return ArchiveInfo{}, nil, err
	}
	return e.archives.Fetch(ctx, name)
}
