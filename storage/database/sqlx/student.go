// Package sqlxrepos implements the student repository on postgres with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/vidyalaya/core"
	"github.com/trezcool/vidyalaya/core/grade"
	"github.com/trezcool/vidyalaya/core/student"
)

const (
	studentColumns = "id, name, grade, grade_rank, section, address, father_name, mother_name, " +
		"father_phone, mother_phone, email, natural_key, created_at, updated_at"

	uniqueViolation = "23505"
)

var (
	errDuplicateStudent = core.NewValidationError(
		errors.New("a student with the same name and phone already exists"),
		core.FieldError{Field: "name", Error: "a student with the same name and phone already exists"},
	)

	// orderable maps API ordering fields to columns.
	orderable = map[string]string{
		"grade":      "grade_rank",
		"grade_rank": "grade_rank",
		"section":    "section",
		"name":       "lower(name)",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}
)

type studentRow struct {
	ID          string      `db:"id"`
	Name        string      `db:"name"`
	Grade       string      `db:"grade"`
	GradeRank   int         `db:"grade_rank"`
	Section     string      `db:"section"`
	Address     null.String `db:"address"`
	FatherName  null.String `db:"father_name"`
	MotherName  null.String `db:"mother_name"`
	FatherPhone null.String `db:"father_phone"`
	MotherPhone null.String `db:"mother_phone"`
	Email       string      `db:"email"`
	NaturalKey  string      `db:"natural_key"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

type studentRepository struct {
	exec core.DBExecutor
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(exec core.DBExecutor) *studentRepository {
	return &studentRepository{exec: exec}
}

func (repo studentRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	return core.ExecOrDefault(repo.exec, svcExec)
}

func optional(s string) null.String {
	return null.NewString(s, s != "")
}

func (repo studentRepository) toRow(s student.Student) studentRow {
	return studentRow{
		ID:          s.ID,
		Name:        s.Name,
		Grade:       s.Grade.String(),
		GradeRank:   s.Grade.Rank(),
		Section:     s.Section,
		Address:     optional(s.Address),
		FatherName:  optional(s.FatherName),
		MotherName:  optional(s.MotherName),
		FatherPhone: optional(s.FatherPhone),
		MotherPhone: optional(s.MotherPhone),
		Email:       s.Email,
		NaturalKey:  s.NaturalKey(),
		CreatedAt:   s.CreatedAt.UTC(),
		UpdatedAt:   s.UpdatedAt.UTC(),
	}
}

func (repo studentRepository) fromRow(row studentRow) student.Student {
	return student.Student{
		ID:          row.ID,
		Name:        row.Name,
		Grade:       grade.Level(row.Grade),
		Section:     row.Section,
		Address:     row.Address.String,
		FatherName:  row.FatherName.String,
		MotherName:  row.MotherName.String,
		FatherPhone: row.FatherPhone.String,
		MotherPhone: row.MotherPhone.String,
		Email:       row.Email,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

// trapErr maps "no rows" to student.ErrNotFound and natural key collisions to a validation error.
func (repo studentRepository) trapErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return student.ErrNotFound
	}
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return errDuplicateStudent
	}
	return errors.Wrap(err, msg)
}

func (repo studentRepository) selectRows(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) ([]studentRow, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []studentRow
	if err = sqlx.StructScan(rows, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (repo studentRepository) selectOne(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (studentRow, error) {
	rows, err := repo.selectRows(ctx, exec, query, args...)
	if err != nil {
		return studentRow{}, err
	}
	if len(rows) == 0 {
		return studentRow{}, sql.ErrNoRows
	}
	return rows[0], nil
}

// named binds a named query and rebinds it to postgres placeholders.
func named(query string, arg interface{}) (string, []interface{}, error) {
	q, args, err := sqlx.Named(query, arg)
	if err != nil {
		return "", nil, err
	}
	return sqlx.Rebind(sqlx.DOLLAR, q), args, nil
}

func (repo studentRepository) CreateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	s.ID = uuid.New().String()
	q, args, err := named(
		"INSERT INTO students ("+studentColumns+") VALUES (:id, :name, :grade, :grade_rank, :section, :address, "+
			":father_name, :mother_name, :father_phone, :mother_phone, :email, :natural_key, :created_at, :updated_at) "+
			"RETURNING "+studentColumns,
		repo.toRow(s))
	if err != nil {
		return student.Student{}, errors.Wrap(err, "binding student insert")
	}
	row, err := repo.selectOne(ctx, repo.getExec(exec), q, args...)
	if err != nil {
		return student.Student{}, repo.trapErr(err, "inserting student")
	}
	return repo.fromRow(row), nil
}

func (repo studentRepository) UpsertStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, bool, error) {
	s.ID = uuid.New().String()
	// xmax is 0 only on freshly inserted tuples
	q, args, err := named(
		"INSERT INTO students ("+studentColumns+") VALUES (:id, :name, :grade, :grade_rank, :section, :address, "+
			":father_name, :mother_name, :father_phone, :mother_phone, :email, :natural_key, :created_at, :updated_at) "+
			"ON CONFLICT (natural_key) DO UPDATE SET name = EXCLUDED.name, grade = EXCLUDED.grade, "+
			"grade_rank = EXCLUDED.grade_rank, section = EXCLUDED.section, address = EXCLUDED.address, "+
			"father_name = EXCLUDED.father_name, mother_name = EXCLUDED.mother_name, "+
			"father_phone = EXCLUDED.father_phone, mother_phone = EXCLUDED.mother_phone, updated_at = EXCLUDED.updated_at "+
			"RETURNING "+studentColumns+", (xmax = 0) AS created",
		repo.toRow(s))
	if err != nil {
		return student.Student{}, false, errors.Wrap(err, "binding student upsert")
	}

	rows, err := repo.getExec(exec).QueryContext(ctx, q, args...)
	if err != nil {
		return student.Student{}, false, repo.trapErr(err, "upserting student")
	}
	defer func() { _ = rows.Close() }()

	var out []struct {
		studentRow
		Created bool `db:"created"`
	}
	if err = sqlx.StructScan(rows, &out); err != nil {
		return student.Student{}, false, errors.Wrap(err, "scanning upserted student")
	}
	if len(out) == 0 {
		return student.Student{}, false, errors.New("upsert returned no row")
	}
	return repo.fromRow(out[0].studentRow), out[0].Created, nil
}

func (repo studentRepository) GetStudentByID(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return student.Student{}, student.ErrNotFound
	}
	row, err := repo.selectOne(ctx, repo.getExec(exec), "SELECT "+studentColumns+" FROM students WHERE id = $1", id)
	if err != nil {
		return student.Student{}, repo.trapErr(err, "finding student by ID")
	}
	return repo.fromRow(row), nil
}

// filterClause renders the WHERE clause of a filter with postgres placeholders.
func filterClause(filter *student.QueryFilter) (string, []interface{}) {
	if filter == nil || filter.IsEmpty() {
		return "", nil
	}

	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Grade != "" {
		conds = append(conds, "grade = "+arg(filter.Grade))
	}
	if filter.Section != "" {
		conds = append(conds, "section = "+arg(filter.Section))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conds = append(conds, "(name ILIKE "+p+" OR father_name ILIKE "+p+" OR mother_name ILIKE "+p+
			" OR father_phone ILIKE "+p+" OR mother_phone ILIKE "+p+" OR email ILIKE "+p+")")
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderClause(ordering []core.DBOrdering) string {
	if len(ordering) == 0 {
		ordering = student.DefaultOrdering
	}
	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		col, ok := orderable[ord.Field]
		if !ok {
			continue
		}
		orderList = append(orderList, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	orderList = append(orderList, "id ASC")
	return " ORDER BY " + strings.Join(orderList, ", ")
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]student.Student, error) {
	where, args := filterClause(filter)
	rows, err := repo.selectRows(ctx, repo.getExec(exec), "SELECT "+studentColumns+" FROM students"+where+orderClause(ordering), args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, repo.fromRow(row))
	}
	return students, nil
}

func lockClassQuery() string {
	return "SELECT " + studentColumns + " FROM students WHERE grade = $1" + orderClause(nil) + " FOR UPDATE"
}

func (repo studentRepository) LockClass(ctx context.Context, lvl grade.Level, exec ...core.DBExecutor) ([]student.Student, error) {
	rows, err := repo.selectRows(ctx, repo.getExec(exec), lockClassQuery(), lvl.String())
	if err != nil {
		return nil, errors.Wrapf(err, "locking class %s", lvl)
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, repo.fromRow(row))
	}
	return students, nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	if _, err := uuid.Parse(s.ID); err != nil {
		return student.Student{}, student.ErrNotFound
	}
	q, args, err := named(
		"UPDATE students SET name = :name, grade = :grade, grade_rank = :grade_rank, section = :section, "+
			"address = :address, father_name = :father_name, mother_name = :mother_name, "+
			"father_phone = :father_phone, mother_phone = :mother_phone, natural_key = :natural_key, "+
			"updated_at = :updated_at WHERE id = :id RETURNING "+studentColumns,
		repo.toRow(s))
	if err != nil {
		return student.Student{}, errors.Wrap(err, "binding student update")
	}
	row, err := repo.selectOne(ctx, repo.getExec(exec), q, args...)
	if err != nil {
		return student.Student{}, repo.trapErr(err, "updating student")
	}
	return repo.fromRow(row), nil
}

func (repo studentRepository) DeleteStudentsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In("DELETE FROM students WHERE id IN (?)", ids)
	if err != nil {
		return errors.Wrap(err, "binding student delete")
	}
	if _, err = repo.getExec(exec).ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, q), args...); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return nil
}

func (repo studentRepository) CountStudentsByGrade(ctx context.Context, exec ...core.DBExecutor) (map[grade.Level]int, error) {
	rows, err := repo.getExec(exec).QueryContext(ctx, "SELECT grade, count(*) FROM students GROUP BY grade")
	if err != nil {
		return nil, errors.Wrap(err, "counting students")
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[grade.Level]int)
	for rows.Next() {
		var lvl string
		var n int
		if err = rows.Scan(&lvl, &n); err != nil {
			return nil, errors.Wrap(err, "counting students")
		}
		counts[grade.Level(lvl)] = n
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "counting students")
	}
	return counts, nil
}

func (repo studentRepository) SetGrade(ctx context.Context, from, to grade.Level, exec ...core.DBExecutor) (int, error) {
	res, err := repo.getExec(exec).ExecContext(ctx,
		"UPDATE students SET grade = $1, grade_rank = $2, updated_at = $3 WHERE grade = $4",
		to.String(), to.Rank(), time.Now().UTC(), from.String())
	if err != nil {
		return 0, errors.Wrapf(err, "moving class %s to %s", from, to)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting moved students")
	}
	return int(n), nil
}
