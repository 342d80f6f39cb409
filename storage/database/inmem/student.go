package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/vidyalaya/core"
	"github.com/trezcool/vidyalaya/core/grade"
	"github.com/trezcool/vidyalaya/core/student"
)

type studentRepository struct {
	db *studentTable
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db.student}
}

func (repo *studentRepository) query() []student.Student {
	students := make([]student.Student, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		students = append(students, *s)
	}
	return students
}

func (repo *studentRepository) findByNaturalKey(key string) *student.Student {
	for _, s := range repo.db.table {
		if s.NaturalKey() == key {
			return s
		}
	}
	return nil
}

func (repo *studentRepository) CreateStudent(ctx context.Context, s student.Student, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s.ID = uuid.New().String()
	repo.db.table[s.ID] = &s
	return s, nil
}

func (repo *studentRepository) UpsertStudent(ctx context.Context, s student.Student, _ ...core.DBExecutor) (student.Student, bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if orig := repo.findByNaturalKey(s.NaturalKey()); orig != nil {
		s.ID = orig.ID
		s.Email = orig.Email
		s.CreatedAt = orig.CreatedAt
		*orig = s
		return s, false, nil
	}
	s.ID = uuid.New().String()
	repo.db.table[s.ID] = &s
	return s, true, nil
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id string, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.table[id]; ok {
		return *s, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]student.Student, 0)
	for _, s := range repo.query() {
		if filter == nil || filter.Matches(s) {
			students = append(students, s)
		}
	}
	sortStudents(students, ordering)
	return students, nil
}

// LockClass holds no lock past the call; the in-memory store has no transactions.
func (repo *studentRepository) LockClass(ctx context.Context, lvl grade.Level, _ ...core.DBExecutor) ([]student.Student, error) {
	return repo.QueryStudents(ctx, &student.QueryFilter{Grade: lvl.String()}, student.DefaultOrdering)
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, s student.Student, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[s.ID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	s.Email = orig.Email
	s.CreatedAt = orig.CreatedAt
	*orig = s
	return s, nil
}

func (repo *studentRepository) DeleteStudentsByID(ctx context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

func (repo *studentRepository) CountStudentsByGrade(ctx context.Context, _ ...core.DBExecutor) (map[grade.Level]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	counts := make(map[grade.Level]int)
	for _, s := range repo.db.table {
		counts[s.Grade]++
	}
	return counts, nil
}

func (repo *studentRepository) SetGrade(ctx context.Context, from, to grade.Level, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, s := range repo.db.table {
		if s.Grade == from {
			s.Grade = to
			n++
		}
	}
	return n, nil
}

func sortStudents(students []student.Student, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = student.DefaultOrdering
	}
	sort.SliceStable(students, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareField(students[i], students[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return students[i].ID < students[j].ID
	})
}

func compareField(a, b student.Student, field string) int {
	switch field {
	case "grade_rank", "grade":
		return a.Grade.Rank() - b.Grade.Rank()
	case "section":
		return strings.Compare(a.Section, b.Section)
	case "name":
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return 0
}
