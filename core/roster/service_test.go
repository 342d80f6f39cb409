package roster

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/vidyalaya/core"
	"github.com/trezcool/vidyalaya/core/grade"
	"github.com/trezcool/vidyalaya/core/student"
	logsvc "github.com/trezcool/vidyalaya/services/logger"
	"github.com/trezcool/vidyalaya/services/spreadsheet"
	inmemdb "github.com/trezcool/vidyalaya/storage/database/inmem"
)

func newTestService(repo student.Repository) *Service {
	return NewService(repo, spreadsheet.NewExcelCodec(), logsvc.NewNopLogger(), core.NewTestConfig())
}

func row(cells ...string) RawRow {
	r := make(RawRow, 0, len(cells)/2)
	for i := 0; i+1 < len(cells); i += 2 {
		r = append(r, core.Cell{Header: cells[i], Value: cells[i+1]})
	}
	return r
}

func TestService_Import(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewStudentRepository(inmemdb.NewDB())
	svc := newTestService(repo)

	batch := Batch{Rows: []RawRow{
		row("Student Name", "Ram Thapa", "Father Name", "Hari Thapa", "Father's Phone", "9800000001"),
		row("Student Name", "", "Father's Phone", "9800000002"),
		row("Student Name", "Sita Rai", "Mother Phone", "98000", "Section", "B"),
		row("Student Name", "Gita Rai", "Mother Phone", "9800000003", "Section", "C", "Roll No", "4"),
		row("Student Name", "Hari Rai", "Mother Phone", "9800000004", "Section", "c"),
		row("Student Name", "", "Roll No", ""),
	}}

	res := svc.Import(ctx, batch, ImportOptions{Grade: "Class 1"})
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.ImportedCount)
	assert.Equal(t, 2, res.CreatedCount)
	assert.Equal(t, 0, res.UpdatedCount)
	assert.Equal(t, []string{
		"Row 3: Missing Student Name",
		"Row 4: Mother's Phone '98000' is not 10 digits",
		"Row 6: Section 'c' is not one of A, B, C, D, E, F",
	}, res.Errors)
	assert.Equal(t, []UnrecognizedHeader{{Header: "Roll No"}}, res.UnrecognizedHeaders)
	assert.Equal(t, "Imported 2 of 5 rows (2 new, 0 updated); 3 rows had errors", res.Message)

	students, err := repo.QueryStudents(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Ram Thapa", students[0].Name)
	assert.Equal(t, grade.One, students[0].Grade)
	assert.Equal(t, "A", students[0].Section)
	assert.Equal(t, "Gita Rai", students[1].Name)
	assert.Equal(t, "C", students[1].Section)

	t.Run("replay is idempotent", func(t *testing.T) {
		again := svc.Import(ctx, batch, ImportOptions{Grade: "1"})
		assert.Equal(t, 2, again.ImportedCount)
		assert.Equal(t, 0, again.CreatedCount)
		assert.Equal(t, 2, again.UpdatedCount)

		replayed, err := repo.QueryStudents(ctx, nil, nil)
		require.NoError(t, err)
		require.Len(t, replayed, 2)
		for i := range students {
			assert.Equal(t, students[i].ID, replayed[i].ID)
			assert.Equal(t, students[i].Email, replayed[i].Email)
		}
	})

	t.Run("section override wins", func(t *testing.T) {
		res := svc.Import(ctx, Batch{Rows: []RawRow{
			row("Student Name", "Gita Rai", "Mother Phone", "9800000003", "Section", "C"),
		}}, ImportOptions{Grade: "1", Section: "D"})
		assert.Equal(t, 1, res.UpdatedCount)

		updated, err := repo.QueryStudents(ctx, &student.QueryFilter{Search: "gita"}, nil)
		require.NoError(t, err)
		require.Len(t, updated, 1)
		assert.Equal(t, "D", updated[0].Section)
	})
}

func TestService_ImportSingleRow(t *testing.T) {
	tests := []struct {
		name      string
		row       RawRow
		grade     string
		wantCount int
		wantErrs  []string
	}{
		{
			name:      "mother's phone too long",
			row:       row("Student Name", "Ram Sharma", "Father's Phone", "9800000001", "Mother's Phone", "98000000022"),
			grade:     "1",
			wantCount: 0,
			wantErrs:  []string{"Row 2: Mother's Phone '98000000022' is not 10 digits"},
		},
		{
			name:      "valid phones",
			row:       row("Student Name", "Ram Sharma", "Father's Phone", "9800000001", "Mother's Phone", "9800000002"),
			grade:     "1",
			wantCount: 1,
			wantErrs:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := inmemdb.NewStudentRepository(inmemdb.NewDB())
			res := newTestService(repo).Import(context.Background(), Batch{Rows: []RawRow{tt.row}}, ImportOptions{Grade: tt.grade})
			assert.Equal(t, tt.wantCount, res.ImportedCount)
			assert.Equal(t, tt.wantErrs, res.Errors)

			students, err := repo.QueryStudents(context.Background(), nil, nil)
			require.NoError(t, err)
			assert.Len(t, students, tt.wantCount)
		})
	}
}

func TestService_ImportInvalidOptions(t *testing.T) {
	repo := inmemdb.NewStudentRepository(inmemdb.NewDB())
	svc := newTestService(repo)

	res := svc.Import(context.Background(), Batch{Rows: []RawRow{row("Student Name", "Ram")}},
		ImportOptions{Grade: "GRADUATED", Section: "Z"})
	assert.False(t, res.Success)
	assert.Equal(t, 0, res.ImportedCount)
	assert.Equal(t, []string{
		"Grade 'GRADUATED' is not a valid class",
		"Section 'Z' is not one of A, B, C, D, E, F",
	}, res.Errors)

	students, err := repo.QueryStudents(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, students)
}

type failingRepository struct {
	student.Repository
	failName string
}

func (r failingRepository) UpsertStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, bool, error) {
	if s.Name == r.failName {
		return student.Student{}, false, errors.New("connection reset")
	}
	return r.Repository.UpsertStudent(ctx, s, exec...)
}

func TestService_ImportRowIndependence(t *testing.T) {
	repo := failingRepository{Repository: inmemdb.NewStudentRepository(inmemdb.NewDB()), failName: "Hari"}
	svc := newTestService(repo)

	res := svc.Import(context.Background(), Batch{Rows: []RawRow{
		row("Student Name", "Ram"),
		row("Student Name", "Hari"),
		row("Student Name", "Sita"),
	}}, ImportOptions{Grade: "2"})
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.ImportedCount)
	assert.Equal(t, []string{"Row 3: could not be saved"}, res.Errors)
}

func TestService_ImportCancelled(t *testing.T) {
	repo := inmemdb.NewStudentRepository(inmemdb.NewDB())
	svc := newTestService(repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := svc.Import(ctx, Batch{Rows: []RawRow{row("Student Name", "Ram")}}, ImportOptions{Grade: "2"})
	assert.False(t, res.Success)
	assert.Equal(t, []string{"Import cancelled: rows from 2 on were not processed"}, res.Errors)
}

func TestService_ExportAndImportFile(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewStudentRepository(inmemdb.NewDB())
	svc := newTestService(repo)

	res := svc.Import(ctx, Batch{Rows: []RawRow{
		row("Student Name", "Ram Thapa", "Father's Phone", "9800000001", "Section", "B"),
		row("Student Name", "Anil Rai", "Father's Phone", "9800000002", "Section", "A"),
	}}, ImportOptions{Grade: "3"})
	require.Equal(t, 2, res.ImportedCount)
	res = svc.Import(ctx, Batch{Rows: []RawRow{
		row("Student Name", "Sita Rai", "Mother's Phone", "9800000003"),
	}}, ImportOptions{Grade: "Nursery"})
	require.Equal(t, 1, res.ImportedCount)

	t.Run("export all ordered", func(t *testing.T) {
		out, err := svc.Export(ctx, ExportFilter{Grade: "all", Section: "all"})
		require.NoError(t, err)
		assert.Equal(t, ExportHeaders, out.Headers)
		assert.Equal(t, 3, out.Count)
		assert.Equal(t, [][]string{
			{"Sita Rai", "", "", "", "", "9800000003", "Nursery", "A"},
			{"Anil Rai", "", "", "", "9800000002", "", "3", "A"},
			{"Ram Thapa", "", "", "", "9800000001", "", "3", "B"},
		}, out.Rows)
	})

	t.Run("export filtered", func(t *testing.T) {
		out, err := svc.Export(ctx, ExportFilter{Grade: "3", Section: "B"})
		require.NoError(t, err)
		assert.Equal(t, 1, out.Count)
	})

	t.Run("export bad filter", func(t *testing.T) {
		_, err := svc.Export(ctx, ExportFilter{Grade: "9"})
		assert.Equal(t, grade.ErrUnknownLevel, err)
		_, err = svc.Export(ctx, ExportFilter{Section: "Q"})
		assert.True(t, core.IsValidationError(err))
	})

	t.Run("exported file imports back unchanged", func(t *testing.T) {
		_, b, err := svc.ExportFile(ctx, ExportFilter{})
		require.NoError(t, err)

		res, err := svc.ImportFile(ctx, bytes.NewReader(b), ImportOptions{})
		require.NoError(t, err)
		assert.Equal(t, 3, res.ImportedCount)
		assert.Equal(t, 3, res.UpdatedCount)
		assert.Empty(t, res.Errors)
	})

	t.Run("unreadable file", func(t *testing.T) {
		_, err := svc.ImportFile(ctx, bytes.NewReader([]byte("PK\x03\x04nope")), ImportOptions{})
		assert.True(t, core.IsValidationError(err))
	})
}

func TestService_Template(t *testing.T) {
	svc := newTestService(inmemdb.NewStudentRepository(inmemdb.NewDB()))
	tmpl := svc.Template()
	assert.Equal(t, ImportHeaders, tmpl.Headers)
	assert.Empty(t, tmpl.Rows)

	b, err := svc.TemplateFile()
	require.NoError(t, err)
	rows, err := spreadsheet.NewExcelCodec().Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Empty(t, rows)
}
