package tests

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/vidyalaya/core/grade"
	"github.com/trezcool/vidyalaya/core/roster"
	"github.com/trezcool/vidyalaya/services/spreadsheet"
	testutil "github.com/trezcool/vidyalaya/tests"
)

func TestRosterAPI_importJSON(t *testing.T) {
	env := setup(t)

	body := []byte(`{
		"grade": "3",
		"section": "A",
		"rows": [
			{"student name": "Ram Thapa", "Father Phone": "9800000001", "Hobby": "chess"},
			{"Student Name": "", "Father's Phone": "9800000002"}
		]
	}`)
	req, rec := newAuthRequest(http.MethodPost, "/v1/students/import", env.adminToken, body)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res roster.ImportResult
	decode(t, rec, &res)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.ImportedCount)
	assert.Equal(t, []string{"Row 3: Missing Student Name"}, res.Errors)
	if assert.Len(t, res.UnrecognizedHeaders, 1) {
		assert.Equal(t, "Hobby", res.UnrecognizedHeaders[0].Header)
	}

	// importing requires an admin
	req, rec = newAuthRequest(http.MethodPost, "/v1/students/import", env.teacherToken, body)
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRosterAPI_importFile(t *testing.T) {
	env := setup(t)
	csv := []byte("Student Name,Father's Phone,Section\nRam Thapa,9800000001,B\nSita Rai,12345,A\nHari Rai,9800000004,c\n")

	req, rec := newUploadRequest(t, "/v1/students/import", env.adminToken, "students.csv", "text/csv", csv,
		map[string]string{"grade": "L.K.G."})
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res roster.ImportResult
	decode(t, rec, &res)
	assert.Equal(t, 1, res.ImportedCount)
	assert.Equal(t, []string{
		"Row 3: Father's Phone '12345' is not 10 digits",
		"Row 4: Section 'c' is not one of A, B, C, D, E, F",
	}, res.Errors)

	counts, err := env.students.CountStudentsByGrade(req.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, counts[grade.LKG])

	tests := []struct {
		name        string
		filename    string
		contentType string
	}{
		{name: "wrong extension", filename: "students.txt", contentType: "text/plain"},
		{name: "wrong content type", filename: "students.xlsx", contentType: "image/png"},
		{name: "legacy xls", filename: "students.xls", contentType: "application/vnd.ms-excel"},
		{name: "legacy xls renamed", filename: "students.xlsx", contentType: "application/vnd.ms-excel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newUploadRequest(t, "/v1/students/import", env.adminToken, tt.filename, tt.contentType, csv, nil)
			env.app.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	t.Run("legacy xls content", func(t *testing.T) {
		xls := append([]byte("\xD0\xCF\x11\xE0\xA1\xB1\x1A\xE1"), make([]byte, 504)...)
		req, rec := newUploadRequest(t, "/v1/students/import", env.adminToken, "students.xlsx", "application/octet-stream", xls, nil)
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "legacy .xls workbooks are not supported")
	})
}

func TestRosterAPI_export(t *testing.T) {
	env := setup(t)
	testutil.CreateStudent(t, env.students, "Ram Thapa", grade.Three, "A", "9800000001")
	testutil.CreateStudent(t, env.students, "Gita Shah", grade.Four, "A", "9800000003")

	req, rec := newAuthRequest(http.MethodGet, "/v1/students/export?grade=3", env.teacherToken)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, spreadsheet.ContentTypeXLSX, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "students_class_3.xlsx")

	rows, err := spreadsheet.NewExcelCodec().Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	if assert.Len(t, rows, 1) {
		assert.Equal(t, "Ram Thapa", rows[0][0].Value)
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/students/export?grade=7", env.teacherToken)
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/v1/students/template", env.teacherToken)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err = spreadsheet.NewExcelCodec().Decode(bytes.NewReader(rec.Body.Bytes()))
	assert.NoError(t, err)
}
