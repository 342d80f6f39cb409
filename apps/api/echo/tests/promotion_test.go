package tests

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/vidyalaya/core/grade"
	"github.com/trezcool/vidyalaya/core/promotion"
	"github.com/trezcool/vidyalaya/core/student"
	"github.com/trezcool/vidyalaya/services/spreadsheet"
	testutil "github.com/trezcool/vidyalaya/tests"
)

func TestPromotionAPI_access(t *testing.T) {
	env := setup(t)
	testutil.CreateStudent(t, env.students, "Ram Thapa", grade.Three, "A", "9800000001")

	runHTTPTests(t, env.app, []httpTest{
		{
			name:     "teacher cannot list classes",
			method:   http.MethodGet,
			path:     "/v1/promotion/classes",
			token:    env.teacherToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "wrong secret",
			method:   http.MethodPost,
			path:     "/v1/promotion/promote-class",
			body:     []byte(`{"className": "3", "authSecret": "guess"}`),
			token:    env.adminToken,
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "access denied"}),
		},
		{
			name:     "missing secret",
			method:   http.MethodPost,
			path:     "/v1/promotion/promote-all",
			body:     []byte(`{}`),
			token:    env.adminToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown class",
			method:   http.MethodPost,
			path:     "/v1/promotion/promote-class",
			body:     []byte(`{"className": "7", "authSecret": "` + testutil.TestSecret + `"}`),
			token:    env.adminToken,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "unknown archive",
			method:   http.MethodGet,
			path:     "/v1/promotion/graduated-files/graduated_1999.xlsx",
			token:    env.adminToken,
			wantCode: http.StatusNotFound,
		},
	})
}

func TestPromotionAPI_promoteClass(t *testing.T) {
	env := setup(t)
	testutil.CreateStudent(t, env.students, "Ram Thapa", grade.Three, "A", "9800000001")
	testutil.CreateStudent(t, env.students, "Hari Gurung", grade.Three, "B", "9800000002")
	testutil.CreateStudent(t, env.students, "Gita Shah", grade.Six, "A", "9800000003")

	req, rec := newAuthRequest(http.MethodGet, "/v1/promotion/classes", env.adminToken)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary []promotion.ClassSummary
	decode(t, rec, &summary)
	assert.Equal(t, []promotion.ClassSummary{
		{CurrentClass: grade.Three, NextClass: grade.Four, StudentCount: 2, CanPromote: true},
		{CurrentClass: grade.Six, NextClass: grade.Graduated, StudentCount: 1, CanPromote: true},
	}, summary)

	req, rec = newAuthRequest(http.MethodPost, "/v1/promotion/promote-class", env.adminToken,
		[]byte(`{"className": "Class 3", "authSecret": "`+testutil.TestSecret+`"}`))
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out promotion.Outcome
	decode(t, rec, &out)
	assert.True(t, out.Success)
	assert.Equal(t, 2, out.PromotedCount)
	assert.Equal(t, grade.Four, out.NextClass)

	req, rec = newAuthRequest(http.MethodGet, "/v1/promotion/classes/4/students", env.adminToken)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var students []student.Student
	decode(t, rec, &students)
	assert.Len(t, students, 2)

	// graduation
	req, rec = newAuthRequest(http.MethodPost, "/v1/promotion/promote-class", env.adminToken,
		[]byte(`{"className": "6", "authSecret": "`+testutil.TestSecret+`"}`))
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out = promotion.Outcome{}
	decode(t, rec, &out)
	assert.Equal(t, grade.Graduated, out.NextClass)
	require.NotNil(t, out.Archive)

	req, rec = newAuthRequest(http.MethodGet, "/v1/promotion/graduated-files", env.adminToken)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var archives []promotion.ArchiveInfo
	decode(t, rec, &archives)
	if assert.Len(t, archives, 1) {
		assert.Equal(t, out.Archive.Name, archives[0].Name)
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/promotion/graduated-files/"+out.Archive.Name, env.adminToken)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, spreadsheet.ContentTypeXLSX, rec.Header().Get("Content-Type"))
	rows, err := spreadsheet.NewExcelCodec().Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	if assert.Len(t, rows, 1) {
		assert.Equal(t, "Gita Shah", rows[0][0].Value)
	}
}

func TestPromotionAPI_promoteAll(t *testing.T) {
	env := setup(t)
	testutil.CreateStudent(t, env.students, "Ram Thapa", grade.UKG, "A", "9800000001")
	testutil.CreateStudent(t, env.students, "Hari Gurung", grade.Five, "A", "9800000002")

	req, rec := newAuthRequest(http.MethodPost, "/v1/promotion/promote-all", env.adminToken,
		[]byte(`{"authSecret": "`+testutil.TestSecret+`"}`))
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out promotion.AllOutcome
	decode(t, rec, &out)
	assert.True(t, out.Success)
	assert.Empty(t, out.Remaining)
	assert.Equal(t, "Promoted 2 students", out.Message)

	req, rec = newAuthRequest(http.MethodGet, "/v1/promotion/classes", env.adminToken)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary []promotion.ClassSummary
	decode(t, rec, &summary)
	require.Len(t, summary, 2)
	assert.Equal(t, grade.One, summary[0].CurrentClass)
	assert.Equal(t, grade.Six, summary[1].CurrentClass)
}
