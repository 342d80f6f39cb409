package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"reflect"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/vidyalaya/apps/api/echo"
	"github.com/trezcool/vidyalaya/core"
	"github.com/trezcool/vidyalaya/core/access"
	"github.com/trezcool/vidyalaya/core/ledger"
	"github.com/trezcool/vidyalaya/core/promotion"
	"github.com/trezcool/vidyalaya/core/roster"
	"github.com/trezcool/vidyalaya/core/student"
	archivesvc "github.com/trezcool/vidyalaya/services/archive"
	emailsvc "github.com/trezcool/vidyalaya/services/email"
	"github.com/trezcool/vidyalaya/services/feeschedule"
	logsvc "github.com/trezcool/vidyalaya/services/logger"
	"github.com/trezcool/vidyalaya/services/spreadsheet"
	inmemdb "github.com/trezcool/vidyalaya/storage/database/inmem"
	testutil "github.com/trezcool/vidyalaya/tests"
)

const fees = `
grades:
  "3": {admissionFee: 5000, monthlyFee: 1500, computerFee: 300}
`

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testEnv struct {
	app          Server
	conf         *core.Config
	students     student.Repository
	adminToken   string
	teacherToken string
}

func setup(t *testing.T) testEnv {
	conf := core.NewTestConfig()
	conf.Promotion.SecretHash = testutil.SecretHash(t)
	conf.Mail.AdminEmail = "admin@school.test"

	validate, translator := core.NewValidator()
	student.InitValidators(validate, translator, conf.School.Sections)

	// set up DB & repos
	db := inmemdb.NewDB()
	studentRepo := inmemdb.NewStudentRepository(db)
	ledgerRepo := inmemdb.NewLedgerRepository(db)

	// set up services
	logger := logsvc.NewNopLogger()
	codec := spreadsheet.NewExcelCodec()
	schedule, err := feeschedule.Parse([]byte(fees))
	require.NoError(t, err)

	app := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		StudentSvc: student.NewService(studentRepo, conf),
		RosterSvc:  roster.NewService(studentRepo, codec, logger, conf),
		LedgerSvc:  ledger.NewService(ledgerRepo, studentRepo, schedule, logger, conf),
		PromotionSvc: promotion.NewEngine(promotion.Deps{
			Conf:       conf,
			Logger:     logger,
			Students:   studentRepo,
			Transactor: db,
			Archives:   archivesvc.NewMemStore(),
			Codec:      codec,
			Authorizer: access.NewSecretAuthorizer(conf.Promotion.SecretHash),
			MailSvc:    emailsvc.NewConsoleServiceMock(conf, logger),
		}),
		Validate:   validate,
		Translator: translator,
	})

	return testEnv{
		app:          app,
		conf:         conf,
		students:     studentRepo,
		adminToken:   getToken(t, testutil.Admin(), conf),
		teacherToken: getToken(t, testutil.Teacher(), conf),
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

// newUploadRequest posts `content` as the multipart `file` field, along with `fields`.
func newUploadRequest(t *testing.T, path, token, filename, contentType string, content []byte, fields map[string]string) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = io.Copy(part, bytes.NewReader(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func getToken(t *testing.T, p access.Principal, conf *core.Config) string {
	token, err := GenerateToken(NewClaims(p, conf), conf)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

// signMapClaims signs arbitrary claims with the server key, expiring in an hour.
func signMapClaims(t *testing.T, env testEnv, claims jwt.MapClaims) string {
	claims["exp"] = time.Now().Add(time.Hour).Unix()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(env.conf.SecretKey))
	require.NoError(t, err)
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app Server, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
