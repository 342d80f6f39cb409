package echoapi

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/vidyalaya/core"
	"github.com/trezcool/vidyalaya/core/grade"
	"github.com/trezcool/vidyalaya/core/roster"
	"github.com/trezcool/vidyalaya/services/spreadsheet"
)

var uploadExtensions = map[string]bool{".xlsx": true, ".csv": true}

type rosterApi struct {
	svc       roster.ServiceInterface
	maxUpload int64
}

type importRequest struct {
	roster.ImportOptions
	roster.Batch
}

func registerRosterAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc roster.ServiceInterface, conf *core.Config) {
	api := rosterApi{svc: svc, maxUpload: conf.Import.MaxUploadSize}

	rg := g.Group("/students", jwt)
	rg.POST("/import", api.importStudents, adminMiddleware())
	rg.GET("/export", api.export)
	rg.GET("/template", api.template)
}

// importStudents accepts a multipart `file` upload, or JSON rows. The result is 200 even when rows fail.
func (api *rosterApi) importStudents(ctx echo.Context) error {
	if strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return api.importFile(ctx)
	}

	var data importRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to importRequest")
	}
	res := api.svc.Import(ctx.Request().Context(), data.Batch, data.ImportOptions)
	return ctx.JSON(http.StatusOK, res)
}

func (api *rosterApi) importFile(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "a spreadsheet file is required"})
	}
	if api.maxUpload > 0 && fh.Size > api.maxUpload {
		return core.NewValidationError(nil, core.FieldError{
			Field: "file",
			Error: fmt.Sprintf("file is larger than %dMB", api.maxUpload>>20),
		})
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !uploadExtensions[ext] || !spreadsheet.IsAccepted(fh.Header.Get(echo.HeaderContentType)) {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "only .xlsx and .csv files are accepted"})
	}

	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	opts := roster.ImportOptions{Grade: ctx.FormValue("grade"), Section: ctx.FormValue("section")}
	res, err := api.svc.ImportFile(ctx.Request().Context(), f, opts)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *rosterApi) export(ctx echo.Context) error {
	var filter roster.ExportFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to ExportFilter")
	}

	_, content, err := api.svc.ExportFile(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return attachment(ctx, exportFilename(filter), content)
}

func (api *rosterApi) template(ctx echo.Context) error {
	content, err := api.svc.TemplateFile()
	if err != nil {
		return errors.Wrap(err, "encoding template")
	}
	return attachment(ctx, "students_template.xlsx", content)
}

func exportFilename(filter roster.ExportFilter) string {
	name := "students"
	if lvl, err := grade.Parse(filter.Grade); err == nil {
		name += "_class_" + strings.Trim(strings.ReplaceAll(lvl.String(), ".", ""), " ")
	}
	if s := strings.ToUpper(strings.TrimSpace(filter.Section)); s != "" && s != strings.ToUpper(grade.All) {
		name += "_" + s
	}
	return name + ".xlsx"
}

func attachment(ctx echo.Context, filename string, content []byte) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, spreadsheet.ContentTypeXLSX, content)
}
