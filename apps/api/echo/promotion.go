package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/vidyalaya/core"
	"github.com/trezcool/vidyalaya/core/promotion"
	"github.com/trezcool/vidyalaya/core/student"
)

type (
	promotionApi struct {
		svc      promotion.ServiceInterface
		validate *validator.Validate
		logger   core.Logger
	}

	PromoteClassRequest struct {
		ClassName  string `json:"className" validate:"required,notblank"`
		AuthSecret string `json:"authSecret" validate:"required"`
	}

	PromoteAllRequest struct {
		AuthSecret string `json:"authSecret" validate:"required"`
	}
)

func (r *PromoteClassRequest) Validate(validate *validator.Validate) error {
	r.ClassName = core.CleanString(r.ClassName)
	return validate.Struct(r)
}

func (r *PromoteAllRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

func registerPromotionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc promotion.ServiceInterface,
	validate *validator.Validate,
	logger core.Logger,
) {
	api := promotionApi{svc: svc, validate: validate, logger: logger}

	pg := g.Group("/promotion", jwt, adminMiddleware())
	pg.GET("/classes", api.classes)
	pg.GET("/classes/:level/students", api.classStudents)
	pg.POST("/promote-class", api.promoteClass)
	pg.POST("/promote-all", api.promoteAll)
	pg.GET("/graduated-files", api.archives)
	pg.GET("/graduated-files/:name", api.archive)
}

func (api *promotionApi) classes(ctx echo.Context) error {
	summary, err := api.svc.ClassSummary(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "summarizing classes")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *promotionApi) classStudents(ctx echo.Context) error {
	students, err := api.svc.StudentsInClass(ctx.Request().Context(), ctx.Param("level"))
	if err != nil {
		return errors.Wrap(err, "listing class students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *promotionApi) promoteClass(ctx echo.Context) error {
	var data PromoteClassRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PromoteClassRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := contextPrincipal(ctx)
	if err != nil {
		return err
	}

	out, err := api.svc.PromoteClass(ctx.Request().Context(), actor, data.AuthSecret, data.ClassName)
	if err != nil {
		return errors.Wrap(err, "promoting class")
	}
	return ctx.JSON(http.StatusOK, out)
}

func (api *promotionApi) promoteAll(ctx echo.Context) error {
	var data PromoteAllRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PromoteAllRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := contextPrincipal(ctx)
	if err != nil {
		return err
	}

	out, err := api.svc.PromoteAll(ctx.Request().Context(), actor, data.AuthSecret)
	if err != nil {
		if len(out.Remaining) == 0 {
			return errors.Wrap(err, "promoting all classes")
		}
		// a run that stopped midway still reports what was done
		api.logger.Error("promotion stopped", err, actor, map[string]interface{}{"remaining": out.Remaining})
		return ctx.JSON(http.StatusInternalServerError, out)
	}
	return ctx.JSON(http.StatusOK, out)
}

func (api *promotionApi) archives(ctx echo.Context) error {
	archives, err := api.svc.ListArchives(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing archives")
	}
	if archives == nil {
		archives = []promotion.ArchiveInfo{}
	}
	return ctx.JSON(http.StatusOK, archives)
}

func (api *promotionApi) archive(ctx echo.Context) error {
	info, content, err := api.svc.FetchArchive(ctx.Request().Context(), ctx.Param("name"))
	if err != nil {
		return errors.Wrap(err, "fetching archive")
	}
	return attachment(ctx, info.Name, content)
}
