package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/vidyalaya/core"
	"github.com/trezcool/vidyalaya/core/ledger"
)

type ledgerApi struct {
	svc  ledger.ServiceInterface
	conf *core.Config
}

type ledgerResponse struct {
	ledger.Ledger
	Summary ledger.Summary `json:"summary"`
}

func registerLedgerAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc ledger.ServiceInterface, conf *core.Config) {
	api := ledgerApi{svc: svc, conf: conf}

	lg := g.Group("/ledgers", jwt)
	lg.GET("/:studentId", api.retrieve)
	lg.PATCH("/:studentId/:year/:month", api.patchMonth, adminMiddleware())
}

func (api *ledgerApi) year(raw string) (int, error) {
	if raw == "" {
		return api.conf.School.CurrentAcademicYear(time.Now()), nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.NewValidationError(nil, core.FieldError{Field: "year", Error: "year must be a number"})
	}
	return year, nil
}

func (api *ledgerApi) retrieve(ctx echo.Context) error {
	year, err := api.year(ctx.QueryParam("year"))
	if err != nil {
		return err
	}
	studentID := ctx.Param("studentId")

	l, err := api.svc.GetLedger(ctx.Request().Context(), studentID, year)
	if err != nil {
		return errors.Wrap(err, "getting ledger")
	}
	sum, err := api.svc.Summary(ctx.Request().Context(), studentID, year)
	if err != nil {
		return errors.Wrap(err, "summarizing ledger")
	}
	return ctx.JSON(http.StatusOK, ledgerResponse{Ledger: l, Summary: sum})
}

func (api *ledgerApi) patchMonth(ctx echo.Context) error {
	year, err := api.year(ctx.Param("year"))
	if err != nil {
		return err
	}
	month, err := ledger.ParseMonth(ctx.Param("month"))
	if err != nil {
		return err
	}

	var patch ledger.EntryPatch
	if err = ctx.Bind(&patch); err != nil {
		return errors.Wrap(err, "binding to EntryPatch")
	}
	if patch.IsEmpty() {
		return core.NewValidationError(errors.New("at least one of admissionFee, monthlyFee or computerFee is required"))
	}

	l, err := api.svc.PatchMonth(ctx.Request().Context(), ctx.Param("studentId"), year, month, patch)
	if err != nil {
		return errors.Wrap(err, "updating ledger month")
	}
	return ctx.JSON(http.StatusOK, l)
}
