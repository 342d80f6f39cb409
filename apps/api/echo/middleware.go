package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/vidyalaya/core/student"
)

const objectContextKey = "object"

// adminMiddleware lets admins through; when roles are given, the admin must also hold one of them.
func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, err := contextPrincipal(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context principal")
			}
			if p.IsAdmin() && (len(roles) == 0 || p.HasAnyRole(roles...)) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// studentObjectMiddleware loads the student of the `:id` param into the context.
func studentObjectMiddleware(svc student.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			st, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == student.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding student by ID")
			}
			ctx.Set(objectContextKey, st)
			return next(ctx)
		}
	}
}

// bodyLimit renders a byte count the way echo's BodyLimit expects; uploads get a little room for multipart framing.
func bodyLimit(maxUpload int64) string {
	if maxUpload <= 0 {
		maxUpload = 5 << 20
	}
	return strconv.FormatInt((maxUpload+(64<<10))>>10, 10) + "K"
}
