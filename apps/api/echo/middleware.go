package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
)

// profileMiddleware loads (or creates) the profile of the token subject and refuses deactivated ones.
// It must run after the JWT middleware.
func profileMiddleware(svc *profile.Service, validate *validator.Validate, audience string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if audience != "" && !claims.VerifyAudience(audience, true) {
				return errUnauthorized
			}

			np := claims.NewProfile()
			if err = np.Validate(validate); err != nil {
				return errUnauthorized
			}
			p, err := svc.Ensure(ctx.Request().Context(), np)
			if err != nil {
				return errors.Wrap(err, "ensuring profile")
			}
			if !p.IsActive {
				return errAccountDeactivated
			}
			ctx.Set(contextProfileKey, p)
			return next(ctx)
		}
	}
}

// roleMiddleware only lets through profiles having one of roles.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, err := getContextProfile(ctx)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if p.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}
