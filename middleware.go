package accounts

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
)

// ClaimsContextKey is the locals key holding the validated bearer claims.
const ClaimsContextKey = "account_claims"

// GetRouterClaims retrieves the claims a Protected guard stored on the
// request context.
func GetRouterClaims(ctx router.Context) (AuthClaims, error) {
	val := ctx.Locals(ClaimsContextKey)
	if val == nil {
		return nil, ErrBearerMalformed
	}

	claims, ok := val.(AuthClaims)
	if !ok {
		return nil, ErrBearerMalformed
	}

	return claims, nil
}

// Protected guards a route behind a valid bearer access token. Claims are
// stored in locals for handlers downstream.
func (a *Controller) Protected() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			token, err := bearerFromHeader(ctx.Header("Authorization"))
			if err != nil {
				return a.ErrorHandler(ctx, err)
			}

			claims, err := a.Tokens.ValidateAccess(token)
			if err != nil {
				return a.ErrorHandler(ctx, err)
			}

			ctx.Locals(ClaimsContextKey, claims)

			return next(ctx)
		}
	}
}

// RequireRole guards a route behind any one of the given roles. It must run
// after Protected.
func (a *Controller) RequireRole(roles ...string) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			claims, err := GetRouterClaims(ctx)
			if err != nil {
				return a.ErrorHandler(ctx, err)
			}

			for _, role := range roles {
				if claims.HasRole(role) {
					return next(ctx)
				}
			}

			return ctx.JSON(fiber.StatusForbidden, map[string]string{
				"error": "insufficient permissions",
			})
		}
	}
}

func bearerFromHeader(header string) (string, error) {
	if header == "" {
		return "", ErrBearerMalformed
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", ErrBearerMalformed
	}

	return parts[1], nil
}
