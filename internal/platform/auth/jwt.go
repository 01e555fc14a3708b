package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/matricare/matricare/internal/domain/role"
)

// Claims is the token payload issued by the session layer.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// JWTMiddleware verifies the bearer token, resolves the role claim to a
// canonical role and stores the identity in the request context. Tokens with
// an unknown role are rejected: role strings never flow through unchecked.
func JWTMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token missing subject")
			}

			r, err := role.Parse(claims.Role)
			if err != nil {
				return echo.NewHTTPError(http.StatusForbidden, "unknown role")
			}

			ctx := WithIdentity(c.Request().Context(), Identity{UserID: claims.Subject, Role: r})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
