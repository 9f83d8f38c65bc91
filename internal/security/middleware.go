package security

import (
	"net/http"
	"strings"
	"time"

	utils "barlive/pkg/utils"

	"github.com/labstack/echo/v4"
)

// JWTMiddleware authenticates requests and puts the caller account id into
// the echo context under "account_id". Websocket clients cannot set headers,
// so a "token" query parameter is accepted as a fallback.
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString := ""
			if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				tokenString = strings.TrimPrefix(auth, "Bearer ")
			} else if t := c.QueryParam("token"); t != "" {
				tokenString = t
			}

			if tokenString == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authentication token")
			}

			claims, err := ParseAccessToken(secret, tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set("account_id", claims.AccountID)
			return next(c)
		}
	}
}

// RequestLogger records one structured entry per request.
func RequestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		fields := map[string]interface{}{
			"method":   c.Request().Method,
			"path":     c.Request().URL.Path,
			"status":   c.Response().Status,
			"duration": time.Since(start).String(),
		}
		if accountID, ok := c.Get("account_id").(string); ok && accountID != "" {
			fields["account_id"] = accountID
		}
		utils.WithFields(fields).Info("Request handled")

		return err
	}
}
