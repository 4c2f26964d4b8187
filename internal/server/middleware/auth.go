package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var allPermissions = []string{
	"research.run",
	"research.view",
	"graph.view",
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": msg})
}

func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ac := c.(*AppContext)
		app := ac.App

		if app.AuthDisabled() {
			ac.User = &AppUser{UserID: "anonymous", Role: "admin", Permissions: allPermissions}
			return next(c)
		}

		authHeader := c.Request().Header.Get("Authorization")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			return unauthorized(c, "Unauthorized")
		}

		if app.MasterAPIKey != "" && token == app.MasterAPIKey {
			ac.User = &AppUser{UserID: "master", Role: "admin", Permissions: allPermissions}
			return next(c)
		}
		if app.Key == nil {
			return unauthorized(c, "Unauthorized")
		}

		parsed, err := jwt.Parse(token, app.Key.Keyfunc)
		if err != nil || !parsed.Valid {
			return unauthorized(c, "Unauthorized")
		}
		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return unauthorized(c, "Unauthorized")
		}

		var userID string
		switch id := claims["id"].(type) {
		case string:
			userID = id
		case float64:
			userID = fmt.Sprintf("%.0f", id)
		default:
			if sub, err := claims.GetSubject(); err == nil {
				userID = sub
			}
		}
		if userID == "" {
			return unauthorized(c, "Invalid user ID")
		}

		role := "user"
		if r, ok := claims["role"].(string); ok {
			role = r
		}

		var permissions []string
		if perms, ok := claims["permissions"].([]any); ok {
			for _, p := range perms {
				if s, ok := p.(string); ok {
					permissions = append(permissions, s)
				}
			}
		}
		if role == "admin" && len(permissions) == 0 {
			permissions = allPermissions
		}

		ac.User = &AppUser{UserID: userID, Role: role, Permissions: permissions}
		return next(c)
	}
}
