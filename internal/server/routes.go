package server

import (
	"net/http"

	"app/internal/handler"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, authH *handler.AuthHandler, sessionH *handler.SessionHandler) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	authH.RegisterRoutes(e)
	sessionH.RegisterRoutes(e)
}
