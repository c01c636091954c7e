package handler

import (
	"errors"
	"net/http"
	"time"

	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// usecaseの番兵エラーをHTTPステータスへ寄せる。メッセージは汎用にとどめる。
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, usecase.ErrValidation):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation error"})
	case errors.Is(err, usecase.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	case errors.Is(err, usecase.ErrAccountLocked):
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "account locked"})
	case errors.Is(err, usecase.ErrSecurityIncident):
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "security incident detected"})
	case errors.Is(err, usecase.ErrForbidden):
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
	case errors.Is(err, usecase.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, usecase.ErrConflict):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "conflict"})
	default:
		//500
		c.Logger().Errorf("handler: %v", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

//middleware.AuthJWT が c.Set("user_id", int64) した値を取り出す

func getUserIDFromContext(c echo.Context) (int64, bool) {
	v := c.Get(middleware.CtxUserIDKey)
	if v == nil {
		return 0, false
	}

	id, ok := v.(int64)
	if !ok {
		return 0, false
	}

	return id, true
}

func getJTIFromContext(c echo.Context) (string, bool) {
	v, ok := c.Get(middleware.CtxJTIKey).(string)
	return v, ok
}

func getTokenExpFromContext(c echo.Context) (time.Time, bool) {
	v, ok := c.Get(middleware.CtxTokenExpKey).(time.Time)
	return v, ok
}

// 監査ログに残す接続元情報
func clientMeta(c echo.Context) usecase.ClientMeta {
	return usecase.ClientMeta{
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}
