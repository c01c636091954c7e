package server

import (
	"context"

	"app/internal/handler"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
)

// HTTPサーバ本体。ルーティングは各handlerのRegisterRoutesに委譲する。
type Server struct {
	e *echo.Echo
}

func New(authH *handler.AuthHandler, sessionH *handler.SessionHandler) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(log.INFO)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.Logger())

	RegisterRoutes(e, authH, sessionH)

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

// Shutdown は受付を止めて処理中のリクエストを待つ。
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
