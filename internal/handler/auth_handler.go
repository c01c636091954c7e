package handler

import (
	"net/http"
	"strconv"

	"app/internal/domain/model"
	"app/internal/middleware"
	"app/internal/token"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /auth のHTTP
type AuthHandler struct {
	uc     *usecase.AuthUsecase
	tokens *token.Service
}

// DI
func NewAuthHandler(uc *usecase.AuthUsecase, tokens *token.Service) *AuthHandler {
	return &AuthHandler{uc: uc, tokens: tokens}
}

type OTPRequestBody struct {
	Email  string `json:"email"`
	Action string `json:"action"`
}

type OTPVerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

type UnlockRequest struct {
	UserID int64 `json:"user_id"`
}

// /auth 配下を登録
func (h *AuthHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/auth")

	// 総当たり対策はパスワード・OTPを受ける経路だけ
	limited := middleware.RateLimit(5, 10)

	g.POST("/register", h.Register, limited)
	g.POST("/otp/request", h.RequestOTP, limited)
	g.POST("/otp/verify", h.VerifyOTP, limited)
	g.POST("/login", h.Login, limited)
	g.POST("/refresh", h.Refresh)
	g.POST("/reset-password", h.ResetPassword, limited)

	authed := g.Group("", middleware.AuthJWT(h.tokens))
	authed.POST("/logout", h.Logout)
	authed.POST("/change-password", h.ChangePassword)
	authed.POST("/unlock", h.Unlock, middleware.AdminRoleGuard())

	// /users/meは認証必須
	e.GET("/users/me", h.Me, middleware.AuthJWT(h.tokens))
}

// RegisterはPOST /auth/register のハンドラ
func (h *AuthHandler) Register(c echo.Context) error {
	var req usecase.AuthRegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Register(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

// RequestOTPはPOST /auth/otp/request のハンドラ
func (h *AuthHandler) RequestOTP(c echo.Context) error {
	var req OTPRequestBody
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.RequestOTP(c.Request().Context(), req.Email, model.OTPAction(req.Action), clientMeta(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// VerifyOTPはPOST /auth/otp/verify のハンドラ（register用OTPの消費＝アクティブ化）
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req OTPVerifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.VerifyRegistrationOTP(c.Request().Context(), req.Email, req.Code, clientMeta(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// LoginはPOST /auth/login のハンドラ
func (h *AuthHandler) Login(c echo.Context) error {
	var req usecase.AuthLoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Login(c.Request().Context(), req, clientMeta(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// RefreshはPOST /auth/refresh のハンドラ。bodyのrefresh_tokenをローテーションする。
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Refresh(c.Request().Context(), req.RefreshToken, clientMeta(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// LogoutはPOST /auth/logout のハンドラ。提示されたaccess tokenだけ失効する。
func (h *AuthHandler) Logout(c echo.Context) error {
	userID, _ := getUserIDFromContext(c)
	jti, _ := getJTIFromContext(c)
	exp, _ := getTokenExpFromContext(c)

	out, err := h.uc.Logout(c.Request().Context(), userID, jti, exp, clientMeta(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// ChangePasswordはPOST /auth/change-password のハンドラ
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.ChangePassword(c.Request().Context(), userID, req.OldPassword, req.NewPassword, clientMeta(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// ResetPasswordはPOST /auth/reset-password のハンドラ（未ログイン、OTP必須）
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.ResetPasswordWithOTP(c.Request().Context(), req.Email, req.Code, req.NewPassword, clientMeta(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// UnlockはPOST /auth/unlock のハンドラ（ADMIN限定）
func (h *AuthHandler) Unlock(c echo.Context) error {
	var req UnlockRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if req.UserID <= 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user_id"})
	}

	out, err := h.uc.Unlock(c.Request().Context(), req.UserID, clientMeta(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// MeはGET /users/me のハンドラ
func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.Me(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// クエリの数値パラメータ（default付き）
func queryInt(c echo.Context, name string, def int) (int, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
