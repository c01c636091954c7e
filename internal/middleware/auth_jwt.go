package middleware

import (
	"net/http"
	"strings"

	"app/internal/token"

	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey   = "user_id"   // int64
	CtxUserRoleKey = "user_role" // string
	CtxJTIKey      = "jti"       // string
	CtxTokenExpKey = "token_exp" // time.Time
)

// bearerAuth用のJWT検証ミドルウェア。
// 署名・期限・type・deny-listの検証はtoken.Serviceに任せる。
func AuthJWT(tokens *token.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//Authorizationヘッダを取得
			authz := c.Request().Header.Get("Authorization")
			if authz == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//Bearer形式か確認してtokenを抜く
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			rawToken := strings.TrimSpace(parts[1])
			if rawToken == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//access tokenとして検証（refreshをここで出されたら401）
			claims, err := tokens.Verify(c.Request().Context(), rawToken, token.TypeAccess)
			if err != nil {
				if token.IsAuthError(err) {
					return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
				}
				// deny-list参照の障害は拒否するが、有効かもしれないtokenを401と言わない
				return c.JSON(http.StatusServiceUnavailable, errorJSON("service unavailable"))
			}

			userID, err := claims.UserID()
			if err != nil || userID <= 0 {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//expの無いtokenは発行元が自分ではない
			if claims.ExpiresAt == nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//contextへ保存
			c.Set(CtxUserIDKey, userID)
			c.Set(CtxUserRoleKey, claims.Role)
			c.Set(CtxJTIKey, claims.ID)
			c.Set(CtxTokenExpKey, claims.ExpiresAt.Time)

			return next(c)
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}
