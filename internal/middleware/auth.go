package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/NickZhezl/LiveCodeInno/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

// Gin 上下文里存放房间会话 claims 的键
const contextKeyRoomClaims = "room_claims"

// ErrMissingToken 表示请求既没有 Authorization 头也没有 token 查询参数
var ErrMissingToken = errors.New("missing session token")

// RoomAuth 返回一个 Gin 中间件，用于验证房间会话 token。
// token 可以放在 Authorization: Bearer 头里，也可以放在 ?token=
// 查询参数里 (浏览器的 WebSocket API 不能自定义请求头)。
func RoomAuth(jwtSecret string) gin.HandlerFunc {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for RoomAuth middleware")
	}

	return func(c *gin.Context) {
		tokenStr, err := extractToken(c)
		if err != nil {
			if errors.Is(err, ErrMissingToken) {
				logrus.Warn("RoomAuth middleware: missing session token")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Session token is required"})
			} else {
				logrus.WithError(err).Warn("RoomAuth middleware: error extracting token")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			}
			c.Abort()
			return
		}

		claims, err := validateToken(tokenStr, jwtSecret)
		if err != nil {
			logCtx := logrus.WithError(err)
			logCtx.Warn("RoomAuth middleware: invalid token")
			var validationError *jwt.ValidationError
			if errors.As(err, &validationError) {
				if validationError.Errors&jwt.ValidationErrorExpired != 0 {
					logCtx.Warn("Reason: token is expired")
				}
				if validationError.Errors&jwt.ValidationErrorSignatureInvalid != 0 {
					logCtx.Warn("Reason: token signature is invalid")
				}
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		if claims.RoomID == "" || claims.UserName == "" {
			logrus.Error("RoomAuth middleware: room_id or user_name claim missing in token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token missing required claims"})
			c.Abort()
			return
		}

		c.Set(contextKeyRoomClaims, claims)
		logrus.WithFields(logrus.Fields{"room_id": claims.RoomID, "user_name": claims.UserName}).
			Debug("RoomAuth middleware: session authenticated")
		c.Next()
	}
}

// RoomClaimsFromContext 取出中间件放入的房间会话 claims
func RoomClaimsFromContext(c *gin.Context) (*service.RoomClaims, bool) {
	value, exists := c.Get(contextKeyRoomClaims)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*service.RoomClaims)
	return claims, ok
}

// extractToken 从 Authorization 头或 token 查询参数提取 token
func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", jwt.ErrTokenMalformed
		}
		return parts[1], nil
	}
	if token := c.Query("token"); token != "" {
		return token, nil
	}
	return "", ErrMissingToken
}

// validateToken 解析并验证房间会话 token
func validateToken(tokenStr string, secret string) (*service.RoomClaims, error) {
	claims := &service.RoomClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
