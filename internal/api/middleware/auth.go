// internal/api/middleware/auth.go
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"orders-service/internal/api/responses"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Chaves do contexto gin preenchidas pelo middleware de autenticação.
const (
	ContextUsername = "username"
	ContextRoles    = "roles"
)

// Claims são as permissões emitidas pelo serviço de autenticação.
type Claims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// ParseToken valida assinatura, algoritmo e expiração.
func ParseToken(secret []byte, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Username == "" {
		return nil, errors.New("token sem usuário")
	}
	return claims, nil
}

// Auth exige um token Bearer válido.
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			responses.Error(c, http.StatusUnauthorized, "Token de acesso ausente")
			return
		}
		claims, err := ParseToken(secret, strings.TrimSpace(token))
		if err != nil {
			responses.Error(c, http.StatusUnauthorized, "Token de acesso inválido ou expirado")
			return
		}
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextRoles, claims.Roles)
		c.Next()
	}
}
