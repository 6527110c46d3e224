package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/wadjakorntonsri/go-redirects/pkg/config"
	"github.com/wadjakorntonsri/go-redirects/pkg/core/domain"
	"github.com/wadjakorntonsri/go-redirects/pkg/logger"
)

const authCookie = "auth_token"

type principalKey struct{}

type Middleware struct {
	jwtSecret []byte
}

func NewMiddleware(cfg *config.Config) *Middleware {
	return &Middleware{
		jwtSecret: []byte(cfg.JWTSecret),
	}
}

// AuthMiddleware accepts a JWT from the Authorization header or, failing
// that, the auth_token cookie. The token subject becomes the principal.
func (m *Middleware) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			if cookie, err := r.Cookie(authCookie); err == nil {
				tokenString = cookie.Value
			}
		}
		if tokenString == "" {
			writeError(w, fmt.Errorf("%w: missing credentials", domain.ErrUnauthorized))
			return
		}

		subject, err := m.verify(tokenString)
		if err != nil {
			logger.Log.Debug("rejected token", zap.Error(err))
			writeError(w, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized))
			return
		}

		ctx := context.WithValue(r.Context(), principalKey{}, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// PrincipalFrom returns the authenticated subject stored by AuthMiddleware.
func PrincipalFrom(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(principalKey{}).(string)
	return p, ok && p != ""
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
