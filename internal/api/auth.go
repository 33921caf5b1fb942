package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nerrad567/devicelabel-core/internal/inventory"
)

// Claims are the bearer token claims this service reads. Tokens are issued
// elsewhere; TenantID names the connection the caller acts for.
type Claims struct {
	TenantID string `json:"tid"`
	jwt.RegisteredClaims
}

// tenant is the authenticated caller attached to the request context.
type tenant struct {
	ID     string
	UserID string
}

// authMiddleware verifies the HS256 bearer token and loads the tenant's
// connection. Requests for unknown connections are rejected.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "missing bearer token")
			return
		}

		claims, err := s.parseToken(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid token")
			return
		}

		if _, err := s.inventory.GetConnection(r.Context(), claims.TenantID); err != nil {
			if errors.Is(err, inventory.ErrConnectionNotFound) {
				writeError(w, http.StatusForbidden, ErrCodeForbidden, "unknown tenant")
				return
			}
			s.writeDomainError(w, r, err, "failed to load tenant")
			return
		}

		requestFrom(r.Context()).tenantID = claims.TenantID
		ctx := context.WithValue(r.Context(), ctxKeyTenant, tenant{ID: claims.TenantID, UserID: claims.Subject})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// parseToken validates signature, expiry and (when configured) issuer.
func (s *Server) parseToken(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.secCfg.JWT.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.secCfg.JWT.Issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(s.secCfg.JWT.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if claims.TenantID == "" {
		return nil, errors.New("token has no tenant claim")
	}
	return claims, nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// tenantFrom returns the authenticated tenant. Only valid behind authMiddleware.
func tenantFrom(ctx context.Context) tenant {
	t, _ := ctx.Value(ctxKeyTenant).(tenant)
	return t
}
