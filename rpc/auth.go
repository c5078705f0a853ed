package rpc

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// JWTConfig enables HS256 bearer tokens. An empty secret disables JWT auth.
type JWTConfig struct {
	HMACSecret string
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
}

type authenticator struct {
	static   []byte
	secret   []byte
	issuer   string
	audience string
	skew     time.Duration
}

func newAuthenticator(staticToken string, cfg JWTConfig) *authenticator {
	a := &authenticator{
		static:   []byte(strings.TrimSpace(staticToken)),
		secret:   []byte(strings.TrimSpace(cfg.HMACSecret)),
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
		skew:     cfg.ClockSkew,
	}
	if a.skew <= 0 {
		a.skew = 2 * time.Minute
	}
	return a
}

func (a *authenticator) enabled() bool {
	return a != nil && (len(a.static) > 0 || len(a.secret) > 0)
}

// verify accepts either the static operator token or a JWT signed with the
// configured secret.
func (a *authenticator) verify(token string) error {
	if len(a.static) > 0 && subtle.ConstantTimeCompare([]byte(token), a.static) == 1 {
		return nil
	}
	if len(a.secret) == 0 {
		return errors.New("invalid RPC credentials")
	}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.skew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return errors.New("token invalid")
	}
	return nil
}

func extractBearer(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.auth.enabled() {
			next.ServeHTTP(w, r)
			return
		}
		token := extractBearer(r.Header.Get("Authorization"))
		if token == "" {
			w.Header().Set("Content-Type", "application/json")
			writeError(w, http.StatusUnauthorized, nil, codeUnauthorized, "missing bearer token", nil)
			return
		}
		if err := s.auth.verify(token); err != nil {
			s.logger.Debug("rpc auth rejected", slog.String("request_id", requestIDFrom(r.Context())), slog.String("error", err.Error()))
			w.Header().Set("Content-Type", "application/json")
			writeError(w, http.StatusUnauthorized, nil, codeUnauthorized, "invalid RPC credentials", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
