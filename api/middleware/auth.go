package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/dinein-backend/api/responses"
	pkgAuth "github.com/angelmondragon/dinein-backend/pkg/auth"
	"github.com/angelmondragon/dinein-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/dinein-backend/pkg/errors"
	"github.com/angelmondragon/dinein-backend/pkg/logger"
)

// accessTokenParam carries the token for websocket clients, which cannot set
// headers from a browser.
const accessTokenParam = "access_token"

// Auth validates a staff bearer token and seeds the request context with the
// claims. When required is false a missing token is let through anonymously,
// but a present and invalid one is still rejected.
func Auth(cfg config.JWTConfig, required bool, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if !required {
					next.ServeHTTP(w, r)
					return
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseStaffToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxStaffID, claims.StaffID.String())
			ctx = context.WithValue(ctx, ctxStaffRole, string(claims.Role))
			if logg != nil {
				ctx = logg.WithStaffID(ctx, claims.StaffID.String())
				ctx = logg.WithField(ctx, "staff_role", string(claims.Role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	token := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get(accessTokenParam))
	}
	return token
}
