package auth

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/slava9999-dev/arbarea-backend/internal/common"
)

// Authenticate resolves the request identity from the Authorization header.
// Authentication here is strictly optional: a missing, malformed or expired
// token downgrades the request to a guest instead of rejecting it, because
// checkout must stay available to anonymous buyers.
func Authenticate(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r.Header.Get("Authorization"))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			identity, err := v.Verify(raw)
			if err != nil {
				log.Ctx(r.Context()).Debug().Err(err).Msg("bearer token rejected, continuing as guest")
				next.ServeHTTP(w, r)
				return
			}
			ctx := common.WithUserID(r.Context(), identity.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
