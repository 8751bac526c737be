package middleware

import (
	"net"
	"net/http"
	"strings"

	"careflow-backend/pkg/auth"
	"careflow-backend/pkg/common"
)

// Authenticate validates the bearer token, applies rate limits, and puts
// the user id and raw token on the request context. The token stays on the
// context because the transcript provider authenticates downstream calls
// with the caller's own credential.
func Authenticate(validator *auth.JWTValidator, ipLimit, userLimit int) func(next http.Handler) http.Handler {
	ipLimiter := auth.NewIPRateLimiter(ipLimit)
	userLimiter := auth.NewUserRateLimiter(userLimit)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)
			if allowed, _ := ipLimiter.Allow(r.Context(), clientIP); !allowed {
				common.RespondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded")
				return
			}

			token := extractBearerToken(r)
			if token == "" {
				common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header")
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
				return
			}

			if allowed, _ := userLimiter.Allow(r.Context(), claims.UserID); !allowed {
				common.RespondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded")
				return
			}

			ctx := common.WithUserID(r.Context(), claims.UserID)
			ctx = common.WithBearerToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		header = r.Header.Get("authorization")
	}
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
