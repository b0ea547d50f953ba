package middleware

import (
	"context"
	"net/http"
	"strings"

	"gastos/internal/shared/auth"
)

type ContextKey string

const (
	UserIDKey   ContextKey = "user_id"
	EmailKey    ContextKey = "email"
	MetadataKey ContextKey = "user_metadata"
)

// MsgNotSignedIn is the body of every 401 the auth middleware writes.
const MsgNotSignedIn = "must be signed in"

// Auth requires a signed-in user. The token is read from the Authorization
// header, then from the access_token cookie, which is what EventSource
// clients can send.
func Auth(jwt *auth.JWT) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, MsgNotSignedIn, http.StatusUnauthorized)
				return
			}

			claims, err := jwt.Validate(token)
			if err != nil {
				http.Error(w, MsgNotSignedIn, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, EmailKey, claims.Email)
			ctx = context.WithValue(ctx, MetadataKey, claims.UserMetadata)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// UserID returns the signed-in user's id, or "" when the request did not
// pass through Auth.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}

// Email returns the signed-in user's email, if the token carried one.
func Email(ctx context.Context) string {
	email, _ := ctx.Value(EmailKey).(string)
	return email
}

// UserMetadata returns the sign-up metadata from the user's token, or nil.
func UserMetadata(ctx context.Context) map[string]any {
	md, _ := ctx.Value(MetadataKey).(map[string]any)
	return md
}
