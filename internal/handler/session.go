package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/tailor-orders/internal/domain/access"
)

type userKey struct{}

func withUser(ctx context.Context, u *access.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// currentUser returns the authenticated user. Only valid behind authenticate.
func currentUser(ctx context.Context) *access.User {
	u, _ := ctx.Value(userKey{}).(*access.User)
	return u
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// authenticate resolves the bearer token into a user and rejects the request
// with 401 otherwise.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, access.ErrUnauthenticated.Error())
			return
		}
		u, err := h.access.Authenticate(r.Context(), token)
		if err != nil {
			handleError(w, r, err)
			return
		}
		ctx := withUser(r.Context(), u)
		ctx = zctx.Base(ctx, zctx.From(ctx).With(zap.Int64("user_id", u.ID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// require lets the request through when the user holds any of names.
func require(names ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !access.UserHasAny(currentUser(r.Context()), names...) {
				writeError(w, http.StatusForbidden, access.ErrForbidden.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
