package identity

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	httperrors "github.com/codequest-edu/game-server/pkg/http/errors"
)

// Header carries the caller's identity, injected by the API gateway in front
// of this service. The service itself performs no authentication.
const Header = "X-User-ID"

type userIDKey struct{}

// Middleware extracts the user ID header into the request context and rejects
// requests without a well-formed one.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(Header)
		if raw == "" {
			httperrors.RespondUnauthorized(w, httperrors.ErrCodeIdentityRequired, "missing "+Header+" header")
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			httperrors.RespondUnauthorized(w, httperrors.ErrCodeIdentityInvalid, Header+" must be a UUID")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// WithUserID stores the caller's ID in the context.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserID returns the caller's ID from the context. ok is false on requests
// that bypassed the middleware.
func UserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	return id, ok
}
