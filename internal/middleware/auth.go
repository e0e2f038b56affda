package middleware

import (
	"context"
	"net/http"
	"strings"

	"gameplay/internal/auth"
	"gameplay/internal/db"
	"gameplay/internal/models"

	"go.mongodb.org/mongo-driver/bson"
)

type contextKey string

const (
	UserContextKey contextKey = "user"
)

// AuthMiddleware verifies bearer tokens issued by the external auth
// collaborator and loads the core's own User record for the identified
// id. It never issues, refreshes, or revokes tokens itself.
type AuthMiddleware struct {
	verifier *auth.Verifier
	db       *db.MongoDB
}

func NewAuthMiddleware(verifier *auth.Verifier, database *db.MongoDB) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		db:       database,
	}
}

// RequireAuth validates the bearer token and loads the user into context.
// Returns 401 if the token is missing, invalid, or the user is inactive.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := m.authenticate(r)
		if !ok {
			http.Error(w, "Authorization required", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth validates the bearer token if present, but allows the
// request to continue without a user on any failure.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := m.authenticate(r); ok {
			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) authenticate(r *http.Request) (*models.User, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, false
	}

	externalID, err := m.verifier.VerifyBearerToken(parts[1])
	if err != nil {
		return nil, false
	}

	var user models.User
	err = m.db.Users().FindOne(r.Context(), bson.M{"externalId": externalID}).Decode(&user)
	if err != nil || !user.IsActive {
		return nil, false
	}
	return &user, true
}

// GetUserFromContext retrieves the authenticated user from the request context.
func GetUserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok
}
