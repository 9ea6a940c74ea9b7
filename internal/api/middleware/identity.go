package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/errors"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/models"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/utils/response"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "session_id"
)

type ownerContextKey struct{}

type claimsContextKey struct{}

// IdentityResolver maps a request to exactly one cart owner. A bearer token
// wins over a session token; a bearer token that fails verification is an
// error and never falls back to the session.
type IdentityResolver struct {
	jwtKey []byte
}

func NewIdentityResolver(jwtKey []byte) *IdentityResolver {
	return &IdentityResolver{jwtKey: jwtKey}
}

func (m *IdentityResolver) Resolve(r *http.Request) (models.OwnerKey, *models.Claims, error) {
	if r.Header.Get("Authorization") != "" {
		claims, err := m.Authenticate(r)
		if err != nil {
			return models.OwnerKey{}, nil, err
		}

		return models.UserOwner(claims.UserID), claims, nil
	}

	sessionID, ok, err := SessionFromRequest(r)
	if err != nil {
		return models.OwnerKey{}, nil, err
	}

	if !ok {
		return models.OwnerKey{}, nil, errors.IdentityMissingError("A bearer token or session id is required")
	}

	return models.SessionOwner(sessionID), nil, nil
}

// Authenticate verifies the bearer token of r.
func (m *IdentityResolver) Authenticate(r *http.Request) (*models.Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errors.UnauthorizedError("Authorization header is required")
	}

	// "Bearer <token>"
	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
		return nil, errors.UnauthorizedError("Invalid authorization format")
	}

	claims := &models.Claims{}

	token, err := jwt.ParseWithClaims(tokenParts[1], claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.UnauthorizedError("Unexpected signing method")
		}

		return m.jwtKey, nil
	})
	if err != nil {
		if appErr, ok := errors.IsAppError(err); ok {
			return nil, appErr
		}

		return nil, errors.UnauthorizedError("Invalid or expired token").WithError(err)
	}

	if !token.Valid || claims.UserID == uuid.Nil {
		return nil, errors.UnauthorizedError("Invalid token")
	}

	return claims, nil
}

// SessionFromRequest reads the anonymous session id from the X-Session-ID
// header, falling back to the session_id cookie.
func SessionFromRequest(r *http.Request) (uuid.UUID, bool, error) {
	raw := r.Header.Get(SessionHeader)
	if raw == "" {
		if cookie, err := r.Cookie(SessionCookie); err == nil {
			raw = cookie.Value
		}
	}

	if raw == "" {
		return uuid.Nil, false, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false, errors.BadRequestError("Invalid session id")
	}

	return id, true, nil
}

// RequireOwner resolves the owner and stores it, and the claims when there
// are any, in the request context.
func (m *IdentityResolver) RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := LoggerFromContext(r.Context())

		owner, claims, err := m.Resolve(r)
		if err != nil {
			logger.Warn("Identity resolution failed", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner, claims)))
	})
}

// RequireAdmin admits only bearer tokens carrying the admin claim.
func (m *IdentityResolver) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := LoggerFromContext(r.Context())

		claims, err := m.Authenticate(r)
		if err != nil {
			logger.Warn("Admin authentication failed", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		if !claims.IsAdmin {
			logger.Warn("Admin access denied", slog.String("userId", claims.UserID.String()))
			response.Error(w, errors.ForbiddenError("Admin access required"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), models.UserOwner(claims.UserID), claims)))
	})
}

// WithOwner returns a context carrying owner and claims, with the request
// logger tagged by owner.
func WithOwner(ctx context.Context, owner models.OwnerKey, claims *models.Claims) context.Context {
	ctx = context.WithValue(ctx, ownerContextKey{}, owner)
	if claims != nil {
		ctx = context.WithValue(ctx, claimsContextKey{}, claims)
	}

	return WithLogger(ctx, LoggerFromContext(ctx).With(slog.String("owner", owner.String())))
}

func OwnerFromContext(ctx context.Context) (models.OwnerKey, bool) {
	owner, ok := ctx.Value(ownerContextKey{}).(models.OwnerKey)

	return owner, ok && !owner.IsZero()
}

func ClaimsFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*models.Claims)

	return claims, ok
}
