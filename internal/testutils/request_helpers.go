package testutils

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/models"
)

// CreateTestRequestWithOwner builds a request that has already passed
// identity resolution for owner. A user owner also gets claims.
func CreateTestRequestWithOwner(method, target string, body io.Reader, owner models.OwnerKey, pathParams map[string]string) *http.Request {
	req := CreateTestRequestWithoutContext(method, target, body, pathParams)

	var claims *models.Claims
	if owner.IsUser() {
		claims = &models.Claims{UserID: owner.ID(), Email: "test@example.com"}
	}

	return req.WithContext(middleware.WithOwner(req.Context(), owner, claims))
}

func CreateTestRequestWithoutContext(method, target string, body io.Reader, pathParams map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, body)

	for key, value := range pathParams {
		req.SetPathValue(key, value)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.WithValue(req.Context(), middleware.LoggerKey, logger)

	return req.WithContext(ctx)
}
