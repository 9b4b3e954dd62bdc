package handlers_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/donaldgifford/listing-aggregator/internal/api/handlers"
	ebayMocks "github.com/donaldgifford/listing-aggregator/internal/ebay/mocks"
	"github.com/donaldgifford/listing-aggregator/pkg/logger"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

func newTokenServer(t *testing.T, tokens *ebayMocks.MockTokenProvider) *echo.Echo {
	t.Helper()
	e := echo.New()
	handlers.RegisterTokenRoutes(e, handlers.NewTokenHandler(tokens, logger.Discard()))
	return e
}

func TestTokenHandler_Root(t *testing.T) {
	t.Parallel()

	e := newTokenServer(t, ebayMocks.NewMockTokenProvider(t))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"eBay Token Proxy is running successfully."}`, rec.Body.String())
}

func TestTokenHandler_GetToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		token      string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "returns cached or fresh token",
			token:      "v^1.1#abc",
			wantStatus: http.StatusOK,
			wantBody:   `{"access_token":"v^1.1#abc"}`,
		},
		{
			name:       "missing credentials returns 500",
			err:        fmt.Errorf("%w: ebay client id and secret are required", domain.ErrConfig),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Missing EBAY_CLIENT_ID or EBAY_CLIENT_SECRET on server"}`,
		},
		{
			name:       "failed exchange returns 502 with details",
			err:        fmt.Errorf("%w: token endpoint returned 401: invalid_client", domain.ErrAuth),
			wantStatus: http.StatusBadGateway,
			wantBody: `{"error":"Failed to retrieve token",` +
				`"details":"authentication failed: token endpoint returned 401: invalid_client"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tokens := ebayMocks.NewMockTokenProvider(t)
			tokens.EXPECT().Token(mock.Anything).Return(tt.token, tt.err).Once()

			e := newTokenServer(t, tokens)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/get-ebay-token", http.NoBody))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}
