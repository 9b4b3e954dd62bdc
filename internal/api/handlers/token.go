package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/donaldgifford/listing-aggregator/internal/ebay"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

const (
	proxyRunningMessage  = "eBay Token Proxy is running successfully."
	missingCredentialMsg = "Missing EBAY_CLIENT_ID or EBAY_CLIENT_SECRET on server"
	tokenFailedMsg       = "Failed to retrieve token"
)

// TokenHandler exposes the server's eBay application token to clients that
// should not hold the client secret themselves.
type TokenHandler struct {
	tokens ebay.TokenProvider
	log    *slog.Logger
}

// NewTokenHandler creates a new TokenHandler.
func NewTokenHandler(tokens ebay.TokenProvider, log *slog.Logger) *TokenHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TokenHandler{tokens: tokens, log: log}
}

// TokenResponse is the token proxy success body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Root reports that the token proxy is up.
//
// @Summary Token proxy status
// @Tags token
// @Produce json
// @Success 200 {object} MessageResponse
// @Router / [get]
func (*TokenHandler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, MessageResponse{Message: proxyRunningMessage})
}

// GetToken returns a valid access token, refreshing the cached one when it
// is close to expiry.
//
// @Summary Get an eBay application token
// @Tags token
// @Produce json
// @Success 200 {object} TokenResponse
// @Failure 500 {object} TokenErrorResponse
// @Failure 502 {object} TokenErrorResponse
// @Router /get-ebay-token [get]
func (h *TokenHandler) GetToken(c echo.Context) error {
	token, err := h.tokens.Token(c.Request().Context())
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, TokenResponse{AccessToken: token})
	case errors.Is(err, domain.ErrConfig):
		h.log.Error("token proxy misconfigured", "error", err)
		return c.JSON(http.StatusInternalServerError, TokenErrorResponse{Error: missingCredentialMsg})
	default:
		h.log.Warn("token exchange failed", "error", err)
		return c.JSON(http.StatusBadGateway, TokenErrorResponse{
			Error:   tokenFailedMsg,
			Details: err.Error(),
		})
	}
}

// RegisterTokenRoutes mounts the token proxy on e.
func RegisterTokenRoutes(e *echo.Echo, h *TokenHandler) {
	e.GET("/", h.Root)
	e.GET("/get-ebay-token", h.GetToken)
}
