package auth

import (
	"context"
	"net/http"

	"stockdash/internal/api/response"
	"stockdash/internal/pkg/logger"
)

// AuthService authenticates the administrator.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Username string `json:"username" example:"admin"`
	Password string `json:"password" example:"secret"`
}

// LoginResponse carries the access token.
type LoginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type" example:"Bearer"`
}

// Handler serves the auth routes.
type Handler struct {
	Service AuthService
	Logger  logger.Logger
}

// NewHandler creates the auth handler.
func NewHandler(svc AuthService, log logger.Logger) *Handler {
	return &Handler{Service: svc, Logger: log}
}

// LoginHandler handles POST /v1/auth/login.
// @Summary Log in
// @Description Exchanges the administrator credentials for a bearer token.
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 401 {object} domain.ErrorResponse
// @Router /v1/auth/login [post]
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := response.Decode(r, &req); err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	tok, err := h.Service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}
	response.Handle(w, r, h.Logger, LoginResponse{Token: tok, TokenType: "Bearer"}, nil, http.StatusOK)
}
