package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/qcom/otpauth/internal/middleware"
	"github.com/qcom/otpauth/internal/models"
	"github.com/qcom/otpauth/internal/service"
	"github.com/sirupsen/logrus"
)

type AuthHandlers struct {
	authService  *service.AuthService
	validate     *validator.Validate
	secureCookie bool
	logger       *logrus.Logger
}

func NewAuthHandlers(authService *service.AuthService, secureCookie bool, logger *logrus.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService:  authService,
		validate:     newValidator(),
		secureCookie: secureCookie,
		logger:       logger,
	}
}

type RequestOTPRequest struct {
	Mobile string `json:"mobile" validate:"required,mobile"`
}

type RequestOTPResponse struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

type VerifyOTPRequest struct {
	Mobile string `json:"mobile" validate:"required,mobile"`
	OTP    string `json:"otp" validate:"required,digits,min=4,max=8"`
}

type UserResponse struct {
	ID     string `json:"id"`
	Mobile string `json:"mobile"`
}

type VerifyOTPResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandlers) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req RequestOTPRequest
	if err := decodeAndValidate(h.validate, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	issued, err := h.authService.RequestOTP(r.Context(), req.Mobile)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "OTP_GENERATION_FAILED", "Failed to generate OTP")
		return
	}

	respondWithJSON(w, http.StatusOK, RequestOTPResponse{
		Message:   "OTP sent",
		ExpiresAt: issued.ExpiresAt,
	})
}

func (h *AuthHandlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := decodeAndValidate(h.validate, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	result, err := h.authService.VerifyOTP(r.Context(), req.Mobile, req.OTP)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "LOGIN_FAILED", "Failed to complete login")
		return
	}

	h.setTokenCookies(w, result.Tokens)
	respondWithJSON(w, http.StatusOK, VerifyOTPResponse{
		Message: "Logged in",
		User: UserResponse{
			ID:     result.User.ID,
			Mobile: result.User.Mobile,
		},
	})
}

func (h *AuthHandlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	refreshToken := ""
	if c, err := r.Cookie(middleware.RefreshTokenCookie); err == nil {
		refreshToken = c.Value
	}
	if refreshToken == "" && r.Body != nil {
		var req RefreshTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			refreshToken = req.RefreshToken
		}
	}

	tokens, err := h.authService.Refresh(r.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			h.clearTokenCookies(w)
			respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "TOKEN_GENERATION_FAILED", "Failed to generate tokens")
		return
	}

	h.setTokenCookies(w, tokens)
	respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Refreshed"})
}

func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.Logout(r.Context(), middleware.AccessToken(r))
	h.clearTokenCookies(w)
	respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claim, ok := middleware.ClaimFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
		return
	}

	respondWithJSON(w, http.StatusOK, UserResponse{
		ID:     claim.Subject,
		Mobile: claim.Mobile,
	})
}

func (h *AuthHandlers) setTokenCookies(w http.ResponseWriter, tokens *models.TokenPair) {
	http.SetCookie(w, h.cookie(middleware.AccessTokenCookie, tokens.AccessToken, time.Until(tokens.AccessExpiresAt)))
	http.SetCookie(w, h.cookie(middleware.RefreshTokenCookie, tokens.RefreshToken, time.Until(tokens.RefreshExpiresAt)))
}

func (h *AuthHandlers) clearTokenCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, middleware.RefreshTokenCookie} {
		c := h.cookie(name, "", 0)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (h *AuthHandlers) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}
