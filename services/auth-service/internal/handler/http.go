package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/quangdng/task-tracker-api/services/auth-service/internal/usecase"
	"github.com/quangdng/task-tracker-api/shared/auth"
	"github.com/quangdng/task-tracker-api/shared/validation"
)

type contextKey struct{}

var userIDKey = contextKey{}

// UserIDFromContext returns the authenticated user id placed by the session
// middleware.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok
}

// AuthHTTPHandler exposes the authentication operations over HTTP.
type AuthHTTPHandler struct {
	authUsecase          usecase.AuthUsecase
	passwordResetUsecase usecase.PasswordResetUsecase
	validator            *validation.Validator
	logger               *zerolog.Logger
}

func NewAuthHTTPHandler(
	authUsecase usecase.AuthUsecase,
	passwordResetUsecase usecase.PasswordResetUsecase,
	validator *validation.Validator,
	logger *zerolog.Logger,
) *AuthHTTPHandler {
	return &AuthHTTPHandler{
		authUsecase:          authUsecase,
		passwordResetUsecase: passwordResetUsecase,
		validator:            validator,
		logger:               logger,
	}
}

// Routes builds the router for the auth endpoints.
func (h *AuthHTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/google", h.handleGoogleLogin)
	r.Post("/auth/forgot-password", h.handleForgotPassword)
	r.Post("/auth/reset-password", h.handleResetPassword)

	r.Group(func(r chi.Router) {
		r.Use(h.requireSession)
		r.Put("/users/me/profile", h.handleUpdateProfile)
		r.Put("/users/me/password", h.handleUpdatePassword)
	})

	return r
}

// requireSession authenticates the request by its bearer token and stores the
// resolved user id on the context.
func (h *AuthHTTPHandler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			h.respondError(w, http.StatusUnauthorized, "missing authorization header", nil)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			h.respondError(w, http.StatusUnauthorized, "invalid authorization header format", nil)
			return
		}

		userID, err := h.authUsecase.ExtractUserID(parts[1])
		if err != nil {
			h.respondError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error(), nil)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *AuthHTTPHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	profile, err := h.authUsecase.Register(r.Context(), usecase.RegisterParams{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.respondUsecaseError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, profileResponseOf(profile))
}

func (h *AuthHTTPHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.authUsecase.Login(r.Context(), usecase.LoginParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondUsecaseError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, loginResponseOf(result))
}

func (h *AuthHTTPHandler) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req GoogleLoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.authUsecase.AuthenticateWithGoogle(r.Context(), req.AccessToken)
	if err != nil {
		h.respondUsecaseError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, loginResponseOf(result))
}

func (h *AuthHTTPHandler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	message, err := h.passwordResetUsecase.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		h.respondUsecaseError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, MessageResponse{Message: message})
}

func (h *AuthHTTPHandler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.passwordResetUsecase.ResetPassword(r.Context(), usecase.ResetPasswordParams{
		Email:           req.Email,
		Token:           req.Token,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.respondUsecaseError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, MessageResponse{Message: "Password has been reset successfully."})
}

func (h *AuthHTTPHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthenticated", nil)
		return
	}

	var req UpdateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.authUsecase.UpdateProfile(r.Context(), userID, usecase.UpdateProfileParams{
		Username:        req.Username,
		ProfileImageURL: req.ProfileImageURL,
	})
	if err != nil {
		h.respondUsecaseError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, MessageResponse{Message: "Profile updated."})
}

func (h *AuthHTTPHandler) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthenticated", nil)
		return
	}

	var req UpdatePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.authUsecase.UpdatePassword(r.Context(), userID, usecase.UpdatePasswordParams{
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.respondUsecaseError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, MessageResponse{Message: "Password updated."})
}

// decode unmarshals and validates a request body. It writes the error
// response itself and reports whether the handler should continue.
func (h *AuthHTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return false
	}

	if fields := h.validator.ValidateStruct(dst); fields != nil {
		h.respondError(w, http.StatusBadRequest, "validation failed", fields)
		return false
	}

	return true
}

// respondUsecaseError maps business failures to status codes. Anything
// unrecognized is a dependency failure and is logged but not echoed to the
// client.
func (h *AuthHTTPHandler) respondUsecaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrPasswordMismatch),
		errors.Is(err, usecase.ErrMissingField),
		errors.Is(err, usecase.ErrSamePassword):
		h.respondError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, usecase.ErrInvalidCredentials),
		errors.Is(err, usecase.ErrInvalidOrExpiredToken),
		errors.Is(err, auth.ErrInvalidToken):
		h.respondError(w, http.StatusUnauthorized, err.Error(), nil)
	case errors.Is(err, usecase.ErrEmailNotVerified):
		h.respondError(w, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, usecase.ErrUserNotFound):
		h.respondError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, usecase.ErrUserAlreadyExists):
		h.respondError(w, http.StatusConflict, err.Error(), nil)
	default:
		h.logger.Error().Err(err).Msg("request failed")
		h.respondError(w, http.StatusInternalServerError, "something went wrong", nil)
	}
}

func (h *AuthHTTPHandler) respondError(w http.ResponseWriter, status int, message string, fields map[string]string) {
	h.respondJSON(w, status, ErrorResponse{Error: message, Fields: fields})
}

func (h *AuthHTTPHandler) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func profileResponseOf(profile *usecase.Profile) ProfileResponse {
	return ProfileResponse{
		UserID:          profile.UserID,
		Username:        profile.Username,
		Email:           profile.Email,
		ProfileImageURL: profile.ProfileImageURL,
	}
}

func loginResponseOf(result *usecase.LoginResult) LoginResponse {
	return LoginResponse{
		Profile: profileResponseOf(&result.Profile),
		Token:   result.Token,
	}
}
