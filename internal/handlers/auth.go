package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/alerts"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/api"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/logger"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/middleware"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/utils"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	jwtAuth     *middleware.JWTAuthMiddleware
	expiryHours int
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(jwtAuth *middleware.JWTAuthMiddleware, expiryHours int) *AuthHandler {
	return &AuthHandler{
		jwtAuth:     jwtAuth,
		expiryHours: expiryHours,
	}
}

// SetupRoutes sets up authentication routes
func (h *AuthHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/verify", h.handleVerify)
}

// handleLogin handles POST /auth/login. Only the configured admin account
// logs in here; CRM users arrive with tokens issued by the CRM.
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req api.LoginRequest
	fieldErrs, err := api.DecodeAndValidate(r, &req)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrs != nil {
		api.RespondValidationError(w, fieldErrs)
		return
	}

	if !h.jwtAuth.ValidateCredentials(req.Username, req.Password) {
		logger.Warn("failed login attempt",
			zap.String("username", utils.EscapeForLogging(req.Username, 64)),
			zap.String("remote_addr", r.RemoteAddr))
		api.RespondError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := h.jwtAuth.GenerateToken(req.Username, alerts.RoleAdmin)
	if err != nil {
		logger.Error("failed to generate token", zap.String("username", req.Username), zap.Error(err))
		api.RespondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	logger.Info("user logged in", zap.String("username", req.Username), zap.String("remote_addr", r.RemoteAddr))

	api.RespondJSON(w, http.StatusOK, api.LoginResponse{
		Token:     token,
		Username:  req.Username,
		Role:      alerts.RoleAdmin,
		ExpiresIn: h.expiryHours * 60 * 60,
	})
}

// handleVerify handles GET /auth/verify - verifies if the current token is valid
func (h *AuthHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		api.RespondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"valid":    true,
		"username": user.Username,
		"role":     user.Role,
	})
}
