// backend/src/handlers/auth_handler.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/username/foliotracker/backend/src/config"
	"github.com/username/foliotracker/backend/src/logger"
	"github.com/username/foliotracker/backend/src/security"
	"github.com/username/foliotracker/backend/src/utils"
)

// AuthHandler implements the single-user login. The password is checked
// against the bcrypt hash from the environment; a successful login returns a
// bearer token for the rest of the API.
type AuthHandler struct {
	authService *security.AuthService
}

func NewAuthHandler(authService *security.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if req.Password == "" {
		utils.SendJSONError(w, "Password is required", http.StatusBadRequest)
		return
	}

	if err := h.authService.CompareHashAndPassword(config.Cfg.AuthPasswordHash, req.Password); err != nil {
		ctxLogger.Warn("Login attempt with wrong password")
		utils.SendJSONError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.authService.GenerateToken("owner")
	if err != nil {
		ctxLogger.Error("Failed to generate access token", "error", err)
		utils.SendJSONError(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	ctxLogger.Info("Login successful")
	utils.SendJSON(w, loginResponse{Token: token}, http.StatusOK)
}
