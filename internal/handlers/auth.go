package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/go-billing/auth"
	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/models"
	"gorm.io/gorm"
)

// AuthHandler exchanges an organization API key for a session cookie.
type AuthHandler struct {
	db *gorm.DB
}

func NewAuthHandler(db *gorm.DB) *AuthHandler {
	return &AuthHandler{db: db}
}

type loginRequest struct {
	OrganizationID uint   `json:"organization_id"`
	APIKey         string `json:"api_key"`
}

// Login: POST /session
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httpx.Decode(w, r, &req) {
		return
	}
	var org models.Organization
	err := h.db.WithContext(r.Context()).First(&org, req.OrganizationID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		httpx.Error(w, r, err)
		return
	}
	// Unknown organizations and wrong keys get the same answer.
	if err != nil || !auth.CheckAPIKey(org.APIKeyHash, req.APIKey) {
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}
	auth.CreateSession(w, org.ID)
	httpx.JSON(w, http.StatusOK, map[string]any{"organization_id": org.ID, "name": org.Name})
}

// Logout: DELETE /session
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}
