package handlers

import (
	"net/http"
	"strings"

	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/apperror"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/validation"
	"gorm.io/gorm"
)

// OrganizationHandler edits the tenant profile printed on every document.
type OrganizationHandler struct {
	db *gorm.DB
}

func NewOrganizationHandler(db *gorm.DB) *OrganizationHandler {
	return &OrganizationHandler{db: db}
}

type organizationRequest struct {
	Name              string `json:"name" validate:"required,max=255"`
	Email             string `json:"email" validate:"omitempty,email,max=255"`
	Phone             string `json:"phone" validate:"max=50"`
	Address           string `json:"address" validate:"max=500"`
	City              string `json:"city" validate:"max=100"`
	Country           string `json:"country" validate:"max=100"`
	TaxNumber         string `json:"tax_number" validate:"max=50"`
	LogoURL           string `json:"logo_url" validate:"omitempty,url,max=500"`
	SignatoryName     string `json:"signatory_name" validate:"max=255"`
	BankName          string `json:"bank_name" validate:"max=255"`
	BankAccountName   string `json:"bank_account_name" validate:"max=255"`
	BankAccountNumber string `json:"bank_account_number" validate:"max=100"`
}

// Get: GET /organization
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}
	var org models.Organization
	if err := h.db.WithContext(r.Context()).First(&org, tenantID).Error; err != nil {
		httpx.Error(w, r, apperror.FromDB("organization.get", "organization", err))
		return
	}
	httpx.JSON(w, http.StatusOK, org)
}

// Update: PUT /organization. The profile is replaced as a whole.
func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}
	var req organizationRequest
	if !httpx.Decode(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if v := validation.Struct(req); !v.Empty() {
		httpx.Error(w, r, apperror.Validation("organization.update", v))
		return
	}

	conn := h.db.WithContext(r.Context())
	var org models.Organization
	if err := conn.First(&org, tenantID).Error; err != nil {
		httpx.Error(w, r, apperror.FromDB("organization.update", "organization", err))
		return
	}
	org.Name = req.Name
	org.Email = req.Email
	org.Phone = req.Phone
	org.Address = req.Address
	org.City = req.City
	org.Country = req.Country
	org.TaxNumber = req.TaxNumber
	org.LogoURL = req.LogoURL
	org.SignatoryName = req.SignatoryName
	org.BankName = req.BankName
	org.BankAccountName = req.BankAccountName
	org.BankAccountNumber = req.BankAccountNumber
	if err := conn.Save(&org).Error; err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, org)
}
