// Package handlers exposes the billing services as a JSON HTTP API. Every
// handler expects auth.RequireTenant in front of it.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/diewo77/go-billing/auth"
	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/apperror"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/render"
	"github.com/diewo77/go-billing/internal/services"
	"gorm.io/gorm"
)

// Documents loads what PDF rendering needs besides the document itself.
type Documents struct {
	db       *gorm.DB
	renderer *render.Renderer
}

func NewDocuments(db *gorm.DB, renderer *render.Renderer) *Documents {
	return &Documents{db: db, renderer: renderer}
}

func (d *Documents) organization(ctx context.Context, tenantID uint) (*models.Organization, error) {
	var org models.Organization
	if err := d.db.WithContext(ctx).First(&org, tenantID).Error; err != nil {
		return nil, apperror.FromDB("organization.get", "organization", err)
	}
	return &org, nil
}

// tenant returns the request's tenant. RequireTenant guarantees one, so a
// missing tenant is answered like an unauthenticated request.
func tenant(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, ok := auth.TenantIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
	}
	return id, ok
}

// pathID parses the {id} wildcard.
func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return 0, false
	}
	return uint(id), true
}

// scope combines tenant and pathID.
func scope(w http.ResponseWriter, r *http.Request) (tenantID, id uint, ok bool) {
	if tenantID, ok = tenant(w, r); !ok {
		return 0, 0, false
	}
	id, ok = pathID(w, r)
	return tenantID, id, ok
}

// listFilter reads status, pay_status, q, page and limit from the query string.
func listFilter(r *http.Request) services.ListFilter {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return services.ListFilter{
		Status:    strings.TrimSpace(q.Get("status")),
		PayStatus: strings.ToUpper(strings.TrimSpace(q.Get("pay_status"))),
		Search:    q.Get("q"),
		Page:      page,
		Limit:     limit,
	}
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// decodeReason reads an optional {"reason": "..."} body.
func decodeReason(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req reasonRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return "", false
	}
	reason := strings.TrimSpace(req.Reason)
	if len(reason) > 500 {
		httpx.Error(w, r, apperror.Invalid("cancel", "reason", "too_long"))
		return "", false
	}
	return reason, true
}

func writePDF(w http.ResponseWriter, doc *render.Document) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}
