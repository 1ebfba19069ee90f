package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/apperror"
	"github.com/diewo77/go-billing/internal/db"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/validation"
	"gorm.io/gorm"
)

// ProductHandler manages the catalog that line items may point at.
type ProductHandler struct {
	db *gorm.DB
}

func NewProductHandler(db *gorm.DB) *ProductHandler {
	return &ProductHandler{db: db}
}

type productRequest struct {
	Code      string `json:"code" validate:"required,max=50"`
	Name      string `json:"name" validate:"required,max=255"`
	UnitPrice int64  `json:"unit_price" validate:"gte=0"`
	Unit      string `json:"unit" validate:"max=50"`
}

func (p *productRequest) normalize() validation.Violations {
	p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
	p.Name = strings.TrimSpace(p.Name)
	if p.Unit == "" {
		p.Unit = "unit"
	}
	return validation.Struct(p)
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit := 20
	offset := (page - 1) * limit

	q := h.db.WithContext(r.Context()).Model(&models.Product{}).Where("tenant_id = ?", tenantID)
	if query != "" {
		like := "%" + strings.ToLower(query) + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(code) LIKE ?)", like, like)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		httpx.Error(w, r, err)
		return
	}
	products := []models.Product{}
	if err := q.Order("name").Limit(limit).Offset(offset).Find(&products).Error; err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": products, "total": total, "page": page, "limit": limit})
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}
	var req productRequest
	if !httpx.Decode(w, r, &req) {
		return
	}
	if v := req.normalize(); !v.Empty() {
		httpx.Error(w, r, apperror.Validation("product.create", v))
		return
	}
	product := models.Product{TenantID: tenantID, Code: req.Code, Name: req.Name, UnitPrice: req.UnitPrice, Unit: req.Unit}
	if err := h.db.WithContext(r.Context()).Create(&product).Error; err != nil {
		if db.IsDuplicate(err) {
			httpx.Error(w, r, apperror.Invalid("product.create", "code", "code_already_exists"))
			return
		}
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	var product models.Product
	if err := h.db.WithContext(r.Context()).Where("id = ? AND tenant_id = ?", id, tenantID).First(&product).Error; err != nil {
		httpx.Error(w, r, apperror.FromDB("product.get", "product", err))
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	var req productRequest
	if !httpx.Decode(w, r, &req) {
		return
	}
	if v := req.normalize(); !v.Empty() {
		httpx.Error(w, r, apperror.Validation("product.update", v))
		return
	}

	var product models.Product
	conn := h.db.WithContext(r.Context())
	if err := conn.Where("id = ? AND tenant_id = ?", id, tenantID).First(&product).Error; err != nil {
		httpx.Error(w, r, apperror.FromDB("product.update", "product", err))
		return
	}
	product.Code, product.Name, product.UnitPrice, product.Unit = req.Code, req.Name, req.UnitPrice, req.Unit
	if err := conn.Save(&product).Error; err != nil {
		if db.IsDuplicate(err) {
			httpx.Error(w, r, apperror.Invalid("product.update", "code", "code_already_exists"))
			return
		}
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

// Delete soft-deletes the product. Line items keep their back-reference.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	res := h.db.WithContext(r.Context()).Where("id = ? AND tenant_id = ?", id, tenantID).Delete(&models.Product{})
	if res.Error != nil {
		httpx.Error(w, r, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		httpx.Error(w, r, apperror.NotFound("product.delete", "product"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
