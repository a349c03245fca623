package api

import (
	"net/http"

	"carflex-purchase-api/internal/models"
	"carflex-purchase-api/internal/response"

	"github.com/gin-gonic/gin"
)

// GetPackages lists the active premium packages.
// GET /api/admin/packages
func (h *Handler) GetPackages(c *gin.Context) {
	var packages []models.PremiumPackage
	if err := h.DB.Where("is_active = ?", true).Find(&packages).Error; err != nil {
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to load packages")
		return
	}
	response.SuccessJSON(c, packages)
}

// CreatePackageRequest represents create package request
type CreatePackageRequest struct {
	PackageID    string `json:"package_id" binding:"required"`
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	DurationDays int    `json:"duration_days" binding:"required,gt=0"`
	PriceCents   int64  `json:"price_cents"`
	Currency     string `json:"currency"`
}

// CreatePackage adds a premium package to the catalog.
// POST /api/admin/packages
func (h *Handler) CreatePackage(c *gin.Context) {
	var req CreatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	pkg := models.PremiumPackage{
		PackageID:    req.PackageID,
		Name:         req.Name,
		Description:  req.Description,
		DurationDays: req.DurationDays,
		PriceCents:   req.PriceCents,
		Currency:     req.Currency,
		IsActive:     true,
	}
	if pkg.Currency == "" {
		pkg.Currency = "EUR"
	}

	if err := h.DB.Create(&pkg).Error; err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Failed to create package: "+err.Error())
		return
	}
	c.JSON(http.StatusCreated, response.Success(pkg))
}

// UpdatePackageRequest represents update package request
type UpdatePackageRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	DurationDays int    `json:"duration_days"`
	PriceCents   int64  `json:"price_cents"`
	IsActive     *bool  `json:"is_active"`
}

// UpdatePackage updates a catalog package.
// PUT /api/admin/packages/:id
func (h *Handler) UpdatePackage(c *gin.Context) {
	packageID := c.Param("id")

	var req UpdatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	updates := make(map[string]interface{})
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.DurationDays > 0 {
		updates["duration_days"] = req.DurationDays
	}
	if req.PriceCents > 0 {
		updates["price_cents"] = req.PriceCents
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	result := h.DB.Model(&models.PremiumPackage{}).Where("package_id = ?", packageID).Updates(updates)
	if result.Error != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Failed to update package: "+result.Error.Error())
		return
	}
	if result.RowsAffected == 0 {
		response.ErrorJSON(c, http.StatusNotFound, "Package not found")
		return
	}
	response.SuccessJSON(c, gin.H{"package_id": packageID})
}

// GetPlans lists the active subscription plans.
// GET /api/admin/plans
func (h *Handler) GetPlans(c *gin.Context) {
	var plans []models.SubscriptionPlan
	if err := h.DB.Where("is_active = ?", true).Find(&plans).Error; err != nil {
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to load plans")
		return
	}
	response.SuccessJSON(c, plans)
}

// CreatePlanRequest represents create plan request
type CreatePlanRequest struct {
	ProductID    string `json:"product_id" binding:"required"`
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	PeriodMonths int    `json:"period_months"`
	PriceCents   int64  `json:"price_cents"`
	Currency     string `json:"currency"`
}

// CreatePlan adds a subscription plan to the catalog.
// POST /api/admin/plans
func (h *Handler) CreatePlan(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	plan := models.SubscriptionPlan{
		ProductID:    req.ProductID,
		Name:         req.Name,
		Description:  req.Description,
		PeriodMonths: req.PeriodMonths,
		PriceCents:   req.PriceCents,
		Currency:     req.Currency,
		IsActive:     true,
	}
	if plan.PeriodMonths == 0 {
		plan.PeriodMonths = 1
	}
	if plan.Currency == "" {
		plan.Currency = "EUR"
	}

	if err := h.DB.Create(&plan).Error; err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Failed to create plan: "+err.Error())
		return
	}
	c.JSON(http.StatusCreated, response.Success(plan))
}
