package handler

import (
	fiscalapp "github.com/crm/backend/internal/application/fiscal"
	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/gin-gonic/gin"
)

// SettingsHandler handles organization settings API endpoints
type SettingsHandler struct {
	BaseHandler
	settingsService *fiscalapp.SettingsService
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(settingsService *fiscalapp.SettingsService) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
	}
}

// UpdateSettingsRequest represents a full settings update
// @Description Request body for updating organization settings
type UpdateSettingsRequest struct {
	TaxRate                float64 `json:"tax_rate" binding:"gte=0,lte=100" example:"23"`
	TaxExemptionReason     string  `json:"tax_exemption_reason" binding:"max=200" example:"M07"`
	AccountName            string  `json:"invoicing_account_name" binding:"max=200" example:"acme"`
	APIKey                 string  `json:"invoicing_api_key" binding:"max=500"`
	BaseURL                string  `json:"invoicing_base_url" binding:"omitempty,url" example:"https://invoicing.example.com"`
	PreventPaymentDeletion bool    `json:"prevent_payment_deletion" example:"true"`
	LockDeliveredSales     bool    `json:"lock_delivered_sales" example:"false"`
	LockFulfilledSales     bool    `json:"lock_fulfilled_sales" example:"true"`
}

// SettingsResponse represents organization settings in API responses. The
// provider API key is write-only and never echoed back.
// @Description Organization settings response
type SettingsResponse struct {
	TaxRate                float64 `json:"tax_rate" example:"23"`
	TaxExemptionReason     string  `json:"tax_exemption_reason,omitempty" example:"M07"`
	AccountName            string  `json:"invoicing_account_name,omitempty" example:"acme"`
	BaseURL                string  `json:"invoicing_base_url,omitempty" example:"https://invoicing.example.com"`
	ProviderConfigured     bool    `json:"provider_configured" example:"true"`
	PreventPaymentDeletion bool    `json:"prevent_payment_deletion" example:"true"`
	LockDeliveredSales     bool    `json:"lock_delivered_sales" example:"false"`
	LockFulfilledSales     bool    `json:"lock_fulfilled_sales" example:"true"`
}

func toSettingsResponse(s *fiscal.OrganizationSettings) SettingsResponse {
	return SettingsResponse{
		TaxRate:                s.TaxRate.InexactFloat64(),
		TaxExemptionReason:     s.TaxExemptionReason,
		AccountName:            s.Credentials.AccountName,
		BaseURL:                s.Credentials.BaseURL,
		ProviderConfigured:     s.Credentials.IsConfigured(),
		PreventPaymentDeletion: s.PreventPaymentDeletion,
		LockDeliveredSales:     s.LockDeliveredSales,
		LockFulfilledSales:     s.LockFulfilledSales,
	}
}

// Get godoc
// @Summary      Get organization settings
// @Description  Get the organization's fiscal settings. Returns defaults when nothing is stored yet.
// @Tags         settings
// @Produce      json
// @Success      200 {object} dto.Response{data=SettingsResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fiscal/settings [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	settings, err := h.settingsService.GetSettings(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toSettingsResponse(settings))
}

// Update godoc
// @Summary      Update organization settings
// @Description  Replace the organization's fiscal settings: tax configuration, provider credentials and mutation locks
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        request body UpdateSettingsRequest true "Settings update request"
// @Success      200 {object} dto.Response{data=SettingsResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fiscal/settings [put]
func (h *SettingsHandler) Update(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	settings, err := h.settingsService.UpdateSettings(c.Request.Context(), fiscalapp.UpdateSettingsRequest{
		TenantID:           tenantID,
		TaxRate:            toDecimal(req.TaxRate),
		TaxExemptionReason: req.TaxExemptionReason,
		Credentials: fiscal.ProviderCredentials{
			AccountName: req.AccountName,
			APIKey:      req.APIKey,
			BaseURL:     req.BaseURL,
		},
		PreventPaymentDeletion: req.PreventPaymentDeletion,
		LockDeliveredSales:     req.LockDeliveredSales,
		LockFulfilledSales:     req.LockFulfilledSales,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toSettingsResponse(settings))
}
