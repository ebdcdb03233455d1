package handler

import (
	fiscalapp "github.com/crm/backend/internal/application/fiscal"
	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SyncHandler handles reconciliation API endpoints
type SyncHandler struct {
	BaseHandler
	syncService *fiscalapp.SyncService
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(syncService *fiscalapp.SyncService) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
	}
}

// DocumentDetailsQuery represents the query parameters of the document
// details endpoint
// @Description Query parameters for fetching a provider document
type DocumentDetailsQuery struct {
	Type      string `form:"type" binding:"required,oneof=invoice invoice_receipt receipt credit_note" example:"invoice"`
	Sync      bool   `form:"sync" example:"false"`
	SaleID    string `form:"sale_id" binding:"omitempty,uuid" example:"550e8400-e29b-41d4-a716-446655440001"`
	PaymentID string `form:"payment_id" binding:"omitempty,uuid" example:"550e8400-e29b-41d4-a716-446655440002"`
}

// SyncInvoices godoc
// @Summary      Reconcile invoices with the provider
// @Description  Walk the provider's invoices, invoice-receipts and receipts and fill missing local references
// @Tags         sync
// @Produce      json
// @Success      200 {object} dto.Response{data=fiscalapp.SyncInvoicesResult}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fiscal/sync/invoices [post]
func (h *SyncHandler) SyncInvoices(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	result, err := h.syncService.SyncInvoices(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// SyncCreditNotes godoc
// @Summary      Reconcile credit notes with the provider
// @Description  Walk the provider's credit notes and fill missing local credit note references
// @Tags         sync
// @Produce      json
// @Success      200 {object} dto.Response{data=fiscalapp.SyncCreditNotesResult}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fiscal/sync/credit-notes [post]
func (h *SyncHandler) SyncCreditNotes(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	result, err := h.syncService.SyncCreditNotes(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// GetDocumentDetails godoc
// @Summary      Fetch a provider document
// @Description  Fetch the full remote representation of one document, optionally syncing its reference onto an explicitly named sale or payment
// @Tags         sync
// @Produce      json
// @Param        documentId path string true "Provider document ID"
// @Param        type query string true "Document type" Enums(invoice, invoice_receipt, receipt, credit_note)
// @Param        sync query bool false "Persist the reference onto the named record"
// @Param        sale_id query string false "Sale to associate when sync is set"
// @Param        payment_id query string false "Payment to associate when sync is set"
// @Success      200 {object} dto.Response{data=fiscal.ProviderDocumentDetail}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fiscal/documents/{documentId} [get]
func (h *SyncHandler) GetDocumentDetails(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	documentID := c.Param("documentId")
	if documentID == "" {
		h.BadRequest(c, "Document ID is required")
		return
	}

	var query DocumentDetailsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	req := fiscalapp.DocumentDetailsRequest{
		TenantID:   tenantID,
		DocumentID: documentID,
		Type:       fiscal.DocumentType(query.Type),
		Sync:       query.Sync,
	}
	if query.SaleID != "" {
		saleID, err := uuid.Parse(query.SaleID)
		if err != nil {
			h.BadRequest(c, "Invalid sale ID format")
			return
		}
		req.SaleID = &saleID
	}
	if query.PaymentID != "" {
		paymentID, err := uuid.Parse(query.PaymentID)
		if err != nil {
			h.BadRequest(c, "Invalid payment ID format")
			return
		}
		req.PaymentID = &paymentID
	}

	detail, err := h.syncService.GetDocumentDetails(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, detail)
}
