package handler

import (
	"context"

	fiscalapp "github.com/crm/backend/internal/application/fiscal"
	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DocumentHandler handles fiscal document issuance and cancellation endpoints
type DocumentHandler struct {
	BaseHandler
	documentService *fiscalapp.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(documentService *fiscalapp.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
	}
}

// IssueDocumentRequest represents a request to issue a fiscal document
// @Description Request body for issuing a fiscal document
type IssueDocumentRequest struct {
	Observations string `json:"observations" binding:"max=1000" example:"Issued on customer request"`
}

// CancelDocumentRequest represents a request to cancel an issued document
// @Description Request body for cancelling an issued document
type CancelDocumentRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500" example:"Issued with the wrong customer"`
}

// IssuedDocumentResponse represents a freshly issued document in API responses
// @Description Issued document response
type IssuedDocumentResponse struct {
	Reference          string `json:"reference" example:"FT 2026/42"`
	ProviderDocumentID string `json:"provider_document_id" example:"123456789"`
	DocumentType       string `json:"document_type" example:"invoice"`
	PDFURL             string `json:"pdf_url,omitempty"`
}

func toIssuedDocumentResponse(r *fiscalapp.IssueDocumentResult) IssuedDocumentResponse {
	return IssuedDocumentResponse{
		Reference:          r.Reference,
		ProviderDocumentID: r.ProviderDocumentID,
		DocumentType:       r.DocumentType.String(),
		PDFURL:             r.PDFURL,
	}
}

// IssueInvoice godoc
// @Summary      Issue an invoice for a sale
// @Description  Issue a sale-level invoice at the external provider. Fails when the sale already carries a document.
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        saleId path string true "Sale ID"
// @Param        request body IssueDocumentRequest false "Issuance options"
// @Success      201 {object} dto.Response{data=IssuedDocumentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fiscal/sales/{saleId}/invoice [post]
func (h *DocumentHandler) IssueInvoice(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	saleID, err := uuid.Parse(c.Param("saleId"))
	if err != nil {
		h.BadRequest(c, "Invalid sale ID format")
		return
	}

	var req IssueDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.documentService.IssueInvoice(c.Request.Context(), fiscalapp.IssueInvoiceRequest{
		TenantID:     tenantID,
		SaleID:       saleID,
		Observations: req.Observations,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toIssuedDocumentResponse(result))
}

// IssueInvoiceReceipt godoc
// @Summary      Issue an invoice-receipt for a payment
// @Description  Issue a combined invoice and receipt for a single payment
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        id path string true "Payment ID"
// @Param        request body IssueDocumentRequest false "Issuance options"
// @Success      201 {object} dto.Response{data=IssuedDocumentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fiscal/payments/{id}/invoice-receipt [post]
func (h *DocumentHandler) IssueInvoiceReceipt(c *gin.Context) {
	h.issuePaymentDocument(c, h.documentService.IssueInvoiceReceipt)
}

// GenerateReceipt godoc
// @Summary      Issue a receipt for a payment
// @Description  Issue a receipt for a payment against the sale's invoice
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        id path string true "Payment ID"
// @Param        request body IssueDocumentRequest false "Issuance options"
// @Success      201 {object} dto.Response{data=IssuedDocumentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fiscal/payments/{id}/receipt [post]
func (h *DocumentHandler) GenerateReceipt(c *gin.Context) {
	h.issuePaymentDocument(c, h.documentService.GenerateReceipt)
}

// issuePaymentDocument shares the request plumbing of the two
// payment-level issuance endpoints
func (h *DocumentHandler) issuePaymentDocument(
	c *gin.Context,
	issue func(ctx context.Context, req fiscalapp.IssuePaymentDocumentRequest) (*fiscalapp.IssueDocumentResult, error),
) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	var req IssueDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := issue(c.Request.Context(), fiscalapp.IssuePaymentDocumentRequest{
		TenantID:     tenantID,
		PaymentID:    paymentID,
		Observations: req.Observations,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toIssuedDocumentResponse(result))
}

// CancelSaleDocument godoc
// @Summary      Cancel a sale's document
// @Description  Cancel the issued document of a sale at the provider and record the cancellation locally
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        saleId path string true "Sale ID"
// @Param        request body CancelDocumentRequest true "Cancellation reason"
// @Success      200 {object} dto.Response{data=SuccessResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fiscal/sales/{saleId}/document/cancel [post]
func (h *DocumentHandler) CancelSaleDocument(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	saleID, err := uuid.Parse(c.Param("saleId"))
	if err != nil {
		h.BadRequest(c, "Invalid sale ID format")
		return
	}

	var req CancelDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	err = h.documentService.CancelDocument(c.Request.Context(), fiscalapp.CancelDocumentCommand{
		TenantID: tenantID,
		Source:   fiscal.NewSaleSource(saleID),
		Reason:   req.Reason,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"cancelled": true})
}

// CancelPaymentDocument godoc
// @Summary      Cancel a payment's document
// @Description  Cancel the issued document of a payment at the provider and record the cancellation locally
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        id path string true "Payment ID"
// @Param        request body CancelDocumentRequest true "Cancellation reason"
// @Success      200 {object} dto.Response{data=SuccessResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fiscal/payments/{id}/document/cancel [post]
func (h *DocumentHandler) CancelPaymentDocument(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	var req CancelDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	err = h.documentService.CancelDocument(c.Request.Context(), fiscalapp.CancelDocumentCommand{
		TenantID: tenantID,
		Source:   fiscal.NewPaymentSource(paymentID),
		Reason:   req.Reason,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"cancelled": true})
}
