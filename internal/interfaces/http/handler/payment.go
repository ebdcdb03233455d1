package handler

import (
	"time"

	fiscalapp "github.com/crm/backend/internal/application/fiscal"
	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentHandler handles payment ledger API endpoints
type PaymentHandler struct {
	BaseHandler
	paymentService *fiscalapp.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *fiscalapp.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// CreatePaymentRequest represents a request to record a payment against a sale
// @Description Request body for recording a payment
type CreatePaymentRequest struct {
	Amount      float64   `json:"amount" binding:"required,gt=0" example:"150.00"`
	PaymentDate time.Time `json:"payment_date" binding:"required" example:"2026-03-15T00:00:00Z"`
	Method      string    `json:"payment_method" binding:"omitempty,oneof=cash bank_transfer card direct_debit check other" example:"bank_transfer"`
	Status      string    `json:"status" binding:"required,oneof=pending paid" example:"paid"`
	Notes       string    `json:"notes" binding:"max=500" example:"First installment"`
}

// UpdatePaymentRequest represents a request to modify a recorded payment
// @Description Request body for updating a payment
type UpdatePaymentRequest struct {
	Amount      float64   `json:"amount" binding:"required,gt=0" example:"150.00"`
	PaymentDate time.Time `json:"payment_date" binding:"required" example:"2026-03-15T00:00:00Z"`
	Method      string    `json:"payment_method" binding:"omitempty,oneof=cash bank_transfer card direct_debit check other" example:"card"`
	Status      string    `json:"status" binding:"required,oneof=pending paid" example:"pending"`
	Notes       string    `json:"notes" binding:"max=500" example:"Rescheduled"`
}

// PaymentResponse represents a payment in API responses
// @Description Payment response
type PaymentResponse struct {
	ID                  string     `json:"id" example:"550e8400-e29b-41d4-a716-446655440010"`
	SaleID              string     `json:"sale_id" example:"550e8400-e29b-41d4-a716-446655440001"`
	Amount              float64    `json:"amount" example:"150.00"`
	PaymentDate         time.Time  `json:"payment_date"`
	Method              string     `json:"payment_method" example:"bank_transfer"`
	Status              string     `json:"status" example:"paid"`
	Notes               string     `json:"notes,omitempty" example:"First installment"`
	InvoiceFileURL      string     `json:"invoice_file_url,omitempty"`
	DocumentState       string     `json:"document_state" example:"NONE"`
	InvoiceReference    *string    `json:"invoice_reference,omitempty"`
	ProviderDocumentID  *string    `json:"provider_document_id,omitempty"`
	DocumentType        *string    `json:"document_type,omitempty"`
	CreditNoteID        *string    `json:"credit_note_id,omitempty"`
	CreditNoteReference *string    `json:"credit_note_reference,omitempty"`
	DocumentCancelledAt *time.Time `json:"document_cancelled_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	Version             int        `json:"version" example:"1"`
}

// PaymentSummaryResponse represents the aggregate payment figures of a sale
// @Description Payment summary response
type PaymentSummaryResponse struct {
	TotalPaid      float64 `json:"total_paid" example:"300.00"`
	TotalScheduled float64 `json:"total_scheduled" example:"150.00"`
	Remaining      float64 `json:"remaining" example:"50.00"`
	Percentage     float64 `json:"percentage" example:"85.71"`
	PaymentStatus  string  `json:"payment_status" example:"partial"`
}

// AttachedFileResponse carries the stored location of an uploaded file
// @Description Attached file response
type AttachedFileResponse struct {
	URL string `json:"url"`
}

func toPaymentResponse(p *fiscal.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:                  p.ID.String(),
		SaleID:              p.SaleID.String(),
		Amount:              p.Amount.InexactFloat64(),
		PaymentDate:         p.PaymentDate,
		Method:              p.Method.String(),
		Status:              p.Status.String(),
		Notes:               p.Notes,
		InvoiceFileURL:      p.InvoiceFileURL,
		DocumentState:       p.State().String(),
		InvoiceReference:    p.InvoiceReference,
		ProviderDocumentID:  p.ProviderDocumentID,
		CreditNoteID:        p.CreditNoteID,
		CreditNoteReference: p.CreditNoteReference,
		DocumentCancelledAt: p.DocumentCancelledAt,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
		Version:             p.Version,
	}
	if p.ProviderDocType != nil {
		docType := p.ProviderDocType.String()
		resp.DocumentType = &docType
	}
	return resp
}

func toPaymentSummaryResponse(s *fiscal.PaymentSummary) PaymentSummaryResponse {
	return PaymentSummaryResponse{
		TotalPaid:      s.TotalPaid.InexactFloat64(),
		TotalScheduled: s.TotalScheduled.InexactFloat64(),
		Remaining:      s.Remaining.InexactFloat64(),
		Percentage:     s.Percentage.InexactFloat64(),
		PaymentStatus:  s.PaymentStatus.String(),
	}
}

// Create godoc
// @Summary      Record a payment
// @Description  Record a payment against a sale. Fails when the sale is locked by organization settings.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        saleId path string true "Sale ID"
// @Param        request body CreatePaymentRequest true "Payment creation request"
// @Success      201 {object} dto.Response{data=PaymentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fiscal/sales/{saleId}/payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
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

	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	appReq := fiscalapp.CreatePaymentRequest{
		TenantID:    tenantID,
		SaleID:      saleID,
		Amount:      toDecimal(req.Amount),
		PaymentDate: req.PaymentDate,
		Method:      fiscal.PaymentMethod(req.Method),
		Status:      fiscal.PaymentStatus(req.Status),
		Notes:       req.Notes,
	}
	if userID, err := getUserID(c); err == nil {
		appReq.CreatedBy = &userID
	}

	payment, err := h.paymentService.CreatePayment(c.Request.Context(), appReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toPaymentResponse(payment))
}

// Update godoc
// @Summary      Update a payment
// @Description  Update a recorded payment. Fails when the payment already carries a fiscal document or the sale is locked.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Payment ID"
// @Param        request body UpdatePaymentRequest true "Payment update request"
// @Success      200 {object} dto.Response{data=PaymentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fiscal/payments/{id} [put]
func (h *PaymentHandler) Update(c *gin.Context) {
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

	var req UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	payment, err := h.paymentService.UpdatePayment(c.Request.Context(), fiscalapp.UpdatePaymentRequest{
		TenantID:    tenantID,
		PaymentID:   paymentID,
		Amount:      toDecimal(req.Amount),
		PaymentDate: req.PaymentDate,
		Method:      fiscal.PaymentMethod(req.Method),
		Status:      fiscal.PaymentStatus(req.Status),
		Notes:       req.Notes,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toPaymentResponse(payment))
}

// Delete godoc
// @Summary      Delete a payment
// @Description  Delete a recorded payment. Blocked when the organization forbids payment deletion or the payment carries a document.
// @Tags         payments
// @Produce      json
// @Param        id path string true "Payment ID"
// @Success      204
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fiscal/payments/{id} [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
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

	if err := h.paymentService.DeletePayment(c.Request.Context(), tenantID, paymentID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// List godoc
// @Summary      List payments of a sale
// @Description  List all payments recorded against a sale
// @Tags         payments
// @Produce      json
// @Param        saleId path string true "Sale ID"
// @Success      200 {object} dto.Response{data=[]PaymentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fiscal/sales/{saleId}/payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
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

	payments, err := h.paymentService.ListPayments(c.Request.Context(), tenantID, saleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]PaymentResponse, len(payments))
	for i := range payments {
		responses[i] = toPaymentResponse(&payments[i])
	}

	h.Success(c, responses)
}

// Summary godoc
// @Summary      Payment summary of a sale
// @Description  Aggregate payment figures of a sale: totals, remaining amount and derived payment status
// @Tags         payments
// @Produce      json
// @Param        saleId path string true "Sale ID"
// @Success      200 {object} dto.Response{data=PaymentSummaryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fiscal/sales/{saleId}/payments/summary [get]
func (h *PaymentHandler) Summary(c *gin.Context) {
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

	summary, err := h.paymentService.GetPaymentSummary(c.Request.Context(), tenantID, saleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toPaymentSummaryResponse(summary))
}

// AttachFile godoc
// @Summary      Attach an invoice file to a payment
// @Description  Upload a supporting document for a payment and store it in object storage
// @Tags         payments
// @Accept       multipart/form-data
// @Produce      json
// @Param        id path string true "Payment ID"
// @Param        file formData file true "Invoice file"
// @Success      200 {object} dto.Response{data=AttachedFileResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fiscal/payments/{id}/file [post]
func (h *PaymentHandler) AttachFile(c *gin.Context) {
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

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.BadRequest(c, "A file is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.BadRequest(c, "Failed to read uploaded file")
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	url, err := h.paymentService.AttachInvoiceFile(
		c.Request.Context(), tenantID, paymentID, fileHeader.Filename, contentType, file)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, AttachedFileResponse{URL: url})
}
