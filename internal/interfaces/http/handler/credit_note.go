package handler

import (
	"time"

	fiscalapp "github.com/crm/backend/internal/application/fiscal"
	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreditNoteHandler handles credit note API endpoints
type CreditNoteHandler struct {
	BaseHandler
	creditNoteService *fiscalapp.CreditNoteService
}

// NewCreditNoteHandler creates a new CreditNoteHandler
func NewCreditNoteHandler(creditNoteService *fiscalapp.CreditNoteService) *CreditNoteHandler {
	return &CreditNoteHandler{
		creditNoteService: creditNoteService,
	}
}

// CreateCreditNoteRequest represents a request to issue a credit note
// @Description Request body for issuing a credit note
type CreateCreditNoteRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500" example:"Customer returned the goods"`
}

// CreditNoteResponse represents a freshly issued credit note in API responses
// @Description Issued credit note response
type CreditNoteResponse struct {
	CreditNoteID        string `json:"credit_note_id" example:"987654321"`
	CreditNoteReference string `json:"credit_note_reference" example:"NC 2026/7"`
	PDFURL              string `json:"pdf_url,omitempty"`
}

// CreditNoteListItemResponse represents one entry of the credit note list
// @Description Credit note list item response
type CreditNoteListItemResponse struct {
	ID                        string    `json:"id" example:"550e8400-e29b-41d4-a716-446655440010"`
	Type                      string    `json:"type" example:"sale"`
	CreditNoteID              string    `json:"credit_note_id" example:"987654321"`
	CreditNoteReference       string    `json:"credit_note_reference" example:"NC 2026/7"`
	OriginalDocumentReference string    `json:"original_document_reference" example:"FT 2026/42"`
	Date                      time.Time `json:"date"`
	Amount                    float64   `json:"amount" example:"150.00"`
	ClientName                string    `json:"client_name" example:"Acme Ltd"`
}

func toCreditNoteResponse(r *fiscalapp.CreditNoteResult) CreditNoteResponse {
	return CreditNoteResponse{
		CreditNoteID:        r.CreditNoteID,
		CreditNoteReference: r.CreditNoteReference,
		PDFURL:              r.PDFURL,
	}
}

func toCreditNoteListItemResponse(rec fiscal.CreditNoteRecord) CreditNoteListItemResponse {
	return CreditNoteListItemResponse{
		ID:                        rec.ID.String(),
		Type:                      rec.SourceKind.String(),
		CreditNoteID:              rec.CreditNoteID,
		CreditNoteReference:       rec.CreditNoteReference,
		OriginalDocumentReference: rec.OriginalDocumentReference,
		Date:                      rec.Date,
		Amount:                    rec.Amount.InexactFloat64(),
		ClientName:                rec.ClientName,
	}
}

// CreateForSale godoc
// @Summary      Issue a credit note for a sale
// @Description  Issue a credit note reversing the document of a sale
// @Tags         credit-notes
// @Accept       json
// @Produce      json
// @Param        saleId path string true "Sale ID"
// @Param        request body CreateCreditNoteRequest true "Credit note request"
// @Success      201 {object} dto.Response{data=CreditNoteResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fiscal/sales/{saleId}/credit-note [post]
func (h *CreditNoteHandler) CreateForSale(c *gin.Context) {
	saleID, err := uuid.Parse(c.Param("saleId"))
	if err != nil {
		h.BadRequest(c, "Invalid sale ID format")
		return
	}
	h.create(c, fiscal.NewSaleSource(saleID))
}

// CreateForPayment godoc
// @Summary      Issue a credit note for a payment
// @Description  Issue a credit note reversing the document of a payment
// @Tags         credit-notes
// @Accept       json
// @Produce      json
// @Param        id path string true "Payment ID"
// @Param        request body CreateCreditNoteRequest true "Credit note request"
// @Success      201 {object} dto.Response{data=CreditNoteResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fiscal/payments/{id}/credit-note [post]
func (h *CreditNoteHandler) CreateForPayment(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}
	h.create(c, fiscal.NewPaymentSource(paymentID))
}

func (h *CreditNoteHandler) create(c *gin.Context, source fiscal.DocumentSource) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req CreateCreditNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.creditNoteService.CreateCreditNote(c.Request.Context(), fiscalapp.CreateCreditNoteRequest{
		TenantID: tenantID,
		Source:   source,
		Reason:   req.Reason,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toCreditNoteResponse(result))
}

// List godoc
// @Summary      List credit notes
// @Description  List all credit notes of the organization, sale- and payment-sourced merged, newest first
// @Tags         credit-notes
// @Produce      json
// @Success      200 {object} dto.Response{data=[]CreditNoteListItemResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fiscal/credit-notes [get]
func (h *CreditNoteHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	records, err := h.creditNoteService.ListCreditNotes(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]CreditNoteListItemResponse, len(records))
	for i, rec := range records {
		responses[i] = toCreditNoteListItemResponse(rec)
	}

	h.Success(c, responses)
}
