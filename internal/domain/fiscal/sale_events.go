package fiscal

import (
	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Event type names for sale-level fiscal documents
const (
	EventTypeSaleDocumentIssued    = "SaleDocumentIssued"
	EventTypeSaleDocumentCancelled = "SaleDocumentCancelled"
	EventTypeSaleCreditNoteIssued  = "SaleCreditNoteIssued"
)

// SaleDocumentIssuedEvent is raised when a fiscal document is attached to a sale
type SaleDocumentIssuedEvent struct {
	shared.BaseDomainEvent
	SaleID             uuid.UUID    `json:"sale_id"`
	SaleCode           string       `json:"sale_code"`
	Reference          string       `json:"reference"`
	ProviderDocumentID string       `json:"provider_document_id"`
	DocumentType       DocumentType `json:"document_type"`
	PDFURL             string       `json:"pdf_url"`
}

// EventType returns the event type name
func (e *SaleDocumentIssuedEvent) EventType() string {
	return EventTypeSaleDocumentIssued
}

// NewSaleDocumentIssuedEvent creates a new SaleDocumentIssuedEvent
func NewSaleDocumentIssuedEvent(s *Sale, ref DocumentReference) *SaleDocumentIssuedEvent {
	return &SaleDocumentIssuedEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypeSaleDocumentIssued, "Sale", s.ID, s.TenantID),
		SaleID:             s.ID,
		SaleCode:           s.Code,
		Reference:          ref.Reference,
		ProviderDocumentID: ref.ProviderDocumentID,
		DocumentType:       ref.DocumentType,
		PDFURL:             ref.PDFURL,
	}
}

// SaleDocumentCancelledEvent is raised when a sale's document is cancelled
type SaleDocumentCancelledEvent struct {
	shared.BaseDomainEvent
	SaleID             uuid.UUID `json:"sale_id"`
	ProviderDocumentID string    `json:"provider_document_id"`
	Reason             string    `json:"reason"`
}

// EventType returns the event type name
func (e *SaleDocumentCancelledEvent) EventType() string {
	return EventTypeSaleDocumentCancelled
}

// NewSaleDocumentCancelledEvent creates a new SaleDocumentCancelledEvent
func NewSaleDocumentCancelledEvent(s *Sale, reason string) *SaleDocumentCancelledEvent {
	var providerID string
	if s.ProviderDocumentID != nil {
		providerID = *s.ProviderDocumentID
	}
	return &SaleDocumentCancelledEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypeSaleDocumentCancelled, "Sale", s.ID, s.TenantID),
		SaleID:             s.ID,
		ProviderDocumentID: providerID,
		Reason:             reason,
	}
}

// SaleCreditNoteIssuedEvent is raised when a credit note is attached to a sale
type SaleCreditNoteIssuedEvent struct {
	shared.BaseDomainEvent
	SaleID              uuid.UUID `json:"sale_id"`
	CreditNoteID        string    `json:"credit_note_id"`
	CreditNoteReference string    `json:"credit_note_reference"`
}

// EventType returns the event type name
func (e *SaleCreditNoteIssuedEvent) EventType() string {
	return EventTypeSaleCreditNoteIssued
}

// NewSaleCreditNoteIssuedEvent creates a new SaleCreditNoteIssuedEvent
func NewSaleCreditNoteIssuedEvent(s *Sale, creditNoteID, creditNoteReference string) *SaleCreditNoteIssuedEvent {
	return &SaleCreditNoteIssuedEvent{
		BaseDomainEvent:     shared.NewBaseDomainEvent(EventTypeSaleCreditNoteIssued, "Sale", s.ID, s.TenantID),
		SaleID:              s.ID,
		CreditNoteID:        creditNoteID,
		CreditNoteReference: creditNoteReference,
	}
}
