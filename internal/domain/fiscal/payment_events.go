package fiscal

import (
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type names for payments and payment-level fiscal documents
const (
	EventTypePaymentCreated           = "PaymentCreated"
	EventTypePaymentDocumentIssued    = "PaymentDocumentIssued"
	EventTypePaymentDocumentCancelled = "PaymentDocumentCancelled"
	EventTypePaymentCreditNoteIssued  = "PaymentCreditNoteIssued"
)

// PaymentCreatedEvent is raised when a payment is registered against a sale
type PaymentCreatedEvent struct {
	shared.BaseDomainEvent
	PaymentID   uuid.UUID       `json:"payment_id"`
	SaleID      uuid.UUID       `json:"sale_id"`
	Amount      decimal.Decimal `json:"amount"`
	Status      PaymentStatus   `json:"status"`
	PaymentDate time.Time       `json:"payment_date"`
}

// EventType returns the event type name
func (e *PaymentCreatedEvent) EventType() string {
	return EventTypePaymentCreated
}

// NewPaymentCreatedEvent creates a new PaymentCreatedEvent
func NewPaymentCreatedEvent(p *Payment) *PaymentCreatedEvent {
	return &PaymentCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentCreated, "Payment", p.ID, p.TenantID),
		PaymentID:       p.ID,
		SaleID:          p.SaleID,
		Amount:          p.Amount,
		Status:          p.Status,
		PaymentDate:     p.PaymentDate,
	}
}

// PaymentDocumentIssuedEvent is raised when a fiscal document is attached to a payment
type PaymentDocumentIssuedEvent struct {
	shared.BaseDomainEvent
	PaymentID          uuid.UUID    `json:"payment_id"`
	SaleID             uuid.UUID    `json:"sale_id"`
	Reference          string       `json:"reference"`
	ProviderDocumentID string       `json:"provider_document_id"`
	DocumentType       DocumentType `json:"document_type"`
}

// EventType returns the event type name
func (e *PaymentDocumentIssuedEvent) EventType() string {
	return EventTypePaymentDocumentIssued
}

// NewPaymentDocumentIssuedEvent creates a new PaymentDocumentIssuedEvent
func NewPaymentDocumentIssuedEvent(p *Payment, ref DocumentReference) *PaymentDocumentIssuedEvent {
	return &PaymentDocumentIssuedEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypePaymentDocumentIssued, "Payment", p.ID, p.TenantID),
		PaymentID:          p.ID,
		SaleID:             p.SaleID,
		Reference:          ref.Reference,
		ProviderDocumentID: ref.ProviderDocumentID,
		DocumentType:       ref.DocumentType,
	}
}

// PaymentDocumentCancelledEvent is raised when a payment's document is cancelled
type PaymentDocumentCancelledEvent struct {
	shared.BaseDomainEvent
	PaymentID          uuid.UUID `json:"payment_id"`
	ProviderDocumentID string    `json:"provider_document_id"`
	Reason             string    `json:"reason"`
}

// EventType returns the event type name
func (e *PaymentDocumentCancelledEvent) EventType() string {
	return EventTypePaymentDocumentCancelled
}

// NewPaymentDocumentCancelledEvent creates a new PaymentDocumentCancelledEvent
func NewPaymentDocumentCancelledEvent(p *Payment, reason string) *PaymentDocumentCancelledEvent {
	var providerID string
	if p.ProviderDocumentID != nil {
		providerID = *p.ProviderDocumentID
	}
	return &PaymentDocumentCancelledEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypePaymentDocumentCancelled, "Payment", p.ID, p.TenantID),
		PaymentID:          p.ID,
		ProviderDocumentID: providerID,
		Reason:             reason,
	}
}

// PaymentCreditNoteIssuedEvent is raised when a credit note is attached to a payment
type PaymentCreditNoteIssuedEvent struct {
	shared.BaseDomainEvent
	PaymentID           uuid.UUID `json:"payment_id"`
	SaleID              uuid.UUID `json:"sale_id"`
	CreditNoteID        string    `json:"credit_note_id"`
	CreditNoteReference string    `json:"credit_note_reference"`
}

// EventType returns the event type name
func (e *PaymentCreditNoteIssuedEvent) EventType() string {
	return EventTypePaymentCreditNoteIssued
}

// NewPaymentCreditNoteIssuedEvent creates a new PaymentCreditNoteIssuedEvent
func NewPaymentCreditNoteIssuedEvent(p *Payment, creditNoteID, creditNoteReference string) *PaymentCreditNoteIssuedEvent {
	return &PaymentCreditNoteIssuedEvent{
		BaseDomainEvent:     shared.NewBaseDomainEvent(EventTypePaymentCreditNoteIssued, "Payment", p.ID, p.TenantID),
		PaymentID:           p.ID,
		SaleID:              p.SaleID,
		CreditNoteID:        creditNoteID,
		CreditNoteReference: creditNoteReference,
	}
}
