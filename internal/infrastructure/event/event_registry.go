package event

import (
	"github.com/crm/backend/internal/domain/fiscal"
)

// RegisterAllEvents registers all domain event types with the serializer
// This is required for the OutboxProcessor to deserialize events from the outbox table
func RegisterAllEvents(serializer *EventSerializer) {
	// Fiscal domain - Sale document events
	serializer.Register(fiscal.EventTypeSaleDocumentIssued, &fiscal.SaleDocumentIssuedEvent{})
	serializer.Register(fiscal.EventTypeSaleDocumentCancelled, &fiscal.SaleDocumentCancelledEvent{})
	serializer.Register(fiscal.EventTypeSaleCreditNoteIssued, &fiscal.SaleCreditNoteIssuedEvent{})

	// Fiscal domain - Payment events
	serializer.Register(fiscal.EventTypePaymentCreated, &fiscal.PaymentCreatedEvent{})
	serializer.Register(fiscal.EventTypePaymentDocumentIssued, &fiscal.PaymentDocumentIssuedEvent{})
	serializer.Register(fiscal.EventTypePaymentDocumentCancelled, &fiscal.PaymentDocumentCancelledEvent{})
	serializer.Register(fiscal.EventTypePaymentCreditNoteIssued, &fiscal.PaymentCreditNoteIssuedEvent{})
}
