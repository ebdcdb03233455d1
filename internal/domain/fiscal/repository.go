package fiscal

import (
	"context"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// SaleFilter represents query options for sales
type SaleFilter struct {
	shared.Filter
	Status         *SaleStatus
	HasDocument    *bool
	HasCreditNote  *bool
	PaymentStatus  *SalePaymentStatus
	SearchQuery    string
	IncludeDeleted bool
}

// SaleRepository persists the fiscal view of sales.
//
// AttachDocumentIfUnset and AttachCreditNoteIfUnset are conditional
// updates: they write only when the target reference is still null
// (UPDATE ... WHERE provider_document_id IS NULL) and report whether a
// row was written. This closes the check-then-act window between the
// issuance precondition and the persistence of the provider's answer.
type SaleRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Sale, error)
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Sale, error)
	FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Sale, error)
	FindByProviderDocumentID(ctx context.Context, tenantID uuid.UUID, providerDocumentID string) (*Sale, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter SaleFilter) ([]Sale, error)
	Save(ctx context.Context, sale *Sale) error

	// AttachDocumentIfUnset writes the document reference only if the
	// sale's provider document ID is still null. Returns false when the
	// conditional update matched no row.
	AttachDocumentIfUnset(ctx context.Context, tenantID, saleID uuid.UUID, ref DocumentReference) (bool, error)
	// AttachCreditNoteIfUnset writes the credit note reference only if the
	// sale has no credit note yet
	AttachCreditNoteIfUnset(ctx context.Context, tenantID, saleID uuid.UUID, creditNoteID, creditNoteReference string) (bool, error)
	// MarkDocumentCancelled records the cancellation of the sale's document
	MarkDocumentCancelled(ctx context.Context, tenantID, saleID uuid.UUID, reason string) error

	// FindCreditNoteRecords returns the sale-sourced half of the merged
	// credit-note read view
	FindCreditNoteRecords(ctx context.Context, tenantID uuid.UUID) ([]CreditNoteRecord, error)
}

// PaymentFilter represents query options for payments
type PaymentFilter struct {
	shared.Filter
	SaleID      *uuid.UUID
	Status      *PaymentStatus
	HasDocument *bool
}

// PaymentRepository persists payments and their fiscal document fields.
// The conditional-update discipline matches SaleRepository.
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)
	FindBySale(ctx context.Context, tenantID, saleID uuid.UUID) ([]Payment, error)
	FindByProviderDocumentID(ctx context.Context, tenantID uuid.UUID, providerDocumentID string) (*Payment, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter PaymentFilter) ([]Payment, error)
	Save(ctx context.Context, payment *Payment) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error

	AttachDocumentIfUnset(ctx context.Context, tenantID, paymentID uuid.UUID, ref DocumentReference) (bool, error)
	AttachCreditNoteIfUnset(ctx context.Context, tenantID, paymentID uuid.UUID, creditNoteID, creditNoteReference string) (bool, error)
	MarkDocumentCancelled(ctx context.Context, tenantID, paymentID uuid.UUID, reason string) error
	SetInvoiceFileURL(ctx context.Context, tenantID, paymentID uuid.UUID, url string) error

	// FindCreditNoteRecords returns the payment-sourced half of the merged
	// credit-note read view
	FindCreditNoteRecords(ctx context.Context, tenantID uuid.UUID) ([]CreditNoteRecord, error)
}

// OrganizationSettingsRepository persists per-organization fiscal settings
type OrganizationSettingsRepository interface {
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*OrganizationSettings, error)
	Save(ctx context.Context, settings *OrganizationSettings) error
}
