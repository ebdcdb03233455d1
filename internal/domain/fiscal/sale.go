package fiscal

import (
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleStatus mirrors the sale lifecycle managed by the sales module. Only
// the fulfillment-related states matter here: they gate payment mutations
// through the organization settings.
type SaleStatus string

const (
	SaleStatusOpen      SaleStatus = "open"
	SaleStatusDelivered SaleStatus = "delivered"
	SaleStatusFulfilled SaleStatus = "fulfilled"
	SaleStatusClosed    SaleStatus = "closed"
)

// Sale is the fiscal view of a sale. The sale itself is created and owned
// by the sales module; this aggregate only mutates the fiscal-document
// fields and validates payment arithmetic against the sale total.
type Sale struct {
	shared.TenantAggregateRoot
	documentLifecycle
	Code          string          `json:"code"`
	ClientName    string          `json:"client_name"`
	ClientTaxID   string          `json:"client_tax_id"`
	TotalValue    decimal.Decimal `json:"total_value"`
	Status        SaleStatus      `json:"status"`
	InvoicePDFURL string          `json:"invoice_pdf_url"`
}

// NewSale creates the fiscal record for a sale
func NewSale(tenantID uuid.UUID, code, clientName string, totalValue valueobject.Money) (*Sale, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_CODE", "Sale code cannot be empty")
	}
	if totalValue.IsNegative() {
		return nil, shared.NewDomainError("INVALID_TOTAL", "Sale total cannot be negative")
	}

	s := &Sale{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Code:                code,
		ClientName:          clientName,
		TotalValue:          totalValue.Amount(),
		Status:              SaleStatusOpen,
	}
	return s, nil
}

// AttachDocument persists the provider-assigned identifiers after a
// successful issuance. Fails with ErrAlreadyIssued if a document reference
// is already set; issuance is a compare-and-set against a null reference.
func (s *Sale) AttachDocument(ref DocumentReference) error {
	if err := s.documentLifecycle.attach(ref); err != nil {
		return err
	}
	s.InvoicePDFURL = ref.PDFURL
	s.IncrementVersion()
	s.AddDomainEvent(NewSaleDocumentIssuedEvent(s, ref))
	return nil
}

// AttachCreditNote links a reversing document issued against this sale's
// document. The original document stays issued but transitions to REVERSED.
func (s *Sale) AttachCreditNote(creditNoteID, creditNoteReference string) error {
	if err := s.documentLifecycle.attachCreditNote(creditNoteID, creditNoteReference); err != nil {
		return err
	}
	s.IncrementVersion()
	s.AddDomainEvent(NewSaleCreditNoteIssuedEvent(s, creditNoteID, creditNoteReference))
	return nil
}

// CancelDocument records the provider-side cancellation of this sale's document
func (s *Sale) CancelDocument(reason string) error {
	if err := s.documentLifecycle.markCancelled(reason); err != nil {
		return err
	}
	s.IncrementVersion()
	s.AddDomainEvent(NewSaleDocumentCancelledEvent(s, reason))
	return nil
}

// IsLocked reports whether payment mutations are blocked for this sale
// under the given organization settings.
func (s *Sale) IsLocked(settings *OrganizationSettings) bool {
	if settings == nil {
		return false
	}
	if settings.LockDeliveredSales && s.Status == SaleStatusDelivered {
		return true
	}
	if settings.LockFulfilledSales && (s.Status == SaleStatusFulfilled || s.Status == SaleStatusClosed) {
		return true
	}
	return false
}
