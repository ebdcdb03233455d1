package fiscal

import (
	"sort"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentSourceKind identifies whether a credit note reverses a
// sale-level or a payment-level document.
type DocumentSourceKind string

const (
	DocumentSourceSale    DocumentSourceKind = "sale"
	DocumentSourcePayment DocumentSourceKind = "payment"
)

// IsValid checks if the kind is a valid DocumentSourceKind
func (k DocumentSourceKind) IsValid() bool {
	return k == DocumentSourceSale || k == DocumentSourcePayment
}

// String returns the string representation of DocumentSourceKind
func (k DocumentSourceKind) String() string {
	return string(k)
}

// DocumentSource is a tagged union: a credit note is attached either at
// sale level or at payment level, never both. Construct it through
// NewSaleSource or NewPaymentSource.
type DocumentSource struct {
	kind DocumentSourceKind
	id   uuid.UUID
}

// NewSaleSource creates a sale-scoped credit note source
func NewSaleSource(saleID uuid.UUID) DocumentSource {
	return DocumentSource{kind: DocumentSourceSale, id: saleID}
}

// NewPaymentSource creates a payment-scoped credit note source
func NewPaymentSource(paymentID uuid.UUID) DocumentSource {
	return DocumentSource{kind: DocumentSourcePayment, id: paymentID}
}

// Kind returns the source kind
func (s DocumentSource) Kind() DocumentSourceKind {
	return s.kind
}

// ID returns the sale or payment ID, depending on the kind
func (s DocumentSource) ID() uuid.UUID {
	return s.id
}

// Validate checks the source is fully specified
func (s DocumentSource) Validate() error {
	if !s.kind.IsValid() {
		return shared.NewDomainError("INVALID_SOURCE", "Credit note source must be a sale or a payment")
	}
	if s.id == uuid.Nil {
		return shared.NewDomainError("INVALID_SOURCE", "Credit note source ID cannot be empty")
	}
	return nil
}

// CreditNoteRecord is one entry of the merged credit-note read view. Sale-
// and payment-sourced records are unioned into a single list.
type CreditNoteRecord struct {
	ID                        uuid.UUID          `json:"id"`
	SourceKind                DocumentSourceKind `json:"type"`
	CreditNoteID              string             `json:"credit_note_id"`
	CreditNoteReference       string             `json:"credit_note_reference"`
	OriginalDocumentReference string             `json:"original_document_reference"`
	Date                      time.Time          `json:"date"`
	Amount                    decimal.Decimal    `json:"amount"`
	ClientName                string             `json:"client_name"`
}

// MergeCreditNoteRecords unions sale-sourced and payment-sourced credit
// note records into one view, sorted by date descending. Uniqueness is
// enforced by record ID: a record present in both source queries appears
// exactly once, with the sale-sourced entry taking precedence.
func MergeCreditNoteRecords(saleRecords, paymentRecords []CreditNoteRecord) []CreditNoteRecord {
	merged := make([]CreditNoteRecord, 0, len(saleRecords)+len(paymentRecords))
	seen := make(map[uuid.UUID]struct{}, len(saleRecords)+len(paymentRecords))

	for _, rec := range saleRecords {
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		seen[rec.ID] = struct{}{}
		merged = append(merged, rec)
	}
	for _, rec := range paymentRecords {
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		seen[rec.ID] = struct{}{}
		merged = append(merged, rec)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Date.After(merged[j].Date)
	})
	return merged
}
