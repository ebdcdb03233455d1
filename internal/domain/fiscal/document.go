package fiscal

import (
	"time"

	"github.com/crm/backend/internal/domain/shared"
)

// DocumentType represents the kind of fiscal document recognized by the
// tax authority. It is a closed enum: unknown values must be rejected
// before any provider call.
type DocumentType string

const (
	DocumentTypeInvoice        DocumentType = "invoice"         // Invoice, paid later
	DocumentTypeInvoiceReceipt DocumentType = "invoice_receipt" // Invoice and receipt in one document
	DocumentTypeReceipt        DocumentType = "receipt"         // Receipt against an existing invoice
	DocumentTypeCreditNote     DocumentType = "credit_note"     // Reversing document
)

// IsValid checks if the document type is a valid DocumentType
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypeInvoice, DocumentTypeInvoiceReceipt, DocumentTypeReceipt, DocumentTypeCreditNote:
		return true
	}
	return false
}

// String returns the string representation of DocumentType
func (t DocumentType) String() string {
	return string(t)
}

// IsReversing returns true for document types that reverse another document
func (t DocumentType) IsReversing() bool {
	return t == DocumentTypeCreditNote
}

// DocumentState represents the lifecycle state of the fiscal document
// attached to a sale or payment. Transitions are one-directional:
// NONE -> ISSUED -> (CANCELLED | REVERSED). No transition returns to NONE;
// re-issuing after cancellation requires a new document lifecycle.
type DocumentState string

const (
	DocumentStateNone      DocumentState = "NONE"      // No document issued yet
	DocumentStateIssued    DocumentState = "ISSUED"    // Document issued at the provider
	DocumentStateCancelled DocumentState = "CANCELLED" // Document cancelled at the provider
	DocumentStateReversed  DocumentState = "REVERSED"  // Document reversed by a credit note
)

// IsValid checks if the state is a valid DocumentState
func (s DocumentState) IsValid() bool {
	switch s {
	case DocumentStateNone, DocumentStateIssued, DocumentStateCancelled, DocumentStateReversed:
		return true
	}
	return false
}

// String returns the string representation of DocumentState
func (s DocumentState) String() string {
	return string(s)
}

// IsTerminal returns true if no further transition is possible
func (s DocumentState) IsTerminal() bool {
	return s == DocumentStateCancelled || s == DocumentStateReversed
}

// CanCancel returns true if the document can be cancelled in this state
func (s DocumentState) CanCancel() bool {
	return s == DocumentStateIssued
}

// CanReverse returns true if a credit note can be issued in this state
func (s DocumentState) CanReverse() bool {
	return s == DocumentStateIssued
}

// DocumentReference holds the provider-assigned identifiers persisted on a
// sale or payment after a successful issuance. Reference is the
// human-readable document number suitable for display; ProviderDocumentID
// is the provider's opaque identifier.
type DocumentReference struct {
	Reference          string       `json:"reference"`
	ProviderDocumentID string       `json:"provider_document_id"`
	DocumentType       DocumentType `json:"document_type"`
	PDFURL             string       `json:"pdf_url"`
}

// Validate checks the reference is complete enough to persist
func (r DocumentReference) Validate() error {
	if r.ProviderDocumentID == "" {
		return shared.NewDomainError("INVALID_REFERENCE", "Provider document ID is required")
	}
	if r.Reference == "" {
		return shared.NewDomainError("INVALID_REFERENCE", "Document reference is required")
	}
	if !r.DocumentType.IsValid() {
		return ErrUnknownDocumentType
	}
	return nil
}

// documentLifecycle captures the fiscal document fields shared by sales and
// payments, so both aggregates enforce the same state discipline.
type documentLifecycle struct {
	InvoiceReference    *string       `json:"invoice_reference"`
	ProviderDocumentID  *string       `json:"provider_document_id"`
	ProviderDocType     *DocumentType `json:"provider_document_type"`
	CreditNoteID        *string       `json:"credit_note_id"`
	CreditNoteReference *string       `json:"credit_note_reference"`
	DocumentCancelledAt *time.Time    `json:"document_cancelled_at"`
	CancelReason        string        `json:"cancel_reason"`
}

// State derives the document state from the stored fields
func (d *documentLifecycle) State() DocumentState {
	switch {
	case d.ProviderDocumentID == nil:
		return DocumentStateNone
	case d.DocumentCancelledAt != nil:
		return DocumentStateCancelled
	case d.CreditNoteID != nil:
		return DocumentStateReversed
	default:
		return DocumentStateIssued
	}
}

// HasDocument returns true once a provider document is attached
func (d *documentLifecycle) HasDocument() bool {
	return d.ProviderDocumentID != nil
}

// HasCreditNote returns true once a credit note is attached
func (d *documentLifecycle) HasCreditNote() bool {
	return d.CreditNoteID != nil
}

// attach sets the provider identifiers. The precondition (reference is
// currently null) mirrors the conditional UPDATE used at persistence time.
func (d *documentLifecycle) attach(ref DocumentReference) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if d.ProviderDocumentID != nil {
		return ErrAlreadyIssued
	}
	d.InvoiceReference = &ref.Reference
	d.ProviderDocumentID = &ref.ProviderDocumentID
	docType := ref.DocumentType
	d.ProviderDocType = &docType
	return nil
}

// attachCreditNote links a reversing document to the issued document
func (d *documentLifecycle) attachCreditNote(creditNoteID, creditNoteReference string) error {
	if creditNoteID == "" {
		return shared.NewDomainError("INVALID_CREDIT_NOTE", "Credit note ID is required")
	}
	if !d.State().CanReverse() {
		if d.HasCreditNote() {
			return ErrCreditNoteExists
		}
		return ErrNoDocumentIssued
	}
	d.CreditNoteID = &creditNoteID
	d.CreditNoteReference = &creditNoteReference
	return nil
}

// markCancelled records the cancellation of the issued document
func (d *documentLifecycle) markCancelled(reason string) error {
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason is required")
	}
	if !d.State().CanCancel() {
		return shared.NewDomainError("INVALID_STATE", "Only an issued document can be cancelled")
	}
	now := time.Now()
	d.DocumentCancelledAt = &now
	d.CancelReason = reason
	return nil
}

// Domain errors shared across the fiscal document lifecycle
var (
	ErrAlreadyIssued       = shared.NewDomainError("ALREADY_ISSUED", "A fiscal document has already been issued for this record")
	ErrCreditNoteExists    = shared.NewDomainError("CREDIT_NOTE_EXISTS", "A credit note already exists for this document")
	ErrNoDocumentIssued    = shared.NewDomainError("NO_DOCUMENT_ISSUED", "No fiscal document has been issued for this record")
	ErrUnknownDocumentType = shared.NewDomainError("UNKNOWN_DOCUMENT_TYPE", "Document type is not recognized")
)
