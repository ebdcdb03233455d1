package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ClientSnapshot is the client data embedded in a fiscal document at
// issuance time. Documents are immutable; later changes to the client
// never touch an issued document.
type ClientSnapshot struct {
	Name       string `json:"name"`
	TaxID      string `json:"tax_id"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Validate checks the snapshot carries the legally required fields
func (c ClientSnapshot) Validate() error {
	if c.Name == "" {
		return shared.NewDomainError("INVALID_CLIENT", "Client name is required on a fiscal document")
	}
	return nil
}

// DocumentItem is one line of a fiscal document
type DocumentItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// TaxSettings carries the organization's tax configuration applied to a
// document. A zero rate is only legal with an exemption reason.
type TaxSettings struct {
	Rate            decimal.Decimal `json:"rate"`
	ExemptionReason string          `json:"exemption_reason"`
}

// Validate enforces the legal precondition for document validity
func (t TaxSettings) Validate() error {
	if t.Rate.IsNegative() {
		return shared.NewDomainError("INVALID_TAX_RATE", "Tax rate cannot be negative")
	}
	if t.Rate.IsZero() && t.ExemptionReason == "" {
		return shared.NewDomainError("MISSING_TAX_EXEMPTION", "A zero tax rate requires a tax exemption reason")
	}
	return nil
}

// IssueDocumentRequest is the provider-facing request to issue a document.
// ExternalReference carries the local record identifier; the provider
// echoes it back on list/detail calls, which is what makes reconciliation
// deterministic. OriginalDocumentID is set only for credit notes.
type IssueDocumentRequest struct {
	Type               DocumentType   `json:"type"`
	Client             ClientSnapshot `json:"client"`
	Items              []DocumentItem `json:"items"`
	Tax                TaxSettings    `json:"tax"`
	Date               time.Time      `json:"date"`
	ExternalReference  string         `json:"external_reference"`
	Observations       string         `json:"observations"`
	OriginalDocumentID string         `json:"original_document_id"`
	Reason             string         `json:"reason"`
}

// Validate checks the request before any network call
func (r IssueDocumentRequest) Validate() error {
	if !r.Type.IsValid() {
		return ErrUnknownDocumentType
	}
	if err := r.Client.Validate(); err != nil {
		return err
	}
	if len(r.Items) == 0 {
		return shared.NewDomainError("INVALID_ITEMS", "A fiscal document requires at least one item")
	}
	if err := r.Tax.Validate(); err != nil {
		return err
	}
	if r.Type.IsReversing() && r.OriginalDocumentID == "" {
		return ErrMissingOriginalDocument
	}
	return nil
}

// CancelDocumentRequest is the provider-facing request to cancel a document
type CancelDocumentRequest struct {
	ProviderDocumentID string       `json:"provider_document_id"`
	Type               DocumentType `json:"type"`
	Reason             string       `json:"reason"`
}

// Validate checks the request before any network call
func (r CancelDocumentRequest) Validate() error {
	if r.ProviderDocumentID == "" {
		return shared.NewDomainError("INVALID_DOCUMENT", "Provider document ID is required")
	}
	if !r.Type.IsValid() {
		return ErrUnknownDocumentType
	}
	if r.Reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason is required")
	}
	return nil
}

// IssuedDocument is the provider's answer to a successful issuance
type IssuedDocument struct {
	ID        string       `json:"id"`
	Reference string       `json:"reference"`
	Type      DocumentType `json:"type"`
	PDFURL    string       `json:"pdf_url"`
}

// ProviderDocument is one entry of the provider's document list
type ProviderDocument struct {
	ID                string          `json:"id"`
	Reference         string          `json:"reference"`
	Type              DocumentType    `json:"type"`
	Status            string          `json:"status"`
	Date              time.Time       `json:"date"`
	Total             decimal.Decimal `json:"total"`
	ClientName        string          `json:"client_name"`
	ClientTaxID       string          `json:"client_tax_id"`
	ExternalReference string          `json:"external_reference"`
}

// ProviderDocumentDetail is the full remote representation of a document
type ProviderDocumentDetail struct {
	ProviderDocument
	Client    ClientSnapshot `json:"client"`
	Items     []DocumentItem `json:"items"`
	PDFURL    string         `json:"pdf_url"`
	QRCodeURL string         `json:"qr_code_url"`
}

// ListDocumentsRequest filters the provider's document list
type ListDocumentsRequest struct {
	Types []DocumentType `json:"types"`
}

// InvoicingProvider is the contract with the external tax-compliant
// invoicing service. Implementations must bound every call with a timeout;
// on timeout local state is left untouched and a subsequent sync
// establishes ground truth from the provider.
type InvoicingProvider interface {
	// Issue creates a fiscal document and returns its identifiers
	Issue(ctx context.Context, req IssueDocumentRequest) (*IssuedDocument, error)
	// Cancel cancels an issued document
	Cancel(ctx context.Context, req CancelDocumentRequest) error
	// ListDocuments returns the provider's document list
	ListDocuments(ctx context.Context, req ListDocumentsRequest) ([]ProviderDocument, error)
	// GetDocument returns the full remote representation of one document
	GetDocument(ctx context.Context, documentID string, docType DocumentType) (*ProviderDocumentDetail, error)
}

// Provider error taxonomy. Validation failures are raised before any
// network call; provider errors surface the remote message verbatim so a
// human can correct and manually retry. The engine never auto-retries a
// financial mutation.
var (
	ErrProviderNotConfigured   = shared.NewDomainError("PROVIDER_NOT_CONFIGURED", "Invoicing provider credentials are not configured")
	ErrMissingOriginalDocument = shared.NewDomainError("MISSING_ORIGINAL_DOCUMENT", "A credit note requires the original document ID")
)

// ProviderRejectedError means the provider refused the document (remote
// validation failure, e.g. a malformed tax ID)
type ProviderRejectedError struct {
	Message string
}

// Error implements the error interface
func (e *ProviderRejectedError) Error() string {
	return fmt.Sprintf("provider rejected the request: %s", e.Message)
}

// NewProviderRejectedError creates a ProviderRejectedError
func NewProviderRejectedError(message string) *ProviderRejectedError {
	return &ProviderRejectedError{Message: message}
}

// ProviderUnavailableError means the provider could not be reached
// (timeout or network failure). Local state is left exactly as it was.
type ProviderUnavailableError struct {
	Err error
}

// Error implements the error interface
func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("invoicing provider unavailable: %v", e.Err)
}

// Unwrap returns the underlying transport error
func (e *ProviderUnavailableError) Unwrap() error {
	return e.Err
}

// NewProviderUnavailableError creates a ProviderUnavailableError
func NewProviderUnavailableError(err error) *ProviderUnavailableError {
	return &ProviderUnavailableError{Err: err}
}
