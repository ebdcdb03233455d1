package fiscal

import (
	"testing"

	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestSale(t *testing.T) *Sale {
	t.Helper()
	s, err := NewSale(uuid.New(), "S-2026-001", "Acme Lda", valueobject.NewMoneyEURFromFloat(1000))
	require.NoError(t, err)
	return s
}

func testDocumentReference() DocumentReference {
	return DocumentReference{
		Reference:          "FT 2026/42",
		ProviderDocumentID: "123456",
		DocumentType:       DocumentTypeInvoice,
		PDFURL:             "https://provider.example/docs/123456.pdf",
	}
}

func TestNewSale(t *testing.T) {
	s := createTestSale(t)
	assert.Equal(t, DocumentStateNone, s.State())
	assert.Equal(t, SaleStatusOpen, s.Status)

	_, err := NewSale(uuid.New(), "", "Acme Lda", valueobject.NewMoneyEURFromFloat(10))
	assert.Error(t, err, "code is required")

	_, err = NewSale(uuid.New(), "S-2026-002", "Acme Lda", valueobject.NewMoneyEURFromFloat(-1))
	assert.Error(t, err, "negative total is invalid")

	_, err = NewSale(uuid.New(), "S-2026-003", "Acme Lda", valueobject.Zero())
	assert.NoError(t, err, "zero total is a valid sale")
}

func TestSale_AttachDocument(t *testing.T) {
	s := createTestSale(t)
	ref := testDocumentReference()

	require.NoError(t, s.AttachDocument(ref))
	assert.Equal(t, DocumentStateIssued, s.State())
	assert.Equal(t, ref.Reference, *s.InvoiceReference)
	assert.Equal(t, ref.ProviderDocumentID, *s.ProviderDocumentID)
	assert.Equal(t, ref.PDFURL, s.InvoicePDFURL)

	events := s.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeSaleDocumentIssued, events[0].EventType())
}

func TestSale_AttachDocument_AlreadyIssued(t *testing.T) {
	s := createTestSale(t)
	require.NoError(t, s.AttachDocument(testDocumentReference()))
	s.ClearDomainEvents()

	second := testDocumentReference()
	second.ProviderDocumentID = "999999"
	err := s.AttachDocument(second)

	assert.ErrorIs(t, err, ErrAlreadyIssued)
	assert.Equal(t, "123456", *s.ProviderDocumentID, "existing reference is never overwritten")
	assert.Empty(t, s.GetDomainEvents())
}

func TestSale_AttachCreditNote(t *testing.T) {
	s := createTestSale(t)

	// No document yet
	assert.ErrorIs(t, s.AttachCreditNote("cn-1", "NC 2026/1"), ErrNoDocumentIssued)

	require.NoError(t, s.AttachDocument(testDocumentReference()))
	require.NoError(t, s.AttachCreditNote("cn-1", "NC 2026/1"))
	assert.Equal(t, DocumentStateReversed, s.State())
	assert.Equal(t, "cn-1", *s.CreditNoteID)

	// A second credit note against the same document is refused
	assert.ErrorIs(t, s.AttachCreditNote("cn-2", "NC 2026/2"), ErrCreditNoteExists)
}

func TestSale_CancelDocument(t *testing.T) {
	s := createTestSale(t)
	require.NoError(t, s.AttachDocument(testDocumentReference()))

	assert.Error(t, s.CancelDocument(""), "reason is required")
	require.NoError(t, s.CancelDocument("issued against the wrong client"))
	assert.Equal(t, DocumentStateCancelled, s.State())

	// CANCELLED is terminal
	assert.Error(t, s.CancelDocument("again"))
	assert.Error(t, s.AttachCreditNote("cn-1", "NC 2026/1"))
}

func TestSale_IsLocked(t *testing.T) {
	s := createTestSale(t)
	settings := &OrganizationSettings{LockDeliveredSales: true}

	assert.False(t, s.IsLocked(nil))
	assert.False(t, s.IsLocked(settings))

	s.Status = SaleStatusDelivered
	assert.True(t, s.IsLocked(settings))

	s.Status = SaleStatusFulfilled
	assert.False(t, s.IsLocked(settings))

	settings.LockFulfilledSales = true
	assert.True(t, s.IsLocked(settings))
}
