package fiscal

import (
	"context"
	"testing"
	"time"

	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func newSyncService(saleRepo *MockSaleRepository, paymentRepo *MockPaymentRepository, settingsRepo *MockSettingsRepository, provider *MockInvoicingProvider) *SyncService {
	resolver := newTestResolver(settingsRepo, provider)
	return NewSyncService(saleRepo, paymentRepo, resolver, zap.NewNop())
}

func providerInvoice(id, externalRef string) fiscal.ProviderDocument {
	return fiscal.ProviderDocument{
		ID:                id,
		Reference:         "FT 2026/" + id,
		Type:              fiscal.DocumentTypeInvoice,
		Date:              time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Total:             decimal.NewFromInt(1000),
		ExternalReference: externalRef,
	}
}

// =============================================================================
// Test Cases for SyncInvoices
// =============================================================================

func TestSyncService_SyncInvoices_FillsMissingReference(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	saleRepo := new(MockSaleRepository)
	paymentRepo := new(MockPaymentRepository)
	settingsRepo := new(MockSettingsRepository)
	provider := new(MockInvoicingProvider)
	service := newSyncService(saleRepo, paymentRepo, settingsRepo, provider)

	sale := createTestSale(tenantID, decimal.NewFromInt(1000))
	settings := createTestSettings(tenantID)

	settingsRepo.On("FindByTenant", mock.Anything, tenantID).Return(settings, nil)
	provider.On("ListDocuments", mock.Anything, mock.AnythingOfType("fiscal.ListDocumentsRequest")).
		Return([]fiscal.ProviderDocument{providerInvoice("900", sale.ID.String())}, nil)
	saleRepo.On("FindByIDForTenant", mock.Anything, tenantID, sale.ID).Return(sale, nil)
	saleRepo.On("AttachDocumentIfUnset", mock.Anything, tenantID, sale.ID, mock.AnythingOfType("fiscal.DocumentReference")).Return(true, nil)

	result, err := service.SyncInvoices(ctx, tenantID)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 0, result.NotMatched)
	saleRepo.AssertExpectations(t)
}

func TestSyncService_SyncInvoices_NeverOverwrites(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	saleRepo := new(MockSaleRepository)
	paymentRepo := new(MockPaymentRepository)
	settingsRepo := new(MockSettingsRepository)
	provider := new(MockInvoicingProvider)
	service := newSyncService(saleRepo, paymentRepo, settingsRepo, provider)

	// The sale already references document 900; the remote list claims a
	// different document for the same sale.
	sale := createTestSaleWithDocument(tenantID, decimal.NewFromInt(1000))
	settings := createTestSettings(tenantID)

	settingsRepo.On("FindByTenant", mock.Anything, tenantID).Return(settings, nil)
	provider.On("ListDocuments", mock.Anything, mock.AnythingOfType("fiscal.ListDocumentsRequest")).
		Return([]fiscal.ProviderDocument{providerInvoice("999", sale.ID.String())}, nil)
	saleRepo.On("FindByIDForTenant", mock.Anything, tenantID, sale.ID).Return(sale, nil)

	result, err := service.SyncInvoices(ctx, tenantID)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 0, result.Matched)
	assert.Equal(t, 1, result.NotMatched)
	saleRepo.AssertNotCalled(t, "AttachDocumentIfUnset", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncService_SyncInvoices_SkipsForeignDocuments(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	saleRepo := new(MockSaleRepository)
	paymentRepo := new(MockPaymentRepository)
	settingsRepo := new(MockSettingsRepository)
	provider := new(MockInvoicingProvider)
	service := newSyncService(saleRepo, paymentRepo, settingsRepo, provider)

	settings := createTestSettings(tenantID)
	settingsRepo.On("FindByTenant", mock.Anything, tenantID).Return(settings, nil)
	// Documents issued outside the engine: no external reference, or one
	// that is not a local record ID.
	provider.On("ListDocuments", mock.Anything, mock.AnythingOfType("fiscal.ListDocumentsRequest")).
		Return([]fiscal.ProviderDocument{
			providerInvoice("900", ""),
			providerInvoice("901", "manual-entry"),
		}, nil)

	result, err := service.SyncInvoices(ctx, tenantID)

	assert.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 0, result.Matched)
	assert.Equal(t, 2, result.NotMatched)
	saleRepo.AssertNotCalled(t, "FindByIDForTenant", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncService_SyncInvoices_PaymentDocuments(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	saleRepo := new(MockSaleRepository)
	paymentRepo := new(MockPaymentRepository)
	settingsRepo := new(MockSettingsRepository)
	provider := new(MockInvoicingProvider)
	service := newSyncService(saleRepo, paymentRepo, settingsRepo, provider)

	payment := createTestPayment(tenantID, uuid.New(), decimal.NewFromInt(400))
	settings := createTestSettings(tenantID)

	doc := providerInvoice("910", payment.ID.String())
	doc.Type = fiscal.DocumentTypeInvoiceReceipt

	settingsRepo.On("FindByTenant", mock.Anything, tenantID).Return(settings, nil)
	provider.On("ListDocuments", mock.Anything, mock.AnythingOfType("fiscal.ListDocumentsRequest")).
		Return([]fiscal.ProviderDocument{doc}, nil)
	paymentRepo.On("FindByIDForTenant", mock.Anything, tenantID, payment.ID).Return(payment, nil)
	paymentRepo.On("AttachDocumentIfUnset", mock.Anything, tenantID, payment.ID, mock.AnythingOfType("fiscal.DocumentReference")).Return(true, nil)

	result, err := service.SyncInvoices(ctx, tenantID)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Matched)
	paymentRepo.AssertExpectations(t)
}

func TestSyncService_SyncInvoices_ProviderNotConfigured(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	saleRepo := new(MockSaleRepository)
	paymentRepo := new(MockPaymentRepository)
	settingsRepo := new(MockSettingsRepository)
	provider := new(MockInvoicingProvider)
	service := newSyncService(saleRepo, paymentRepo, settingsRepo, provider)

	settingsRepo.On("FindByTenant", mock.Anything, tenantID).Return(nil, nil)

	result, err := service.SyncInvoices(ctx, tenantID)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, fiscal.ErrProviderNotConfigured, err)
	provider.AssertNotCalled(t, "ListDocuments", mock.Anything, mock.Anything)
}

// =============================================================================
// Test Cases for SyncCreditNotes
// =============================================================================

func TestSyncService_SyncCreditNotes_AttachesToSale(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	saleRepo := new(MockSaleRepository)
	paymentRepo := new(MockPaymentRepository)
	settingsRepo := new(MockSettingsRepository)
	provider := new(MockInvoicingProvider)
	service := newSyncService(saleRepo, paymentRepo, settingsRepo, provider)

	sale := createTestSaleWithDocument(tenantID, decimal.NewFromInt(1000))
	settings := createTestSettings(tenantID)

	doc := fiscal.ProviderDocument{
		ID:                "950",
		Reference:         "NC 2026/1",
		Type:              fiscal.DocumentTypeCreditNote,
		ExternalReference: sale.ID.String(),
	}

	settingsRepo.On("FindByTenant", mock.Anything, tenantID).Return(settings, nil)
	provider.On("ListDocuments", mock.Anything, fiscal.ListDocumentsRequest{
		Types: []fiscal.DocumentType{fiscal.DocumentTypeCreditNote},
	}).Return([]fiscal.ProviderDocument{doc}, nil)
	saleRepo.On("FindByIDForTenant", mock.Anything, tenantID, sale.ID).Return(sale, nil)
	saleRepo.On("AttachCreditNoteIfUnset", mock.Anything, tenantID, sale.ID, "950", "NC 2026/1").Return(true, nil)

	result, err := service.SyncCreditNotes(ctx, tenantID)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 0, result.NotMatched)
	saleRepo.AssertExpectations(t)
}

func TestSyncService_SyncCreditNotes_FallsBackToPayment(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	saleRepo := new(MockSaleRepository)
	paymentRepo := new(MockPaymentRepository)
	settingsRepo := new(MockSettingsRepository)
	provider := new(MockInvoicingProvider)
	service := newSyncService(saleRepo, paymentRepo, settingsRepo, provider)

	payment := createTestPayment(tenantID, uuid.New(), decimal.NewFromInt(400))
	err := payment.AttachDocument(fiscal.DocumentReference{
		Reference:          "FR 2026/3",
		ProviderDocumentID: "911",
		DocumentType:       fiscal.DocumentTypeInvoiceReceipt,
	})
	assert.NoError(t, err)
	settings := createTestSettings(tenantID)

	doc := fiscal.ProviderDocument{
		ID:                "951",
		Reference:         "NC 2026/2",
		Type:              fiscal.DocumentTypeCreditNote,
		ExternalReference: payment.ID.String(),
	}

	settingsRepo.On("FindByTenant", mock.Anything, tenantID).Return(settings, nil)
	provider.On("ListDocuments", mock.Anything, mock.AnythingOfType("fiscal.ListDocumentsRequest")).
		Return([]fiscal.ProviderDocument{doc}, nil)
	saleRepo.On("FindByIDForTenant", mock.Anything, tenantID, payment.ID).Return(nil, nil)
	paymentRepo.On("FindByIDForTenant", mock.Anything, tenantID, payment.ID).Return(payment, nil)
	paymentRepo.On("AttachCreditNoteIfUnset", mock.Anything, tenantID, payment.ID, "951", "NC 2026/2").Return(true, nil)

	result, err := service.SyncCreditNotes(ctx, tenantID)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Synced)
	paymentRepo.AssertExpectations(t)
}

func TestSyncService_SyncCreditNotes_AlreadySyncedCountsAsSynced(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	saleRepo := new(MockSaleRepository)
	paymentRepo := new(MockPaymentRepository)
	settingsRepo := new(MockSettingsRepository)
	provider := new(MockInvoicingProvider)
	service := newSyncService(saleRepo, paymentRepo, settingsRepo, provider)

	sale := createTestSaleWithDocument(tenantID, decimal.NewFromInt(1000))
	err := sale.AttachCreditNote("950", "NC 2026/1")
	assert.NoError(t, err)
	settings := createTestSettings(tenantID)

	doc := fiscal.ProviderDocument{
		ID:                "950",
		Reference:         "NC 2026/1",
		Type:              fiscal.DocumentTypeCreditNote,
		ExternalReference: sale.ID.String(),
	}

	settingsRepo.On("FindByTenant", mock.Anything, tenantID).Return(settings, nil)
	provider.On("ListDocuments", mock.Anything, mock.AnythingOfType("fiscal.ListDocumentsRequest")).
		Return([]fiscal.ProviderDocument{doc}, nil)
	saleRepo.On("FindByIDForTenant", mock.Anything, tenantID, sale.ID).Return(sale, nil)

	result, err := service.SyncCreditNotes(ctx, tenantID)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Synced)
	saleRepo.AssertNotCalled(t, "AttachCreditNoteIfUnset", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// =============================================================================
// Test Cases for GetDocumentDetails
// =============================================================================

func TestSyncService_GetDocumentDetails_NoSync(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	saleRepo := new(MockSaleRepository)
	paymentRepo := new(MockPaymentRepository)
	settingsRepo := new(MockSettingsRepository)
	provider := new(MockInvoicingProvider)
	service := newSyncService(saleRepo, paymentRepo, settingsRepo, provider)

	settings := createTestSettings(tenantID)
	detail := &fiscal.ProviderDocumentDetail{
		ProviderDocument: fiscal.ProviderDocument{
			ID:        "900",
			Reference: "FT 2026/1",
			Type:      fiscal.DocumentTypeInvoice,
		},
		PDFURL: "https://provider.example/doc/900.pdf",
	}

	settingsRepo.On("FindByTenant", mock.Anything, tenantID).Return(settings, nil)
	provider.On("GetDocument", mock.Anything, "900", fiscal.DocumentTypeInvoice).Return(detail, nil)

	got, err := service.GetDocumentDetails(ctx, DocumentDetailsRequest{
		TenantID:   tenantID,
		DocumentID: "900",
		Type:       fiscal.DocumentTypeInvoice,
	})

	assert.NoError(t, err)
	assert.Equal(t, detail, got)
	saleRepo.AssertNotCalled(t, "AttachDocumentIfUnset", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncService_GetDocumentDetails_SyncRequiresCorrelation(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	saleRepo := new(MockSaleRepository)
	paymentRepo := new(MockPaymentRepository)
	settingsRepo := new(MockSettingsRepository)
	provider := new(MockInvoicingProvider)
	service := newSyncService(saleRepo, paymentRepo, settingsRepo, provider)

	saleID := uuid.New()
	paymentID := uuid.New()

	testCases := []struct {
		name      string
		saleID    *uuid.UUID
		paymentID *uuid.UUID
	}{
		{"neither target", nil, nil},
		{"both targets", &saleID, &paymentID},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := service.GetDocumentDetails(ctx, DocumentDetailsRequest{
				TenantID:   tenantID,
				DocumentID: "900",
				Type:       fiscal.DocumentTypeInvoice,
				Sync:       true,
				SaleID:     tc.saleID,
				PaymentID:  tc.paymentID,
			})

			assert.Error(t, err)
			assert.Nil(t, got)
			assert.Contains(t, err.Error(), "exactly one")
		})
	}
	provider.AssertNotCalled(t, "GetDocument", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncService_GetDocumentDetails_SyncAttachesToSale(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	saleRepo := new(MockSaleRepository)
	paymentRepo := new(MockPaymentRepository)
	settingsRepo := new(MockSettingsRepository)
	provider := new(MockInvoicingProvider)
	service := newSyncService(saleRepo, paymentRepo, settingsRepo, provider)

	saleID := uuid.New()
	settings := createTestSettings(tenantID)
	detail := &fiscal.ProviderDocumentDetail{
		ProviderDocument: fiscal.ProviderDocument{
			ID:        "900",
			Reference: "FT 2026/1",
			Type:      fiscal.DocumentTypeInvoice,
		},
	}

	settingsRepo.On("FindByTenant", mock.Anything, tenantID).Return(settings, nil)
	provider.On("GetDocument", mock.Anything, "900", fiscal.DocumentTypeInvoice).Return(detail, nil)
	saleRepo.On("AttachDocumentIfUnset", mock.Anything, tenantID, saleID, mock.AnythingOfType("fiscal.DocumentReference")).Return(true, nil)

	got, err := service.GetDocumentDetails(ctx, DocumentDetailsRequest{
		TenantID:   tenantID,
		DocumentID: "900",
		Type:       fiscal.DocumentTypeInvoice,
		Sync:       true,
		SaleID:     &saleID,
	})

	assert.NoError(t, err)
	assert.NotNil(t, got)
	saleRepo.AssertExpectations(t)
}
