package fiscal

import (
	"context"
	"io"
	"time"

	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Mock Repositories and Provider
// =============================================================================

// MockSaleRepository is a mock implementation of fiscal.SaleRepository
type MockSaleRepository struct {
	mock.Mock
}

func (m *MockSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*fiscal.Sale, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiscal.Sale), args.Error(1)
}

func (m *MockSaleRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*fiscal.Sale, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiscal.Sale), args.Error(1)
}

func (m *MockSaleRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*fiscal.Sale, error) {
	args := m.Called(ctx, tenantID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiscal.Sale), args.Error(1)
}

func (m *MockSaleRepository) FindByProviderDocumentID(ctx context.Context, tenantID uuid.UUID, providerDocumentID string) (*fiscal.Sale, error) {
	args := m.Called(ctx, tenantID, providerDocumentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiscal.Sale), args.Error(1)
}

func (m *MockSaleRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter fiscal.SaleFilter) ([]fiscal.Sale, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fiscal.Sale), args.Error(1)
}

func (m *MockSaleRepository) Save(ctx context.Context, sale *fiscal.Sale) error {
	args := m.Called(ctx, sale)
	return args.Error(0)
}

func (m *MockSaleRepository) AttachDocumentIfUnset(ctx context.Context, tenantID, saleID uuid.UUID, ref fiscal.DocumentReference) (bool, error) {
	args := m.Called(ctx, tenantID, saleID, ref)
	return args.Get(0).(bool), args.Error(1)
}

func (m *MockSaleRepository) AttachCreditNoteIfUnset(ctx context.Context, tenantID, saleID uuid.UUID, creditNoteID, creditNoteReference string) (bool, error) {
	args := m.Called(ctx, tenantID, saleID, creditNoteID, creditNoteReference)
	return args.Get(0).(bool), args.Error(1)
}

func (m *MockSaleRepository) MarkDocumentCancelled(ctx context.Context, tenantID, saleID uuid.UUID, reason string) error {
	args := m.Called(ctx, tenantID, saleID, reason)
	return args.Error(0)
}

func (m *MockSaleRepository) FindCreditNoteRecords(ctx context.Context, tenantID uuid.UUID) ([]fiscal.CreditNoteRecord, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fiscal.CreditNoteRecord), args.Error(1)
}

// MockPaymentRepository is a mock implementation of fiscal.PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*fiscal.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiscal.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*fiscal.Payment, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiscal.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindBySale(ctx context.Context, tenantID, saleID uuid.UUID) ([]fiscal.Payment, error) {
	args := m.Called(ctx, tenantID, saleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fiscal.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByProviderDocumentID(ctx context.Context, tenantID uuid.UUID, providerDocumentID string) (*fiscal.Payment, error) {
	args := m.Called(ctx, tenantID, providerDocumentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiscal.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter fiscal.PaymentFilter) ([]fiscal.Payment, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fiscal.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Save(ctx context.Context, payment *fiscal.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockPaymentRepository) AttachDocumentIfUnset(ctx context.Context, tenantID, paymentID uuid.UUID, ref fiscal.DocumentReference) (bool, error) {
	args := m.Called(ctx, tenantID, paymentID, ref)
	return args.Get(0).(bool), args.Error(1)
}

func (m *MockPaymentRepository) AttachCreditNoteIfUnset(ctx context.Context, tenantID, paymentID uuid.UUID, creditNoteID, creditNoteReference string) (bool, error) {
	args := m.Called(ctx, tenantID, paymentID, creditNoteID, creditNoteReference)
	return args.Get(0).(bool), args.Error(1)
}

func (m *MockPaymentRepository) MarkDocumentCancelled(ctx context.Context, tenantID, paymentID uuid.UUID, reason string) error {
	args := m.Called(ctx, tenantID, paymentID, reason)
	return args.Error(0)
}

func (m *MockPaymentRepository) SetInvoiceFileURL(ctx context.Context, tenantID, paymentID uuid.UUID, url string) error {
	args := m.Called(ctx, tenantID, paymentID, url)
	return args.Error(0)
}

func (m *MockPaymentRepository) FindCreditNoteRecords(ctx context.Context, tenantID uuid.UUID) ([]fiscal.CreditNoteRecord, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fiscal.CreditNoteRecord), args.Error(1)
}

// MockSettingsRepository is a mock implementation of fiscal.OrganizationSettingsRepository
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*fiscal.OrganizationSettings, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiscal.OrganizationSettings), args.Error(1)
}

func (m *MockSettingsRepository) Save(ctx context.Context, settings *fiscal.OrganizationSettings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

// MockInvoicingProvider is a mock implementation of fiscal.InvoicingProvider
type MockInvoicingProvider struct {
	mock.Mock
}

func (m *MockInvoicingProvider) Issue(ctx context.Context, req fiscal.IssueDocumentRequest) (*fiscal.IssuedDocument, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiscal.IssuedDocument), args.Error(1)
}

func (m *MockInvoicingProvider) Cancel(ctx context.Context, req fiscal.CancelDocumentRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockInvoicingProvider) ListDocuments(ctx context.Context, req fiscal.ListDocumentsRequest) ([]fiscal.ProviderDocument, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fiscal.ProviderDocument), args.Error(1)
}

func (m *MockInvoicingProvider) GetDocument(ctx context.Context, documentID string, docType fiscal.DocumentType) (*fiscal.ProviderDocumentDetail, error) {
	args := m.Called(ctx, documentID, docType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fiscal.ProviderDocumentDetail), args.Error(1)
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

var _ shared.EventPublisher = (*MockEventPublisher)(nil)

// MockCreditNoteCache is a mock implementation of CreditNoteCache
type MockCreditNoteCache struct {
	mock.Mock
}

func (m *MockCreditNoteCache) Get(ctx context.Context, tenantID uuid.UUID) ([]fiscal.CreditNoteRecord, bool, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Get(1).(bool), args.Error(2)
	}
	return args.Get(0).([]fiscal.CreditNoteRecord), args.Get(1).(bool), args.Error(2)
}

func (m *MockCreditNoteCache) Set(ctx context.Context, tenantID uuid.UUID, records []fiscal.CreditNoteRecord) error {
	args := m.Called(ctx, tenantID, records)
	return args.Error(0)
}

func (m *MockCreditNoteCache) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

// MockObjectStorage is a mock implementation of ObjectStorage
type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	args := m.Called(ctx, key, body, contentType)
	return args.Get(0).(string), args.Error(1)
}

// =============================================================================
// Test Helper Functions
// =============================================================================

func createTestSale(tenantID uuid.UUID, total decimal.Decimal) *fiscal.Sale {
	sale, _ := fiscal.NewSale(tenantID, "SALE-001", "Test Client", valueobject.NewMoneyEUR(total))
	return sale
}

func createTestSaleWithDocument(tenantID uuid.UUID, total decimal.Decimal) *fiscal.Sale {
	sale := createTestSale(tenantID, total)
	_ = sale.AttachDocument(fiscal.DocumentReference{
		Reference:          "FT 2026/1",
		ProviderDocumentID: "900",
		DocumentType:       fiscal.DocumentTypeInvoice,
		PDFURL:             "https://provider.example/doc/900.pdf",
	})
	sale.ClearDomainEvents()
	return sale
}

func createTestPayment(tenantID, saleID uuid.UUID, amount decimal.Decimal) *fiscal.Payment {
	payment, _ := fiscal.NewPayment(
		tenantID,
		saleID,
		valueobject.NewMoneyEUR(amount),
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		fiscal.PaymentMethodBankTransfer,
		fiscal.PaymentStatusPaid,
	)
	payment.ClearDomainEvents()
	return payment
}

func createTestSettings(tenantID uuid.UUID) *fiscal.OrganizationSettings {
	settings, _ := fiscal.NewOrganizationSettings(tenantID, decimal.NewFromInt(23))
	settings.Credentials = fiscal.ProviderCredentials{
		AccountName: "acme",
		APIKey:      "test-api-key",
	}
	return settings
}

func newTestResolver(settingsRepo fiscal.OrganizationSettingsRepository, provider fiscal.InvoicingProvider) *CredentialResolver {
	return NewCredentialResolver(settingsRepo, func(fiscal.ProviderCredentials) (fiscal.InvoicingProvider, error) {
		return provider, nil
	})
}
