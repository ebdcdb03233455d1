package fiscal

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ObjectStorage stores uploaded invoice files and returns a public URL
type ObjectStorage interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// PaymentService is the payment ledger: it owns every mutation of the
// payments attached to a sale and enforces the organization-level locks
// before any write.
type PaymentService struct {
	saleRepo    fiscal.SaleRepository
	paymentRepo fiscal.PaymentRepository
	resolver    *CredentialResolver
	eventBus    shared.EventPublisher
	fileStorage ObjectStorage
	logger      *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	saleRepo fiscal.SaleRepository,
	paymentRepo fiscal.PaymentRepository,
	resolver *CredentialResolver,
	eventBus shared.EventPublisher,
	fileStorage ObjectStorage,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		saleRepo:    saleRepo,
		paymentRepo: paymentRepo,
		resolver:    resolver,
		eventBus:    eventBus,
		fileStorage: fileStorage,
		logger:      logger,
	}
}

// CreatePaymentRequest represents a request to record a payment against a sale
type CreatePaymentRequest struct {
	TenantID    uuid.UUID
	SaleID      uuid.UUID
	Amount      decimal.Decimal
	PaymentDate time.Time
	Method      fiscal.PaymentMethod
	Status      fiscal.PaymentStatus
	Notes       string
	CreatedBy   *uuid.UUID
}

// UpdatePaymentRequest represents a request to modify a recorded payment
type UpdatePaymentRequest struct {
	TenantID    uuid.UUID
	PaymentID   uuid.UUID
	Amount      decimal.Decimal
	PaymentDate time.Time
	Method      fiscal.PaymentMethod
	Status      fiscal.PaymentStatus
	Notes       string
}

// ErrSaleLocked is returned when organization settings block payment
// mutations for the sale's current status
var ErrSaleLocked = shared.NewDomainError("SALE_LOCKED", "Payments on this sale are locked by organization settings")

// CreatePayment records a payment against a sale. The sale must exist in
// the tenant and must not be locked by the organization's settings.
func (s *PaymentService) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*fiscal.Payment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "create_payment")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrSaleID, req.SaleID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	sale, settings, err := s.loadSaleAndSettings(ctx, req.TenantID, req.SaleID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if sale.IsLocked(settings) {
		telemetry.RecordError(span, ErrSaleLocked)
		return nil, ErrSaleLocked
	}

	amount := valueobject.NewMoneyEUR(req.Amount)
	payment, err := fiscal.NewPayment(req.TenantID, sale.ID, amount, req.PaymentDate, req.Method, req.Status)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	payment.Notes = req.Notes
	if req.CreatedBy != nil {
		payment.SetCreatedBy(*req.CreatedBy)
	}

	if err := s.paymentRepo.Save(ctx, payment); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	s.publishEvents(ctx, payment)
	return payment, nil
}

// UpdatePayment modifies the mutable fields of a payment. Fiscal document
// fields are never touched here.
func (s *PaymentService) UpdatePayment(ctx context.Context, req UpdatePaymentRequest) (*fiscal.Payment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "update_payment")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrPaymentID, req.PaymentID.String(),
	)

	payment, err := s.paymentRepo.FindByIDForTenant(ctx, req.TenantID, req.PaymentID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if payment == nil {
		telemetry.RecordError(span, shared.ErrNotFound)
		return nil, shared.NewDomainError("PAYMENT_NOT_FOUND", "Payment not found")
	}

	sale, settings, err := s.loadSaleAndSettings(ctx, req.TenantID, payment.SaleID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if sale.IsLocked(settings) {
		telemetry.RecordError(span, ErrSaleLocked)
		return nil, ErrSaleLocked
	}

	amount := valueobject.NewMoneyEUR(req.Amount)
	if err := payment.Update(amount, req.PaymentDate, req.Method, req.Status, req.Notes); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.paymentRepo.Save(ctx, payment); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	s.publishEvents(ctx, payment)
	return payment, nil
}

// DeletePayment removes a payment. Deletion is refused when the
// organization forbids it, when the sale is locked, or when the payment
// already carries a fiscal document (the document must be cancelled or
// reversed first, deleting the payment would orphan it).
func (s *PaymentService) DeletePayment(ctx context.Context, tenantID, paymentID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "delete_payment")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrPaymentID, paymentID.String(),
	)

	payment, err := s.paymentRepo.FindByIDForTenant(ctx, tenantID, paymentID)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to get payment: %w", err)
	}
	if payment == nil {
		telemetry.RecordError(span, shared.ErrNotFound)
		return shared.NewDomainError("PAYMENT_NOT_FOUND", "Payment not found")
	}

	sale, settings, err := s.loadSaleAndSettings(ctx, tenantID, payment.SaleID)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if settings != nil && settings.PreventPaymentDeletion {
		err := shared.NewDomainError("PAYMENT_DELETION_FORBIDDEN", "Payment deletion is disabled by organization settings")
		telemetry.RecordError(span, err)
		return err
	}
	if sale.IsLocked(settings) {
		telemetry.RecordError(span, ErrSaleLocked)
		return ErrSaleLocked
	}
	if payment.HasDocument() {
		err := shared.NewDomainError("PAYMENT_HAS_DOCUMENT", "Cannot delete a payment with an issued fiscal document")
		telemetry.RecordError(span, err)
		return err
	}

	if err := s.paymentRepo.Delete(ctx, tenantID, paymentID); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	return nil
}

// ListPayments returns all payments recorded against a sale
func (s *PaymentService) ListPayments(ctx context.Context, tenantID, saleID uuid.UUID) ([]fiscal.Payment, error) {
	payments, err := s.paymentRepo.FindBySale(ctx, tenantID, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// GetPaymentSummary aggregates a sale's payments into the paid/scheduled/
// remaining totals shown next to the sale.
func (s *PaymentService) GetPaymentSummary(ctx context.Context, tenantID, saleID uuid.UUID) (*fiscal.PaymentSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "get_payment_summary")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrSaleID, saleID.String(),
	)

	sale, err := s.saleRepo.FindByIDForTenant(ctx, tenantID, saleID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	if sale == nil {
		telemetry.RecordError(span, shared.ErrNotFound)
		return nil, shared.NewDomainError("SALE_NOT_FOUND", "Sale not found")
	}

	payments, err := s.paymentRepo.FindBySale(ctx, tenantID, saleID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	summary := fiscal.CalculatePaymentSummary(payments, sale.TotalValue)
	return &summary, nil
}

// AttachInvoiceFile uploads a manually provided invoice file for a payment
// and stores its URL. Used when a document was issued outside the engine.
func (s *PaymentService) AttachInvoiceFile(ctx context.Context, tenantID, paymentID uuid.UUID, filename, contentType string, body io.Reader) (string, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "attach_invoice_file")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrPaymentID, paymentID.String(),
	)

	if s.fileStorage == nil {
		err := shared.NewDomainError("STORAGE_NOT_CONFIGURED", "File storage is not configured")
		telemetry.RecordError(span, err)
		return "", err
	}

	payment, err := s.paymentRepo.FindByIDForTenant(ctx, tenantID, paymentID)
	if err != nil {
		telemetry.RecordError(span, err)
		return "", fmt.Errorf("failed to get payment: %w", err)
	}
	if payment == nil {
		telemetry.RecordError(span, shared.ErrNotFound)
		return "", shared.NewDomainError("PAYMENT_NOT_FOUND", "Payment not found")
	}

	key := fmt.Sprintf("invoices/%s/%s/%s", tenantID, paymentID, filename)
	url, err := s.fileStorage.Upload(ctx, key, body, contentType)
	if err != nil {
		telemetry.RecordError(span, err)
		return "", fmt.Errorf("failed to upload invoice file: %w", err)
	}

	if err := s.paymentRepo.SetInvoiceFileURL(ctx, tenantID, paymentID, url); err != nil {
		telemetry.RecordError(span, err)
		return "", fmt.Errorf("failed to store invoice file URL: %w", err)
	}
	return url, nil
}

// loadSaleAndSettings fetches the sale and the organization settings that
// gate its payment mutations. A tenant without saved settings gets nil
// settings, which means no locks.
func (s *PaymentService) loadSaleAndSettings(ctx context.Context, tenantID, saleID uuid.UUID) (*fiscal.Sale, *fiscal.OrganizationSettings, error) {
	sale, err := s.saleRepo.FindByIDForTenant(ctx, tenantID, saleID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get sale: %w", err)
	}
	if sale == nil {
		return nil, nil, shared.NewDomainError("SALE_NOT_FOUND", "Sale not found")
	}
	settings, err := s.resolver.Settings(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	return sale, settings, nil
}

// publishEvents drains the aggregate's domain events onto the event bus.
// Publish failures are logged, never propagated: the write already
// happened and must not be reported as failed.
func (s *PaymentService) publishEvents(ctx context.Context, aggregate interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}) {
	if s.eventBus == nil {
		return
	}
	for _, event := range aggregate.GetDomainEvents() {
		if err := s.eventBus.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish domain event",
				zap.String("event_type", event.EventType()),
				zap.Error(err))
		}
	}
	aggregate.ClearDomainEvents()
}
