package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreditNoteCache caches the merged credit-note read view per tenant.
// Invalidation happens through the event subscriber in the cache package;
// the service only reads and fills.
type CreditNoteCache interface {
	Get(ctx context.Context, tenantID uuid.UUID) ([]fiscal.CreditNoteRecord, bool, error)
	Set(ctx context.Context, tenantID uuid.UUID, records []fiscal.CreditNoteRecord) error
	Invalidate(ctx context.Context, tenantID uuid.UUID) error
}

// CreditNoteService issues credit notes against already-issued documents
// and serves the merged credit-note view across sales and payments.
type CreditNoteService struct {
	saleRepo    fiscal.SaleRepository
	paymentRepo fiscal.PaymentRepository
	resolver    *CredentialResolver
	eventBus    shared.EventPublisher
	cache       CreditNoteCache
	logger      *zap.Logger
}

// NewCreditNoteService creates a new CreditNoteService
func NewCreditNoteService(
	saleRepo fiscal.SaleRepository,
	paymentRepo fiscal.PaymentRepository,
	resolver *CredentialResolver,
	eventBus shared.EventPublisher,
	cache CreditNoteCache,
	logger *zap.Logger,
) *CreditNoteService {
	return &CreditNoteService{
		saleRepo:    saleRepo,
		paymentRepo: paymentRepo,
		resolver:    resolver,
		eventBus:    eventBus,
		cache:       cache,
		logger:      logger,
	}
}

// CreateCreditNoteRequest represents a request to issue a credit note
// against the document of a sale or a payment
type CreateCreditNoteRequest struct {
	TenantID uuid.UUID
	Source   fiscal.DocumentSource
	Reason   string
}

// CreditNoteResult carries the provider-assigned identifiers of a freshly
// issued credit note
type CreditNoteResult struct {
	CreditNoteID        string `json:"credit_note_id"`
	CreditNoteReference string `json:"credit_note_reference"`
	PDFURL              string `json:"pdf_url"`
}

// CreateCreditNote issues a credit note reversing the document of a sale
// or a payment. Preconditions are checked before any provider call: the
// source must carry an issued document, and no credit note may exist yet.
func (s *CreditNoteService) CreateCreditNote(ctx context.Context, req CreateCreditNoteRequest) (*CreditNoteResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credit_note", "create_credit_note")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		"source_kind", req.Source.Kind().String(),
	)

	if err := req.Source.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if req.Reason == "" {
		err := shared.NewDomainError("INVALID_REASON", "Credit note reason is required")
		telemetry.RecordError(span, err)
		return nil, err
	}

	src, err := s.loadSource(ctx, req.TenantID, req.Source)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !src.hasDocument {
		telemetry.RecordError(span, fiscal.ErrNoDocumentIssued)
		return nil, fiscal.ErrNoDocumentIssued
	}
	if src.hasCreditNote {
		telemetry.RecordError(span, fiscal.ErrCreditNoteExists)
		return nil, fiscal.ErrCreditNoteExists
	}
	if !src.state.CanReverse() {
		err := shared.NewDomainError("INVALID_STATE", "Only an issued document can be reversed")
		telemetry.RecordError(span, err)
		return nil, err
	}

	resolved, err := s.resolver.Resolve(ctx, req.TenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	issueReq := fiscal.IssueDocumentRequest{
		Type:               fiscal.DocumentTypeCreditNote,
		Client:             src.client,
		Items:              src.items(resolved.Settings.TaxRate),
		Tax:                resolved.Settings.TaxSettings(),
		Date:               time.Now(),
		ExternalReference:  req.Source.ID().String(),
		OriginalDocumentID: src.documentID,
		Reason:             req.Reason,
	}
	if err := issueReq.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	issued, err := resolved.Provider.Issue(ctx, issueReq)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	written, err := s.attachCreditNote(ctx, req.TenantID, req.Source, issued.ID, issued.Reference)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to persist credit note reference: %w", err)
	}
	if !written {
		s.logger.Warn("Concurrent credit note detected, provider document left unreferenced",
			zap.String("source_id", req.Source.ID().String()),
			zap.String("credit_note_id", issued.ID))
		telemetry.RecordError(span, fiscal.ErrCreditNoteExists)
		return nil, fiscal.ErrCreditNoteExists
	}

	s.publishCreditNoteIssued(ctx, req.TenantID, req.Source, issued.ID, issued.Reference)
	telemetry.SetAttribute(span, telemetry.SpanAttrDocumentID, issued.ID)

	return &CreditNoteResult{
		CreditNoteID:        issued.ID,
		CreditNoteReference: issued.Reference,
		PDFURL:              issued.PDFURL,
	}, nil
}

// ListCreditNotes returns the merged credit-note view for a tenant:
// sale-sourced and payment-sourced credit notes in one list, newest
// first. The view is cached; mutations invalidate through domain events.
func (s *CreditNoteService) ListCreditNotes(ctx context.Context, tenantID uuid.UUID) ([]fiscal.CreditNoteRecord, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credit_note", "list_credit_notes")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String())

	if s.cache != nil {
		records, found, err := s.cache.Get(ctx, tenantID)
		if err != nil {
			s.logger.Warn("Credit note cache read failed", zap.Error(err))
		} else if found {
			return records, nil
		}
	}

	saleRecords, err := s.saleRepo.FindCreditNoteRecords(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to query sale credit notes: %w", err)
	}
	paymentRecords, err := s.paymentRepo.FindCreditNoteRecords(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to query payment credit notes: %w", err)
	}

	merged := fiscal.MergeCreditNoteRecords(saleRecords, paymentRecords)

	if s.cache != nil {
		if err := s.cache.Set(ctx, tenantID, merged); err != nil {
			s.logger.Warn("Credit note cache write failed", zap.Error(err))
		}
	}
	return merged, nil
}

// creditNoteSource is the source-independent view of the entity being
// reversed
type creditNoteSource struct {
	hasDocument   bool
	hasCreditNote bool
	state         fiscal.DocumentState
	documentID    string
	client        fiscal.ClientSnapshot
	description   string
	amount        decimal.Decimal
}

func (c creditNoteSource) items(taxRate decimal.Decimal) []fiscal.DocumentItem {
	return []fiscal.DocumentItem{{
		Description: c.description,
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   c.amount,
		TaxRate:     taxRate,
	}}
}

func (s *CreditNoteService) loadSource(ctx context.Context, tenantID uuid.UUID, source fiscal.DocumentSource) (*creditNoteSource, error) {
	switch source.Kind() {
	case fiscal.DocumentSourceSale:
		sale, err := s.saleRepo.FindByIDForTenant(ctx, tenantID, source.ID())
		if err != nil {
			return nil, fmt.Errorf("failed to get sale: %w", err)
		}
		if sale == nil {
			return nil, shared.NewDomainError("SALE_NOT_FOUND", "Sale not found")
		}
		src := &creditNoteSource{
			hasDocument:   sale.HasDocument(),
			hasCreditNote: sale.HasCreditNote(),
			state:         sale.State(),
			client:        clientSnapshotFromSale(sale),
			description:   fmt.Sprintf("Credit note for sale %s", sale.Code),
			amount:        sale.TotalValue,
		}
		if sale.HasDocument() {
			src.documentID = *sale.ProviderDocumentID
		}
		return src, nil
	case fiscal.DocumentSourcePayment:
		payment, err := s.paymentRepo.FindByIDForTenant(ctx, tenantID, source.ID())
		if err != nil {
			return nil, fmt.Errorf("failed to get payment: %w", err)
		}
		if payment == nil {
			return nil, shared.NewDomainError("PAYMENT_NOT_FOUND", "Payment not found")
		}
		sale, err := s.saleRepo.FindByIDForTenant(ctx, tenantID, payment.SaleID)
		if err != nil {
			return nil, fmt.Errorf("failed to get sale: %w", err)
		}
		src := &creditNoteSource{
			hasDocument:   payment.HasDocument(),
			hasCreditNote: payment.HasCreditNote(),
			state:         payment.State(),
			description:   "Credit note for payment",
			amount:        payment.Amount,
		}
		if sale != nil {
			src.client = clientSnapshotFromSale(sale)
			src.description = fmt.Sprintf("Credit note for payment on sale %s", sale.Code)
		}
		if payment.HasDocument() {
			src.documentID = *payment.ProviderDocumentID
		}
		return src, nil
	}
	return nil, shared.NewDomainError("INVALID_SOURCE", "Credit note source must be a sale or a payment")
}

func (s *CreditNoteService) attachCreditNote(ctx context.Context, tenantID uuid.UUID, source fiscal.DocumentSource, creditNoteID, creditNoteReference string) (bool, error) {
	switch source.Kind() {
	case fiscal.DocumentSourceSale:
		return s.saleRepo.AttachCreditNoteIfUnset(ctx, tenantID, source.ID(), creditNoteID, creditNoteReference)
	case fiscal.DocumentSourcePayment:
		return s.paymentRepo.AttachCreditNoteIfUnset(ctx, tenantID, source.ID(), creditNoteID, creditNoteReference)
	}
	return false, shared.NewDomainError("INVALID_SOURCE", "Credit note source must be a sale or a payment")
}

func (s *CreditNoteService) publishCreditNoteIssued(ctx context.Context, tenantID uuid.UUID, source fiscal.DocumentSource, creditNoteID, creditNoteReference string) {
	if s.eventBus == nil {
		return
	}
	var event shared.DomainEvent
	switch source.Kind() {
	case fiscal.DocumentSourceSale:
		sale, err := s.saleRepo.FindByIDForTenant(ctx, tenantID, source.ID())
		if err != nil || sale == nil {
			return
		}
		event = fiscal.NewSaleCreditNoteIssuedEvent(sale, creditNoteID, creditNoteReference)
	case fiscal.DocumentSourcePayment:
		payment, err := s.paymentRepo.FindByIDForTenant(ctx, tenantID, source.ID())
		if err != nil || payment == nil {
			return
		}
		event = fiscal.NewPaymentCreditNoteIssuedEvent(payment, creditNoteID, creditNoteReference)
	}
	if event == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish credit note event", zap.Error(err))
	}
}
