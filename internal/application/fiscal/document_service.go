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

// DocumentService issues and cancels fiscal documents through the
// external invoicing provider. Issuance is a compare-and-set: the
// precondition (no document attached yet) is checked before the provider
// call, and the provider's answer is persisted with a conditional update
// that refuses to overwrite a reference written concurrently.
type DocumentService struct {
	saleRepo    fiscal.SaleRepository
	paymentRepo fiscal.PaymentRepository
	resolver    *CredentialResolver
	eventBus    shared.EventPublisher
	logger      *zap.Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	saleRepo fiscal.SaleRepository,
	paymentRepo fiscal.PaymentRepository,
	resolver *CredentialResolver,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *DocumentService {
	return &DocumentService{
		saleRepo:    saleRepo,
		paymentRepo: paymentRepo,
		resolver:    resolver,
		eventBus:    eventBus,
		logger:      logger,
	}
}

// IssueDocumentResult carries the provider-assigned identifiers of a
// freshly issued document
type IssueDocumentResult struct {
	Reference          string              `json:"reference"`
	ProviderDocumentID string              `json:"provider_document_id"`
	DocumentType       fiscal.DocumentType `json:"document_type"`
	PDFURL             string              `json:"pdf_url"`
}

// IssueInvoiceRequest represents a request to issue a sale-level invoice
type IssueInvoiceRequest struct {
	TenantID     uuid.UUID
	SaleID       uuid.UUID
	Observations string
}

// IssuePaymentDocumentRequest represents a request to issue a
// payment-level document (an invoice-receipt or a receipt)
type IssuePaymentDocumentRequest struct {
	TenantID     uuid.UUID
	PaymentID    uuid.UUID
	Observations string
}

// CancelDocumentCommand represents a request to cancel an issued document
type CancelDocumentCommand struct {
	TenantID uuid.UUID
	Source   fiscal.DocumentSource
	Reason   string
}

// IssueInvoice issues an invoice for a sale. Fails with ErrAlreadyIssued
// before any provider call when the sale already carries a document.
func (s *DocumentService) IssueInvoice(ctx context.Context, req IssueInvoiceRequest) (*IssueDocumentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "issue_invoice")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrSaleID, req.SaleID.String(),
		telemetry.SpanAttrDocumentType, fiscal.DocumentTypeInvoice.String(),
	)

	sale, err := s.loadSale(ctx, req.TenantID, req.SaleID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if sale.HasDocument() {
		telemetry.RecordError(span, fiscal.ErrAlreadyIssued)
		return nil, fiscal.ErrAlreadyIssued
	}

	resolved, err := s.resolver.Resolve(ctx, req.TenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	issueReq := fiscal.IssueDocumentRequest{
		Type:              fiscal.DocumentTypeInvoice,
		Client:            clientSnapshotFromSale(sale),
		Items:             saleItems(sale, resolved.Settings),
		Tax:               resolved.Settings.TaxSettings(),
		Date:              time.Now(),
		ExternalReference: sale.ID.String(),
		Observations:      req.Observations,
	}
	issued, err := s.issue(ctx, resolved.Provider, issueReq)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	ref := fiscal.DocumentReference{
		Reference:          issued.Reference,
		ProviderDocumentID: issued.ID,
		DocumentType:       issued.Type,
		PDFURL:             issued.PDFURL,
	}
	written, err := s.saleRepo.AttachDocumentIfUnset(ctx, req.TenantID, sale.ID, ref)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to persist document reference: %w", err)
	}
	if !written {
		// A concurrent issuance won the race. The remote document this
		// call created is now unreferenced; surface the conflict so a
		// human resolves it at the provider.
		s.logger.Warn("Concurrent issuance detected, provider document left unreferenced",
			zap.String("sale_id", sale.ID.String()),
			zap.String("provider_document_id", issued.ID))
		telemetry.RecordError(span, fiscal.ErrAlreadyIssued)
		return nil, fiscal.ErrAlreadyIssued
	}

	if err := sale.AttachDocument(ref); err == nil {
		s.publishEvents(ctx, sale)
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrDocumentID, issued.ID)
	return resultFromIssued(issued), nil
}

// IssueInvoiceReceipt issues a combined invoice-receipt for a payment:
// one document that both invoices and acknowledges the amount.
func (s *DocumentService) IssueInvoiceReceipt(ctx context.Context, req IssuePaymentDocumentRequest) (*IssueDocumentResult, error) {
	return s.issuePaymentDocument(ctx, req, fiscal.DocumentTypeInvoiceReceipt)
}

// GenerateReceipt issues a receipt for a payment against the sale's
// already-issued invoice
func (s *DocumentService) GenerateReceipt(ctx context.Context, req IssuePaymentDocumentRequest) (*IssueDocumentResult, error) {
	return s.issuePaymentDocument(ctx, req, fiscal.DocumentTypeReceipt)
}

func (s *DocumentService) issuePaymentDocument(ctx context.Context, req IssuePaymentDocumentRequest, docType fiscal.DocumentType) (*IssueDocumentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "issue_"+docType.String())
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrPaymentID, req.PaymentID.String(),
		telemetry.SpanAttrDocumentType, docType.String(),
	)

	payment, err := s.loadPayment(ctx, req.TenantID, req.PaymentID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if payment.HasDocument() {
		telemetry.RecordError(span, fiscal.ErrAlreadyIssued)
		return nil, fiscal.ErrAlreadyIssued
	}

	sale, err := s.loadSale(ctx, req.TenantID, payment.SaleID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	// A receipt acknowledges a payment against an existing invoice; it
	// cannot stand alone.
	var originalDocumentID string
	if docType == fiscal.DocumentTypeReceipt {
		if !sale.HasDocument() {
			telemetry.RecordError(span, fiscal.ErrNoDocumentIssued)
			return nil, fiscal.ErrNoDocumentIssued
		}
		originalDocumentID = *sale.ProviderDocumentID
	}

	resolved, err := s.resolver.Resolve(ctx, req.TenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	issueReq := fiscal.IssueDocumentRequest{
		Type:   docType,
		Client: clientSnapshotFromSale(sale),
		Items: []fiscal.DocumentItem{{
			Description: fmt.Sprintf("Payment on sale %s", sale.Code),
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   payment.Amount,
			TaxRate:     resolved.Settings.TaxRate,
		}},
		Tax:                resolved.Settings.TaxSettings(),
		Date:               payment.PaymentDate,
		ExternalReference:  payment.ID.String(),
		Observations:       req.Observations,
		OriginalDocumentID: originalDocumentID,
	}
	issued, err := s.issue(ctx, resolved.Provider, issueReq)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	ref := fiscal.DocumentReference{
		Reference:          issued.Reference,
		ProviderDocumentID: issued.ID,
		DocumentType:       issued.Type,
		PDFURL:             issued.PDFURL,
	}
	written, err := s.paymentRepo.AttachDocumentIfUnset(ctx, req.TenantID, payment.ID, ref)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to persist document reference: %w", err)
	}
	if !written {
		s.logger.Warn("Concurrent issuance detected, provider document left unreferenced",
			zap.String("payment_id", payment.ID.String()),
			zap.String("provider_document_id", issued.ID))
		telemetry.RecordError(span, fiscal.ErrAlreadyIssued)
		return nil, fiscal.ErrAlreadyIssued
	}

	if err := payment.AttachDocument(ref); err == nil {
		s.publishEvents(ctx, payment)
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrDocumentID, issued.ID)
	return resultFromIssued(issued), nil
}

// CancelDocument cancels the issued document of a sale or a payment at
// the provider, then records the cancellation locally. Cancellation is
// terminal: a cancelled document can never be reversed afterwards.
func (s *DocumentService) CancelDocument(ctx context.Context, cmd CancelDocumentCommand) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "cancel_document")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, cmd.TenantID.String(),
		"source_kind", cmd.Source.Kind().String(),
	)

	if err := cmd.Source.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if cmd.Reason == "" {
		err := shared.NewDomainError("INVALID_REASON", "Cancel reason is required")
		telemetry.RecordError(span, err)
		return err
	}

	var (
		documentID string
		docType    fiscal.DocumentType
		state      fiscal.DocumentState
	)
	switch cmd.Source.Kind() {
	case fiscal.DocumentSourceSale:
		sale, err := s.loadSale(ctx, cmd.TenantID, cmd.Source.ID())
		if err != nil {
			telemetry.RecordError(span, err)
			return err
		}
		if !sale.HasDocument() {
			telemetry.RecordError(span, fiscal.ErrNoDocumentIssued)
			return fiscal.ErrNoDocumentIssued
		}
		documentID, docType, state = *sale.ProviderDocumentID, *sale.ProviderDocType, sale.State()
	case fiscal.DocumentSourcePayment:
		payment, err := s.loadPayment(ctx, cmd.TenantID, cmd.Source.ID())
		if err != nil {
			telemetry.RecordError(span, err)
			return err
		}
		if !payment.HasDocument() {
			telemetry.RecordError(span, fiscal.ErrNoDocumentIssued)
			return fiscal.ErrNoDocumentIssued
		}
		documentID, docType, state = *payment.ProviderDocumentID, *payment.ProviderDocType, payment.State()
	}

	if !state.CanCancel() {
		err := shared.NewDomainError("INVALID_STATE", "Only an issued document can be cancelled")
		telemetry.RecordError(span, err)
		return err
	}

	resolved, err := s.resolver.Resolve(ctx, cmd.TenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	cancelReq := fiscal.CancelDocumentRequest{
		ProviderDocumentID: documentID,
		Type:               docType,
		Reason:             cmd.Reason,
	}
	if err := cancelReq.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if err := resolved.Provider.Cancel(ctx, cancelReq); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	switch cmd.Source.Kind() {
	case fiscal.DocumentSourceSale:
		err = s.saleRepo.MarkDocumentCancelled(ctx, cmd.TenantID, cmd.Source.ID(), cmd.Reason)
	case fiscal.DocumentSourcePayment:
		err = s.paymentRepo.MarkDocumentCancelled(ctx, cmd.TenantID, cmd.Source.ID(), cmd.Reason)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to record cancellation: %w", err)
	}

	s.publishCancellation(ctx, cmd)
	telemetry.SetAttribute(span, telemetry.SpanAttrDocumentID, documentID)
	return nil
}

// issue validates the request and forwards it to the provider. Validation
// failures never reach the network.
func (s *DocumentService) issue(ctx context.Context, provider fiscal.InvoicingProvider, req fiscal.IssueDocumentRequest) (*fiscal.IssuedDocument, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return provider.Issue(ctx, req)
}

func (s *DocumentService) loadSale(ctx context.Context, tenantID, saleID uuid.UUID) (*fiscal.Sale, error) {
	sale, err := s.saleRepo.FindByIDForTenant(ctx, tenantID, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	if sale == nil {
		return nil, shared.NewDomainError("SALE_NOT_FOUND", "Sale not found")
	}
	return sale, nil
}

func (s *DocumentService) loadPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (*fiscal.Payment, error) {
	payment, err := s.paymentRepo.FindByIDForTenant(ctx, tenantID, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if payment == nil {
		return nil, shared.NewDomainError("PAYMENT_NOT_FOUND", "Payment not found")
	}
	return payment, nil
}

func (s *DocumentService) publishCancellation(ctx context.Context, cmd CancelDocumentCommand) {
	if s.eventBus == nil {
		return
	}
	var event shared.DomainEvent
	switch cmd.Source.Kind() {
	case fiscal.DocumentSourceSale:
		sale, err := s.saleRepo.FindByIDForTenant(ctx, cmd.TenantID, cmd.Source.ID())
		if err != nil || sale == nil {
			return
		}
		event = fiscal.NewSaleDocumentCancelledEvent(sale, cmd.Reason)
	case fiscal.DocumentSourcePayment:
		payment, err := s.paymentRepo.FindByIDForTenant(ctx, cmd.TenantID, cmd.Source.ID())
		if err != nil || payment == nil {
			return
		}
		event = fiscal.NewPaymentDocumentCancelledEvent(payment, cmd.Reason)
	}
	if event == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish cancellation event", zap.Error(err))
	}
}

func (s *DocumentService) publishEvents(ctx context.Context, aggregate interface {
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

// clientSnapshotFromSale copies the sale's client data into the immutable
// snapshot embedded in the document
func clientSnapshotFromSale(sale *fiscal.Sale) fiscal.ClientSnapshot {
	return fiscal.ClientSnapshot{
		Name:  sale.ClientName,
		TaxID: sale.ClientTaxID,
	}
}

// saleItems renders the sale as a single document line carrying its total
func saleItems(sale *fiscal.Sale, settings *fiscal.OrganizationSettings) []fiscal.DocumentItem {
	return []fiscal.DocumentItem{{
		Description: fmt.Sprintf("Sale %s", sale.Code),
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   sale.TotalValue,
		TaxRate:     settings.TaxRate,
	}}
}

func resultFromIssued(issued *fiscal.IssuedDocument) *IssueDocumentResult {
	return &IssueDocumentResult{
		Reference:          issued.Reference,
		ProviderDocumentID: issued.ID,
		DocumentType:       issued.Type,
		PDFURL:             issued.PDFURL,
	}
}
