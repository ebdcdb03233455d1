package fiscal

import (
	"context"
	"fmt"

	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SyncService reconciles local records against the provider's document
// list. Sync is additive only: it fills missing references, never
// overwrites a stored one and never deletes anything. Matching relies
// solely on the external reference the engine wrote at issuance time; a
// document without one, or one that conflicts with stored state, is
// counted as not matched rather than guessed at.
type SyncService struct {
	saleRepo    fiscal.SaleRepository
	paymentRepo fiscal.PaymentRepository
	resolver    *CredentialResolver
	logger      *zap.Logger
}

// NewSyncService creates a new SyncService
func NewSyncService(
	saleRepo fiscal.SaleRepository,
	paymentRepo fiscal.PaymentRepository,
	resolver *CredentialResolver,
	logger *zap.Logger,
) *SyncService {
	return &SyncService{
		saleRepo:    saleRepo,
		paymentRepo: paymentRepo,
		resolver:    resolver,
		logger:      logger,
	}
}

// SyncInvoicesResult summarizes an invoice reconciliation run
type SyncInvoicesResult struct {
	Total      int `json:"total"`
	Matched    int `json:"matched"`
	NotMatched int `json:"not_matched"`
}

// SyncCreditNotesResult summarizes a credit note reconciliation run
type SyncCreditNotesResult struct {
	Total      int `json:"total"`
	Synced     int `json:"synced"`
	NotMatched int `json:"not_matched"`
}

// DocumentDetailsRequest fetches one provider document, optionally
// associating it with an explicitly named local record. Correlation is
// never inferred: when Sync is set, exactly one of SaleID or PaymentID
// must name the record the document belongs to.
type DocumentDetailsRequest struct {
	TenantID   uuid.UUID
	DocumentID string
	Type       fiscal.DocumentType
	Sync       bool
	SaleID     *uuid.UUID
	PaymentID  *uuid.UUID
}

// SyncInvoices walks the provider's invoices, invoice-receipts and
// receipts and fills missing local references. Per-document failures are
// logged and counted as not matched; the run continues.
func (s *SyncService) SyncInvoices(ctx context.Context, tenantID uuid.UUID) (*SyncInvoicesResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sync", "sync_invoices")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String())

	resolved, err := s.resolver.Resolve(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	docs, err := resolved.Provider.ListDocuments(ctx, fiscal.ListDocumentsRequest{
		Types: []fiscal.DocumentType{
			fiscal.DocumentTypeInvoice,
			fiscal.DocumentTypeInvoiceReceipt,
			fiscal.DocumentTypeReceipt,
		},
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &SyncInvoicesResult{Total: len(docs)}
	for _, doc := range docs {
		if s.matchDocument(ctx, tenantID, doc) {
			result.Matched++
		} else {
			result.NotMatched++
		}
	}

	telemetry.SetAttributes(span,
		"total", result.Total,
		"matched", result.Matched,
		"not_matched", result.NotMatched,
	)
	return result, nil
}

// SyncCreditNotes walks the provider's credit notes and attaches any
// missing credit note references to the sale or payment they reverse.
func (s *SyncService) SyncCreditNotes(ctx context.Context, tenantID uuid.UUID) (*SyncCreditNotesResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sync", "sync_credit_notes")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String())

	resolved, err := s.resolver.Resolve(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	docs, err := resolved.Provider.ListDocuments(ctx, fiscal.ListDocumentsRequest{
		Types: []fiscal.DocumentType{fiscal.DocumentTypeCreditNote},
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &SyncCreditNotesResult{Total: len(docs)}
	for _, doc := range docs {
		if s.matchCreditNote(ctx, tenantID, doc) {
			result.Synced++
		} else {
			result.NotMatched++
		}
	}

	telemetry.SetAttributes(span,
		"total", result.Total,
		"synced", result.Synced,
		"not_matched", result.NotMatched,
	)
	return result, nil
}

// GetDocumentDetails fetches the full remote representation of one
// document. With Sync set, the document reference is attached to the
// explicitly named local record.
func (s *SyncService) GetDocumentDetails(ctx context.Context, req DocumentDetailsRequest) (*fiscal.ProviderDocumentDetail, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sync", "get_document_details")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrDocumentID, req.DocumentID,
		telemetry.SpanAttrDocumentType, req.Type.String(),
	)

	if req.DocumentID == "" {
		err := shared.NewDomainError("INVALID_DOCUMENT", "Provider document ID is required")
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !req.Type.IsValid() {
		telemetry.RecordError(span, fiscal.ErrUnknownDocumentType)
		return nil, fiscal.ErrUnknownDocumentType
	}
	if req.Sync && (req.SaleID == nil) == (req.PaymentID == nil) {
		err := shared.NewDomainError("INVALID_CORRELATION", "Sync requires exactly one of sale ID or payment ID")
		telemetry.RecordError(span, err)
		return nil, err
	}

	resolved, err := s.resolver.Resolve(ctx, req.TenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	detail, err := resolved.Provider.GetDocument(ctx, req.DocumentID, req.Type)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if req.Sync {
		ref := fiscal.DocumentReference{
			Reference:          detail.Reference,
			ProviderDocumentID: detail.ID,
			DocumentType:       detail.Type,
			PDFURL:             detail.PDFURL,
		}
		var written bool
		if req.SaleID != nil {
			written, err = s.saleRepo.AttachDocumentIfUnset(ctx, req.TenantID, *req.SaleID, ref)
		} else {
			written, err = s.paymentRepo.AttachDocumentIfUnset(ctx, req.TenantID, *req.PaymentID, ref)
		}
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to persist document reference: %w", err)
		}
		if !written {
			telemetry.RecordError(span, fiscal.ErrAlreadyIssued)
			return nil, fiscal.ErrAlreadyIssued
		}
	}
	return detail, nil
}

// matchDocument associates one provider document with its local record.
// Returns true only when the document is already correctly referenced or
// a missing reference was filled.
func (s *SyncService) matchDocument(ctx context.Context, tenantID uuid.UUID, doc fiscal.ProviderDocument) bool {
	localID, ok := s.parseExternalReference(doc)
	if !ok {
		return false
	}

	ref := fiscal.DocumentReference{
		Reference:          doc.Reference,
		ProviderDocumentID: doc.ID,
		DocumentType:       doc.Type,
	}

	switch doc.Type {
	case fiscal.DocumentTypeInvoice:
		sale, err := s.saleRepo.FindByIDForTenant(ctx, tenantID, localID)
		if err != nil {
			s.logger.Warn("Sync lookup failed", zap.String("document_id", doc.ID), zap.Error(err))
			return false
		}
		if sale == nil {
			return false
		}
		if sale.HasDocument() {
			// Never overwrite: a stored reference to a different remote
			// document is a conflict for a human to resolve.
			return *sale.ProviderDocumentID == doc.ID
		}
		written, err := s.saleRepo.AttachDocumentIfUnset(ctx, tenantID, localID, ref)
		if err != nil {
			s.logger.Warn("Sync write failed", zap.String("document_id", doc.ID), zap.Error(err))
			return false
		}
		return written
	case fiscal.DocumentTypeInvoiceReceipt, fiscal.DocumentTypeReceipt:
		payment, err := s.paymentRepo.FindByIDForTenant(ctx, tenantID, localID)
		if err != nil {
			s.logger.Warn("Sync lookup failed", zap.String("document_id", doc.ID), zap.Error(err))
			return false
		}
		if payment == nil {
			return false
		}
		if payment.HasDocument() {
			return *payment.ProviderDocumentID == doc.ID
		}
		written, err := s.paymentRepo.AttachDocumentIfUnset(ctx, tenantID, localID, ref)
		if err != nil {
			s.logger.Warn("Sync write failed", zap.String("document_id", doc.ID), zap.Error(err))
			return false
		}
		return written
	}
	return false
}

// matchCreditNote associates one provider credit note with the sale or
// payment it reverses. The external reference names the reversed record;
// whichever of the two lookups finds it wins.
func (s *SyncService) matchCreditNote(ctx context.Context, tenantID uuid.UUID, doc fiscal.ProviderDocument) bool {
	localID, ok := s.parseExternalReference(doc)
	if !ok {
		return false
	}

	sale, err := s.saleRepo.FindByIDForTenant(ctx, tenantID, localID)
	if err != nil {
		s.logger.Warn("Sync lookup failed", zap.String("document_id", doc.ID), zap.Error(err))
		return false
	}
	if sale != nil {
		if sale.HasCreditNote() {
			return *sale.CreditNoteID == doc.ID
		}
		if !sale.HasDocument() {
			return false
		}
		written, err := s.saleRepo.AttachCreditNoteIfUnset(ctx, tenantID, localID, doc.ID, doc.Reference)
		if err != nil {
			s.logger.Warn("Sync write failed", zap.String("document_id", doc.ID), zap.Error(err))
			return false
		}
		return written
	}

	payment, err := s.paymentRepo.FindByIDForTenant(ctx, tenantID, localID)
	if err != nil {
		s.logger.Warn("Sync lookup failed", zap.String("document_id", doc.ID), zap.Error(err))
		return false
	}
	if payment == nil {
		return false
	}
	if payment.HasCreditNote() {
		return *payment.CreditNoteID == doc.ID
	}
	if !payment.HasDocument() {
		return false
	}
	written, err := s.paymentRepo.AttachCreditNoteIfUnset(ctx, tenantID, localID, doc.ID, doc.Reference)
	if err != nil {
		s.logger.Warn("Sync write failed", zap.String("document_id", doc.ID), zap.Error(err))
		return false
	}
	return written
}

// parseExternalReference extracts the local record ID a remote document
// claims to belong to. Documents issued outside the engine carry no
// external reference and are never matched.
func (s *SyncService) parseExternalReference(doc fiscal.ProviderDocument) (uuid.UUID, bool) {
	if doc.ExternalReference == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(doc.ExternalReference)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
