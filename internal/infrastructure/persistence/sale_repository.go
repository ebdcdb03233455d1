package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSaleRepository implements fiscal.SaleRepository using GORM
type GormSaleRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver
}

// NewGormSaleRepository creates a new GormSaleRepository
func NewGormSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

// SetOutboxEventSaver sets the outbox event saver for transactional event publishing
func (r *GormSaleRepository) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

// FindByID finds a sale by ID
func (r *GormSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*fiscal.Sale, error) {
	var model models.SaleModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForTenant finds a sale by ID for a specific tenant
func (r *GormSaleRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*fiscal.Sale, error) {
	var model models.SaleModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCode finds a sale by its code for a tenant
func (r *GormSaleRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*fiscal.Sale, error) {
	var model models.SaleModel
	if err := r.db.WithContext(ctx).
		First(&model, "code = ? AND tenant_id = ?", code, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByProviderDocumentID finds the sale holding a provider document reference
func (r *GormSaleRepository) FindByProviderDocumentID(ctx context.Context, tenantID uuid.UUID, providerDocumentID string) (*fiscal.Sale, error) {
	var model models.SaleModel
	if err := r.db.WithContext(ctx).
		First(&model, "provider_document_id = ? AND tenant_id = ?", providerDocumentID, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds all sales for a tenant with filtering
func (r *GormSaleRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter fiscal.SaleFilter) ([]fiscal.Sale, error) {
	var saleModels []models.SaleModel
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)

	// Apply filters
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.HasDocument != nil {
		if *filter.HasDocument {
			query = query.Where("provider_document_id IS NOT NULL")
		} else {
			query = query.Where("provider_document_id IS NULL")
		}
	}
	if filter.HasCreditNote != nil {
		if *filter.HasCreditNote {
			query = query.Where("credit_note_id IS NOT NULL")
		} else {
			query = query.Where("credit_note_id IS NULL")
		}
	}
	if filter.PaymentStatus != nil {
		// Derived from the payment ledger, not a stored column
		paidSum := "(SELECT COALESCE(SUM(p.amount), 0) FROM fiscal_payments p WHERE p.sale_id = fiscal_sales.id AND p.status = 'paid')"
		switch *filter.PaymentStatus {
		case fiscal.SalePaymentStatusPaid:
			query = query.Where("total_value > 0 AND " + paidSum + " >= total_value")
		case fiscal.SalePaymentStatusPartial:
			query = query.Where(paidSum + " > 0 AND " + paidSum + " < total_value")
		case fiscal.SalePaymentStatusPending:
			query = query.Where(paidSum + " = 0")
		}
	}
	if filter.SearchQuery != "" {
		pattern := "%" + filter.SearchQuery + "%"
		query = query.Where("code ILIKE ? OR client_name ILIKE ?", pattern, pattern)
	}

	// Apply sorting
	sortField := ValidateSortField(filter.OrderBy, FiscalSaleSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(sortField + " " + sortOrder)

	// Apply pagination
	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	if err := query.Find(&saleModels).Error; err != nil {
		return nil, err
	}
	sales := make([]fiscal.Sale, len(saleModels))
	for i, model := range saleModels {
		sales[i] = *model.ToDomain()
	}
	return sales, nil
}

// Save persists a sale. Pending domain events are written to the outbox
// within the same transaction.
func (r *GormSaleRepository) Save(ctx context.Context, sale *fiscal.Sale) error {
	model := models.SaleModelFromDomain(sale)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(model).Error; err != nil {
			return err
		}
		events := sale.GetDomainEvents()
		if r.outboxSaver != nil && len(events) > 0 {
			if err := r.outboxSaver.SaveEvents(ctx, tx, events...); err != nil {
				return fmt.Errorf("failed to save events to outbox: %w", err)
			}
		}
		return nil
	})
}

// AttachDocumentIfUnset writes the document reference only if the sale's
// provider document ID is still null. The WHERE clause is the only guard:
// two concurrent issuances race to this UPDATE and exactly one wins.
func (r *GormSaleRepository) AttachDocumentIfUnset(ctx context.Context, tenantID, saleID uuid.UUID, ref fiscal.DocumentReference) (bool, error) {
	updates := map[string]interface{}{
		"invoice_reference":    ref.Reference,
		"provider_document_id": ref.ProviderDocumentID,
		"provider_doc_type":    ref.DocumentType.String(),
		"updated_at":           time.Now(),
	}
	if ref.PDFURL != "" {
		updates["invoice_pdf_url"] = ref.PDFURL
	}
	result := r.db.WithContext(ctx).
		Model(&models.SaleModel{}).
		Where("id = ? AND tenant_id = ? AND provider_document_id IS NULL", saleID, tenantID).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AttachCreditNoteIfUnset writes the credit note reference only if the sale
// has an issued document and no credit note yet
func (r *GormSaleRepository) AttachCreditNoteIfUnset(ctx context.Context, tenantID, saleID uuid.UUID, creditNoteID, creditNoteReference string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.SaleModel{}).
		Where("id = ? AND tenant_id = ? AND provider_document_id IS NOT NULL AND credit_note_id IS NULL", saleID, tenantID).
		Updates(map[string]interface{}{
			"credit_note_id":        creditNoteID,
			"credit_note_reference": creditNoteReference,
			"updated_at":            time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkDocumentCancelled records the cancellation of the sale's document
func (r *GormSaleRepository) MarkDocumentCancelled(ctx context.Context, tenantID, saleID uuid.UUID, reason string) error {
	result := r.db.WithContext(ctx).
		Model(&models.SaleModel{}).
		Where("id = ? AND tenant_id = ? AND provider_document_id IS NOT NULL AND document_cancelled_at IS NULL", saleID, tenantID).
		Updates(map[string]interface{}{
			"document_cancelled_at": time.Now(),
			"cancel_reason":         reason,
			"updated_at":            time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindCreditNoteRecords returns the sale-sourced half of the merged
// credit-note read view
func (r *GormSaleRepository) FindCreditNoteRecords(ctx context.Context, tenantID uuid.UUID) ([]fiscal.CreditNoteRecord, error) {
	var saleModels []models.SaleModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND credit_note_id IS NOT NULL", tenantID).
		Order("updated_at DESC").
		Find(&saleModels).Error; err != nil {
		return nil, err
	}
	records := make([]fiscal.CreditNoteRecord, 0, len(saleModels))
	for _, model := range saleModels {
		record := fiscal.CreditNoteRecord{
			ID:           model.ID,
			SourceKind:   fiscal.DocumentSourceSale,
			CreditNoteID: *model.CreditNoteID,
			Date:         model.UpdatedAt,
			Amount:       model.TotalValue,
			ClientName:   model.ClientName,
		}
		if model.CreditNoteReference != nil {
			record.CreditNoteReference = *model.CreditNoteReference
		}
		if model.InvoiceReference != nil {
			record.OriginalDocumentReference = *model.InvoiceReference
		}
		records = append(records, record)
	}
	return records, nil
}

// FiscalSaleSortFields contains allowed sort fields for fiscal sales
var FiscalSaleSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"updated_at":  true,
	"code":        true,
	"client_name": true,
	"total_value": true,
	"status":      true,
}
