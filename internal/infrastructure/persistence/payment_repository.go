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

// GormPaymentRepository implements fiscal.PaymentRepository using GORM
type GormPaymentRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// SetOutboxEventSaver sets the outbox event saver for transactional event publishing
func (r *GormPaymentRepository) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

// FindByID finds a payment by ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*fiscal.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForTenant finds a payment by ID for a specific tenant
func (r *GormPaymentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*fiscal.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySale finds all payments against a sale, oldest first
func (r *GormPaymentRepository) FindBySale(ctx context.Context, tenantID, saleID uuid.UUID) ([]fiscal.Payment, error) {
	var paymentModels []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND sale_id = ?", tenantID, saleID).
		Order("payment_date ASC, created_at ASC").
		Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	payments := make([]fiscal.Payment, len(paymentModels))
	for i, model := range paymentModels {
		payments[i] = *model.ToDomain()
	}
	return payments, nil
}

// FindByProviderDocumentID finds the payment holding a provider document reference
func (r *GormPaymentRepository) FindByProviderDocumentID(ctx context.Context, tenantID uuid.UUID, providerDocumentID string) (*fiscal.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		First(&model, "provider_document_id = ? AND tenant_id = ?", providerDocumentID, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds all payments for a tenant with filtering
func (r *GormPaymentRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter fiscal.PaymentFilter) ([]fiscal.Payment, error) {
	var paymentModels []models.PaymentModel
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)

	// Apply filters
	if filter.SaleID != nil {
		query = query.Where("sale_id = ?", *filter.SaleID)
	}
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

	// Apply sorting
	sortField := ValidateSortField(filter.OrderBy, FiscalPaymentSortFields, "payment_date")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(sortField + " " + sortOrder)

	// Apply pagination
	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	if err := query.Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	payments := make([]fiscal.Payment, len(paymentModels))
	for i, model := range paymentModels {
		payments[i] = *model.ToDomain()
	}
	return payments, nil
}

// Save persists a payment
func (r *GormPaymentRepository) Save(ctx context.Context, payment *fiscal.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(model).Error; err != nil {
			return err
		}
		events := payment.GetDomainEvents()
		if r.outboxSaver != nil && len(events) > 0 {
			if err := r.outboxSaver.SaveEvents(ctx, tx, events...); err != nil {
				return fmt.Errorf("failed to save events to outbox: %w", err)
			}
		}
		return nil
	})
}

// Delete removes a payment. The service layer enforces the deletion
// preconditions (settings lock, attached document) before calling this.
func (r *GormPaymentRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Delete(&models.PaymentModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AttachDocumentIfUnset writes the document reference only if the payment's
// provider document ID is still null
func (r *GormPaymentRepository) AttachDocumentIfUnset(ctx context.Context, tenantID, paymentID uuid.UUID, ref fiscal.DocumentReference) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ? AND tenant_id = ? AND provider_document_id IS NULL", paymentID, tenantID).
		Updates(map[string]interface{}{
			"invoice_reference":    ref.Reference,
			"provider_document_id": ref.ProviderDocumentID,
			"provider_doc_type":    ref.DocumentType.String(),
			"updated_at":           time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AttachCreditNoteIfUnset writes the credit note reference only if the
// payment has an issued document and no credit note yet
func (r *GormPaymentRepository) AttachCreditNoteIfUnset(ctx context.Context, tenantID, paymentID uuid.UUID, creditNoteID, creditNoteReference string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ? AND tenant_id = ? AND provider_document_id IS NOT NULL AND credit_note_id IS NULL", paymentID, tenantID).
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

// MarkDocumentCancelled records the cancellation of the payment's document
func (r *GormPaymentRepository) MarkDocumentCancelled(ctx context.Context, tenantID, paymentID uuid.UUID, reason string) error {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ? AND tenant_id = ? AND provider_document_id IS NOT NULL AND document_cancelled_at IS NULL", paymentID, tenantID).
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

// SetInvoiceFileURL stores the URL of an uploaded supporting file
func (r *GormPaymentRepository) SetInvoiceFileURL(ctx context.Context, tenantID, paymentID uuid.UUID, url string) error {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ? AND tenant_id = ?", paymentID, tenantID).
		Updates(map[string]interface{}{
			"invoice_file_url": url,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindCreditNoteRecords returns the payment-sourced half of the merged
// credit-note read view
func (r *GormPaymentRepository) FindCreditNoteRecords(ctx context.Context, tenantID uuid.UUID) ([]fiscal.CreditNoteRecord, error) {
	// The client name lives on the sale, so join it into the read view
	type paymentCreditNoteRow struct {
		models.PaymentModel
		SaleClientName string
	}
	var rows []paymentCreditNoteRow
	if err := r.db.WithContext(ctx).
		Table("fiscal_payments").
		Select("fiscal_payments.*, fiscal_sales.client_name AS sale_client_name").
		Joins("LEFT JOIN fiscal_sales ON fiscal_sales.id = fiscal_payments.sale_id").
		Where("fiscal_payments.tenant_id = ? AND fiscal_payments.credit_note_id IS NOT NULL", tenantID).
		Order("fiscal_payments.updated_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]fiscal.CreditNoteRecord, 0, len(rows))
	for _, row := range rows {
		record := fiscal.CreditNoteRecord{
			ID:           row.ID,
			SourceKind:   fiscal.DocumentSourcePayment,
			CreditNoteID: *row.CreditNoteID,
			Date:         row.UpdatedAt,
			Amount:       row.Amount,
			ClientName:   row.SaleClientName,
		}
		if row.CreditNoteReference != nil {
			record.CreditNoteReference = *row.CreditNoteReference
		}
		if row.InvoiceReference != nil {
			record.OriginalDocumentReference = *row.InvoiceReference
		}
		records = append(records, record)
	}
	return records, nil
}

// FiscalPaymentSortFields contains allowed sort fields for payments
var FiscalPaymentSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"payment_date": true,
	"amount":       true,
	"status":       true,
}
