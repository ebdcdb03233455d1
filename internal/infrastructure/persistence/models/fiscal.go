package models

import (
	"time"

	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleModel is the persistence model for the fiscal view of a sale.
// The document columns are nullable on purpose: a null provider_document_id
// is the compare-and-set target for issuance.
type SaleModel struct {
	TenantAggregateModel
	Code                string            `gorm:"type:varchar(50);not null;uniqueIndex:idx_sale_tenant_code,priority:2"`
	ClientName          string            `gorm:"type:varchar(200)"`
	ClientTaxID         string            `gorm:"type:varchar(50)"`
	TotalValue          decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	Status              fiscal.SaleStatus `gorm:"type:varchar(20);not null;default:'open';index"`
	InvoiceReference    *string           `gorm:"type:varchar(100)"`
	ProviderDocumentID  *string           `gorm:"type:varchar(50);index"`
	ProviderDocType     *string           `gorm:"type:varchar(30)"`
	CreditNoteID        *string           `gorm:"type:varchar(50)"`
	CreditNoteReference *string           `gorm:"type:varchar(100)"`
	DocumentCancelledAt *time.Time
	CancelReason        string `gorm:"type:varchar(500)"`
	InvoicePDFURL       string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "fiscal_sales"
}

// ToDomain converts the persistence model to a domain Sale entity.
func (m *SaleModel) ToDomain() *fiscal.Sale {
	s := &fiscal.Sale{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{
					ID:        m.ID,
					CreatedAt: m.CreatedAt,
					UpdatedAt: m.UpdatedAt,
				},
				Version: m.Version,
			},
			TenantID:  m.TenantID,
			CreatedBy: m.CreatedBy,
		},
		Code:          m.Code,
		ClientName:    m.ClientName,
		ClientTaxID:   m.ClientTaxID,
		TotalValue:    m.TotalValue,
		Status:        m.Status,
		InvoicePDFURL: m.InvoicePDFURL,
	}
	s.InvoiceReference = m.InvoiceReference
	s.ProviderDocumentID = m.ProviderDocumentID
	s.ProviderDocType = docTypePointerToDomain(m.ProviderDocType)
	s.CreditNoteID = m.CreditNoteID
	s.CreditNoteReference = m.CreditNoteReference
	s.DocumentCancelledAt = m.DocumentCancelledAt
	s.CancelReason = m.CancelReason
	return s
}

// FromDomain populates the persistence model from a domain Sale entity.
func (m *SaleModel) FromDomain(s *fiscal.Sale) {
	m.FromDomainTenantAggregateRoot(s.TenantAggregateRoot)
	m.Code = s.Code
	m.ClientName = s.ClientName
	m.ClientTaxID = s.ClientTaxID
	m.TotalValue = s.TotalValue
	m.Status = s.Status
	m.InvoiceReference = s.InvoiceReference
	m.ProviderDocumentID = s.ProviderDocumentID
	m.ProviderDocType = docTypePointerToColumn(s.ProviderDocType)
	m.CreditNoteID = s.CreditNoteID
	m.CreditNoteReference = s.CreditNoteReference
	m.DocumentCancelledAt = s.DocumentCancelledAt
	m.CancelReason = s.CancelReason
	m.InvoicePDFURL = s.InvoicePDFURL
}

// SaleModelFromDomain creates a new persistence model from a domain Sale.
func SaleModelFromDomain(s *fiscal.Sale) *SaleModel {
	m := &SaleModel{}
	m.FromDomain(s)
	return m
}

// PaymentModel is the persistence model for the Payment aggregate root.
type PaymentModel struct {
	TenantAggregateModel
	SaleID              uuid.UUID            `gorm:"type:uuid;not null;index"`
	Amount              decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	PaymentDate         time.Time            `gorm:"not null;index"`
	Method              fiscal.PaymentMethod `gorm:"type:varchar(30)"`
	Status              fiscal.PaymentStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	InvoiceReference    *string              `gorm:"type:varchar(100)"`
	ProviderDocumentID  *string              `gorm:"type:varchar(50);index"`
	ProviderDocType     *string              `gorm:"type:varchar(30)"`
	CreditNoteID        *string              `gorm:"type:varchar(50)"`
	CreditNoteReference *string              `gorm:"type:varchar(100)"`
	DocumentCancelledAt *time.Time
	CancelReason        string `gorm:"type:varchar(500)"`
	InvoiceFileURL      string `gorm:"type:text"`
	Notes               string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "fiscal_payments"
}

// ToDomain converts the persistence model to a domain Payment entity.
func (m *PaymentModel) ToDomain() *fiscal.Payment {
	p := &fiscal.Payment{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{
					ID:        m.ID,
					CreatedAt: m.CreatedAt,
					UpdatedAt: m.UpdatedAt,
				},
				Version: m.Version,
			},
			TenantID:  m.TenantID,
			CreatedBy: m.CreatedBy,
		},
		SaleID:         m.SaleID,
		Amount:         m.Amount,
		PaymentDate:    m.PaymentDate,
		Method:         m.Method,
		Status:         m.Status,
		InvoiceFileURL: m.InvoiceFileURL,
		Notes:          m.Notes,
	}
	p.InvoiceReference = m.InvoiceReference
	p.ProviderDocumentID = m.ProviderDocumentID
	p.ProviderDocType = docTypePointerToDomain(m.ProviderDocType)
	p.CreditNoteID = m.CreditNoteID
	p.CreditNoteReference = m.CreditNoteReference
	p.DocumentCancelledAt = m.DocumentCancelledAt
	p.CancelReason = m.CancelReason
	return p
}

// FromDomain populates the persistence model from a domain Payment entity.
func (m *PaymentModel) FromDomain(p *fiscal.Payment) {
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	m.SaleID = p.SaleID
	m.Amount = p.Amount
	m.PaymentDate = p.PaymentDate
	m.Method = p.Method
	m.Status = p.Status
	m.InvoiceReference = p.InvoiceReference
	m.ProviderDocumentID = p.ProviderDocumentID
	m.ProviderDocType = docTypePointerToColumn(p.ProviderDocType)
	m.CreditNoteID = p.CreditNoteID
	m.CreditNoteReference = p.CreditNoteReference
	m.DocumentCancelledAt = p.DocumentCancelledAt
	m.CancelReason = p.CancelReason
	m.InvoiceFileURL = p.InvoiceFileURL
	m.Notes = p.Notes
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *fiscal.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// OrganizationSettingsModel is the persistence model for per-organization
// fiscal settings. One row per tenant.
type OrganizationSettingsModel struct {
	TenantAggregateModel
	TaxRate                decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	TaxExemptionReason     string          `gorm:"type:varchar(10)"`
	ProviderAccountName    string          `gorm:"type:varchar(100)"`
	ProviderAPIKey         string          `gorm:"type:varchar(200)"`
	ProviderBaseURL        string          `gorm:"type:varchar(200)"`
	PreventPaymentDeletion bool            `gorm:"not null;default:false"`
	LockDeliveredSales     bool            `gorm:"not null;default:false"`
	LockFulfilledSales     bool            `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (OrganizationSettingsModel) TableName() string {
	return "fiscal_organization_settings"
}

// ToDomain converts the persistence model to a domain OrganizationSettings entity.
func (m *OrganizationSettingsModel) ToDomain() *fiscal.OrganizationSettings {
	return &fiscal.OrganizationSettings{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{
					ID:        m.ID,
					CreatedAt: m.CreatedAt,
					UpdatedAt: m.UpdatedAt,
				},
				Version: m.Version,
			},
			TenantID:  m.TenantID,
			CreatedBy: m.CreatedBy,
		},
		TaxRate:            m.TaxRate,
		TaxExemptionReason: m.TaxExemptionReason,
		Credentials: fiscal.ProviderCredentials{
			AccountName: m.ProviderAccountName,
			APIKey:      m.ProviderAPIKey,
			BaseURL:     m.ProviderBaseURL,
		},
		PreventPaymentDeletion: m.PreventPaymentDeletion,
		LockDeliveredSales:     m.LockDeliveredSales,
		LockFulfilledSales:     m.LockFulfilledSales,
	}
}

// FromDomain populates the persistence model from a domain OrganizationSettings entity.
func (m *OrganizationSettingsModel) FromDomain(s *fiscal.OrganizationSettings) {
	m.FromDomainTenantAggregateRoot(s.TenantAggregateRoot)
	m.TaxRate = s.TaxRate
	m.TaxExemptionReason = s.TaxExemptionReason
	m.ProviderAccountName = s.Credentials.AccountName
	m.ProviderAPIKey = s.Credentials.APIKey
	m.ProviderBaseURL = s.Credentials.BaseURL
	m.PreventPaymentDeletion = s.PreventPaymentDeletion
	m.LockDeliveredSales = s.LockDeliveredSales
	m.LockFulfilledSales = s.LockFulfilledSales
}

// OrganizationSettingsModelFromDomain creates a new persistence model from domain settings.
func OrganizationSettingsModelFromDomain(s *fiscal.OrganizationSettings) *OrganizationSettingsModel {
	m := &OrganizationSettingsModel{}
	m.FromDomain(s)
	return m
}

func docTypePointerToDomain(s *string) *fiscal.DocumentType {
	if s == nil {
		return nil
	}
	t := fiscal.DocumentType(*s)
	return &t
}

func docTypePointerToColumn(t *fiscal.DocumentType) *string {
	if t == nil {
		return nil
	}
	s := t.String()
	return &s
}
