package fiscal

import (
	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProviderCredentials holds the per-organization credentials for the
// invoicing provider.
type ProviderCredentials struct {
	AccountName string `json:"account_name"`
	APIKey      string `json:"-"`
	BaseURL     string `json:"base_url"`
}

// IsConfigured returns true when the credentials are complete enough to
// build a provider client
func (c ProviderCredentials) IsConfigured() bool {
	return c.AccountName != "" && c.APIKey != ""
}

// OrganizationSettings holds the organization-level configuration that
// gates the fiscal engine: provider credentials, tax configuration and
// the mutation locks enforced by the payment ledger.
type OrganizationSettings struct {
	shared.TenantAggregateRoot
	TaxRate                decimal.Decimal     `json:"tax_rate"`
	TaxExemptionReason     string              `json:"tax_exemption_reason"`
	Credentials            ProviderCredentials `json:"credentials"`
	PreventPaymentDeletion bool                `json:"prevent_payment_deletion"`
	LockDeliveredSales     bool                `json:"lock_delivered_sales"`
	LockFulfilledSales     bool                `json:"lock_fulfilled_sales"`
}

// NewOrganizationSettings creates settings for an organization with the
// default tax configuration
func NewOrganizationSettings(tenantID uuid.UUID, taxRate decimal.Decimal) (*OrganizationSettings, error) {
	if taxRate.IsNegative() {
		return nil, shared.NewDomainError("INVALID_TAX_RATE", "Tax rate cannot be negative")
	}
	return &OrganizationSettings{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		TaxRate:             taxRate,
	}, nil
}

// TaxSettings returns the tax configuration applied to issued documents
func (s *OrganizationSettings) TaxSettings() TaxSettings {
	return TaxSettings{
		Rate:            s.TaxRate,
		ExemptionReason: s.TaxExemptionReason,
	}
}

// ValidateForIssuance enforces the legal preconditions for issuing a
// document: configured credentials and a valid tax configuration. This is
// enforced here, not only at the UI layer.
func (s *OrganizationSettings) ValidateForIssuance() error {
	if !s.Credentials.IsConfigured() {
		return ErrProviderNotConfigured
	}
	return s.TaxSettings().Validate()
}
