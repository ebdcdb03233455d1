package fiscal

import (
	"context"
	"fmt"

	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettingsService manages the organization-level fiscal configuration
type SettingsService struct {
	settingsRepo fiscal.OrganizationSettingsRepository
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(settingsRepo fiscal.OrganizationSettingsRepository) *SettingsService {
	return &SettingsService{settingsRepo: settingsRepo}
}

// UpdateSettingsRequest represents a full settings update for a tenant
type UpdateSettingsRequest struct {
	TenantID               uuid.UUID
	TaxRate                decimal.Decimal
	TaxExemptionReason     string
	Credentials            fiscal.ProviderCredentials
	PreventPaymentDeletion bool
	LockDeliveredSales     bool
	LockFulfilledSales     bool
}

// GetSettings returns the tenant's settings, creating the in-memory
// default when none are stored yet
func (s *SettingsService) GetSettings(ctx context.Context, tenantID uuid.UUID) (*fiscal.OrganizationSettings, error) {
	settings, err := s.settingsRepo.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization settings: %w", err)
	}
	if settings == nil {
		return fiscal.NewOrganizationSettings(tenantID, decimal.Zero)
	}
	return settings, nil
}

// UpdateSettings stores the tenant's fiscal configuration. The tax
// configuration is validated here so an illegal combination is rejected
// at save time, not discovered at issuance time.
func (s *SettingsService) UpdateSettings(ctx context.Context, req UpdateSettingsRequest) (*fiscal.OrganizationSettings, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settings", "update_settings")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, req.TenantID.String())

	tax := fiscal.TaxSettings{Rate: req.TaxRate, ExemptionReason: req.TaxExemptionReason}
	if err := tax.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	settings, err := s.settingsRepo.FindByTenant(ctx, req.TenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load organization settings: %w", err)
	}
	if settings == nil {
		settings, err = fiscal.NewOrganizationSettings(req.TenantID, req.TaxRate)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	settings.TaxRate = req.TaxRate
	settings.TaxExemptionReason = req.TaxExemptionReason
	settings.Credentials = req.Credentials
	settings.PreventPaymentDeletion = req.PreventPaymentDeletion
	settings.LockDeliveredSales = req.LockDeliveredSales
	settings.LockFulfilledSales = req.LockFulfilledSales
	settings.IncrementVersion()

	if err := s.settingsRepo.Save(ctx, settings); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save organization settings: %w", err)
	}
	return settings, nil
}
