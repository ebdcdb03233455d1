package persistence

import (
	"context"
	"errors"

	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrganizationSettingsRepository implements fiscal.OrganizationSettingsRepository using GORM
type GormOrganizationSettingsRepository struct {
	db *gorm.DB
}

// NewGormOrganizationSettingsRepository creates a new GormOrganizationSettingsRepository
func NewGormOrganizationSettingsRepository(db *gorm.DB) *GormOrganizationSettingsRepository {
	return &GormOrganizationSettingsRepository{db: db}
}

// FindByTenant finds the settings row for a tenant. Returns nil when the
// organization has never saved its fiscal settings.
func (r *GormOrganizationSettingsRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*fiscal.OrganizationSettings, error) {
	var model models.OrganizationSettingsModel
	if err := r.db.WithContext(ctx).
		First(&model, "tenant_id = ?", tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save persists the settings row, upserting on the tenant unique key
func (r *GormOrganizationSettingsRepository) Save(ctx context.Context, settings *fiscal.OrganizationSettings) error {
	model := models.OrganizationSettingsModelFromDomain(settings)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			UpdateAll: true,
		}).
		Create(model).Error
}
