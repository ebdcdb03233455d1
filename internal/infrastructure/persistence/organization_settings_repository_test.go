package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockSettingsRepository creates a GormOrganizationSettingsRepository with a mocked SQL connection
func newMockSettingsRepository(t *testing.T) (*GormOrganizationSettingsRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormOrganizationSettingsRepository(gormDB), mock, mockDB
}

func TestGormOrganizationSettingsRepository_FindByTenant(t *testing.T) {
	t.Run("finds settings and restores credentials", func(t *testing.T) {
		repo, mock, mockDB := newMockSettingsRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()

		rows := sqlmock.NewRows([]string{
			"id", "tenant_id", "version", "tax_rate", "tax_exemption_reason",
			"provider_account_name", "provider_api_key", "prevent_payment_deletion",
		}).AddRow(uuid.New(), tenantID, 1, decimal.NewFromInt(23), "", "acme", "test-api-key", true)

		mock.ExpectQuery(`SELECT \* FROM "fiscal_organization_settings" WHERE tenant_id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, 1).
			WillReturnRows(rows)

		settings, err := repo.FindByTenant(context.Background(), tenantID)

		assert.NoError(t, err)
		require.NotNil(t, settings)
		assert.Equal(t, tenantID, settings.TenantID)
		assert.True(t, settings.TaxRate.Equal(decimal.NewFromInt(23)))
		assert.Equal(t, "acme", settings.Credentials.AccountName)
		assert.Equal(t, "test-api-key", settings.Credentials.APIKey)
		assert.True(t, settings.Credentials.IsConfigured())
		assert.True(t, settings.PreventPaymentDeletion)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil when the organization never saved settings", func(t *testing.T) {
		repo, mock, mockDB := newMockSettingsRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "fiscal_organization_settings" WHERE tenant_id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		settings, err := repo.FindByTenant(context.Background(), tenantID)

		assert.NoError(t, err)
		assert.Nil(t, settings)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormOrganizationSettingsRepository_Save(t *testing.T) {
	t.Run("upserts on the tenant key", func(t *testing.T) {
		repo, mock, mockDB := newMockSettingsRepository(t)
		defer mockDB.Close()

		settings, err := fiscal.NewOrganizationSettings(uuid.New(), decimal.NewFromInt(23))
		require.NoError(t, err)
		settings.Credentials = fiscal.ProviderCredentials{AccountName: "acme", APIKey: "test-api-key"}

		mock.ExpectExec(`INSERT INTO "fiscal_organization_settings" .* ON CONFLICT \("tenant_id"\) DO UPDATE SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err = repo.Save(context.Background(), settings)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
