package cache

import (
	"context"
	"testing"
	"time"

	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCreditNoteRecords() []fiscal.CreditNoteRecord {
	return []fiscal.CreditNoteRecord{
		{
			ID:                        uuid.New(),
			SourceKind:                fiscal.DocumentSourceSale,
			CreditNoteID:              "950",
			CreditNoteReference:       "NC 2026/1",
			OriginalDocumentReference: "FT 2026/1",
			Date:                      time.Now(),
			Amount:                    decimal.NewFromInt(1000),
			ClientName:                "Test Client",
		},
	}
}

func TestInMemoryCreditNoteCache_GetSet(t *testing.T) {
	t.Run("misses before set", func(t *testing.T) {
		c := NewInMemoryCreditNoteCache()

		records, hit, err := c.Get(context.Background(), uuid.New())

		assert.NoError(t, err)
		assert.False(t, hit)
		assert.Nil(t, records)
	})

	t.Run("hits after set", func(t *testing.T) {
		c := NewInMemoryCreditNoteCache()
		tenantID := uuid.New()
		stored := testCreditNoteRecords()

		err := c.Set(context.Background(), tenantID, stored)
		require.NoError(t, err)

		records, hit, err := c.Get(context.Background(), tenantID)

		assert.NoError(t, err)
		assert.True(t, hit)
		require.Len(t, records, 1)
		assert.Equal(t, "950", records[0].CreditNoteID)
	})

	t.Run("entries are tenant scoped", func(t *testing.T) {
		c := NewInMemoryCreditNoteCache()
		tenantA := uuid.New()
		tenantB := uuid.New()

		require.NoError(t, c.Set(context.Background(), tenantA, testCreditNoteRecords()))

		_, hit, err := c.Get(context.Background(), tenantB)

		assert.NoError(t, err)
		assert.False(t, hit)
	})

	t.Run("stored slice is isolated from the caller", func(t *testing.T) {
		c := NewInMemoryCreditNoteCache()
		tenantID := uuid.New()
		stored := testCreditNoteRecords()

		require.NoError(t, c.Set(context.Background(), tenantID, stored))
		stored[0].CreditNoteID = "mutated"

		records, hit, err := c.Get(context.Background(), tenantID)

		assert.NoError(t, err)
		assert.True(t, hit)
		assert.Equal(t, "950", records[0].CreditNoteID)
	})

	t.Run("expired entries are treated as misses", func(t *testing.T) {
		c := NewInMemoryCreditNoteCache()
		c.ttl = -time.Second
		tenantID := uuid.New()

		require.NoError(t, c.Set(context.Background(), tenantID, testCreditNoteRecords()))

		_, hit, err := c.Get(context.Background(), tenantID)

		assert.NoError(t, err)
		assert.False(t, hit)
	})
}

func TestInMemoryCreditNoteCache_Invalidate(t *testing.T) {
	t.Run("drops the tenant entry", func(t *testing.T) {
		c := NewInMemoryCreditNoteCache()
		tenantID := uuid.New()

		require.NoError(t, c.Set(context.Background(), tenantID, testCreditNoteRecords()))
		require.NoError(t, c.Invalidate(context.Background(), tenantID))

		_, hit, err := c.Get(context.Background(), tenantID)

		assert.NoError(t, err)
		assert.False(t, hit)
	})

	t.Run("is a no-op for unknown tenants", func(t *testing.T) {
		c := NewInMemoryCreditNoteCache()

		assert.NoError(t, c.Invalidate(context.Background(), uuid.New()))
	})
}
