package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingInvalidator struct {
	tenants []uuid.UUID
	err     error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, tenantID uuid.UUID) error {
	r.tenants = append(r.tenants, tenantID)
	return r.err
}

func TestCreditNoteInvalidationHandler_Handle(t *testing.T) {
	t.Run("invalidates the event's tenant", func(t *testing.T) {
		invalidator := &recordingInvalidator{}
		handler := NewCreditNoteInvalidationHandler(invalidator, zap.NewNop())

		tenantID := uuid.New()
		event := &fiscal.SaleCreditNoteIssuedEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent(fiscal.EventTypeSaleCreditNoteIssued, "Sale", uuid.New(), tenantID),
		}

		err := handler.Handle(context.Background(), event)

		assert.NoError(t, err)
		require.Len(t, invalidator.tenants, 1)
		assert.Equal(t, tenantID, invalidator.tenants[0])
	})

	t.Run("swallows invalidation failures", func(t *testing.T) {
		invalidator := &recordingInvalidator{err: errors.New("redis down")}
		handler := NewCreditNoteInvalidationHandler(invalidator, zap.NewNop())

		event := &fiscal.PaymentDocumentCancelledEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent(fiscal.EventTypePaymentDocumentCancelled, "Payment", uuid.New(), uuid.New()),
		}

		err := handler.Handle(context.Background(), event)

		assert.NoError(t, err)
	})
}

func TestCreditNoteInvalidationHandler_EventTypes(t *testing.T) {
	handler := NewCreditNoteInvalidationHandler(&recordingInvalidator{}, zap.NewNop())

	types := handler.EventTypes()

	assert.Contains(t, types, fiscal.EventTypeSaleCreditNoteIssued)
	assert.Contains(t, types, fiscal.EventTypePaymentCreditNoteIssued)
	assert.Contains(t, types, fiscal.EventTypeSaleDocumentCancelled)
	assert.Contains(t, types, fiscal.EventTypePaymentDocumentCancelled)
}
