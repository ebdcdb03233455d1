package cache

import (
	"context"

	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// creditNoteInvalidator is the slice of the cache the handler needs
type creditNoteInvalidator interface {
	Invalidate(ctx context.Context, tenantID uuid.UUID) error
}

// CreditNoteInvalidationHandler drops a tenant's cached credit-note view
// whenever a credit note is issued or a document is cancelled. It is
// subscribed on the event bus at startup.
type CreditNoteInvalidationHandler struct {
	cache  creditNoteInvalidator
	logger *zap.Logger
}

// NewCreditNoteInvalidationHandler creates a new invalidation handler
func NewCreditNoteInvalidationHandler(cache creditNoteInvalidator, logger *zap.Logger) *CreditNoteInvalidationHandler {
	return &CreditNoteInvalidationHandler{
		cache:  cache,
		logger: logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *CreditNoteInvalidationHandler) EventTypes() []string {
	return []string{
		fiscal.EventTypeSaleCreditNoteIssued,
		fiscal.EventTypePaymentCreditNoteIssued,
		fiscal.EventTypeSaleDocumentCancelled,
		fiscal.EventTypePaymentDocumentCancelled,
	}
}

// Handle invalidates the tenant's cached view. Failures are logged but not
// returned: the TTL bounds staleness if the delete is missed.
func (h *CreditNoteInvalidationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if err := h.cache.Invalidate(ctx, event.TenantID()); err != nil {
		h.logger.Warn("Failed to invalidate credit note cache",
			zap.String("event_type", event.EventType()),
			zap.String("tenant_id", event.TenantID().String()),
			zap.Error(err),
		)
	}
	return nil
}

// Ensure CreditNoteInvalidationHandler implements EventHandler
var _ shared.EventHandler = (*CreditNoteInvalidationHandler)(nil)
