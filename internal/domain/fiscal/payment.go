package fiscal

import (
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents whether a payment has been received or is
// still scheduled.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	return s == PaymentStatusPending || s == PaymentStatusPaid
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// PaymentMethod represents the method of payment
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodDirectDebit  PaymentMethod = "direct_debit"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodOther        PaymentMethod = "other"
)

// IsValid checks if the payment method is valid. The empty method is
// accepted: the method is optional on a payment.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case "", PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCard,
		PaymentMethodDirectDebit, PaymentMethodCheck, PaymentMethodOther:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// Payment is a payment made or scheduled against a sale. A sale
// accumulates many payments; each payment can carry its own fiscal
// document (an invoice-receipt or a receipt) independently of the
// sale-level document.
type Payment struct {
	shared.TenantAggregateRoot
	documentLifecycle
	SaleID         uuid.UUID       `json:"sale_id"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentDate    time.Time       `json:"payment_date"`
	Method         PaymentMethod   `json:"payment_method"`
	Status         PaymentStatus   `json:"status"`
	InvoiceFileURL string          `json:"invoice_file_url"`
	Notes          string          `json:"notes"`
}

// NewPayment creates a payment against a sale
func NewPayment(
	tenantID uuid.UUID,
	saleID uuid.UUID,
	amount valueobject.Money,
	paymentDate time.Time,
	method PaymentMethod,
	status PaymentStatus,
) (*Payment, error) {
	if saleID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SALE", "Sale ID cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if paymentDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_PAYMENT_DATE", "Payment date is required")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD", "Payment method is not valid")
	}
	if !status.IsValid() {
		return nil, shared.NewDomainError("INVALID_PAYMENT_STATUS", "Payment status is not valid")
	}

	p := &Payment{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		SaleID:              saleID,
		Amount:              amount.Amount(),
		PaymentDate:         paymentDate,
		Method:              method,
		Status:              status,
	}
	p.AddDomainEvent(NewPaymentCreatedEvent(p))
	return p, nil
}

// Update modifies the mutable payment fields. Fiscal document fields are
// never touched here; they only change through the document lifecycle.
func (p *Payment) Update(amount valueobject.Money, paymentDate time.Time, method PaymentMethod, status PaymentStatus, notes string) error {
	if !amount.IsPositive() {
		return shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if paymentDate.IsZero() {
		return shared.NewDomainError("INVALID_PAYMENT_DATE", "Payment date is required")
	}
	if !method.IsValid() {
		return shared.NewDomainError("INVALID_PAYMENT_METHOD", "Payment method is not valid")
	}
	if !status.IsValid() {
		return shared.NewDomainError("INVALID_PAYMENT_STATUS", "Payment status is not valid")
	}

	p.Amount = amount.Amount()
	p.PaymentDate = paymentDate
	p.Method = method
	p.Status = status
	p.Notes = notes
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
	return nil
}

// MarkPaid transitions a pending payment to paid
func (p *Payment) MarkPaid() {
	if p.Status == PaymentStatusPaid {
		return
	}
	p.Status = PaymentStatusPaid
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
}

// AttachDocument persists the provider-assigned identifiers for a
// payment-level document (invoice-receipt or receipt)
func (p *Payment) AttachDocument(ref DocumentReference) error {
	if err := p.documentLifecycle.attach(ref); err != nil {
		return err
	}
	p.IncrementVersion()
	p.AddDomainEvent(NewPaymentDocumentIssuedEvent(p, ref))
	return nil
}

// AttachCreditNote links a reversing document issued against this payment's document
func (p *Payment) AttachCreditNote(creditNoteID, creditNoteReference string) error {
	if err := p.documentLifecycle.attachCreditNote(creditNoteID, creditNoteReference); err != nil {
		return err
	}
	p.IncrementVersion()
	p.AddDomainEvent(NewPaymentCreditNoteIssuedEvent(p, creditNoteID, creditNoteReference))
	return nil
}

// CancelDocument records the provider-side cancellation of this payment's document
func (p *Payment) CancelDocument(reason string) error {
	if err := p.documentLifecycle.markCancelled(reason); err != nil {
		return err
	}
	p.IncrementVersion()
	p.AddDomainEvent(NewPaymentDocumentCancelledEvent(p, reason))
	return nil
}

// SetInvoiceFileURL stores the URL of an uploaded supporting file
func (p *Payment) SetInvoiceFileURL(url string) {
	p.InvoiceFileURL = url
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
}
