package invoicing

// Wire types for the InvoiceXpress REST API. Every document type shares
// the same shape; the JSON envelope key varies per endpoint.

type ixClient struct {
	Name       string `json:"name"`
	FiscalID   string `json:"fiscal_id,omitempty"`
	Email      string `json:"email,omitempty"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

type ixItem struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	UnitPrice   string  `json:"unit_price"`
	Quantity    string  `json:"quantity"`
	Tax         *ixTax  `json:"tax,omitempty"`
	Discount    float64 `json:"discount,omitempty"`
}

type ixTax struct {
	Name  string `json:"name,omitempty"`
	Value string `json:"value"`
}

type ixDocumentPayload struct {
	Date               string   `json:"date"`
	DueDate            string   `json:"due_date,omitempty"`
	Reference          string   `json:"reference,omitempty"`
	ExternalReference  string   `json:"external_reference,omitempty"`
	Observations       string   `json:"observations,omitempty"`
	TaxExemption       string   `json:"tax_exemption,omitempty"`
	TaxExemptionReason string   `json:"tax_exemption_reason,omitempty"`
	OwnerInvoiceID     string   `json:"owner_invoice_id,omitempty"`
	Client             ixClient `json:"client"`
	Items              []ixItem `json:"items"`
}

type ixDocument struct {
	ID                int64    `json:"id"`
	Type              string   `json:"type"`
	Status            string   `json:"status"`
	Date              string   `json:"date"`
	DueDate           string   `json:"due_date"`
	Reference         string   `json:"reference"`
	ExternalReference string   `json:"external_reference"`
	Observations      string   `json:"observations"`
	InvertedSequence  string   `json:"inverted_sequence_number"`
	SequenceNumber    string   `json:"sequence_number"`
	PermalinkURL      string   `json:"permalink"`
	Total             string   `json:"total"`
	Client            ixClient `json:"client"`
	Items             []ixItem `json:"items"`
}

type ixDocumentResponse struct {
	Invoice        *ixDocument `json:"invoice,omitempty"`
	InvoiceReceipt *ixDocument `json:"invoice_receipt,omitempty"`
	Receipt        *ixDocument `json:"receipt,omitempty"`
	CreditNote     *ixDocument `json:"credit_note,omitempty"`
}

// document returns whichever envelope key the response carried
func (r *ixDocumentResponse) document() *ixDocument {
	switch {
	case r.Invoice != nil:
		return r.Invoice
	case r.InvoiceReceipt != nil:
		return r.InvoiceReceipt
	case r.Receipt != nil:
		return r.Receipt
	case r.CreditNote != nil:
		return r.CreditNote
	}
	return nil
}

type ixListResponse struct {
	Invoices   []ixDocument  `json:"invoices"`
	Pagination *ixPagination `json:"pagination"`
}

type ixPagination struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	TotalItems  int `json:"total_entries"`
}

type ixStateChange struct {
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

type ixStateChangeRequest struct {
	Invoice        *ixStateChange `json:"invoice,omitempty"`
	InvoiceReceipt *ixStateChange `json:"invoice_receipt,omitempty"`
	Receipt        *ixStateChange `json:"receipt,omitempty"`
	CreditNote     *ixStateChange `json:"credit_note,omitempty"`
}

type ixPDFResponse struct {
	Output struct {
		PDFURL string `json:"pdfUrl"`
	} `json:"output"`
}

type ixErrorResponse struct {
	Errors []struct {
		Error string `json:"error"`
	} `json:"errors"`
}
