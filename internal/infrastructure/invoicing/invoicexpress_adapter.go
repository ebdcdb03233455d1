package invoicing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/shopspring/decimal"
)

const (
	ixDateFormat = "02/01/2006"

	ixStateFinalized = "finalized"
	ixStateCanceled  = "canceled"
)

// endpoint names per document type. The API exposes one resource per
// document type with a shared shape.
var ixEndpoints = map[fiscal.DocumentType]string{
	fiscal.DocumentTypeInvoice:        "invoices",
	fiscal.DocumentTypeInvoiceReceipt: "invoice_receipts",
	fiscal.DocumentTypeReceipt:        "receipts",
	fiscal.DocumentTypeCreditNote:     "credit_notes",
}

// envelope keys per document type, used for both requests and responses
var ixEnvelopeKeys = map[fiscal.DocumentType]string{
	fiscal.DocumentTypeInvoice:        "invoice",
	fiscal.DocumentTypeInvoiceReceipt: "invoice_receipt",
	fiscal.DocumentTypeReceipt:        "receipt",
	fiscal.DocumentTypeCreditNote:     "credit_note",
}

// list filter values per document type
var ixListTypes = map[fiscal.DocumentType]string{
	fiscal.DocumentTypeInvoice:        "Invoice",
	fiscal.DocumentTypeInvoiceReceipt: "InvoiceReceipt",
	fiscal.DocumentTypeReceipt:        "Receipt",
	fiscal.DocumentTypeCreditNote:     "CreditNote",
}

// InvoiceXpressAdapter implements fiscal.InvoicingProvider against the
// InvoiceXpress REST API. Issuance is create-then-finalize: the document
// is created as a draft and finalized in a second call, which is when the
// legal sequence number is assigned.
type InvoiceXpressAdapter struct {
	config     *InvoiceXpressConfig
	httpClient *http.Client
}

// NewInvoiceXpressAdapter creates a new InvoiceXpress adapter
func NewInvoiceXpressAdapter(config *InvoiceXpressConfig) (*InvoiceXpressAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &InvoiceXpressAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.timeout(),
		},
	}, nil
}

// Issue creates and finalizes a fiscal document
func (a *InvoiceXpressAdapter) Issue(ctx context.Context, req fiscal.IssueDocumentRequest) (*fiscal.IssuedDocument, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	endpoint, ok := ixEndpoints[req.Type]
	if !ok {
		return nil, fiscal.ErrUnknownDocumentType
	}

	payload := a.buildPayload(req)
	body, err := json.Marshal(map[string]ixDocumentPayload{ixEnvelopeKeys[req.Type]: payload})
	if err != nil {
		return nil, fmt.Errorf("invoicexpress: failed to marshal request: %w", err)
	}

	respBody, err := a.doRequest(ctx, http.MethodPost, "/"+endpoint+".json", nil, body)
	if err != nil {
		return nil, err
	}

	var created ixDocumentResponse
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, fmt.Errorf("invoicexpress: failed to parse response: %w", err)
	}
	doc := created.document()
	if doc == nil {
		return nil, fmt.Errorf("invoicexpress: response carried no document")
	}

	final, err := a.changeState(ctx, req.Type, doc.ID, ixStateFinalized, "")
	if err != nil {
		return nil, err
	}
	if final == nil {
		final = doc
	}

	issued := &fiscal.IssuedDocument{
		ID:        strconv.FormatInt(doc.ID, 10),
		Reference: final.referenceNumber(),
		Type:      req.Type,
	}
	// The PDF is rendered asynchronously; a missing URL here is filled in
	// later by sync or a details fetch.
	if pdfURL, err := a.fetchPDFURL(ctx, doc.ID); err == nil {
		issued.PDFURL = pdfURL
	}
	return issued, nil
}

// Cancel cancels an issued document. The provider requires a reason.
func (a *InvoiceXpressAdapter) Cancel(ctx context.Context, req fiscal.CancelDocumentRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	id, err := strconv.ParseInt(req.ProviderDocumentID, 10, 64)
	if err != nil {
		return fmt.Errorf("invoicexpress: invalid document ID %q", req.ProviderDocumentID)
	}
	_, err = a.changeState(ctx, req.Type, id, ixStateCanceled, req.Reason)
	return err
}

// ListDocuments returns the provider's documents of the requested types,
// walking the paginated list to the end
func (a *InvoiceXpressAdapter) ListDocuments(ctx context.Context, req fiscal.ListDocumentsRequest) ([]fiscal.ProviderDocument, error) {
	query := url.Values{}
	for _, t := range req.Types {
		listType, ok := ixListTypes[t]
		if !ok {
			return nil, fiscal.ErrUnknownDocumentType
		}
		query.Add("type[]", listType)
	}
	query.Set("per_page", "50")

	var docs []fiscal.ProviderDocument
	for page := 1; ; page++ {
		query.Set("page", strconv.Itoa(page))
		respBody, err := a.doRequest(ctx, http.MethodGet, "/invoices.json", query, nil)
		if err != nil {
			return nil, err
		}

		var list ixListResponse
		if err := json.Unmarshal(respBody, &list); err != nil {
			return nil, fmt.Errorf("invoicexpress: failed to parse list response: %w", err)
		}
		for _, doc := range list.Invoices {
			docs = append(docs, toProviderDocument(doc))
		}
		if list.Pagination == nil || page >= list.Pagination.TotalPages {
			break
		}
	}
	return docs, nil
}

// GetDocument returns the full remote representation of one document
func (a *InvoiceXpressAdapter) GetDocument(ctx context.Context, documentID string, docType fiscal.DocumentType) (*fiscal.ProviderDocumentDetail, error) {
	endpoint, ok := ixEndpoints[docType]
	if !ok {
		return nil, fiscal.ErrUnknownDocumentType
	}
	id, err := strconv.ParseInt(documentID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invoicexpress: invalid document ID %q", documentID)
	}

	respBody, err := a.doRequest(ctx, http.MethodGet, fmt.Sprintf("/%s/%d.json", endpoint, id), nil, nil)
	if err != nil {
		return nil, err
	}

	var resp ixDocumentResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("invoicexpress: failed to parse response: %w", err)
	}
	doc := resp.document()
	if doc == nil {
		return nil, fmt.Errorf("invoicexpress: response carried no document")
	}

	detail := &fiscal.ProviderDocumentDetail{
		ProviderDocument: toProviderDocument(*doc),
		Client: fiscal.ClientSnapshot{
			Name:       doc.Client.Name,
			TaxID:      doc.Client.FiscalID,
			Email:      doc.Client.Email,
			Address:    doc.Client.Address,
			City:       doc.Client.City,
			PostalCode: doc.Client.PostalCode,
			Country:    doc.Client.Country,
		},
	}
	detail.Type = docType
	for _, item := range doc.Items {
		quantity, _ := decimal.NewFromString(item.Quantity)
		unitPrice, _ := decimal.NewFromString(item.UnitPrice)
		di := fiscal.DocumentItem{
			Description: item.Name,
			Quantity:    quantity,
			UnitPrice:   unitPrice,
		}
		if item.Tax != nil {
			di.TaxRate, _ = decimal.NewFromString(item.Tax.Value)
		}
		detail.Items = append(detail.Items, di)
	}
	if pdfURL, err := a.fetchPDFURL(ctx, id); err == nil {
		detail.PDFURL = pdfURL
	}
	return detail, nil
}

// changeState transitions a document. Finalizing assigns the sequence
// number; canceling requires a message.
func (a *InvoiceXpressAdapter) changeState(ctx context.Context, docType fiscal.DocumentType, id int64, state, message string) (*ixDocument, error) {
	endpoint := ixEndpoints[docType]
	change := &ixStateChange{State: state, Message: message}

	var req ixStateChangeRequest
	switch docType {
	case fiscal.DocumentTypeInvoice:
		req.Invoice = change
	case fiscal.DocumentTypeInvoiceReceipt:
		req.InvoiceReceipt = change
	case fiscal.DocumentTypeReceipt:
		req.Receipt = change
	case fiscal.DocumentTypeCreditNote:
		req.CreditNote = change
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("invoicexpress: failed to marshal state change: %w", err)
	}

	respBody, err := a.doRequest(ctx, http.MethodPut, fmt.Sprintf("/%s/%d/change-state.json", endpoint, id), nil, body)
	if err != nil {
		return nil, err
	}
	if len(respBody) == 0 {
		return nil, nil
	}
	var resp ixDocumentResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, nil
	}
	return resp.document(), nil
}

// fetchPDFURL asks for the rendered PDF. The provider answers 202 while
// still rendering; that surfaces as an error and the URL stays empty.
func (a *InvoiceXpressAdapter) fetchPDFURL(ctx context.Context, id int64) (string, error) {
	respBody, err := a.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/pdf/%d.json", id), nil, nil)
	if err != nil {
		return "", err
	}
	var resp ixPDFResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("invoicexpress: failed to parse pdf response: %w", err)
	}
	if resp.Output.PDFURL == "" {
		return "", fmt.Errorf("invoicexpress: pdf not ready")
	}
	return resp.Output.PDFURL, nil
}

// doRequest performs one API call. The API key travels as a query
// parameter on every request. Transport failures map to
// ProviderUnavailableError, remote refusals to ProviderRejectedError with
// the provider's message kept verbatim.
func (a *InvoiceXpressAdapter) doRequest(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", a.config.APIKey)
	fullURL := a.config.apiBaseURL() + path + "?" + query.Encode()

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("invoicexpress: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fiscal.NewProviderUnavailableError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fiscal.NewProviderUnavailableError(err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fiscal.NewProviderUnavailableError(fmt.Errorf("HTTP %d", resp.StatusCode))
	case resp.StatusCode == http.StatusAccepted:
		return nil, fmt.Errorf("invoicexpress: document still processing")
	case resp.StatusCode >= 400:
		return nil, fiscal.NewProviderRejectedError(parseErrorMessage(respBody, resp.StatusCode))
	}
	return respBody, nil
}

// buildPayload renders the provider-agnostic request into the wire shape
func (a *InvoiceXpressAdapter) buildPayload(req fiscal.IssueDocumentRequest) ixDocumentPayload {
	payload := ixDocumentPayload{
		Date:              req.Date.Format(ixDateFormat),
		DueDate:           req.Date.Format(ixDateFormat),
		ExternalReference: req.ExternalReference,
		Observations:      req.Observations,
		OwnerInvoiceID:    req.OriginalDocumentID,
		Client: ixClient{
			Name:       req.Client.Name,
			FiscalID:   req.Client.TaxID,
			Email:      req.Client.Email,
			Address:    req.Client.Address,
			City:       req.Client.City,
			PostalCode: req.Client.PostalCode,
			Country:    req.Client.Country,
		},
	}
	if req.Tax.Rate.IsZero() {
		payload.TaxExemption = req.Tax.ExemptionReason
	}
	for _, item := range req.Items {
		wireItem := ixItem{
			Name:      item.Description,
			UnitPrice: item.UnitPrice.String(),
			Quantity:  item.Quantity.String(),
		}
		if !item.TaxRate.IsZero() {
			wireItem.Tax = &ixTax{Value: item.TaxRate.String()}
		}
		payload.Items = append(payload.Items, wireItem)
	}
	return payload
}

// referenceNumber returns the human-facing document number
func (d *ixDocument) referenceNumber() string {
	if d.InvertedSequence != "" {
		return d.InvertedSequence
	}
	return d.SequenceNumber
}

func toProviderDocument(doc ixDocument) fiscal.ProviderDocument {
	total, _ := decimal.NewFromString(doc.Total)
	date, _ := time.Parse(ixDateFormat, doc.Date)
	return fiscal.ProviderDocument{
		ID:                strconv.FormatInt(doc.ID, 10),
		Reference:         doc.referenceNumber(),
		Type:              documentTypeFromWire(doc.Type),
		Status:            doc.Status,
		Date:              date,
		Total:             total,
		ClientName:        doc.Client.Name,
		ClientTaxID:       doc.Client.FiscalID,
		ExternalReference: doc.ExternalReference,
	}
}

// documentTypeFromWire maps the provider's type discriminator back to
// the domain document type
func documentTypeFromWire(wireType string) fiscal.DocumentType {
	for docType, listType := range ixListTypes {
		if listType == wireType {
			return docType
		}
	}
	return ""
}

// parseErrorMessage extracts the provider's own message for a refusal
func parseErrorMessage(body []byte, statusCode int) string {
	var errResp ixErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && len(errResp.Errors) > 0 {
		messages := make([]string, 0, len(errResp.Errors))
		for _, e := range errResp.Errors {
			if e.Error != "" {
				messages = append(messages, e.Error)
			}
		}
		if len(messages) > 0 {
			return strings.Join(messages, "; ")
		}
	}
	return fmt.Sprintf("HTTP %d", statusCode)
}
