package invoicing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crm/backend/internal/domain/fiscal"
)

func TestInvoiceXpressConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *InvoiceXpressConfig
		wantErr error
	}{
		{
			name:    "valid config",
			config:  &InvoiceXpressConfig{AccountName: "acme", APIKey: "key-123"},
			wantErr: nil,
		},
		{
			name:    "missing account name",
			config:  &InvoiceXpressConfig{APIKey: "key-123"},
			wantErr: ErrMissingAccountName,
		},
		{
			name:    "missing API key",
			config:  &InvoiceXpressConfig{AccountName: "acme"},
			wantErr: ErrMissingAPIKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func newTestAdapter(t *testing.T, handler http.HandlerFunc) (*InvoiceXpressAdapter, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	adapter, err := NewInvoiceXpressAdapter(&InvoiceXpressConfig{
		AccountName: "acme",
		APIKey:      "test-key",
		BaseURL:     server.URL,
		Timeout:     2 * time.Second,
	})
	require.NoError(t, err)
	return adapter, server
}

func validIssueRequest() fiscal.IssueDocumentRequest {
	return fiscal.IssueDocumentRequest{
		Type: fiscal.DocumentTypeInvoice,
		Client: fiscal.ClientSnapshot{
			Name:  "Test Client",
			TaxID: "PT123456789",
		},
		Items: []fiscal.DocumentItem{{
			Description: "Sale SALE-001",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.NewFromInt(1000),
			TaxRate:     decimal.NewFromInt(23),
		}},
		Tax:               fiscal.TaxSettings{Rate: decimal.NewFromInt(23)},
		Date:              time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		ExternalReference: uuid.NewString(),
	}
}

func TestInvoiceXpressAdapter_Issue_CreatesAndFinalizes(t *testing.T) {
	var gotCreate, gotFinalize bool
	var createdBody map[string]ixDocumentPayload

	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/invoices.json":
			gotCreate = true
			require.NoError(t, json.NewDecoder(r.Body).Decode(&createdBody))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"invoice":{"id":900,"status":"draft"}}`))
		case r.Method == http.MethodPut && r.URL.Path == "/invoices/900/change-state.json":
			gotFinalize = true
			_, _ = w.Write([]byte(`{"invoice":{"id":900,"status":"final","inverted_sequence_number":"FT 2026/1"}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/pdf/900.json":
			_, _ = w.Write([]byte(`{"output":{"pdfUrl":"https://cdn.example/900.pdf"}}`))
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})

	req := validIssueRequest()
	issued, err := adapter.Issue(context.Background(), req)

	require.NoError(t, err)
	assert.True(t, gotCreate)
	assert.True(t, gotFinalize)
	assert.Equal(t, "900", issued.ID)
	assert.Equal(t, "FT 2026/1", issued.Reference)
	assert.Equal(t, "https://cdn.example/900.pdf", issued.PDFURL)

	payload := createdBody["invoice"]
	assert.Equal(t, "Test Client", payload.Client.Name)
	assert.Equal(t, req.ExternalReference, payload.ExternalReference)
	assert.Equal(t, "10/03/2026", payload.Date)
}

func TestInvoiceXpressAdapter_Issue_RejectedSurfacesProviderMessage(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors":[{"error":"Fiscal ID is invalid"}]}`))
	})

	issued, err := adapter.Issue(context.Background(), validIssueRequest())

	assert.Nil(t, issued)
	var rejected *fiscal.ProviderRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "Fiscal ID is invalid", rejected.Message)
}

func TestInvoiceXpressAdapter_Issue_ServerErrorIsUnavailable(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	issued, err := adapter.Issue(context.Background(), validIssueRequest())

	assert.Nil(t, issued)
	var unavailable *fiscal.ProviderUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestInvoiceXpressAdapter_Issue_NetworkErrorIsUnavailable(t *testing.T) {
	adapter, server := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	issued, err := adapter.Issue(context.Background(), validIssueRequest())

	assert.Nil(t, issued)
	var unavailable *fiscal.ProviderUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestInvoiceXpressAdapter_Issue_ValidationNeverHitsNetwork(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	req := validIssueRequest()
	req.Client.Name = ""

	issued, err := adapter.Issue(context.Background(), req)

	assert.Nil(t, issued)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Client name is required")
}

func TestInvoiceXpressAdapter_Cancel(t *testing.T) {
	var gotState ixStateChangeRequest

	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/invoices/900/change-state.json", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotState))
		_, _ = w.Write([]byte(`{"invoice":{"id":900,"status":"canceled"}}`))
	})

	err := adapter.Cancel(context.Background(), fiscal.CancelDocumentRequest{
		ProviderDocumentID: "900",
		Type:               fiscal.DocumentTypeInvoice,
		Reason:             "duplicate",
	})

	require.NoError(t, err)
	require.NotNil(t, gotState.Invoice)
	assert.Equal(t, "canceled", gotState.Invoice.State)
	assert.Equal(t, "duplicate", gotState.Invoice.Message)
}

func TestInvoiceXpressAdapter_ListDocuments_WalksPagination(t *testing.T) {
	extRef := uuid.NewString()

	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/invoices.json", r.URL.Path)
		assert.ElementsMatch(t, []string{"Invoice"}, r.URL.Query()["type[]"])

		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = w.Write([]byte(`{
				"invoices":[{"id":900,"type":"Invoice","status":"final","date":"10/03/2026","inverted_sequence_number":"FT 2026/1","total":"1000.0","external_reference":"` + extRef + `"}],
				"pagination":{"current_page":1,"total_pages":2}
			}`))
		case "2":
			_, _ = w.Write([]byte(`{
				"invoices":[{"id":901,"type":"Invoice","status":"final","date":"11/03/2026","inverted_sequence_number":"FT 2026/2","total":"500.0"}],
				"pagination":{"current_page":2,"total_pages":2}
			}`))
		default:
			t.Fatalf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})

	docs, err := adapter.ListDocuments(context.Background(), fiscal.ListDocumentsRequest{
		Types: []fiscal.DocumentType{fiscal.DocumentTypeInvoice},
	})

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "900", docs[0].ID)
	assert.Equal(t, fiscal.DocumentTypeInvoice, docs[0].Type)
	assert.Equal(t, extRef, docs[0].ExternalReference)
	assert.Equal(t, "FT 2026/1", docs[0].Reference)
	assert.True(t, docs[0].Total.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, "901", docs[1].ID)
}

func TestInvoiceXpressAdapter_GetDocument(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/credit_notes/950.json":
			_, _ = w.Write([]byte(`{"credit_note":{
				"id":950,"status":"final","date":"12/03/2026","inverted_sequence_number":"NC 2026/1","total":"1000.0",
				"client":{"name":"Test Client","fiscal_id":"PT123456789"},
				"items":[{"name":"Credit note for sale SALE-001","unit_price":"1000.0","quantity":"1.0","tax":{"value":"23.0"}}]
			}}`))
		case "/api/pdf/950.json":
			_, _ = w.Write([]byte(`{"output":{"pdfUrl":"https://cdn.example/950.pdf"}}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	detail, err := adapter.GetDocument(context.Background(), "950", fiscal.DocumentTypeCreditNote)

	require.NoError(t, err)
	assert.Equal(t, "950", detail.ID)
	assert.Equal(t, fiscal.DocumentTypeCreditNote, detail.Type)
	assert.Equal(t, "Test Client", detail.Client.Name)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, decimal.NewFromInt(23).String(), detail.Items[0].TaxRate.Round(0).String())
	assert.Equal(t, "https://cdn.example/950.pdf", detail.PDFURL)
}

func TestInvoiceXpressAdapter_ErrorMessageFallsBackToStatus(t *testing.T) {
	body := []byte("not json")
	msg := parseErrorMessage(body, http.StatusUnauthorized)
	assert.Equal(t, "HTTP 401", msg)
}

func TestNewInvoiceXpressAdapter_InvalidConfig(t *testing.T) {
	adapter, err := NewInvoiceXpressAdapter(&InvoiceXpressConfig{})
	assert.Nil(t, adapter)
	assert.True(t, errors.Is(err, ErrMissingAccountName))
}
