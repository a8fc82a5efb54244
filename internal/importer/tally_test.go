package importer

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
)

func amountOf(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

const tallyOutflowPayload = `{
  "eventId": "evt-1",
  "eventType": "FORM_RESPONSE",
  "data": {
    "responseId": "resp-42",
    "fields": [
      {"label": "Data", "value": "2024-03-15"},
      {"label": "Mese", "value": "Marzo"},
      {"label": "Causale", "value": "Bolletta luce"},
      {"label": "Categoria", "value": "Utenze"},
      {"label": "Conto", "value": ["Cash"]},
      {"label": "Importo entrata", "value": null},
      {"label": "Importo uscita", "value": 82.4},
      {"label": "Ricevuta", "value": [{"name": "r.pdf", "url": "https://files.example/r.pdf"}]}
    ]
  }
}`

func TestParseTally_Outflow(t *testing.T) {
	sub, err := ParseTally([]byte(tallyOutflowPayload))
	require.NoError(t, err)

	assert.Equal(t, "resp-42", sub.ResponseID)
	assert.Equal(t, "2024-03-15", sub.Date.Format(domain.DateLayout))
	assert.Equal(t, "Bolletta luce - Marzo", sub.Description)
	assert.True(t, sub.Amount.Equal(amountOf(t, "-82.4")))
	assert.Equal(t, "Utenze", sub.Category)
	assert.Equal(t, "Cash", sub.AccountName)
	assert.Equal(t, "https://files.example/r.pdf", sub.ReceiptURL)

	sourceID := uuid.New()
	req, err := sub.StageRequest(sourceID, nil)
	require.NoError(t, err)
	assert.Equal(t, sourceID, req.SourceID)
	require.NotNil(t, req.ExternalID)
	assert.Equal(t, "resp-42", *req.ExternalID)
	assert.Contains(t, string(req.RawData), `"receipt_url":"https://files.example/r.pdf"`)
}

func TestParseTally_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"not json", `{`, "malformed payload"},
		{"no fields", `{"data":{"fields":[]}}`, "no fields"},
		{"missing date", `{"data":{"fields":[{"label":"importo entrata","value":5}]}}`, "date"},
		{
			"no amount",
			`{"data":{"fields":[{"label":"data","value":"2024-01-01"}]}}`,
			"either an inflow or an outflow",
		},
		{
			"both amounts",
			`{"data":{"fields":[{"label":"data","value":"2024-01-01"},{"label":"importo entrata","value":5},{"label":"importo uscita","value":"5"}]}}`,
			"only one of",
		},
		{
			"negative",
			`{"data":{"fields":[{"label":"data","value":"2024-01-01"},{"label":"importo uscita","value":-5}]}}`,
			"must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTally([]byte(tt.body))
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseTally_InflowDefaults(t *testing.T) {
	body := `{"data":{"responseId":"r1","fields":[
		{"label":"DATA","value":"2024-01-02T10:00:00.000Z"},
		{"label":"importo entrata","value":"1500,50"}
	]}}`

	sub, err := ParseTally([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "No description", sub.Description)
	assert.True(t, sub.Amount.Equal(amountOf(t, "1500.50")))
	assert.Equal(t, "2024-01-02", sub.Date.Format(domain.DateLayout))
	assert.Empty(t, sub.AccountName)
}
