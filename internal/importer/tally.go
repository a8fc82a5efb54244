package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
)

// Tally form field labels, matched case-insensitively.
const (
	tallyDate        = "data"
	tallyMonth       = "mese"
	tallyReason      = "causale"
	tallyCategory    = "categoria"
	tallyAccount     = "conto"
	tallyInflow      = "importo entrata"
	tallyOutflow     = "importo uscita"
	tallyReceipt     = "ricevuta"
	tallyDefaultDesc = "No description"
)

type tallyPayload struct {
	EventID string `json:"eventId"`
	Data    struct {
		ResponseID string `json:"responseId"`
		Fields     []struct {
			Label string `json:"label"`
			Value any    `json:"value"`
		} `json:"fields"`
	} `json:"data"`
}

// TallySubmission is one expense/income form response.
type TallySubmission struct {
	ResponseID  string
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Category    string
	AccountName string
	ReceiptURL  string
	Fields      map[string]any
}

func ParseTally(body []byte) (*TallySubmission, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var p tallyPayload
	if err := dec.Decode(&p); err != nil {
		return nil, domain.Invalid("tally: malformed payload: %v", err)
	}
	if len(p.Data.Fields) == 0 {
		return nil, domain.Invalid("tally: payload has no fields")
	}

	fields := make(map[string]any, len(p.Data.Fields))
	for _, f := range p.Data.Fields {
		fields[strings.ToLower(strings.TrimSpace(f.Label))] = f.Value
	}

	rawDate := text(fields[tallyDate])
	if len(rawDate) > len(domain.DateLayout) {
		rawDate = rawDate[:len(domain.DateLayout)]
	}
	date, err := time.Parse(domain.DateLayout, rawDate)
	if err != nil {
		return nil, domain.Invalid("tally: invalid or missing %q date", tallyDate)
	}

	inflow, err := number(fields[tallyInflow])
	if err != nil {
		return nil, domain.Invalid("tally: %q: %v", tallyInflow, err)
	}
	outflow, err := number(fields[tallyOutflow])
	if err != nil {
		return nil, domain.Invalid("tally: %q: %v", tallyOutflow, err)
	}
	if inflow.IsNegative() || outflow.IsNegative() {
		return nil, domain.Invalid("tally: amounts must not be negative")
	}

	var amount decimal.Decimal
	switch {
	case !inflow.IsZero() && !outflow.IsZero():
		return nil, domain.Invalid("tally: only one of %q and %q may be set", tallyInflow, tallyOutflow)
	case !inflow.IsZero():
		amount = inflow
	case !outflow.IsZero():
		amount = outflow.Neg()
	default:
		return nil, domain.Invalid("tally: transaction must have either an inflow or an outflow amount")
	}
	if !amount.Equal(amount.Round(2)) {
		return nil, domain.Invalid("tally: amount has more than two decimal places")
	}

	reason := text(fields[tallyReason])
	if reason == "" {
		reason = tallyDefaultDesc
	}
	desc := strings.Trim(reason+" - "+text(fields[tallyMonth]), " -")

	return &TallySubmission{
		ResponseID:  p.Data.ResponseID,
		Date:        date,
		Description: desc,
		Amount:      amount,
		Category:    text(fields[tallyCategory]),
		AccountName: text(fields[tallyAccount]),
		ReceiptURL:  firstFileURL(fields[tallyReceipt]),
		Fields:      fields,
	}, nil
}

// StageRequest converts the submission; the caller resolves the account.
func (s *TallySubmission) StageRequest(sourceID uuid.UUID, accountID *uuid.UUID) (domain.StageRequest, error) {
	raw := make(map[string]any, len(s.Fields)+3)
	for k, v := range s.Fields {
		raw[k] = v
	}
	raw["receipt_url"] = s.ReceiptURL
	raw["category"] = s.Category
	raw["account"] = s.AccountName
	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return domain.StageRequest{}, fmt.Errorf("StageRequest: %w", err)
	}

	req := domain.StageRequest{
		SourceID:    sourceID,
		Date:        s.Date,
		Description: s.Description,
		Amount:      s.Amount,
		AccountID:   accountID,
		RawData:     rawJSON,
	}
	if s.ResponseID != "" {
		id := s.ResponseID
		req.ExternalID = &id
	}
	return req, nil
}

func text(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case []any:
		if len(t) > 0 {
			return text(t[0])
		}
	}
	return ""
}

func number(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, nil
	case json.Number:
		return decimal.NewFromString(t.String())
	case string:
		if strings.TrimSpace(t) == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(t), ",", "."))
	}
	return decimal.Zero, fmt.Errorf("unsupported value %v", v)
}

func firstFileURL(v any) string {
	files, ok := v.([]any)
	if !ok || len(files) == 0 {
		return ""
	}
	file, ok := files[0].(map[string]any)
	if !ok {
		return ""
	}
	url, _ := file["url"].(string)
	return url
}
