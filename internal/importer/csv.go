package importer

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
)

// CSVConfig maps a bank export onto staging fields. Either AmountColumn
// (signed, positive = inflow) or the DebitColumn/CreditColumn pair is used;
// in a bank statement a debit is money leaving the account.
type CSVConfig struct {
	Preset            string `yaml:"preset"`
	DateColumn        string `yaml:"date_column"`
	DescriptionColumn string `yaml:"description_column"`
	AmountColumn      string `yaml:"amount_column"`
	DebitColumn       string `yaml:"debit_column"`
	CreditColumn      string `yaml:"credit_column"`
	ExternalIDColumn  string `yaml:"external_id_column"`
	DateLayout        string `yaml:"date_layout"`
	Delimiter         string `yaml:"delimiter"`
	Negate            bool   `yaml:"negate"`
}

var csvPresets = map[string]CSVConfig{
	"chase": {
		DateColumn:        "Posting Date",
		DescriptionColumn: "Description",
		AmountColumn:      "Amount",
		DateLayout:        "01/02/2006",
	},
	"generic": {
		DateColumn:        "date",
		DescriptionColumn: "description",
		AmountColumn:      "amount",
	},
}

// ParseCSVConfig decodes a source's YAML config, applying the named preset
// first so explicit keys override it.
func ParseCSVConfig(raw string) (*CSVConfig, error) {
	var probe struct {
		Preset string `yaml:"preset"`
	}
	if err := yaml.Unmarshal([]byte(raw), &probe); err != nil {
		return nil, domain.Invalid("csv config: %v", err)
	}

	var cfg CSVConfig
	if probe.Preset != "" {
		preset, ok := csvPresets[strings.ToLower(probe.Preset)]
		if !ok {
			return nil, domain.Invalid("csv config: unknown preset %q", probe.Preset)
		}
		cfg = preset
	}
	if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, domain.Invalid("csv config: %v", err)
	}

	if cfg.DateLayout == "" {
		cfg.DateLayout = domain.DateLayout
	}
	if cfg.Delimiter == "" {
		cfg.Delimiter = ","
	}
	if utf8.RuneCountInString(cfg.Delimiter) != 1 {
		return nil, domain.Invalid("csv config: delimiter must be a single character")
	}
	if cfg.DateColumn == "" || cfg.DescriptionColumn == "" {
		return nil, domain.Invalid("csv config: date_column and description_column are required")
	}
	hasPair := cfg.DebitColumn != "" || cfg.CreditColumn != ""
	switch {
	case cfg.AmountColumn == "" && !hasPair:
		return nil, domain.Invalid("csv config: amount_column or debit_column/credit_column is required")
	case cfg.AmountColumn != "" && hasPair:
		return nil, domain.Invalid("csv config: use either amount_column or debit_column/credit_column")
	}
	return &cfg, nil
}

type CSVParser struct {
	cfg CSVConfig
}

func NewCSVParser(cfg CSVConfig) *CSVParser {
	return &CSVParser{cfg: cfg}
}

// Parse reads a header row and one staging request per data row. Rows are
// all-or-nothing: every bad row is reported and no requests are returned.
func (p *CSVParser) Parse(r io.Reader) ([]domain.StageRequest, error) {
	cr := csv.NewReader(r)
	cr.Comma, _ = utf8.DecodeRuneInString(p.cfg.Delimiter)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.Invalid("csv: file is empty")
	}
	if err != nil {
		return nil, domain.Invalid("csv: reading header: %v", err)
	}
	cols, err := p.columns(header)
	if err != nil {
		return nil, err
	}

	var (
		reqs []domain.StageRequest
		errs error
		seen = make(map[string]int)
	)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		if blank(rec) {
			continue
		}
		req, err := p.row(header, cols, rec, seen)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		reqs = append(reqs, req)
	}

	if errs != nil {
		rowErrs := multierr.Errors(errs)
		msgs := make([]string, len(rowErrs))
		for i, e := range rowErrs {
			msgs[i] = e.Error()
		}
		return nil, domain.Invalid("csv: %d invalid rows: %s", len(rowErrs), strings.Join(msgs, "; "))
	}
	return reqs, nil
}

type columnIndex struct {
	date, description, amount, debit, credit, externalID int
}

func (p *CSVParser) columns(header []string) (columnIndex, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		pos[strings.ToLower(strings.TrimSpace(h))] = i
	}
	lookup := func(name string, required bool) (int, error) {
		if name == "" {
			return -1, nil
		}
		i, ok := pos[strings.ToLower(name)]
		if !ok && required {
			return -1, domain.Invalid("csv: missing column %q", name)
		}
		if !ok {
			return -1, nil
		}
		return i, nil
	}

	var idx columnIndex
	var err error
	if idx.date, err = lookup(p.cfg.DateColumn, true); err != nil {
		return idx, err
	}
	if idx.description, err = lookup(p.cfg.DescriptionColumn, true); err != nil {
		return idx, err
	}
	if idx.amount, err = lookup(p.cfg.AmountColumn, true); err != nil {
		return idx, err
	}
	if idx.debit, err = lookup(p.cfg.DebitColumn, true); err != nil {
		return idx, err
	}
	if idx.credit, err = lookup(p.cfg.CreditColumn, true); err != nil {
		return idx, err
	}
	if idx.externalID, err = lookup(p.cfg.ExternalIDColumn, true); err != nil {
		return idx, err
	}
	return idx, nil
}

func (p *CSVParser) row(header []string, cols columnIndex, rec []string, seen map[string]int) (domain.StageRequest, error) {
	field := func(i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	date, err := time.Parse(p.cfg.DateLayout, field(cols.date))
	if err != nil {
		return domain.StageRequest{}, fmt.Errorf("parsing date %q", field(cols.date))
	}
	desc := field(cols.description)
	if desc == "" {
		return domain.StageRequest{}, errors.New("description is empty")
	}

	var amount decimal.Decimal
	if cols.amount >= 0 {
		amount, err = parseAmount(field(cols.amount))
		if err != nil {
			return domain.StageRequest{}, err
		}
	} else {
		debit, err := parseOptionalAmount(field(cols.debit))
		if err != nil {
			return domain.StageRequest{}, err
		}
		credit, err := parseOptionalAmount(field(cols.credit))
		if err != nil {
			return domain.StageRequest{}, err
		}
		amount = credit.Sub(debit.Abs())
	}
	if p.cfg.Negate {
		amount = amount.Neg()
	}
	if amount.IsZero() {
		return domain.StageRequest{}, errors.New("amount is zero")
	}
	if !amount.Equal(amount.Round(2)) {
		return domain.StageRequest{}, fmt.Errorf("amount %s has more than two decimal places", amount)
	}

	extID := field(cols.externalID)
	if extID == "" {
		extID = rowFingerprint(date, desc, amount, seen)
	}

	raw := make(map[string]string, len(header))
	for i, h := range header {
		raw[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = field(i)
	}
	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return domain.StageRequest{}, fmt.Errorf("encoding row: %w", err)
	}

	return domain.StageRequest{
		Date:        date,
		Description: desc,
		Amount:      amount,
		ExternalID:  &extID,
		RawData:     rawJSON,
	}, nil
}

// rowFingerprint derives a stable external id for exports that carry none,
// so re-importing the same file is deduplicated. Identical rows within one
// file are told apart by their occurrence number.
func rowFingerprint(date time.Time, desc string, amount decimal.Decimal, seen map[string]int) string {
	sum := sha256.Sum256([]byte(date.Format(domain.DateLayout) + "|" + desc + "|" + amount.StringFixed(2)))
	key := hex.EncodeToString(sum[:8])
	seen[key]++
	return fmt.Sprintf("csv-%s-%d", key, seen[key])
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, errors.New("amount is empty")
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q", s)
	}
	return d, nil
}

func parseOptionalAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return parseAmount(s)
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
