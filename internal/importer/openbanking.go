package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/logging"
)

// OpenBankingConfig is the YAML config of an open-banking import source.
type OpenBankingConfig struct {
	BaseURL      string   `yaml:"base_url"`
	TokenURL     string   `yaml:"token_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	AccountID    string   `yaml:"account_id"`
	Scopes       []string `yaml:"scopes"`
}

func ParseOpenBankingConfig(raw string) (*OpenBankingConfig, error) {
	var cfg OpenBankingConfig
	if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, domain.Invalid("open-banking config: %v", err)
	}
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"base_url", cfg.BaseURL},
		{"token_url", cfg.TokenURL},
		{"client_id", cfg.ClientID},
		{"client_secret", cfg.ClientSecret},
		{"account_id", cfg.AccountID},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, domain.Invalid("open-banking config: missing %s", strings.Join(missing, ", "))
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, domain.Invalid("open-banking config: invalid base_url")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &cfg, nil
}

// BankTransaction is one booked transaction as returned by the aggregator.
// Amount is a signed decimal string, positive for money received.
type BankTransaction struct {
	ID          string `json:"id"`
	BookingDate string `json:"booking_date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

func (t BankTransaction) StageRequest(sourceID uuid.UUID) (domain.StageRequest, error) {
	date, err := time.Parse(domain.DateLayout, t.BookingDate)
	if err != nil {
		return domain.StageRequest{}, fmt.Errorf("transaction %s: invalid booking_date %q", t.ID, t.BookingDate)
	}
	amount, err := decimal.NewFromString(t.Amount)
	if err != nil {
		return domain.StageRequest{}, fmt.Errorf("transaction %s: invalid amount %q", t.ID, t.Amount)
	}
	if t.ID == "" {
		return domain.StageRequest{}, fmt.Errorf("transaction without id on %s", t.BookingDate)
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return domain.StageRequest{}, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	id := t.ID
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		desc = "Bank transaction " + t.ID
	}
	return domain.StageRequest{
		SourceID:    sourceID,
		Date:        date,
		Description: desc,
		Amount:      amount.Round(2),
		ExternalID:  &id,
		RawData:     raw,
	}, nil
}

type transactionsPage struct {
	Transactions []BankTransaction `json:"transactions"`
	NextPage     *int              `json:"next_page"`
}

// OpenBankingClient pulls booked transactions for one aggregator account.
// Tokens come from the client-credentials grant and are refreshed by
// oauth2; every page request waits on the shared limiter.
type OpenBankingClient struct {
	cfg        OpenBankingConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewOpenBankingClient(ctx context.Context, cfg OpenBankingConfig, limiter *rate.Limiter) *OpenBankingClient {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	base := &http.Client{Timeout: 10 * time.Second}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	client := cc.Client(ctx)
	client.Timeout = 10 * time.Second
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &OpenBankingClient{cfg: cfg, httpClient: client, limiter: limiter}
}

// FetchTransactions returns every transaction booked on or after from,
// following pagination until the aggregator reports no next page.
func (c *OpenBankingClient) FetchTransactions(ctx context.Context, from *time.Time) ([]BankTransaction, error) {
	log := logging.FromContext(ctx)

	var all []BankTransaction
	page := 1
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("FetchTransactions: rate limit: %w", err)
		}

		q := url.Values{}
		if from != nil {
			q.Set("from", from.Format(domain.DateLayout))
		}
		q.Set("page", strconv.Itoa(page))
		endpoint := fmt.Sprintf("%s/accounts/%s/transactions?%s",
			c.cfg.BaseURL, url.PathEscape(c.cfg.AccountID), q.Encode())

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("FetchTransactions: build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("FetchTransactions: send: %w", err)
		}
		result, err := decodePage(resp)
		if err != nil {
			return nil, fmt.Errorf("FetchTransactions: %w", err)
		}
		log.Debug("aggregator page fetched",
			"account", c.cfg.AccountID,
			"page", page,
			"count", len(result.Transactions),
			"duration_ms", time.Since(start).Milliseconds(),
		)

		all = append(all, result.Transactions...)
		if result.NextPage == nil || *result.NextPage <= page {
			return all, nil
		}
		page = *result.NextPage
	}
}

func decodePage(resp *http.Response) (*transactionsPage, error) {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	var page transactionsPage
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &page, nil
}
