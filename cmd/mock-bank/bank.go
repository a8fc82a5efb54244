package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/importer"
)

const (
	pageSize  = 25
	tokenTTL  = time.Hour
	dayLayout = domain.DateLayout
)

type bank struct {
	clientID     string
	clientSecret string
	today        time.Time
	days         int

	mu     sync.Mutex
	tokens map[string]time.Time
}

func newBank(clientID, clientSecret string, today time.Time, days int) *bank {
	return &bank{
		clientID:     clientID,
		clientSecret: clientSecret,
		today:        today.Truncate(24 * time.Hour),
		days:         days,
		tokens:       make(map[string]time.Time),
	}
}

func (b *bank) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /oauth/token", b.issueToken)
	mux.HandleFunc("GET /accounts/{account}/transactions", b.transactions)
	return mux
}

func (b *bank) issueToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	if r.PostForm.Get("grant_type") != "client_credentials" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}
	id, secret, ok := r.BasicAuth()
	if !ok {
		id, secret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	}
	if id != b.clientID || secret != b.clientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
		return
	}
	token := hex.EncodeToString(buf)

	b.mu.Lock()
	b.tokens[token] = time.Now().Add(tokenTTL)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   int(tokenTTL.Seconds()),
	})
}

func (b *bank) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	exp, found := b.tokens[token]
	return found && time.Now().Before(exp)
}

type transactionsPage struct {
	Transactions []importer.BankTransaction `json:"transactions"`
	NextPage     *int                       `json:"next_page"`
}

func (b *bank) transactions(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
		return
	}

	var from time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		d, err := time.Parse(dayLayout, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from must be YYYY-MM-DD"})
			return
		}
		from = d
	}
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "page must be a positive integer"})
			return
		}
		page = n
	}

	var booked []importer.BankTransaction
	for _, t := range b.fixtures(r.PathValue("account")) {
		if d, _ := time.Parse(dayLayout, t.BookingDate); !d.Before(from) {
			booked = append(booked, t)
		}
	}

	start := min((page-1)*pageSize, len(booked))
	end := min(start+pageSize, len(booked))
	resp := transactionsPage{Transactions: booked[start:end]}
	if end < len(booked) {
		next := page + 1
		resp.NextPage = &next
	}
	if resp.Transactions == nil {
		resp.Transactions = []importer.BankTransaction{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type fixture struct {
	description string
	cents       int64
	every       int
}

var schedule = []fixture{
	{"Salary", 320000, 30},
	{"Rent", -125000, 30},
	{"Groceries", -6420, 4},
	{"Coffee", -380, 2},
	{"Electricity", -8815, 30},
	{"Transfer from savings", 20000, 45},
}

// fixtures is deterministic per account and day window, so repeated syncs
// return the same ids and the importer's duplicate check applies.
func (b *bank) fixtures(account string) []importer.BankTransaction {
	var out []importer.BankTransaction
	first := b.today.AddDate(0, 0, -b.days)
	for day := 0; day <= b.days; day++ {
		date := first.AddDate(0, 0, day)
		epochDay := int(date.Unix() / 86400)
		for i, f := range schedule {
			if epochDay%f.every != i%f.every {
				continue
			}
			out = append(out, importer.BankTransaction{
				ID:          fmt.Sprintf("%s-%s-%d", account, date.Format("20060102"), i),
				BookingDate: date.Format(dayLayout),
				Description: f.description,
				Amount:      decimal.New(f.cents, -2).StringFixed(2),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].BookingDate < out[j].BookingDate })
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
