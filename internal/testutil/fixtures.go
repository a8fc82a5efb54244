package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
)

const TestPassword = "password123"

func SeedTestUser(t *testing.T, db *sql.DB, email, name string) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Status:       domain.UserStatusActive,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = db.Exec(
		`INSERT INTO users (id, email, name, password_hash, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Status, u.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed test user %s: %v", email, err)
	}
	return u
}

func SeedCategory(t *testing.T, db *sql.DB, name string) *domain.AccountCategory {
	t.Helper()

	c := &domain.AccountCategory{ID: uuid.New(), Name: name, CreatedAt: time.Now().UTC()}
	_, err := db.Exec(
		`INSERT INTO account_categories (id, name, created_at) VALUES ($1, $2, $3)`,
		c.ID, c.Name, c.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed category %s: %v", name, err)
	}
	return c
}

// SeedAccount inserts an account directly, bypassing code allocation.
func SeedAccount(t *testing.T, db *sql.DB, code, name string, typ domain.AccountType, categoryID *uuid.UUID) *domain.Account {
	t.Helper()

	now := time.Now().UTC()
	a := &domain.Account{
		ID:         uuid.New(),
		CategoryID: categoryID,
		Name:       name,
		Type:       typ,
		Code:       code,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := db.Exec(
		`INSERT INTO accounts (id, category_id, name, type, code, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.CategoryID, a.Name, a.Type, a.Code, a.IsActive, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed account %s: %v", code, err)
	}
	return a
}

func SeedImportSource(t *testing.T, db *sql.DB, name string, typ domain.ImportSourceType, config string) *domain.ImportSource {
	t.Helper()

	s := &domain.ImportSource{
		ID:        uuid.New(),
		Name:      name,
		Type:      typ,
		Config:    config,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO import_sources (id, name, type, config, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.Name, s.Type, s.Config, s.IsActive, s.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed import source %s: %v", name, err)
	}
	return s
}

func Date(t *testing.T, s string) time.Time {
	t.Helper()

	d, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		t.Fatalf("parse date %s: %v", s, err)
	}
	return d
}

// AccountBalance sums debits minus credits straight from the journal.
func AccountBalance(t *testing.T, db *sql.DB, accountID uuid.UUID) decimal.Decimal {
	t.Helper()

	var balance decimal.Decimal
	err := db.QueryRow(
		`SELECT COALESCE(SUM(debit_amount - credit_amount), 0) FROM journal_entries WHERE account_id = $1`,
		accountID,
	).Scan(&balance)
	if err != nil {
		t.Fatalf("get account balance %s: %v", accountID, err)
	}
	return balance
}

func CountJournalEntries(t *testing.T, db *sql.DB, transactionID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM journal_entries WHERE transaction_id = $1`, transactionID).Scan(&count)
	if err != nil {
		t.Fatalf("count journal entries for transaction %s: %v", transactionID, err)
	}
	return count
}

func CountTransactions(t *testing.T, db *sql.DB) int {
	t.Helper()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&count); err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	return count
}

func Amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
